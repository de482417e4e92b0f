package main

import (
	"context"
	"fmt"

	"github.com/trezcool/mahudhurio/core/course"
)

func (cli *commandLine) createCourse(nc course.NewCourse) error {
	ctx := context.Background()

	if err := nc.Validate(ctx, cli.validate, cli.courseSvc); err != nil {
		return err
	}
	crs, err := cli.courseSvc.Create(ctx, nc)
	if err != nil {
		return err
	}
	fmt.Printf("course %q created: %s\n", crs.Name, crs.ID)
	return nil
}
