package main

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"github.com/trezcool/mahudhurio/core"
)

func (cli *commandLine) exportRoll(courseID, outDir, emails string) error {
	ctx := context.Background()

	if emails != "" {
		to := make([]mail.Address, 0)
		for _, addr := range strings.Split(emails, ",") {
			if addr = core.CleanString(addr, true /* lower */); addr != "" {
				to = append(to, mail.Address{Address: addr})
			}
		}
		if len(to) == 0 {
			return errors.New("no valid recipient address")
		}
		if err := cli.exportSvc.EmailRoll(ctx, courseID, to...); err != nil {
			return err
		}
		fmt.Printf("roll emailed to %s\n", emails)
		return nil
	}

	roll, err := cli.exportSvc.Roll(ctx, courseID)
	if err != nil {
		return err
	}
	path := filepath.Join(outDir, roll.Filename)
	if err = os.WriteFile(path, roll.Content, 0o644); err != nil {
		return err
	}
	fmt.Printf("roll written to %s\n", path)
	return nil
}
