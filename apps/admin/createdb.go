package main

import (
	"fmt"

	"github.com/trezcool/mahudhurio/storage/database"
)

var createDBFunc = database.CreateIfNotExist // mockable

func (cli *commandLine) createDB() error {
	if err := createDBFunc(cli.conf); err != nil {
		return err
	}
	fmt.Printf("database %q is ready\n", cli.conf.Database.Name)
	return nil
}
