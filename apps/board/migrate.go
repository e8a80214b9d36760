package main

import (
	"github.com/trezcool/masomo-board/storage/database"
)

var gooseRunFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(args []string) error {
	db, err := cli.openDB()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	return gooseRunFunc(args[0], db, args[1:]...)
}
