package main

import (
	"github.com/pressly/goose/v3"

	"github.com/coreymead/zoom-class-builder/storage/database"
)

var gooseRunFunc = goose.Run // mockable

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNotSQL
	}
	if err := database.SetupGoose(cli.engine); err != nil {
		return err
	}
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.db, database.MigrationsDir(cli.engine), arguments...)
}
