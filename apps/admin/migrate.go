package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/matokeo/fs"
	"github.com/trezcool/matokeo/storage/database"
)

var (
	gooseRunFunc = goose.RunContext // mockable

	errNoDatabase = errors.New("the in-memory engine has no migrations")
)

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	if err := database.SetupGoose(cli.db); err != nil {
		return err
	}

	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(ctx, args[0], cli.db.DB, appfs.MigrationsDir, arguments...)
}
