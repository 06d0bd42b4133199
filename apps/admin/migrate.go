package main

import (
	pgstore "github.com/eduprohq/edupro/storage/store/postgres"
)

func (cli *commandLine) migrate() error {
	if err := pgstore.Migrate(cli.db); err != nil {
		return err
	}
	logger.Println("migrations completed")
	return nil
}
