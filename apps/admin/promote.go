package main

import (
	"context"
)

func (cli *commandLine) promote(email string) error {
	usr, err := cli.usrSvc.Promote(context.Background(), email)
	if err != nil {
		return err
	}
	logger.Printf("user %q promoted to admin\n", usr.Email)
	return nil
}
