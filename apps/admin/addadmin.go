package main

import (
	"context"

	"github.com/eduprohq/edupro/core/user"
)

// addAdmin signs up a new account and grants it the admin role.
func (cli *commandLine) addAdmin(name, email, pwd string) error {
	ctx := context.Background()

	usr, err := cli.usrSvc.Register(ctx, user.NewUser{
		Name:            name,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
	})
	if err != nil {
		return err
	}
	if usr.IsAdmin() {
		// first-ever account; already promoted at signup
		logger.Printf("admin %q created\n", usr.Email)
		return nil
	}

	if usr, err = cli.usrSvc.Promote(ctx, usr.Email); err != nil {
		return err
	}
	logger.Printf("admin %q created\n", usr.Email)
	return nil
}
