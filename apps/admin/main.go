package main

import (
	"log"
	"os"

	"github.com/eduprohq/edupro/core"
	"github.com/eduprohq/edupro/core/user"
	emailsvc "github.com/eduprohq/edupro/services/email"
	pgstore "github.com/eduprohq/edupro/storage/store/postgres"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.NewConfig("admin")
	errAndDie(err)

	// set up store
	errAndDie(pgstore.CreateIfNotExist(conf))
	db, err := pgstore.OpenDB(conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()
	errAndDie(db.Ping())

	validate, translator := core.NewValidator()
	usrSvc := user.NewService(pgstore.New(db), emailsvc.NewConsoleService(conf), conf, validate, translator)

	// start CLI
	cli := commandLine{
		db:     db,
		usrSvc: usrSvc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
