package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	echoapi "github.com/eduprohq/edupro/apps/api/echo"
	"github.com/eduprohq/edupro/core"
	"github.com/eduprohq/edupro/core/chat"
	"github.com/eduprohq/edupro/core/content"
	"github.com/eduprohq/edupro/core/exam"
	"github.com/eduprohq/edupro/core/user"
	"github.com/eduprohq/edupro/core/wallet"
	emailsvc "github.com/eduprohq/edupro/services/email"
	eventsvc "github.com/eduprohq/edupro/services/events"
	logsvc "github.com/eduprohq/edupro/services/logger"
	uploadsvc "github.com/eduprohq/edupro/services/upload"
	"github.com/eduprohq/edupro/storage/store"
	pgstore "github.com/eduprohq/edupro/storage/store/postgres"
)

// build is the git version of this program. It is set using build flags.
var build = "dev"

func main() {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig(build)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// set up store
	st, closeStore, err := setUpStore(ctx, conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up store: %v", err), err)
	}
	defer closeStore()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	validate, translator := core.NewValidator()

	usrSvc := user.NewService(st, mailSvc, conf, validate, translator)
	walletSvc := wallet.NewService(st, mailSvc, conf, validate)
	examSvc := exam.NewService(st, walletSvc, logger, validate)
	contentSvc := content.NewService(st, validate)
	chatSvc := chat.NewService(st, validate)
	uploader := uploadsvc.NewImgBBService(conf)

	// =========================================================================
	// Start API Service

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	server := echoapi.NewServer(&echoapi.Options{
		Address:    conf.Server.Address(),
		Conf:       conf,
		Logger:     logger,
		Translator: translator,
		UserSvc:    usrSvc,
		ExamSvc:    examSvc,
		WalletSvc:  walletSvc,
		ContentSvc: contentSvc,
		ChatSvc:    chatSvc,
		Uploader:   uploader,
	})

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err = <-serverErrors:
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		stopCtx, stopCancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer stopCancel()

		if err = server.Stop(stopCtx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}
}

func setUpStore(ctx context.Context, conf *core.Config, logger core.Logger) (store.Store, func(), error) {
	if err := pgstore.CreateIfNotExist(conf); err != nil {
		return nil, nil, err
	}

	db, err := pgstore.OpenDB(conf)
	if err != nil {
		return nil, nil, err
	}
	if err = pgstore.Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	st := pgstore.New(db)
	closeFns := []func(){func() { _ = db.Close() }}

	if conf.Redis.Enabled {
		relay := eventsvc.NewRedisRelay(conf)
		st.AttachRelay(ctx, relay, logger)
		closeFns = append(closeFns, func() { _ = relay.Close() })
	}

	closeAll := func() {
		for i := len(closeFns) - 1; i >= 0; i-- {
			closeFns[i]()
		}
	}
	return st, closeAll, nil
}
