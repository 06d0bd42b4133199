package testutil

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/eduprohq/edupro/core"
	"github.com/eduprohq/edupro/core/chat"
	"github.com/eduprohq/edupro/core/content"
	"github.com/eduprohq/edupro/core/exam"
	"github.com/eduprohq/edupro/core/user"
	"github.com/eduprohq/edupro/core/wallet"
	emailsvc "github.com/eduprohq/edupro/services/email"
	"github.com/eduprohq/edupro/storage/store"
	"github.com/eduprohq/edupro/storage/store/inmem"
)

// Password passes the signup password policy; use it for test accounts.
const Password = "S3cr3t!pwd"

// Env wires every service onto a fresh in-memory store.
type Env struct {
	Conf       *core.Config
	Store      store.Store
	MailSvc    *emailsvc.MockService
	Validate   *validator.Validate
	Translator ut.Translator
	UserSvc    *user.Service
	WalletSvc  *wallet.Service
	ExamSvc    *exam.Service
	ContentSvc *content.Service
	ChatSvc    *chat.Service
}

func NewEnv() *Env {
	conf := NewConfig()
	st := inmem.Open()
	validate, translator := core.NewValidator()
	mailSvc := emailsvc.NewMockService()
	logger := NewLogger()

	usrSvc := user.NewService(st, mailSvc, conf, validate, translator)
	walletSvc := wallet.NewService(st, mailSvc, conf, validate)

	return &Env{
		Conf:       conf,
		Store:      st,
		MailSvc:    mailSvc,
		Validate:   validate,
		Translator: translator,
		UserSvc:    usrSvc,
		WalletSvc:  walletSvc,
		ExamSvc:    exam.NewService(st, walletSvc, logger, validate),
		ContentSvc: content.NewService(st, validate),
		ChatSvc:    chat.NewService(st, validate),
	}
}

func NewConfig() *core.Config {
	return &core.Config{
		Debug:            false,
		TestMode:         true,
		Env:              "TEST",
		AppName:          "EduPro",
		SecretKey:        "testing-secret-key",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: "noreply@test.local",
		Server: core.ServerConfig{
			JWTExpirationDelta: 4 * time.Hour,
			JWTRememberMeDelta: 7 * 24 * time.Hour,
			LoginRateLimit:     100,
			ShutdownTimeout:    5 * time.Second,
		},
	}
}

func CreateUser(t *testing.T, env *Env, name, email string) user.User {
	t.Helper()
	usr, err := env.UserSvc.Register(context.Background(), user.NewUser{
		Name:            name,
		Email:           email,
		Password:        Password,
		PasswordConfirm: Password,
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateAdmin(t *testing.T, env *Env, name, email string) user.User {
	t.Helper()
	usr := CreateUser(t, env, name, email)
	if usr.IsAdmin() {
		return usr
	}
	usr, err := env.UserSvc.Promote(context.Background(), usr.Email)
	if err != nil {
		t.Fatalf("CreateAdmin() failed: %v", err)
	}
	return usr
}

func SetBalance(t *testing.T, env *Env, uid string, amount int64) {
	t.Helper()
	if err := env.WalletSvc.CreditBalance(context.Background(), uid, amount); err != nil {
		t.Fatalf("SetBalance() failed: %v", err)
	}
}

func CreateExam(t *testing.T, env *Env, ne exam.NewExam) exam.Exam {
	t.Helper()
	exm, err := env.ExamSvc.Publish(context.Background(), ne)
	if err != nil {
		t.Fatalf("CreateExam() failed: %v", err)
	}
	return exm
}

// NewLogger logs to stdout without reporting anywhere.
func NewLogger() core.Logger {
	return stdLogger{std: log.New(os.Stdout, "TEST : ", log.LstdFlags)}
}

type stdLogger struct {
	std *log.Logger
}

func (l stdLogger) Enable(bool) {}

func (l stdLogger) print(msg string, args []interface{}) {
	l.std.Println(msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l stdLogger) Debug(msg string, args ...interface{}) { l.print(msg, args) }
func (l stdLogger) Info(msg string, args ...interface{})  { l.print(msg, args) }
func (l stdLogger) Warn(msg string, args ...interface{})  { l.print(msg, args) }
func (l stdLogger) Error(msg string, args ...interface{}) { l.print(msg, args) }
func (l stdLogger) Fatal(msg string, args ...interface{}) { l.print(msg, args); l.std.Fatal(msg) }
