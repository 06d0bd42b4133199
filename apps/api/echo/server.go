// Package echoapi is the portal's HTTP surface. Routes are grouped per
// domain under /v1; everything beyond signup and login sits behind JWT
// auth, and the admin console routes behind an extra role check.
package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"golang.org/x/time/rate"

	"github.com/eduprohq/edupro/core"
	"github.com/eduprohq/edupro/core/chat"
	"github.com/eduprohq/edupro/core/content"
	"github.com/eduprohq/edupro/core/exam"
	"github.com/eduprohq/edupro/core/user"
	"github.com/eduprohq/edupro/core/wallet"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool

		Conf       *core.Config
		Logger     core.Logger
		Translator ut.Translator

		UserSvc    *user.Service
		ExamSvc    *exam.Service
		WalletSvc  *wallet.Service
		ContentSvc *content.Service
		ChatSvc    *chat.Service
		Uploader   core.Uploader
	}

	Server interface {
		http.Handler
		Start() error
		Stop(ctx context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, func() {
		_ = s.Stop(context.Background())
	})
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf))
	loginLimiter := middleware.RateLimiter(
		middleware.NewRateLimiterMemoryStore(rate.Limit(conf.Server.LoginRateLimit)))

	registerUserAPI(v1, jwt, loginLimiter, s.opts)
	registerExamAPI(v1, jwt, s.opts)
	registerWalletAPI(v1, jwt, s.opts)
	registerContentAPI(v1, jwt, s.opts)
	registerChatAPI(v1, jwt, s.opts)
	registerUploadAPI(v1, jwt, s.opts)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to EduPro API!")
}
