package api

import (
	"context"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
)

// Options tunes the HTTP surface. Zero values mean open CORS, no auth and the
// standard logger.
type Options struct {
	CORSOrigin string
	Auth       Authenticator
	Logger     *log.Logger
}

// Server is the assembled HTTP surface: routes, SSE broker, middleware.
type Server struct {
	echo   *echo.Echo
	broker *streamBroker
	unsub  func()
	logger *log.Logger
}

// NewServer wires the routes, the Prometheus middleware and the SSE broker
// over the given core components.
func NewServer(store StateStore, notifier Notifier, search Searcher, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	auth := opts.Auth
	if auth == nil {
		auth = NoAuth{}
	}
	origin := opts.CORSOrigin
	if origin == "" {
		origin = "*"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{origin},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echoprometheus.NewMiddleware("taskboard"))
	e.GET("/metrics", echoprometheus.NewHandler())

	Register(e, store, search, auth, logger)

	broker := newStreamBroker()
	unsub := notifier.SubscribeAll(broker.publish)
	e.GET("/api/stream", streamEvents(store, broker), authMiddleware(auth))

	return &Server{echo: e, broker: broker, unsub: unsub, logger: logger}
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	s.logger.WithField("addr", addr).Info("api.listening")
	return s.echo.Start(addr)
}

// Shutdown detaches the SSE broker and closes the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.unsub()
	return s.echo.Shutdown(ctx)
}

// Echo exposes the underlying router, mainly for tests.
func (s *Server) Echo() *echo.Echo { return s.echo }
