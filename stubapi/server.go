// Package stubapi is an in-memory fake of the HTTP API the client talks to.
// It exists so the client can be run and tested end to end.
package stubapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rotiminicol/ijeuwa/accessor"
	"github.com/rotiminicol/ijeuwa/types"
)

// CookieName carries the signed session token.
const CookieName = "jwt"

// SessionTTL is how long a session cookie stays valid.
const SessionTTL = 15 * 24 * time.Hour

type Options struct {
	// Secret signs session tokens. Required.
	Secret string
	// HashCost is the bcrypt cost, bcrypt.DefaultCost when zero.
	HashCost int
	Logger   *zap.Logger
}

type user struct {
	types.UserIdentity
	hash []byte
}

// Server holds all state in memory. It is safe for concurrent use.
type Server struct {
	echo   *echo.Echo
	secret []byte
	cost   int
	logger *zap.Logger
	now    func() time.Time

	mu            sync.RWMutex
	users         map[string]*user  // by id
	usernames     map[string]string // username -> id
	notifications map[string][]types.Notification
}

func New(opts Options) (*Server, error) {
	if opts.Secret == "" {
		return nil, errors.New("stubapi: secret is required")
	}
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		echo:          echo.New(),
		secret:        []byte(opts.Secret),
		cost:          opts.HashCost,
		logger:        opts.Logger.Named("stubapi"),
		now:           time.Now,
		users:         make(map[string]*user),
		usernames:     make(map[string]string),
		notifications: make(map[string][]types.Notification),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	e := s.echo
	e.Use(s.requestLogger)

	e.POST(accessor.PathSignup, s.signup)
	e.POST(accessor.PathLogin, s.login)
	e.POST(accessor.PathLogout, s.logout)
	e.GET(accessor.PathMe, s.me)

	e.GET(accessor.PathNotifications, s.listNotifications, s.protect)
	e.DELETE(accessor.PathNotifications, s.deleteNotifications, s.protect)

	e.PATCH(accessor.PathProfile, s.updateProfile, s.protect)
	e.GET(accessor.PathProfile+"/:username", s.profile, s.protect)
}

// Handler exposes the router, e.g. for httptest.NewServer.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks serving addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("stub api listening", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "stubapi: serve")
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := s.now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		req := c.Request()
		s.logger.Debug("request",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", c.Response().Status),
			zap.String("request_id", req.Header.Get(accessor.RequestIDHeader)),
			zap.Duration("latency", s.now().Sub(start)))
		return nil
	}
}

func fail(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]string{"error": msg})
}

func message(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, map[string]string{"message": msg})
}
