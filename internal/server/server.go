// Package server exposes the client's admin HTTP surface.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/rilctl/internal/auth"
	"github.com/danmuck/rilctl/internal/logging"
	"github.com/danmuck/rilctl/internal/observability"
	"github.com/danmuck/rilctl/internal/ril"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Radio is the part of the client the admin surface drives.
type Radio interface {
	Status() ril.Status
	Pending() []ril.PendingRequest
	SetRadioPower(on bool, done ril.Completion)
}

type Server struct {
	addr     string
	radio    Radio
	router   *gin.Engine
	guard    auth.Validator
	appeared time.Time
	log      zerolog.Logger

	// RequestTimeout bounds how long a handler waits on the daemon.
	RequestTimeout time.Duration
}

// New builds the admin router. A non-nil guard protects state-changing routes.
func New(addr string, corsOrigins []string, radio Radio, guard auth.Validator) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	logger := logging.Component("admin")

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware())
	if len(corsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: corsOrigins,
			AllowMethods: []string{"GET", "POST"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		addr:           addr,
		radio:          radio,
		guard:          guard,
		router:         r,
		appeared:       time.Now(),
		log:            logger,
		RequestTimeout: 10 * time.Second,
	}
	s.registerRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// Serve listens on the configured address until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("admin server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
