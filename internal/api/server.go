// Package api exposes the card engine over HTTP.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/zulandar/boardcore/internal/board"
	"github.com/zulandar/boardcore/internal/card"
	"gorm.io/gorm"
)

// ActorHeader carries the id of the user performing a request.
// Authentication happens upstream; the value is trusted as given.
const ActorHeader = "X-Actor-ID"

// StartOpts holds configuration for the HTTP server.
type StartOpts struct {
	Cards  *card.Service
	Boards *board.Service
	// DB serves the activity feed and the health check.
	DB     *gorm.DB
	Port   int
	Logger *log.Logger
	Out    io.Writer
}

func (o *StartOpts) check() error {
	if o.Cards == nil {
		return fmt.Errorf("api: card service is required")
	}
	if o.Boards == nil {
		return fmt.Errorf("api: board service is required")
	}
	if o.DB == nil {
		return fmt.Errorf("api: db is required")
	}
	if o.Logger == nil {
		o.Logger = log.StandardLogger()
	}
	return nil
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if err := opts.check(); err != nil {
		return nil, err
	}
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, &handlers{
		cards:  opts.Cards,
		boards: opts.Boards,
		db:     opts.DB,
		logger: opts.Logger,
	})
	return router, nil
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	gin.SetMode(gin.ReleaseMode)
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
