// Package web is the HTTP boundary: a thin gin surface mapping requests
// onto the merge engine and listing repository.
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/vinyard/internal/config"
	"github.com/zulandar/vinyard/internal/logger"
	"github.com/zulandar/vinyard/internal/merge"
	"github.com/zulandar/vinyard/internal/notify"
	"github.com/zulandar/vinyard/internal/score"
	"github.com/zulandar/vinyard/internal/store"
)

// StartOpts holds the collaborators for the HTTP server.
type StartOpts struct {
	Store    *store.Store
	Merge    *merge.Engine
	Scorer   *score.Scorer
	Settings *config.Settings
	Notifier *notify.Notifier
	Log      logger.Logger
	Port     int
	Out      io.Writer
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 5000
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "vinyard listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web: %w", err)
	}
	return nil
}

// NewRouter builds the gin router with all routes registered.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("web: store is required")
	}
	if opts.Merge == nil {
		return nil, fmt.Errorf("web: merge engine is required")
	}
	if opts.Scorer == nil {
		opts.Scorer = score.NewScorer(score.DefaultWeights())
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.New(opts.Log)
	}
	if opts.Log == nil {
		opts.Log = logger.Discard()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, opts)
	return router, nil
}
