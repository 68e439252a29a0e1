package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/aretw0/xplanning/internal/config"
	"github.com/aretw0/xplanning/internal/logging"
	xhttp "github.com/aretw0/xplanning/pkg/adapters/http"
)

// ShutdownTimeout bounds how long outstanding requests may run after a stop.
const ShutdownTimeout = 5 * time.Second

// ServeOptions configures RunServe.
type ServeOptions struct {
	RunOptions
	// Addr overrides the configured listen address.
	Addr string
	// Ready, if set, receives the bound address once the server listens.
	Ready chan<- string
}

// RunServe serves the explanation API until ctx is done.
func RunServe(ctx context.Context, opts ServeOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	level := cfg.Level()
	if opts.Debug {
		level = slog.LevelDebug
	}
	logger := logging.NewJSON(os.Stderr, level)

	svc, err := NewServices(cfg, logger, opts.Factory)
	if err != nil {
		return fmt.Errorf("error initializing explainer: %w", err)
	}
	defer svc.Close()

	addr := cfg.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler: xhttp.NewHandler(svc.Explainer,
			xhttp.WithLogger(logger),
			xhttp.WithGatherer(svc.Registry),
			xhttp.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
			xhttp.WithTimeout(cfg.Server.Timeout),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", ln.Addr().String())
		serverErrors <- srv.Serve(ln)
	}()
	if opts.Ready != nil {
		opts.Ready <- ln.Addr().String()
	}

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		logger.Info("shutting down", "cause", context.Cause(ctx))

		// Give outstanding requests a deadline for completion.
		sctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Warn("graceful shutdown did not complete", "timeout", ShutdownTimeout, "error", err)
			return srv.Close()
		}
		if err := <-serverErrors; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		logger.Info("server stopped gracefully")
		return nil
	}
}
