// Command mcp-server exposes the gonewton tools over HTTP for agent
// frameworks.
//
// Usage:
//
//	mcp-server --addr :8080 --config newton.yaml
//
// Tool call endpoint: POST /tool
// Schema endpoint:    GET  /schema
// Health endpoint:    GET  /health
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/njchilds90/gonewton/internal/config"
	"github.com/njchilds90/gonewton/internal/logging"
	"github.com/njchilds90/gonewton/tool"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr       string
		configPath string
	)
	cmd := &cobra.Command{
		Use:           "mcp-server",
		Short:         "HTTP tool server for Newton-Raphson root finding",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")
	cmd.Flags().StringVar(&configPath, "config", "newton.yaml", "path to YAML config")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	solverOpts, err := cfg.Solver.Options()
	if err != nil {
		return err
	}
	h, err := tool.NewHandler(
		tool.WithLogger(logger),
		tool.WithCacheSize(cfg.Server.CacheSize),
		tool.WithBatchConcurrency(cfg.Server.BatchConcurrency),
		tool.WithSolverOptions(solverOpts...),
	)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newServer(h, logger, cfg.Server.MaxBodyBytes).routes(),
		ReadHeaderTimeout: config.Duration(cfg.Server.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       config.Duration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout:      config.Duration(cfg.Server.WriteTimeout, 15*time.Second),
		IdleTimeout:       config.Duration(cfg.Server.IdleTimeout, 60*time.Second),
	}

	logger.Info("gonewton MCP server listening",
		zap.String("addr", srv.Addr),
		zap.Strings("endpoints", []string{"POST /tool", "GET /schema", "GET /health"}),
	)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
