package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"versescope/internal/logging"
	"versescope/internal/web"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bindFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the verse analysis page and JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			lock := flock.New(cfg.LockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock %s: %w", cfg.LockPath(), err)
			}
			if !locked {
				return fmt.Errorf("another versescope server is already running (lock %s)", cfg.LockPath())
			}
			defer func() {
				_ = lock.Unlock()
			}()

			orch, cfg, logger, err := ctx.orchestrator()
			if err != nil {
				return err
			}
			defer orch.Close()

			level, err := detailLevel("", cfg)
			if err != nil {
				return err
			}
			server, err := web.New(orch, web.Options{
				APIToken:       cfg.Server.APIToken,
				AllowedOrigins: cfg.Server.AllowedOrigins,
				DefaultDetail:  level,
			}, logger)
			if err != nil {
				return err
			}

			bind := strings.TrimSpace(bindFlag)
			if bind == "" {
				bind = cfg.Server.Bind
			}
			listener, err := net.Listen("tcp", bind)
			if err != nil {
				server.Close()
				return fmt.Errorf("listen on %s: %w", bind, err)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s\n", listener.Addr())
			logger.Debug("serve configuration",
				logging.Bool("api_token", cfg.Server.APIToken != ""),
				logging.Int("allowed_origins", len(cfg.Server.AllowedOrigins)),
				logging.String("lock", cfg.LockPath()),
			)
			if err := server.Serve(runCtx, listener); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&bindFlag, "bind", "", "Listen address (defaults to server.bind)")
	return cmd
}
