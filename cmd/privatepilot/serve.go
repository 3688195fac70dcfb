package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"privatepilot/internal/server"
	"privatepilot/internal/typing"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve editor actions over local HTTP and WebSocket.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		addr := cfg.Server.ListenAddr
		if listenAddr != "" {
			addr = listenAddr
		}
		srv := server.New(server.Config{
			Generator:   a.service,
			Typewriter:  typing.Typewriter{Delay: cfg.Typing.Delay, Chunk: cfg.Typing.Chunk},
			HealthPath:  cfg.Server.HealthPath,
			MetricsPath: cfg.Server.MetricsPath,
			Logger:      log.Logger,
		})
		httpServer := &http.Server{
			Addr:              addr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       cfg.Server.ReadTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", addr).Str("provider", cfg.Provider).Msg("http server started")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()

		select {
		case <-ctx.Done():
			log.Info().Msg("shutdown signal received")
		case err := <-errCh:
			return err
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to stop http server")
		}
		log.Info().Msg("stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "address to listen on (overrides server.listen_addr)")
}
