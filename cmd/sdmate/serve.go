package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chadiek/sd-mate/internal/config"
	"github.com/chadiek/sd-mate/internal/httpserver"
)

func newServeCmd() *cobra.Command {
	var (
		o    overrides
		addr string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the session controller behind the HTTP control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			o.apply(cmd, &cfg)
			if addr != "" {
				cfg.HTTPAddress = addr
			}
			log := newLogger(cfg)

			ctl := buildController(cfg, log)
			defer ctl.Close()
			srv := httpserver.New(ctl, cfg.DefaultDuration, log)

			server := &http.Server{
				Addr:              cfg.HTTPAddress,
				Handler:           srv.Echo,
				ReadHeaderTimeout: 10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			serverErrors := make(chan error, 1)
			go func() {
				log.Info("server listening", "addr", cfg.HTTPAddress)
				serverErrors <- server.ListenAndServe()
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			select {
			case err := <-serverErrors:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case sig := <-sigChan:
				log.Info("shutdown signal received", "signal", sig.String())
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				log.Warn("graceful shutdown failed", "err", err)
				_ = server.Close()
			}
			return nil
		},
	}
	o.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDRESS)")
	return cmd
}
