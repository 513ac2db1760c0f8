package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/craigvandotcom/eatzone/internal/analysis"
	"github.com/craigvandotcom/eatzone/internal/config"
	"github.com/craigvandotcom/eatzone/internal/handlers"
	"github.com/craigvandotcom/eatzone/internal/storage"
)

func newServeCmd() *cobra.Command {
	var configPath string
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the analysis and entry API server",
		Long: `Starts the Eatzone API on the specified port.

The API accepts meal photos as base64 data URIs, extracts zoned
ingredient lists with the configured vision LLM, and stores confirmed
entries in sqlite.`,
		Example: `  # Start server on default port 8888
  eatzone serve

  # Start server on custom port with a config file
  eatzone serve --config eatzone.yaml --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Server.Port = port
			}

			store, err := storage.Open(cfg.Storage.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			handler := handlers.New(store, analysis.NewService())

			mux := http.NewServeMux()
			handler.Routes(mux)

			addr := ":" + cfg.Server.Port
			server := &http.Server{
				Addr:    addr,
				Handler: mux,
			}

			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Eatzone API available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides config)")

	return cmd
}
