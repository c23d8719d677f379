// =============================================================================
// SEPA Direct Debit Generator - Serve Command
// =============================================================================
//
// This file defines the 'serve' command, which exposes the pipeline over HTTP.
//
// COMMAND USAGE:
//   lastschrift serve [--addr :8080]
//
// ROUTES:
//   GET  /healthz
//   POST /api/v1/preview
//   POST /api/v1/generate
//   POST /api/v1/validate/{iban,bic,creditor-id}
//
// The server stops gracefully on SIGINT or SIGTERM.
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/clubsepa/lastschrift/internal/api"
	"github.com/clubsepa/lastschrift/internal/converter"
	"github.com/clubsepa/lastschrift/internal/logging"
)

const shutdownTimeout = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `The serve command starts an HTTP server that previews and generates
direct debit files from uploaded member exports. The club and mapping from the
configuration are used unless a request supplies its own.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default is server.addr from the configuration)")
}

func runServe(cmd *cobra.Command) error {
	mainConfig, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		mainConfig.Server.Addr = serveAddr
	}

	logger, err := newLogger(mainConfig, logging.FormatJSON)
	if err != nil {
		return err
	}
	defer logger.Sync()

	srv := &http.Server{
		Addr:              mainConfig.Server.Addr,
		Handler:           api.NewRouter(mainConfig, converter.NewPipeline(logger), logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-cmd.Context().Done():
	}

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
