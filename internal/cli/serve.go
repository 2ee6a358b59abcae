package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/BerylCAtieno/travel-extract/internal/db"
	"github.com/BerylCAtieno/travel-extract/internal/repository"
	"github.com/BerylCAtieno/travel-extract/internal/router"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			// Run migrations
			if err := db.RunMigrations(cfg.DatabasePath); err != nil {
				return err
			}

			database, err := db.NewSQLiteDB(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer database.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			stager, err := newStager(ctx, cfg, logger)
			if err != nil {
				return err
			}
			model, err := newModel(cfg, logger)
			if err != nil {
				return err
			}
			svc := newService(cfg, model, repository.NewRepository(database), stager, logger)

			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           router.NewRouter(svc, cfg.MaxFileSize, logger),
				ReadHeaderTimeout: 15 * time.Second,
				ReadTimeout:       60 * time.Second,
				// OCR plus a model call can take well over a minute.
				WriteTimeout: cfg.OCRTimeout + 2*cfg.ModelTimeout + 30*time.Second,
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Starting server", "port", cfg.Port, "model", cfg.ModelName)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}

			logger.Info("Server exited")
			return nil
		},
	}
}
