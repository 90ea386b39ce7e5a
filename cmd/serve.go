package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/festlist/internal/repositories"
	"github.com/desertthunder/festlist/internal/server"
	"github.com/desertthunder/festlist/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the flyer-to-playlist HTTP API.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	host := cmd.String("host")
	port := cmd.Int("port")
	if host == "" {
		host = r.config.Server.Host
	}
	if port == 0 {
		port = r.config.Server.Port
	}

	if err := r.ensureCatalogAuth(ctx); err != nil {
		r.logger.Warn("catalog authentication failed; playlist endpoints will reject requests", "error", err)
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	files, err := repositories.NewFileAssetStore(r.config.Storage.UploadDir)
	if err != nil {
		return fmt.Errorf("failed to create upload store: %w", err)
	}
	assets := repositories.NewAssetRepository(db)

	api := server.NewAPIHandler(r.engine, r.ocr, r.text, assets, files, int64(r.config.Storage.MaxUploadMB), r.logger)

	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(api)

	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("serving flyer-to-playlist API", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	notifyCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-notifyCtx.Done():
		r.logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}

	return nil
}

// serveCommand runs the HTTP API server.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the flyer-to-playlist HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host; defaults to the configured value",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port; defaults to the configured value",
			},
		},
		Action: r.Serve,
	}
}
