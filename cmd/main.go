package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/festlist/internal/gate"
	"github.com/desertthunder/festlist/internal/repositories"
	"github.com/desertthunder/festlist/internal/services"
	"github.com/desertthunder/festlist/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	configPath := "config.toml"
	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		}
	}

	var spotifyService *services.SpotifyService
	if config.Credentials.Spotify.ClientID != "" && config.Credentials.Spotify.ClientSecret != "" {
		if svc, err := services.NewSpotifyService(config.Credentials.Spotify.Map()); err == nil {
			spotifyService = svc
		} else {
			logger.Warn("spotify service unavailable", "error", err)
		}
	}

	var visionService *services.GeminiService
	if config.Credentials.Gemini.APIKey != "" {
		if svc, err := services.NewGeminiService(config.Credentials.Gemini.APIKey, config.Credentials.Gemini.Model); err == nil {
			visionService = svc
		} else {
			logger.Warn("gemini service unavailable", "error", err)
		}
	}

	ocrService := services.NewOCRService(config.Credentials.OCR.BaseURL, config.Credentials.OCR.Engine, nil)

	// Persist quota events when the database has been set up; commands
	// that run before setup use the in-memory ledger.
	var quotaStore gate.QuotaStore
	if _, err := os.Stat(config.Database.Path); err == nil {
		if db, err := shared.NewDatabase(config.Database.Path); err == nil {
			shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
			quotaStore = repositories.NewQuotaRepository(db)
		}
	}

	opts := RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Spotify:    spotifyService,
		OCR:        ocrService,
		Gate:       buildGate(config, quotaStore, logger),
		Logger:     logger,
	}
	if spotifyService != nil {
		opts.Catalog = spotifyService
	}
	if visionService != nil {
		opts.Vision = visionService
		opts.Text = visionService
	}

	runner := NewRunner(opts)

	app := &cli.Command{
		Name:     "festlist",
		Usage:    "Turn festival flyers into streaming playlists",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		err_ := errors.Unwrap(err)
		if errors.Is(err_, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}
