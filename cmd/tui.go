package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/festlist/internal/pipeline"
	"github.com/desertthunder/festlist/internal/shared"
	"github.com/desertthunder/festlist/internal/ui"
	"github.com/urfave/cli/v3"
)

// Review extracts artists from a flyer and launches the interactive
// review TUI to curate the list before building the playlist.
func (r *Runner) Review(ctx context.Context, cmd *cli.Command) error {
	imagePath := cmd.StringArg("image")
	threshold := cmd.Float64("threshold")

	accessToken, err := r.accessToken(cmd)
	if err != nil {
		return err
	}

	if err := r.ensureCatalogAuth(ctx); err != nil {
		return err
	}

	image, mimeType, err := readImage(imagePath)
	if err != nil {
		return err
	}

	r.writePlain("Extracting artists from %s...\n", imagePath)

	result, err := r.engine.Extract(ctx, nil, pipeline.ExtractionRequest{
		Image:     image,
		MIMEType:  mimeType,
		Threshold: threshold,
	})
	if err != nil {
		return err
	}
	if len(result.Candidates) == 0 {
		return fmt.Errorf("%w: no artist names found on flyer", shared.ErrExtractionFailed)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/festlist-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, r.engine, result.Candidates, pipeline.AssembleRequest{
		AccessToken: accessToken,
		Name:        cmd.String("name"),
		Description: cmd.String("description"),
		Public:      cmd.Bool("public"),
	})
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// reviewCommand launches the interactive candidate review TUI.
func reviewCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "review",
		Aliases: []string{"tui", "interactive"},
		Usage:   "Review extracted artists interactively before building a playlist",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "image",
			},
		},
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:  "threshold",
				Usage: "Minimum candidate confidence (0-1)",
			},
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Playlist name",
			},
			&cli.StringFlag{
				Name:    "description",
				Aliases: []string{"d"},
				Usage:   "Playlist description",
			},
			&cli.BoolFlag{
				Name:  "public",
				Usage: "Make the playlist public",
			},
			&cli.StringFlag{
				Name:  "access-token",
				Usage: "Spotify user access token; defaults to the stored token",
			},
		},
		Action: r.Review,
	}
}
