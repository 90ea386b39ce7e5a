package main

import (
	"context"
	"strings"
	"time"

	"github.com/desertthunder/festlist/internal/formatter"
	"github.com/desertthunder/festlist/internal/models"
	"github.com/desertthunder/festlist/internal/pipeline"
	"github.com/urfave/cli/v3"
)

// PlaylistCreate runs the full flyer-to-playlist pipeline, or resolves an
// explicit artist list when --artists is given.
func (r *Runner) PlaylistCreate(ctx context.Context, cmd *cli.Command) error {
	imagePath := cmd.String("image")
	artistsFlag := cmd.String("artists")
	name := cmd.String("name")
	description := cmd.String("description")
	public := cmd.Bool("public")
	threshold := cmd.Float64("threshold")
	reportPath := cmd.String("report")
	reportFormat := cmd.String("format")

	accessToken, err := r.accessToken(cmd)
	if err != nil {
		return err
	}

	if err := r.ensureCatalogAuth(ctx); err != nil {
		return err
	}

	progressCh := make(chan pipeline.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case pipeline.ExtractVision, pipeline.ExtractOCR:
				r.writePlain("🖼  %s\n", update.Message)
			case pipeline.ResolveArtists, pipeline.FetchTracks:
				if update.Step <= 1 {
					r.writePlain("\n🔍 %s\n", update.Message)
				} else {
					r.writePlain("   %s\n", update.Message)
				}
			case pipeline.CreatePlaylist:
				r.writePlain("\n📝 %s\n", update.Message)
			case pipeline.AddTracks:
				r.writePlain("   %s\n", update.Message)
			}
		}
	}()

	var result *models.PlaylistResult

	if artistsFlag != "" {
		names := splitArtists(artistsFlag)
		result, err = r.buildFromNames(ctx, progressCh, names, pipeline.AssembleRequest{
			AccessToken: accessToken,
			Name:        name,
			Description: description,
			Public:      public,
		})
	} else {
		var image []byte
		var mimeType string
		image, mimeType, err = readImage(imagePath)
		if err == nil {
			result, err = r.engine.Run(ctx, progressCh, pipeline.RunRequest{
				Image:       image,
				MIMEType:    mimeType,
				AccessToken: accessToken,
				Name:        name,
				Description: description,
				Public:      public,
				Threshold:   threshold,
			})
		}
	}

	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Playlist Created!")
	r.writePlain("Name: %s\n", result.Name)
	r.writePlain("ID: %s\n", result.PlaylistID)
	r.writePlain("Tracks added: %d\n", result.TotalTracksAdded)
	r.writePlain("Artists: %d resolved, %d failed\n", len(result.SuccessfulArtists), len(result.FailedArtists))
	r.writePlain("Elapsed: %s\n", result.Elapsed.Round(time.Millisecond))

	if result.Partial {
		r.writePlain("\n⚠ Some track batches failed; the playlist is incomplete.\n")
	}

	if len(result.FailedArtists) > 0 {
		r.writePlain("\nCould not resolve %d artists:\n", len(result.FailedArtists))
		for _, artist := range result.FailedArtists {
			r.writePlain("  - %s\n", artist)
		}
	}

	if reportPath != "" || reportFormat != "" {
		path, err := formatter.WriteReport(result, reportFormat, reportPath)
		if err != nil {
			return err
		}
		r.writePlain("\n✓ Report written to %s\n", path)
	}

	return nil
}

// buildFromNames skips extraction and resolves an explicit artist list.
func (r *Runner) buildFromNames(ctx context.Context, progressCh chan pipeline.ProgressUpdate, names []string, req pipeline.AssembleRequest) (*models.PlaylistResult, error) {
	started := time.Now()

	outcome, err := r.engine.Resolve(ctx, progressCh, names)
	if err != nil {
		return nil, err
	}

	result, err := r.engine.Assemble(ctx, progressCh, outcome, req)
	if err != nil {
		return nil, err
	}

	result.Elapsed = time.Since(started)
	return result, nil
}

func splitArtists(s string) []string {
	var names []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

// playlistCommand handles playlist creation.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlist",
		Usage: "Playlist operations",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a playlist from a flyer image or an explicit artist list",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "image",
						Aliases: []string{"i"},
						Usage:   "Path to the flyer image",
					},
					&cli.StringFlag{
						Name:  "artists",
						Usage: "Comma-separated artist names; skips extraction",
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
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Minimum candidate confidence (0-1)",
					},
					&cli.StringFlag{
						Name:  "access-token",
						Usage: "Spotify user access token; defaults to the stored token",
					},
					&cli.StringFlag{
						Name:    "report",
						Aliases: []string{"o"},
						Usage:   "Write a run report to this path",
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Report format: json, markdown or txt",
					},
				},
				Action: r.PlaylistCreate,
			},
		},
	}
}
