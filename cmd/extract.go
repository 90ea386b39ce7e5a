package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/festlist/internal/formatter"
	"github.com/desertthunder/festlist/internal/pipeline"
	"github.com/urfave/cli/v3"
)

// Extract reads artist candidates off a flyer image and prints them.
func (r *Runner) Extract(ctx context.Context, cmd *cli.Command) error {
	imagePath := cmd.StringArg("image")
	threshold := cmd.Float64("threshold")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")
	csvPath := cmd.String("csv")

	image, mimeType, err := readImage(imagePath)
	if err != nil {
		return err
	}

	r.logger.Info("extracting artists from flyer", "path", imagePath, "type", mimeType)

	progressCh := make(chan pipeline.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			r.writePlain("%s\n", update.Message)
		}
	}()

	result, err := r.engine.Extract(ctx, progressCh, pipeline.ExtractionRequest{
		Image:     image,
		MIMEType:  mimeType,
		Threshold: threshold,
	})
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	if csvPath != "" {
		data, err := formatter.CandidatesToCSV(result.Candidates)
		if err != nil {
			return err
		}
		if err := os.WriteFile(csvPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write CSV: %w", err)
		}
		r.writePlain("✓ Candidates written to %s\n", csvPath)
		return nil
	}

	if useJSON {
		return r.writeJSON(result, pretty)
	}

	r.writePlain("\nFound %d artists (via %s):\n\n", len(result.Candidates), result.Method)
	for i, c := range result.Candidates {
		r.writePlain("%d. %s (%.0f%%)\n", i+1, c.Name, c.Confidence*100)
	}

	return nil
}

// extractCommand reads artist names from a flyer image.
func extractCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "Extract artist names from a festival flyer image",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "image",
			},
		},
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:  "threshold",
				Usage: "Minimum candidate confidence (0-1); defaults to the configured value",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
			&cli.StringFlag{
				Name:  "csv",
				Usage: "Write candidates to a CSV file instead of stdout",
			},
		},
		Action: r.Extract,
	}
}
