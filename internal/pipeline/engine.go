package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/festlist/internal/gate"
	"github.com/desertthunder/festlist/internal/models"
	"github.com/desertthunder/festlist/internal/retry"
	"github.com/desertthunder/festlist/internal/services"
	"github.com/desertthunder/festlist/internal/shared"
)

// Options tunes a pipeline run.
type Options struct {
	Workers             int     // Concurrent resolver workers (default 5, capped at 10)
	TracksPerArtist     int     // Top tracks fetched per resolved artist (default 3)
	ConfidenceThreshold float64 // Candidates below this are dropped (default 0.7)
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 5
	}
	if o.Workers > 10 {
		o.Workers = 10
	}
	if o.TracksPerArtist <= 0 {
		o.TracksPerArtist = 3
	}
	if o.ConfidenceThreshold <= 0 {
		o.ConfidenceThreshold = 0.7
	}
	return o
}

// Engine orchestrates flyer-to-playlist runs.
// Contains dependencies on the catalog, the extraction providers, and the gate.
type Engine struct {
	catalog services.Catalog
	vision  services.VisionAnalyzer
	ocr     services.OCRRecognizer
	text    services.TextExtractor
	gate    *gate.Gate
	policy  retry.Policy
	opts    Options
	logger  *log.Logger
}

// NewEngine creates an Engine with the provided providers and gate.
func NewEngine(catalog services.Catalog, vision services.VisionAnalyzer, ocr services.OCRRecognizer, text services.TextExtractor, g *gate.Gate, policy retry.Policy, opts Options) *Engine {
	return &Engine{
		catalog: catalog,
		vision:  vision,
		ocr:     ocr,
		text:    text,
		gate:    g,
		policy:  policy,
		opts:    opts.withDefaults(),
		logger:  shared.NewLogger(nil).With("component", "pipeline"),
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

// RunRequest carries everything one end-to-end run needs.
type RunRequest struct {
	Image       []byte
	MIMEType    string
	AccessToken string // User token for playlist writes
	UserID      string // Catalog user ID; resolved via CurrentUser when empty
	Name        string // Playlist name; defaulted when empty
	Description string // Playlist description; defaulted when empty
	Public      bool
	Threshold   float64 // Overrides the engine confidence threshold when > 0
}

// Run performs a full flyer-to-playlist run: extraction, resolution, assembly.
func (e *Engine) Run(ctx context.Context, progress chan<- ProgressUpdate, req RunRequest) (*models.PlaylistResult, error) {
	started := time.Now()

	extraction, err := e.Extract(ctx, progress, ExtractionRequest{
		Image:     req.Image,
		MIMEType:  req.MIMEType,
		UserID:    req.UserID,
		Threshold: req.Threshold,
	})
	if err != nil {
		return nil, err
	}
	if len(extraction.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no artist names found on flyer", shared.ErrExtractionFailed)
	}

	names := make([]string, 0, len(extraction.Candidates))
	for _, c := range extraction.Candidates {
		names = append(names, c.Name)
	}

	outcome, err := e.Resolve(ctx, progress, names)
	if err != nil {
		return nil, err
	}

	result, err := e.Assemble(ctx, progress, outcome, AssembleRequest{
		AccessToken: req.AccessToken,
		UserID:      req.UserID,
		Name:        req.Name,
		Description: req.Description,
		Public:      req.Public,
	})
	if err != nil {
		return nil, err
	}

	result.Elapsed = time.Since(started)
	return result, nil
}
