package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/festlist/internal/gate"
	"github.com/desertthunder/festlist/internal/pipeline"
	"github.com/desertthunder/festlist/internal/retry"
	"github.com/desertthunder/festlist/internal/services"
	"github.com/desertthunder/festlist/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	catalog    services.Catalog
	spotify    *services.SpotifyService
	vision     services.VisionAnalyzer
	ocr        services.OCRRecognizer
	text       services.TextExtractor
	gate       *gate.Gate
	engine     *pipeline.Engine
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Catalog    services.Catalog
	Spotify    *services.SpotifyService
	Vision     services.VisionAnalyzer
	OCR        services.OCRRecognizer
	Text       services.TextExtractor
	Gate       *gate.Gate
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Gate == nil {
		opts.Gate = buildGate(opts.Config, nil, opts.Logger)
	}

	policy := retry.Policy{
		MaxAttempts: opts.Config.Pipeline.MaxAttempts,
		CallTimeout: opts.Config.Pipeline.CallTimeout(),
	}

	engine := pipeline.NewEngine(opts.Catalog, opts.Vision, opts.OCR, opts.Text, opts.Gate, policy, pipeline.Options{
		Workers:             opts.Config.Pipeline.Workers,
		TracksPerArtist:     opts.Config.Pipeline.TracksPerArtist,
		ConfidenceThreshold: opts.Config.Pipeline.ConfidenceThreshold,
	})

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		catalog:    opts.Catalog,
		spotify:    opts.Spotify,
		vision:     opts.Vision,
		ocr:        opts.OCR,
		text:       opts.Text,
		gate:       opts.Gate,
		engine:     engine,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// buildGate constructs the shared admission gate from config. The quota
// ledger falls back to memory when no store is supplied.
func buildGate(config *shared.Config, store gate.QuotaStore, logger *log.Logger) *gate.Gate {
	return gate.New(gate.Options{
		Limits: map[gate.ServiceName]rate.Limit{
			gate.ServiceSpotify: rate.Limit(config.Gate.SpotifyRPS),
			gate.ServiceGemini:  rate.Limit(config.Gate.GeminiRPS),
			gate.ServiceOCR:     rate.Limit(config.Gate.OCRRPS),
		},
		MaxInFlight: config.Gate.MaxInFlight,
		UserQuota:   config.Gate.UserQuota,
		QuotaWindow: config.Gate.QuotaWindow(),
		CacheTTL:    config.Gate.CacheTTL(),
		CacheSize:   config.Gate.CacheSize,
		QuotaStore:  store,
		Logger:      logger,
	})
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, extractCommand, playlistCommand, reviewCommand, serveCommand, cacheCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger swaps the runner's logger, e.g. to a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// saveTokens persists OAuth tokens to the runner's config file. With no
// config path set the tokens are only updated in memory.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("config is nil")
	}

	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}

	if r.configPath == "" {
		return nil
	}

	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// ensureCatalogAuth installs catalog credentials for reads: the stored
// user token when the user has authorized, otherwise the client
// credentials grant.
func (r *Runner) ensureCatalogAuth(ctx context.Context) error {
	if r.catalog == nil {
		return fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}

	credentials := map[string]string{}
	if token := r.config.Credentials.Spotify.Token(); token != nil {
		credentials["access_token"] = token.AccessToken
	}

	return r.catalog.Authenticate(ctx, credentials)
}

// accessToken returns the user token for playlist writes, preferring the
// flag over the stored config token.
func (r *Runner) accessToken(cmd *cli.Command) (string, error) {
	if token := cmd.String("access-token"); token != "" {
		return token, nil
	}
	if token := r.config.Credentials.Spotify.Token(); token != nil {
		return token.AccessToken, nil
	}
	return "", fmt.Errorf("%w: no access token; run 'festlist auth spotify' first or pass --access-token", shared.ErrNotAuthenticated)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// readImage loads a flyer image from disk and sniffs its content type.
func readImage(path string) ([]byte, string, error) {
	if path == "" {
		return nil, "", fmt.Errorf("%w: image path is required", shared.ErrMissingArgument)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: image file is empty", shared.ErrInvalidInput)
	}

	return data, http.DetectContentType(data), nil
}
