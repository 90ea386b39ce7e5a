package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Gate        GateConfig        `toml:"gate"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Storage     StorageConfig     `toml:"storage"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Gemini  GeminiConfig  `toml:"gemini"`
	OCR     OCRConfig     `toml:"ocr"`
}

// SpotifyConfig contains Spotify API credentials and, once the user has
// authorized, the persisted OAuth2 tokens.
type SpotifyConfig struct {
	ClientID     string    `toml:"client_id"`
	ClientSecret string    `toml:"client_secret"`
	RedirectURI  string    `toml:"redirect_uri"`
	AccessToken  string    `toml:"access_token,omitempty"`
	RefreshToken string    `toml:"refresh_token,omitempty"`
	TokenExpiry  time.Time `toml:"token_expiry,omitempty"`
}

// Map converts the credentials to the map form service constructors accept.
func (s *SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
	}
}

// Update stores the tokens from a completed authorization flow.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("no access token to store")
	}
	s.AccessToken = token.AccessToken
	s.RefreshToken = token.RefreshToken
	s.TokenExpiry = token.Expiry
	return nil
}

// Token reconstructs the stored [oauth2.Token], or nil when the user has
// never authorized.
func (s *SpotifyConfig) Token() *oauth2.Token {
	if s.AccessToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		Expiry:       s.TokenExpiry,
	}
}

// GeminiConfig contains Gemini API credentials and model selection.
type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// OCRConfig contains the OCR sidecar connection settings.
type OCRConfig struct {
	BaseURL string `toml:"base_url"`
	Engine  string `toml:"engine"`
}

// GateConfig contains rate limiter, quota and cache settings shared by all pipeline runs.
type GateConfig struct {
	SpotifyRPS       float64 `toml:"spotify_rps"`
	GeminiRPS        float64 `toml:"gemini_rps"`
	OCRRPS           float64 `toml:"ocr_rps"`
	MaxInFlight      int     `toml:"max_in_flight"`
	UserQuota        int     `toml:"user_quota"`
	QuotaWindowHours int     `toml:"quota_window_hours"`
	CacheTTLMinutes  int     `toml:"cache_ttl_minutes"`
	CacheSize        int     `toml:"cache_size"`
}

// QuotaWindow returns the sliding window duration for per-user quotas.
func (g GateConfig) QuotaWindow() time.Duration {
	return time.Duration(g.QuotaWindowHours) * time.Hour
}

// CacheTTL returns the response cache time-to-live.
func (g GateConfig) CacheTTL() time.Duration {
	return time.Duration(g.CacheTTLMinutes) * time.Minute
}

// PipelineConfig contains tunables for a pipeline run.
type PipelineConfig struct {
	Workers             int     `toml:"workers"`
	TracksPerArtist     int     `toml:"tracks_per_artist"`
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	MaxAttempts         int     `toml:"max_attempts"`
	CallTimeoutSeconds  int     `toml:"call_timeout_seconds"`
}

// CallTimeout returns the bounded per-external-call timeout.
func (p PipelineConfig) CallTimeout() time.Duration {
	return time.Duration(p.CallTimeoutSeconds) * time.Second
}

// StorageConfig contains flyer upload storage settings.
type StorageConfig struct {
	UploadDir   string `toml:"upload_dir"`
	MaxUploadMB int    `toml:"max_upload_mb"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// SaveConfig writes the configuration back to disk as TOML.
func SaveConfig(path string, config *Config) error {
	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
