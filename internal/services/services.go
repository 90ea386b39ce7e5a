package services

import (
	"context"

	"github.com/desertthunder/festlist/internal/models"
)

// CatalogArtist is a single artist search result from the catalog
// provider, before best-match selection.
type CatalogArtist struct {
	CatalogID  string
	Name       string
	Popularity int
}

// Catalog is the streaming catalog surface the resolver and assembler
// depend on. Read operations use application credentials; playlist
// writes require a user access token.
type Catalog interface {
	// Name returns the provider identifier, e.g. "spotify".
	Name() string
	// Authenticate exchanges or installs credentials. Accepts either
	// an "access_token" or an "auth_code" entry.
	Authenticate(ctx context.Context, credentials map[string]string) error
	// SearchArtist returns candidate artists for a name, most relevant
	// first as ranked by the provider.
	SearchArtist(ctx context.Context, name string) ([]CatalogArtist, error)
	// TopTracks returns up to limit of the artist's most popular tracks.
	TopTracks(ctx context.Context, artistID string, limit int) ([]models.Track, error)
	// CurrentUser resolves the identity behind a user access token.
	CurrentUser(ctx context.Context, accessToken string) (*models.UserIdentity, error)
	// CreatePlaylist creates an empty playlist owned by userID and
	// returns its provider ID.
	CreatePlaylist(ctx context.Context, accessToken, userID, name, description string, public bool) (string, error)
	// AddTracks appends tracks to a playlist in provider-sized batches.
	AddTracks(ctx context.Context, accessToken, playlistID string, trackIDs []string) (added int, err error)
}

// VisionAnalyzer reads artist names directly from flyer image bytes.
type VisionAnalyzer interface {
	AnalyzeImage(ctx context.Context, image []byte, mimeType string) ([]models.ArtistCandidate, error)
}

// TextExtractor pulls artist names out of already-recognized text.
type TextExtractor interface {
	ExtractArtists(ctx context.Context, text string) ([]models.ArtistCandidate, error)
}

// OCRText is the recognized text payload from the OCR sidecar.
type OCRText struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Engine     string  `json:"engine"`
	WordCount  int     `json:"word_count"`
}

// OCRRecognizer converts image bytes into text for fallback extraction.
type OCRRecognizer interface {
	Recognize(ctx context.Context, image []byte) (*OCRText, error)
}
