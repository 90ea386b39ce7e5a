package models

import (
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// ExtractionMethod records which extraction path produced a candidate list.
type ExtractionMethod string

const (
	MethodVision      ExtractionMethod = "vision"       // direct image analysis
	MethodOCRFallback ExtractionMethod = "ocr_fallback" // OCR text + text-based extraction
)

// ArtistCandidate is an artist name extracted from a flyer before user confirmation.
type ArtistCandidate struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// ExtractionResult is the output of one extraction coordinator run.
type ExtractionResult struct {
	Candidates []ArtistCandidate `json:"candidates"`
	Method     ExtractionMethod  `json:"method"`
}

// Track is a catalog track, sourced verbatim from the catalog API.
type Track struct {
	CatalogID  string `json:"catalog_id"`
	Title      string `json:"title"`
	ArtistName string `json:"artist_name"`
	DurationMS int    `json:"duration_ms"`
	Popularity int    `json:"popularity"`
}

// ResolvedArtist is an artist name matched to a catalog entity with at least one
// usable track. Exists only for the duration of one pipeline run.
type ResolvedArtist struct {
	RequestedName   string  `json:"requested_name"`
	CatalogID       string  `json:"catalog_id"`
	MatchConfidence float64 `json:"match_confidence"`
	Tracks          []Track `json:"tracks"`
}

// PlaylistResult is the terminal artifact of one pipeline run. Ownership
// transfers to the caller on return.
type PlaylistResult struct {
	PlaylistID        string        `json:"playlist_id"`
	Name              string        `json:"name"`
	Tracks            []Track       `json:"tracks"`
	SuccessfulArtists []string      `json:"successful_artists"`
	FailedArtists     []string      `json:"failed_artists"`
	TotalTracksAdded  int           `json:"total_tracks_added"`
	Elapsed           time.Duration `json:"elapsed"`
	Partial           bool          `json:"partial"` // some track batches failed after retries
}

// UserIdentity identifies the playlist owner at the catalog service.
type UserIdentity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}
