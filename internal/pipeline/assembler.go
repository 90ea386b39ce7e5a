package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/festlist/internal/gate"
	"github.com/desertthunder/festlist/internal/models"
	"github.com/desertthunder/festlist/internal/retry"
	"github.com/desertthunder/festlist/internal/shared"
)

// trackBatchSize is how many tracks go into one playlist addition call.
const trackBatchSize = 100

// AssembleRequest carries the playlist parameters for assembly.
type AssembleRequest struct {
	AccessToken string
	UserID      string // Catalog user ID; resolved via CurrentUser when empty
	Name        string
	Description string
	Public      bool
}

// Assemble creates the playlist and adds every resolved artist's tracks.
//
// Playlist creation is fatal when it fails after retries. Track additions
// run in batches; a failed batch marks the result partial and the
// remaining batches still run.
func (e *Engine) Assemble(ctx context.Context, progress chan<- ProgressUpdate, outcome *ResolveOutcome, req AssembleRequest) (*models.PlaylistResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrNotAuthenticated)
	}
	if len(outcome.Resolved) == 0 {
		return nil, fmt.Errorf("%w: no artists resolved - cannot create empty playlist", shared.ErrPlaylistCreateFailed)
	}

	started := time.Now()

	if req.Name == "" {
		req.Name = "Festival Playlist"
	}
	if req.Description == "" {
		req.Description = fmt.Sprintf("Festival playlist with %d artists", len(outcome.Resolved))
	}

	userID := req.UserID
	if userID == "" {
		identity, err := retry.DoValue(ctx, e.policy, func(ctx context.Context) (*models.UserIdentity, error) {
			return e.catalog.CurrentUser(ctx, req.AccessToken)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to resolve playlist owner: %w", err)
		}
		userID = identity.ID
	}

	e.sendProgress(progress, createPlaylistUpdate(req.Name))

	playlistID, err := retry.DoValue(ctx, e.policy, func(ctx context.Context) (string, error) {
		id, _, err := gate.Through(ctx, e.gate, gate.Request{
			Service:   gate.ServiceSpotify,
			QuotaUser: userID,
		}, func(ctx context.Context) (string, error) {
			return e.catalog.CreatePlaylist(ctx, req.AccessToken, userID, req.Name, req.Description, req.Public)
		})
		return id, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrPlaylistCreateFailed, err)
	}

	result := &models.PlaylistResult{
		PlaylistID: playlistID,
		Name:       req.Name,
	}
	for _, artist := range outcome.Resolved {
		result.SuccessfulArtists = append(result.SuccessfulArtists, artist.RequestedName)
	}
	for _, failed := range outcome.Failed {
		result.FailedArtists = append(result.FailedArtists, failed.Name)
	}

	tracks := flattenTracks(outcome.Resolved)
	batches := (len(tracks) + trackBatchSize - 1) / trackBatchSize

	for i := 0; i < batches; i++ {
		chunk := tracks[i*trackBatchSize : min((i+1)*trackBatchSize, len(tracks))]
		e.sendProgress(progress, addTracksUpdate(i+1, batches, len(chunk)))

		ids := make([]string, 0, len(chunk))
		for _, t := range chunk {
			ids = append(ids, t.CatalogID)
		}

		_, err := retry.DoValue(ctx, e.policy, func(ctx context.Context) (int, error) {
			added, _, err := gate.Through(ctx, e.gate, gate.Request{
				Service: gate.ServiceSpotify,
			}, func(ctx context.Context) (int, error) {
				return e.catalog.AddTracks(ctx, req.AccessToken, result.PlaylistID, ids)
			})
			return added, err
		})
		if err != nil {
			e.logger.Warn("track batch failed", "batch", i+1, "error", err)
			e.sendProgress(progress, batchFailedUpdate(i+1, batches, err))
			result.Partial = true
			continue
		}

		result.Tracks = append(result.Tracks, chunk...)
		result.TotalTracksAdded += len(chunk)
	}

	result.Elapsed = time.Since(started)
	return result, nil
}

// flattenTracks concatenates each artist's tracks in resolution order,
// dropping catalog IDs already seen so shared tracks are added once.
func flattenTracks(artists []models.ResolvedArtist) []models.Track {
	seen := make(map[string]bool)
	var tracks []models.Track

	for _, artist := range artists {
		for _, track := range artist.Tracks {
			if track.CatalogID == "" || seen[track.CatalogID] {
				continue
			}
			seen[track.CatalogID] = true
			tracks = append(tracks, track)
		}
	}

	return tracks
}
