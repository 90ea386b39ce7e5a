package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/festlist/internal/gate"
	"github.com/desertthunder/festlist/internal/models"
	"github.com/desertthunder/festlist/internal/retry"
	"github.com/desertthunder/festlist/internal/services"
	"github.com/desertthunder/festlist/internal/shared"
)

// FailedArtist records an artist name that could not be resolved.
type FailedArtist struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// ResolveOutcome partitions the requested names into resolved artists and
// failures. Every distinct input name lands in exactly one of the two lists,
// both ordered by first appearance in the input.
type ResolveOutcome struct {
	Resolved []models.ResolvedArtist
	Failed   []FailedArtist
}

type resolveJob struct {
	index int
	name  string
}

type resolveResult struct {
	index    int
	name     string
	resolved *models.ResolvedArtist
	err      error
}

// Resolve matches artist names to catalog entities and fetches their top
// tracks using a bounded worker pool. Duplicate names (case-insensitive)
// collapse to one lookup; a name that errors out after retries lands in
// Failed rather than aborting the run.
func (e *Engine) Resolve(ctx context.Context, progress chan<- ProgressUpdate, names []string) (*ResolveOutcome, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrNotAuthenticated)
	}

	distinct := distinctNames(names)
	total := len(distinct)

	outcome := &ResolveOutcome{}
	if total == 0 {
		return outcome, nil
	}

	jobs := make(chan resolveJob, total)
	results := make(chan resolveResult, total)

	var wg sync.WaitGroup
	for i := 0; i < e.opts.Workers; i++ {
		wg.Add(1)
		go e.resolveWorker(ctx, &wg, jobs, results)
	}

	for i, name := range distinct {
		e.sendProgress(progress, resolvingUpdate(i+1, total, name))
		jobs <- resolveJob{index: i, name: name}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]resolveResult, total)
	completed := 0
	for res := range results {
		completed++
		ordered[res.index] = res

		if res.err != nil {
			e.sendProgress(progress, resolveFailedUpdate(completed, total, res.name, res.err.Error()))
		} else {
			e.sendProgress(progress, resolvedUpdate(completed, total, res.name, len(res.resolved.Tracks)))
		}
	}

	for _, res := range ordered {
		if res.err != nil {
			outcome.Failed = append(outcome.Failed, FailedArtist{Name: res.name, Reason: res.err.Error()})
			continue
		}
		outcome.Resolved = append(outcome.Resolved, *res.resolved)
	}

	return outcome, nil
}

// resolveWorker is a worker goroutine that resolves names from the jobs channel.
func (e *Engine) resolveWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan resolveJob, results chan<- resolveResult) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			results <- resolveResult{index: job.index, name: job.name, err: ctx.Err()}
			continue
		default:
		}

		resolved, err := e.resolveOne(ctx, job.name)
		results <- resolveResult{index: job.index, name: job.name, resolved: resolved, err: err}
	}
}

// resolveOne searches the catalog for a single name and fetches the match's
// top tracks. Both hops are retried around the gate so each attempt passes
// admission again and quota rejections keep their rate-limited class.
func (e *Engine) resolveOne(ctx context.Context, name string) (*models.ResolvedArtist, error) {
	key := shared.NormalizeArtistKey(name)

	matches, err := retry.DoValue(ctx, e.policy, func(ctx context.Context) ([]services.CatalogArtist, error) {
		matches, _, err := gate.Through(ctx, e.gate, gate.Request{
			Service:     gate.ServiceSpotify,
			Fingerprint: "search:" + key,
		}, func(ctx context.Context) ([]services.CatalogArtist, error) {
			return e.catalog.SearchArtist(ctx, name)
		})
		return matches, err
	})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, shared.ErrArtistNotFound
	}

	best, confidence := bestMatch(key, matches)

	tracks, err := retry.DoValue(ctx, e.policy, func(ctx context.Context) ([]models.Track, error) {
		tracks, _, err := gate.Through(ctx, e.gate, gate.Request{
			Service:     gate.ServiceSpotify,
			Fingerprint: fmt.Sprintf("toptracks:%s:%d", best.CatalogID, e.opts.TracksPerArtist),
		}, func(ctx context.Context) ([]models.Track, error) {
			return e.catalog.TopTracks(ctx, best.CatalogID, e.opts.TracksPerArtist)
		})
		return tracks, err
	})
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, shared.ErrNoTracks
	}

	return &models.ResolvedArtist{
		RequestedName:   name,
		CatalogID:       best.CatalogID,
		MatchConfidence: confidence,
		Tracks:          tracks,
	}, nil
}

// bestMatch picks the search result to use for a normalized name: an exact
// case-insensitive name match wins, then the highest popularity, then the
// first result as ranked by the provider.
func bestMatch(key string, matches []services.CatalogArtist) (services.CatalogArtist, float64) {
	for _, m := range matches {
		if shared.NormalizeArtistKey(m.Name) == key {
			return m, 1.0
		}
	}

	best := matches[0]
	for _, m := range matches[1:] {
		if m.Popularity > best.Popularity {
			best = m
		}
	}

	confidence := float64(best.Popularity) / 100
	if confidence < 0.1 {
		confidence = 0.1
	}
	if confidence > 1 {
		confidence = 1
	}
	return best, confidence
}

// distinctNames drops case-insensitive duplicates, preserving first-seen
// spelling and order.
func distinctNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	distinct := make([]string, 0, len(names))

	for _, name := range names {
		key := shared.NormalizeArtistKey(name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		distinct = append(distinct, name)
	}

	return distinct
}
