package pipeline

import (
	"context"
	"fmt"

	"github.com/desertthunder/festlist/internal/gate"
	"github.com/desertthunder/festlist/internal/models"
	"github.com/desertthunder/festlist/internal/retry"
	"github.com/desertthunder/festlist/internal/shared"
)

// ExtractionRequest identifies one flyer image to extract artist names from.
type ExtractionRequest struct {
	Image     []byte
	MIMEType  string
	UserID    string  // Charged against the per-user quota; empty skips it
	Threshold float64 // Overrides the engine confidence threshold when > 0
}

// extractionState drives the vision-then-OCR fallback sequence.
type extractionState int

const (
	stateTryVision extractionState = iota
	stateTryOCR
	stateSucceeded
	stateFailed
)

// Extract reads artist candidates off a flyer image.
//
// Vision analysis runs first; when it errors out or finds nothing the
// coordinator falls back to OCR plus text extraction. Raw candidate
// lists are cached by image fingerprint, so a repeat of the same bytes
// is served without touching the providers. The confidence threshold
// and duplicate folding apply after the cache.
func (e *Engine) Extract(ctx context.Context, progress chan<- ProgressUpdate, req ExtractionRequest) (*models.ExtractionResult, error) {
	if len(req.Image) == 0 {
		return nil, fmt.Errorf("%w: empty image", shared.ErrInvalidInput)
	}

	threshold := req.Threshold
	if threshold <= 0 {
		threshold = e.opts.ConfidenceThreshold
	}

	fingerprint := shared.FingerprintBytes(req.Image)

	var (
		candidates []models.ArtistCandidate
		method     models.ExtractionMethod
		visionErr  error
	)

	state := stateTryVision
	for state != stateSucceeded && state != stateFailed {
		switch state {
		case stateTryVision:
			e.sendProgress(progress, visionUpdate())

			candidates, visionErr = e.extractVision(ctx, fingerprint, req)
			if visionErr != nil {
				e.logger.Warn("vision extraction failed", "error", visionErr)
				state = stateTryOCR
				break
			}
			if len(candidates) == 0 {
				state = stateTryOCR
				break
			}
			method = models.MethodVision
			state = stateSucceeded

		case stateTryOCR:
			e.sendProgress(progress, ocrFallbackUpdate())

			ocrCandidates, err := e.extractOCR(ctx, fingerprint, req)
			if err != nil {
				e.logger.Warn("ocr fallback failed", "error", err)
				state = stateFailed
				break
			}
			candidates = ocrCandidates
			method = models.MethodOCRFallback
			state = stateSucceeded
		}
	}

	if state == stateFailed {
		// A vision run that succeeded with zero candidates still counts as a
		// result; only a double failure surfaces as an extraction error.
		if visionErr != nil {
			return nil, fmt.Errorf("%w: vision and ocr both failed: %w", shared.ErrExtractionFailed, visionErr)
		}
		candidates = nil
		method = models.MethodOCRFallback
	}

	result := &models.ExtractionResult{
		Candidates: filterByConfidence(dedupeCandidates(candidates), threshold),
		Method:     method,
	}

	e.sendProgress(progress, candidatesFoundUpdate(len(result.Candidates), string(result.Method)))
	return result, nil
}

// extractVision runs retried, gated vision analysis on the image. The retry
// policy sits outside the gate so quota and limiter rejections back off and
// re-enter admission like any other rate-limited failure.
func (e *Engine) extractVision(ctx context.Context, fingerprint string, req ExtractionRequest) ([]models.ArtistCandidate, error) {
	if e.vision == nil {
		return nil, fmt.Errorf("%w: vision analyzer not configured", shared.ErrServiceUnavailable)
	}
	return retry.DoValue(ctx, e.policy, func(ctx context.Context) ([]models.ArtistCandidate, error) {
		candidates, _, err := gate.Through(ctx, e.gate, gate.Request{
			Service:     gate.ServiceGemini,
			Fingerprint: fingerprint,
			QuotaUser:   req.UserID,
		}, func(ctx context.Context) ([]models.ArtistCandidate, error) {
			return e.vision.AnalyzeImage(ctx, req.Image, req.MIMEType)
		})
		return candidates, err
	})
}

// extractOCR recognizes text in the image and extracts artist names from it.
// Both hops happen inside one gated call so the combined result caches as a unit.
func (e *Engine) extractOCR(ctx context.Context, fingerprint string, req ExtractionRequest) ([]models.ArtistCandidate, error) {
	if e.ocr == nil || e.text == nil {
		return nil, fmt.Errorf("%w: ocr fallback not configured", shared.ErrServiceUnavailable)
	}
	return retry.DoValue(ctx, e.policy, func(ctx context.Context) ([]models.ArtistCandidate, error) {
		candidates, _, err := gate.Through(ctx, e.gate, gate.Request{
			Service:     gate.ServiceOCR,
			Fingerprint: fingerprint,
			QuotaUser:   req.UserID,
		}, func(ctx context.Context) ([]models.ArtistCandidate, error) {
			recognized, err := e.ocr.Recognize(ctx, req.Image)
			if err != nil {
				return nil, err
			}
			return e.text.ExtractArtists(ctx, recognized.Text)
		})
		return candidates, err
	})
}

// dedupeCandidates folds duplicate names case-insensitively, keeping the
// highest confidence seen and the first-seen spelling and position.
func dedupeCandidates(candidates []models.ArtistCandidate) []models.ArtistCandidate {
	seen := make(map[string]int, len(candidates))
	deduped := make([]models.ArtistCandidate, 0, len(candidates))

	for _, c := range candidates {
		key := shared.NormalizeArtistKey(c.Name)
		if key == "" {
			continue
		}

		if i, ok := seen[key]; ok {
			if c.Confidence > deduped[i].Confidence {
				deduped[i].Confidence = c.Confidence
			}
			continue
		}

		seen[key] = len(deduped)
		deduped = append(deduped, c)
	}

	return deduped
}

func filterByConfidence(candidates []models.ArtistCandidate, threshold float64) []models.ArtistCandidate {
	kept := make([]models.ArtistCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Confidence >= threshold {
			kept = append(kept, c)
		}
	}
	return kept
}
