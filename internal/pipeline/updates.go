package pipeline

import "fmt"

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ExtractVision Phase = iota
	ExtractOCR
	ResolveArtists
	FetchTracks
	CreatePlaylist
	AddTracks
)

func (p Phase) String() string {
	switch p {
	case ExtractVision:
		return "extract_vision"
	case ExtractOCR:
		return "extract_ocr"
	case ResolveArtists:
		return "resolve_artists"
	case FetchTracks:
		return "fetch_tracks"
	case CreatePlaylist:
		return "create_playlist"
	case AddTracks:
		return "add_tracks"
	default:
		return ""
	}
}

func visionUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExtractVision,
		Step:    1,
		Total:   1,
		Message: "Reading artist names from flyer image...",
	}
}

func ocrFallbackUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExtractOCR,
		Step:    1,
		Total:   1,
		Message: "Vision came up empty, falling back to OCR...",
	}
}

func candidatesFoundUpdate(count int, method string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExtractVision,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d artist candidates via %s", count, method),
	}
}

func resolvingUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveArtists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Resolving: %s...", step, total, name),
	}
}

func resolvedUpdate(step, total int, name string, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d tracks)", step, total, name, tracks),
	}
}

func resolveFailedUpdate(step, total int, name, reason string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveArtists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %s", step, total, name, reason),
	}
}

func createPlaylistUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist: %s...", name),
	}
}

func addTracksUpdate(step, total, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Adding batch of %d tracks...", step, total, count),
	}
}

func batchFailedUpdate(step, total int, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ Batch failed: %v", step, total, err),
	}
}
