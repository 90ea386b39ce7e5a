// package formatter renders pipeline results to various formats (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/desertthunder/festlist/internal/models"
	"github.com/desertthunder/festlist/internal/shared"
)

// ResultToJSON renders a playlist result as indented JSON.
func ResultToJSON(result *models.PlaylistResult) ([]byte, error) {
	return shared.MarshalJSON(result, true)
}

// CandidatesToCSV converts extraction candidates to CSV with columns: Name, Confidence
func CandidatesToCSV(candidates []models.ArtistCandidate) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Name", "Confidence"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, c := range candidates {
		record := []string{
			c.Name,
			strconv.FormatFloat(c.Confidence, 'f', 2, 64),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ResultToMarkdown converts a playlist result to Markdown format
func ResultToMarkdown(result *models.PlaylistResult) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", result.Name))
	buf.WriteString(fmt.Sprintf("**Playlist ID**: %s\n", result.PlaylistID))
	buf.WriteString(fmt.Sprintf("**Tracks added**: %d\n", result.TotalTracksAdded))
	buf.WriteString(fmt.Sprintf("**Artists**: %d resolved, %d failed\n", len(result.SuccessfulArtists), len(result.FailedArtists)))
	if result.Partial {
		buf.WriteString("**Status**: partial (some track batches failed)\n")
	}
	buf.WriteString("\n")

	if len(result.FailedArtists) > 0 {
		buf.WriteString("## Unresolved Artists\n\n")
		for _, name := range result.FailedArtists {
			buf.WriteString(fmt.Sprintf("- %s\n", name))
		}
		buf.WriteString("\n")
	}

	buf.WriteString("## Tracks\n\n")
	for i, track := range result.Tracks {
		duration := shared.FormatDuration(track.DurationMS)
		buf.WriteString(fmt.Sprintf("%d. %s - %s [%s]\n", i+1, track.ArtistName, track.Title, duration))
	}

	return buf.Bytes(), nil
}

// ResultToText converts a playlist result to plain text format
func ResultToText(result *models.PlaylistResult) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlist: %s (%s)\n", result.Name, result.PlaylistID))
	buf.WriteString(fmt.Sprintf("Tracks added: %d\n", result.TotalTracksAdded))
	if result.Partial {
		buf.WriteString("Status: partial\n")
	}
	if len(result.FailedArtists) > 0 {
		buf.WriteString(fmt.Sprintf("Unresolved: %d\n", len(result.FailedArtists)))
	}
	buf.WriteString("\n")

	for i, track := range result.Tracks {
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, track.ArtistName, track.Title))
	}

	return buf.Bytes(), nil
}

// WriteReport renders a playlist result in the given format and writes it to path.
//
// Defaults to {playlist ID}.{ext} when path is empty. Format falls back to JSON.
func WriteReport(result *models.PlaylistResult, format, path string) (string, error) {
	var (
		data []byte
		err  error
		ext  string
	)

	switch format {
	case "markdown":
		data, err = ResultToMarkdown(result)
		ext = "md"
	case "txt":
		data, err = ResultToText(result)
		ext = "txt"
	case "json":
		fallthrough
	default:
		data, err = ResultToJSON(result)
		ext = "json"
	}
	if err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	if path == "" {
		path = fmt.Sprintf("%s.%s", result.PlaylistID, ext)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	return path, nil
}
