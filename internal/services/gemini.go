// Gemini API implementation of [VisionAnalyzer] and [TextExtractor]
//
// Request/response types based on https://ai.google.dev/api/generate-content
package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/desertthunder/festlist/internal/models"
	"github.com/desertthunder/festlist/internal/shared"
)

const (
	geminiBaseURL      = "https://generativelanguage.googleapis.com"
	geminiDefaultModel = "gemini-2.0-flash"
)

const visionPrompt = `Analyze this music festival flyer and list every performing artist or band name you can read.

Return ONLY a JSON array, no other text, in this form:
[{"name": "Artist Name", "confidence": 0.95}]

Confidence is your certainty from 0.0 to 1.0 that the text is an artist name.
Exclude venue names, dates, stage names, sponsors, and ticketing text.`

const textPrompt = `The following text was OCR'd from a music festival flyer. List every performing artist or band name in it.

Return ONLY a JSON array, no other text, in this form:
[{"name": "Artist Name", "confidence": 0.95}]

Confidence is your certainty from 0.0 to 1.0 that the text is an artist name.
Exclude venue names, dates, stage names, sponsors, and ticketing text.

Text:
%s`

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// GeminiService calls the Gemini generateContent API to read artist
// names off flyer images and OCR'd text.
type GeminiService struct {
	apiKey     string
	model      string
	httpClient *http.Client
	baseURL    string
}

// NewGeminiService creates a Gemini client. An empty model falls back
// to the default flash model.
func NewGeminiService(apiKey, model string) (*GeminiService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing gemini api key")
	}
	if model == "" {
		model = geminiDefaultModel
	}
	return &GeminiService{
		apiKey:     apiKey,
		model:      model,
		httpClient: http.DefaultClient,
		baseURL:    geminiBaseURL,
	}, nil
}

func (g *GeminiService) Name() string {
	return "gemini"
}

// AnalyzeImage sends the flyer image to the vision model and parses the
// artist candidates out of its reply.
func (g *GeminiService) AnalyzeImage(ctx context.Context, image []byte, mimeType string) ([]models.ArtistCandidate, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", shared.ErrExtractionFailed)
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	parts := []geminiPart{
		{Text: visionPrompt},
		{InlineData: &geminiInlineData{
			MIMEType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(image),
		}},
	}

	raw, err := g.generate(ctx, parts)
	if err != nil {
		return nil, err
	}
	return parseCandidates(raw)
}

// ExtractArtists asks the text model for artist names in OCR'd text.
func (g *GeminiService) ExtractArtists(ctx context.Context, text string) ([]models.ArtistCandidate, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	parts := []geminiPart{{Text: fmt.Sprintf(textPrompt, text)}}

	raw, err := g.generate(ctx, parts)
	if err != nil {
		return nil, err
	}
	return parseCandidates(raw)
}

// generate runs one generateContent call and returns the concatenated
// text parts of the first candidate.
func (g *GeminiService) generate(ctx context.Context, parts []geminiPart) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{{Parts: parts}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     0.1,
			TopP:            0.8,
			MaxOutputTokens: 4096,
		},
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode request body: %w", err)
	}

	apiURL := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewBuffer(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: request failed: %v", shared.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: gemini API status %d", shared.ClassifyStatus(resp.StatusCode), resp.StatusCode)
	}

	var response geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(response.Candidates) == 0 {
		return "", fmt.Errorf("%w: gemini returned no candidates", shared.ErrExtractionFailed)
	}

	var sb strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// parseCandidates extracts the JSON array out of the model reply, which
// may be wrapped in markdown fences or prose, then clamps confidences
// and drops implausible names.
func parseCandidates(raw string) ([]models.ArtistCandidate, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON array in model reply", shared.ErrExtractionFailed)
	}

	var parsed []struct {
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed candidate array: %v", shared.ErrExtractionFailed, err)
	}

	candidates := make([]models.ArtistCandidate, 0, len(parsed))
	for _, p := range parsed {
		name := strings.TrimSpace(p.Name)
		if !plausibleArtistName(name) {
			continue
		}
		candidates = append(candidates, models.ArtistCandidate{
			Name:       name,
			Confidence: clampConfidence(p.Confidence),
		})
	}
	return candidates, nil
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// flyerNoise covers words the model sometimes mistakes for artist names
// on festival flyers.
var flyerNoise = map[string]bool{
	"festival": true,
	"lineup":   true,
	"presents": true,
	"tickets":  true,
	"stage":    true,
	"doors":    true,
	"live":     true,
	"tour":     true,
}

func plausibleArtistName(name string) bool {
	if name == "" || len(name) > 100 {
		return false
	}
	if flyerNoise[strings.ToLower(name)] {
		return false
	}

	hasLetter := false
	for _, r := range name {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	return hasLetter
}
