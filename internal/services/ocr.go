// OCR sidecar client implementing [OCRRecognizer]
package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/desertthunder/festlist/internal/shared"
)

// OCRService calls the tesseract sidecar over HTTP to recognize text in
// flyer images when vision extraction comes up empty.
type OCRService struct {
	baseURL    string
	engine     string
	httpClient *http.Client
}

// NewOCRService creates an OCR client. An empty baseURL targets a local
// sidecar; an empty engine lets the sidecar pick.
func NewOCRService(baseURL, engine string, client *http.Client) *OCRService {
	if baseURL == "" {
		baseURL = "http://localhost:8884"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &OCRService{
		baseURL:    baseURL,
		engine:     engine,
		httpClient: client,
	}
}

func (o *OCRService) Name() string {
	return "ocr"
}

// Recognize sends image bytes to the sidecar and returns the recognized
// text with its confidence.
func (o *OCRService) Recognize(ctx context.Context, image []byte) (*OCRText, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", shared.ErrExtractionFailed)
	}

	payload := map[string]string{
		"image": base64.StdEncoding.EncodeToString(image),
	}
	if o.engine != "" {
		payload["engine"] = o.engine
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/ocr", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", shared.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: ocr sidecar status %d", shared.ClassifyStatus(resp.StatusCode), resp.StatusCode)
	}

	var result OCRText
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}
