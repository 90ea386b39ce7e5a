package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/festlist/internal/models"
	"github.com/desertthunder/festlist/internal/pipeline"
	"github.com/desertthunder/festlist/internal/repositories"
	"github.com/desertthunder/festlist/internal/services"
	"github.com/desertthunder/festlist/internal/shared"
)

// Pipeline is the engine surface the API handlers depend on.
type Pipeline interface {
	Extract(ctx context.Context, progress chan<- pipeline.ProgressUpdate, req pipeline.ExtractionRequest) (*models.ExtractionResult, error)
	Resolve(ctx context.Context, progress chan<- pipeline.ProgressUpdate, names []string) (*pipeline.ResolveOutcome, error)
	Assemble(ctx context.Context, progress chan<- pipeline.ProgressUpdate, outcome *pipeline.ResolveOutcome, req pipeline.AssembleRequest) (*models.PlaylistResult, error)
}

// APIHandler serves the flyer-to-playlist HTTP API.
// Implements the [Handler] interface for registration with a [Router].
type APIHandler struct {
	pipeline  Pipeline
	ocr       services.OCRRecognizer
	text      services.TextExtractor
	assets    *repositories.AssetRepository
	files     *repositories.FileAssetStore
	maxUpload int64
	logger    *log.Logger
}

// NewAPIHandler creates the API handler. maxUploadMB bounds accepted
// flyer uploads (default 10).
func NewAPIHandler(p Pipeline, ocr services.OCRRecognizer, text services.TextExtractor, assets *repositories.AssetRepository, files *repositories.FileAssetStore, maxUploadMB int64, logger *log.Logger) *APIHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &APIHandler{
		pipeline:  p,
		ocr:       ocr,
		text:      text,
		assets:    assets,
		files:     files,
		maxUpload: maxUploadMB << 20,
		logger:    logger.With("component", "api"),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *APIHandler) Routes() []string {
	return []string{
		"/api/health",
		"/api/upload",
		"/api/analyze-image",
		"/api/ocr",
		"/api/extract-artists",
		"/api/create-playlist",
	}
}

// ServeHTTP dispatches to the endpoint handlers.
func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/health":
		h.handleHealth(w, r)
	case "/api/upload":
		h.post(w, r, h.handleUpload)
	case "/api/analyze-image":
		h.post(w, r, h.handleAnalyzeImage)
	case "/api/ocr":
		h.post(w, r, h.handleOCR)
	case "/api/extract-artists":
		h.post(w, r, h.handleExtractArtists)
	case "/api/create-playlist":
		h.post(w, r, h.handleCreatePlaylist)
	default:
		http.NotFound(w, r)
	}
}

func (h *APIHandler) post(w http.ResponseWriter, r *http.Request, fn http.HandlerFunc) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	fn(w, r)
}

func (h *APIHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpload accepts a multipart flyer image, stores the bytes, and
// records the asset for later extraction calls.
func (h *APIHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	data, filename, contentType, err := h.readUpload(r)
	if err != nil {
		writeError(w, err)
		return
	}

	assetID := shared.GenerateID()
	path, err := h.files.Put(assetID, data)
	if err != nil {
		writeError(w, err)
		return
	}

	asset := models.NewUploadedAsset(0, filename, int64(len(data)), contentType, path)
	asset.SetID(assetID)
	if err := h.assets.Create(asset); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"asset_id":     asset.ID(),
		"filename":     asset.Filename(),
		"size":         asset.Size(),
		"content_type": asset.ContentType(),
	})
}

// handleAnalyzeImage runs full extraction (vision with OCR fallback) on
// an uploaded flyer or a previously stored asset.
func (h *APIHandler) handleAnalyzeImage(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := h.imageFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.pipeline.Extract(r.Context(), nil, pipeline.ExtractionRequest{
		Image:    data,
		MIMEType: contentType,
		UserID:   clientID(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleOCR recognizes text in an image without artist extraction.
func (h *APIHandler) handleOCR(w http.ResponseWriter, r *http.Request) {
	data, _, err := h.imageFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.ocr.Recognize(r.Context(), data)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleExtractArtists pulls artist candidates out of caller-supplied text.
func (h *APIHandler) handleExtractArtists(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, fmt.Errorf("%w: malformed JSON body", shared.ErrInvalidInput))
		return
	}
	if body.Text == "" {
		writeError(w, fmt.Errorf("%w: text is required", shared.ErrInvalidInput))
		return
	}

	candidates, err := h.text.ExtractArtists(r.Context(), body.Text)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}

// handleCreatePlaylist resolves the given artists and assembles a playlist
// owned by the caller's streaming account.
func (h *APIHandler) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Artists     []string `json:"artists"`
		AccessToken string   `json:"access_token"`
		UserID      string   `json:"user_id"`
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Public      bool     `json:"public"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, fmt.Errorf("%w: malformed JSON body", shared.ErrInvalidInput))
		return
	}
	if len(body.Artists) == 0 {
		writeError(w, fmt.Errorf("%w: artists list is required", shared.ErrInvalidInput))
		return
	}
	if body.AccessToken == "" {
		writeError(w, fmt.Errorf("%w: access_token is required", shared.ErrInvalidInput))
		return
	}

	outcome, err := h.pipeline.Resolve(r.Context(), nil, body.Artists)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.pipeline.Assemble(r.Context(), nil, outcome, pipeline.AssembleRequest{
		AccessToken: body.AccessToken,
		UserID:      body.UserID,
		Name:        body.Name,
		Description: body.Description,
		Public:      body.Public,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// readUpload extracts the image bytes from a multipart form upload.
func (h *APIHandler) readUpload(r *http.Request) (data []byte, filename, contentType string, err error) {
	r.Body = http.MaxBytesReader(nil, r.Body, h.maxUpload)

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", "", fmt.Errorf("%w: missing file field", shared.ErrInvalidInput)
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		return nil, "", "", fmt.Errorf("%w: upload too large or unreadable", shared.ErrInvalidInput)
	}
	if len(data) == 0 {
		return nil, "", "", fmt.Errorf("%w: empty upload", shared.ErrInvalidInput)
	}

	contentType = header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return data, header.Filename, contentType, nil
}

// imageFromRequest resolves image bytes from either a multipart upload or
// an asset_id referencing stored bytes.
func (h *APIHandler) imageFromRequest(r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, h.maxUpload)
	mediaType := r.Header.Get("Content-Type")

	if assetID := assetIDFrom(r, mediaType); assetID != "" {
		asset, err := h.assets.Get(assetID)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %s", shared.ErrAssetNotFound, assetID)
		}
		data, err := h.files.Read(asset.ID())
		if err != nil {
			return nil, "", fmt.Errorf("%w: bytes missing for %s", shared.ErrAssetNotFound, assetID)
		}
		return data, asset.ContentType(), nil
	}

	data, _, contentType, err := h.readUpload(r)
	return data, contentType, err
}

// assetIDFrom reads asset_id out of a JSON body or form field.
func assetIDFrom(r *http.Request, mediaType string) string {
	if strings.HasPrefix(mediaType, "application/json") {
		var body struct {
			AssetID string `json:"asset_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return ""
		}
		return body.AssetID
	}
	return r.FormValue("asset_id")
}

// clientID identifies the caller for quota purposes: an explicit header
// when present, the remote host otherwise.
func clientID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
