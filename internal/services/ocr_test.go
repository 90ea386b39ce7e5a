package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/festlist/internal/shared"
)

func TestOCRService(t *testing.T) {
	t.Run("NewOCRService Defaults", func(t *testing.T) {
		svc := NewOCRService("", "", nil)
		if svc.baseURL != "http://localhost:8884" {
			t.Errorf("expected default base URL, got %s", svc.baseURL)
		}
		if svc.httpClient == nil {
			t.Error("expected default http client")
		}
	})

	t.Run("Recognize", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			image := []byte("flyer bytes")

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/ocr" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}

				var body map[string]string
				json.NewDecoder(r.Body).Decode(&body)
				if body["image"] != base64.StdEncoding.EncodeToString(image) {
					t.Error("expected base64 image in body")
				}
				if body["engine"] != "tesseract" {
					t.Errorf("expected engine tesseract, got %s", body["engine"])
				}

				json.NewEncoder(w).Encode(OCRText{
					Text:       "WOOLI\nGRIZ\nZEDS DEAD",
					Confidence: 0.87,
					Engine:     "tesseract",
					WordCount:  4,
				})
			}))
			defer server.Close()

			svc := NewOCRService(server.URL, "tesseract", nil)
			result, err := svc.Recognize(context.Background(), image)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if result.Text != "WOOLI\nGRIZ\nZEDS DEAD" {
				t.Errorf("unexpected text: %q", result.Text)
			}
			if result.Confidence != 0.87 || result.WordCount != 4 {
				t.Errorf("unexpected metadata: %+v", result)
			}
		})

		t.Run("Empty Image", func(t *testing.T) {
			svc := NewOCRService("http://localhost:1", "", nil)
			if _, err := svc.Recognize(context.Background(), nil); !errors.Is(err, shared.ErrExtractionFailed) {
				t.Errorf("expected ErrExtractionFailed, got %v", err)
			}
		})

		t.Run("Sidecar Error", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			defer server.Close()

			svc := NewOCRService(server.URL, "", nil)
			_, err := svc.Recognize(context.Background(), []byte("img"))
			if !errors.Is(err, shared.ErrTransient) {
				t.Errorf("expected ErrTransient, got %v", err)
			}
		})
	})

	t.Run("Recognizer Interface", func(t *testing.T) {
		var _ OCRRecognizer = NewOCRService("", "", nil)
	})
}
