// Package services defines clients for the external providers the
// pipeline depends on (Spotify catalog, Gemini extraction, OCR sidecar)
// behind small interfaces so commands and workers can be tested with
// mocks.
package services
