package models

import (
	"fmt"
	"time"
)

// UploadedAsset is the persistent metadata record for an uploaded flyer image.
// The image bytes themselves live in the asset store; this record is immutable
// once created and read-only to the pipeline.
type UploadedAsset struct {
	id          string
	sequence    int
	filename    string
	size        int64
	contentType string
	path        string
	createdAt   time.Time
	updatedAt   time.Time
	deletedAt   *time.Time
}

// NewUploadedAsset creates an asset record for a stored flyer image.
func NewUploadedAsset(sequence int, filename string, size int64, contentType, path string) *UploadedAsset {
	now := time.Now()
	return &UploadedAsset{
		sequence:    sequence,
		filename:    filename,
		size:        size,
		contentType: contentType,
		path:        path,
		createdAt:   now,
		updatedAt:   now,
	}
}

func (a *UploadedAsset) ID() string          { return a.id }
func (a *UploadedAsset) Sequence() int       { return a.sequence }
func (a *UploadedAsset) Filename() string    { return a.filename }
func (a *UploadedAsset) Size() int64         { return a.size }
func (a *UploadedAsset) ContentType() string { return a.contentType }
func (a *UploadedAsset) Path() string        { return a.path }

func (a *UploadedAsset) CreatedAt() time.Time { return a.createdAt }
func (a *UploadedAsset) UpdatedAt() time.Time { return a.updatedAt }
func (a *UploadedAsset) DeletedAt() *time.Time {
	return a.deletedAt
}

func (a *UploadedAsset) SetID(id string)           { a.id = id }
func (a *UploadedAsset) SetCreatedAt(t time.Time)  { a.createdAt = t }
func (a *UploadedAsset) SetUpdatedAt(t time.Time)  { a.updatedAt = t }
func (a *UploadedAsset) SetDeletedAt(t *time.Time) { a.deletedAt = t }

// Validate checks the asset record's required fields.
func (a *UploadedAsset) Validate() error {
	if a.filename == "" {
		return fmt.Errorf("asset filename is required")
	}
	if a.size <= 0 {
		return fmt.Errorf("asset size must be positive")
	}
	if a.contentType == "" {
		return fmt.Errorf("asset content type is required")
	}
	if a.path == "" {
		return fmt.Errorf("asset path is required")
	}
	return nil
}
