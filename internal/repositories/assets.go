package repositories

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/desertthunder/festlist/internal/models"
	"github.com/desertthunder/festlist/internal/shared"
)

// AssetRepository implements [models.Repository] for [models.UploadedAsset] persistence.
type AssetRepository struct {
	db *sql.DB
}

// NewAssetRepository creates a new [AssetRepository] with the given database connection
func NewAssetRepository(db *sql.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// Create inserts a new asset record with generated sequence. An ID is
// generated unless the caller pre-set one to tie the record to stored bytes.
func (r *AssetRepository) Create(asset *models.UploadedAsset) error {
	sequence, err := NextSequence(r.db, "assets")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := asset.ID()
	if id == "" {
		id = shared.GenerateID()
		asset.SetID(id)
	}

	if err := asset.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO assets (id, sequence, filename, size, content_type, path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, id, sequence, asset.Filename(), asset.Size(), asset.ContentType(), asset.Path(), asset.CreatedAt(), asset.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert asset: %w", err)
	}

	return nil
}

// Get retrieves an asset by ID, excluding soft-deleted assets
func (r *AssetRepository) Get(id string) (*models.UploadedAsset, error) {
	query := `
		SELECT id, sequence, filename, size, content_type, path, created_at, updated_at, deleted_at
		FROM assets
		WHERE id = ? AND deleted_at IS NULL
	`

	asset, err := scanAsset(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("asset not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query asset: %w", err)
	}

	return asset, nil
}

// Update modifies an existing asset record
func (r *AssetRepository) Update(asset *models.UploadedAsset) error {
	if err := asset.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	asset.SetUpdatedAt(now)

	query := `
		UPDATE assets
		SET filename = ?, size = ?, content_type = ?, path = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, asset.Filename(), asset.Size(), asset.ContentType(), asset.Path(), now, asset.ID())
	if err != nil {
		return fmt.Errorf("failed to update asset: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("asset not found or already deleted: %s", asset.ID())
	}

	return nil
}

// Delete soft-deletes an asset by ID
func (r *AssetRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE assets
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("asset not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves all assets matching the given criteria, excluding soft-deleted assets
func (r *AssetRepository) List(criteria map[string]any) ([]*models.UploadedAsset, error) {
	query := `
		SELECT id, sequence, filename, size, content_type, path, created_at, updated_at, deleted_at
		FROM assets
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if filename, ok := criteria["filename"].(string); ok && filename != "" {
		query += " AND filename = ?"
		args = append(args, filename)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var assets []*models.UploadedAsset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, asset)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return assets, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*models.UploadedAsset, error) {
	var (
		id          string
		sequence    int
		filename    string
		size        int64
		contentType string
		path        string
		createdAt   time.Time
		updatedAt   time.Time
		deletedAt   sql.NullTime
	)

	if err := row.Scan(&id, &sequence, &filename, &size, &contentType, &path, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}

	asset := models.NewUploadedAsset(sequence, filename, size, contentType, path)
	asset.SetID(id)
	asset.SetCreatedAt(createdAt)
	asset.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		asset.SetDeletedAt(&deletedAt.Time)
	}

	return asset, nil
}

// FileAssetStore keeps uploaded image bytes on disk, one file per asset
// ID, alongside the sqlite metadata rows.
type FileAssetStore struct {
	dir string
}

// NewFileAssetStore creates the upload directory if needed.
func NewFileAssetStore(dir string) (*FileAssetStore, error) {
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &FileAssetStore{dir: dir}, nil
}

// Put writes the image bytes for an asset ID and returns the file path.
func (s *FileAssetStore) Put(assetID string, data []byte) (string, error) {
	if assetID == "" {
		return "", fmt.Errorf("asset id is required")
	}

	path := filepath.Join(s.dir, assetID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write asset file: %w", err)
	}
	return path, nil
}

// Read returns the stored image bytes for an asset ID.
func (s *FileAssetStore) Read(assetID string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, assetID))
	if err != nil {
		return nil, fmt.Errorf("failed to read asset file: %w", err)
	}
	return data, nil
}

// Remove deletes the stored bytes for an asset ID. Missing files are
// not an error.
func (s *FileAssetStore) Remove(assetID string) error {
	err := os.Remove(filepath.Join(s.dir, assetID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove asset file: %w", err)
	}
	return nil
}
