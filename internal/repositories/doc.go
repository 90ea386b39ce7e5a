// Package repositories provides the persistence layer for uploaded
// flyer assets and per-user quota accounting.
//
// AssetRepository implements models.Repository[models.UploadedAsset]
// over sqlite with soft deletes and sequence generation; FileAssetStore
// holds the image bytes on disk next to the metadata rows.
package repositories
