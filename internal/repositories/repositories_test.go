package repositories

import (
	"bytes"
	"database/sql"
	"testing"
	"time"

	"github.com/desertthunder/festlist/internal/models"
	"github.com/desertthunder/festlist/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func testAsset() *models.UploadedAsset {
	return models.NewUploadedAsset(0, "flyer.jpg", 2048, "image/jpeg", "uploads/abc")
}

func TestAssetRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)

		repo := NewAssetRepository(db)
		asset := testAsset()

		if err := repo.Create(asset); err != nil {
			t.Fatalf("failed to create asset: %v", err)
		}

		if asset.ID() == "" {
			t.Error("asset ID should be set after creation")
		}
	})

	t.Run("Create Assigns Increasing Sequences", func(t *testing.T) {
		db := setupTestDB(t)

		repo := NewAssetRepository(db)
		for i := 0; i < 3; i++ {
			if err := repo.Create(testAsset()); err != nil {
				t.Fatalf("failed to create asset: %v", err)
			}
		}

		assets, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list assets: %v", err)
		}

		if len(assets) != 3 {
			t.Fatalf("expected 3 assets, got %d", len(assets))
		}
		for i, asset := range assets {
			if asset.Sequence() != i+1 {
				t.Errorf("asset %d: expected sequence %d, got %d", i, i+1, asset.Sequence())
			}
		}
	})

	t.Run("Create Rejects Invalid Asset", func(t *testing.T) {
		db := setupTestDB(t)

		repo := NewAssetRepository(db)
		asset := models.NewUploadedAsset(0, "", 0, "", "")

		if err := repo.Create(asset); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)

		repo := NewAssetRepository(db)
		asset := testAsset()
		if err := repo.Create(asset); err != nil {
			t.Fatalf("failed to create asset: %v", err)
		}

		retrieved, err := repo.Get(asset.ID())
		if err != nil {
			t.Fatalf("failed to get asset: %v", err)
		}

		if retrieved.Filename() != "flyer.jpg" || retrieved.ContentType() != "image/jpeg" {
			t.Errorf("unexpected asset: %s %s", retrieved.Filename(), retrieved.ContentType())
		}
		if retrieved.Size() != 2048 {
			t.Errorf("expected size 2048, got %d", retrieved.Size())
		}
	})

	t.Run("Get Missing", func(t *testing.T) {
		db := setupTestDB(t)

		repo := NewAssetRepository(db)
		if _, err := repo.Get("nope"); err == nil {
			t.Error("expected error for missing asset")
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)

		repo := NewAssetRepository(db)
		asset := testAsset()
		if err := repo.Create(asset); err != nil {
			t.Fatalf("failed to create asset: %v", err)
		}

		updated := models.NewUploadedAsset(asset.Sequence(), "renamed.png", 4096, "image/png", asset.Path())
		updated.SetID(asset.ID())

		if err := repo.Update(updated); err != nil {
			t.Fatalf("failed to update asset: %v", err)
		}

		retrieved, err := repo.Get(asset.ID())
		if err != nil {
			t.Fatalf("failed to get asset: %v", err)
		}
		if retrieved.Filename() != "renamed.png" || retrieved.Size() != 4096 {
			t.Errorf("update not persisted: %s %d", retrieved.Filename(), retrieved.Size())
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)

		repo := NewAssetRepository(db)
		asset := testAsset()
		if err := repo.Create(asset); err != nil {
			t.Fatalf("failed to create asset: %v", err)
		}

		if err := repo.Delete(asset.ID()); err != nil {
			t.Fatalf("failed to delete asset: %v", err)
		}

		if _, err := repo.Get(asset.ID()); err == nil {
			t.Error("expected soft-deleted asset to be hidden")
		}

		if err := repo.Delete(asset.ID()); err == nil {
			t.Error("expected error deleting twice")
		}
	})

	t.Run("List Filters By Filename", func(t *testing.T) {
		db := setupTestDB(t)

		repo := NewAssetRepository(db)
		if err := repo.Create(testAsset()); err != nil {
			t.Fatalf("failed to create asset: %v", err)
		}
		other := models.NewUploadedAsset(0, "other.png", 100, "image/png", "uploads/def")
		if err := repo.Create(other); err != nil {
			t.Fatalf("failed to create asset: %v", err)
		}

		assets, err := repo.List(map[string]any{"filename": "other.png"})
		if err != nil {
			t.Fatalf("failed to list assets: %v", err)
		}
		if len(assets) != 1 || assets[0].Filename() != "other.png" {
			t.Errorf("unexpected list result: %+v", assets)
		}
	})
}

func TestQuotaRepository(t *testing.T) {
	t.Run("Record And CountSince", func(t *testing.T) {
		db := setupTestDB(t)

		repo := NewQuotaRepository(db)
		now := time.Now()

		for i := 0; i < 3; i++ {
			if err := repo.Record("user1", "gemini", now.Add(time.Duration(i)*time.Minute)); err != nil {
				t.Fatalf("failed to record event: %v", err)
			}
		}
		if err := repo.Record("user2", "gemini", now); err != nil {
			t.Fatalf("failed to record event: %v", err)
		}

		count, err := repo.CountSince("user1", now.Add(-time.Hour))
		if err != nil {
			t.Fatalf("failed to count events: %v", err)
		}
		if count != 3 {
			t.Errorf("expected 3 events for user1, got %d", count)
		}

		count, err = repo.CountSince("user2", now.Add(-time.Hour))
		if err != nil {
			t.Fatalf("failed to count events: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 event for user2, got %d", count)
		}
	})

	t.Run("CountSince Excludes Old Events", func(t *testing.T) {
		db := setupTestDB(t)

		repo := NewQuotaRepository(db)
		now := time.Now()

		if err := repo.Record("user1", "gemini", now.Add(-48*time.Hour)); err != nil {
			t.Fatalf("failed to record event: %v", err)
		}
		if err := repo.Record("user1", "gemini", now); err != nil {
			t.Fatalf("failed to record event: %v", err)
		}

		count, err := repo.CountSince("user1", now.Add(-24*time.Hour))
		if err != nil {
			t.Fatalf("failed to count events: %v", err)
		}
		if count != 1 {
			t.Errorf("expected stale event excluded, got %d", count)
		}
	})

	t.Run("Prune", func(t *testing.T) {
		db := setupTestDB(t)

		repo := NewQuotaRepository(db)
		now := time.Now()

		repo.Record("user1", "gemini", now.Add(-48*time.Hour))
		repo.Record("user1", "gemini", now)

		removed, err := repo.Prune(now.Add(-24 * time.Hour))
		if err != nil {
			t.Fatalf("failed to prune: %v", err)
		}
		if removed != 1 {
			t.Errorf("expected 1 pruned row, got %d", removed)
		}

		count, _ := repo.CountSince("user1", now.Add(-72*time.Hour))
		if count != 1 {
			t.Errorf("expected 1 remaining event, got %d", count)
		}
	})
}

func TestFileAssetStore(t *testing.T) {
	t.Run("Put Read Remove", func(t *testing.T) {
		store, err := NewFileAssetStore(t.TempDir())
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}

		data := []byte("flyer image bytes")
		path, err := store.Put("asset1", data)
		if err != nil {
			t.Fatalf("failed to put asset: %v", err)
		}
		if path == "" {
			t.Error("expected non-empty path")
		}

		read, err := store.Read("asset1")
		if err != nil {
			t.Fatalf("failed to read asset: %v", err)
		}
		if !bytes.Equal(read, data) {
			t.Error("read bytes differ from written bytes")
		}

		if err := store.Remove("asset1"); err != nil {
			t.Fatalf("failed to remove asset: %v", err)
		}
		if _, err := store.Read("asset1"); err == nil {
			t.Error("expected error reading removed asset")
		}
	})

	t.Run("Remove Missing Is Not An Error", func(t *testing.T) {
		store, err := NewFileAssetStore(t.TempDir())
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}

		if err := store.Remove("ghost"); err != nil {
			t.Errorf("expected nil for missing file, got %v", err)
		}
	})

	t.Run("Put Requires ID", func(t *testing.T) {
		store, err := NewFileAssetStore(t.TempDir())
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}

		if _, err := store.Put("", []byte("x")); err == nil {
			t.Error("expected error for empty asset id")
		}
	})
}
