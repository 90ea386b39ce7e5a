package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

// QuotaRepository records gated provider calls per user in sqlite so
// daily quotas survive restarts. Implements gate.QuotaStore.
type QuotaRepository struct {
	db *sql.DB
}

// NewQuotaRepository creates a new [QuotaRepository] with the given database connection
func NewQuotaRepository(db *sql.DB) *QuotaRepository {
	return &QuotaRepository{db: db}
}

// Record inserts one quota event for the user and service.
func (r *QuotaRepository) Record(userID, service string, at time.Time) error {
	query := `INSERT INTO quota_events (user_id, service, created_at) VALUES (?, ?, ?)`

	if _, err := r.db.Exec(query, userID, service, at); err != nil {
		return fmt.Errorf("failed to record quota event: %w", err)
	}
	return nil
}

// CountSince returns how many quota events the user has accrued since
// the given time, across all services.
func (r *QuotaRepository) CountSince(userID string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM quota_events WHERE user_id = ? AND created_at >= ?`

	var count int
	if err := r.db.QueryRow(query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count quota events: %w", err)
	}
	return count, nil
}

// Prune deletes quota events older than the cutoff, returning how many
// rows were removed.
func (r *QuotaRepository) Prune(before time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM quota_events WHERE created_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune quota events: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}
