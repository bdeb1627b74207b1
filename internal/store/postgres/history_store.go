package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/queuehall/queuehall/internal/models"
)

// HistoryStore implements store.HistoryStore using PostgreSQL.
type HistoryStore struct {
	pool *pgxpool.Pool
}

// NewHistoryStore creates a new PostgreSQL-backed history store.
func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

// Append adds an entry to the log.
func (s *HistoryStore) Append(ctx context.Context, entry *models.HistoryEntry) error {
	query := `
		INSERT INTO arcade_history (
			entry_id, arcade_id, tenant_id, count, updater_id, updater_name, recorded_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	_, err := s.pool.Exec(ctx, query,
		entry.ID,
		entry.ArcadeID,
		entry.TenantID,
		entry.Count,
		entry.UpdaterID,
		entry.UpdaterName,
		entry.RecordedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}

	return nil
}

// ListByArcade returns the arcade's entries ordered by recording time.
func (s *HistoryStore) ListByArcade(ctx context.Context, arcadeID string) ([]*models.HistoryEntry, error) {
	query := `
		SELECT entry_id, arcade_id, tenant_id, count, updater_id, updater_name, recorded_at
		FROM arcade_history
		WHERE arcade_id = $1
		ORDER BY recorded_at
	`

	rows, err := s.pool.Query(ctx, query, arcadeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []*models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		err := rows.Scan(&e.ID, &e.ArcadeID, &e.TenantID, &e.Count, &e.UpdaterID, &e.UpdaterName, &e.RecordedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return entries, nil
}

// CountByTenant returns the number of entries recorded for a tenant.
func (s *HistoryStore) CountByTenant(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM arcade_history WHERE tenant_id = $1`, tenantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return count, nil
}

// DeleteByArcade removes all entries for one arcade.
func (s *HistoryStore) DeleteByArcade(ctx context.Context, arcadeID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM arcade_history WHERE arcade_id = $1`, arcadeID); err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	return nil
}

// DeleteByTenant removes all entries for one tenant.
func (s *HistoryStore) DeleteByTenant(ctx context.Context, tenantID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM arcade_history WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	return nil
}
