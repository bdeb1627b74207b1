package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/queuehall/queuehall/internal/models"
	"github.com/queuehall/queuehall/internal/store"
)

// AllowListStore implements store.AllowListStore using PostgreSQL.
type AllowListStore struct {
	pool *pgxpool.Pool
}

// NewAllowListStore creates a new PostgreSQL-backed allow-list store.
func NewAllowListStore(pool *pgxpool.Pool) *AllowListStore {
	return &AllowListStore{pool: pool}
}

// Create stores a new entry, enforcing (tenant, user) uniqueness.
func (s *AllowListStore) Create(ctx context.Context, entry *models.AllowListEntry) error {
	query := `
		INSERT INTO allow_list (
			entry_id, tenant_id, user_id, user_name, added_by_id, added_by_name, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := s.pool.Exec(ctx, query,
		entry.ID,
		entry.TenantID,
		entry.UserID,
		entry.UserName,
		entry.AddedByID,
		entry.AddedByName,
		entry.CreatedAt,
		entry.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAllowListExists
		}
		return fmt.Errorf("failed to create allow list entry: %w", err)
	}

	return nil
}

// Get retrieves a tenant's entry for one user.
func (s *AllowListStore) Get(ctx context.Context, tenantID, userID string) (*models.AllowListEntry, error) {
	query := `
		SELECT entry_id, tenant_id, user_id, user_name, added_by_id, added_by_name, created_at, updated_at
		FROM allow_list
		WHERE tenant_id = $1 AND user_id = $2
	`

	var e models.AllowListEntry
	err := s.pool.QueryRow(ctx, query, tenantID, userID).Scan(
		&e.ID,
		&e.TenantID,
		&e.UserID,
		&e.UserName,
		&e.AddedByID,
		&e.AddedByName,
		&e.CreatedAt,
		&e.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrAllowListNotFound
		}
		return nil, fmt.Errorf("failed to get allow list entry: %w", err)
	}

	return &e, nil
}

// ListByTenant returns the tenant's entries ordered by user id.
func (s *AllowListStore) ListByTenant(ctx context.Context, tenantID string) ([]*models.AllowListEntry, error) {
	query := `
		SELECT entry_id, tenant_id, user_id, user_name, added_by_id, added_by_name, created_at, updated_at
		FROM allow_list
		WHERE tenant_id = $1
		ORDER BY user_id
	`

	rows, err := s.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list allow list entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AllowListEntry
	for rows.Next() {
		var e models.AllowListEntry
		err := rows.Scan(&e.ID, &e.TenantID, &e.UserID, &e.UserName, &e.AddedByID, &e.AddedByName, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan allow list entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allow list entries: %w", err)
	}

	return entries, nil
}

// Delete removes one user's entry from a tenant's allow-list.
func (s *AllowListStore) Delete(ctx context.Context, tenantID, userID string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM allow_list WHERE tenant_id = $1 AND user_id = $2`, tenantID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete allow list entry: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrAllowListNotFound
	}

	return nil
}

// DeleteByTenant clears the tenant's allow-list.
func (s *AllowListStore) DeleteByTenant(ctx context.Context, tenantID string) (int, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM allow_list WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear allow list: %w", err)
	}

	return int(result.RowsAffected()), nil
}

// NewStores wires the four PostgreSQL collections into a store.Stores bundle.
func NewStores(pool *pgxpool.Pool) store.Stores {
	return store.Stores{
		Arcades:   NewArcadeStore(pool),
		History:   NewHistoryStore(pool),
		Bindings:  NewBindingStore(pool),
		AllowList: NewAllowListStore(pool),
	}
}
