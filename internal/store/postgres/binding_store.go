package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/queuehall/queuehall/internal/models"
	"github.com/queuehall/queuehall/internal/store"
)

// BindingStore implements store.BindingStore using PostgreSQL.
type BindingStore struct {
	pool *pgxpool.Pool
}

// NewBindingStore creates a new PostgreSQL-backed binding store.
func NewBindingStore(pool *pgxpool.Pool) *BindingStore {
	return &BindingStore{pool: pool}
}

// GetByTarget retrieves the binding row for a target tenant.
func (s *BindingStore) GetByTarget(ctx context.Context, targetTenantID string) (*models.Binding, error) {
	query := `
		SELECT binding_id, source_tenant_id, target_tenant_id, is_enabled, created_at, updated_at
		FROM bindings
		WHERE target_tenant_id = $1
	`

	var b models.Binding
	err := s.pool.QueryRow(ctx, query, targetTenantID).Scan(
		&b.ID,
		&b.SourceTenantID,
		&b.TargetTenantID,
		&b.Enabled,
		&b.CreatedAt,
		&b.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrBindingNotFound
		}
		return nil, fmt.Errorf("failed to get binding: %w", err)
	}

	return &b, nil
}

// Upsert creates the binding or replaces source/enabled on the existing row
// for the same target tenant.
func (s *BindingStore) Upsert(ctx context.Context, binding *models.Binding) error {
	query := `
		INSERT INTO bindings (
			binding_id, source_tenant_id, target_tenant_id, is_enabled, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $5
		)
		ON CONFLICT (target_tenant_id) DO UPDATE SET
			source_tenant_id = EXCLUDED.source_tenant_id,
			is_enabled = EXCLUDED.is_enabled,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		binding.ID,
		binding.SourceTenantID,
		binding.TargetTenantID,
		binding.Enabled,
		binding.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert binding: %w", err)
	}

	log.Debug().
		Str("target_tenant_id", binding.TargetTenantID).
		Str("source_tenant_id", binding.SourceTenantID).
		Bool("enabled", binding.Enabled).
		Msg("Upserted binding")

	return nil
}

// DeleteByTarget removes the binding row for a target tenant.
func (s *BindingStore) DeleteByTarget(ctx context.Context, targetTenantID string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM bindings WHERE target_tenant_id = $1`, targetTenantID)
	if err != nil {
		return fmt.Errorf("failed to delete binding: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrBindingNotFound
	}

	return nil
}
