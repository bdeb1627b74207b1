package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/queuehall/queuehall/internal/models"
	"github.com/queuehall/queuehall/internal/store"
)

// ArcadeStore implements store.ArcadeStore using PostgreSQL.
type ArcadeStore struct {
	pool *pgxpool.Pool
}

// NewArcadeStore creates a new PostgreSQL-backed arcade store sharing the
// connection pool with the other stores.
func NewArcadeStore(pool *pgxpool.Pool) *ArcadeStore {
	return &ArcadeStore{pool: pool}
}

const arcadeColumns = `
	arcade_id, tenant_id, name, aliases, current_count, total_updates,
	total_people, average, last_updated, last_updater_id, last_updater_name,
	source_tenant_id, is_bound, created_at, updated_at
`

func scanArcade(row pgx.Row) (*models.Arcade, error) {
	var a models.Arcade
	err := row.Scan(
		&a.ID,
		&a.TenantID,
		&a.Name,
		&a.Aliases,
		&a.Current,
		&a.TotalUpdates,
		&a.TotalPeople,
		&a.Average,
		&a.LastUpdated,
		&a.LastUpdaterID,
		&a.LastUpdaterName,
		&a.SourceTenantID,
		&a.IsBound,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// filterClause builds an exact-match WHERE conjunction from the filter.
func filterClause(filter store.ArcadeFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if filter.TenantID != "" {
		add("tenant_id", filter.TenantID)
	}
	if filter.Name != "" {
		add("name", filter.Name)
	}
	if filter.SourceTenantID != "" {
		add("source_tenant_id", filter.SourceTenantID)
	}
	if filter.IsBound != nil {
		add("is_bound", *filter.IsBound)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Create stores a new arcade, enforcing (tenant, name) uniqueness.
func (s *ArcadeStore) Create(ctx context.Context, arcade *models.Arcade) error {
	query := `
		INSERT INTO arcades (` + arcadeColumns + `) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`

	_, err := s.pool.Exec(ctx, query,
		arcade.ID,
		arcade.TenantID,
		arcade.Name,
		arcade.Aliases,
		arcade.Current,
		arcade.TotalUpdates,
		arcade.TotalPeople,
		arcade.Average,
		arcade.LastUpdated,
		arcade.LastUpdaterID,
		arcade.LastUpdaterName,
		arcade.SourceTenantID,
		arcade.IsBound,
		arcade.CreatedAt,
		arcade.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrArcadeExists
		}
		return fmt.Errorf("failed to create arcade: %w", err)
	}

	log.Debug().
		Str("arcade_id", arcade.ID).
		Str("tenant_id", arcade.TenantID).
		Str("name", arcade.Name).
		Msg("Created arcade")

	return nil
}

// Get retrieves an arcade by id.
func (s *ArcadeStore) Get(ctx context.Context, id string) (*models.Arcade, error) {
	query := `SELECT ` + arcadeColumns + ` FROM arcades WHERE arcade_id = $1`

	arcade, err := scanArcade(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrArcadeNotFound
		}
		return nil, fmt.Errorf("failed to get arcade: %w", err)
	}

	return arcade, nil
}

// GetByName retrieves an arcade by its unique (tenant, name) pair.
func (s *ArcadeStore) GetByName(ctx context.Context, tenantID, name string) (*models.Arcade, error) {
	query := `SELECT ` + arcadeColumns + ` FROM arcades WHERE tenant_id = $1 AND name = $2`

	arcade, err := scanArcade(s.pool.QueryRow(ctx, query, tenantID, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrArcadeNotFound
		}
		return nil, fmt.Errorf("failed to get arcade by name: %w", err)
	}

	return arcade, nil
}

// List returns arcades matching the filter, ordered by name.
func (s *ArcadeStore) List(ctx context.Context, filter store.ArcadeFilter) ([]*models.Arcade, error) {
	where, args := filterClause(filter)
	query := `SELECT ` + arcadeColumns + ` FROM arcades` + where + ` ORDER BY name`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list arcades: %w", err)
	}
	defer rows.Close()

	var arcades []*models.Arcade
	for rows.Next() {
		arcade, err := scanArcade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan arcade: %w", err)
		}
		arcades = append(arcades, arcade)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating arcades: %w", err)
	}

	return arcades, nil
}

// Update replaces the stored row identified by arcade.ID.
func (s *ArcadeStore) Update(ctx context.Context, arcade *models.Arcade) error {
	query := `
		UPDATE arcades SET
			name = $2,
			aliases = $3,
			current_count = $4,
			total_updates = $5,
			total_people = $6,
			average = $7,
			last_updated = $8,
			last_updater_id = $9,
			last_updater_name = $10,
			source_tenant_id = $11,
			is_bound = $12,
			updated_at = $13
		WHERE arcade_id = $1
	`

	result, err := s.pool.Exec(ctx, query,
		arcade.ID,
		arcade.Name,
		arcade.Aliases,
		arcade.Current,
		arcade.TotalUpdates,
		arcade.TotalPeople,
		arcade.Average,
		arcade.LastUpdated,
		arcade.LastUpdaterID,
		arcade.LastUpdaterName,
		arcade.SourceTenantID,
		arcade.IsBound,
		arcade.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update arcade: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrArcadeNotFound
	}

	return nil
}

// Delete removes every arcade matching the filter.
func (s *ArcadeStore) Delete(ctx context.Context, filter store.ArcadeFilter) (int, error) {
	where, args := filterClause(filter)
	if where == "" {
		return 0, store.ErrEmptyFilter
	}
	query := `DELETE FROM arcades` + where

	result, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete arcades: %w", err)
	}

	return int(result.RowsAffected()), nil
}

// Tenants returns the distinct tenant ids that own at least one arcade.
func (s *ArcadeStore) Tenants(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT tenant_id FROM arcades ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var tenant string
		if err := rows.Scan(&tenant); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tenants: %w", err)
	}

	return tenants, nil
}
