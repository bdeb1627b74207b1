package store

import (
	"context"
	"errors"

	"github.com/queuehall/queuehall/internal/models"
)

// Sentinel errors for common error conditions
var (
	ErrArcadeNotFound    = errors.New("arcade not found")
	ErrArcadeExists      = errors.New("arcade already exists")
	ErrBindingNotFound   = errors.New("binding not found")
	ErrAllowListNotFound = errors.New("allow list entry not found")
	ErrAllowListExists   = errors.New("allow list entry already exists")

	// ErrEmptyFilter rejects Delete calls that would match every row.
	ErrEmptyFilter = errors.New("empty arcade filter")
)

// ArcadeFilter selects arcades by exact-match conjunction over its set
// fields. Zero-valued fields are ignored; IsBound is a pointer so false can
// be matched explicitly.
type ArcadeFilter struct {
	TenantID       string
	Name           string
	SourceTenantID string
	IsBound        *bool
}

// ArcadeStore persists arcades. Create enforces (tenant, name) uniqueness;
// alias uniqueness is the caller's invariant since it spans rows.
type ArcadeStore interface {
	Create(ctx context.Context, arcade *models.Arcade) error
	Get(ctx context.Context, id string) (*models.Arcade, error)
	GetByName(ctx context.Context, tenantID, name string) (*models.Arcade, error)

	// List returns arcades matching the filter, ordered by name.
	List(ctx context.Context, filter ArcadeFilter) ([]*models.Arcade, error)

	// Update replaces the stored row identified by arcade.ID.
	Update(ctx context.Context, arcade *models.Arcade) error

	// Delete removes every arcade matching the filter and reports how many
	// rows were removed. A zero-value filter returns ErrEmptyFilter rather
	// than wiping the table.
	Delete(ctx context.Context, filter ArcadeFilter) (int, error)

	// Tenants returns the distinct tenant ids that own at least one arcade.
	Tenants(ctx context.Context) ([]string, error)
}

// HistoryStore is append-only; entries are never updated.
type HistoryStore interface {
	Append(ctx context.Context, entry *models.HistoryEntry) error
	ListByArcade(ctx context.Context, arcadeID string) ([]*models.HistoryEntry, error)
	CountByTenant(ctx context.Context, tenantID string) (int, error)
	DeleteByArcade(ctx context.Context, arcadeID string) error
	DeleteByTenant(ctx context.Context, tenantID string) error
}

// BindingStore holds at most one binding row per target tenant.
type BindingStore interface {
	GetByTarget(ctx context.Context, targetTenantID string) (*models.Binding, error)

	// Upsert creates the binding or replaces source/enabled on the existing
	// row for the same target tenant.
	Upsert(ctx context.Context, binding *models.Binding) error

	DeleteByTarget(ctx context.Context, targetTenantID string) error
}

// AllowListStore persists per-tenant allow-list membership, unique on
// (tenant, user).
type AllowListStore interface {
	Create(ctx context.Context, entry *models.AllowListEntry) error
	Get(ctx context.Context, tenantID, userID string) (*models.AllowListEntry, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*models.AllowListEntry, error)
	Delete(ctx context.Context, tenantID, userID string) error

	// DeleteByTenant clears the tenant's allow-list and reports how many
	// entries were removed.
	DeleteByTenant(ctx context.Context, tenantID string) (int, error)
}

// Stores bundles the four collections consumed by the core.
type Stores struct {
	Arcades   ArcadeStore
	History   HistoryStore
	Bindings  BindingStore
	AllowList AllowListStore
}
