package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/queuehall/queuehall/internal/models"
	"github.com/queuehall/queuehall/internal/store"
)

// Resolver maps user-typed keywords to arcades. A tenant's visible set is
// its own arcades plus read-only projections of the bound source tenant's
// arcades when an enabled binding exists.
type Resolver struct {
	arcades  store.ArcadeStore
	bindings store.BindingStore
}

// NewResolver creates a resolver over the given stores.
func NewResolver(arcades store.ArcadeStore, bindings store.BindingStore) *Resolver {
	return &Resolver{arcades: arcades, bindings: bindings}
}

// Resolve finds the single arcade a keyword refers to. Matching tiers, in
// strict order: exact local name, exact local alias, exact name or alias in
// the bound source tenant (returned as a projection), then local name
// substring. Returns store.ErrArcadeNotFound when no tier matches.
func (r *Resolver) Resolve(ctx context.Context, tenantID, query string) (*models.Arcade, error) {
	arcade, err := r.arcades.GetByName(ctx, tenantID, query)
	if err == nil {
		return arcade, nil
	}
	if !errors.Is(err, store.ErrArcadeNotFound) {
		return nil, err
	}

	local, err := r.arcades.List(ctx, store.ArcadeFilter{TenantID: tenantID})
	if err != nil {
		return nil, fmt.Errorf("failed to list arcades: %w", err)
	}

	for _, arcade := range local {
		if hasAlias(arcade, query) {
			return arcade, nil
		}
	}

	bound, err := r.boundProjections(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for _, arcade := range bound {
		if arcade.Name == query || hasAlias(arcade, query) {
			return arcade, nil
		}
	}

	for _, arcade := range local {
		if strings.Contains(arcade.Name, query) {
			return arcade, nil
		}
	}

	return nil, store.ErrArcadeNotFound
}

// SearchByAlias returns every visible arcade with an alias containing the
// keyword. An empty keyword matches any arcade that has aliases at all.
func (r *Resolver) SearchByAlias(ctx context.Context, tenantID, keyword string) ([]*models.Arcade, error) {
	local, err := r.arcades.List(ctx, store.ArcadeFilter{TenantID: tenantID})
	if err != nil {
		return nil, fmt.Errorf("failed to list arcades: %w", err)
	}

	var results []*models.Arcade
	for _, arcade := range local {
		if hasAliasContaining(arcade, keyword) {
			results = append(results, arcade)
		}
	}

	bound, err := r.boundProjections(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for _, arcade := range bound {
		if hasAliasContaining(arcade, keyword) {
			results = append(results, arcade)
		}
	}

	return results, nil
}

// SearchFuzzy returns every visible arcade whose name or an alias contains
// the query. This is the fallback when Resolve finds nothing.
func (r *Resolver) SearchFuzzy(ctx context.Context, tenantID, query string) ([]*models.Arcade, error) {
	visible, err := r.VisibleSet(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var results []*models.Arcade
	for _, arcade := range visible {
		if strings.Contains(arcade.Name, query) || hasAliasContaining(arcade, query) {
			results = append(results, arcade)
		}
	}

	return results, nil
}

// VisibleSet returns the tenant's own arcades followed by projections of
// the bound source tenant's arcades.
func (r *Resolver) VisibleSet(ctx context.Context, tenantID string) ([]*models.Arcade, error) {
	local, err := r.arcades.List(ctx, store.ArcadeFilter{TenantID: tenantID})
	if err != nil {
		return nil, fmt.Errorf("failed to list arcades: %w", err)
	}

	bound, err := r.boundProjections(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	return append(local, bound...), nil
}

// boundProjections returns projections of the bound source tenant's
// arcades, or nothing when no enabled binding exists.
func (r *Resolver) boundProjections(ctx context.Context, tenantID string) ([]*models.Arcade, error) {
	binding, err := r.bindings.GetByTarget(ctx, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrBindingNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get binding: %w", err)
	}
	if !binding.Enabled {
		return nil, nil
	}

	source, err := r.arcades.List(ctx, store.ArcadeFilter{TenantID: binding.SourceTenantID})
	if err != nil {
		return nil, fmt.Errorf("failed to list bound arcades: %w", err)
	}

	projections := make([]*models.Arcade, 0, len(source))
	for _, arcade := range source {
		projections = append(projections, arcade.Projection(binding.SourceTenantID))
	}

	return projections, nil
}

func hasAlias(arcade *models.Arcade, alias string) bool {
	for _, a := range arcade.Aliases {
		if a == alias {
			return true
		}
	}
	return false
}

func hasAliasContaining(arcade *models.Arcade, keyword string) bool {
	for _, a := range arcade.Aliases {
		if strings.Contains(a, keyword) {
			return true
		}
	}
	return false
}
