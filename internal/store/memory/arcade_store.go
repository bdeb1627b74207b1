package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/queuehall/queuehall/internal/models"
	"github.com/queuehall/queuehall/internal/store"
)

// ArcadeStore implements store.ArcadeStore using in-memory storage.
// Data is lost on restart; intended for tests and development.
type ArcadeStore struct {
	mu sync.RWMutex

	arcades map[string]*models.Arcade    // arcade id -> Arcade
	byName  map[string]map[string]string // tenant id -> name -> arcade id
}

// NewArcadeStore creates a new in-memory arcade store.
func NewArcadeStore() *ArcadeStore {
	return &ArcadeStore{
		arcades: make(map[string]*models.Arcade),
		byName:  make(map[string]map[string]string),
	}
}

func cloneArcade(a *models.Arcade) *models.Arcade {
	clone := *a
	clone.Aliases = append([]string(nil), a.Aliases...)
	return &clone
}

// Create stores a new arcade, enforcing (tenant, name) uniqueness.
func (s *ArcadeStore) Create(ctx context.Context, arcade *models.Arcade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := s.byName[arcade.TenantID]
	if names == nil {
		names = make(map[string]string)
		s.byName[arcade.TenantID] = names
	}
	if _, exists := names[arcade.Name]; exists {
		return store.ErrArcadeExists
	}

	clone := cloneArcade(arcade)
	s.arcades[arcade.ID] = clone
	names[arcade.Name] = arcade.ID

	return nil
}

// Get retrieves an arcade by id.
func (s *ArcadeStore) Get(ctx context.Context, id string) (*models.Arcade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	arcade, exists := s.arcades[id]
	if !exists {
		return nil, store.ErrArcadeNotFound
	}

	return cloneArcade(arcade), nil
}

// GetByName retrieves an arcade by its unique (tenant, name) pair.
func (s *ArcadeStore) GetByName(ctx context.Context, tenantID, name string) (*models.Arcade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byName[tenantID][name]
	if !exists {
		return nil, store.ErrArcadeNotFound
	}

	return cloneArcade(s.arcades[id]), nil
}

func matches(a *models.Arcade, filter store.ArcadeFilter) bool {
	if filter.TenantID != "" && a.TenantID != filter.TenantID {
		return false
	}
	if filter.Name != "" && a.Name != filter.Name {
		return false
	}
	if filter.SourceTenantID != "" && a.SourceTenantID != filter.SourceTenantID {
		return false
	}
	if filter.IsBound != nil && a.IsBound != *filter.IsBound {
		return false
	}
	return true
}

// List returns arcades matching the filter, ordered by name.
func (s *ArcadeStore) List(ctx context.Context, filter store.ArcadeFilter) ([]*models.Arcade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Arcade
	for _, a := range s.arcades {
		if matches(a, filter) {
			result = append(result, cloneArcade(a))
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result, nil
}

// Update replaces the stored row identified by arcade.ID.
func (s *ArcadeStore) Update(ctx context.Context, arcade *models.Arcade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.arcades[arcade.ID]
	if !exists {
		return store.ErrArcadeNotFound
	}

	// Keep the name index current if the row was renamed.
	if existing.Name != arcade.Name {
		delete(s.byName[existing.TenantID], existing.Name)
		names := s.byName[arcade.TenantID]
		if names == nil {
			names = make(map[string]string)
			s.byName[arcade.TenantID] = names
		}
		names[arcade.Name] = arcade.ID
	}

	s.arcades[arcade.ID] = cloneArcade(arcade)

	return nil
}

// Delete removes every arcade matching the filter.
func (s *ArcadeStore) Delete(ctx context.Context, filter store.ArcadeFilter) (int, error) {
	if filter == (store.ArcadeFilter{}) {
		return 0, store.ErrEmptyFilter
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, a := range s.arcades {
		if !matches(a, filter) {
			continue
		}
		delete(s.arcades, id)
		delete(s.byName[a.TenantID], a.Name)
		removed++
	}

	return removed, nil
}

// Tenants returns the distinct tenant ids that own at least one arcade.
func (s *ArcadeStore) Tenants(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var tenants []string
	for _, a := range s.arcades {
		if !seen[a.TenantID] {
			seen[a.TenantID] = true
			tenants = append(tenants, a.TenantID)
		}
	}

	sort.Strings(tenants)

	return tenants, nil
}
