package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/queuehall/queuehall/internal/models"
	"github.com/queuehall/queuehall/internal/store"
)

// AllowListStore implements store.AllowListStore using in-memory storage.
type AllowListStore struct {
	mu sync.RWMutex

	entries map[string]map[string]*models.AllowListEntry // tenant id -> user id -> entry
}

// NewAllowListStore creates a new in-memory allow-list store.
func NewAllowListStore() *AllowListStore {
	return &AllowListStore{
		entries: make(map[string]map[string]*models.AllowListEntry),
	}
}

// Create stores a new entry, enforcing (tenant, user) uniqueness.
func (s *AllowListStore) Create(ctx context.Context, entry *models.AllowListEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.entries[entry.TenantID]
	if users == nil {
		users = make(map[string]*models.AllowListEntry)
		s.entries[entry.TenantID] = users
	}
	if _, exists := users[entry.UserID]; exists {
		return store.ErrAllowListExists
	}

	clone := *entry
	users[entry.UserID] = &clone

	return nil
}

// Get retrieves a tenant's entry for one user.
func (s *AllowListStore) Get(ctx context.Context, tenantID, userID string) (*models.AllowListEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.entries[tenantID][userID]
	if !exists {
		return nil, store.ErrAllowListNotFound
	}

	clone := *entry
	return &clone, nil
}

// ListByTenant returns the tenant's entries ordered by user id.
func (s *AllowListStore) ListByTenant(ctx context.Context, tenantID string) ([]*models.AllowListEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.AllowListEntry
	for _, entry := range s.entries[tenantID] {
		clone := *entry
		result = append(result, &clone)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })

	return result, nil
}

// Delete removes one user's entry from a tenant's allow-list.
func (s *AllowListStore) Delete(ctx context.Context, tenantID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[tenantID][userID]; !exists {
		return store.ErrAllowListNotFound
	}
	delete(s.entries[tenantID], userID)

	return nil
}

// DeleteByTenant clears the tenant's allow-list.
func (s *AllowListStore) DeleteByTenant(ctx context.Context, tenantID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := len(s.entries[tenantID])
	delete(s.entries, tenantID)

	return removed, nil
}

// NewStores wires the four in-memory collections into a store.Stores bundle.
func NewStores() store.Stores {
	return store.Stores{
		Arcades:   NewArcadeStore(),
		History:   NewHistoryStore(),
		Bindings:  NewBindingStore(),
		AllowList: NewAllowListStore(),
	}
}
