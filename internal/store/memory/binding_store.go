package memory

import (
	"context"
	"sync"
	"time"

	"github.com/queuehall/queuehall/internal/models"
	"github.com/queuehall/queuehall/internal/store"
)

// BindingStore implements store.BindingStore using in-memory storage.
type BindingStore struct {
	mu sync.RWMutex

	byTarget map[string]*models.Binding // target tenant id -> Binding
}

// NewBindingStore creates a new in-memory binding store.
func NewBindingStore() *BindingStore {
	return &BindingStore{
		byTarget: make(map[string]*models.Binding),
	}
}

// GetByTarget retrieves the binding row for a target tenant.
func (s *BindingStore) GetByTarget(ctx context.Context, targetTenantID string) (*models.Binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	binding, exists := s.byTarget[targetTenantID]
	if !exists {
		return nil, store.ErrBindingNotFound
	}

	clone := *binding
	return &clone, nil
}

// Upsert creates the binding or replaces source/enabled on the existing row.
func (s *BindingStore) Upsert(ctx context.Context, binding *models.Binding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, exists := s.byTarget[binding.TargetTenantID]; exists {
		binding.ID = existing.ID
		binding.CreatedAt = existing.CreatedAt
	}
	binding.UpdatedAt = now

	clone := *binding
	s.byTarget[binding.TargetTenantID] = &clone

	return nil
}

// DeleteByTarget removes the binding row for a target tenant.
func (s *BindingStore) DeleteByTarget(ctx context.Context, targetTenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byTarget[targetTenantID]; !exists {
		return store.ErrBindingNotFound
	}
	delete(s.byTarget, targetTenantID)

	return nil
}
