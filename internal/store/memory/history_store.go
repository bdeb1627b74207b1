package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/queuehall/queuehall/internal/models"
)

// HistoryStore implements store.HistoryStore using in-memory storage.
type HistoryStore struct {
	mu sync.RWMutex

	entries []*models.HistoryEntry
}

// NewHistoryStore creates a new in-memory history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{}
}

// Append adds an entry to the log.
func (s *HistoryStore) Append(ctx context.Context, entry *models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *entry
	s.entries = append(s.entries, &clone)

	return nil
}

// ListByArcade returns the arcade's entries ordered by recording time.
func (s *HistoryStore) ListByArcade(ctx context.Context, arcadeID string) ([]*models.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.HistoryEntry
	for _, e := range s.entries {
		if e.ArcadeID == arcadeID {
			clone := *e
			result = append(result, &clone)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].RecordedAt.Before(result[j].RecordedAt) })

	return result, nil
}

// CountByTenant returns the number of entries recorded for a tenant.
func (s *HistoryStore) CountByTenant(ctx context.Context, tenantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.entries {
		if e.TenantID == tenantID {
			count++
		}
	}

	return count, nil
}

// DeleteByArcade removes all entries for one arcade.
func (s *HistoryStore) DeleteByArcade(ctx context.Context, arcadeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.ArcadeID != arcadeID {
			kept = append(kept, e)
		}
	}
	s.entries = kept

	return nil
}

// DeleteByTenant removes all entries for one tenant.
func (s *HistoryStore) DeleteByTenant(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.TenantID != tenantID {
			kept = append(kept, e)
		}
	}
	s.entries = kept

	return nil
}
