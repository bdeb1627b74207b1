package queue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/queuehall/queuehall/internal/models"
	"github.com/queuehall/queuehall/internal/resolve"
	"github.com/queuehall/queuehall/internal/store"
)

// SystemUpdaterID marks mutations performed by the service itself rather
// than a platform user.
const SystemUpdaterID = "system"

// Engine applies queue mutations. All writes for one tenant are serialized
// behind a per-tenant lock so the stats update and its history entry land
// together.
type Engine struct {
	stores   store.Stores
	resolver *resolve.Resolver
	clock    clock.Clock

	mu      sync.Mutex
	tenants map[string]*sync.Mutex
}

// NewEngine creates an engine over the given stores. The clock is
// injectable for tests.
func NewEngine(stores store.Stores, resolver *resolve.Resolver, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.New()
	}
	return &Engine{
		stores:   stores,
		resolver: resolver,
		clock:    clk,
		tenants:  make(map[string]*sync.Mutex),
	}
}

func (e *Engine) tenantLock(tenantID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.tenants[tenantID]
	if !ok {
		lock = &sync.Mutex{}
		e.tenants[tenantID] = lock
	}
	return lock
}

// UpdateQueue sets an arcade's current queue count and folds the report
// into its running stats. When the keyword resolves to a projection of a
// bound tenant, the update lands on a local materialized copy instead; the
// source tenant's row is never written.
func (e *Engine) UpdateQueue(ctx context.Context, tenantID, query string, count int64, updaterID, updaterName string) (*models.Arcade, error) {
	lock := e.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	arcade, err := e.resolver.Resolve(ctx, tenantID, query)
	if err != nil {
		return nil, err
	}

	if arcade.IsBound {
		arcade, err = e.materialize(ctx, tenantID, arcade)
		if err != nil {
			return nil, err
		}
	}

	now := e.clock.Now().UTC()
	arcade.Current = count
	arcade.TotalUpdates++
	arcade.TotalPeople += count
	arcade.Average = round2(float64(arcade.TotalPeople) / float64(arcade.TotalUpdates))
	arcade.LastUpdated = now
	arcade.LastUpdaterID = updaterID
	arcade.LastUpdaterName = updaterName
	arcade.UpdatedAt = now

	if err := e.stores.Arcades.Update(ctx, arcade); err != nil {
		return nil, fmt.Errorf("failed to update arcade: %w", err)
	}

	if err := e.appendHistory(ctx, arcade, count, updaterID, updaterName, now); err != nil {
		return nil, err
	}

	log.Info().
		Str("tenant_id", tenantID).
		Str("arcade", arcade.Name).
		Int64("count", count).
		Msg("Updated queue count")

	return arcade, nil
}

// materialize returns the tenant's local copy of a bound arcade, creating
// it from the projection's snapshot on first write. A local arcade that
// already uses the name wins over a fresh copy.
func (e *Engine) materialize(ctx context.Context, tenantID string, projection *models.Arcade) (*models.Arcade, error) {
	existing, err := e.stores.Arcades.GetByName(ctx, tenantID, projection.Name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrArcadeNotFound) {
		return nil, err
	}

	now := e.clock.Now().UTC()
	local := &models.Arcade{
		ID:              uuid.Must(uuid.NewV7()).String(),
		TenantID:        tenantID,
		Name:            projection.Name,
		Aliases:         append([]string(nil), projection.Aliases...),
		Current:         projection.Current,
		TotalUpdates:    projection.TotalUpdates,
		TotalPeople:     projection.TotalPeople,
		Average:         projection.Average,
		LastUpdated:     projection.LastUpdated,
		LastUpdaterID:   projection.LastUpdaterID,
		LastUpdaterName: projection.LastUpdaterName,
		SourceTenantID:  projection.SourceTenantID,
		IsBound:         false,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := e.stores.Arcades.Create(ctx, local); err != nil {
		return nil, fmt.Errorf("failed to materialize bound arcade: %w", err)
	}

	log.Debug().
		Str("tenant_id", tenantID).
		Str("source_tenant_id", projection.SourceTenantID).
		Str("arcade", projection.Name).
		Msg("Materialized local copy of bound arcade")

	return local, nil
}

// ResetCounts zeroes every local arcade's current count and records a
// zero-count history entry for each. Running stats are left intact. Returns
// the number of arcades touched.
func (e *Engine) ResetCounts(ctx context.Context, tenantID, updaterName string) (int, error) {
	lock := e.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	arcades, err := e.stores.Arcades.List(ctx, store.ArcadeFilter{TenantID: tenantID})
	if err != nil {
		return 0, fmt.Errorf("failed to list arcades: %w", err)
	}

	now := e.clock.Now().UTC()
	for _, arcade := range arcades {
		arcade.Current = 0
		arcade.LastUpdated = now
		arcade.LastUpdaterID = SystemUpdaterID
		arcade.LastUpdaterName = updaterName
		arcade.UpdatedAt = now

		if err := e.stores.Arcades.Update(ctx, arcade); err != nil {
			return 0, fmt.Errorf("failed to reset arcade %q: %w", arcade.Name, err)
		}

		if err := e.appendHistory(ctx, arcade, 0, SystemUpdaterID, updaterName, now); err != nil {
			return 0, err
		}
	}

	return len(arcades), nil
}

func (e *Engine) appendHistory(ctx context.Context, arcade *models.Arcade, count int64, updaterID, updaterName string, now time.Time) error {
	entry := &models.HistoryEntry{
		ID:          uuid.Must(uuid.NewV7()).String(),
		ArcadeID:    arcade.ID,
		TenantID:    arcade.TenantID,
		Count:       count,
		UpdaterID:   updaterID,
		UpdaterName: updaterName,
		RecordedAt:  now,
	}
	if err := e.stores.History.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// round2 rounds to two decimal places, matching how averages are reported.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
