//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/queuehall/queuehall/internal/models"
	"github.com/queuehall/queuehall/internal/store"
)

func setupPostgresStores(t *testing.T, ctx context.Context) store.Stores {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	pool, err := NewPool(ctx, &PoolConfig{ConnString: connString})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))

	return NewStores(pool)
}

func newIntegrationArcade(tenantID, name string, aliases ...string) *models.Arcade {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Arcade{
		ID:        uuid.Must(uuid.NewV7()).String(),
		TenantID:  tenantID,
		Name:      name,
		Aliases:   aliases,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestIntegration_ArcadeLifecycle(t *testing.T) {
	ctx := context.Background()
	stores := setupPostgresStores(t, ctx)

	t.Run("create and get by name", func(t *testing.T) {
		arcade := newIntegrationArcade("onebot:100", "Wonder Dome", "wd")
		require.NoError(t, stores.Arcades.Create(ctx, arcade))

		got, err := stores.Arcades.GetByName(ctx, "onebot:100", "Wonder Dome")
		require.NoError(t, err)
		require.Equal(t, arcade.ID, got.ID)
		require.Equal(t, []string{"wd"}, got.Aliases)
	})

	t.Run("duplicate name maps to conflict sentinel", func(t *testing.T) {
		err := stores.Arcades.Create(ctx, newIntegrationArcade("onebot:100", "Wonder Dome"))
		require.ErrorIs(t, err, store.ErrArcadeExists)
	})

	t.Run("update persists stats and the given timestamp", func(t *testing.T) {
		arcade, err := stores.Arcades.GetByName(ctx, "onebot:100", "Wonder Dome")
		require.NoError(t, err)

		stamp := time.Date(2024, 6, 1, 4, 0, 0, 0, time.UTC)
		arcade.Current = 7
		arcade.TotalUpdates = 1
		arcade.TotalPeople = 7
		arcade.Average = 7
		arcade.UpdatedAt = stamp
		require.NoError(t, stores.Arcades.Update(ctx, arcade))

		got, err := stores.Arcades.Get(ctx, arcade.ID)
		require.NoError(t, err)
		require.EqualValues(t, 7, got.Current)
		require.EqualValues(t, 7, got.Average)
		require.Equal(t, stamp, got.UpdatedAt.UTC())
	})

	t.Run("delete with an empty filter is rejected", func(t *testing.T) {
		_, err := stores.Arcades.Delete(ctx, store.ArcadeFilter{})
		require.ErrorIs(t, err, store.ErrEmptyFilter)

		_, err = stores.Arcades.GetByName(ctx, "onebot:100", "Wonder Dome")
		require.NoError(t, err)
	})

	t.Run("filtered delete cascades by source tenant", func(t *testing.T) {
		materialized := newIntegrationArcade("onebot:100", "Star Plaza", "sp")
		materialized.SourceTenantID = "onebot:200"
		require.NoError(t, stores.Arcades.Create(ctx, materialized))

		deleted, err := stores.Arcades.Delete(ctx, store.ArcadeFilter{
			TenantID:       "onebot:100",
			SourceTenantID: "onebot:200",
		})
		require.NoError(t, err)
		require.Equal(t, 1, deleted)

		_, err = stores.Arcades.GetByName(ctx, "onebot:100", "Star Plaza")
		require.ErrorIs(t, err, store.ErrArcadeNotFound)
	})

	t.Run("tenants lists distinct owners", func(t *testing.T) {
		require.NoError(t, stores.Arcades.Create(ctx, newIntegrationArcade("onebot:300", "Elsewhere")))

		tenants, err := stores.Arcades.Tenants(ctx)
		require.NoError(t, err)
		require.Contains(t, tenants, "onebot:100")
		require.Contains(t, tenants, "onebot:300")
	})
}

func TestIntegration_HistoryAndBinding(t *testing.T) {
	ctx := context.Background()
	stores := setupPostgresStores(t, ctx)

	arcade := newIntegrationArcade("onebot:100", "Wonder Dome", "wd")
	require.NoError(t, stores.Arcades.Create(ctx, arcade))

	t.Run("history append and list", func(t *testing.T) {
		for i, count := range []int64{3, 5} {
			entry := &models.HistoryEntry{
				ID:          uuid.Must(uuid.NewV7()).String(),
				ArcadeID:    arcade.ID,
				TenantID:    arcade.TenantID,
				Count:       count,
				UpdaterID:   "onebot:u1",
				UpdaterName: "Alice",
				RecordedAt:  time.Now().UTC().Add(time.Duration(i) * time.Second).Truncate(time.Microsecond),
			}
			require.NoError(t, stores.History.Append(ctx, entry))
		}

		entries, err := stores.History.ListByArcade(ctx, arcade.ID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		require.EqualValues(t, 3, entries[0].Count)

		count, err := stores.History.CountByTenant(ctx, arcade.TenantID)
		require.NoError(t, err)
		require.Equal(t, 2, count)
	})

	t.Run("binding upsert replaces the target row", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Microsecond)
		first := &models.Binding{
			ID:             uuid.Must(uuid.NewV7()).String(),
			SourceTenantID: "onebot:200",
			TargetTenantID: "onebot:100",
			Enabled:        true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		require.NoError(t, stores.Bindings.Upsert(ctx, first))

		second := &models.Binding{
			ID:             uuid.Must(uuid.NewV7()).String(),
			SourceTenantID: "onebot:300",
			TargetTenantID: "onebot:100",
			Enabled:        false,
			CreatedAt:      now,
			UpdatedAt:      now.Add(time.Second),
		}
		require.NoError(t, stores.Bindings.Upsert(ctx, second))

		got, err := stores.Bindings.GetByTarget(ctx, "onebot:100")
		require.NoError(t, err)
		require.Equal(t, "onebot:300", got.SourceTenantID)
		require.False(t, got.Enabled)
	})

	t.Run("allow list uniqueness", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Microsecond)
		entry := &models.AllowListEntry{
			ID:        uuid.Must(uuid.NewV7()).String(),
			TenantID:  "onebot:100",
			UserID:    "onebot:u1",
			UserName:  "Alice",
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, stores.AllowList.Create(ctx, entry))

		dup := *entry
		dup.ID = uuid.Must(uuid.NewV7()).String()
		require.ErrorIs(t, stores.AllowList.Create(ctx, &dup), store.ErrAllowListExists)
	})
}
