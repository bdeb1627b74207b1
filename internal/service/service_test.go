package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/queuehall/queuehall/internal/authz"
	"github.com/queuehall/queuehall/internal/queue"
	"github.com/queuehall/queuehall/internal/report"
	"github.com/queuehall/queuehall/internal/resolve"
	"github.com/queuehall/queuehall/internal/store"
	"github.com/queuehall/queuehall/internal/store/memory"
)

type recordingScheduler struct {
	mu         sync.Mutex
	registered []string
	cancelled  []string
}

func (r *recordingScheduler) Register(tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered = append(r.registered, tenantID)
}

func (r *recordingScheduler) Cancel(tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, tenantID)
}

type fixture struct {
	svc       *Service
	stores    store.Stores
	scheduler *recordingScheduler
	clock     *clock.Mock
}

func newFixture(t *testing.T, authzCfg authz.Config) *fixture {
	t.Helper()

	stores := memory.NewStores()
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

	resolver := resolve.NewResolver(stores.Arcades, stores.Bindings)
	engine := queue.NewEngine(stores, resolver, mock)
	sched := &recordingScheduler{}

	svc := New(Params{
		Config: Config{
			MaxAliasesPerArcade: 3,
			ResetConfirmation:   "confirm reset",
			SystemUpdaterName:   "system",
		},
		Stores:     stores,
		Resolver:   resolver,
		Engine:     engine,
		Authorizer: authz.NewResolver(authzCfg, stores.AllowList),
		Reports:    report.NewAggregator(stores, resolver, mock),
		Scheduler:  sched,
		Clock:      mock,
	})

	return &fixture{svc: svc, stores: stores, scheduler: sched, clock: mock}
}

func owner(tenantID string) authz.Actor {
	return authz.Actor{Platform: "onebot", TenantID: tenantID, UserID: "boss", DisplayName: "Boss"}
}

func member(tenantID, userID string) authz.Actor {
	return authz.Actor{Platform: "onebot", TenantID: tenantID, UserID: userID, DisplayName: userID}
}

// ownerConfig grants the "boss" user ownership everywhere via configuration.
func ownerConfig() authz.Config {
	return authz.Config{OwnerIDs: []string{"onebot:boss"}}
}

func TestServiceAddArcade(t *testing.T) {
	ctx := context.Background()
	const tenant = "onebot:100"

	t.Run("creates arcade with initial history and schedule", func(t *testing.T) {
		f := newFixture(t, ownerConfig())

		arcade, err := f.svc.AddArcade(ctx, owner(tenant), "Wonder Dome", []string{"wd"})
		require.NoError(t, err)
		require.Equal(t, "Wonder Dome", arcade.Name)
		require.Zero(t, arcade.Current)
		require.Zero(t, arcade.TotalUpdates)

		entries, err := f.stores.History.ListByArcade(ctx, arcade.ID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Zero(t, entries[0].Count)

		require.Equal(t, []string{tenant}, f.scheduler.registered)
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		f := newFixture(t, ownerConfig())

		_, err := f.svc.AddArcade(ctx, member(tenant, "u1"), "Wonder Dome", nil)
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("rejects blank name", func(t *testing.T) {
		f := newFixture(t, ownerConfig())

		_, err := f.svc.AddArcade(ctx, owner(tenant), "   ", nil)
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("rejects too many aliases", func(t *testing.T) {
		f := newFixture(t, ownerConfig())

		_, err := f.svc.AddArcade(ctx, owner(tenant), "Wonder Dome", []string{"a", "b", "c", "d"})
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("duplicate name conflicts", func(t *testing.T) {
		f := newFixture(t, ownerConfig())

		_, err := f.svc.AddArcade(ctx, owner(tenant), "Wonder Dome", nil)
		require.NoError(t, err)
		_, err = f.svc.AddArcade(ctx, owner(tenant), "Wonder Dome", nil)
		require.ErrorIs(t, err, ErrConflict)
	})

	t.Run("alias already in use conflicts", func(t *testing.T) {
		f := newFixture(t, ownerConfig())

		_, err := f.svc.AddArcade(ctx, owner(tenant), "Wonder Dome", []string{"wd"})
		require.NoError(t, err)
		_, err = f.svc.AddArcade(ctx, owner(tenant), "Wonder Deck", []string{"wd"})
		require.ErrorIs(t, err, ErrConflict)
	})

	t.Run("alias matching an existing name conflicts", func(t *testing.T) {
		f := newFixture(t, ownerConfig())

		_, err := f.svc.AddArcade(ctx, owner(tenant), "Wonder Dome", nil)
		require.NoError(t, err)
		_, err = f.svc.AddArcade(ctx, owner(tenant), "Wonder Deck", []string{"Wonder Dome"})
		require.ErrorIs(t, err, ErrConflict)
	})

	t.Run("rejects repeated alias in one request", func(t *testing.T) {
		f := newFixture(t, ownerConfig())

		_, err := f.svc.AddArcade(ctx, owner(tenant), "Wonder Dome", []string{"wd", "wd"})
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("rejects alias equal to own name", func(t *testing.T) {
		f := newFixture(t, ownerConfig())

		_, err := f.svc.AddArcade(ctx, owner(tenant), "Wonder Dome", []string{"Wonder Dome"})
		require.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestServiceUpdateQueue(t *testing.T) {
	ctx := context.Background()
	const tenant = "onebot:100"

	t.Run("open to any actor", func(t *testing.T) {
		f := newFixture(t, ownerConfig())
		_, err := f.svc.AddArcade(ctx, owner(tenant), "Wonder Dome", []string{"wd"})
		require.NoError(t, err)

		arcade, err := f.svc.UpdateQueue(ctx, member(tenant, "u1"), "wd", 4)
		require.NoError(t, err)
		require.Equal(t, int64(4), arcade.Current)
		require.Equal(t, "u1", arcade.LastUpdaterName)
	})

	t.Run("rejects negative count", func(t *testing.T) {
		f := newFixture(t, ownerConfig())

		_, err := f.svc.UpdateQueue(ctx, member(tenant, "u1"), "wd", -1)
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("unknown keyword is not found", func(t *testing.T) {
		f := newFixture(t, ownerConfig())

		_, err := f.svc.UpdateQueue(ctx, member(tenant, "u1"), "nowhere", 4)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestServiceQuery(t *testing.T) {
	ctx := context.Background()
	const tenant = "onebot:100"

	f := newFixture(t, ownerConfig())
	_, err := f.svc.AddArcade(ctx, owner(tenant), "Flagship Ocean", []string{"fo"})
	require.NoError(t, err)
	_, err = f.svc.AddArcade(ctx, owner(tenant), "Wonder Dome", []string{"wd"})
	require.NoError(t, err)

	t.Run("empty keyword lists everything", func(t *testing.T) {
		result, err := f.svc.Query(ctx, tenant, "")
		require.NoError(t, err)
		require.Equal(t, QueryModeList, result.Mode)
		require.Len(t, result.Arcades, 2)
	})

	t.Run("alias resolves to a single arcade", func(t *testing.T) {
		result, err := f.svc.Query(ctx, tenant, "fo")
		require.NoError(t, err)
		require.Equal(t, QueryModeExact, result.Mode)
		require.Len(t, result.Arcades, 1)
		require.Equal(t, "Flagship Ocean", result.Arcades[0].Name)
	})

	t.Run("trailing j searches aliases by substring", func(t *testing.T) {
		result, err := f.svc.Query(ctx, tenant, "foj")
		require.NoError(t, err)
		require.Equal(t, QueryModeAlias, result.Mode)
		require.Equal(t, "fo", result.Keyword)
		require.Len(t, result.Arcades, 1)
	})

	t.Run("bare j matches every aliased arcade", func(t *testing.T) {
		result, err := f.svc.Query(ctx, tenant, "j")
		require.NoError(t, err)
		require.Equal(t, QueryModeAlias, result.Mode)
		require.Len(t, result.Arcades, 2)
	})

	t.Run("fuzzy fallback on partial name", func(t *testing.T) {
		result, err := f.svc.Query(ctx, tenant, "Ocean")
		require.NoError(t, err)
		// "Ocean" substring-matches a local name in the last resolve tier.
		require.Equal(t, QueryModeExact, result.Mode)
	})

	t.Run("no match is an empty result, not an error", func(t *testing.T) {
		result, err := f.svc.Query(ctx, tenant, "nowhere")
		require.NoError(t, err)
		require.Equal(t, QueryModeFuzzy, result.Mode)
		require.NotNil(t, result.Arcades)
		require.Empty(t, result.Arcades)
	})

	t.Run("alias search with no hits is an empty result", func(t *testing.T) {
		result, err := f.svc.Query(ctx, tenant, "zzzj")
		require.NoError(t, err)
		require.Equal(t, QueryModeAlias, result.Mode)
		require.Empty(t, result.Arcades)
	})
}

func TestServiceBinding(t *testing.T) {
	ctx := context.Background()
	const tenant = "onebot:100"
	const source = "onebot:200"

	t.Run("set and get", func(t *testing.T) {
		f := newFixture(t, ownerConfig())

		binding, err := f.svc.SetBinding(ctx, owner(tenant), source, true)
		require.NoError(t, err)
		require.True(t, binding.Enabled)

		got, err := f.svc.GetBinding(ctx, tenant)
		require.NoError(t, err)
		require.Equal(t, source, got.SourceTenantID)
	})

	t.Run("rejects self binding", func(t *testing.T) {
		f := newFixture(t, ownerConfig())

		_, err := f.svc.SetBinding(ctx, owner(tenant), tenant, true)
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		f := newFixture(t, ownerConfig())

		_, err := f.svc.SetBinding(ctx, member(tenant, "u1"), source, true)
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("unbind cascades materialized copies", func(t *testing.T) {
		f := newFixture(t, ownerConfig())

		_, err := f.svc.AddArcade(ctx, owner(source), "Star Plaza", []string{"sp"})
		require.NoError(t, err)
		_, err = f.svc.AddArcade(ctx, owner(tenant), "Wonder Dome", []string{"wd"})
		require.NoError(t, err)
		_, err = f.svc.SetBinding(ctx, owner(tenant), source, true)
		require.NoError(t, err)

		// Updating the bound arcade materializes a local copy.
		materialized, err := f.svc.UpdateQueue(ctx, member(tenant, "u1"), "sp", 3)
		require.NoError(t, err)
		require.Equal(t, tenant, materialized.TenantID)

		result, err := f.svc.Unbind(ctx, owner(tenant))
		require.NoError(t, err)
		require.Equal(t, source, result.SourceTenantID)
		require.Equal(t, 1, result.DeletedArcades)

		// The copy and its history are gone, the unrelated local survives.
		locals, err := f.stores.Arcades.List(ctx, store.ArcadeFilter{TenantID: tenant})
		require.NoError(t, err)
		require.Len(t, locals, 1)
		require.Equal(t, "Wonder Dome", locals[0].Name)

		entries, err := f.stores.History.ListByArcade(ctx, materialized.ID)
		require.NoError(t, err)
		require.Empty(t, entries)

		// The source tenant keeps its data.
		_, err = f.stores.Arcades.GetByName(ctx, source, "Star Plaza")
		require.NoError(t, err)

		_, err = f.svc.GetBinding(ctx, tenant)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unbind without binding is not found", func(t *testing.T) {
		f := newFixture(t, ownerConfig())

		_, err := f.svc.Unbind(ctx, owner(tenant))
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestServiceResetTenant(t *testing.T) {
	ctx := context.Background()
	const tenant = "onebot:100"

	t.Run("wipes everything and cancels the schedule", func(t *testing.T) {
		f := newFixture(t, ownerConfig())

		_, err := f.svc.AddArcade(ctx, owner(tenant), "Wonder Dome", []string{"wd"})
		require.NoError(t, err)
		_, err = f.svc.UpdateQueue(ctx, member(tenant, "u1"), "wd", 4)
		require.NoError(t, err)

		result, err := f.svc.ResetTenant(ctx, owner(tenant), "confirm reset")
		require.NoError(t, err)
		require.Equal(t, 1, result.ArcadeCount)
		require.Equal(t, 2, result.HistoryCount)

		arcades, err := f.stores.Arcades.List(ctx, store.ArcadeFilter{TenantID: tenant})
		require.NoError(t, err)
		require.Empty(t, arcades)

		require.Equal(t, []string{tenant}, f.scheduler.cancelled)
	})

	t.Run("wrong confirmation is rejected", func(t *testing.T) {
		f := newFixture(t, ownerConfig())

		_, err := f.svc.ResetTenant(ctx, owner(tenant), "yes")
		require.ErrorIs(t, err, ErrConfirmationMismatch)
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		f := newFixture(t, ownerConfig())

		_, err := f.svc.ResetTenant(ctx, member(tenant, "u1"), "confirm reset")
		require.ErrorIs(t, err, ErrForbidden)
	})
}

func TestServiceAllowList(t *testing.T) {
	ctx := context.Background()
	const tenant = "onebot:100"

	t.Run("add, list, remove, clear", func(t *testing.T) {
		f := newFixture(t, ownerConfig())

		entry, err := f.svc.AllowListAdd(ctx, owner(tenant), "onebot:u1", "Alice")
		require.NoError(t, err)
		require.Equal(t, "onebot:boss", entry.AddedByID)

		_, err = f.svc.AllowListAdd(ctx, owner(tenant), "onebot:u1", "Alice")
		require.ErrorIs(t, err, ErrConflict)

		entries, err := f.svc.AllowList(ctx, tenant)
		require.NoError(t, err)
		require.Len(t, entries, 1)

		require.NoError(t, f.svc.AllowListRemove(ctx, owner(tenant), "onebot:u1"))
		require.ErrorIs(t, f.svc.AllowListRemove(ctx, owner(tenant), "onebot:u1"), ErrNotFound)

		_, err = f.svc.AllowListAdd(ctx, owner(tenant), "onebot:u2", "Bob")
		require.NoError(t, err)
		count, err := f.svc.AllowListClear(ctx, owner(tenant))
		require.NoError(t, err)
		require.Equal(t, 1, count)
	})

	t.Run("management gate applies when configured", func(t *testing.T) {
		cfg := ownerConfig()
		cfg.AllowListManagementRequiresAdmin = true
		f := newFixture(t, cfg)

		_, err := f.svc.AllowListAdd(ctx, member(tenant, "u1"), "onebot:u2", "Bob")
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("allow list gates operations when enabled", func(t *testing.T) {
		cfg := ownerConfig()
		cfg.AllowListEnabled = true
		f := newFixture(t, cfg)

		_, err := f.svc.AllowListAdd(ctx, owner(tenant), member(tenant, "u1").CompositeID(), "Alice")
		require.NoError(t, err)

		// Listed member may now add arcades; unlisted may not.
		_, err = f.svc.AddArcade(ctx, member(tenant, "u1"), "Wonder Dome", nil)
		require.NoError(t, err)
		_, err = f.svc.AddArcade(ctx, member(tenant, "u2"), "Flagship Ocean", nil)
		require.ErrorIs(t, err, ErrForbidden)
	})
}

func TestServiceBoundQueryFlow(t *testing.T) {
	ctx := context.Background()
	const tenant = "onebot:100"
	const source = "onebot:200"

	f := newFixture(t, ownerConfig())

	_, err := f.svc.AddArcade(ctx, owner(source), "Star Plaza", []string{"sp"})
	require.NoError(t, err)
	_, err = f.svc.UpdateQueue(ctx, member(source, "s1"), "sp", 7)
	require.NoError(t, err)
	_, err = f.svc.SetBinding(ctx, owner(tenant), source, true)
	require.NoError(t, err)

	// The bound arcade is visible read-only with the source's stats.
	result, err := f.svc.Query(ctx, tenant, "sp")
	require.NoError(t, err)
	require.Len(t, result.Arcades, 1)
	require.True(t, result.Arcades[0].IsBound)
	require.Equal(t, int64(7), result.Arcades[0].Current)

	// A local update forks off a copy; later queries prefer it.
	_, err = f.svc.UpdateQueue(ctx, member(tenant, "u1"), "sp", 2)
	require.NoError(t, err)

	result, err = f.svc.Query(ctx, tenant, "Star Plaza")
	require.NoError(t, err)
	require.False(t, result.Arcades[0].IsBound)
	require.Equal(t, int64(2), result.Arcades[0].Current)

	original, err := f.stores.Arcades.GetByName(ctx, source, "Star Plaza")
	require.NoError(t, err)
	require.Equal(t, int64(7), original.Current)
}

func TestServiceRegisterSchedulers(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, ownerConfig())
	_, err := f.svc.AddArcade(ctx, owner("onebot:100"), "Wonder Dome", nil)
	require.NoError(t, err)
	_, err = f.svc.AddArcade(ctx, owner("onebot:200"), "Star Plaza", nil)
	require.NoError(t, err)

	f.scheduler.registered = nil
	require.NoError(t, f.svc.RegisterSchedulers(ctx))
	require.ElementsMatch(t, []string{"onebot:100", "onebot:200"}, f.scheduler.registered)
}
