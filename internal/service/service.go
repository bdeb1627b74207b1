package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/queuehall/queuehall/internal/authz"
	"github.com/queuehall/queuehall/internal/models"
	"github.com/queuehall/queuehall/internal/queue"
	"github.com/queuehall/queuehall/internal/report"
	"github.com/queuehall/queuehall/internal/resolve"
	"github.com/queuehall/queuehall/internal/store"
)

// ResetScheduler arms and disarms the daily reset per tenant. Implemented
// by the scheduler package.
type ResetScheduler interface {
	Register(tenantID string)
	Cancel(tenantID string)
}

// Config carries the service-level knobs.
type Config struct {
	// MaxAliasesPerArcade caps the alias list accepted on creation.
	MaxAliasesPerArcade int

	// ResetConfirmation is the exact text a caller must echo back to wipe a
	// tenant's data.
	ResetConfirmation string

	// SystemUpdaterName is the display name recorded on writes the service
	// performs itself.
	SystemUpdaterName string
}

// Params bundles the collaborators the service is built from.
type Params struct {
	Config     Config
	Stores     store.Stores
	Resolver   *resolve.Resolver
	Engine     *queue.Engine
	Authorizer *authz.Resolver
	Reports    *report.Aggregator
	Scheduler  ResetScheduler
	Clock      clock.Clock
}

// Service is the application facade. Every operation validates input,
// enforces the permission gates and translates failures into the shared
// error taxonomy.
type Service struct {
	cfg        Config
	stores     store.Stores
	resolver   *resolve.Resolver
	engine     *queue.Engine
	authorizer *authz.Resolver
	reports    *report.Aggregator
	scheduler  ResetScheduler
	clock      clock.Clock
}

// New creates the service.
func New(p Params) *Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		cfg:        p.Config,
		stores:     p.Stores,
		resolver:   p.Resolver,
		engine:     p.Engine,
		authorizer: p.Authorizer,
		reports:    p.Reports,
		scheduler:  p.Scheduler,
		clock:      clk,
	}
}

// QueryMode names how a query was answered.
type QueryMode string

const (
	QueryModeList  QueryMode = "list"
	QueryModeExact QueryMode = "exact"
	QueryModeAlias QueryMode = "alias"
	QueryModeFuzzy QueryMode = "fuzzy"
)

// QueryResult is the answer to a keyword query.
type QueryResult struct {
	Mode    QueryMode        `json:"mode"`
	Keyword string           `json:"keyword"`
	Arcades []*models.Arcade `json:"arcades"`
}

// Query answers a keyword lookup. An empty keyword lists the whole visible
// set. A keyword ending in "j" strips the suffix and searches aliases by
// substring. Anything else resolves to a single arcade, falling back to a
// fuzzy name-or-alias search. Zero matches is a valid answer, not an error.
func (s *Service) Query(ctx context.Context, tenantID, query string) (*QueryResult, error) {
	query = strings.TrimSpace(query)

	if query == "" {
		visible, err := s.resolver.VisibleSet(ctx, tenantID)
		if err != nil {
			return nil, upstream(err)
		}
		return &QueryResult{Mode: QueryModeList, Arcades: emptyNotNil(visible)}, nil
	}

	if strings.HasSuffix(query, "j") {
		keyword := strings.TrimSuffix(query, "j")
		arcades, err := s.resolver.SearchByAlias(ctx, tenantID, keyword)
		if err != nil {
			return nil, upstream(err)
		}
		return &QueryResult{Mode: QueryModeAlias, Keyword: keyword, Arcades: emptyNotNil(arcades)}, nil
	}

	arcade, err := s.resolver.Resolve(ctx, tenantID, query)
	if err == nil {
		return &QueryResult{Mode: QueryModeExact, Keyword: query, Arcades: []*models.Arcade{arcade}}, nil
	}
	if !errors.Is(err, store.ErrArcadeNotFound) {
		return nil, upstream(err)
	}

	arcades, err := s.resolver.SearchFuzzy(ctx, tenantID, query)
	if err != nil {
		return nil, upstream(err)
	}
	return &QueryResult{Mode: QueryModeFuzzy, Keyword: query, Arcades: emptyNotNil(arcades)}, nil
}

// emptyNotNil keeps zero-match answers rendering as an empty JSON array.
func emptyNotNil(arcades []*models.Arcade) []*models.Arcade {
	if arcades == nil {
		return []*models.Arcade{}
	}
	return arcades
}

// GetArcade resolves a keyword to a single arcade.
func (s *Service) GetArcade(ctx context.Context, tenantID, query string) (*models.Arcade, error) {
	arcade, err := s.resolver.Resolve(ctx, tenantID, strings.TrimSpace(query))
	if err != nil {
		if errors.Is(err, store.ErrArcadeNotFound) {
			return nil, fmt.Errorf("%w: arcade %q", ErrNotFound, query)
		}
		return nil, upstream(err)
	}
	return arcade, nil
}

// AddArcade creates a new arcade for the actor's tenant. Requires the
// operation gate. Alias lists are capped and must not collide with another
// local arcade's name or aliases.
func (s *Service) AddArcade(ctx context.Context, actor authz.Actor, name string, aliases []string) (*models.Arcade, error) {
	if err := s.requireOperate(ctx, actor); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: arcade name must not be empty", ErrInvalidInput)
	}
	if s.cfg.MaxAliasesPerArcade > 0 && len(aliases) > s.cfg.MaxAliasesPerArcade {
		return nil, fmt.Errorf("%w: at most %d aliases allowed", ErrInvalidInput, s.cfg.MaxAliasesPerArcade)
	}

	cleaned := make([]string, 0, len(aliases))
	seen := make(map[string]bool, len(aliases))
	for _, alias := range aliases {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			return nil, fmt.Errorf("%w: aliases must not be empty", ErrInvalidInput)
		}
		if alias == name {
			return nil, fmt.Errorf("%w: alias %q duplicates the arcade name", ErrInvalidInput, alias)
		}
		if seen[alias] {
			return nil, fmt.Errorf("%w: alias %q given more than once", ErrInvalidInput, alias)
		}
		seen[alias] = true
		cleaned = append(cleaned, alias)
	}

	local, err := s.stores.Arcades.List(ctx, store.ArcadeFilter{TenantID: actor.TenantID})
	if err != nil {
		return nil, upstream(err)
	}
	for _, alias := range cleaned {
		for _, existing := range local {
			// A name collision would shadow the alias in exact resolution.
			if existing.Name == alias {
				return nil, fmt.Errorf("%w: alias %q is already an arcade name", ErrConflict, alias)
			}
			for _, used := range existing.Aliases {
				if used == alias {
					return nil, fmt.Errorf("%w: alias %q already used by arcade %q", ErrConflict, alias, existing.Name)
				}
			}
		}
	}

	now := s.clock.Now().UTC()
	arcade := &models.Arcade{
		ID:              uuid.Must(uuid.NewV7()).String(),
		TenantID:        actor.TenantID,
		Name:            name,
		Aliases:         cleaned,
		LastUpdated:     now,
		LastUpdaterID:   queue.SystemUpdaterID,
		LastUpdaterName: s.cfg.SystemUpdaterName,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.stores.Arcades.Create(ctx, arcade); err != nil {
		if errors.Is(err, store.ErrArcadeExists) {
			return nil, fmt.Errorf("%w: arcade %q already exists", ErrConflict, name)
		}
		return nil, upstream(err)
	}

	entry := &models.HistoryEntry{
		ID:          uuid.Must(uuid.NewV7()).String(),
		ArcadeID:    arcade.ID,
		TenantID:    actor.TenantID,
		Count:       0,
		UpdaterID:   queue.SystemUpdaterID,
		UpdaterName: s.cfg.SystemUpdaterName,
		RecordedAt:  now,
	}
	if err := s.stores.History.Append(ctx, entry); err != nil {
		return nil, upstream(err)
	}

	s.scheduler.Register(actor.TenantID)

	log.Info().
		Str("tenant_id", actor.TenantID).
		Str("arcade", name).
		Strs("aliases", cleaned).
		Msg("Added arcade")

	return arcade, nil
}

// UpdateQueue reports an arcade's current queue count. Open to every actor.
func (s *Service) UpdateQueue(ctx context.Context, actor authz.Actor, query string, count int64) (*models.Arcade, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: queue count must not be negative", ErrInvalidInput)
	}

	updaterName := actor.DisplayName
	if updaterName == "" {
		updaterName = actor.UserID
	}

	arcade, err := s.engine.UpdateQueue(ctx, actor.TenantID, strings.TrimSpace(query), count, actor.CompositeID(), updaterName)
	if err != nil {
		if errors.Is(err, store.ErrArcadeNotFound) {
			return nil, fmt.Errorf("%w: arcade %q", ErrNotFound, query)
		}
		return nil, upstream(err)
	}
	return arcade, nil
}

// History returns an arcade's recorded counts in order.
func (s *Service) History(ctx context.Context, tenantID, query string) ([]*models.HistoryEntry, error) {
	arcade, err := s.GetArcade(ctx, tenantID, query)
	if err != nil {
		return nil, err
	}

	entries, err := s.stores.History.ListByArcade(ctx, arcade.ID)
	if err != nil {
		return nil, upstream(err)
	}
	return entries, nil
}

// GetBinding returns the tenant's binding row.
func (s *Service) GetBinding(ctx context.Context, tenantID string) (*models.Binding, error) {
	binding, err := s.stores.Bindings.GetByTarget(ctx, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrBindingNotFound) {
			return nil, fmt.Errorf("%w: no binding for tenant", ErrNotFound)
		}
		return nil, upstream(err)
	}
	return binding, nil
}

// SetBinding points the actor's tenant at a source tenant's arcade data, or
// disables the mirror when enable is false. Requires the operation gate.
func (s *Service) SetBinding(ctx context.Context, actor authz.Actor, sourceTenantID string, enable bool) (*models.Binding, error) {
	if err := s.requireOperate(ctx, actor); err != nil {
		return nil, err
	}

	sourceTenantID = strings.TrimSpace(sourceTenantID)
	if sourceTenantID == "" {
		return nil, fmt.Errorf("%w: source tenant must not be empty", ErrInvalidInput)
	}
	if sourceTenantID == actor.TenantID {
		return nil, fmt.Errorf("%w: cannot bind a tenant to itself", ErrInvalidInput)
	}

	now := s.clock.Now().UTC()
	binding := &models.Binding{
		ID:             uuid.Must(uuid.NewV7()).String(),
		SourceTenantID: sourceTenantID,
		TargetTenantID: actor.TenantID,
		Enabled:        enable,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.stores.Bindings.Upsert(ctx, binding); err != nil {
		return nil, upstream(err)
	}

	log.Info().
		Str("tenant_id", actor.TenantID).
		Str("source_tenant_id", sourceTenantID).
		Bool("enabled", enable).
		Msg("Updated binding")

	return binding, nil
}

// UnbindResult reports what an unbind removed.
type UnbindResult struct {
	SourceTenantID string `json:"source_tenant_id"`
	DeletedArcades int    `json:"deleted_arcades"`
}

// Unbind removes the tenant's binding and cascades away every arcade that
// was materialized from the bound source, history included. Requires the
// operation gate.
func (s *Service) Unbind(ctx context.Context, actor authz.Actor) (*UnbindResult, error) {
	if err := s.requireOperate(ctx, actor); err != nil {
		return nil, err
	}

	binding, err := s.stores.Bindings.GetByTarget(ctx, actor.TenantID)
	if err != nil {
		if errors.Is(err, store.ErrBindingNotFound) {
			return nil, fmt.Errorf("%w: no binding for tenant", ErrNotFound)
		}
		return nil, upstream(err)
	}
	if !binding.Enabled {
		return nil, fmt.Errorf("%w: binding is already disabled", ErrNotFound)
	}

	filter := store.ArcadeFilter{
		TenantID:       actor.TenantID,
		SourceTenantID: binding.SourceTenantID,
	}
	materialized, err := s.stores.Arcades.List(ctx, filter)
	if err != nil {
		return nil, upstream(err)
	}
	for _, arcade := range materialized {
		if err := s.stores.History.DeleteByArcade(ctx, arcade.ID); err != nil {
			return nil, upstream(err)
		}
	}
	deleted, err := s.stores.Arcades.Delete(ctx, filter)
	if err != nil {
		return nil, upstream(err)
	}

	if err := s.stores.Bindings.DeleteByTarget(ctx, actor.TenantID); err != nil && !errors.Is(err, store.ErrBindingNotFound) {
		return nil, upstream(err)
	}

	log.Info().
		Str("tenant_id", actor.TenantID).
		Str("source_tenant_id", binding.SourceTenantID).
		Int("deleted_arcades", deleted).
		Msg("Unbound tenant")

	return &UnbindResult{SourceTenantID: binding.SourceTenantID, DeletedArcades: deleted}, nil
}

// ResetResult reports what a tenant reset removed.
type ResetResult struct {
	ArcadeCount  int `json:"arcade_count"`
	HistoryCount int `json:"history_count"`
}

// ResetTenant wipes everything the tenant owns: arcades, history, binding,
// allow-list and the daily reset timer. Requires the operation gate and an
// exact confirmation echo.
func (s *Service) ResetTenant(ctx context.Context, actor authz.Actor, confirmation string) (*ResetResult, error) {
	if err := s.requireOperate(ctx, actor); err != nil {
		return nil, err
	}
	if confirmation != s.cfg.ResetConfirmation {
		return nil, fmt.Errorf("%w: expected %q", ErrConfirmationMismatch, s.cfg.ResetConfirmation)
	}

	historyCount, err := s.stores.History.CountByTenant(ctx, actor.TenantID)
	if err != nil {
		return nil, upstream(err)
	}
	if err := s.stores.History.DeleteByTenant(ctx, actor.TenantID); err != nil {
		return nil, upstream(err)
	}

	arcadeCount, err := s.stores.Arcades.Delete(ctx, store.ArcadeFilter{TenantID: actor.TenantID})
	if err != nil {
		return nil, upstream(err)
	}

	if err := s.stores.Bindings.DeleteByTarget(ctx, actor.TenantID); err != nil && !errors.Is(err, store.ErrBindingNotFound) {
		return nil, upstream(err)
	}
	if _, err := s.stores.AllowList.DeleteByTenant(ctx, actor.TenantID); err != nil {
		return nil, upstream(err)
	}

	s.scheduler.Cancel(actor.TenantID)

	log.Info().
		Str("tenant_id", actor.TenantID).
		Str("user_id", actor.UserID).
		Int("arcades", arcadeCount).
		Int("history", historyCount).
		Msg("Reset tenant data")

	return &ResetResult{ArcadeCount: arcadeCount, HistoryCount: historyCount}, nil
}

// AllowListAdd puts a user on the tenant's allow-list. Requires the
// allow-list management gate.
func (s *Service) AllowListAdd(ctx context.Context, actor authz.Actor, targetUserID, targetUserName string) (*models.AllowListEntry, error) {
	if err := s.requireManageAllowList(ctx, actor); err != nil {
		return nil, err
	}

	targetUserID = strings.TrimSpace(targetUserID)
	if targetUserID == "" {
		return nil, fmt.Errorf("%w: user id must not be empty", ErrInvalidInput)
	}

	now := s.clock.Now().UTC()
	entry := &models.AllowListEntry{
		ID:          uuid.Must(uuid.NewV7()).String(),
		TenantID:    actor.TenantID,
		UserID:      targetUserID,
		UserName:    targetUserName,
		AddedByID:   actor.CompositeID(),
		AddedByName: actor.DisplayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.stores.AllowList.Create(ctx, entry); err != nil {
		if errors.Is(err, store.ErrAllowListExists) {
			return nil, fmt.Errorf("%w: user %q already on the allow list", ErrConflict, targetUserID)
		}
		return nil, upstream(err)
	}

	log.Info().
		Str("tenant_id", actor.TenantID).
		Str("user_id", targetUserID).
		Msg("Added allow list entry")

	return entry, nil
}

// AllowListRemove takes a user off the tenant's allow-list. Requires the
// allow-list management gate.
func (s *Service) AllowListRemove(ctx context.Context, actor authz.Actor, targetUserID string) error {
	if err := s.requireManageAllowList(ctx, actor); err != nil {
		return err
	}

	err := s.stores.AllowList.Delete(ctx, actor.TenantID, strings.TrimSpace(targetUserID))
	if err != nil {
		if errors.Is(err, store.ErrAllowListNotFound) {
			return fmt.Errorf("%w: user %q is not on the allow list", ErrNotFound, targetUserID)
		}
		return upstream(err)
	}
	return nil
}

// AllowListClear empties the tenant's allow-list and returns how many
// entries were removed. Requires the allow-list management gate.
func (s *Service) AllowListClear(ctx context.Context, actor authz.Actor) (int, error) {
	if err := s.requireManageAllowList(ctx, actor); err != nil {
		return 0, err
	}

	count, err := s.stores.AllowList.DeleteByTenant(ctx, actor.TenantID)
	if err != nil {
		return 0, upstream(err)
	}

	log.Info().
		Str("tenant_id", actor.TenantID).
		Int("count", count).
		Msg("Cleared allow list")

	return count, nil
}

// AllowList returns the tenant's allow-list entries.
func (s *Service) AllowList(ctx context.Context, tenantID string) ([]*models.AllowListEntry, error) {
	entries, err := s.stores.AllowList.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, upstream(err)
	}
	return entries, nil
}

// Report builds the tenant's statistics snapshot.
func (s *Service) Report(ctx context.Context, tenantID string) (*report.Report, error) {
	r, err := s.reports.Report(ctx, tenantID)
	if err != nil {
		return nil, upstream(err)
	}
	return r, nil
}

// Status builds the tenant's operational overview.
func (s *Service) Status(ctx context.Context, tenantID string) (*report.Status, error) {
	status, err := s.reports.Status(ctx, tenantID)
	if err != nil {
		return nil, upstream(err)
	}
	return status, nil
}

// RegisterSchedulers arms the daily reset for every tenant that already
// owns arcades. Called once at startup.
func (s *Service) RegisterSchedulers(ctx context.Context) error {
	tenants, err := s.stores.Arcades.Tenants(ctx)
	if err != nil {
		return upstream(err)
	}
	for _, tenantID := range tenants {
		s.scheduler.Register(tenantID)
	}

	log.Info().Int("tenants", len(tenants)).Msg("Registered daily reset schedules")
	return nil
}

func (s *Service) requireOperate(ctx context.Context, actor authz.Actor) error {
	ok, err := s.authorizer.CanOperate(ctx, actor)
	if err != nil {
		return upstream(err)
	}
	if !ok {
		return fmt.Errorf("%w: user %s may not manage this tenant", ErrForbidden, actor.CompositeID())
	}
	return nil
}

func (s *Service) requireManageAllowList(ctx context.Context, actor authz.Actor) error {
	if !s.authorizer.CanManageAllowList(ctx, actor) {
		return fmt.Errorf("%w: user %s may not manage the allow list", ErrForbidden, actor.CompositeID())
	}
	return nil
}

func upstream(err error) error {
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}
