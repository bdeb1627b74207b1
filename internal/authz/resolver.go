package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/queuehall/queuehall/internal/store"
)

// Config carries the operator-supplied authorization settings.
type Config struct {
	// OwnerIDs are platform-qualified user ids (platform:user) that are
	// treated as owners everywhere, before any platform detection runs.
	OwnerIDs []string

	// AdminRoleIdentifiers are extra role strings that count as admin on
	// top of the built-in platform markers.
	AdminRoleIdentifiers []string

	// AllowListEnabled switches the operation gate from admin detection to
	// per-tenant allow-list membership. Owners always pass either way.
	AllowListEnabled bool

	// AllowListManagementRequiresAdmin gates allow-list mutation behind the
	// admin check when set; otherwise any actor may manage the list.
	AllowListManagementRequiresAdmin bool
}

// Resolver answers role and permission questions about actors. Platform
// lookups degrade softly: a transport that cannot answer never blocks the
// decision chain, it just fails to confirm.
type Resolver struct {
	cfg       Config
	allowList store.AllowListStore

	owners     map[string]struct{}
	adminRoles map[string]struct{}

	guild RoleDetector
	group RoleDetector
}

// NewResolver creates a resolver backed by the given allow-list store.
func NewResolver(cfg Config, allowList store.AllowListStore) *Resolver {
	return &Resolver{
		cfg:        cfg,
		allowList:  allowList,
		owners:     toSet(cfg.OwnerIDs),
		adminRoles: toSet(cfg.AdminRoleIdentifiers),
		guild:      GuildDetector{},
		group:      GroupDetector{},
	}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func (r *Resolver) detector(tenantID string) RoleDetector {
	if isGuildStyle(tenantID) {
		return r.guild
	}
	return r.group
}

// IsOwner reports whether the actor owns the tenant's container. The
// configured owner list is checked first and wins outright; platform
// detection runs only when configuration is silent.
func (r *Resolver) IsOwner(ctx context.Context, actor Actor) bool {
	if _, ok := r.owners[actor.CompositeID()]; ok {
		return true
	}

	decision := r.detector(actor.TenantID).DetectOwner(ctx, actor, actor.member(ctx))

	log.Debug().
		Str("tenant_id", actor.TenantID).
		Str("user_id", actor.UserID).
		Stringer("decision", decision).
		Msg("Resolved owner decision")

	return decision == DecisionGranted
}

// IsAdmin reports whether the actor holds admin rights in the tenant's
// container. Owners are always admins. Beyond the platform markers, a
// member role string matching the configured admin identifiers also counts.
func (r *Resolver) IsAdmin(ctx context.Context, actor Actor) bool {
	if r.IsOwner(ctx, actor) {
		return true
	}

	member := actor.member(ctx)
	decision := r.detector(actor.TenantID).DetectAdmin(ctx, actor, member)
	if decision == DecisionGranted {
		return true
	}

	if member != nil && member.Role != "" {
		if _, ok := r.adminRoles[member.Role]; ok {
			return true
		}
	}

	return false
}

// IsAllowListed reports whether the actor appears on the tenant's
// allow-list. Store failures surface as errors so callers can distinguish
// "not listed" from "could not check".
func (r *Resolver) IsAllowListed(ctx context.Context, actor Actor) (bool, error) {
	_, err := r.allowList.Get(ctx, actor.TenantID, actor.CompositeID())
	if err != nil {
		if errors.Is(err, store.ErrAllowListNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check allow list: %w", err)
	}
	return true, nil
}

// CanOperate is the gate for queue mutations and other privileged tenant
// operations. Owners always pass; everyone else needs allow-list membership
// when the allow-list is enabled, or admin rights otherwise.
func (r *Resolver) CanOperate(ctx context.Context, actor Actor) (bool, error) {
	if r.IsOwner(ctx, actor) {
		return true, nil
	}
	if r.cfg.AllowListEnabled {
		return r.IsAllowListed(ctx, actor)
	}
	return r.IsAdmin(ctx, actor), nil
}

// CanManageAllowList is the gate for allow-list mutations.
func (r *Resolver) CanManageAllowList(ctx context.Context, actor Actor) bool {
	if !r.cfg.AllowListManagementRequiresAdmin {
		return true
	}
	return r.IsAdmin(ctx, actor)
}
