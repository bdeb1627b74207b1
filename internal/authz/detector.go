package authz

import (
	"context"
	"strings"
)

// Decision is the outcome of a single detection strategy. Unknown means the
// strategy could not confirm either way, usually because the platform gave
// no usable data; callers fall through to the next strategy.
type Decision int

const (
	DecisionUnknown Decision = iota
	DecisionDenied
	DecisionGranted
)

func (d Decision) String() string {
	switch d {
	case DecisionGranted:
		return "granted"
	case DecisionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// RoleDetector inspects platform-supplied member data and decides whether
// the actor holds a role. Member may be nil when the directory lookup
// failed or is unavailable.
type RoleDetector interface {
	DetectOwner(ctx context.Context, actor Actor, member *MemberRecord) Decision
	DetectAdmin(ctx context.Context, actor Actor, member *MemberRecord) Decision
}

const (
	guildOwnerMarker = "4"
	guildAdminMarker = "2"
)

// ownerFlagFields are the loosely specified boolean member fields that
// various group transports use to mark the container owner.
var ownerFlagFields = []string{"is_owner", "owner", "isOwner", "is_creator", "creator"}

// isGuildStyle reports whether the tenant id names a guild-style container,
// which uses numeric role marker collections instead of role strings.
func isGuildStyle(tenantID string) bool {
	return strings.Contains(tenantID, "guild_") || strings.Contains(tenantID, "group_")
}

// GuildDetector decides roles from guild-style role marker collections.
type GuildDetector struct{}

// DetectOwner grants when the marker collection contains the owner marker
// and denies when a collection is present without it. No collection at all
// is inconclusive.
func (GuildDetector) DetectOwner(_ context.Context, _ Actor, member *MemberRecord) Decision {
	if member == nil || len(member.Roles) == 0 {
		return DecisionUnknown
	}
	for _, role := range member.Roles {
		if role == guildOwnerMarker {
			return DecisionGranted
		}
	}
	return DecisionDenied
}

// DetectAdmin grants on the admin or owner marker.
func (GuildDetector) DetectAdmin(_ context.Context, _ Actor, member *MemberRecord) Decision {
	if member == nil || len(member.Roles) == 0 {
		return DecisionUnknown
	}
	for _, role := range member.Roles {
		if role == guildAdminMarker || role == guildOwnerMarker {
			return DecisionGranted
		}
	}
	return DecisionDenied
}

// GroupDetector decides roles for group-style containers, where member
// payloads are wildly inconsistent across transports. It tries the role
// string, the numeric authority code and the boolean owner flags, then
// falls back to comparing against the container's reported owner id. Only
// the container comparison is authoritative enough to deny.
type GroupDetector struct{}

func (GroupDetector) DetectOwner(ctx context.Context, actor Actor, member *MemberRecord) Decision {
	if member != nil {
		if member.Role == "owner" || member.Role == "群主" {
			return DecisionGranted
		}
		if member.Authority == 3 {
			return DecisionGranted
		}
		for _, field := range ownerFlagFields {
			if member.Flags[field] {
				return DecisionGranted
			}
		}
	}

	if container := actor.container(ctx); container != nil && container.OwnerID != "" {
		if container.OwnerID == actor.UserID {
			return DecisionGranted
		}
		return DecisionDenied
	}

	return DecisionUnknown
}

func (GroupDetector) DetectAdmin(_ context.Context, _ Actor, member *MemberRecord) Decision {
	if member == nil {
		return DecisionUnknown
	}
	switch member.Role {
	case guildAdminMarker, "admin", "管理员":
		return DecisionGranted
	}
	if member.Authority == 2 {
		return DecisionGranted
	}
	return DecisionUnknown
}
