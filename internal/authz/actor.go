package authz

import (
	"context"
)

// MemberRecord is the raw member payload returned by a platform directory
// lookup. Platforms populate different subsets of these fields; absent
// fields are zero-valued.
type MemberRecord struct {
	// Roles is the guild-style role marker collection, e.g. ["1", "2", "4"].
	Roles []string

	// Role is a single role identifier; group-style platforms report
	// values like "owner", "admin" or numeric strings here.
	Role string

	// Authority is a numeric authority code (3 owner, 2 admin) reported by
	// some group-style transports.
	Authority int

	// Flags carries loosely specified boolean owner markers keyed by field
	// name (is_owner, owner, isOwner, is_creator, creator).
	Flags map[string]bool
}

// ContainerRecord is the raw container (group/guild) metadata payload.
type ContainerRecord struct {
	OwnerID string
}

// MemberLookupFunc fetches a member record from the platform directory.
// It may fail or return nil; both are soft outcomes.
type MemberLookupFunc func(ctx context.Context, tenantID, userID string) (*MemberRecord, error)

// ContainerLookupFunc fetches container metadata from the platform directory.
type ContainerLookupFunc func(ctx context.Context, tenantID string) (*ContainerRecord, error)

// Actor identifies who is performing an operation and how to ask the
// platform about them. The lookups are optional: a nil func means the
// transport offers no directory access.
type Actor struct {
	Platform    string // e.g. "onebot"
	TenantID    string // platform-scoped group id, e.g. "onebot:123456789"
	UserID      string // raw platform user id
	DisplayName string

	MemberLookup    MemberLookupFunc
	ContainerLookup ContainerLookupFunc
}

// CompositeID returns the platform-qualified user id used in configuration
// and allow-list rows.
func (a Actor) CompositeID() string {
	if a.Platform == "" {
		return a.UserID
	}
	return a.Platform + ":" + a.UserID
}

// member runs the member lookup, treating every failure as absence.
func (a Actor) member(ctx context.Context) *MemberRecord {
	if a.MemberLookup == nil {
		return nil
	}
	member, err := a.MemberLookup(ctx, a.TenantID, a.UserID)
	if err != nil {
		return nil
	}
	return member
}

// container runs the container lookup, treating every failure as absence.
func (a Actor) container(ctx context.Context) *ContainerRecord {
	if a.ContainerLookup == nil {
		return nil
	}
	container, err := a.ContainerLookup(ctx, a.TenantID)
	if err != nil {
		return nil
	}
	return container
}
