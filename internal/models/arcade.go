package models

import (
	"time"
)

// Arcade is a queue-tracked resource owned by a single tenant.
// Identity is (TenantID, Name); aliases are unique within the tenant across
// all arcades and are also checked against arcade names.
type Arcade struct {
	ID       string   `json:"id"` // UUIDv7
	TenantID string   `json:"tenant_id"`
	Name     string   `json:"name"`
	Aliases  []string `json:"aliases,omitempty"`

	// Running statistics. Average is persisted (not derived at read time)
	// so historical snapshots keep the value current at write time.
	Current      int64   `json:"current"`
	TotalUpdates int64   `json:"total_updates"`
	TotalPeople  int64   `json:"total_people"`
	Average      float64 `json:"average"`

	LastUpdated     time.Time `json:"last_updated"`
	LastUpdaterID   string    `json:"last_updater_id"`
	LastUpdaterName string    `json:"last_updater_name"`

	// SourceTenantID is set on rows materialized from a binding and on
	// read-time projections. IsBound is persisted false for owned rows;
	// only projections carry true.
	SourceTenantID string `json:"source_tenant_id,omitempty"`
	IsBound        bool   `json:"is_bound"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Projection returns a read-time view of the arcade as seen through a
// binding. The returned value is never the row of truth.
func (a *Arcade) Projection(sourceTenantID string) *Arcade {
	clone := *a
	clone.Aliases = append([]string(nil), a.Aliases...)
	clone.IsBound = true
	clone.SourceTenantID = sourceTenantID
	return &clone
}

// HistoryEntry is an immutable record of one queue count observation,
// including scheduled and administrative resets.
type HistoryEntry struct {
	ID          string    `json:"id"` // UUIDv7
	ArcadeID    string    `json:"arcade_id"`
	TenantID    string    `json:"tenant_id"`
	Count       int64     `json:"count"`
	UpdaterID   string    `json:"updater_id"`
	UpdaterName string    `json:"updater_name"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Binding mirrors SourceTenantID's arcades into TargetTenantID for
// read/resolve purposes. At most one binding exists per target tenant.
type Binding struct {
	ID             string    `json:"id"` // UUIDv7
	SourceTenantID string    `json:"source_tenant_id"`
	TargetTenantID string    `json:"target_tenant_id"`
	Enabled        bool      `json:"enabled"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AllowListEntry grants a user privileged-operation rights in one tenant,
// independent of platform-role detection.
type AllowListEntry struct {
	ID          string    `json:"id"` // UUIDv7
	TenantID    string    `json:"tenant_id"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name,omitempty"`
	AddedByID   string    `json:"added_by_id,omitempty"`
	AddedByName string    `json:"added_by_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
