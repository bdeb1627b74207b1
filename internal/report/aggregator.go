package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/queuehall/queuehall/internal/models"
	"github.com/queuehall/queuehall/internal/resolve"
	"github.com/queuehall/queuehall/internal/store"
)

// AliasStat counts how many visible arcades carry a given alias.
type AliasStat struct {
	Alias string `json:"alias"`
	Count int    `json:"count"`
}

// Report is the tenant-wide statistics snapshot.
type Report struct {
	TenantID     string         `json:"tenant_id"`
	LocalCount   int            `json:"local_count"`
	BoundCount   int            `json:"bound_count"`
	TotalCount   int            `json:"total_count"`
	TotalCurrent int64          `json:"total_current"`
	TotalUpdates int64          `json:"total_updates"`
	AliasStats   []AliasStat    `json:"alias_stats,omitempty"`
	MostCrowded  *models.Arcade `json:"most_crowded,omitempty"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

// BindingStatus summarizes a tenant's binding for the status view.
type BindingStatus struct {
	SourceTenantID string `json:"source_tenant_id"`
	Enabled        bool   `json:"enabled"`
}

// Status is the operational overview of one tenant.
type Status struct {
	TenantID       string         `json:"tenant_id"`
	ArcadeCount    int            `json:"arcade_count"`
	BoundCount     int            `json:"bound_count"`
	HistoryCount   int            `json:"history_count"`
	AllowListCount int            `json:"allow_list_count"`
	Binding        *BindingStatus `json:"binding,omitempty"`
	GeneratedAt    time.Time      `json:"generated_at"`
}

// Aggregator computes read-only tenant summaries.
type Aggregator struct {
	stores   store.Stores
	resolver *resolve.Resolver
	clock    clock.Clock
}

// NewAggregator creates an aggregator over the given stores.
func NewAggregator(stores store.Stores, resolver *resolve.Resolver, clk clock.Clock) *Aggregator {
	if clk == nil {
		clk = clock.New()
	}
	return &Aggregator{stores: stores, resolver: resolver, clock: clk}
}

// Report builds the statistics snapshot over the tenant's visible set,
// projections included.
func (a *Aggregator) Report(ctx context.Context, tenantID string) (*Report, error) {
	visible, err := a.resolver.VisibleSet(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	report := &Report{
		TenantID:    tenantID,
		TotalCount:  len(visible),
		GeneratedAt: a.clock.Now().UTC(),
	}

	aliasCounts := make(map[string]int)
	for _, arcade := range visible {
		if arcade.IsBound {
			report.BoundCount++
		} else {
			report.LocalCount++
		}
		report.TotalCurrent += arcade.Current
		report.TotalUpdates += arcade.TotalUpdates

		for _, alias := range arcade.Aliases {
			aliasCounts[alias]++
		}

		if report.MostCrowded == nil || arcade.Current > report.MostCrowded.Current {
			report.MostCrowded = arcade
		}
	}

	for alias, count := range aliasCounts {
		report.AliasStats = append(report.AliasStats, AliasStat{Alias: alias, Count: count})
	}
	sort.Slice(report.AliasStats, func(i, j int) bool {
		if report.AliasStats[i].Count != report.AliasStats[j].Count {
			return report.AliasStats[i].Count > report.AliasStats[j].Count
		}
		return report.AliasStats[i].Alias < report.AliasStats[j].Alias
	})

	return report, nil
}

// Status builds the operational overview for one tenant.
func (a *Aggregator) Status(ctx context.Context, tenantID string) (*Status, error) {
	local, err := a.stores.Arcades.List(ctx, store.ArcadeFilter{TenantID: tenantID})
	if err != nil {
		return nil, fmt.Errorf("failed to list arcades: %w", err)
	}

	historyCount, err := a.stores.History.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	allowList, err := a.stores.AllowList.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	status := &Status{
		TenantID:       tenantID,
		ArcadeCount:    len(local),
		HistoryCount:   historyCount,
		AllowListCount: len(allowList),
		GeneratedAt:    a.clock.Now().UTC(),
	}

	binding, err := a.stores.Bindings.GetByTarget(ctx, tenantID)
	if err != nil && !errors.Is(err, store.ErrBindingNotFound) {
		return nil, err
	}
	if binding != nil {
		status.Binding = &BindingStatus{
			SourceTenantID: binding.SourceTenantID,
			Enabled:        binding.Enabled,
		}
		if binding.Enabled {
			bound, err := a.stores.Arcades.List(ctx, store.ArcadeFilter{TenantID: binding.SourceTenantID})
			if err != nil {
				return nil, fmt.Errorf("failed to list bound arcades: %w", err)
			}
			status.BoundCount = len(bound)
		}
	}

	return status, nil
}
