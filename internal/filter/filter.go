// Package filter decides which regions and services a scan covers.
package filter

import (
	"github.com/yairfalse/sweep/pkg/resource"
)

// Filter controls which regions and service kinds are probed.
type Filter struct {
	includeRegions map[resource.Region]bool
	excludeRegions map[resource.Region]bool
	excludeKinds   map[resource.ServiceKind]bool
}

// New creates a Filter. An empty include list means every enabled region.
func New(includeRegions, excludeRegions []string, excludeKinds []resource.ServiceKind) *Filter {
	f := &Filter{
		includeRegions: make(map[resource.Region]bool),
		excludeRegions: make(map[resource.Region]bool),
		excludeKinds:   make(map[resource.ServiceKind]bool),
	}
	for _, r := range includeRegions {
		f.includeRegions[resource.Region(r)] = true
	}
	for _, r := range excludeRegions {
		f.excludeRegions[resource.Region(r)] = true
	}
	for _, k := range excludeKinds {
		f.excludeKinds[k] = true
	}
	return f
}

// ShouldScanRegion returns true if the region passes the include and exclude lists.
func (f *Filter) ShouldScanRegion(region resource.Region) bool {
	if f == nil {
		return true
	}
	if len(f.includeRegions) > 0 && !f.includeRegions[region] {
		return false
	}
	return !f.excludeRegions[region]
}

// ShouldScanKind returns true if the service kind is not excluded.
func (f *Filter) ShouldScanKind(kind resource.ServiceKind) bool {
	if f == nil {
		return true
	}
	return !f.excludeKinds[kind]
}

// Regions returns the regions that pass the filter, in input order.
func (f *Filter) Regions(regions []resource.Region) []resource.Region {
	if f.IsEmpty() {
		return regions
	}

	filtered := make([]resource.Region, 0, len(regions))
	for _, r := range regions {
		if f.ShouldScanRegion(r) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// IsEmpty returns true if no filters are configured.
func (f *Filter) IsEmpty() bool {
	return f == nil || len(f.includeRegions) == 0 && len(f.excludeRegions) == 0 && len(f.excludeKinds) == 0
}
