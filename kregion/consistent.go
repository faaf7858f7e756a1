package kregion

import (
	"fmt"
	"slices"
	"time"

	"github.com/birdayz/streamc/kmodel"
)

// Default consistent region settings.
const (
	DefaultDrainTimeout                = 180 * time.Second
	DefaultResetTimeout                = 180 * time.Second
	DefaultMaxConsecutiveResetAttempts = 5
)

// RegionConfig is the configuration a start operator gives its region.
type RegionConfig struct {
	DrainTimeout                time.Duration
	ResetTimeout                time.Duration
	Period                      time.Duration
	MaxConsecutiveResetAttempts int

	// OperatorDriven regions are triggered by their start operator rather
	// than periodically.
	OperatorDriven bool
}

// CCRegion is a consistent region: a set of operators whose state is
// checkpointed and reset atomically. Regions are never deleted; a merged
// region points at the region it was merged into.
type CCRegion struct {
	Index int

	// LogicalIndex is stable across channel replicas of the region.
	LogicalIndex int
	// ChannelKey identifies the parallel channels the region's start operator
	// lives in, empty outside parallel regions.
	ChannelKey string

	RegionConfig

	operators map[kmodel.OperatorIndex]struct{}
	starts    map[kmodel.OperatorIndex]struct{}

	MergedWith *CCRegion
}

// Add makes op a member of the region.
func (r *CCRegion) Add(op kmodel.OperatorIndex) {
	r.operators[op] = struct{}{}
}

// AddStart makes op a member and a start operator of the region.
func (r *CCRegion) AddStart(op kmodel.OperatorIndex) {
	r.Add(op)
	r.starts[op] = struct{}{}
}

// Contains reports whether op is a member.
func (r *CCRegion) Contains(op kmodel.OperatorIndex) bool {
	_, ok := r.operators[op]
	return ok
}

// Members returns the member operators in ascending index order.
func (r *CCRegion) Members() []kmodel.OperatorIndex {
	return sortedKeys(r.operators)
}

// Starts returns the recorded start operators in ascending index order.
func (r *CCRegion) Starts() []kmodel.OperatorIndex {
	return sortedKeys(r.starts)
}

func (r *CCRegion) String() string {
	return fmt.Sprintf("region %d (logical %d%s)", r.Index, r.LogicalIndex, r.ChannelKey)
}

type regionKey struct {
	logical int
	channel string
}

type mergedPair struct {
	a, b int
}

// CCRegions is the registry of consistent regions with a memoized,
// redirect-on-find union of overlapping regions.
type CCRegions struct {
	regions []*CCRegion
	byKey   map[regionKey]*CCRegion
	merged  map[mergedPair]*CCRegion
}

// NewCCRegions creates an empty registry.
func NewCCRegions() *CCRegions {
	return &CCRegions{
		byKey:  make(map[regionKey]*CCRegion),
		merged: make(map[mergedPair]*CCRegion),
	}
}

// Lookup finds the region registered for a logical index and channel key.
func (c *CCRegions) Lookup(logical int, channelKey string) (*CCRegion, bool) {
	r, ok := c.byKey[regionKey{logical: logical, channel: channelKey}]
	return r, ok
}

// LookupOrCreate returns the region registered for the key, creating it with
// cfg if absent.
func (c *CCRegions) LookupOrCreate(logical int, channelKey string, cfg RegionConfig) *CCRegion {
	if r, ok := c.Lookup(logical, channelKey); ok {
		return r
	}
	r := &CCRegion{
		Index:        len(c.regions),
		LogicalIndex: logical,
		ChannelKey:   channelKey,
		RegionConfig: cfg,
		operators:    make(map[kmodel.OperatorIndex]struct{}),
		starts:       make(map[kmodel.OperatorIndex]struct{}),
	}
	c.regions = append(c.regions, r)
	c.byKey[regionKey{logical: logical, channel: channelKey}] = r
	return r
}

// Get returns the region with the given index.
func (c *CCRegions) Get(index int) (*CCRegion, error) {
	if index < 0 || index >= len(c.regions) {
		return nil, fmt.Errorf("%w: consistent region %d", ErrRegionNotFound, index)
	}
	return c.regions[index], nil
}

// All returns every region ever created, merged ones included, in index order.
func (c *CCRegions) All() []*CCRegion {
	return c.regions
}

// Roots returns the regions that have not been merged into another region.
func (c *CCRegions) Roots() []*CCRegion {
	var out []*CCRegion
	for _, r := range c.regions {
		if r.MergedWith == nil {
			out = append(out, r)
		}
	}
	return out
}

// Effective follows MergedWith links to the region r was ultimately merged
// into. Calling it on its own result returns the same region.
func (c *CCRegions) Effective(r *CCRegion) *CCRegion {
	for r.MergedWith != nil {
		r = r.MergedWith
	}
	return r
}

// Merge unions two regions and returns the surviving region. Merging a
// region with itself, or a pair that was merged before, returns the current
// effective region. If either side was already merged elsewhere, the merge is
// retried on the effective regions. Otherwise b is merged into a: b's
// operators move to a and b redirects to a.
func (c *CCRegions) Merge(a, b *CCRegion) *CCRegion {
	if a == b {
		return c.Effective(a)
	}
	if m, ok := c.merged[mergedPair{a.Index, b.Index}]; ok {
		return c.Effective(m)
	}
	if a.MergedWith != nil || b.MergedWith != nil {
		return c.Merge(c.Effective(a), c.Effective(b))
	}

	for op := range b.operators {
		a.operators[op] = struct{}{}
	}
	for op := range b.starts {
		a.starts[op] = struct{}{}
	}
	a.OperatorDriven = a.OperatorDriven || b.OperatorDriven
	a.DrainTimeout = max(a.DrainTimeout, b.DrainTimeout)
	a.ResetTimeout = max(a.ResetTimeout, b.ResetTimeout)
	a.MaxConsecutiveResetAttempts = max(a.MaxConsecutiveResetAttempts, b.MaxConsecutiveResetAttempts)
	if a.Period == 0 || (b.Period != 0 && b.Period < a.Period) {
		a.Period = b.Period
	}

	clear(b.operators)
	clear(b.starts)
	b.MergedWith = a

	c.merged[mergedPair{a.Index, b.Index}] = a
	c.merged[mergedPair{b.Index, a.Index}] = a
	return a
}

// MergeAll folds regions into one, left to right, and returns the result.
func (c *CCRegions) MergeAll(regions []*CCRegion) *CCRegion {
	if len(regions) == 0 {
		return nil
	}
	acc := regions[0]
	for _, r := range regions[1:] {
		acc = c.Merge(acc, r)
	}
	return c.Effective(acc)
}

// EffectiveMembers returns, for every root region, its sorted members. It is
// mainly useful to compare region partitions.
func (c *CCRegions) EffectiveMembers() [][]kmodel.OperatorIndex {
	var out [][]kmodel.OperatorIndex
	for _, r := range c.Roots() {
		out = append(out, r.Members())
	}
	slices.SortFunc(out, func(a, b []kmodel.OperatorIndex) int {
		return slices.Compare(a, b)
	})
	return out
}
