package kregion

import (
	"fmt"

	"github.com/birdayz/streamc/kmodel"
)

// ParallelRegion is one instance of a replicated subgraph. Nested regions get
// one instance per enclosing channel, all sharing the same Name.
type ParallelRegion struct {
	Index int
	Name  string
	Width int

	// OperIndex is the region-defining operator (channel 0).
	OperIndex kmodel.OperatorIndex

	// Splitters configures the splitter per input port of the region root.
	// Ports without an entry use round robin distribution.
	Splitters map[int]kmodel.SplitterConfig

	// Replicas holds the root of every channel, in channel order. Replicas[0]
	// is OperIndex.
	Replicas []kmodel.OperatorIndex
}

// SplitterFor returns the splitter configuration of an input port.
func (r *ParallelRegion) SplitterFor(port int) kmodel.SplitterConfig {
	if cfg, ok := r.Splitters[port]; ok {
		return cfg
	}
	return kmodel.SplitterConfig{Kind: kmodel.SplitRoundRobin}
}

// ParallelRegions is the registry of parallel region instances.
type ParallelRegions struct {
	regions []*ParallelRegion
	byName  map[string][]*ParallelRegion
}

// NewParallelRegions creates an empty registry.
func NewParallelRegions() *ParallelRegions {
	return &ParallelRegions{
		byName: make(map[string][]*ParallelRegion),
	}
}

// Add registers a region instance rooted at oper.
func (p *ParallelRegions) Add(name string, oper kmodel.OperatorIndex, width int, splitters map[int]kmodel.SplitterConfig) *ParallelRegion {
	if splitters == nil {
		splitters = make(map[int]kmodel.SplitterConfig)
	}
	r := &ParallelRegion{
		Index:     len(p.regions),
		Name:      name,
		Width:     width,
		OperIndex: oper,
		Splitters: splitters,
		Replicas:  []kmodel.OperatorIndex{oper},
	}
	p.regions = append(p.regions, r)
	p.byName[name] = append(p.byName[name], r)
	return r
}

// Get returns the region with the given index.
func (p *ParallelRegions) Get(index int) (*ParallelRegion, error) {
	if index < 0 || index >= len(p.regions) {
		return nil, fmt.Errorf("%w: parallel region %d", ErrRegionNotFound, index)
	}
	return p.regions[index], nil
}

// ByName returns every instance of the named region in creation order.
func (p *ParallelRegions) ByName(name string) []*ParallelRegion {
	return p.byName[name]
}

// ForOperator returns the region op is a root of, or nil.
func (p *ParallelRegions) ForOperator(op kmodel.Operator) *ParallelRegion {
	idx := op.Base().ParallelRegion
	if idx < 0 || idx >= len(p.regions) {
		return nil
	}
	return p.regions[idx]
}

// All returns every region in index order.
func (p *ParallelRegions) All() []*ParallelRegion {
	return p.regions
}

// Len returns the number of region instances.
func (p *ParallelRegions) Len() int {
	return len(p.regions)
}
