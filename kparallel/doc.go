// Package kparallel expands the parallel regions of a logical graph.
//
// An operator annotated with @parallel is the root of a region. Expand walks
// the composite tree depth first and, for every root with width W, inserts
// W-1 replicas of the root subtree next to it. Internal connections of a
// replica are remapped onto the replica; connections crossing the region
// boundary are routed through a synthesized splitter (one per connected input
// port) and merger (one per connected output port):
//
//	before:  P --> R --> C
//
//	after:        +--> R[0] --+
//	         P --> S --> R[1] --> M --> C
//	              +--> R[2] --+
//
// Every rewritten edge is updated on both endpoints. A far endpoint that does
// not carry the exact reverse entry fails the compilation with a
// *kmodel.GraphIntegrityError.
//
// Regions nested inside a replicated composite are discovered once per
// replica, so each enclosing channel gets its own region instance.
//
// After expansion, channel intrinsics (getChannel(), getMaxChannels(),
// byChannel(tag, i) ...) in placement, export and import strings are replaced
// by the channel values of the enclosing regions. See Substitute.
package kparallel
