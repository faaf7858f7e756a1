// Package kregion holds the registries of parallel and consistent regions
// built up while compiling an application graph.
//
// Parallel regions are recorded once per region instance: a region nested in
// a replicated region exists once per enclosing channel, all instances sharing
// the same name.
//
// Consistent regions form a disjoint-set forest. Regions are never removed; a
// merge moves the members of one region into the other and leaves a MergedWith
// link behind. Effective follows those links to the surviving region. Merges
// are memoized per region pair, so the final partition does not depend on the
// order in which overlapping regions are discovered.
package kregion
