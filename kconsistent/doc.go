// Package kconsistent discovers the consistent regions of an expanded graph.
//
// A consistent region is started by every operator flagged as a region start
// and extends downstream, through composite ports, splitters and mergers,
// until it reaches operators flagged as region end (included) or oblivious
// operators (excluded). Regions started by replicas of the same operator in
// different parallel channels are distinct; regions that reach a common
// operator are merged.
//
// Analyze records the result on the graph: every member gets a
// consistentRegionEntry annotation and its CC.Region set, and physical members
// get a soft placement tag naming their region.
package kconsistent
