// Package streamc compiles logical stream processing applications into
// physical topologies.
//
// A compilation runs three passes over a private copy of the input graph:
//
//  1. parallel expansion (package kparallel) replicates every @parallel
//     region and injects splitters and mergers,
//  2. consistent region analysis (package kconsistent) floods regions from
//     their start operators and merges overlapping ones,
//  3. flattening (package ktopology) projects the result onto a physical
//     topology of primitive operator instances.
//
// Example:
//
//	c := streamc.New(streamc.WithLog(log), streamc.WithConfig(cfg))
//	topo, err := c.Compile(graph)
package streamc
