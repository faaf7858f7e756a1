// Package ktopology flattens an expanded, analyzed logical graph into the
// physical topology handed to the runtime.
//
// Only primitive operators become nodes. Composite ports are followed to the
// primitive ports behind them. Mergers and broadcast splitters dissolve into
// plain connections. Other splitters are kept as fanout descriptors on the
// producing output port, one channel per replica, nesting for nested regions.
// Exports and imports do not become nodes either: an export is attached to
// the output port feeding it, an import to every input port it feeds.
package ktopology
