// Package kmodel is the logical application graph consumed by the streamc
// compilation passes.
//
// # Overview
//
// A logical graph is a tree of composite operators whose leaves are primitive
// operators, joined by stream connections. Composites only alias ports: a
// composite port is a pass-through, never an endpoint. The graph is produced
// by a front end, rewritten in place by the parallel expansion pass, annotated
// by the consistent region analysis and finally flattened into a physical
// topology.
//
// # Arena and connections
//
// All operators live in one arena (Graph) keyed by an OperatorIndex that is
// assigned at creation and never reused. A Connection names the far endpoint
// of an edge by (operator index, port index, port kind); it is resolved
// through the graph on every use. Edges are stored on both endpoints:
//
//	producer output port  --Downstream-->  consumer input port
//	consumer input port   --Upstream---->  producer output port
//
// A composite port keeps both lists: Incoming points upstream and Outgoing
// points downstream, whether it is an input or an output port. Rewriting an
// edge therefore means updating two lists; FixReverseConnection refuses to
// rewrite an entry that is not exactly present.
//
// # Operator variants
//
// Operator is a closed set of concrete types sharing an embedded OperatorBase:
//
//   - CompositeOperator: child composites and primitives, composite ports
//   - PrimitiveOperator: a physical operator with resources and parameters
//   - ImportOperator: output ports only, subscribes to external streams
//   - ExportOperator: input ports only, publishes a stream
//   - SplitterOperator / MergerOperator: synthetic fan-out / fan-in around
//     parallel regions; they never become physical nodes
//
// Operations that only make sense for some variants are only defined on those
// types, so callers dispatch with a type switch.
//
// # Errors
//
// Unresolvable indices, ports and connections produce a *GraphIntegrityError,
// which matches ErrGraphIntegrity with errors.Is and unwraps to the specific
// cause (ErrOperatorNotFound, ErrPortOutOfRange, ErrIndexOverflow,
// ErrConnectionNotFound). Annotation values that fail to parse produce a
// *MalformedAnnotationError. Validate reports every violation at once.
//
// # Thread Safety
//
// Graph and Builder are NOT safe for concurrent use. Compile a Clone when the
// same graph is compiled more than once.
package kmodel
