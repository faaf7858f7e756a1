package ktopology

import (
	"time"

	"github.com/google/uuid"

	"github.com/birdayz/streamc/kmodel"
)

// Topology is the flat physical graph of one compiled application.
type Topology struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`

	Nodes       []*Node      `json:"nodes"`
	Connections []Connection `json:"connections"`

	ParallelRegions   []ParallelRegion   `json:"parallelRegions,omitempty"`
	ConsistentRegions []ConsistentRegion `json:"consistentRegions,omitempty"`

	HostPools        []kmodel.HostPool     `json:"hostPools,omitempty"`
	TupleTypes       []kmodel.TupleType    `json:"tupleTypes,omitempty"`
	CustomMetrics    []kmodel.CustomMetric `json:"customMetrics,omitempty"`
	SubmissionValues []SubmissionValue     `json:"submissionValues,omitempty"`
}

// Node returns the node with the given physical index, or nil.
func (t *Topology) Node(index int) *Node {
	if index < 0 || index >= len(t.Nodes) {
		return nil
	}
	return t.Nodes[index]
}

// Node is a physical operator instance.
type Node struct {
	// Index is the dense physical index, also the position in Topology.Nodes.
	Index         int                  `json:"index"`
	OperatorIndex kmodel.OperatorIndex `json:"operatorIndex"`
	LogicalIndex  kmodel.OperatorIndex `json:"logicalIndex"`

	// Name carries a [c] channel suffix on every parallel region root segment;
	// LogicalName does not and is shared by all replicas.
	Name        string `json:"name"`
	LogicalName string `json:"logicalName"`

	Kind       string             `json:"kind"`
	Toolkit    string             `json:"toolkit,omitempty"`
	Resources  kmodel.Resources   `json:"resources"`
	TraceLevel string             `json:"traceLevel,omitempty"`
	Parameters []kmodel.Parameter `json:"parameters,omitempty"`

	// ConsistentRegion is the effective consistent region, -1 if none.
	ConsistentRegion int `json:"consistentRegion"`

	// ParallelChannels lists the enclosing parallel channels, innermost first.
	ParallelChannels []ParallelChannel `json:"parallelChannels,omitempty"`

	Inputs  []*Port `json:"inputs,omitempty"`
	Outputs []*Port `json:"outputs,omitempty"`

	Annotations []kmodel.Annotation `json:"annotations,omitempty"`
}

// InConsistentRegion reports whether the node belongs to a consistent region.
func (n *Node) InConsistentRegion() bool {
	return n.ConsistentRegion >= 0
}

// Endpoint names a port of a physical node.
type Endpoint struct {
	Node int `json:"node"`
	Port int `json:"port"`
}

// Connection is a physical edge from an output port to an input port.
type Connection struct {
	From Endpoint `json:"from"`
	To   Endpoint `json:"to"`
}

// Fanout is everything reached from an output port, or from one channel of a
// splitter. Broadcast splitters and mergers are resolved into Connections.
type Fanout struct {
	Connections []Endpoint  `json:"connections,omitempty"`
	Splitters   []*Splitter `json:"splitters,omitempty"`
	Exports     []Export    `json:"exports,omitempty"`
}

// Port is a port of a physical node. On input ports Connections lists the
// producing output ports; Splitters and Exports are only set on output ports.
type Port struct {
	Index     int    `json:"index"`
	TupleType string `json:"tupleType,omitempty"`
	Transport string `json:"transport,omitempty"`
	Encoding  string `json:"encoding,omitempty"`
	Mutable   bool   `json:"mutable,omitempty"`

	Fanout

	Imports []Import `json:"imports,omitempty"`
}

// Splitter distributes the tuples of an output port over the channels of a
// parallel region.
type Splitter struct {
	Region     int                 `json:"region"`
	Kind       kmodel.SplitterKind `json:"kind"`
	Attributes []string            `json:"attributes,omitempty"`
	Channels   []*SplitterChannel  `json:"channels"`
}

// SplitterChannel is the fanout of one splitter channel. Nested parallel
// regions show up as nested splitters.
type SplitterChannel struct {
	Channel int `json:"channel"`
	Fanout
}

// Export is attached to the output port feeding an exported stream.
type Export struct {
	Operator         string             `json:"operator"`
	StreamName       string             `json:"streamName,omitempty"`
	Properties       []kmodel.Parameter `json:"properties,omitempty"`
	AllowFilter      bool               `json:"allowFilter"`
	CongestionPolicy string             `json:"congestionPolicy,omitempty"`
}

// Import is attached to every input port fed by an imported stream.
type Import struct {
	Operator         string `json:"operator"`
	Subscription     string `json:"subscription,omitempty"`
	Filter           string `json:"filter,omitempty"`
	ApplicationName  string `json:"applicationName,omitempty"`
	ApplicationScope string `json:"applicationScope,omitempty"`
	StreamName       string `json:"streamName,omitempty"`
}

// ParallelChannel places a node in one enclosing parallel region.
type ParallelChannel struct {
	Region      int    `json:"region"`
	Name        string `json:"name"`
	Channel     int    `json:"channel"`
	MaxChannels int    `json:"maxChannels"`
}

// ParallelRegion describes one parallel region instance.
type ParallelRegion struct {
	Index       int                    `json:"index"`
	Name        string                 `json:"name"`
	Width       int                    `json:"width"`
	LogicalName string                 `json:"logicalName"`
	Replicas    []kmodel.OperatorIndex `json:"replicas"`
}

// ConsistentRegion describes one effective consistent region.
type ConsistentRegion struct {
	Index                       int           `json:"index"`
	LogicalIndex                int           `json:"logicalIndex"`
	DrainTimeout                time.Duration `json:"drainTimeout"`
	ResetTimeout                time.Duration `json:"resetTimeout"`
	Period                      time.Duration `json:"period,omitempty"`
	OperatorDriven              bool          `json:"operatorDriven"`
	MaxConsecutiveResetAttempts int           `json:"maxConsecutiveResetAttempts"`

	// Nodes are the physical members, by physical index.
	Nodes []int `json:"nodes"`
}

// SubmissionValue is a bound submission-time value.
type SubmissionValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
