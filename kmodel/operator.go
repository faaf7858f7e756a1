package kmodel

import "fmt"

// Kind is the variant tag of an operator.
type Kind int

const (
	KindComposite Kind = iota
	KindPrimitive
	KindImport
	KindExport
	KindSplitter
	KindMerger
)

func (k Kind) String() string {
	switch k {
	case KindComposite:
		return "Composite"
	case KindPrimitive:
		return "Primitive"
	case KindImport:
		return "Import"
	case KindExport:
		return "Export"
	case KindSplitter:
		return "Splitter"
	case KindMerger:
		return "Merger"
	default:
		return "Unknown"
	}
}

// Operator is the closed set of operator variants: *CompositeOperator,
// *PrimitiveOperator, *ImportOperator, *ExportOperator, *SplitterOperator and
// *MergerOperator. Code dispatches on the concrete type with a type switch.
type Operator interface {
	Base() *OperatorBase
	Kind() Kind

	sealed()
}

// PrimitiveBase is implemented by every leaf operator variant. Leaf operators
// own primitive ports; a variant without inputs (Import) or outputs (Export)
// returns an empty list for that kind.
type PrimitiveBase interface {
	Operator
	Ports(kind PortKind) []*PrimitivePort
}

// CCInfo is the per-operator consistent region state.
type CCInfo struct {
	// Set by the front end.
	Start     bool
	End       bool
	Oblivious bool

	// Region is the effective region index after analysis, -1 if none.
	Region int
	// ReachedFrom lists the regions this operator was reached from before merging.
	ReachedFrom []int
}

// OperatorBase holds the fields shared by all operator variants.
type OperatorBase struct {
	Index        OperatorIndex
	LogicalIndex OperatorIndex
	Name         string

	// Owner is the composite containing this operator, NoOperator for the root.
	Owner OperatorIndex

	// ParallelRegion is the index of the parallel region this operator is the
	// root of, -1 otherwise. LocalChannelIndex is its channel within that region.
	ParallelRegion    int
	LocalChannelIndex int

	Annotations []Annotation
	CC          CCInfo
}

func newBase(name string) OperatorBase {
	return OperatorBase{
		Index:             NoOperator,
		LogicalIndex:      NoOperator,
		Name:              name,
		Owner:             NoOperator,
		ParallelRegion:    -1,
		LocalChannelIndex: -1,
		CC:                CCInfo{Region: -1},
	}
}

func (b *OperatorBase) Base() *OperatorBase { return b }

func (*OperatorBase) sealed() {}

// IsParallelRoot reports whether the operator is (a replica of) a parallel region root.
func (b *OperatorBase) IsParallelRoot() bool {
	return b.ParallelRegion >= 0
}

// Annotation returns a reader for the first annotation with the given tag.
func (b *OperatorBase) Annotation(tag string) (AnnotationReader, bool) {
	for _, a := range b.Annotations {
		if a.Tag == tag {
			return AnnotationReader{Annotation: a, op: b.Index}, true
		}
	}
	return AnnotationReader{}, false
}

// AddAnnotation appends an annotation.
func (b *OperatorBase) AddAnnotation(a Annotation) {
	b.Annotations = append(b.Annotations, a)
}

func (b *OperatorBase) cloneBase() OperatorBase {
	c := *b
	c.Annotations = make([]Annotation, len(b.Annotations))
	for i, a := range b.Annotations {
		c.Annotations[i] = a.clone()
	}
	c.CC.ReachedFrom = append([]int(nil), b.CC.ReachedFrom...)
	return c
}

// CompositeOperator owns child operators and aliases their ports.
type CompositeOperator struct {
	OperatorBase

	// Definition is the name of the composite type this is an instance of.
	Definition string

	Inputs  []*CompositePort
	Outputs []*CompositePort

	Composites []OperatorIndex
	Primitives []OperatorIndex
}

func (*CompositeOperator) Kind() Kind { return KindComposite }

// Ports returns the composite port list of the given kind.
func (c *CompositeOperator) Ports(kind PortKind) []*CompositePort {
	if kind == Input {
		return c.Inputs
	}
	return c.Outputs
}

// Children returns child composites followed by child primitives.
func (c *CompositeOperator) Children() []OperatorIndex {
	out := make([]OperatorIndex, 0, len(c.Composites)+len(c.Primitives))
	out = append(out, c.Composites...)
	return append(out, c.Primitives...)
}

// Resources carries placement and resource constraints of a primitive operator.
type Resources struct {
	HostPool   string   `json:"hostPool,omitempty"`
	HostTags   []string `json:"hostTags,omitempty"`
	Colocation []string `json:"colocation,omitempty"`
	Exlocation []string `json:"exlocation,omitempty"`
	Isolation  bool     `json:"isolation,omitempty"`
	// SoftTags are placement hints that the placer may ignore.
	SoftTags []string `json:"softTags,omitempty"`
}

func (r Resources) clone() Resources {
	r.HostTags = append([]string(nil), r.HostTags...)
	r.Colocation = append([]string(nil), r.Colocation...)
	r.Exlocation = append([]string(nil), r.Exlocation...)
	r.SoftTags = append([]string(nil), r.SoftTags...)
	return r
}

// Parameter is a named runtime-constant value.
type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PrimitiveOperator is a real physical operator.
type PrimitiveOperator struct {
	OperatorBase

	// RuntimeKind is the fully qualified operator kind, e.g. spl.relational::Filter.
	RuntimeKind string
	Toolkit     string

	Inputs  []*PrimitivePort
	Outputs []*PrimitivePort

	Resources  Resources
	TraceLevel string
	Parameters []Parameter
}

func (*PrimitiveOperator) Kind() Kind { return KindPrimitive }

func (p *PrimitiveOperator) Ports(kind PortKind) []*PrimitivePort {
	if kind == Input {
		return p.Inputs
	}
	return p.Outputs
}

// ImportOperator subscribes to streams exported by other applications.
type ImportOperator struct {
	OperatorBase

	Outputs []*PrimitivePort

	// Subscription is a property-based import expression.
	Subscription string
	Filter       string

	// ApplicationName and StreamName select a name-based import.
	ApplicationName  string
	ApplicationScope string
	StreamName       string
}

func (*ImportOperator) Kind() Kind { return KindImport }

func (p *ImportOperator) Ports(kind PortKind) []*PrimitivePort {
	if kind == Output {
		return p.Outputs
	}
	return nil
}

// ExportOperator publishes a stream for other applications.
type ExportOperator struct {
	OperatorBase

	Inputs []*PrimitivePort

	StreamName       string
	Properties       []Parameter
	AllowFilter      bool
	CongestionPolicy string
}

func (*ExportOperator) Kind() Kind { return KindExport }

func (p *ExportOperator) Ports(kind PortKind) []*PrimitivePort {
	if kind == Input {
		return p.Inputs
	}
	return nil
}

// SplitterKind selects how a splitter distributes tuples over channels.
type SplitterKind string

const (
	SplitRoundRobin SplitterKind = "roundRobin"
	SplitHash       SplitterKind = "hash"
	SplitBroadcast  SplitterKind = "broadcast"
)

// SplitterConfig configures the splitter in front of one region input port.
type SplitterConfig struct {
	Kind       SplitterKind
	Attributes []string
}

// SplitterOperator fans a single stream out to the channels of a parallel region.
// It has one input port and one output port per channel.
type SplitterOperator struct {
	OperatorBase

	Inputs  []*PrimitivePort
	Outputs []*PrimitivePort

	Region int
	Config SplitterConfig
}

func (*SplitterOperator) Kind() Kind { return KindSplitter }

func (p *SplitterOperator) Ports(kind PortKind) []*PrimitivePort {
	if kind == Input {
		return p.Inputs
	}
	return p.Outputs
}

// MergerOperator fans the channels of a parallel region back in.
// It has one input port per channel and one output port.
type MergerOperator struct {
	OperatorBase

	Inputs  []*PrimitivePort
	Outputs []*PrimitivePort

	Region int
}

func (*MergerOperator) Kind() Kind { return KindMerger }

func (p *MergerOperator) Ports(kind PortKind) []*PrimitivePort {
	if kind == Input {
		return p.Inputs
	}
	return p.Outputs
}

// IsPhysical reports whether op materializes as a physical node.
func IsPhysical(op Operator) bool {
	_, ok := op.(*PrimitiveOperator)
	return ok
}

// CopyOperator returns a deep copy of op, including ports, connection lists,
// annotations and child lists. Indices are copied verbatim.
func CopyOperator(op Operator) Operator {
	switch o := op.(type) {
	case *CompositeOperator:
		c := *o
		c.OperatorBase = o.cloneBase()
		c.Inputs = copyCompositePorts(o.Inputs)
		c.Outputs = copyCompositePorts(o.Outputs)
		c.Composites = append([]OperatorIndex(nil), o.Composites...)
		c.Primitives = append([]OperatorIndex(nil), o.Primitives...)
		return &c
	case *PrimitiveOperator:
		c := *o
		c.OperatorBase = o.cloneBase()
		c.Inputs = copyPrimitivePorts(o.Inputs)
		c.Outputs = copyPrimitivePorts(o.Outputs)
		c.Resources = o.Resources.clone()
		c.Parameters = append([]Parameter(nil), o.Parameters...)
		return &c
	case *ImportOperator:
		c := *o
		c.OperatorBase = o.cloneBase()
		c.Outputs = copyPrimitivePorts(o.Outputs)
		return &c
	case *ExportOperator:
		c := *o
		c.OperatorBase = o.cloneBase()
		c.Inputs = copyPrimitivePorts(o.Inputs)
		c.Properties = append([]Parameter(nil), o.Properties...)
		return &c
	case *SplitterOperator:
		c := *o
		c.OperatorBase = o.cloneBase()
		c.Inputs = copyPrimitivePorts(o.Inputs)
		c.Outputs = copyPrimitivePorts(o.Outputs)
		c.Config.Attributes = append([]string(nil), o.Config.Attributes...)
		return &c
	case *MergerOperator:
		c := *o
		c.OperatorBase = o.cloneBase()
		c.Inputs = copyPrimitivePorts(o.Inputs)
		c.Outputs = copyPrimitivePorts(o.Outputs)
		return &c
	default:
		panic(fmt.Sprintf("kmodel: unknown operator type %T", op))
	}
}
