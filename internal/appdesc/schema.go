package appdesc

// Description is the top-level YAML structure of an application description.
type Description struct {
	Name             string            `yaml:"name"`
	HostPools        []HostPool        `yaml:"host_pools"`
	TupleTypes       []TupleType       `yaml:"tuple_types"`
	CustomMetrics    []CustomMetric    `yaml:"custom_metrics"`
	SubmissionValues []SubmissionValue `yaml:"submission_values"`

	// Main is the body of the root composite.
	Main Body `yaml:"main"`
}

type HostPool struct {
	Name      string   `yaml:"name"`
	Hosts     []string `yaml:"hosts"`
	Tags      []string `yaml:"tags"`
	Size      int      `yaml:"size"`
	Exclusive bool     `yaml:"exclusive"`
}

type TupleType struct {
	Name   string `yaml:"name"`
	Schema string `yaml:"schema"`
}

type CustomMetric struct {
	Kind        string `yaml:"operator_kind"`
	Name        string `yaml:"name"`
	MetricKind  string `yaml:"kind"`
	Description string `yaml:"description"`
}

type SubmissionValue struct {
	Name     string `yaml:"name"`
	Default  string `yaml:"default"`
	Required bool   `yaml:"required"`
}

// Body is the content of a composite.
type Body struct {
	Operators   []OperatorRef `yaml:"operators"`
	Connections []Edge        `yaml:"connections"`
}

// OperatorRef is a discriminated union: exactly one field is set.
type OperatorRef struct {
	Primitive *PrimitiveDef `yaml:"primitive,omitempty"`
	Composite *CompositeDef `yaml:"composite,omitempty"`
	Import    *ImportDef    `yaml:"import,omitempty"`
	Export    *ExportDef    `yaml:"export,omitempty"`
}

// Common holds the fields every operator kind accepts.
type Common struct {
	Name        string          `yaml:"name"`
	Parallel    *ParallelDef    `yaml:"parallel,omitempty"`
	Consistent  *ConsistentDef  `yaml:"consistent,omitempty"`
	Annotations []AnnotationDef `yaml:"annotations"`
}

type PrimitiveDef struct {
	Common `yaml:",inline"`

	Kind    string `yaml:"kind"`
	Toolkit string `yaml:"toolkit"`

	// Inputs and Outputs list the tuple type of every port.
	Inputs  []string `yaml:"inputs"`
	Outputs []string `yaml:"outputs"`

	Params     []Param      `yaml:"params"`
	Resources  ResourcesDef `yaml:"resources"`
	TraceLevel string       `yaml:"trace_level"`
}

type CompositeDef struct {
	Common `yaml:",inline"`
	Body   `yaml:",inline"`

	Definition string `yaml:"definition"`
	Inputs     int    `yaml:"inputs"`
	Outputs    int    `yaml:"outputs"`
}

type ImportDef struct {
	Common `yaml:",inline"`

	Subscription     string `yaml:"subscription"`
	Filter           string `yaml:"filter"`
	ApplicationName  string `yaml:"application"`
	ApplicationScope string `yaml:"scope"`
	StreamName       string `yaml:"stream"`
}

type ExportDef struct {
	Common `yaml:",inline"`

	StreamName       string  `yaml:"stream"`
	Properties       []Param `yaml:"properties"`
	AllowFilter      bool    `yaml:"allow_filter"`
	CongestionPolicy string  `yaml:"congestion_policy"`
}

type Param struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

type ResourcesDef struct {
	HostPool   string   `yaml:"host_pool"`
	HostTags   []string `yaml:"host_tags"`
	Colocation []string `yaml:"colocation"`
	Exlocation []string `yaml:"exlocation"`
	Isolation  bool     `yaml:"isolation"`
}

// ParallelDef becomes a @parallel annotation. Splitters maps an input port
// to broadcast, roundRobin or hash:attr,...
type ParallelDef struct {
	Name      string         `yaml:"name"`
	Width     int            `yaml:"width"`
	Splitters map[int]string `yaml:"splitters"`
}

// ConsistentDef sets the consistent region role of an operator. Settings
// become a @consistent annotation on start operators.
type ConsistentDef struct {
	Start     bool              `yaml:"start"`
	End       bool              `yaml:"end"`
	Oblivious bool              `yaml:"oblivious"`
	Settings  map[string]string `yaml:"settings"`
}

type AnnotationDef struct {
	Tag    string            `yaml:"tag"`
	Values map[string]string `yaml:"values"`
}

// Edge connects two endpoints written as "operator.port". The port defaults
// to 0. "$in.N" and "$out.N" name the ports of the enclosing composite.
type Edge struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}
