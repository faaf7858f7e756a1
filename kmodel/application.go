package kmodel

// Application carries application level definitions supplied by the front end
// and passed through to the physical topology.
type Application struct {
	Name string

	HostPools        []HostPool
	TupleTypes       []TupleType
	CustomMetrics    []CustomMetric
	SubmissionValues []SubmissionValue
}

// HostPool is a named set of hosts operators can be placed on.
type HostPool struct {
	Name      string   `json:"name"`
	Hosts     []string `json:"hosts,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Size      int      `json:"size,omitempty"`
	Exclusive bool     `json:"exclusive,omitempty"`
}

// TupleType is a named stream schema referenced by ports.
type TupleType struct {
	Name   string `json:"name"`
	Schema string `json:"schema"`
}

// CustomMetric is a metric declared by an operator kind.
type CustomMetric struct {
	RuntimeKind string `json:"runtimeKind"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
}

// SubmissionValue declares a submission-time value.
type SubmissionValue struct {
	Name     string `json:"name"`
	Default  string `json:"default,omitempty"`
	Required bool   `json:"required,omitempty"`
}

func (a Application) clone() Application {
	c := a
	c.HostPools = make([]HostPool, len(a.HostPools))
	for i, hp := range a.HostPools {
		hp.Hosts = append([]string(nil), hp.Hosts...)
		hp.Tags = append([]string(nil), hp.Tags...)
		c.HostPools[i] = hp
	}
	c.TupleTypes = append([]TupleType(nil), a.TupleTypes...)
	c.CustomMetrics = append([]CustomMetric(nil), a.CustomMetrics...)
	c.SubmissionValues = append([]SubmissionValue(nil), a.SubmissionValues...)
	return c
}
