package appdesc

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
	"gopkg.in/yaml.v3"

	"github.com/birdayz/streamc/kmodel"
)

var (
	ErrInvalidDescription = errors.New("invalid application description")
)

// Load reads the application description at path and builds its graph.
func Load(path string) (*kmodel.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read description %s: %w", path, err)
	}
	g, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("description %s: %w", path, err)
	}
	return g, nil
}

// Parse decodes a YAML application description and builds its graph. Unknown
// fields are rejected.
func Parse(data []byte) (*kmodel.Graph, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var desc Description
	if err := dec.Decode(&desc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDescription, err)
	}
	return Build(&desc)
}

// Build builds the graph of desc.
func Build(desc *Description) (*kmodel.Graph, error) {
	if desc.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrInvalidDescription)
	}
	b := kmodel.NewBuilder(desc.Name)
	app := &b.Graph().App
	for _, hp := range desc.HostPools {
		app.HostPools = append(app.HostPools, kmodel.HostPool(hp))
	}
	for _, tt := range desc.TupleTypes {
		app.TupleTypes = append(app.TupleTypes, kmodel.TupleType(tt))
	}
	for _, m := range desc.CustomMetrics {
		app.CustomMetrics = append(app.CustomMetrics, kmodel.CustomMetric{
			RuntimeKind: m.Kind,
			Name:        m.Name,
			Kind:        m.MetricKind,
			Description: m.Description,
		})
	}
	for _, sv := range desc.SubmissionValues {
		app.SubmissionValues = append(app.SubmissionValues, kmodel.SubmissionValue(sv))
	}

	if err := build(b, b.Main(), "", &desc.Main); err != nil {
		return nil, err
	}
	return b.Build()
}

func build(b *kmodel.Builder, owner kmodel.OperatorIndex, scope string, body *Body) error {
	names := make(map[string]kmodel.OperatorIndex, len(body.Operators))
	for i, ref := range body.Operators {
		op, common, err := add(b, owner, scope, ref)
		if err != nil {
			return fmt.Errorf("%s operator %d: %w", scopeName(scope), i, err)
		}
		if _, ok := names[common.Name]; ok {
			return fmt.Errorf("%w: duplicate operator %q in %s", ErrInvalidDescription, common.Name, scopeName(scope))
		}
		names[common.Name] = op.Base().Index
		if err := decorate(b, op, common); err != nil {
			return err
		}
	}

	for _, e := range body.Connections {
		from, err := endpoint(owner, names, e.From, kmodel.Output)
		if err != nil {
			return fmt.Errorf("%s: %w", scopeName(scope), err)
		}
		to, err := endpoint(owner, names, e.To, kmodel.Input)
		if err != nil {
			return fmt.Errorf("%s: %w", scopeName(scope), err)
		}
		b.Wire(from, to)
	}
	return b.Err()
}

func add(b *kmodel.Builder, owner kmodel.OperatorIndex, scope string, ref OperatorRef) (kmodel.Operator, *Common, error) {
	set := 0
	for _, isSet := range []bool{ref.Primitive != nil, ref.Composite != nil, ref.Import != nil, ref.Export != nil} {
		if isSet {
			set++
		}
	}
	if set != 1 {
		return nil, nil, fmt.Errorf("%w: exactly one of primitive, composite, import or export must be set", ErrInvalidDescription)
	}

	switch {
	case ref.Primitive != nil:
		d := ref.Primitive
		if d.Name == "" || d.Kind == "" {
			return nil, nil, fmt.Errorf("%w: primitive needs a name and a kind", ErrInvalidDescription)
		}
		p := b.Primitive(owner, d.Name, d.Kind, len(d.Inputs), len(d.Outputs))
		p.Toolkit = d.Toolkit
		p.TraceLevel = d.TraceLevel
		for i, tt := range d.Inputs {
			if i < len(p.Inputs) {
				p.Inputs[i].TupleType = tt
			}
		}
		for i, tt := range d.Outputs {
			if i < len(p.Outputs) {
				p.Outputs[i].TupleType = tt
			}
		}
		for _, prm := range d.Params {
			p.Parameters = append(p.Parameters, kmodel.Parameter(prm))
		}
		p.Resources = kmodel.Resources{
			HostPool:   d.Resources.HostPool,
			HostTags:   d.Resources.HostTags,
			Colocation: d.Resources.Colocation,
			Exlocation: d.Resources.Exlocation,
			Isolation:  d.Resources.Isolation,
		}
		return p, &d.Common, nil

	case ref.Composite != nil:
		d := ref.Composite
		if d.Name == "" {
			return nil, nil, fmt.Errorf("%w: composite needs a name", ErrInvalidDescription)
		}
		def := d.Definition
		if def == "" {
			def = d.Name
		}
		c := b.Composite(owner, d.Name, def, d.Inputs, d.Outputs)
		if err := build(b, c.Index, qualify(scope, d.Name), &d.Body); err != nil {
			return nil, nil, err
		}
		return c, &d.Common, nil

	case ref.Import != nil:
		d := ref.Import
		if d.Name == "" {
			return nil, nil, fmt.Errorf("%w: import needs a name", ErrInvalidDescription)
		}
		if d.Subscription == "" && d.StreamName == "" {
			return nil, nil, fmt.Errorf("%w: import %q needs a subscription or a stream", ErrInvalidDescription, d.Name)
		}
		imp := b.Import(owner, d.Name)
		imp.Subscription = d.Subscription
		imp.Filter = d.Filter
		imp.ApplicationName = d.ApplicationName
		imp.ApplicationScope = d.ApplicationScope
		imp.StreamName = d.StreamName
		return imp, &d.Common, nil

	default:
		d := ref.Export
		if d.Name == "" {
			return nil, nil, fmt.Errorf("%w: export needs a name", ErrInvalidDescription)
		}
		exp := b.Export(owner, d.Name)
		exp.StreamName = d.StreamName
		exp.AllowFilter = d.AllowFilter
		exp.CongestionPolicy = d.CongestionPolicy
		for _, prm := range d.Properties {
			exp.Properties = append(exp.Properties, kmodel.Parameter(prm))
		}
		return exp, &d.Common, nil
	}
}

// decorate applies the annotations shared by all operator kinds.
func decorate(b *kmodel.Builder, op kmodel.Operator, c *Common) error {
	base := op.Base()
	for _, a := range c.Annotations {
		if a.Tag == "" {
			return fmt.Errorf("%w: annotation without tag on %q", ErrInvalidDescription, c.Name)
		}
		base.AddAnnotation(kmodel.NewAnnotation(a.Tag, flatten(a.Values)...))
	}

	if cc := c.Consistent; cc != nil {
		base.CC.Start = cc.Start
		base.CC.End = cc.End
		base.CC.Oblivious = cc.Oblivious
		if len(cc.Settings) > 0 {
			if !cc.Start {
				return fmt.Errorf("%w: consistent settings on %q which does not start a region", ErrInvalidDescription, c.Name)
			}
			base.AddAnnotation(kmodel.NewAnnotation(kmodel.TagConsistent, flatten(cc.Settings)...))
		}
	}

	if p := c.Parallel; p != nil {
		name := p.Name
		if name == "" {
			name = c.Name
		}
		var kv []string
		ports := maps.Keys(p.Splitters)
		slices.Sort(ports)
		for _, port := range ports {
			kv = append(kv, "splitter."+strconv.Itoa(port), p.Splitters[port])
		}
		b.Parallel(op, name, p.Width, kv...)
	}
	return nil
}

// endpoint resolves "name.port" against the operators of one composite body.
func endpoint(owner kmodel.OperatorIndex, names map[string]kmodel.OperatorIndex, s string, kind kmodel.PortKind) (kmodel.Connection, error) {
	name, port := s, 0
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		n, err := strconv.Atoi(s[i+1:])
		if err != nil || n < 0 {
			return kmodel.Connection{}, fmt.Errorf("%w: bad port in endpoint %q", ErrInvalidDescription, s)
		}
		name, port = s[:i], n
	}

	switch name {
	case "$in":
		if kind != kmodel.Output {
			return kmodel.Connection{}, fmt.Errorf("%w: %q can only be a source", ErrInvalidDescription, s)
		}
		return kmodel.In(owner, port), nil
	case "$out":
		if kind != kmodel.Input {
			return kmodel.Connection{}, fmt.Errorf("%w: %q can only be a target", ErrInvalidDescription, s)
		}
		return kmodel.Out(owner, port), nil
	}

	idx, ok := names[name]
	if !ok {
		return kmodel.Connection{}, fmt.Errorf("%w: unknown operator %q", ErrInvalidDescription, name)
	}
	if kind == kmodel.Output {
		return kmodel.Out(idx, port), nil
	}
	return kmodel.In(idx, port), nil
}

func flatten(m map[string]string) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	kv := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		kv = append(kv, k, m[k])
	}
	return kv
}

func qualify(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}

func scopeName(scope string) string {
	if scope == "" {
		return "main"
	}
	return scope
}
