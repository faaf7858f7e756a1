package ktopology

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/birdayz/streamc/kmodel"
	"github.com/birdayz/streamc/kregion"
)

const pass = "flatten"

// ErrMissingSubmissionValue is returned when a required submission-time value
// has no binding.
var ErrMissingSubmissionValue = errors.New("missing submission value")

// Option configures Flatten.
type Option func(*flattener)

// WithTraceLevel overrides the trace level of every node.
var WithTraceLevel = func(level string) Option {
	return func(f *flattener) {
		f.traceLevel = level
	}
}

// WithSubmissionValues binds submission-time values by name.
var WithSubmissionValues = func(values map[string]string) Option {
	return func(f *flattener) {
		f.values = values
	}
}

// WithID sets the topology ID instead of generating a random one.
var WithID = func(id uuid.UUID) Option {
	return func(f *flattener) {
		f.id = id
	}
}

// WithLog sets the logger.
var WithLog = func(log *slog.Logger) Option {
	return func(f *flattener) {
		f.log = log
	}
}

type flattener struct {
	g          *kmodel.Graph
	parallel   *kregion.ParallelRegions
	consistent *kregion.CCRegions

	id         uuid.UUID
	traceLevel string
	values     map[string]string
	log        *slog.Logger

	topo  *Topology
	nodes map[kmodel.OperatorIndex]*Node
	edges map[Connection]bool
}

// Flatten projects the expanded and analyzed graph g onto a physical
// topology. consistent may be nil if no consistent region analysis ran.
func Flatten(g *kmodel.Graph, parallel *kregion.ParallelRegions, consistent *kregion.CCRegions, opts ...Option) (*Topology, error) {
	f := &flattener{
		g:          g,
		parallel:   parallel,
		consistent: consistent,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		nodes:      make(map[kmodel.OperatorIndex]*Node),
		edges:      make(map[Connection]bool),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.id == uuid.Nil {
		f.id = uuid.New()
	}

	topo, err := f.run()
	if err != nil {
		return nil, kmodel.InPass(pass, err)
	}
	return topo, nil
}

func (f *flattener) run() (*Topology, error) {
	app := f.g.App
	f.topo = &Topology{
		ID:            f.id,
		Name:          app.Name,
		HostPools:     slices.Clone(app.HostPools),
		TupleTypes:    slices.Clone(app.TupleTypes),
		CustomMetrics: slices.Clone(app.CustomMetrics),
	}

	values, err := f.submissionValues()
	if err != nil {
		return nil, err
	}
	f.topo.SubmissionValues = values

	var imports []*kmodel.ImportOperator
	err = f.g.Walk(func(op kmodel.Operator) error {
		switch o := op.(type) {
		case *kmodel.PrimitiveOperator:
			return f.addNode(o)
		case *kmodel.ImportOperator:
			imports = append(imports, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, n := range f.topo.Nodes {
		for _, p := range n.Outputs {
			src := Endpoint{Node: n.Index, Port: p.Index}
			if err := f.resolve(kmodel.Out(n.OperatorIndex, p.Index), &p.Fanout, &src); err != nil {
				return nil, err
			}
		}
	}
	for _, imp := range imports {
		if err := f.attachImport(imp); err != nil {
			return nil, err
		}
	}

	if err := f.regions(); err != nil {
		return nil, err
	}

	f.log.Debug("Flattened topology", "nodes", len(f.topo.Nodes), "connections", len(f.topo.Connections))
	return f.topo, nil
}

func (f *flattener) addNode(o *kmodel.PrimitiveOperator) error {
	name, err := f.g.QualifiedName(o.Index, true)
	if err != nil {
		return err
	}
	logical, err := f.g.QualifiedName(o.Index, false)
	if err != nil {
		return err
	}
	chs, err := f.parallel.Channels(f.g, o.Index)
	if err != nil {
		return err
	}

	n := &Node{
		Index:            len(f.topo.Nodes),
		OperatorIndex:    o.Index,
		LogicalIndex:     o.LogicalIndex,
		Name:             name,
		LogicalName:      logical,
		Kind:             o.RuntimeKind,
		Toolkit:          o.Toolkit,
		Resources:        cloneResources(o.Resources),
		TraceLevel:       o.TraceLevel,
		Parameters:       slices.Clone(o.Parameters),
		ConsistentRegion: o.CC.Region,
		Annotations:      slices.Clone(o.Annotations),
	}
	if f.traceLevel != "" {
		n.TraceLevel = f.traceLevel
	}
	for _, c := range chs {
		n.ParallelChannels = append(n.ParallelChannels, ParallelChannel{
			Region:      c.Region,
			Name:        c.Name,
			Channel:     c.Index,
			MaxChannels: c.Width,
		})
	}
	n.Inputs = physicalPorts(o.Inputs)
	n.Outputs = physicalPorts(o.Outputs)

	f.topo.Nodes = append(f.topo.Nodes, n)
	f.nodes[o.Index] = n
	return nil
}

// resolve follows the downstream connections of from until it reaches
// physical input ports and records them in dst. If src is set, a physical
// connection is emitted for every input port reached.
func (f *flattener) resolve(from kmodel.Connection, dst *Fanout, src *Endpoint) error {
	consumers, err := f.g.Consumers(from)
	if err != nil {
		return err
	}
	for _, c := range consumers {
		op, err := f.g.Resolve(c.Operator)
		if err != nil {
			return err
		}
		switch o := op.(type) {
		case *kmodel.PrimitiveOperator:
			n, ok := f.nodes[o.Index]
			if !ok {
				return kmodel.NewIntegrityError(pass, o.Index, c.Port, c.Kind, "operator %q is not part of the composite tree", o.Name)
			}
			to := Endpoint{Node: n.Index, Port: c.Port}
			dst.Connections = append(dst.Connections, to)
			if src != nil {
				f.connect(*src, to)
			}
		case *kmodel.ExportOperator:
			e, err := f.export(o)
			if err != nil {
				return err
			}
			dst.Exports = append(dst.Exports, e)
		case *kmodel.MergerOperator:
			if err := f.resolve(kmodel.Out(o.Index, 0), dst, src); err != nil {
				return err
			}
		case *kmodel.SplitterOperator:
			if o.Config.Kind == kmodel.SplitBroadcast {
				for k := range o.Outputs {
					if err := f.resolve(kmodel.Out(o.Index, k), dst, src); err != nil {
						return err
					}
				}
				continue
			}
			s := &Splitter{
				Region:     o.Region,
				Kind:       o.Config.Kind,
				Attributes: slices.Clone(o.Config.Attributes),
			}
			for k := range o.Outputs {
				ch := &SplitterChannel{Channel: k}
				if err := f.resolve(kmodel.Out(o.Index, k), &ch.Fanout, src); err != nil {
					return err
				}
				s.Channels = append(s.Channels, ch)
			}
			dst.Splitters = append(dst.Splitters, s)
		default:
			return kmodel.NewIntegrityError(pass, c.Operator, c.Port, c.Kind, "%s operator cannot consume a stream", op.Kind())
		}
	}
	return nil
}

func (f *flattener) connect(from, to Endpoint) {
	c := Connection{From: from, To: to}
	if f.edges[c] {
		return
	}
	f.edges[c] = true
	f.topo.Connections = append(f.topo.Connections, c)
	in := f.topo.Nodes[to.Node].Inputs[to.Port]
	in.Connections = append(in.Connections, from)
}

func (f *flattener) export(o *kmodel.ExportOperator) (Export, error) {
	name, err := f.g.QualifiedName(o.Index, true)
	if err != nil {
		return Export{}, err
	}
	return Export{
		Operator:         name,
		StreamName:       o.StreamName,
		Properties:       slices.Clone(o.Properties),
		AllowFilter:      o.AllowFilter,
		CongestionPolicy: o.CongestionPolicy,
	}, nil
}

// attachImport records the import on every physical input port fed by it.
func (f *flattener) attachImport(o *kmodel.ImportOperator) error {
	name, err := f.g.QualifiedName(o.Index, true)
	if err != nil {
		return err
	}
	imp := Import{
		Operator:         name,
		Subscription:     o.Subscription,
		Filter:           o.Filter,
		ApplicationName:  o.ApplicationName,
		ApplicationScope: o.ApplicationScope,
		StreamName:       o.StreamName,
	}
	for _, p := range o.Outputs {
		var fan Fanout
		if err := f.resolve(kmodel.Out(o.Index, p.Index), &fan, nil); err != nil {
			return err
		}
		for _, e := range destinations(&fan) {
			in := f.topo.Nodes[e.Node].Inputs[e.Port]
			in.Imports = append(in.Imports, imp)
		}
	}
	return nil
}

// destinations returns every endpoint in fan, including those behind splitters.
func destinations(fan *Fanout) []Endpoint {
	out := slices.Clone(fan.Connections)
	for _, s := range fan.Splitters {
		for _, ch := range s.Channels {
			out = append(out, destinations(&ch.Fanout)...)
		}
	}
	return out
}

func (f *flattener) regions() error {
	for _, r := range f.parallel.All() {
		logical, err := f.g.QualifiedName(r.OperIndex, false)
		if err != nil {
			return err
		}
		f.topo.ParallelRegions = append(f.topo.ParallelRegions, ParallelRegion{
			Index:       r.Index,
			Name:        r.Name,
			Width:       r.Width,
			LogicalName: logical,
			Replicas:    slices.Clone(r.Replicas),
		})
	}

	if f.consistent == nil {
		return nil
	}
	for _, r := range f.consistent.Roots() {
		cr := ConsistentRegion{
			Index:                       r.Index,
			LogicalIndex:                r.LogicalIndex,
			DrainTimeout:                r.DrainTimeout,
			ResetTimeout:                r.ResetTimeout,
			Period:                      r.Period,
			OperatorDriven:              r.OperatorDriven,
			MaxConsecutiveResetAttempts: r.MaxConsecutiveResetAttempts,
		}
		for _, idx := range r.Members() {
			if n, ok := f.nodes[idx]; ok {
				cr.Nodes = append(cr.Nodes, n.Index)
			}
		}
		slices.Sort(cr.Nodes)
		f.topo.ConsistentRegions = append(f.topo.ConsistentRegions, cr)
	}
	return nil
}

func (f *flattener) submissionValues() ([]SubmissionValue, error) {
	var out []SubmissionValue
	for _, decl := range f.g.App.SubmissionValues {
		v, ok := f.values[decl.Name]
		switch {
		case ok:
		case decl.Required:
			return nil, fmt.Errorf("%w: %q", ErrMissingSubmissionValue, decl.Name)
		default:
			v = decl.Default
		}
		out = append(out, SubmissionValue{Name: decl.Name, Value: v})
	}
	for name := range f.values {
		if !slices.ContainsFunc(f.g.App.SubmissionValues, func(d kmodel.SubmissionValue) bool { return d.Name == name }) {
			f.log.Warn("Ignoring undeclared submission value", "name", name)
		}
	}
	return out, nil
}

func physicalPorts(ports []*kmodel.PrimitivePort) []*Port {
	out := make([]*Port, len(ports))
	for i, p := range ports {
		out[i] = &Port{
			Index:     p.Index,
			TupleType: p.TupleType,
			Transport: p.Transport,
			Encoding:  p.Encoding,
			Mutable:   p.Mutable,
		}
	}
	return out
}

func cloneResources(r kmodel.Resources) kmodel.Resources {
	r.HostTags = slices.Clone(r.HostTags)
	r.Colocation = slices.Clone(r.Colocation)
	r.Exlocation = slices.Clone(r.Exlocation)
	r.SoftTags = slices.Clone(r.SoftTags)
	return r
}
