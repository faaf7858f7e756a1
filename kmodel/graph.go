package kmodel

import (
	"fmt"
	"slices"
	"strings"
)

// Graph is the arena holding every operator of an application, keyed by a
// stable index. Edges store indices, never pointers, so graph surgery during
// replication never invalidates other holders of an edge.
//
// Graph is NOT safe for concurrent use.
type Graph struct {
	ops  map[OperatorIndex]Operator
	next OperatorIndex
	root OperatorIndex

	App Application
}

// NewGraph creates an empty graph for the named application.
func NewGraph(name string) *Graph {
	return &Graph{
		ops:  make(map[OperatorIndex]Operator),
		root: NoOperator,
		App:  Application{Name: name},
	}
}

// Resolve returns the operator with the given index.
func (g *Graph) Resolve(idx OperatorIndex) (Operator, error) {
	if err := idx.Validate(); err != nil {
		return nil, integrityError(idx, -1, Input, err, "invalid operator index")
	}
	op, ok := g.ops[idx]
	if !ok {
		return nil, integrityError(idx, -1, Input, ErrOperatorNotFound, "unresolved operator")
	}
	return op, nil
}

// Composite resolves idx and checks that it is a composite.
func (g *Graph) Composite(idx OperatorIndex) (*CompositeOperator, error) {
	op, err := g.Resolve(idx)
	if err != nil {
		return nil, err
	}
	c, ok := op.(*CompositeOperator)
	if !ok {
		return nil, integrityError(idx, -1, Input, ErrWrongOperatorKind, "expected composite, got %s", op.Kind())
	}
	return c, nil
}

// Root returns the index of the main composite, NoOperator if none was added.
func (g *Graph) Root() OperatorIndex {
	return g.root
}

// Len returns the number of operators ever created.
func (g *Graph) Len() int {
	return len(g.ops)
}

// Operators returns all operators in ascending index order, including
// operators superseded during expansion.
func (g *Graph) Operators() []Operator {
	idx := make([]OperatorIndex, 0, len(g.ops))
	for i := range g.ops {
		idx = append(idx, i)
	}
	slices.Sort(idx)
	out := make([]Operator, len(idx))
	for i, id := range idx {
		out[i] = g.ops[id]
	}
	return out
}

// Insert assigns a fresh index to op and registers it with its owner. The
// owner is taken from op's base; NoOperator makes op the root, which is only
// allowed once. A LogicalIndex of NoOperator is set to the new index.
func (g *Graph) Insert(op Operator) error {
	b := op.Base()
	if g.next > MaxSafeIndex {
		return integrityError(g.next, -1, Input, ErrIndexOverflow, "cannot allocate operator %q", b.Name)
	}
	if b.Owner == NoOperator {
		if g.root != NoOperator {
			return integrityError(NoOperator, -1, Input, nil, "operator %q has no owner but root %d exists", b.Name, g.root)
		}
		if _, ok := op.(*CompositeOperator); !ok {
			return integrityError(NoOperator, -1, Input, ErrWrongOperatorKind, "root %q must be a composite", b.Name)
		}
	}

	var owner *CompositeOperator
	if b.Owner != NoOperator {
		var err error
		if owner, err = g.Composite(b.Owner); err != nil {
			return err
		}
	}

	b.Index = g.next
	g.next++
	if b.LogicalIndex == NoOperator {
		b.LogicalIndex = b.Index
	}
	g.ops[b.Index] = op

	switch {
	case owner == nil:
		g.root = b.Index
	case op.Kind() == KindComposite:
		owner.Composites = append(owner.Composites, b.Index)
	default:
		owner.Primitives = append(owner.Primitives, b.Index)
	}
	return nil
}

// AddComposite creates a composite with the given number of ports.
func (g *Graph) AddComposite(owner OperatorIndex, name, definition string, inputs, outputs int) (*CompositeOperator, error) {
	c := &CompositeOperator{
		OperatorBase: newBase(name),
		Definition:   definition,
		Inputs:       newCompositePorts(inputs),
		Outputs:      newCompositePorts(outputs),
	}
	c.Owner = owner
	if err := g.Insert(c); err != nil {
		return nil, err
	}
	return c, nil
}

// AddPrimitive creates a physical operator with the given number of ports.
func (g *Graph) AddPrimitive(owner OperatorIndex, name, runtimeKind string, inputs, outputs int) (*PrimitiveOperator, error) {
	p := &PrimitiveOperator{
		OperatorBase: newBase(name),
		RuntimeKind:  runtimeKind,
		Inputs:       newPrimitivePorts(inputs),
		Outputs:      newPrimitivePorts(outputs),
	}
	p.Owner = owner
	if err := g.Insert(p); err != nil {
		return nil, err
	}
	return p, nil
}

// AddImport creates an import operator with a single output port.
func (g *Graph) AddImport(owner OperatorIndex, name string) (*ImportOperator, error) {
	p := &ImportOperator{
		OperatorBase: newBase(name),
		Outputs:      newPrimitivePorts(1),
	}
	p.Owner = owner
	if err := g.Insert(p); err != nil {
		return nil, err
	}
	return p, nil
}

// AddExport creates an export operator with a single input port.
func (g *Graph) AddExport(owner OperatorIndex, name string) (*ExportOperator, error) {
	p := &ExportOperator{
		OperatorBase: newBase(name),
		Inputs:       newPrimitivePorts(1),
	}
	p.Owner = owner
	if err := g.Insert(p); err != nil {
		return nil, err
	}
	return p, nil
}

// AddSplitter creates a splitter with one input and width outputs.
func (g *Graph) AddSplitter(owner OperatorIndex, name string, region, width int, cfg SplitterConfig) (*SplitterOperator, error) {
	s := &SplitterOperator{
		OperatorBase: newBase(name),
		Inputs:       newPrimitivePorts(1),
		Outputs:      newPrimitivePorts(width),
		Region:       region,
		Config:       cfg,
	}
	s.Owner = owner
	if err := g.Insert(s); err != nil {
		return nil, err
	}
	return s, nil
}

// AddMerger creates a merger with width inputs and one output.
func (g *Graph) AddMerger(owner OperatorIndex, name string, region, width int) (*MergerOperator, error) {
	m := &MergerOperator{
		OperatorBase: newBase(name),
		Inputs:       newPrimitivePorts(width),
		Outputs:      newPrimitivePorts(1),
		Region:       region,
	}
	m.Owner = owner
	if err := g.Insert(m); err != nil {
		return nil, err
	}
	return m, nil
}

// PrimitivePortAt resolves an endpoint to a primitive port.
func (g *Graph) PrimitivePortAt(c Connection) (PrimitiveBase, *PrimitivePort, error) {
	op, err := g.Resolve(c.Operator)
	if err != nil {
		return nil, nil, err
	}
	if err := checkPortIndex(c.Port); err != nil {
		return nil, nil, integrityError(c.Operator, c.Port, c.Kind, err, "invalid port index")
	}
	pb, ok := op.(PrimitiveBase)
	if !ok {
		return nil, nil, integrityError(c.Operator, c.Port, c.Kind, ErrWrongOperatorKind, "expected primitive port on %s", op.Kind())
	}
	ports := pb.Ports(c.Kind)
	if c.Port >= len(ports) {
		return nil, nil, integrityError(c.Operator, c.Port, c.Kind, ErrPortOutOfRange, "operator has %d %s ports", len(ports), c.Kind)
	}
	return pb, ports[c.Port], nil
}

// CompositePortAt resolves an endpoint to a composite port.
func (g *Graph) CompositePortAt(c Connection) (*CompositeOperator, *CompositePort, error) {
	comp, err := g.Composite(c.Operator)
	if err != nil {
		return nil, nil, err
	}
	if err := checkPortIndex(c.Port); err != nil {
		return nil, nil, integrityError(c.Operator, c.Port, c.Kind, err, "invalid port index")
	}
	ports := comp.Ports(c.Kind)
	if c.Port >= len(ports) {
		return nil, nil, integrityError(c.Operator, c.Port, c.Kind, ErrPortOutOfRange, "composite has %d %s ports", len(ports), c.Kind)
	}
	return comp, ports[c.Port], nil
}

// list returns the connection list of the port named by at in direction dir.
func (g *Graph) list(at Connection, dir Direction) (*[]Connection, error) {
	op, err := g.Resolve(at.Operator)
	if err != nil {
		return nil, err
	}
	if _, ok := op.(*CompositeOperator); ok {
		_, port, err := g.CompositePortAt(at)
		if err != nil {
			return nil, err
		}
		if dir == Downstream {
			return &port.Outgoing, nil
		}
		return &port.Incoming, nil
	}
	_, port, err := g.PrimitivePortAt(at)
	if err != nil {
		return nil, err
	}
	want := Output
	if dir == Upstream {
		want = Input
	}
	if at.Kind != want {
		return nil, integrityError(at.Operator, at.Port, at.Kind, nil, "primitive %s port has no %s connections", at.Kind, dir)
	}
	return &port.Connections, nil
}

// Connections returns a copy of the connection list of a port in direction dir.
func (g *Graph) Connections(at Connection, dir Direction) ([]Connection, error) {
	l, err := g.list(at, dir)
	if err != nil {
		return nil, err
	}
	return slices.Clone(*l), nil
}

// SetConnections replaces the connection list of a port in direction dir.
func (g *Graph) SetConnections(at Connection, dir Direction, conns []Connection) error {
	l, err := g.list(at, dir)
	if err != nil {
		return err
	}
	*l = slices.Clone(conns)
	return nil
}

// AddConnection appends conn to the list of the port named by from in
// direction dir. The target of conn is validated against the graph.
func (g *Graph) AddConnection(from Connection, dir Direction, conn Connection) error {
	if err := g.checkEndpoint(conn); err != nil {
		return err
	}
	l, err := g.list(from, dir)
	if err != nil {
		return err
	}
	*l = append(*l, conn)
	return nil
}

// Connect registers a producer -> consumer edge on both endpoints.
func (g *Graph) Connect(producer, consumer Connection) error {
	if err := g.AddConnection(producer, Downstream, consumer); err != nil {
		return err
	}
	return g.AddConnection(consumer, Upstream, producer)
}

// FixReverseConnection rewrites the entry old to replacement in the list of
// the port named by at in direction dir. The exact old triple must be present;
// a silent mismatch would corrupt the topology.
func (g *Graph) FixReverseConnection(at Connection, dir Direction, old, replacement Connection) error {
	if err := g.checkEndpoint(replacement); err != nil {
		return err
	}
	l, err := g.list(at, dir)
	if err != nil {
		return err
	}
	i := slices.Index(*l, old)
	if i < 0 {
		return integrityError(at.Operator, at.Port, at.Kind, ErrConnectionNotFound,
			"%s list has no connection %s to retarget to %s", dir, old, replacement)
	}
	(*l)[i] = replacement
	return nil
}

// RemoveConnection deletes the entry conn from the list of the port named by
// at in direction dir. The entry must be present.
func (g *Graph) RemoveConnection(at Connection, dir Direction, conn Connection) error {
	l, err := g.list(at, dir)
	if err != nil {
		return err
	}
	i := slices.Index(*l, conn)
	if i < 0 {
		return integrityError(at.Operator, at.Port, at.Kind, ErrConnectionNotFound,
			"%s list has no connection %s", dir, conn)
	}
	*l = slices.Delete(*l, i, i+1)
	return nil
}

// checkEndpoint verifies that c names an existing port.
func (g *Graph) checkEndpoint(c Connection) error {
	op, err := g.Resolve(c.Operator)
	if err != nil {
		return err
	}
	if _, ok := op.(*CompositeOperator); ok {
		_, _, err = g.CompositePortAt(c)
	} else {
		_, _, err = g.PrimitivePortAt(c)
	}
	return err
}

// QualifiedName returns the dotted name of op from the root downwards,
// excluding the root composite itself. If withChannels is set, every segment
// that is a parallel region root carries its channel as a [c] suffix.
func (g *Graph) QualifiedName(idx OperatorIndex, withChannels bool) (string, error) {
	var segs []string
	for cur := idx; cur != NoOperator; {
		op, err := g.Resolve(cur)
		if err != nil {
			return "", err
		}
		b := op.Base()
		if b.Owner == NoOperator {
			break
		}
		seg := b.Name
		if withChannels && b.LocalChannelIndex >= 0 {
			seg = fmt.Sprintf("%s[%d]", seg, b.LocalChannelIndex)
		}
		segs = append(segs, seg)
		cur = b.Owner
	}
	slices.Reverse(segs)
	return strings.Join(segs, "."), nil
}

// Clone returns a deep copy of the graph that can be mutated independently.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		ops:  make(map[OperatorIndex]Operator, len(g.ops)),
		next: g.next,
		root: g.root,
		App:  g.App.clone(),
	}
	for idx, op := range g.ops {
		c.ops[idx] = CopyOperator(op)
	}
	return c
}
