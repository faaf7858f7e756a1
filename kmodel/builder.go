package kmodel

import "strconv"

// Builder constructs an application graph the way a front end would. The
// first error is recorded and returned by Build; later calls become no-ops
// returning detached operators, so construction code stays linear.
//
// IMPORTANT: Builder is NOT safe for concurrent use.
type Builder struct {
	g    *Graph
	main OperatorIndex
	err  error
}

// NewBuilder creates a builder whose graph has a root composite named after
// the application.
func NewBuilder(app string) *Builder {
	b := &Builder{g: NewGraph(app), main: NoOperator}
	root, err := b.g.AddComposite(NoOperator, app, app, 0, 0)
	if err != nil {
		b.err = err
		return b
	}
	b.main = root.Index
	return b
}

// Main returns the index of the root composite.
func (b *Builder) Main() OperatorIndex {
	return b.main
}

// Graph returns the graph under construction.
func (b *Builder) Graph() *Graph {
	return b.g
}

// Err returns the first error recorded.
func (b *Builder) Err() error {
	return b.err
}

// Build validates the graph and returns it.
func (b *Builder) Build() (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.g.Validate(); err != nil {
		return nil, err
	}
	return b.g, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *Graph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}

// Composite adds a composite operator under owner.
func (b *Builder) Composite(owner OperatorIndex, name, definition string, inputs, outputs int) *CompositeOperator {
	if b.err != nil {
		return &CompositeOperator{OperatorBase: newBase(name)}
	}
	c, err := b.g.AddComposite(owner, name, definition, inputs, outputs)
	if err != nil {
		b.err = err
		return &CompositeOperator{OperatorBase: newBase(name)}
	}
	return c
}

// Primitive adds a physical operator under owner.
func (b *Builder) Primitive(owner OperatorIndex, name, runtimeKind string, inputs, outputs int) *PrimitiveOperator {
	if b.err != nil {
		return &PrimitiveOperator{OperatorBase: newBase(name)}
	}
	p, err := b.g.AddPrimitive(owner, name, runtimeKind, inputs, outputs)
	if err != nil {
		b.err = err
		return &PrimitiveOperator{OperatorBase: newBase(name)}
	}
	return p
}

// Import adds an import operator under owner.
func (b *Builder) Import(owner OperatorIndex, name string) *ImportOperator {
	if b.err != nil {
		return &ImportOperator{OperatorBase: newBase(name)}
	}
	p, err := b.g.AddImport(owner, name)
	if err != nil {
		b.err = err
		return &ImportOperator{OperatorBase: newBase(name)}
	}
	return p
}

// Export adds an export operator under owner.
func (b *Builder) Export(owner OperatorIndex, name string) *ExportOperator {
	if b.err != nil {
		return &ExportOperator{OperatorBase: newBase(name)}
	}
	p, err := b.g.AddExport(owner, name)
	if err != nil {
		b.err = err
		return &ExportOperator{OperatorBase: newBase(name)}
	}
	return p
}

// Wire registers a producer -> consumer edge on both endpoints.
func (b *Builder) Wire(producer, consumer Connection) {
	if b.err != nil {
		return
	}
	b.err = b.g.Connect(producer, consumer)
}

// Connect wires output port fromPort of from to input port toPort of to.
// Use Wire for edges that start at a composite's input port or end at a
// composite's output port.
func (b *Builder) Connect(from OperatorIndex, fromPort int, to OperatorIndex, toPort int) {
	b.Wire(Out(from, fromPort), In(to, toPort))
}

// Parallel marks op as the root of a parallel region.
func (b *Builder) Parallel(op Operator, name string, width int, kv ...string) {
	a := NewAnnotation(TagParallel, append([]string{"name", name, "width", strconv.Itoa(width)}, kv...)...)
	op.Base().AddAnnotation(a)
}
