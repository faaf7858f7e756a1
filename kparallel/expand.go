package kparallel

import (
	"io"
	"log/slog"

	"github.com/birdayz/streamc/kmodel"
	"github.com/birdayz/streamc/kregion"
)

const pass = "parallel"

// Widths resolves submission-time width overrides. Names are tried in order:
// the region name, then the logical qualified name of the region root.
type Widths interface {
	WidthFor(names ...string) (int, bool)
}

// Stats summarizes one expansion.
type Stats struct {
	Regions   int
	Replicas  int
	Splitters int
	Mergers   int
}

// Option configures Expand.
type Option func(*expander)

// WithWidths sets the width overrides.
var WithWidths = func(w Widths) Option {
	return func(e *expander) {
		e.widths = w
	}
}

// WithLog sets the logger.
var WithLog = func(log *slog.Logger) Option {
	return func(e *expander) {
		e.log = log
	}
}

type expander struct {
	g       *kmodel.Graph
	regions *kregion.ParallelRegions
	widths  Widths
	log     *slog.Logger
	stats   Stats
}

// Expand replicates every parallel region of g in place, registers each region
// instance in regions, and substitutes channel intrinsics. g is left in an
// unspecified state if an error is returned.
func Expand(g *kmodel.Graph, regions *kregion.ParallelRegions, opts ...Option) (Stats, error) {
	e := &expander{
		g:       g,
		regions: regions,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := g.Walk(e.visit); err != nil {
		return Stats{}, kmodel.InPass(pass, err)
	}
	if err := e.substituteIntrinsics(); err != nil {
		return Stats{}, kmodel.InPass(pass, err)
	}
	return e.stats, nil
}

func (e *expander) visit(op kmodel.Operator) error {
	b := op.Base()
	// Already expanded roots and their replicas carry a region.
	if b.IsParallelRoot() {
		return nil
	}
	decl, ok, err := parseParallel(op)
	if err != nil || !ok {
		return err
	}
	switch op.(type) {
	case *kmodel.CompositeOperator, *kmodel.PrimitiveOperator:
	default:
		return kmodel.NewIntegrityError(pass, b.Index, -1, kmodel.Input, "%s operator cannot be a parallel region root", op.Kind())
	}

	width, err := e.width(op, decl)
	if err != nil {
		return err
	}
	r := e.regions.Add(decl.name, b.Index, width, decl.splitters)
	b.ParallelRegion, b.LocalChannelIndex = r.Index, 0
	e.stats.Regions++

	e.log.Debug("Expanding parallel region", "region", r.Name, "instance", r.Index, "operator", b.Index, "width", width)
	if width == 1 {
		return nil
	}

	replicas := []kmodel.Operator{op}
	for ch := 1; ch < width; ch++ {
		rep, err := e.replicate(op, r.Index, ch)
		if err != nil {
			return err
		}
		replicas = append(replicas, rep)
		r.Replicas = append(r.Replicas, rep.Base().Index)
		e.stats.Replicas++
	}

	subtrees := make([]map[kmodel.OperatorIndex]bool, len(replicas))
	for i, rep := range replicas {
		st, err := e.subtree(rep)
		if err != nil {
			return err
		}
		subtrees[i] = st
	}

	for p := range portCount(op, kmodel.Input) {
		if err := e.injectSplitter(r, replicas, subtrees, p); err != nil {
			return err
		}
	}
	for q := range portCount(op, kmodel.Output) {
		if err := e.injectMerger(r, replicas, subtrees, q); err != nil {
			return err
		}
	}
	return nil
}

func (e *expander) width(op kmodel.Operator, decl regionDecl) (int, error) {
	b := op.Base()
	width := decl.width
	if e.widths != nil {
		logical, err := e.g.QualifiedName(b.Index, false)
		if err != nil {
			return 0, err
		}
		if w, ok := e.widths.WidthFor(decl.name, logical); ok {
			e.log.Debug("Overriding parallel width", "region", decl.name, "from", width, "to", w)
			width = w
		}
	}
	if width < 1 {
		return 0, &InvalidParallelWidthError{Width: width, Region: decl.name, Operator: b.Index}
	}
	return width, nil
}

func portCount(op kmodel.Operator, kind kmodel.PortKind) int {
	switch o := op.(type) {
	case *kmodel.CompositeOperator:
		return len(o.Ports(kind))
	case kmodel.PrimitiveBase:
		return len(o.Ports(kind))
	}
	return 0
}
