package kparallel

import (
	"slices"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/birdayz/streamc/kmodel"
	"github.com/birdayz/streamc/kregion"
)

// pipeline builds main { src -> p -> sink } and returns the builder and the
// three primitives. p is not yet marked parallel.
func pipeline() (*kmodel.Builder, *kmodel.PrimitiveOperator, *kmodel.PrimitiveOperator, *kmodel.PrimitiveOperator) {
	b := kmodel.NewBuilder("app")
	main := b.Main()
	src := b.Primitive(main, "src", "spl.utility::Beacon", 0, 1)
	p := b.Primitive(main, "p", "spl.relational::Functor", 1, 1)
	sink := b.Primitive(main, "sink", "spl.adapter::FileSink", 1, 0)
	src.Outputs[0].TupleType = "tuple<int32 key>"
	p.Outputs[0].TupleType = "tuple<int32 key, rstring v>"

	b.Connect(src.Index, 0, p.Index, 0)
	b.Connect(p.Index, 0, sink.Index, 0)
	return b, src, p, sink
}

func ofType[T kmodel.Operator](g *kmodel.Graph) []T {
	var out []T
	for _, op := range g.Operators() {
		if t, ok := op.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// replicasOf returns every operator sharing logical index idx, ordered by
// channel, then by index.
func replicasOf(g *kmodel.Graph, idx kmodel.OperatorIndex) []kmodel.Operator {
	var out []kmodel.Operator
	for _, op := range g.Operators() {
		if op.Base().LogicalIndex == idx {
			out = append(out, op)
		}
	}
	slices.SortFunc(out, func(a, b kmodel.Operator) int {
		if d := a.Base().LocalChannelIndex - b.Base().LocalChannelIndex; d != 0 {
			return d
		}
		return int(a.Base().Index - b.Base().Index)
	})
	return out
}

func mustExpand(t *testing.T, g *kmodel.Graph, opts ...Option) (*kregion.ParallelRegions, Stats) {
	t.Helper()
	regions := kregion.NewParallelRegions()
	stats, err := Expand(g, regions, opts...)
	assert.NoError(t, err)
	assert.NoError(t, g.Validate())
	return regions, stats
}

type widthMap map[string]int

func (w widthMap) WidthFor(names ...string) (int, bool) {
	for _, n := range names {
		if v, ok := w[n]; ok {
			return v, true
		}
	}
	return 0, false
}
