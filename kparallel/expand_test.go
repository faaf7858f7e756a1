package kparallel

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/birdayz/streamc/kmodel"
	"github.com/birdayz/streamc/kregion"
)

func TestExpandWidthOne(t *testing.T) {
	b, src, p, sink := pipeline()
	b.Parallel(p, "par", 1)
	g := b.MustBuild()
	before := g.Len()

	regions, stats := mustExpand(t, g)

	assert.Equal(t, Stats{Regions: 1}, stats)
	assert.Equal(t, before, g.Len())
	assert.Equal(t, 0, len(ofType[*kmodel.SplitterOperator](g)))
	assert.Equal(t, 0, len(ofType[*kmodel.MergerOperator](g)))

	assert.Equal(t, 0, p.ParallelRegion)
	assert.Equal(t, 0, p.LocalChannelIndex)
	r, err := regions.Get(0)
	assert.NoError(t, err)
	assert.Equal(t, "par", r.Name)
	assert.Equal(t, []kmodel.OperatorIndex{p.Index}, r.Replicas)

	assert.Equal(t, []kmodel.Connection{kmodel.In(p.Index, 0)}, src.Outputs[0].Connections)
	assert.Equal(t, []kmodel.Connection{kmodel.Out(p.Index, 0)}, sink.Inputs[0].Connections)
}

func TestExpandPrimitive(t *testing.T) {
	b, src, p, sink := pipeline()
	b.Parallel(p, "par", 3)
	g := b.MustBuild()

	regions, stats := mustExpand(t, g)
	assert.Equal(t, Stats{Regions: 1, Replicas: 2, Splitters: 1, Mergers: 1}, stats)

	t.Run("replicas", func(t *testing.T) {
		reps := replicasOf(g, p.Index)
		assert.Equal(t, 3, len(reps))
		for ch, rep := range reps {
			assert.Equal(t, ch, rep.Base().LocalChannelIndex)
			assert.Equal(t, 0, rep.Base().ParallelRegion)
			assert.Equal(t, "p", rep.Base().Name)
		}
		r, _ := regions.Get(0)
		assert.Equal(t, 3, len(r.Replicas))
		assert.Equal(t, p.Index, r.Replicas[0])
	})

	splitters := ofType[*kmodel.SplitterOperator](g)
	mergers := ofType[*kmodel.MergerOperator](g)
	assert.Equal(t, 1, len(splitters))
	assert.Equal(t, 1, len(mergers))
	s, m := splitters[0], mergers[0]

	t.Run("splitter", func(t *testing.T) {
		assert.Equal(t, 1, len(s.Inputs))
		assert.Equal(t, 3, len(s.Outputs))
		assert.Equal(t, kmodel.SplitRoundRobin, s.Config.Kind)
		assert.Equal(t, b.Main(), s.Owner)
		assert.Equal(t, "tuple<int32 key>", s.Outputs[2].TupleType)
		assert.Equal(t, []kmodel.Connection{kmodel.Out(src.Index, 0)}, s.Inputs[0].Connections)
		assert.Equal(t, []kmodel.Connection{kmodel.In(s.Index, 0)}, src.Outputs[0].Connections)
		for ch, rep := range replicasOf(g, p.Index) {
			prim := rep.(*kmodel.PrimitiveOperator)
			assert.Equal(t, []kmodel.Connection{kmodel.In(prim.Index, 0)}, s.Outputs[ch].Connections)
			assert.Equal(t, []kmodel.Connection{kmodel.Out(s.Index, ch)}, prim.Inputs[0].Connections)
		}
	})

	t.Run("merger", func(t *testing.T) {
		assert.Equal(t, 3, len(m.Inputs))
		assert.Equal(t, 1, len(m.Outputs))
		assert.Equal(t, "tuple<int32 key, rstring v>", m.Outputs[0].TupleType)
		assert.Equal(t, []kmodel.Connection{kmodel.In(sink.Index, 0)}, m.Outputs[0].Connections)
		assert.Equal(t, []kmodel.Connection{kmodel.Out(m.Index, 0)}, sink.Inputs[0].Connections)
		for ch, rep := range replicasOf(g, p.Index) {
			prim := rep.(*kmodel.PrimitiveOperator)
			assert.Equal(t, []kmodel.Connection{kmodel.In(m.Index, ch)}, prim.Outputs[0].Connections)
		}
	})
}

func TestExpandFanIn(t *testing.T) {
	b := kmodel.NewBuilder("app")
	main := b.Main()
	a := b.Primitive(main, "a", "k", 0, 1)
	c := b.Primitive(main, "c", "k", 0, 1)
	p := b.Primitive(main, "p", "k", 1, 0)
	b.Connect(a.Index, 0, p.Index, 0)
	b.Connect(c.Index, 0, p.Index, 0)
	b.Parallel(p, "par", 2, "splitter.0", "hash:key, id")
	g := b.MustBuild()

	_, stats := mustExpand(t, g)
	assert.Equal(t, 1, stats.Splitters)
	assert.Equal(t, 0, stats.Mergers)

	s := ofType[*kmodel.SplitterOperator](g)[0]
	assert.Equal(t, kmodel.SplitterConfig{Kind: kmodel.SplitHash, Attributes: []string{"key", "id"}}, s.Config)
	assert.Equal(t, []kmodel.Connection{kmodel.Out(a.Index, 0), kmodel.Out(c.Index, 0)}, s.Inputs[0].Connections)
	assert.Equal(t, []kmodel.Connection{kmodel.In(s.Index, 0)}, a.Outputs[0].Connections)
	assert.Equal(t, []kmodel.Connection{kmodel.In(s.Index, 0)}, c.Outputs[0].Connections)
}

func TestExpandFeedbackLoop(t *testing.T) {
	b, src, p, sink := pipeline()
	b.Connect(p.Index, 0, p.Index, 0)
	b.Parallel(p, "par", 2)
	g := b.MustBuild()

	_, stats := mustExpand(t, g)
	assert.Equal(t, Stats{Regions: 1, Replicas: 1, Splitters: 1, Mergers: 1}, stats)

	s := ofType[*kmodel.SplitterOperator](g)[0]
	m := ofType[*kmodel.MergerOperator](g)[0]
	assert.Equal(t, []kmodel.Connection{kmodel.Out(src.Index, 0)}, s.Inputs[0].Connections)
	assert.Equal(t, []kmodel.Connection{kmodel.In(sink.Index, 0)}, m.Outputs[0].Connections)

	// Every replica keeps its loop onto itself.
	for ch, rep := range replicasOf(g, p.Index) {
		prim := rep.(*kmodel.PrimitiveOperator)
		assert.Equal(t, []kmodel.Connection{kmodel.Out(s.Index, ch), kmodel.Out(prim.Index, 0)}, prim.Inputs[0].Connections)
		assert.Equal(t, []kmodel.Connection{kmodel.In(m.Index, ch), kmodel.In(prim.Index, 0)}, prim.Outputs[0].Connections)
	}
}

func TestExpandComposite(t *testing.T) {
	b := kmodel.NewBuilder("app")
	main := b.Main()
	src := b.Primitive(main, "src", "k", 0, 1)
	wrap := b.Composite(main, "wrap", "my::Wrap", 1, 1)
	inner := b.Primitive(wrap.Index, "inner", "k", 1, 1)
	sink := b.Primitive(main, "sink", "k", 1, 0)
	b.Connect(src.Index, 0, wrap.Index, 0)
	b.Wire(kmodel.In(wrap.Index, 0), kmodel.In(inner.Index, 0))
	b.Wire(kmodel.Out(inner.Index, 0), kmodel.Out(wrap.Index, 0))
	b.Connect(wrap.Index, 0, sink.Index, 0)
	b.Parallel(wrap, "wide", 2)
	g := b.MustBuild()

	_, stats := mustExpand(t, g)
	assert.Equal(t, Stats{Regions: 1, Replicas: 1, Splitters: 1, Mergers: 1}, stats)

	wraps := replicasOf(g, wrap.Index)
	inners := replicasOf(g, inner.Index)
	assert.Equal(t, 2, len(wraps))
	assert.Equal(t, 2, len(inners))

	w1 := wraps[1].(*kmodel.CompositeOperator)
	i1 := inners[1].(*kmodel.PrimitiveOperator)
	assert.Equal(t, []kmodel.OperatorIndex{i1.Index}, w1.Primitives)
	assert.Equal(t, w1.Index, i1.Owner)
	assert.Equal(t, -1, i1.LocalChannelIndex)
	assert.Equal(t, []kmodel.Connection{kmodel.In(w1.Index, 0)}, i1.Inputs[0].Connections)
	assert.Equal(t, []kmodel.Connection{kmodel.Out(w1.Index, 0)}, i1.Outputs[0].Connections)
	assert.Equal(t, []kmodel.Connection{kmodel.In(i1.Index, 0)}, w1.Inputs[0].Outgoing)

	s := ofType[*kmodel.SplitterOperator](g)[0]
	assert.Equal(t, []kmodel.Connection{kmodel.Out(s.Index, 1)}, w1.Inputs[0].Incoming)

	name, err := g.QualifiedName(i1.Index, true)
	assert.NoError(t, err)
	assert.Equal(t, "wrap[1].inner", name)
	name, err = g.QualifiedName(i1.Index, false)
	assert.NoError(t, err)
	assert.Equal(t, "wrap.inner", name)

	consumers, err := g.Consumers(kmodel.Out(s.Index, 1))
	assert.NoError(t, err)
	assert.Equal(t, []kmodel.Connection{kmodel.In(i1.Index, 0)}, consumers)
}

func TestExpandNested(t *testing.T) {
	b := kmodel.NewBuilder("app")
	main := b.Main()
	src := b.Primitive(main, "src", "k", 0, 1)
	outer := b.Composite(main, "outer", "my::Outer", 1, 0)
	inner := b.Primitive(outer.Index, "inner", "k", 1, 0)
	b.Connect(src.Index, 0, outer.Index, 0)
	b.Wire(kmodel.In(outer.Index, 0), kmodel.In(inner.Index, 0))
	b.Parallel(outer, "outer", 2)
	b.Parallel(inner, "inner", 3)
	g := b.MustBuild()

	regions, stats := mustExpand(t, g)
	assert.Equal(t, Stats{Regions: 3, Replicas: 1 + 2*2, Splitters: 3}, stats)
	assert.Equal(t, 1, len(regions.ByName("outer")))
	assert.Equal(t, 2, len(regions.ByName("inner")))

	inners := replicasOf(g, inner.Index)
	assert.Equal(t, 6, len(inners))

	t.Run("each outer channel has its own inner instance", func(t *testing.T) {
		seen := map[string]bool{}
		for _, op := range inners {
			chs, err := regions.Channels(g, op.Base().Index)
			assert.NoError(t, err)
			assert.Equal(t, 2, len(chs))
			assert.Equal(t, "inner", chs[0].Name)
			assert.Equal(t, 3, chs[0].Width)
			assert.Equal(t, "outer", chs[1].Name)
			key := kregion.ChannelKey(chs)
			assert.False(t, seen[key], "duplicate channel path %s", key)
			seen[key] = true
		}
	})

	t.Run("inner splitters live in the outer replicas", func(t *testing.T) {
		owners := map[kmodel.OperatorIndex]int{}
		for _, s := range ofType[*kmodel.SplitterOperator](g) {
			owners[s.Owner]++
		}
		for _, w := range replicasOf(g, outer.Index) {
			assert.Equal(t, 1, owners[w.Base().Index])
		}
		assert.Equal(t, 1, owners[main])
	})
}

func TestExpandChainedRegions(t *testing.T) {
	for _, order := range []string{"upstream first", "downstream first"} {
		t.Run(order, func(t *testing.T) {
			b := kmodel.NewBuilder("app")
			main := b.Main()
			src := b.Primitive(main, "src", "k", 0, 1)
			var r1, r2 *kmodel.PrimitiveOperator
			if order == "upstream first" {
				r1 = b.Primitive(main, "r1", "k", 1, 1)
				r2 = b.Primitive(main, "r2", "k", 1, 1)
			} else {
				r2 = b.Primitive(main, "r2", "k", 1, 1)
				r1 = b.Primitive(main, "r1", "k", 1, 1)
			}
			sink := b.Primitive(main, "sink", "k", 1, 0)
			b.Connect(src.Index, 0, r1.Index, 0)
			b.Connect(r1.Index, 0, r2.Index, 0)
			b.Connect(r2.Index, 0, sink.Index, 0)
			b.Parallel(r1, "r1", 2)
			b.Parallel(r2, "r2", 3)
			g := b.MustBuild()

			_, stats := mustExpand(t, g)
			assert.Equal(t, 2, stats.Splitters)
			assert.Equal(t, 2, stats.Mergers)

			var m1 *kmodel.MergerOperator
			for _, m := range ofType[*kmodel.MergerOperator](g) {
				if len(m.Inputs) == 2 {
					m1 = m
				}
			}
			assert.NotZero(t, m1)
			consumers, err := g.Consumers(kmodel.Out(m1.Index, 0))
			assert.NoError(t, err)
			assert.Equal(t, 1, len(consumers))
			s2, err := g.Resolve(consumers[0].Operator)
			assert.NoError(t, err)
			assert.Equal(t, kmodel.KindSplitter, s2.Kind())
		})
	}
}

func TestExpandWidthOverride(t *testing.T) {
	tests := []struct {
		name   string
		widths widthMap
		want   int
	}{
		{name: "none", widths: widthMap{}, want: 3},
		{name: "by region name", widths: widthMap{"par": 5}, want: 5},
		{name: "by logical name", widths: widthMap{"p": 2}, want: 2},
		{name: "region name wins", widths: widthMap{"par": 4, "p": 2}, want: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _, p, _ := pipeline()
			b.Parallel(p, "par", 3)
			g := b.MustBuild()
			regions, _ := mustExpand(t, g, WithWidths(tt.widths))
			assert.Equal(t, tt.want, len(replicasOf(g, p.Index)))
			r, _ := regions.Get(0)
			assert.Equal(t, tt.want, r.Width)
		})
	}
}

func TestExpandInvalidWidth(t *testing.T) {
	t.Run("annotation", func(t *testing.T) {
		b, _, p, _ := pipeline()
		b.Parallel(p, "par", 0)
		_, err := Expand(b.MustBuild(), kregion.NewParallelRegions())
		assert.True(t, errors.Is(err, ErrInvalidParallelWidth))
		var werr *InvalidParallelWidthError
		assert.True(t, errors.As(err, &werr))
		assert.Equal(t, 0, werr.Width)
		assert.Equal(t, "par", werr.Region)
		assert.Equal(t, p.Index, werr.Operator)
	})

	t.Run("override", func(t *testing.T) {
		b, _, p, _ := pipeline()
		b.Parallel(p, "par", 2)
		_, err := Expand(b.MustBuild(), kregion.NewParallelRegions(), WithWidths(widthMap{"par": -1}))
		var werr *InvalidParallelWidthError
		assert.True(t, errors.As(err, &werr))
		assert.Equal(t, -1, werr.Width)
	})
}

func TestExpandMalformedAnnotation(t *testing.T) {
	tests := []struct {
		name string
		kv   []string
		key  string
	}{
		{name: "width not a number", kv: []string{"name", "par", "width", "many"}, key: "width"},
		{name: "width missing", kv: []string{"name", "par"}, key: "width"},
		{name: "unknown splitter", kv: []string{"width", "2", "splitter.0", "random"}, key: "splitter.0"},
		{name: "bad splitter port", kv: []string{"width", "2", "splitter.x", "broadcast"}, key: "splitter.x"},
		{name: "hash without attributes", kv: []string{"width", "2", "splitter.0", "hash:"}, key: "splitter.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _, p, _ := pipeline()
			p.AddAnnotation(kmodel.NewAnnotation(kmodel.TagParallel, tt.kv...))
			_, err := Expand(b.MustBuild(), kregion.NewParallelRegions())
			assert.True(t, errors.Is(err, kmodel.ErrMalformedAnnotation))
			var merr *kmodel.MalformedAnnotationError
			assert.True(t, errors.As(err, &merr))
			assert.Equal(t, tt.key, merr.Key)
			assert.Equal(t, p.Index, merr.Operator)
		})
	}
}

func TestExpandRejectsExportRoot(t *testing.T) {
	b := kmodel.NewBuilder("app")
	e := b.Export(b.Main(), "out")
	b.Parallel(e, "par", 2)
	_, err := Expand(b.MustBuild(), kregion.NewParallelRegions())
	assert.True(t, errors.Is(err, kmodel.ErrGraphIntegrity))
	var ierr *kmodel.GraphIntegrityError
	assert.True(t, errors.As(err, &ierr))
	assert.Equal(t, "parallel", ierr.Pass)
}
