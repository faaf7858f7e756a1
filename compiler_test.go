package streamc

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/sync/errgroup"

	"github.com/birdayz/streamc/internal/metrics"
	"github.com/birdayz/streamc/kconfig"
	"github.com/birdayz/streamc/kconsistent"
	"github.com/birdayz/streamc/kmodel"
	"github.com/birdayz/streamc/kparallel"
	"github.com/birdayz/streamc/ktopology"
)

// sensors builds src -> [par: enrich] -> sink with a consistent region
// starting at src.
func sensors(width int) *kmodel.Graph {
	b := kmodel.NewBuilder("sensors")
	main := b.Main()
	src := b.Primitive(main, "src", "spl.adapter::FileSource", 0, 1)
	enrich := b.Primitive(main, "enrich", "spl.relational::Functor", 1, 1)
	sink := b.Primitive(main, "sink", "spl.adapter::FileSink", 1, 0)
	b.Connect(src.Index, 0, enrich.Index, 0)
	b.Connect(enrich.Index, 0, sink.Index, 0)
	b.Parallel(enrich, "par", width, "splitter.0", "hash:id")
	enrich.Parameters = []kmodel.Parameter{{Name: "suffix", Value: "\"_\" + (rstring)getChannel()"}}
	src.CC.Start = true
	sink.CC.End = true
	return b.MustBuild()
}

func countKind(g *kmodel.Graph, kind kmodel.Kind) int {
	n := 0
	for _, op := range g.Operators() {
		if op.Kind() == kind {
			n++
		}
	}
	return n
}

func TestCompile(t *testing.T) {
	g := sensors(3)
	before := g.Len()

	res, err := New().CompileResult(g)
	assert.NoError(t, err)
	topo := res.Topology

	assert.Equal(t, before, g.Len(), "input graph must not be modified")
	assert.Equal(t, "sensors", topo.Name)
	assert.Equal(t, 5, len(topo.Nodes))
	assert.Equal(t, 1, countKind(res.Graph, kmodel.KindSplitter))
	assert.Equal(t, 1, countKind(res.Graph, kmodel.KindMerger))
	assert.Equal(t, kparallel.Stats{Regions: 1, Replicas: 2, Splitters: 1, Mergers: 1}, res.Expansion)

	assert.Equal(t, 1, len(topo.ConsistentRegions))
	assert.Equal(t, 5, len(topo.ConsistentRegions[0].Nodes))
	for _, n := range topo.Nodes {
		assert.True(t, n.InConsistentRegion(), "node %s", n.Name)
		if n.LogicalName == "enrich" {
			c := n.ParallelChannels[0].Channel
			assert.Equal(t, "\"_\" + (rstring)"+string(rune('0'+c)), n.Parameters[0].Value)
		}
	}
}

func TestCompileReentrant(t *testing.T) {
	g := sensors(2)
	narrow := New()
	wide := New(WithConfig(&kconfig.Config{ParallelWidths: map[string]int{"par": 6}}))

	var small, big *ktopology.Topology
	var eg errgroup.Group
	eg.Go(func() (err error) {
		small, err = narrow.Compile(g)
		return err
	})
	eg.Go(func() (err error) {
		big, err = wide.Compile(g)
		return err
	})
	assert.NoError(t, eg.Wait())

	assert.Equal(t, 4, len(small.Nodes))
	assert.Equal(t, 8, len(big.Nodes))
	assert.Equal(t, 2, small.ParallelRegions[0].Width)
	assert.Equal(t, 6, big.ParallelRegions[0].Width)
	assert.NotEqual(t, small.ID, big.ID)

	again, err := narrow.Compile(g)
	assert.NoError(t, err)
	assert.Equal(t, len(small.Nodes), len(again.Nodes))
	assert.Equal(t, small.Connections, again.Connections)
}

func TestCompileConfig(t *testing.T) {
	g := sensors(2)
	g.App.SubmissionValues = []kmodel.SubmissionValue{{Name: "dir", Required: true}}

	cfg, err := kconfig.Parse([]byte(`
name: renamed
trace_level: trace
parallel_widths:
  "en*": 3
submission_values:
  dir: /data
`))
	assert.NoError(t, err)

	topo, err := New(WithConfig(cfg), WithLogr(logr.Discard())).Compile(g)
	assert.NoError(t, err)
	assert.Equal(t, "renamed", topo.Name)
	assert.Equal(t, "sensors", g.App.Name)
	assert.Equal(t, 5, len(topo.Nodes))
	assert.Equal(t, []ktopology.SubmissionValue{{Name: "dir", Value: "/data"}}, topo.SubmissionValues)
	for _, n := range topo.Nodes {
		assert.Equal(t, "trace", n.TraceLevel)
	}

	_, err = New().Compile(g)
	assert.True(t, errors.Is(err, ktopology.ErrMissingSubmissionValue))
}

func TestCompileErrors(t *testing.T) {
	t.Run("invalid width override", func(t *testing.T) {
		topo, err := New().Compile(sensors(0))
		assert.Zero(t, topo)
		assert.True(t, errors.Is(err, kparallel.ErrInvalidParallelWidth))
	})

	t.Run("too many start operators", func(t *testing.T) {
		b := kmodel.NewBuilder("app")
		main := b.Main()
		s1 := b.Primitive(main, "s1", "k", 0, 1)
		s2 := b.Primitive(main, "s2", "k", 0, 1)
		x := b.Primitive(main, "x", "k", 1, 0)
		b.Connect(s1.Index, 0, x.Index, 0)
		b.Connect(s2.Index, 0, x.Index, 0)
		s1.CC.Start = true
		s2.CC.Start = true
		g := b.MustBuild()

		topo, err := New().Compile(g)
		assert.Zero(t, topo)
		assert.True(t, errors.Is(err, kconsistent.ErrTooManyStartOperators))
		_, ok := x.Annotation(kmodel.TagConsistentRegionEntry)
		assert.False(t, ok)
	})

	t.Run("integrity", func(t *testing.T) {
		g := sensors(1)
		for _, op := range g.Operators() {
			if p, ok := op.(*kmodel.PrimitiveOperator); ok && p.Name == "sink" {
				p.Inputs[0].Connections = append(p.Inputs[0].Connections, kmodel.Out(9999, 0))
			}
		}
		_, err := New().Compile(g)
		assert.True(t, errors.Is(err, kmodel.ErrGraphIntegrity))
	})
}

func TestCompileMetrics(t *testing.T) {
	ok := metrics.Compilations.WithLabelValues(metrics.ResultOK)
	failed := metrics.Compilations.WithLabelValues(metrics.ResultError)
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)
	replicas := testutil.ToFloat64(metrics.Replicas)

	c := New(WithMetrics(true))
	_, err := c.Compile(sensors(4))
	assert.NoError(t, err)
	_, err = c.Compile(sensors(0))
	assert.Error(t, err)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ok))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
	assert.Equal(t, replicas+3, testutil.ToFloat64(metrics.Replicas))
}
