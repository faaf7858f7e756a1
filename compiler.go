package streamc

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/birdayz/streamc/internal/metrics"
	"github.com/birdayz/streamc/kconfig"
	"github.com/birdayz/streamc/kconsistent"
	"github.com/birdayz/streamc/kmodel"
	"github.com/birdayz/streamc/kparallel"
	"github.com/birdayz/streamc/kregion"
	"github.com/birdayz/streamc/ktopology"
)

// Compiler turns logical application graphs into physical topologies. A
// Compiler holds no per-compilation state and may be used concurrently.
type Compiler struct {
	log     *slog.Logger
	cfg     *kconfig.Config
	metrics bool
}

// New creates a compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		log: NullLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is a compiled topology together with the intermediate products of
// the passes.
type Result struct {
	Topology          *ktopology.Topology
	Graph             *kmodel.Graph
	ParallelRegions   *kregion.ParallelRegions
	ConsistentRegions *kregion.CCRegions
	Expansion         kparallel.Stats
}

// Compile compiles g. g itself is never modified; all passes run on a copy.
// On error nothing is returned.
func (c *Compiler) Compile(g *kmodel.Graph) (*ktopology.Topology, error) {
	res, err := c.CompileResult(g)
	if err != nil {
		return nil, err
	}
	return res.Topology, nil
}

// CompileResult is like Compile but also returns the expanded graph and the
// region registries.
func (c *Compiler) CompileResult(g *kmodel.Graph) (*Result, error) {
	res, err := c.compile(g)
	if c.metrics {
		result := metrics.ResultOK
		if err != nil {
			result = metrics.ResultError
		}
		metrics.Compilations.WithLabelValues(result).Inc()
	}
	if err != nil {
		c.log.Error("Compilation failed", "app", g.App.Name, "error", err)
		return nil, err
	}
	if c.metrics {
		metrics.ParallelRegions.Add(float64(res.Expansion.Regions))
		metrics.Replicas.Add(float64(res.Expansion.Replicas))
		metrics.ConsistentRegions.Add(float64(len(res.ConsistentRegions.Roots())))
		metrics.TopologyNodes.Observe(float64(len(res.Topology.Nodes)))
	}
	return res, nil
}

func (c *Compiler) compile(g *kmodel.Graph) (*Result, error) {
	work := g.Clone()
	if c.cfg != nil && c.cfg.Name != "" {
		work.App.Name = c.cfg.Name
	}
	log := c.log.With("app", work.App.Name)

	if err := c.pass("validate", func() error { return work.Validate() }); err != nil {
		return nil, fmt.Errorf("invalid input graph: %w", err)
	}

	res := &Result{
		Graph:           work,
		ParallelRegions: kregion.NewParallelRegions(),
	}

	expandOpts := []kparallel.Option{kparallel.WithLog(log.WithGroup("parallel"))}
	if c.cfg != nil {
		expandOpts = append(expandOpts, kparallel.WithWidths(c.cfg))
	}
	err := c.pass("parallel", func() (err error) {
		res.Expansion, err = kparallel.Expand(work, res.ParallelRegions, expandOpts...)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Debug("Expanded parallel regions",
		"regions", res.Expansion.Regions,
		"replicas", res.Expansion.Replicas,
		"splitters", res.Expansion.Splitters,
		"mergers", res.Expansion.Mergers)

	err = c.pass("consistent", func() (err error) {
		res.ConsistentRegions, err = kconsistent.Analyze(work, res.ParallelRegions, kconsistent.WithLog(log.WithGroup("consistent")))
		return err
	})
	if err != nil {
		return nil, err
	}

	flattenOpts := []ktopology.Option{ktopology.WithLog(log.WithGroup("flatten"))}
	if c.cfg != nil {
		flattenOpts = append(flattenOpts,
			ktopology.WithTraceLevel(c.cfg.TraceLevel),
			ktopology.WithSubmissionValues(c.cfg.SubmissionValues))
	}
	err = c.pass("flatten", func() (err error) {
		res.Topology, err = ktopology.Flatten(work, res.ParallelRegions, res.ConsistentRegions, flattenOpts...)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info("Compiled application",
		"id", res.Topology.ID,
		"nodes", len(res.Topology.Nodes),
		"connections", len(res.Topology.Connections),
		"consistentRegions", len(res.Topology.ConsistentRegions))
	return res, nil
}

func (c *Compiler) pass(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	if c.metrics {
		metrics.PassDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
	return err
}
