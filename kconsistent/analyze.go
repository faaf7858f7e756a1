package kconsistent

import (
	"io"
	"log/slog"
	"slices"
	"strconv"

	"github.com/birdayz/streamc/kmodel"
	"github.com/birdayz/streamc/kregion"
)

const pass = "consistent"

// SoftTagPrefix prefixes the soft placement tag given to region members.
const SoftTagPrefix = "__consistentRegion_"

// Option configures Analyze.
type Option func(*analyzer)

// WithLog sets the logger.
var WithLog = func(log *slog.Logger) Option {
	return func(a *analyzer) {
		a.log = log
	}
}

type analyzer struct {
	g        *kmodel.Graph
	parallel *kregion.ParallelRegions
	regions  *kregion.CCRegions
	log      *slog.Logger

	// reached maps an operator to the regions it was reached from, in order.
	reached map[kmodel.OperatorIndex][]*kregion.CCRegion
}

// Analyze finds the consistent regions of the expanded graph g. parallel must
// be the registry filled by parallel expansion of g.
func Analyze(g *kmodel.Graph, parallel *kregion.ParallelRegions, opts ...Option) (*kregion.CCRegions, error) {
	a := &analyzer{
		g:        g,
		parallel: parallel,
		regions:  kregion.NewCCRegions(),
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		reached:  make(map[kmodel.OperatorIndex][]*kregion.CCRegion),
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.run(); err != nil {
		return nil, kmodel.InPass(pass, err)
	}
	return a.regions, nil
}

func (a *analyzer) run() error {
	type start struct {
		op     kmodel.Operator
		region *kregion.CCRegion
	}
	var starts []start
	err := a.g.Walk(func(op kmodel.Operator) error {
		b := op.Base()
		if !b.CC.Start {
			return nil
		}
		if _, ok := op.(kmodel.PrimitiveBase); !ok {
			return kmodel.NewIntegrityError(pass, b.Index, -1, kmodel.Input, "%s operator cannot start a consistent region", op.Kind())
		}
		index, cfg, err := startConfig(op)
		if err != nil {
			return err
		}
		chs, err := a.parallel.Channels(a.g, b.Index)
		if err != nil {
			return err
		}
		r := a.regions.LookupOrCreate(index, kregion.ChannelKey(chs), cfg)
		r.AddStart(b.Index)
		a.record(op, r)
		starts = append(starts, start{op: op, region: r})
		return nil
	})
	if err != nil {
		return err
	}

	for _, s := range starts {
		if err := a.flood(s.op, s.region); err != nil {
			return err
		}
	}

	for _, idx := range sortedIndices(a.reached) {
		if regs := a.reached[idx]; len(regs) > 1 {
			m := a.regions.MergeAll(regs)
			a.log.Debug("Merged consistent regions", "operator", idx, "regions", len(regs), "into", m.Index)
		}
	}

	roots := a.regions.Roots()
	for _, r := range roots {
		if err := a.checkStarts(r); err != nil {
			return err
		}
	}
	for _, r := range roots {
		if err := a.annotate(r); err != nil {
			return err
		}
	}
	a.log.Debug("Analyzed consistent regions", "starts", len(starts), "regions", len(roots))
	return nil
}

// flood adds everything downstream of start to r, stopping after region end
// operators and before oblivious operators.
func (a *analyzer) flood(start kmodel.Operator, r *kregion.CCRegion) error {
	visited := map[kmodel.OperatorIndex]bool{start.Base().Index: true}
	queue := outputs(start)
	for len(queue) > 0 {
		out := queue[0]
		queue = queue[1:]

		consumers, err := a.g.Consumers(out)
		if err != nil {
			return err
		}
		for _, c := range consumers {
			if visited[c.Operator] {
				continue
			}
			visited[c.Operator] = true
			op, err := a.g.Resolve(c.Operator)
			if err != nil {
				return err
			}
			b := op.Base()

			switch op.(type) {
			case *kmodel.SplitterOperator, *kmodel.MergerOperator:
				queue = append(queue, outputs(op)...)
				continue
			case *kmodel.ExportOperator:
				if !b.CC.Oblivious {
					return kmodel.NewIntegrityError(pass, b.Index, c.Port, c.Kind,
						"export %q is reachable from consistent region %d but not oblivious", b.Name, r.Index)
				}
				continue
			}
			if b.CC.Oblivious {
				continue
			}
			r.Add(b.Index)
			a.record(op, r)
			if b.CC.End {
				continue
			}
			queue = append(queue, outputs(op)...)
		}
	}
	return nil
}

func (a *analyzer) record(op kmodel.Operator, r *kregion.CCRegion) {
	b := op.Base()
	if slices.Contains(a.reached[b.Index], r) {
		return
	}
	a.reached[b.Index] = append(a.reached[b.Index], r)
	b.CC.ReachedFrom = append(b.CC.ReachedFrom, r.Index)
}

func (a *analyzer) checkStarts(r *kregion.CCRegion) error {
	if !r.OperatorDriven {
		return nil
	}
	var starts []kmodel.OperatorIndex
	for _, idx := range r.Members() {
		op, err := a.g.Resolve(idx)
		if err != nil {
			return err
		}
		if op.Base().CC.Start {
			starts = append(starts, idx)
		}
	}
	if len(starts) > 1 {
		return &TooManyStartOperatorsError{Region: r.Index, Starts: starts}
	}
	return nil
}

func (a *analyzer) annotate(r *kregion.CCRegion) error {
	tag := SoftTagPrefix + strconv.Itoa(r.Index)
	for _, idx := range r.Members() {
		op, err := a.g.Resolve(idx)
		if err != nil {
			return err
		}
		b := op.Base()
		b.CC.Region = r.Index
		b.AddAnnotation(kmodel.NewAnnotation(kmodel.TagConsistentRegionEntry,
			"index", strconv.Itoa(r.Index),
			"logicalIndex", strconv.Itoa(r.LogicalIndex),
			"drainTimeout", seconds(r.DrainTimeout.Seconds()),
			"resetTimeout", seconds(r.ResetTimeout.Seconds()),
			"isStartOfRegion", strconv.FormatBool(b.CC.Start),
			"isEndOfRegion", strconv.FormatBool(b.CC.End),
		))
		if p, ok := op.(*kmodel.PrimitiveOperator); ok && !slices.Contains(p.Resources.SoftTags, tag) {
			p.Resources.SoftTags = append(p.Resources.SoftTags, tag)
		}
	}
	return nil
}

func outputs(op kmodel.Operator) []kmodel.Connection {
	var out []kmodel.Connection
	for _, ep := range kmodel.Endpoints(op) {
		if ep.Kind == kmodel.Output {
			out = append(out, ep)
		}
	}
	return out
}

func seconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

func sortedIndices[V any](m map[kmodel.OperatorIndex]V) []kmodel.OperatorIndex {
	keys := make([]kmodel.OperatorIndex, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
