package kparallel

import (
	"fmt"

	"github.com/birdayz/streamc/kmodel"
	"github.com/birdayz/streamc/kregion"
)

// injectSplitter routes input port p of every replica through a new splitter
// that takes over the original upstream connections of p. Feedback from
// inside a replica stays on that replica.
func (e *expander) injectSplitter(r *kregion.ParallelRegion, replicas []kmodel.Operator, subtrees []map[kmodel.OperatorIndex]bool, p int) error {
	orig := replicas[0].Base()
	at := kmodel.In(orig.Index, p)
	all, err := e.g.Connections(at, kmodel.Upstream)
	if err != nil {
		return err
	}
	upstream, _ := partition(all, subtrees[0])
	if len(upstream) == 0 {
		return nil
	}
	tupleType, err := e.tupleType(at)
	if err != nil {
		return err
	}

	s, err := e.g.AddSplitter(orig.Owner, fmt.Sprintf("%s_splitter%d", orig.Name, p), r.Index, len(replicas), r.SplitterFor(p))
	if err != nil {
		return err
	}
	setTupleType(s, tupleType)
	sin := kmodel.In(s.Index, 0)
	if err := e.g.SetConnections(sin, kmodel.Upstream, upstream); err != nil {
		return err
	}

	for _, u := range upstream {
		if err := e.g.FixReverseConnection(u, kmodel.Downstream, at, sin); err != nil {
			return err
		}
		for _, rep := range replicas[1:] {
			if err := e.g.RemoveConnection(u, kmodel.Downstream, kmodel.In(rep.Base().Index, p)); err != nil {
				return err
			}
		}
	}

	for ch, rep := range replicas {
		in := kmodel.In(rep.Base().Index, p)
		out := kmodel.Out(s.Index, ch)
		conns, err := e.g.Connections(in, kmodel.Upstream)
		if err != nil {
			return err
		}
		_, internal := partition(conns, subtrees[ch])
		if err := e.g.SetConnections(in, kmodel.Upstream, append([]kmodel.Connection{out}, internal...)); err != nil {
			return err
		}
		if err := e.g.SetConnections(out, kmodel.Downstream, []kmodel.Connection{in}); err != nil {
			return err
		}
	}

	e.stats.Splitters++
	e.log.Debug("Injected splitter", "region", r.Name, "port", p, "splitter", s.Index, "kind", s.Config.Kind)
	return nil
}

// injectMerger routes output port q of every replica through a new merger
// that takes over the original downstream connections of q. Feedback into a
// replica stays on that replica.
func (e *expander) injectMerger(r *kregion.ParallelRegion, replicas []kmodel.Operator, subtrees []map[kmodel.OperatorIndex]bool, q int) error {
	orig := replicas[0].Base()
	at := kmodel.Out(orig.Index, q)
	all, err := e.g.Connections(at, kmodel.Downstream)
	if err != nil {
		return err
	}
	downstream, _ := partition(all, subtrees[0])
	if len(downstream) == 0 {
		return nil
	}
	tupleType, err := e.tupleType(at)
	if err != nil {
		return err
	}

	m, err := e.g.AddMerger(orig.Owner, fmt.Sprintf("%s_merger%d", orig.Name, q), r.Index, len(replicas))
	if err != nil {
		return err
	}
	setTupleType(m, tupleType)
	mout := kmodel.Out(m.Index, 0)
	if err := e.g.SetConnections(mout, kmodel.Downstream, downstream); err != nil {
		return err
	}

	for _, d := range downstream {
		if err := e.g.FixReverseConnection(d, kmodel.Upstream, at, mout); err != nil {
			return err
		}
		for _, rep := range replicas[1:] {
			if err := e.g.RemoveConnection(d, kmodel.Upstream, kmodel.Out(rep.Base().Index, q)); err != nil {
				return err
			}
		}
	}

	for ch, rep := range replicas {
		out := kmodel.Out(rep.Base().Index, q)
		in := kmodel.In(m.Index, ch)
		conns, err := e.g.Connections(out, kmodel.Downstream)
		if err != nil {
			return err
		}
		_, internal := partition(conns, subtrees[ch])
		if err := e.g.SetConnections(out, kmodel.Downstream, append([]kmodel.Connection{in}, internal...)); err != nil {
			return err
		}
		if err := e.g.SetConnections(in, kmodel.Upstream, []kmodel.Connection{out}); err != nil {
			return err
		}
	}

	e.stats.Mergers++
	e.log.Debug("Injected merger", "region", r.Name, "port", q, "merger", m.Index)
	return nil
}

// partition splits conns into those leaving the subtree and those staying
// inside it.
func partition(conns []kmodel.Connection, subtree map[kmodel.OperatorIndex]bool) (boundary, internal []kmodel.Connection) {
	for _, c := range conns {
		if subtree[c.Operator] {
			internal = append(internal, c)
		} else {
			boundary = append(boundary, c)
		}
	}
	return boundary, internal
}

// subtree returns the indices of op and everything it contains.
func (e *expander) subtree(op kmodel.Operator) (map[kmodel.OperatorIndex]bool, error) {
	out := make(map[kmodel.OperatorIndex]bool)
	var visit func(op kmodel.Operator) error
	visit = func(op kmodel.Operator) error {
		out[op.Base().Index] = true
		comp, ok := op.(*kmodel.CompositeOperator)
		if !ok {
			return nil
		}
		for _, child := range comp.Children() {
			c, err := e.g.Resolve(child)
			if err != nil {
				return err
			}
			if err := visit(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(op); err != nil {
		return nil, err
	}
	return out, nil
}

// tupleType finds the tuple type flowing through at by locating the real
// producer behind any composite ports.
func (e *expander) tupleType(at kmodel.Connection) (string, error) {
	if at.Kind == kmodel.Output {
		if _, port, err := e.g.PrimitivePortAt(at); err == nil {
			return port.TupleType, nil
		}
	}
	producers, err := e.g.Producers(at)
	if err != nil {
		return "", err
	}
	if len(producers) == 0 {
		return "", nil
	}
	_, port, err := e.g.PrimitivePortAt(producers[0])
	if err != nil {
		return "", err
	}
	return port.TupleType, nil
}

func setTupleType(op kmodel.PrimitiveBase, tupleType string) {
	for _, kind := range []kmodel.PortKind{kmodel.Input, kmodel.Output} {
		for _, p := range op.Ports(kind) {
			p.TupleType = tupleType
		}
	}
}
