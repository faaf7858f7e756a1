package kparallel

import (
	"github.com/birdayz/streamc/kmodel"
)

// portList is one connection list of one port.
type portList struct {
	at   kmodel.Connection
	dir  kmodel.Direction
	list *[]kmodel.Connection
}

// portLists returns every connection list owned by op.
func portLists(op kmodel.Operator) []portList {
	idx := op.Base().Index
	var out []portList
	switch o := op.(type) {
	case *kmodel.CompositeOperator:
		for _, kind := range []kmodel.PortKind{kmodel.Input, kmodel.Output} {
			for _, p := range o.Ports(kind) {
				at := kmodel.Connection{Operator: idx, Port: p.Index, Kind: kind}
				out = append(out,
					portList{at: at, dir: kmodel.Upstream, list: &p.Incoming},
					portList{at: at, dir: kmodel.Downstream, list: &p.Outgoing},
				)
			}
		}
	case kmodel.PrimitiveBase:
		for _, p := range o.Ports(kmodel.Input) {
			out = append(out, portList{at: kmodel.In(idx, p.Index), dir: kmodel.Upstream, list: &p.Connections})
		}
		for _, p := range o.Ports(kmodel.Output) {
			out = append(out, portList{at: kmodel.Out(idx, p.Index), dir: kmodel.Downstream, list: &p.Connections})
		}
	}
	return out
}

// replicate inserts a structurally identical copy of the subtree rooted at
// root next to it, as channel ch of region. Connections inside the subtree
// are remapped onto the copy. Connections leaving the subtree are kept and
// registered in reverse on their far endpoint, so the graph stays
// consistent; boundary fan-out is cleaned up by splitter and merger
// injection afterwards.
func (e *expander) replicate(root kmodel.Operator, region, ch int) (kmodel.Operator, error) {
	remap := make(map[kmodel.OperatorIndex]kmodel.OperatorIndex)
	var copies []kmodel.Operator

	var clone func(op kmodel.Operator, owner kmodel.OperatorIndex) (kmodel.Operator, error)
	clone = func(op kmodel.Operator, owner kmodel.OperatorIndex) (kmodel.Operator, error) {
		c := kmodel.CopyOperator(op)
		b := c.Base()
		b.Owner = owner

		var children []kmodel.OperatorIndex
		if comp, ok := c.(*kmodel.CompositeOperator); ok {
			children = comp.Children()
			comp.Composites, comp.Primitives = nil, nil
		}
		if err := e.g.Insert(c); err != nil {
			return nil, err
		}
		remap[op.Base().Index] = b.Index
		copies = append(copies, c)

		for _, child := range children {
			childOp, err := e.g.Resolve(child)
			if err != nil {
				return nil, err
			}
			if _, err := clone(childOp, b.Index); err != nil {
				return nil, err
			}
		}
		return c, nil
	}

	top, err := clone(root, root.Base().Owner)
	if err != nil {
		return nil, err
	}
	tb := top.Base()
	tb.ParallelRegion, tb.LocalChannelIndex = region, ch

	inside := make(map[kmodel.OperatorIndex]bool, len(remap))
	for _, c := range copies {
		for _, pl := range portLists(c) {
			for i, conn := range *pl.list {
				if n, ok := remap[conn.Operator]; ok {
					(*pl.list)[i].Operator = n
				}
			}
		}
		inside[c.Base().Index] = true
	}

	for _, c := range copies {
		for _, pl := range portLists(c) {
			for _, conn := range *pl.list {
				if inside[conn.Operator] {
					continue
				}
				if err := e.g.AddConnection(conn, pl.dir.Reverse(), pl.at); err != nil {
					return nil, err
				}
			}
		}
	}
	return top, nil
}
