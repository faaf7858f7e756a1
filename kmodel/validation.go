package kmodel

import (
	"slices"

	"go.uber.org/multierr"
)

// Validate checks the structural invariants of the graph and reports every
// violation found:
//
//   - a root composite exists
//   - every non-root operator has exactly one owner, which lists it
//   - every connection resolves to an existing port of the matching kind
//   - every connection is registered on both of its endpoints
func (g *Graph) Validate() error {
	if g.root == NoOperator {
		return integrityError(NoOperator, -1, Input, nil, "graph has no root composite")
	}

	var errs error
	for _, op := range g.Operators() {
		errs = multierr.Append(errs, g.validateOwnership(op))
		for _, ep := range Endpoints(op) {
			for _, dir := range []Direction{Downstream, Upstream} {
				errs = multierr.Append(errs, g.validateList(ep, dir))
			}
		}
	}
	return errs
}

func (g *Graph) validateOwnership(op Operator) error {
	b := op.Base()
	if b.Owner == NoOperator {
		if b.Index != g.root {
			return integrityError(b.Index, -1, Input, nil, "operator %q has no owner", b.Name)
		}
		return nil
	}
	owner, err := g.Composite(b.Owner)
	if err != nil {
		return integrityError(b.Index, -1, Input, err, "owner %d of %q does not resolve", b.Owner, b.Name)
	}
	list := owner.Primitives
	if op.Kind() == KindComposite {
		list = owner.Composites
	}
	found := 0
	for _, c := range list {
		if c == b.Index {
			found++
		}
	}
	if found != 1 {
		return integrityError(b.Index, -1, Input, nil, "owner %d lists %q %d times", b.Owner, b.Name, found)
	}
	return nil
}

// validateList checks one connection list. Lists that do not exist for the
// endpoint (e.g. the downstream list of a primitive input port) are skipped.
func (g *Graph) validateList(at Connection, dir Direction) error {
	l, err := g.list(at, dir)
	if err != nil {
		return nil
	}
	var errs error
	for _, c := range *l {
		if err := g.checkEndpoint(c); err != nil {
			errs = multierr.Append(errs, integrityError(at.Operator, at.Port, at.Kind, err, "%s connection %s does not resolve", dir, c))
			continue
		}
		back, err := g.list(c, dir.Reverse())
		if err != nil {
			errs = multierr.Append(errs, integrityError(at.Operator, at.Port, at.Kind, err, "%s connection %s has no reverse list", dir, c))
			continue
		}
		if !slices.Contains(*back, at) {
			errs = multierr.Append(errs, integrityError(at.Operator, at.Port, at.Kind, ErrConnectionNotFound, "%s connection %s is not registered in reverse", dir, c))
		}
	}
	return errs
}

// Endpoints returns every port of op as an endpoint, inputs first.
func Endpoints(op Operator) []Connection {
	var out []Connection
	switch o := op.(type) {
	case *CompositeOperator:
		for _, p := range o.Inputs {
			out = append(out, In(o.Index, p.Index))
		}
		for _, p := range o.Outputs {
			out = append(out, Out(o.Index, p.Index))
		}
	case PrimitiveBase:
		for _, p := range o.Ports(Input) {
			out = append(out, In(o.Base().Index, p.Index))
		}
		for _, p := range o.Ports(Output) {
			out = append(out, Out(o.Base().Index, p.Index))
		}
	}
	return out
}
