package kmodel

// Consumers follows the downstream connections of a producer endpoint through
// composite pass-through ports, one hop at a time, and returns the leaf input
// ports reached (primitive, export, splitter or merger ports). Order follows
// the connection lists depth first.
func (g *Graph) Consumers(producer Connection) ([]Connection, error) {
	return g.follow(producer, Downstream)
}

// Producers is the upstream counterpart of Consumers: it returns the leaf
// output ports feeding a consumer endpoint.
func (g *Graph) Producers(consumer Connection) ([]Connection, error) {
	return g.follow(consumer, Upstream)
}

func (g *Graph) follow(start Connection, dir Direction) ([]Connection, error) {
	l, err := g.list(start, dir)
	if err != nil {
		return nil, err
	}
	var out []Connection
	seen := map[Connection]bool{start: true}

	var walk func(conns []Connection) error
	walk = func(conns []Connection) error {
		for _, c := range conns {
			if seen[c] {
				continue
			}
			seen[c] = true
			op, err := g.Resolve(c.Operator)
			if err != nil {
				return err
			}
			if op.Kind() != KindComposite {
				if _, _, err := g.PrimitivePortAt(c); err != nil {
					return err
				}
				out = append(out, c)
				continue
			}
			next, err := g.list(c, dir)
			if err != nil {
				return err
			}
			if err := walk(*next); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(*l); err != nil {
		return nil, err
	}
	return out, nil
}

// Ancestors returns the owner chain of op, innermost first, excluding op.
func (g *Graph) Ancestors(idx OperatorIndex) ([]Operator, error) {
	op, err := g.Resolve(idx)
	if err != nil {
		return nil, err
	}
	var out []Operator
	for cur := op.Base().Owner; cur != NoOperator; {
		o, err := g.Resolve(cur)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
		cur = o.Base().Owner
	}
	return out, nil
}

// Walk visits the composite tree depth first, pre-order, starting at the
// root. Children are visited in their owner's order, composites first.
// Children appended to a composite while it is being visited are visited too.
func (g *Graph) Walk(fn func(op Operator) error) error {
	if g.root == NoOperator {
		return nil
	}
	var visit func(idx OperatorIndex) error
	visit = func(idx OperatorIndex) error {
		op, err := g.Resolve(idx)
		if err != nil {
			return err
		}
		if err := fn(op); err != nil {
			return err
		}
		c, ok := op.(*CompositeOperator)
		if !ok {
			return nil
		}
		for i := 0; i < len(c.Composites); i++ {
			if err := visit(c.Composites[i]); err != nil {
				return err
			}
		}
		for i := 0; i < len(c.Primitives); i++ {
			if err := visit(c.Primitives[i]); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(g.root)
}
