package kmodel

// CompositePort is a pass-through alias. Incoming points upstream (towards
// producers), Outgoing points downstream (towards consumers), regardless of
// whether it is an input or an output port of the composite.
type CompositePort struct {
	Index    int
	Incoming []Connection
	Outgoing []Connection
}

// PrimitivePort is a port of a leaf operator. Connections of an output port
// point at consumers, connections of an input port point at producers.
type PrimitivePort struct {
	Index       int
	Connections []Connection

	TupleType string
	Transport string
	Encoding  string
	Mutable   bool
}

func newCompositePorts(n int) []*CompositePort {
	ports := make([]*CompositePort, n)
	for i := range ports {
		ports[i] = &CompositePort{Index: i}
	}
	return ports
}

func newPrimitivePorts(n int) []*PrimitivePort {
	ports := make([]*PrimitivePort, n)
	for i := range ports {
		ports[i] = &PrimitivePort{Index: i}
	}
	return ports
}

func copyCompositePorts(in []*CompositePort) []*CompositePort {
	out := make([]*CompositePort, len(in))
	for i, p := range in {
		out[i] = &CompositePort{
			Index:    p.Index,
			Incoming: append([]Connection(nil), p.Incoming...),
			Outgoing: append([]Connection(nil), p.Outgoing...),
		}
	}
	return out
}

func copyPrimitivePorts(in []*PrimitivePort) []*PrimitivePort {
	out := make([]*PrimitivePort, len(in))
	for i, p := range in {
		c := *p
		c.Connections = append([]Connection(nil), p.Connections...)
		out[i] = &c
	}
	return out
}
