package kmodel

// pipelineGraph builds
//
//	main { src -> wrap{ in0 -> inner -> out0 } -> sink }
//
// and returns the builder plus the indices of src, wrap, inner and sink.
func pipelineGraph() (*Builder, OperatorIndex, OperatorIndex, OperatorIndex, OperatorIndex) {
	b := NewBuilder("app")
	main := b.Main()
	src := b.Primitive(main, "src", "spl.utility::Beacon", 0, 1)
	wrap := b.Composite(main, "wrap", "my::Wrap", 1, 1)
	inner := b.Primitive(wrap.Index, "inner", "spl.relational::Functor", 1, 1)
	sink := b.Primitive(main, "sink", "spl.adapter::FileSink", 1, 0)

	b.Connect(src.Index, 0, wrap.Index, 0)
	b.Wire(In(wrap.Index, 0), In(inner.Index, 0))
	b.Wire(Out(inner.Index, 0), Out(wrap.Index, 0))
	b.Connect(wrap.Index, 0, sink.Index, 0)
	return b, src.Index, wrap.Index, inner.Index, sink.Index
}
