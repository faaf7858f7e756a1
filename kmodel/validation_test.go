package kmodel

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
	"go.uber.org/multierr"
)

func TestValidate(t *testing.T) {
	t.Run("valid pipeline", func(t *testing.T) {
		b, _, _, _, _ := pipelineGraph()
		_, err := b.Build()
		assert.NoError(t, err)
	})

	t.Run("empty graph", func(t *testing.T) {
		err := NewGraph("app").Validate()
		assert.True(t, errors.Is(err, ErrGraphIntegrity))
	})

	t.Run("one-sided connection", func(t *testing.T) {
		b, src, _, _, sink := pipelineGraph()
		g := b.MustBuild()
		assert.NoError(t, g.AddConnection(Out(src, 0), Downstream, In(sink, 0)))

		err := g.Validate()
		assert.True(t, errors.Is(err, ErrConnectionNotFound))
		assert.Contains(t, err.Error(), "not registered in reverse")
	})

	t.Run("dangling connection", func(t *testing.T) {
		b, src, _, _, _ := pipelineGraph()
		g := b.MustBuild()
		p, _ := g.Resolve(src)
		p.(*PrimitiveOperator).Outputs[0].Connections = append(p.(*PrimitiveOperator).Outputs[0].Connections, In(42, 0))

		err := g.Validate()
		assert.True(t, errors.Is(err, ErrOperatorNotFound))
	})

	t.Run("reports every violation", func(t *testing.T) {
		b, src, _, inner, sink := pipelineGraph()
		g := b.MustBuild()
		assert.NoError(t, g.AddConnection(Out(src, 0), Downstream, In(sink, 0)))
		assert.NoError(t, g.AddConnection(Out(inner, 0), Downstream, In(sink, 0)))

		err := g.Validate()
		assert.Equal(t, 2, len(multierr.Errors(err)))
	})

	t.Run("owner does not list child", func(t *testing.T) {
		b, _, _, _, _ := pipelineGraph()
		g := b.MustBuild()
		root, _ := g.Composite(g.Root())
		root.Primitives = root.Primitives[1:]

		err := g.Validate()
		assert.True(t, errors.Is(err, ErrGraphIntegrity))
		assert.Contains(t, err.Error(), "lists \"src\" 0 times")
	})
}
