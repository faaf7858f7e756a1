package kmodel

import (
	"errors"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
)

func TestAnnotationReader(t *testing.T) {
	b := NewBuilder("app")
	p := b.Primitive(b.Main(), "p", "k", 0, 0)
	p.AddAnnotation(NewAnnotation(TagConsistent,
		"index", "3",
		"trigger", "operatorDriven",
		"drainTimeout", "12.5",
		"enabled", "yes",
	))

	r, ok := p.Annotation(TagConsistent)
	assert.True(t, ok)

	t.Run("int", func(t *testing.T) {
		n, err := r.Int("index", -1)
		assert.NoError(t, err)
		assert.Equal(t, 3, n)

		n, err = r.Int("missing", 7)
		assert.NoError(t, err)
		assert.Equal(t, 7, n)
	})

	t.Run("seconds", func(t *testing.T) {
		d, err := r.Seconds("drainTimeout", time.Second)
		assert.NoError(t, err)
		assert.Equal(t, 12500*time.Millisecond, d)
	})

	t.Run("seconds out of range", func(t *testing.T) {
		for _, v := range []string{"-1", "NaN", "+Inf", "-Inf", "1e300", "9223372037"} {
			r := AnnotationReader{Annotation: NewAnnotation(TagConsistent, "drainTimeout", v), op: p.Index}
			_, err := r.Seconds("drainTimeout", 0)
			assert.True(t, errors.Is(err, ErrMalformedAnnotation), "value %q", v)
			assert.True(t, errors.Is(err, ErrDurationRange), "value %q", v)
		}
	})

	t.Run("malformed value", func(t *testing.T) {
		_, err := r.Int("trigger", 0)
		assert.True(t, errors.Is(err, ErrMalformedAnnotation))

		var me *MalformedAnnotationError
		assert.True(t, errors.As(err, &me))
		assert.Equal(t, p.Index, me.Operator)
		assert.Equal(t, "trigger", me.Key)
		assert.Equal(t, "operatorDriven", me.Value)

		_, err = r.Bool("enabled", false)
		assert.True(t, errors.Is(err, ErrMalformedAnnotation))
	})

	t.Run("set replaces", func(t *testing.T) {
		a := NewAnnotation("x", "k", "1")
		a.Set("k", "2")
		a.Set("j", "3")
		v, _ := a.Get("k")
		assert.Equal(t, "2", v)
		assert.Equal(t, 2, len(a.Values))
	})
}
