package kmodel

import (
	"math"
	"strconv"
	"time"
)

// Well known annotation tags.
const (
	// TagParallel marks the root of a parallel region.
	TagParallel = "parallel"
	// TagConsistent configures the consistent region started by an operator.
	TagConsistent = "consistent"
	// TagConsistentRegionEntry is attached to every member of a consistent region.
	TagConsistentRegionEntry = "consistentRegionEntry"
	// TagThreading carries threading directives that are passed through.
	TagThreading = "threading"
)

// KeyValue is a single annotation entry.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Annotation is a tagged, ordered key/value bag attached to an operator.
type Annotation struct {
	Tag    string     `json:"tag"`
	Values []KeyValue `json:"values,omitempty"`
}

// NewAnnotation creates an annotation from alternating key/value strings.
// A trailing key without value is ignored.
func NewAnnotation(tag string, kv ...string) Annotation {
	a := Annotation{Tag: tag, Values: make([]KeyValue, 0, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		a.Values = append(a.Values, KeyValue{Key: kv[i], Value: kv[i+1]})
	}
	return a
}

// Get returns the first value stored under key.
func (a Annotation) Get(key string) (string, bool) {
	for _, kv := range a.Values {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Set replaces the value stored under key, or appends it.
func (a *Annotation) Set(key, value string) {
	for i := range a.Values {
		if a.Values[i].Key == key {
			a.Values[i].Value = value
			return
		}
	}
	a.Values = append(a.Values, KeyValue{Key: key, Value: value})
}

func (a Annotation) clone() Annotation {
	return Annotation{Tag: a.Tag, Values: append([]KeyValue(nil), a.Values...)}
}

// AnnotationReader parses typed values out of an operator's annotation and
// attributes parse failures to that operator.
type AnnotationReader struct {
	Annotation
	op OperatorIndex
}

// Text returns the raw value, or def if the key is absent.
func (r AnnotationReader) Text(key, def string) string {
	if v, ok := r.Get(key); ok {
		return v
	}
	return def
}

// Int parses an integer value, returning def if the key is absent.
func (r AnnotationReader) Int(key string, def int) (int, error) {
	v, ok := r.Get(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, r.malformed(key, v, err)
	}
	return n, nil
}

// Bool parses a boolean value, returning def if the key is absent.
func (r AnnotationReader) Bool(key string, def bool) (bool, error) {
	v, ok := r.Get(key)
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, r.malformed(key, v, err)
	}
	return b, nil
}

// maxSeconds is the largest number of seconds a time.Duration can hold.
const maxSeconds = float64(math.MaxInt64 / int64(time.Second))

// Seconds parses a non-negative value expressed in (fractional) seconds.
func (r AnnotationReader) Seconds(key string, def time.Duration) (time.Duration, error) {
	v, ok := r.Get(key)
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, r.malformed(key, v, err)
	}
	if math.IsNaN(f) || f < 0 || f > maxSeconds {
		return 0, r.malformed(key, v, ErrDurationRange)
	}
	return time.Duration(f * float64(time.Second)), nil
}

func (r AnnotationReader) malformed(key, value string, cause error) error {
	return &MalformedAnnotationError{
		Operator: r.op,
		Tag:      r.Tag,
		Key:      key,
		Value:    value,
		Cause:    cause,
	}
}
