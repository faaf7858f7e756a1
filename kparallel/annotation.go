package kparallel

import (
	"errors"
	"strconv"
	"strings"

	"github.com/birdayz/streamc/kmodel"
)

const splitterKeyPrefix = "splitter."

var errMissingValue = errors.New("missing value")

// regionDecl is the parsed form of a @parallel annotation.
type regionDecl struct {
	name      string
	width     int
	splitters map[int]kmodel.SplitterConfig
}

// parseParallel reads the @parallel annotation of op:
//
//	@parallel(name=<region>, width=<n>, splitter.<port>=broadcast|roundRobin|hash:a,b)
//
// name defaults to the operator name. width is required.
func parseParallel(op kmodel.Operator) (regionDecl, bool, error) {
	b := op.Base()
	a, ok := b.Annotation(kmodel.TagParallel)
	if !ok {
		return regionDecl{}, false, nil
	}

	decl := regionDecl{
		name:      a.Text("name", b.Name),
		splitters: make(map[int]kmodel.SplitterConfig),
	}
	if _, ok := a.Get("width"); !ok {
		return regionDecl{}, true, malformed(b.Index, "width", "", errMissingValue)
	}
	width, err := a.Int("width", 0)
	if err != nil {
		return regionDecl{}, true, err
	}
	decl.width = width

	for _, kv := range a.Values {
		if !strings.HasPrefix(kv.Key, splitterKeyPrefix) {
			continue
		}
		port, err := strconv.Atoi(strings.TrimPrefix(kv.Key, splitterKeyPrefix))
		if err != nil || port < 0 {
			if err == nil {
				err = strconv.ErrRange
			}
			return regionDecl{}, true, malformed(b.Index, kv.Key, kv.Value, err)
		}
		cfg, err := parseSplitter(kv.Value)
		if err != nil {
			return regionDecl{}, true, malformed(b.Index, kv.Key, kv.Value, err)
		}
		decl.splitters[port] = cfg
	}
	return decl, true, nil
}

// parseSplitter parses "broadcast", "roundRobin" or "hash:attr,attr".
func parseSplitter(v string) (kmodel.SplitterConfig, error) {
	kind, attrs, _ := strings.Cut(v, ":")
	switch kmodel.SplitterKind(kind) {
	case kmodel.SplitBroadcast, kmodel.SplitRoundRobin:
		if attrs != "" {
			return kmodel.SplitterConfig{}, errors.New("splitter kind takes no attributes")
		}
		return kmodel.SplitterConfig{Kind: kmodel.SplitterKind(kind)}, nil
	case kmodel.SplitHash:
		var out []string
		for _, a := range strings.Split(attrs, ",") {
			if a = strings.TrimSpace(a); a != "" {
				out = append(out, a)
			}
		}
		if len(out) == 0 {
			return kmodel.SplitterConfig{}, errors.New("hash splitter needs at least one attribute")
		}
		return kmodel.SplitterConfig{Kind: kmodel.SplitHash, Attributes: out}, nil
	default:
		return kmodel.SplitterConfig{}, errors.New("unknown splitter kind " + strconv.Quote(kind))
	}
}

func malformed(op kmodel.OperatorIndex, key, value string, cause error) error {
	return &kmodel.MalformedAnnotationError{
		Operator: op,
		Tag:      kmodel.TagParallel,
		Key:      key,
		Value:    value,
		Cause:    cause,
	}
}
