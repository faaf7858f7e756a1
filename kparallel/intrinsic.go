package kparallel

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/birdayz/streamc/kmodel"
	"github.com/birdayz/streamc/kregion"
)

var (
	reChannel     = regexp.MustCompile(`get(?:Local)?Channel\(\s*\)`)
	reMaxChannels = regexp.MustCompile(`get(?:Local)?MaxChannels\(\s*\)`)
	reAllChannels = regexp.MustCompile(`getAllChannels\(\s*\)`)
	reAllMax      = regexp.MustCompile(`getAllMaxChannels\(\s*\)`)
	reByChannel   = regexp.MustCompile(`byChannel\(\s*([A-Za-z_][A-Za-z0-9_]*)\s*,\s*([0-9]+)\s*\)`)
)

// Substitute replaces the channel intrinsics in s using chs, the enclosing
// channels innermost first:
//
//	getChannel(), getLocalChannel()          innermost channel, -1 outside regions
//	getMaxChannels(), getLocalMaxChannels()  innermost width, 0 outside regions
//	getAllChannels()                         [c0,c1,...] innermost first
//	getAllMaxChannels()                      [w0,w1,...] innermost first
//	byChannel(tag, i)                        tag_<channel of level i>
//
// byChannel with a level beyond the enclosing regions is left untouched.
// The result contains no intrinsics, so Substitute is idempotent.
func Substitute(s string, chs []kregion.Channel) string {
	if !strings.Contains(s, "(") {
		return s
	}
	channel, width := "-1", "0"
	if len(chs) > 0 {
		channel, width = strconv.Itoa(chs[0].Index), strconv.Itoa(chs[0].Width)
	}

	s = replaceCalls(reChannel, s, func([]string) string { return channel })
	s = replaceCalls(reMaxChannels, s, func([]string) string { return width })
	s = replaceCalls(reAllChannels, s, func([]string) string {
		return list(chs, func(c kregion.Channel) int { return c.Index })
	})
	s = replaceCalls(reAllMax, s, func([]string) string {
		return list(chs, func(c kregion.Channel) int { return c.Width })
	})
	return replaceCalls(reByChannel, s, func(sub []string) string {
		level, err := strconv.Atoi(sub[2])
		if err != nil || level >= len(chs) {
			return sub[0]
		}
		return sub[1] + "_" + strconv.Itoa(chs[level].Index)
	})
}

// replaceCalls replaces the matches of re in s that are not preceded by an
// identifier character.
func replaceCalls(re *regexp.Regexp, s string, repl func(sub []string) string) string {
	matches := re.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		if m[0] > 0 && isIdentByte(s[m[0]-1]) {
			continue
		}
		sub := make([]string, len(m)/2)
		for i := range sub {
			if m[2*i] >= 0 {
				sub[i] = s[m[2*i]:m[2*i+1]]
			}
		}
		b.WriteString(s[last:m[0]])
		b.WriteString(repl(sub))
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

func isIdentByte(c byte) bool {
	return c == '_' || '0' <= c && c <= '9' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

func list(chs []kregion.Channel, f func(kregion.Channel) int) string {
	vals := make([]string, len(chs))
	for i, c := range chs {
		vals[i] = strconv.Itoa(f(c))
	}
	return "[" + strings.Join(vals, ",") + "]"
}

func substituteAll(vals []string, chs []kregion.Channel) {
	for i, v := range vals {
		vals[i] = Substitute(v, chs)
	}
}

func substituteParams(params []kmodel.Parameter, chs []kregion.Channel) {
	for i := range params {
		params[i].Value = Substitute(params[i].Value, chs)
	}
}

// substituteIntrinsics rewrites the channel dependent strings of every
// operator once all channel indices are final.
func (e *expander) substituteIntrinsics() error {
	for _, op := range e.g.Operators() {
		chs, err := e.regions.Channels(e.g, op.Base().Index)
		if err != nil {
			return err
		}
		switch o := op.(type) {
		case *kmodel.PrimitiveOperator:
			o.Resources.HostPool = Substitute(o.Resources.HostPool, chs)
			substituteAll(o.Resources.HostTags, chs)
			substituteAll(o.Resources.Colocation, chs)
			substituteAll(o.Resources.Exlocation, chs)
			substituteParams(o.Parameters, chs)
		case *kmodel.ExportOperator:
			o.StreamName = Substitute(o.StreamName, chs)
			substituteParams(o.Properties, chs)
		case *kmodel.ImportOperator:
			o.Subscription = Substitute(o.Subscription, chs)
			o.Filter = Substitute(o.Filter, chs)
			o.ApplicationName = Substitute(o.ApplicationName, chs)
			o.StreamName = Substitute(o.StreamName, chs)
		}
	}
	return nil
}
