package kregion

import (
	"strconv"
	"strings"

	"github.com/birdayz/streamc/kmodel"
)

// Channel is the position of an operator within one enclosing parallel region.
type Channel struct {
	Region int
	Name   string
	Index  int
	Width  int
}

// Channels returns the parallel channels enclosing idx, innermost first. The
// operator itself counts as enclosed by the region it is the root of.
func (p *ParallelRegions) Channels(g *kmodel.Graph, idx kmodel.OperatorIndex) ([]Channel, error) {
	var out []Channel
	for cur := idx; cur != kmodel.NoOperator; {
		op, err := g.Resolve(cur)
		if err != nil {
			return nil, err
		}
		b := op.Base()
		if b.ParallelRegion >= 0 {
			r, err := p.Get(b.ParallelRegion)
			if err != nil {
				return nil, err
			}
			out = append(out, Channel{
				Region: r.Index,
				Name:   r.Name,
				Index:  b.LocalChannelIndex,
				Width:  r.Width,
			})
		}
		cur = b.Owner
	}
	return out, nil
}

// ChannelKey renders a channel path, innermost first, e.g. "[2][0]". It is
// empty outside of parallel regions.
func ChannelKey(chs []Channel) string {
	var sb strings.Builder
	for _, c := range chs {
		sb.WriteByte('[')
		sb.WriteString(strconv.Itoa(c.Index))
		sb.WriteByte(']')
	}
	return sb.String()
}
