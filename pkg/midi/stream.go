package midi

import (
	"github.com/sapf-lang/sapf/pkg/slist"
	"github.com/sapf-lang/sapf/pkg/value"
)

const ccBlockSize = 64

// CCGen is the audio-rate read side of §6.3's state vector: it samples a
// live atomic field once per output sample and smooths the result
// through a LagFilter, so a value written between two audio blocks by
// Router.Route never appears as an audible step. Shaped after
// pkg/automap's eachOpGen — an infinite Gen that rebuilds itself as its
// own continuation each Pull.
type CCGen struct {
	read func() int32
	lag  *LagFilter
	list *slist.List
}

// NewCCStream builds an infinite lazy List that reads read (typically a
// ChannelState field's Load method) at audio rate, smoothed with a
// filter of the given lag time. This is the only production reader of
// ChannelState's atomic fields outside Router.Route's writer side.
func NewCCStream(read func() int32, lagSeconds, sampleRate value.Z) *slist.List {
	g := &CCGen{read: read, lag: NewLagFilter(lagSeconds, sampleRate)}
	return slist.FromGen(slist.ElemZ, g)
}

func (g *CCGen) SetList(l *slist.List) { g.list = l }
func (g *CCGen) Done() bool            { return false }
func (g *CCGen) Finite() bool          { return false }

func (g *CCGen) Pull(th value.Thread) error {
	out := make([]value.Z, ccBlockSize)
	for i := range out {
		out[i] = g.lag.Step(value.Z(g.read()))
	}
	cont := slist.FromGen(slist.ElemZ, &CCGen{read: g.read, lag: g.lag})
	g.list.FillZ(out, cont)
	return nil
}
