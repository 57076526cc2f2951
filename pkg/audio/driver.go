// Package audio implements the fixed-block pull clock (C13): Driver
// bridges the interpreter-thread pull to the audio callback, registering
// players and rendering them into the host's output buffers each
// callback. Concurrent player finalization uses golang.org/x/sync/errgroup.
package audio

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sapf-lang/sapf/pkg/cell"
	"github.com/sapf-lang/sapf/pkg/cursor"
	"github.com/sapf-lang/sapf/pkg/value"
	"github.com/sapf-lang/sapf/pkg/verr"
)

// MaxChannels is the default channel cap of §6.2, used by Engine.Play
// when the running config's ChannelCap is unset (<= 0).
const MaxChannels = 32

// Player owns its own Thread, one ZIn per channel, and a done flag, per
// §4.13. Plugs is nil unless at least one channel was built from a
// pkg/cell.ZPlug leaf; Player holds it as a non-owning observer pointer,
// mirroring pkg/slist's Gen-to-List back-pointer convention — the script
// that called "zplug" owns the ZPlug's lifetime, not the Player.
type Player struct {
	ID       uuid.UUID
	Channels []cursor.ZIn
	Plugs    []*cell.ZPlug
	plugSeen []uint64
	done     []bool
	Thread   value.Thread
	Finalize func() // optional recording flush hook
}

func NewPlayer(th value.Thread, channels []cursor.ZIn) *Player {
	return &Player{
		ID:       uuid.New(),
		Channels: channels,
		done:     make([]bool, len(channels)),
		Thread:   th,
	}
}

// Plug marks channel c as backed by zp: each render callback compares
// zp's change counter against the last one observed and, on a mismatch,
// adopts zp's current cursor in place of whatever channel c was playing,
// per §4.8's "swap a running audio source's input live." seen is the
// change counter belonging to the cursor already installed in
// Channels[c] (typically from the same zp.Get() call that produced it),
// so the first render callback does not immediately re-fetch a cursor it
// already has.
func (p *Player) Plug(c int, zp *cell.ZPlug, seen uint64) {
	if p.Plugs == nil {
		p.Plugs = make([]*cell.ZPlug, len(p.Channels))
		p.plugSeen = make([]uint64, len(p.Channels))
	}
	if c < 0 || c >= len(p.Plugs) {
		return
	}
	p.Plugs[c] = zp
	p.plugSeen[c] = seen
}

func (p *Player) allDone() bool {
	for _, d := range p.done {
		if !d {
			return false
		}
	}
	return true
}

// Driver holds the registered players and renders them each callback.
// registerMu is taken only at register/remove boundaries and at the
// start of Render, per §4.13's ordering rule: the render loop itself
// does not hold it while calling user pulls.
type Driver struct {
	registerMu sync.Mutex
	players    []*Player
	scratch    []value.Z
	logger     *log.Logger
}

func NewDriver(logger *log.Logger) *Driver {
	return &Driver{logger: logger}
}

// Play registers a player. A player added while Render is executing is
// guaranteed not to be rendered in that callback, since Render snapshots
// its player list under registerMu before releasing it.
func (d *Driver) Play(p *Player) {
	d.registerMu.Lock()
	defer d.registerMu.Unlock()
	d.players = append(d.players, p)
}

func (d *Driver) removeLocked(p *Player) {
	for i, q := range d.players {
		if q == p {
			d.players = append(d.players[:i], d.players[i+1:]...)
			return
		}
	}
}

// Render is the audio backend callback of §6.2: render(outputs, channels,
// frames). buffers[c] holds frames samples for output channel c; Render
// zeroes every buffer itself before mixing players into it.
// Samples are typically in [-1,1] but the core does not clip, per §6.2.
func (d *Driver) Render(buffers [][]value.Z, frames int) {
	for _, buf := range buffers {
		for i := range buf {
			buf[i] = 0
		}
	}

	d.registerMu.Lock()
	snapshot := append([]*Player(nil), d.players...)
	d.registerMu.Unlock()

	if cap(d.scratch) < frames {
		d.scratch = make([]value.Z, frames)
	}
	scratch := d.scratch[:frames]

	var finished []*Player
	for _, p := range snapshot {
		d.renderPlayer(p, buffers, frames, scratch)
		if p.allDone() {
			finished = append(finished, p)
		}
	}

	if len(finished) > 0 {
		d.registerMu.Lock()
		for _, p := range finished {
			d.removeLocked(p)
		}
		d.registerMu.Unlock()
		for _, p := range finished {
			if p.Finalize != nil {
				p.Finalize()
			}
		}
	}
}

func (d *Driver) renderPlayer(p *Player, buffers [][]value.Z, frames int, scratch []value.Z) {
	defer func() {
		if r := recover(); r != nil {
			// The audio thread never lets an error kill the process
			// (§7): log and mark every channel done so the player is
			// dropped after this callback.
			if d.logger != nil {
				d.logger.Printf("audio: player %s panicked: %v", p.ID, r)
			}
			for i := range p.done {
				p.done[i] = true
			}
		}
	}()
	for c := 0; c < len(p.Channels) && c < len(buffers); c++ {
		if p.done[c] {
			continue
		}
		if p.Plugs != nil && p.Plugs[c] != nil {
			if cur := p.Plugs[c].Changes(); cur != p.plugSeen[c] {
				zin, seen := p.Plugs[c].Get()
				p.Channels[c].Release()
				p.Channels[c] = zin
				p.plugSeen[c] = seen
			}
		}
		n := frames
		done, err := p.Channels[c].Fill(p.Thread, &n, scratch, 1)
		if err != nil {
			if d.logger != nil {
				d.logger.Printf("audio: player %s channel %d: %v", p.ID, c, verr.KindOf(err))
			}
			p.done[c] = true
			continue
		}
		for i := 0; i < n; i++ {
			buffers[c][i] += scratch[i]
		}
		if done {
			p.done[c] = true
		}
	}
}

// StopAll finalizes every player (flushing any recording) and clears the
// registry, using errgroup to run finalizers concurrently, per §4.13's
// "releases the output device" contract.
func (d *Driver) StopAll(ctx context.Context) error {
	d.registerMu.Lock()
	players := d.players
	d.players = nil
	d.registerMu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, p := range players {
		p := p
		if p.Finalize == nil {
			continue
		}
		g.Go(func() error {
			p.Finalize()
			return nil
		})
	}
	return g.Wait()
}

// StopFinished removes only players flagged done, without finalizing the
// still-running ones.
func (d *Driver) StopFinished() {
	d.registerMu.Lock()
	defer d.registerMu.Unlock()
	kept := d.players[:0]
	for _, p := range d.players {
		if !p.allDone() {
			kept = append(kept, p)
		}
	}
	d.players = kept
}
