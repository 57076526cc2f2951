// Package engine bundles the process-wide state the design notes call
// for gathering into a constructed-at-startup struct rather than leaving
// as globals: configuration, the global scope, the symbol table, the
// audio driver, and the MIDI state vector. Only the MIDI state array
// remains a raw shared value the audio thread reads lock-free; everything
// else hangs off Engine. Grounded on the teacher's lib/runtime/runtime.go
// Runtime{...} struct shape.
package engine

import (
	"context"
	"io"
	"log"

	"github.com/sapf-lang/sapf/internal/config"
	"github.com/sapf-lang/sapf/internal/persist"
	"github.com/sapf-lang/sapf/pkg/audio"
	"github.com/sapf-lang/sapf/pkg/bytecode"
	"github.com/sapf-lang/sapf/pkg/cell"
	"github.com/sapf-lang/sapf/pkg/cursor"
	"github.com/sapf-lang/sapf/pkg/interp"
	"github.com/sapf-lang/sapf/pkg/midi"
	"github.com/sapf-lang/sapf/pkg/slist"
	"github.com/sapf-lang/sapf/pkg/symbol"
	"github.com/sapf-lang/sapf/pkg/table"
	"github.com/sapf-lang/sapf/pkg/value"
	"github.com/sapf-lang/sapf/pkg/varray"
	"github.com/sapf-lang/sapf/pkg/verr"
)

// Engine is the top-level, single-owner container the CLI driver
// constructs once and passes by reference to every subsystem.
type Engine struct {
	Config  config.Config
	Symbols *symbol.Table
	Globals *table.GForm
	Audio   *audio.Driver
	MIDI    *midi.State
	Cache   *bytecode.Store
	Log     *log.Logger

	logCloser io.Closer
}

// New constructs an Engine from cfg, wiring the symbol table, the global
// scope, the audio driver, the MIDI state vector, the compiled-function
// cache, and the log file, per the design notes' "bundle them into an
// Engine struct constructed at startup" guidance.
func New(cfg config.Config) (*Engine, error) {
	logger, closer, err := persist.Logger(cfg.LogFile)
	if err != nil {
		return nil, err
	}
	store, err := bytecode.NewStore(cfg.CacheDir)
	if err != nil {
		closer.Close()
		return nil, err
	}
	e := &Engine{
		Config:    cfg,
		Symbols:   symbol.NewTable(),
		Globals:   table.NewGForm(nil),
		Audio:     audio.NewDriver(logger),
		MIDI:      midi.NewState(16, 16),
		Cache:     store,
		Log:       logger,
		logCloser: closer,
	}
	e.Globals.Retain()
	interp.Install(e.Globals, e.Symbols, e.MIDI)
	return e, nil
}

// NewThread creates an interpreter Thread bound to this Engine's global
// scope and sample rate, per §3's "each audio player has its own"
// Thread policy.
func (e *Engine) NewThread() *interp.Thread {
	return interp.NewThread(e.Config.SampleRate, e.Globals, e.Symbols)
}

// Play runs fn to completion on a fresh Thread and hands each resulting
// channel to the audio driver, per §6.2's play contract: a lazy ZList
// becomes a ZIn pulled block by block, a bare scalar becomes a
// constant-valued channel, a ZPlug becomes a live-swappable channel a
// later "replug" call can retarget while the player is running, and a
// finite VList of channels (a *varray.Array or an ElemV *slist.List)
// expands into one channel per element rather than becoming one broken
// channel. An indefinite VList or a channel count over Config.ChannelCap
// (audio.MaxChannels when that is <= 0) fails outright instead of playing a silently
// truncated result. This is the production realization of spec.md §2's
// control-flow summary — "Applying the Fun on a Thread runs the
// interpreter ... Values that are lazy lists are then ... handed to the
// audio driver."
func (e *Engine) Play(fn *interp.Fun) (*audio.Player, error) {
	th := e.NewThread()
	results, err := th.Run(fn)
	if err != nil {
		return nil, err
	}
	leaves, err := expandChannels(th, results)
	if err != nil {
		return nil, err
	}
	channelCap := e.Config.ChannelCap
	if channelCap <= 0 {
		channelCap = audio.MaxChannels
	}
	if len(leaves) > channelCap {
		for _, l := range leaves {
			l.Release()
		}
		return nil, verr.OutOfRangef("play: %d channels exceeds the %d-channel cap", len(leaves), channelCap)
	}

	channels := make([]cursor.ZIn, 0, len(leaves))
	type plugged struct {
		index int
		zp    *cell.ZPlug
		seen  uint64
	}
	var plugs []plugged
	for i, r := range leaves {
		if zp, ok := r.Obj.(*cell.ZPlug); ok {
			zin, seen := zp.Get()
			channels = append(channels, zin)
			plugs = append(plugs, plugged{index: i, zp: zp, seen: seen})
		} else {
			channels = append(channels, cursor.FromV(r))
		}
		r.Release()
	}
	p := audio.NewPlayer(th, channels)
	for _, pl := range plugs {
		p.Plug(pl.index, pl.zp, pl.seen)
	}
	e.Audio.Play(p)
	return p, nil
}

// expandChannels flattens fn's leaf results into one owned V per output
// channel. Each leaf that is a multi-channel container (see
// multiChannelElems) is replaced by its elements; everything else already
// counts as exactly one channel. On error, every result not yet consumed
// (including the one that failed) and every leaf already collected is
// released before returning, so a failed play never leaks the run's
// results.
func expandChannels(th value.Thread, results []value.V) ([]value.V, error) {
	leaves := make([]value.V, 0, len(results))
	for i, r := range results {
		multi, err := multiChannelElems(th, r)
		if err != nil {
			r.Release()
			for _, rest := range results[i+1:] {
				rest.Release()
			}
			for _, l := range leaves {
				l.Release()
			}
			return nil, err
		}
		if multi != nil {
			leaves = append(leaves, multi...)
			r.Release()
			continue
		}
		leaves = append(leaves, r)
	}
	return leaves, nil
}

// multiChannelElems reports whether v is a §6.2 "VList of channels" —
// a *varray.Array, or a finite *slist.List of ElemV kind — and if so
// returns one owned V per element. It returns (nil, nil) for anything
// else (a scalar, a ZList, a ZPlug), which the caller treats as a single
// channel. An indefinite ElemV List fails rather than silently playing a
// truncated prefix.
func multiChannelElems(th value.Thread, v value.V) ([]value.V, error) {
	switch obj := v.Obj.(type) {
	case *varray.Array:
		elems := obj.Slice()
		out := make([]value.V, len(elems))
		for i, e := range elems {
			out[i] = e.Retain()
		}
		return out, nil
	case *slist.List:
		if obj.ElemKind() != slist.ElemV {
			return nil, nil
		}
		if !obj.Finite() {
			return nil, verr.New(verr.IndefiniteOperation, "play: indefinite VList of channels")
		}
		n, err := obj.Length(th)
		if err != nil {
			return nil, err
		}
		packed, err := obj.Pack(th, n)
		if err != nil {
			return nil, err
		}
		packedV := value.FromObject(packed)
		elems := packed.HeadV()
		out := make([]value.V, len(elems))
		for i, e := range elems {
			out[i] = e.Retain()
		}
		packedV.Release()
		return out, nil
	default:
		return nil, nil
	}
}

// Shutdown stops all audio players and closes the log file. It is
// synchronous, per §5's "stopAll ... waits for the callback to return."
func (e *Engine) Shutdown(ctx context.Context) error {
	if err := e.Audio.StopAll(ctx); err != nil {
		return err
	}
	if e.logCloser != nil {
		return e.logCloser.Close()
	}
	return nil
}
