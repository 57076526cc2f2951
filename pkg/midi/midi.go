// Package midi implements the MIDI backend contract of §6.3: a Router
// updates a per-(port,channel) State array that audio-rate code reads
// lock-free, per §5's "transient inconsistency is acceptable" clause for
// control values. Backend is the external collaborator interface; only
// the router and state vector are implemented here.
package midi

import "sync/atomic"

// Backend conforms to §6.3's platform MIDI contract. It is an external
// collaborator: this repo declares the interface and drives it, but does
// not implement a concrete platform backend (out of scope per spec.md
// §1).
type Backend interface {
	Initialize(numIn, numOut int) error
	Cleanup()
	Restart() error
	ListDevices() []DeviceInfo
	ConnectInput(uid string, portIndex int) error
	DisconnectInput(uid string, portIndex int) error
	SendMessage(port int, destIndex int, bytes []byte, latencySeconds float64) error
}

type DeviceInfo struct {
	UID  string
	Name string
	In   bool
	Out  bool
}

// ChannelState is one (port, channel)'s live control state. Fields beyond
// the spec's literal list (PitchBendRange, Program) are supplemented from
// the original engine's MidiRouter, which tracks them in the same record
// (see DESIGN.md).
type ChannelState struct {
	CC             [128]atomic.Int32
	NoteVelocity   [128]atomic.Int32
	NotePolytouch  [128]atomic.Int32
	PitchBend      atomic.Int32 // 14-bit signed, centered at 0
	PitchBendRange atomic.Int32
	ChannelPressure atomic.Int32
	Program        atomic.Int32
	LastNoteKey    atomic.Int32
	LastNoteVel    atomic.Int32
	KeysDown       atomic.Int32
}

// State is the process-wide, lock-free-read state vector of §5: the
// audio thread reads each field with an atomic load; MIDI ingestion is
// the sole writer per cell via atomic stores.
type State struct {
	ports [][]ChannelState // ports[port][channel]
}

func NewState(numPorts, numChannels int) *State {
	ports := make([][]ChannelState, numPorts)
	for i := range ports {
		ports[i] = make([]ChannelState, numChannels)
	}
	return &State{ports: ports}
}

func (s *State) Channel(port, channel int) *ChannelState {
	if port < 0 || port >= len(s.ports) {
		return nil
	}
	chans := s.ports[port]
	if channel < 0 || channel >= len(chans) {
		return nil
	}
	return &chans[channel]
}

// Router turns raw incoming MIDI bytes into updates against a State,
// per §6.3's (srcIndex, bytes, length) ingestion contract.
type Router struct {
	state *State
}

func NewRouter(state *State) *Router { return &Router{state: state} }

// Route decodes one MIDI message from srcIndex and applies it to the
// corresponding channel state. Malformed or unrecognized messages are
// silently ignored, matching a router's tolerant real-time ingestion
// discipline (dropping is preferable to blocking the MIDI thread).
func (r *Router) Route(srcIndex int, bytes []byte) {
	if len(bytes) == 0 {
		return
	}
	status := bytes[0]
	kind := status & 0xf0
	channel := int(status & 0x0f)
	cs := r.state.Channel(srcIndex, channel)
	if cs == nil {
		return
	}
	switch kind {
	case 0x80: // note off
		if len(bytes) < 2 {
			return
		}
		key := bytes[1]
		cs.NoteVelocity[key].Store(0)
		if cs.KeysDown.Load() > 0 {
			cs.KeysDown.Add(-1)
		}
	case 0x90: // note on
		if len(bytes) < 3 {
			return
		}
		key, vel := bytes[1], bytes[2]
		if vel == 0 {
			cs.NoteVelocity[key].Store(0)
			if cs.KeysDown.Load() > 0 {
				cs.KeysDown.Add(-1)
			}
			return
		}
		cs.NoteVelocity[key].Store(int32(vel))
		cs.LastNoteKey.Store(int32(key))
		cs.LastNoteVel.Store(int32(vel))
		cs.KeysDown.Add(1)
	case 0xa0: // polyphonic aftertouch
		if len(bytes) < 3 {
			return
		}
		cs.NotePolytouch[bytes[1]].Store(int32(bytes[2]))
	case 0xb0: // control change
		if len(bytes) < 3 {
			return
		}
		cs.CC[bytes[1]].Store(int32(bytes[2]))
	case 0xc0: // program change
		if len(bytes) < 2 {
			return
		}
		cs.Program.Store(int32(bytes[1]))
	case 0xd0: // channel pressure
		if len(bytes) < 2 {
			return
		}
		cs.ChannelPressure.Store(int32(bytes[1]))
	case 0xe0: // pitch bend
		if len(bytes) < 3 {
			return
		}
		raw := int32(bytes[1]) | int32(bytes[2])<<7 // 14-bit
		cs.PitchBend.Store(raw - 8192)
	}
}
