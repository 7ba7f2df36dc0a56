package enginecore

import (
	"pmucore/channelid"
	"pmucore/engineconf"
	"pmucore/store"
)

// Engine holds the active virtual-channel graph and its per-channel
// runtime state. It never allocates once Load has returned (spec §4.D,
// §8 property 3): Defs and State are fixed-capacity arrays sized from
// engineconf.MaxVirtual.
type Engine struct {
	st *store.Store

	defs  [engineconf.MaxVirtual]NodeDefEntry
	state [engineconf.MaxVirtual]nodeState
	count int
}

// NewEngine returns an Engine bound to st. st must outlive the Engine.
func NewEngine(st *store.Store) *Engine {
	return &Engine{st: st}
}

// Load replaces the active graph with defs, in definition order, and
// zeroes all per-channel runtime state (spec §9 Open Question #1).
// Load itself does not touch the channel store; the config decoder is
// responsible for registering the corresponding channels before or
// after calling Load — see cfgcodec.Decode, which does both atomically.
func (e *Engine) Load(defs []NodeDefEntry) {
	e.count = 0
	for i := range e.state {
		e.state[i] = nodeState{}
	}
	n := len(defs)
	if n > engineconf.MaxVirtual {
		n = engineconf.MaxVirtual
	}
	copy(e.defs[:n], defs[:n])
	e.count = n
}

// Reset clears the graph and all runtime state without requiring a new
// Load (used by CLEAR_CONFIG).
func (e *Engine) Reset() {
	e.count = 0
	for i := range e.state {
		e.state[i] = nodeState{}
	}
}

// Count returns the number of virtual channels currently loaded.
func (e *Engine) Count() int { return e.count }

// Tick evaluates every virtual channel exactly once, in definition
// order, and writes each result back into the store (spec §4.D). nowMs
// is the monotonic tick timestamp from the A-layer clock.
func (e *Engine) Tick(nowMs uint32) {
	for i := 0; i < e.count; i++ {
		def := &e.defs[i]
		st := &e.state[i]
		switch def.Kind {
		case KindLogic:
			e.evalLogic(def, st, nowMs)
		case KindMath:
			e.evalMath(def, st)
		case KindTimer:
			e.evalTimer(def, st, nowMs)
		case KindFilter:
			e.evalFilter(def, st)
		case KindSwitch:
			e.evalSwitch(def, st)
		}
	}
}

// writeBool writes a boolean result (0/1000) to id, a no-op if id is
// channelid.None (spec §4.D: failures never surface, missing refs
// become dead writes).
func (e *Engine) writeBool(id channelid.ID, v bool) {
	if id == channelid.None {
		return
	}
	val := store.BoolFalse
	if v {
		val = store.BoolTrue
	}
	e.st.UpdateValue(id, val)
}

// writeInt writes a scaled-int result to id.
func (e *Engine) writeInt(id channelid.ID, v int32) {
	if id == channelid.None {
		return
	}
	e.st.UpdateValue(id, v)
}

// readInt returns the current value of id (0 if unresolved).
func (e *Engine) readInt(id channelid.ID) int32 {
	return e.st.Value(id)
}

// readBool applies the "value > 0 => true" convention (spec §4.D).
func (e *Engine) readBool(id channelid.ID) bool {
	return e.readInt(id) > 0
}
