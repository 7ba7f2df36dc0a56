// Package store implements the channel store: a fixed-capacity keyed
// collection of typed channels indexed by channelid.ID (spec §4.B).
package store

import (
	"pmucore/channelid"
	"pmucore/engineconf"
)

// Class is the hardware class tag carried by every channel (spec §3).
type Class uint8

const (
	ClassInputSwitch Class = iota
	ClassInputAnalog
	ClassInputRotary
	ClassInputCAN
	ClassOutputPower
	ClassOutputFunction
	ClassOutputNumber
	ClassCalculated
)

// Direction distinguishes physical-in, physical-out and virtual channels.
type Direction uint8

const (
	DirPhysicalIn Direction = iota
	DirPhysicalOut
	DirVirtual
)

// Format is the channel's value representation (spec §3).
type Format uint8

const (
	FormatBoolean Format = iota
	FormatSignedInt
	FormatScaledMilli
)

// Boolean-format convention: false/true stored scaled by 1000 so
// arithmetic is uniform across formats (spec §3).
const (
	BoolFalse int32 = 0
	BoolTrue  int32 = 1000
)

// Channel is one entry in the store.
type Channel struct {
	ID            channelid.ID
	Name          string // bounded to engineconf.MaxNameLen at Register time
	Class         Class
	Direction     Direction
	Format        Format
	Value         int32
	Min           int32
	Max           int32
	Enabled       bool
	PhysicalIndex uint8 // meaningful only for Direction != DirVirtual
}

func boolValue(v int32) int32 {
	if v > 0 {
		return BoolTrue
	}
	return BoolFalse
}

func clamp(v, lo, hi int32) int32 {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Store is the fixed-capacity channel table. Its zero value is ready
// to use once Reset has been called (or immediately after NewStore).
type Store struct {
	entries [engineconf.MaxChannels]Channel
	order   [engineconf.MaxChannels]channelid.ID // registration order
	count   int
	byID    map[channelid.ID]int // index into entries/order; rebuilt on Reset and Register
}

// NewStore returns an empty, ready-to-use Store.
func NewStore() *Store {
	s := &Store{}
	s.Reset()
	return s
}

// Reset empties the store entirely (both physical and virtual channels).
// Used only at process boot; ClearVirtual is the per-reload operation.
func (s *Store) Reset() {
	s.count = 0
	s.byID = make(map[channelid.ID]int, engineconf.MaxChannels)
}

// ClearVirtual removes every channel with Direction == DirVirtual,
// compacting the table and preserving relative order of the survivors.
// Called by the config decoder before loading a new configuration
// (spec §4.C step 1) and by the CLEAR_CONFIG command handler.
func (s *Store) ClearVirtual() {
	kept := 0
	for i := 0; i < s.count; i++ {
		id := s.order[i]
		idx := s.byID[id]
		ch := s.entries[idx]
		if ch.Direction == DirVirtual {
			delete(s.byID, id)
			continue
		}
		s.order[kept] = id
		s.entries[kept] = ch
		s.byID[id] = kept
		kept++
	}
	s.count = kept
}

// Register inserts a new channel or replaces one with the same id
// (last-writer-wins, per spec §4.C). Returns false if the store is full
// and this is not a replacement.
func (s *Store) Register(ch Channel) bool {
	if len(ch.Name) > engineconf.MaxNameLen {
		ch.Name = ch.Name[:engineconf.MaxNameLen]
	}
	ch.Value = clamp(ch.Value, ch.Min, ch.Max)
	if ch.Format == FormatBoolean {
		ch.Value = boolValue(ch.Value)
	}
	if idx, ok := s.byID[ch.ID]; ok {
		s.entries[idx] = ch
		return true
	}
	if s.count >= engineconf.MaxChannels {
		return false
	}
	idx := s.count
	s.entries[idx] = ch
	s.order[idx] = ch.ID
	s.byID[ch.ID] = idx
	s.count++
	return true
}

// Lookup returns the channel for id.
func (s *Store) Lookup(id channelid.ID) (*Channel, bool) {
	idx, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return &s.entries[idx], true
}

// LookupByName resolves a channel by its human name. Decoder-time and
// diagnostic use only; the engine never calls this on the tick path.
func (s *Store) LookupByName(name string) (*Channel, bool) {
	for i := 0; i < s.count; i++ {
		if s.entries[i].Name == name {
			return &s.entries[i], true
		}
	}
	return nil, false
}

// Value returns the current value of id, or 0 if id is unresolved
// (spec §4.D: "missing references yield 0").
func (s *Store) Value(id channelid.ID) int32 {
	if id == channelid.None {
		return 0
	}
	ch, ok := s.Lookup(id)
	if !ok {
		return 0
	}
	return ch.Value
}

// UpdateValue writes a new value for id, clamping into [min,max] and,
// for boolean-format channels, snapping to {0,1000}. Reports whether id
// was found.
func (s *Store) UpdateValue(id channelid.ID, value int32) bool {
	idx, ok := s.byID[id]
	if !ok {
		return false
	}
	ch := &s.entries[idx]
	v := clamp(value, ch.Min, ch.Max)
	if ch.Format == FormatBoolean {
		v = boolValue(v)
	}
	ch.Value = v
	return true
}

// Len returns the number of registered channels.
func (s *Store) Len() int { return s.count }

// IterateEnabled calls fn for every enabled channel, in registration
// order. fn must not register or remove channels.
func (s *Store) IterateEnabled(fn func(*Channel)) {
	for i := 0; i < s.count; i++ {
		ch := &s.entries[i]
		if ch.Enabled {
			fn(ch)
		}
	}
}

// IterateOrdered calls fn for every channel in registration order,
// regardless of Enabled. Telemetry uses it to pick the virtual channels
// in its frame; the channel engine does not, it evaluates in its own
// definition order.
func (s *Store) IterateOrdered(fn func(*Channel)) {
	for i := 0; i < s.count; i++ {
		fn(&s.entries[i])
	}
}
