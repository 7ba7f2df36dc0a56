// Package telemetry implements the telemetry streamer (spec §4.H): at
// a host-selected rate, snapshots the store into a fixed-layout binary
// frame and hands it to the wire codec.
package telemetry

import (
	"encoding/binary"

	"pmucore/channelid"
	"pmucore/engineconf"
	"pmucore/store"
)

const (
	numOutputBytes = 30
	numAnalogSlots = 20
	frameSize      = 4 + 4 + numOutputBytes + numAnalogSlots*2 + 1 + 4 + 2 +
		engineconf.MaxTelemetryVirtualChannels*(2+4)
)

// Streamer tracks the monotonically increasing emission counter and
// the active/period/last-emit state a START_STREAM/STOP_STREAM pair
// mutates (spec §4.G state: "stream-active flag, stream period, stream
// counter").
type Streamer struct {
	active    bool
	periodMs  uint32
	lastEmit  uint32
	counter   uint32
	bootMs    uint32
	bootKnown bool
}

// Start arms streaming at rateHz, clamped 1..100 (rate 0 is treated as
// 10 Hz per spec §8 property 10).
func (s *Streamer) Start(rateHz uint16) {
	switch {
	case rateHz == 0:
		rateHz = 10
	case rateHz > 100:
		rateHz = 100
	}
	s.periodMs = 1000 / uint32(rateHz)
	s.active = true
}

// Stop disarms streaming.
func (s *Streamer) Stop() { s.active = false }

// Active reports whether streaming is currently armed.
func (s *Streamer) Active() bool { return s.active }

// Due reports whether a frame should be emitted now (spec §4.H:
// "emit whenever (now - last_emit) >= period and stream is active").
func (s *Streamer) Due(nowMs uint32) bool {
	if !s.bootKnown {
		s.bootMs = nowMs
		s.bootKnown = true
	}
	return s.active && nowMs-s.lastEmit >= s.periodMs
}

// Frame is one fixed-layout telemetry packet (little-endian throughout,
// spec §6).
type Frame struct {
	buf [frameSize]byte
	n   int
}

// Bytes returns the encoded frame.
func (f *Frame) Bytes() []byte { return f.buf[:f.n] }

// Snapshot builds a Frame from st's current values, advances the
// emission counter, and records nowMs as the last-emit time. Call this
// only when Due reported true.
func (s *Streamer) Snapshot(st *store.Store, nowMs uint32) Frame {
	s.lastEmit = nowMs
	s.counter++

	var f Frame
	w := f.buf[:0]

	w = appendU32(w, s.counter)
	w = appendU32(w, nowMs)

	numOutputs := int(channelid.OutputLast - channelid.OutputFirst + 1)
	if numOutputs > numOutputBytes*8 {
		numOutputs = numOutputBytes * 8
	}
	var outputBits [numOutputBytes]byte
	for i := 0; i < numOutputs; i++ {
		ch, ok := st.Lookup(channelid.OutputID(uint8(i)))
		if ok && ch.Value > 0 {
			outputBits[i/8] |= 1 << (uint(i) % 8)
		}
	}
	w = append(w, outputBits[:]...)

	var analog [numAnalogSlots]uint16
	for i := 0; i < numAnalogSlots; i++ {
		ch, ok := st.Lookup(channelid.AnalogInID(uint8(i)))
		if ok {
			analog[i] = uint16(ch.Value)
		}
	}
	for _, v := range analog {
		w = appendU16(w, v)
	}

	numDigital := int(channelid.DigitalInLast - channelid.DigitalInFirst + 1)
	if numDigital > 8 {
		numDigital = 8
	}
	var digitalBits byte
	for i := 0; i < numDigital; i++ {
		ch, ok := st.Lookup(channelid.DigitalInID(uint8(i)))
		if ok && ch.Value > 0 {
			digitalBits |= 1 << uint(i)
		}
	}
	w = append(w, digitalBits)

	uptimeSec := uint32(0)
	if s.bootKnown && nowMs >= s.bootMs {
		uptimeSec = (nowMs - s.bootMs) / 1000
	}
	w = appendU32(w, uptimeSec)

	w = appendU16(w, uint16(st.Len()))

	sent := 0
	st.IterateOrdered(func(ch *store.Channel) {
		if sent >= engineconf.MaxTelemetryVirtualChannels {
			return
		}
		if ch.Direction != store.DirVirtual {
			return
		}
		w = appendU16(w, uint16(ch.ID))
		w = appendU32(w, uint32(ch.Value))
		sent++
	})
	for ; sent < engineconf.MaxTelemetryVirtualChannels; sent++ {
		w = appendU16(w, 0)
		w = appendU32(w, 0)
	}

	f.n = len(w)
	return f
}

func appendU16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}
