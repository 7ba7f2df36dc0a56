package telemetry

import (
	"encoding/binary"
	"testing"

	"pmucore/channelid"
	"pmucore/store"
)

func TestStartClampsRate(t *testing.T) {
	var s Streamer
	s.Start(0)
	if s.periodMs != 100 {
		t.Fatalf("rate 0 should clamp to 10 Hz (period 100ms), got %d", s.periodMs)
	}

	s.Start(500)
	if s.periodMs != 10 {
		t.Fatalf("rate >100 should clamp to 100 Hz (period 10ms), got %d", s.periodMs)
	}
}

func TestDueRespectsPeriodAndActive(t *testing.T) {
	var s Streamer
	if s.Due(0) {
		t.Fatalf("inactive streamer should never be due")
	}

	s.Start(10) // 100ms period; no frame emitted yet, so last emit is 0
	if !s.Due(100) {
		t.Fatalf("expected due on first check after Start")
	}
	st := store.NewStore()
	s.Snapshot(st, 100)

	if s.Due(150) {
		t.Fatalf("should not be due before period elapses")
	}
	if !s.Due(200) {
		t.Fatalf("should be due once period has elapsed")
	}
}

func TestStopDisarmsStreaming(t *testing.T) {
	var s Streamer
	s.Start(10)
	s.Stop()
	if s.Due(1000) {
		t.Fatalf("stopped streamer should never be due")
	}
}

func TestSnapshotEncodesCounterAndTimestamp(t *testing.T) {
	var s Streamer
	s.Start(10)
	st := store.NewStore()

	f := s.Snapshot(st, 42)
	b := f.Bytes()
	if binary.LittleEndian.Uint32(b[0:4]) != 1 {
		t.Fatalf("first snapshot counter should be 1")
	}
	if binary.LittleEndian.Uint32(b[4:8]) != 42 {
		t.Fatalf("timestamp field should echo nowMs")
	}

	f2 := s.Snapshot(st, 100)
	if binary.LittleEndian.Uint32(f2.Bytes()[0:4]) != 2 {
		t.Fatalf("counter should increment across snapshots")
	}
}

func TestSnapshotReflectsOutputAndAnalogChannels(t *testing.T) {
	var s Streamer
	s.Start(10)
	st := store.NewStore()
	st.Register(store.Channel{ID: channelid.OutputID(2), Direction: store.DirPhysicalOut, Format: store.FormatBoolean, Max: store.BoolTrue})
	st.UpdateValue(channelid.OutputID(2), store.BoolTrue)
	st.Register(store.Channel{ID: channelid.AnalogInID(0), Direction: store.DirPhysicalIn, Format: store.FormatSignedInt, Max: 4095})
	st.UpdateValue(channelid.AnalogInID(0), 2048)

	f := s.Snapshot(st, 0)
	b := f.Bytes()

	outputsOff := 8
	if b[outputsOff] != 1<<2 {
		t.Fatalf("output bit 2 not set in telemetry frame: %08b", b[outputsOff])
	}

	analogOff := outputsOff + numOutputBytes
	got := binary.LittleEndian.Uint16(b[analogOff : analogOff+2])
	if got != 2048 {
		t.Fatalf("analog[0] = %d, want 2048", got)
	}
}
