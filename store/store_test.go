package store

import (
	"testing"

	"pmucore/channelid"
)

func TestRegisterAndLookup(t *testing.T) {
	s := NewStore()
	ok := s.Register(Channel{ID: channelid.VirtualFirst, Name: "foo", Format: FormatScaledMilli, Min: -1000, Max: 1000})
	if !ok {
		t.Fatalf("register failed")
	}
	ch, ok := s.Lookup(channelid.VirtualFirst)
	if !ok {
		t.Fatalf("lookup failed")
	}
	if ch.Name != "foo" {
		t.Fatalf("name = %q", ch.Name)
	}
}

func TestRegisterClampsBooleanValue(t *testing.T) {
	s := NewStore()
	s.Register(Channel{ID: channelid.VirtualFirst, Format: FormatBoolean, Value: 500, Min: BoolFalse, Max: BoolTrue})
	ch, _ := s.Lookup(channelid.VirtualFirst)
	if ch.Value != BoolTrue {
		t.Fatalf("boolean value = %d, want snapped to BoolTrue", ch.Value)
	}
}

func TestUpdateValueClampsToRange(t *testing.T) {
	s := NewStore()
	s.Register(Channel{ID: channelid.VirtualFirst, Format: FormatScaledMilli, Min: 0, Max: 100})
	s.UpdateValue(channelid.VirtualFirst, 9999)
	if v := s.Value(channelid.VirtualFirst); v != 100 {
		t.Fatalf("value = %d, want clamped to 100", v)
	}
}

func TestValueOfUnresolvedIDIsZero(t *testing.T) {
	s := NewStore()
	if v := s.Value(channelid.None); v != 0 {
		t.Fatalf("value of None = %d, want 0", v)
	}
	if v := s.Value(channelid.VirtualFirst); v != 0 {
		t.Fatalf("value of unregistered id = %d, want 0", v)
	}
}

func TestClearVirtualKeepsPhysicalOnly(t *testing.T) {
	s := NewStore()
	s.Register(Channel{ID: channelid.AnalogInID(0), Direction: DirPhysicalIn, Format: FormatSignedInt, Max: 4095})
	s.Register(Channel{ID: channelid.VirtualFirst, Direction: DirVirtual, Format: FormatScaledMilli, Max: 1000})
	s.Register(Channel{ID: channelid.VirtualFirst + 1, Direction: DirVirtual, Format: FormatScaledMilli, Max: 1000})

	s.ClearVirtual()

	if s.Len() != 1 {
		t.Fatalf("len after ClearVirtual = %d, want 1", s.Len())
	}
	if _, ok := s.Lookup(channelid.AnalogInID(0)); !ok {
		t.Fatalf("physical channel was removed by ClearVirtual")
	}
	if _, ok := s.Lookup(channelid.VirtualFirst); ok {
		t.Fatalf("virtual channel survived ClearVirtual")
	}
}

func TestRegisterLastWriterWins(t *testing.T) {
	s := NewStore()
	s.Register(Channel{ID: channelid.VirtualFirst, Name: "first", Format: FormatScaledMilli, Max: 1000})
	s.Register(Channel{ID: channelid.VirtualFirst, Name: "second", Format: FormatScaledMilli, Max: 1000})
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1 (replace, not append)", s.Len())
	}
	ch, _ := s.Lookup(channelid.VirtualFirst)
	if ch.Name != "second" {
		t.Fatalf("name = %q, want last-writer-wins", ch.Name)
	}
}

func TestIterateOrderedPreservesRegistrationOrder(t *testing.T) {
	s := NewStore()
	ids := []channelid.ID{channelid.VirtualFirst + 2, channelid.VirtualFirst, channelid.VirtualFirst + 1}
	for _, id := range ids {
		s.Register(Channel{ID: id, Format: FormatScaledMilli, Max: 1000})
	}
	var got []channelid.ID
	s.IterateOrdered(func(ch *Channel) { got = append(got, ch.ID) })
	for i, id := range ids {
		if got[i] != id {
			t.Fatalf("order[%d] = %d, want %d", i, got[i], id)
		}
	}
}
