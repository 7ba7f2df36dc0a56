package cfgcodec

import (
	"testing"

	"pmucore/channelid"
	"pmucore/engineconf"
	"pmucore/enginecore"
	"pmucore/outputdriver"
	"pmucore/store"
)

func TestDecodeEncodeRoundTrip(t *testing.T) {
	defs := []Definition{
		{JSONID: 1, Name: "not_a", Kind: enginecore.KindLogic, Min: store.BoolFalse, Max: store.BoolTrue, Enabled: true,
			Logic: enginecore.LogicDef{Op: enginecore.LogicNot, InputA: channelid.AnalogInID(0)}},
		{JSONID: 2, Name: "scaled", Kind: enginecore.KindMath, Min: -1000, Max: 1000, Enabled: true,
			Math: enginecore.MathDef{Op: enginecore.MathAdd, NumInputs: 1, Inputs: [engineconf.MaxMathInputs]channelid.ID{0: channelid.AnalogInID(1)}, Constant: 5}},
	}
	bindings := []outputdriver.Binding{
		{NumPins: 1, Pins: [outputdriver.MaxPinsPerBinding]uint8{0: 0}, Source: 2},
	}

	blob := Encode(defs, bindings)

	st := store.NewStore()
	eng := enginecore.NewEngine(st)
	var table outputdriver.Table

	n, err := Decode(blob, st, eng, &table)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}
	if table.Len() != 1 {
		t.Fatalf("bindings = %d, want 1", table.Len())
	}

	ch, ok := st.Lookup(channelid.VirtualFirst)
	if !ok || ch.Name != "not_a" {
		t.Fatalf("first virtual channel not registered correctly: %+v ok=%v", ch, ok)
	}
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	st := store.NewStore()
	eng := enginecore.NewEngine(st)
	var table outputdriver.Table

	blob := []byte{FormatVersion + 1, 0, 0}
	if _, err := Decode(blob, st, eng, &table); err != ErrBadVersion {
		t.Fatalf("err = %v, want ErrBadVersion", err)
	}
}

func TestDecodeRejectsTruncatedBlob(t *testing.T) {
	st := store.NewStore()
	eng := enginecore.NewEngine(st)
	var table outputdriver.Table

	defs := []Definition{{JSONID: 1, Kind: enginecore.KindLogic, Logic: enginecore.LogicDef{Op: enginecore.LogicNot}}}
	blob := Encode(defs, nil)
	truncated := blob[:len(blob)-3]

	if _, err := Decode(truncated, st, eng, &table); err != ErrTruncated {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestDecodeRejectsBadTag(t *testing.T) {
	st := store.NewStore()
	eng := enginecore.NewEngine(st)
	var table outputdriver.Table

	blob := []byte{FormatVersion, 1, 0, 0xFF, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	if _, err := Decode(blob, st, eng, &table); err != ErrBadTag {
		t.Fatalf("err = %v, want ErrBadTag", err)
	}
}

func TestDecodeLastWriterWins(t *testing.T) {
	st := store.NewStore()
	eng := enginecore.NewEngine(st)
	var table outputdriver.Table

	defs := []Definition{
		{JSONID: 7, Name: "first", Kind: enginecore.KindLogic, Logic: enginecore.LogicDef{Op: enginecore.LogicNot}},
		{JSONID: 7, Name: "second", Kind: enginecore.KindLogic, Logic: enginecore.LogicDef{Op: enginecore.LogicNot}},
	}
	blob := Encode(defs, nil)

	n, err := Decode(blob, st, eng, &table)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != 1 {
		t.Fatalf("n = %d, want 1 (dedup to last record)", n)
	}
	ch, ok := st.Lookup(channelid.VirtualFirst)
	if !ok || ch.Name != "second" {
		t.Fatalf("expected last-writer-wins, got %+v ok=%v", ch, ok)
	}
}

func TestDecodeResolvesForwardReference(t *testing.T) {
	st := store.NewStore()
	st.Register(store.Channel{ID: channelid.AnalogInID(0), Direction: store.DirPhysicalIn, Format: store.FormatBoolean, Max: store.BoolTrue, Value: store.BoolTrue})
	eng := enginecore.NewEngine(st)
	var table outputdriver.Table

	defs := []Definition{
		{JSONID: 1, Name: "gate", Kind: enginecore.KindLogic,
			Logic: enginecore.LogicDef{Op: enginecore.LogicAnd, InputA: 2, InputB: channelid.AnalogInID(0)}},
		{JSONID: 2, Name: "upstream", Kind: enginecore.KindLogic,
			Logic: enginecore.LogicDef{Op: enginecore.LogicNot, InputA: channelid.AnalogInID(1)}},
	}
	blob := Encode(defs, nil)

	if _, err := Decode(blob, st, eng, &table); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// jsonID 1 allocates VirtualFirst, jsonID 2 allocates VirtualFirst+1;
	// the forward reference to jsonID 2 from jsonID 1's InputA must
	// resolve to that same runtime id, not channelid.None.
	// "gate" is evaluated before "upstream", so it sees upstream's true
	// output one tick late.
	eng.Tick(0)
	eng.Tick(1)
	if got := st.Value(channelid.VirtualFirst); got != store.BoolTrue {
		t.Fatalf("gate = %d, want %d: InputA did not resolve to jsonID 2's channel", got, store.BoolTrue)
	}
}

func TestDecodeRejectsTooManyChannels(t *testing.T) {
	st := store.NewStore()
	eng := enginecore.NewEngine(st)
	var table outputdriver.Table

	defs := make([]Definition, 197)
	for i := range defs {
		defs[i] = Definition{JSONID: uint16(i), Kind: enginecore.KindLogic, Logic: enginecore.LogicDef{Op: enginecore.LogicNot}}
	}
	blob := Encode(defs, nil)

	if _, err := Decode(blob, st, eng, &table); err != ErrTooManyChannels {
		t.Fatalf("err = %v, want ErrTooManyChannels", err)
	}
}

func TestDecodeLeavesPriorGraphOnError(t *testing.T) {
	st := store.NewStore()
	eng := enginecore.NewEngine(st)
	var table outputdriver.Table

	good := Encode([]Definition{
		{JSONID: 1, Name: "keep", Kind: enginecore.KindLogic, Logic: enginecore.LogicDef{Op: enginecore.LogicNot}},
	}, nil)
	if _, err := Decode(good, st, eng, &table); err != nil {
		t.Fatalf("initial decode: %v", err)
	}

	bad := []byte{FormatVersion + 1}
	if _, err := Decode(bad, st, eng, &table); err == nil {
		t.Fatalf("expected bad blob to be rejected")
	}

	ch, ok := st.Lookup(channelid.VirtualFirst)
	if !ok || ch.Name != "keep" {
		t.Fatalf("prior graph was mutated by a rejected decode: %+v ok=%v", ch, ok)
	}
}
