package outputdriver

import (
	"testing"

	"pmucore/channelid"
	"pmucore/hwadapter/simhw"
	"pmucore/store"
)

func TestDriveAlwaysOnBinding(t *testing.T) {
	var table Table
	table.Add(Binding{NumPins: 1, Pins: [MaxPinsPerBinding]uint8{0: 3}, Source: channelid.None})

	hw := simhw.New()
	st := store.NewStore()
	table.Drive(st, hw)

	if !hw.PinState(3) {
		t.Fatalf("expected always-on binding to drive pin high with no source")
	}
}

func TestDriveFollowsSourceValue(t *testing.T) {
	var table Table
	table.Add(Binding{NumPins: 1, Pins: [MaxPinsPerBinding]uint8{0: 1}, Source: channelid.VirtualFirst})

	hw := simhw.New()
	st := store.NewStore()
	st.Register(store.Channel{ID: channelid.VirtualFirst, Format: store.FormatBoolean, Max: store.BoolTrue})

	table.Drive(st, hw)
	if hw.PinState(1) {
		t.Fatalf("expected pin off while source is zero")
	}

	st.UpdateValue(channelid.VirtualFirst, store.BoolTrue)
	table.Drive(st, hw)
	if !hw.PinState(1) {
		t.Fatalf("expected pin on once source is nonzero")
	}
}

func TestDriveHonorsManualOverride(t *testing.T) {
	var table Table
	table.Add(Binding{NumPins: 1, Pins: [MaxPinsPerBinding]uint8{0: 2}, Source: channelid.None})

	hw := simhw.New()
	st := store.NewStore()
	hw.SetOverride(2, false)

	table.Drive(st, hw)
	if hw.PinState(2) {
		t.Fatalf("expected override to suppress the always-on drive")
	}
}

func TestDriveResolvesFixedDutyPercent(t *testing.T) {
	var table Table
	table.Add(Binding{
		NumPins: 1, Pins: [MaxPinsPerBinding]uint8{0: 0},
		Source: channelid.None, PWMEnable: true, FixedDutyPct: 50,
	})

	hw := simhw.New()
	st := store.NewStore()
	table.Drive(st, hw)

	if got := hw.PinPWM(0); got != 500 {
		t.Fatalf("pwm = %d, want 500 permille for 50%%", got)
	}
}

func TestDriveResolvesDutySourceClamped(t *testing.T) {
	var table Table
	table.Add(Binding{
		NumPins: 1, Pins: [MaxPinsPerBinding]uint8{0: 0},
		Source: channelid.None, PWMEnable: true, DutySource: channelid.VirtualFirst,
	})

	hw := simhw.New()
	st := store.NewStore()
	st.Register(store.Channel{ID: channelid.VirtualFirst, Format: store.FormatScaledMilli, Max: 9999})
	st.UpdateValue(channelid.VirtualFirst, 9999)

	table.Drive(st, hw)
	if got := hw.PinPWM(0); got != 1000 {
		t.Fatalf("pwm = %d, want clamped to 1000", got)
	}
}

func TestDriveLeavesPinWhenSourceUnresolved(t *testing.T) {
	var table Table
	table.Add(Binding{NumPins: 1, Pins: [MaxPinsPerBinding]uint8{0: 4}, Source: channelid.VirtualFirst + 50})

	hw := simhw.New()
	st := store.NewStore()
	hw.SetOverride(4, true) // drives pin 4 high, then released below
	hw.ClearOverride(4)

	table.Drive(st, hw)
	if !hw.PinState(4) {
		t.Fatalf("expected pin to be left untouched when source channel is absent")
	}
}
