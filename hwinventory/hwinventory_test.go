package hwinventory

import (
	"testing"

	"pmucore/channelid"
	"pmucore/store"
)

const sampleInventory = `{
	"digital": [{"index": 0, "name": "door_switch"}, {"index": 1, "name": "ignition"}],
	"analog":  [{"index": 0, "name": "battery_voltage"}],
	"outputs": [{"index": 0, "name": "main_relay"}]
}`

func TestDecodeParsesSlots(t *testing.T) {
	cfg, err := Decode([]byte(sampleInventory))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cfg.Digital) != 2 || len(cfg.Analog) != 1 || len(cfg.Outputs) != 1 {
		t.Fatalf("unexpected slot counts: %+v", cfg)
	}
	if cfg.Digital[1].Name != "ignition" {
		t.Fatalf("digital[1].Name = %q", cfg.Digital[1].Name)
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Fatalf("expected an error decoding malformed input")
	}
}

func TestRegisterInstallsPhysicalChannels(t *testing.T) {
	cfg, err := Decode([]byte(sampleInventory))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	st := store.NewStore()
	digital, analog, outputs := cfg.Register(st)
	if digital != 2 || analog != 1 || outputs != 1 {
		t.Fatalf("register counts = %d,%d,%d", digital, analog, outputs)
	}

	ch, ok := st.Lookup(channelid.DigitalInID(0))
	if !ok || ch.Name != "door_switch" || ch.Direction != store.DirPhysicalIn {
		t.Fatalf("digital[0] not registered correctly: %+v ok=%v", ch, ok)
	}
}

func TestRegisterSkipsOutOfRangeIndex(t *testing.T) {
	cfg := Config{Digital: []Slot{{Index: 255, Name: "bogus"}}}
	st := store.NewStore()
	digital, _, _ := cfg.Register(st)
	if digital != 0 {
		t.Fatalf("expected out-of-range digital slot to be skipped, got %d registered", digital)
	}
}

func TestSampleInputsPushesLiveReadings(t *testing.T) {
	cfg, err := Decode([]byte(sampleInventory))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	st := store.NewStore()
	cfg.Register(st)

	cfg.SampleInputs(st, func(class store.Class, index uint8) int32 {
		if class == store.ClassInputSwitch && index == 1 {
			return store.BoolTrue
		}
		return 0
	})

	if st.Value(channelid.DigitalInID(1)) != store.BoolTrue {
		t.Fatalf("expected ignition channel to reflect the sampled reading")
	}
	if st.Value(channelid.DigitalInID(0)) != 0 {
		t.Fatalf("expected door_switch channel to remain 0")
	}
}
