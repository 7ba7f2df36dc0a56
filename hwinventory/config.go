package hwinventory

import (
	"pmucore/channelid"
	"pmucore/store"
)

// Slot names one physical index and the channel name it is registered
// under (spec §3: channels carry a human Name independent of the wire
// protocol's numeric ids).
type Slot struct {
	Index uint8  `json:"index"`
	Name  string `json:"name"`
}

// Config is the decoded board inventory: every physical input/output
// index this board exposes, by hardware class. Omitted slots are
// simply never registered — the engine treats an unregistered
// reference exactly like any other unresolved one (spec §4.D, "missing
// references yield 0").
type Config struct {
	Digital []Slot `json:"digital"`
	Analog  []Slot `json:"analog"`
	Outputs []Slot `json:"outputs"`
}

// Register installs every slot as a physical channel at its stable
// runtime id (spec §4.B: physical ids are "assigned once at boot from
// the hardware inventory and never change for the process lifetime").
// It returns the number of channels registered in each class.
func (c Config) Register(st *store.Store) (digital, analog, outputs int) {
	for _, s := range c.Digital {
		if s.Index > uint8(channelid.DigitalInLast-channelid.DigitalInFirst) {
			continue
		}
		st.Register(store.Channel{
			ID:            channelid.DigitalInID(s.Index),
			Name:          s.Name,
			Class:         store.ClassInputSwitch,
			Direction:     store.DirPhysicalIn,
			Format:        store.FormatBoolean,
			Min:           store.BoolFalse,
			Max:           store.BoolTrue,
			Enabled:       true,
			PhysicalIndex: s.Index,
		})
		digital++
	}
	for _, s := range c.Analog {
		if s.Index > uint8(channelid.AnalogInLast-channelid.AnalogInFirst) {
			continue
		}
		st.Register(store.Channel{
			ID:            channelid.AnalogInID(s.Index),
			Name:          s.Name,
			Class:         store.ClassInputAnalog,
			Direction:     store.DirPhysicalIn,
			Format:        store.FormatSignedInt,
			Min:           0,
			Max:           4095,
			Enabled:       true,
			PhysicalIndex: s.Index,
		})
		analog++
	}
	for _, s := range c.Outputs {
		if s.Index > uint8(channelid.OutputLast-channelid.OutputFirst) {
			continue
		}
		st.Register(store.Channel{
			ID:            channelid.OutputID(s.Index),
			Name:          s.Name,
			Class:         store.ClassOutputPower,
			Direction:     store.DirPhysicalOut,
			Format:        store.FormatBoolean,
			Min:           store.BoolFalse,
			Max:           store.BoolTrue,
			Enabled:       true,
			PhysicalIndex: s.Index,
		})
		outputs++
	}
	return digital, analog, outputs
}

// SampleInputs pushes every registered physical input's live hardware
// reading into the store, once per tick, ahead of engine evaluation
// (spec §4.A: the tick source samples inputs before the engine runs).
func (c Config) SampleInputs(st *store.Store, read func(class store.Class, index uint8) int32) {
	for _, s := range c.Digital {
		st.UpdateValue(channelid.DigitalInID(s.Index), read(store.ClassInputSwitch, s.Index))
	}
	for _, s := range c.Analog {
		st.UpdateValue(channelid.AnalogInID(s.Index), read(store.ClassInputAnalog, s.Index))
	}
}
