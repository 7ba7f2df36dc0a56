// Package outputdriver implements the output driver: for every
// configured power-output binding, resolves the bound source channel's
// value into a pin state or PWM duty every tick, honoring manual
// override precedence (spec §4.E). Each binding carries soft-start and
// current/inrush protection parameters (Protection), but Drive does not
// pass them to the hardware adapter and applies none of them itself.
package outputdriver

import (
	"pmucore/channelid"
	"pmucore/engineconf"
	"pmucore/hwadapter"
	"pmucore/store"
)

// Protection carries the hardware-side policy parameters installed with
// a binding. The output driver does not interpret them, and no code
// hands them to the actuator: hwadapter.Adapter has no call that takes
// them, so soft-start ramping, inrush tolerance and retry behavior are
// not applied.
type Protection struct {
	CurrentLimitMilliA uint32
	InrushLimitMilliA  uint32
	InrushTimeMs       uint32
	RetryCount         uint8
	RetryForever       bool
	SoftStartMs        uint32
}

// MaxPinsPerBinding bounds how many physical output pin indices a single
// binding may drive in lock-step (spec §3: "one or more physical output
// pin indices").
const MaxPinsPerBinding = 4

// Binding is one configured power-output: one or more physical pins
// driven from a single source channel, with optional PWM and
// protection parameters (spec §3).
type Binding struct {
	Pins    [MaxPinsPerBinding]uint8
	NumPins uint8

	Source channelid.ID // channelid.None => "always-on", no source

	PWMEnable     bool
	FixedDutyPct  uint16 // 0..100, used when DutySource is None
	DutySource    channelid.ID
	PWMFrequency  uint32

	Protect Protection
}

// Table is the fixed-capacity collection of active bindings, replaced
// wholesale by the config decoder on every successful load (spec §4.C
// step 1: "Clear all virtual channels and all output bindings").
type Table struct {
	entries [engineconf.MaxOutputs]Binding
	count   int
}

// Clear empties the binding table.
func (t *Table) Clear() { t.count = 0 }

// Add appends b, reporting false if the table is full.
func (t *Table) Add(b Binding) bool {
	if t.count >= engineconf.MaxOutputs {
		return false
	}
	t.entries[t.count] = b
	t.count++
	return true
}

// Len returns the number of active bindings.
func (t *Table) Len() int { return t.count }

// Drive evaluates every binding against st and actuates hw. Step
// numbering follows spec §4.E exactly:
//
//  1. If the pin has an active manual override, skip it.
//  2. Resolve the source channel; if absent, leave the pin as-is.
//  3. active = value > 0.
//  4. If inactive, command OFF.
//  5. If active: PWM disabled -> ON; PWM enabled -> resolve duty and
//     command set_pwm.
//
// Bindings with no Source ("always-on") still honor manual override
// (spec §9 Open Question #3): the override check in step 1 never
// special-cases Source == channelid.None.
func (t *Table) Drive(st *store.Store, hw hwadapter.Adapter) {
	for i := 0; i < t.count; i++ {
		b := &t.entries[i]
		driveBinding(b, st, hw)
	}
}

func driveBinding(b *Binding, st *store.Store, hw hwadapter.Adapter) {
	for p := 0; p < int(b.NumPins); p++ {
		pin := b.Pins[p]
		if hw.HasOverride(pin) {
			continue
		}

		if b.Source == channelid.None {
			// Always-on binding with no source: resolves to "active" by
			// definition, still subject to PWM duty resolution below.
			driveActive(b, st, hw, pin)
			continue
		}

		ch, ok := st.Lookup(b.Source)
		if !ok {
			continue // leave pin in its current state
		}

		if ch.Value > 0 {
			driveActive(b, st, hw, pin)
		} else {
			hw.SetPin(pin, false)
			writeOutputState(st, pin, false)
		}
	}
}

func driveActive(b *Binding, st *store.Store, hw hwadapter.Adapter, pin uint8) {
	if !b.PWMEnable {
		hw.SetPin(pin, true)
		writeOutputState(st, pin, true)
		return
	}
	duty := resolveDutyPermille(b, st)
	hw.SetPWM(pin, duty)
	writeOutputState(st, pin, duty > 0)
}

// writeOutputState mirrors the driver's actuation decision into the
// physical output channel (spec §3: "physical output values reflect the
// engine's most recent decision"), which is what telemetry reads back.
func writeOutputState(st *store.Store, pin uint8, on bool) {
	v := store.BoolFalse
	if on {
		v = store.BoolTrue
	}
	st.UpdateValue(channelid.OutputID(pin), v)
}

// resolveDutyPermille returns the PWM duty in permille (0..1000),
// either from the fixed duty percentage or from a duty-source channel
// interpreted as permille x10 (spec §4.E step 5).
func resolveDutyPermille(b *Binding, st *store.Store) uint16 {
	if b.DutySource == channelid.None {
		d := uint32(b.FixedDutyPct) * 10
		if d > 1000 {
			d = 1000
		}
		return uint16(d)
	}
	v := st.Value(b.DutySource)
	d := v * 10
	if d < 0 {
		d = 0
	}
	if d > 1000 {
		d = 1000
	}
	return uint16(d)
}
