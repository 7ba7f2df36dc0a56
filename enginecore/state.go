package enginecore

import "pmucore/engineconf"

// nodeState is the per-channel runtime state held out-of-line from the
// definition (spec §3: "previous input values for edge detection, latch
// state, delay timers, flash phase, filter windows, timer start time,
// and pulse counters"). It is zeroed on every fresh configuration load
// (spec §9 Open Question #1: the source zeroes unconditionally, and this
// implementation preserves that).
type nodeState struct {
	// Edge detection on the two generic logic inputs.
	prevA, prevB int32

	// SRLatch / Toggle / Hysteresis output latch.
	latch  bool
	seeded bool // latch default_state applied on first tick after load

	// Edge detection for Toggle/SRLatch control refs.
	prevSet, prevReset, prevToggle bool

	// Changed: holds true until changedHoldUntilMs.
	changedHoldUntilMs uint32
	changedArmed       bool

	// Flash: oscillation phase and deadline.
	flashOn          bool
	flashDeadlineMs  uint32
	flashGateWasLow  bool

	// Pulse: train state.
	pulseActive      bool
	pulseOn          bool
	pulsesRemaining  uint16
	pulseDeadlineMs  uint32
	prevPulseTrigger bool

	// EdgeRising/EdgeFalling: previous sampled input.
	prevEdgeInput int32

	// Timer.
	timerRunning   bool
	timerStartMs   uint32
	timerStoppedAt uint32 // elapsed value frozen while stopped
	prevStart      bool
	prevStop       bool

	// Filter ring (MovingAverage/MinWindow/MaxWindow/Median share the ring;
	// LowPass uses emaValue instead).
	ring      [engineconf.MaxFilterWindow]int32
	ringLen   uint8
	ringNext  uint8
	emaValue  int32
	emaInit   bool

	// Switch.
	position    int32
	positionSet bool
	prevUp      bool
	prevDown    bool
}
