// Package simhw is a deterministic, host-side hwadapter.Adapter used by
// every test in this module and by cmd/pmu-bench's loopback mode. It
// stands in for the dev-board factories the teacher wires up in
// cmd/boardtest, but models raw register-level I/O rather than the
// bus/capability layer those factories serve.
package simhw

import "pmucore/engineconf"

const (
	numDigitalInputs = 64
	numAnalogInputs  = 32
	numOutputs       = 64
)

// Sim is an in-memory hwadapter.Adapter for tests and bench tooling.
// Nothing here touches real hardware; NowMs is driven explicitly by
// Advance rather than wall-clock time, so tests are reproducible.
type Sim struct {
	nowMs uint32

	digital [numDigitalInputs]bool
	analog  [numAnalogInputs]uint16

	pinState [numOutputs]bool
	pinPWM   [numOutputs]uint16
	override [numOutputs]bool
	overrideVal [numOutputs]bool

	txBuf []byte
	rxBuf []byte
	txComplete bool

	flash [engineconf.MaxConfigBlob + 16]byte

	resetCount int
	feedCount  int
}

// New returns a Sim with all inputs low/zero and every output off.
func New() *Sim { return &Sim{txComplete: true} }

// Advance moves the simulated clock forward by ms milliseconds.
func (s *Sim) Advance(ms uint32) { s.nowMs += ms }

// NowMs implements hwadapter.Adapter.
func (s *Sim) NowMs() uint32 { return s.nowMs }

// SetDigital sets a digital input's sampled value, for test setup.
func (s *Sim) SetDigital(index uint8, v bool) { s.digital[index] = v }

// SetAnalog sets an analog input's sampled value, for test setup.
func (s *Sim) SetAnalog(index uint8, v uint16) { s.analog[index] = v }

func (s *Sim) ReadDigital(index uint8) bool   { return s.digital[index] }
func (s *Sim) ReadAnalog(index uint8) uint16 { return s.analog[index] }

// PinState reports the last commanded on/off state, for assertions.
func (s *Sim) PinState(index uint8) bool { return s.pinState[index] }

// PinPWM reports the last commanded PWM duty (permille), for assertions.
func (s *Sim) PinPWM(index uint8) uint16 { return s.pinPWM[index] }

func (s *Sim) SetPin(index uint8, state bool) {
	if s.override[index] {
		return
	}
	s.pinState[index] = state
}

func (s *Sim) SetPWM(index uint8, permille uint16) {
	if s.override[index] {
		return
	}
	s.pinPWM[index] = permille
	s.pinState[index] = permille > 0
}

func (s *Sim) SetOverride(index uint8, value bool) {
	s.override[index] = true
	s.overrideVal[index] = value
	s.pinState[index] = value
}

func (s *Sim) ClearOverride(index uint8) { s.override[index] = false }

func (s *Sim) HasOverride(index uint8) bool { return s.override[index] }

// --- UART, modeled as two byte queues (no actual serial wire). ---

// FeedRX enqueues bytes as if they had arrived over the wire; tests use
// this to simulate a byte arriving mid-TX (spec §8 property 12).
func (s *Sim) FeedRX(b ...byte) { s.rxBuf = append(s.rxBuf, b...) }

// TakeTX drains and returns everything written via UARTTxWrite so far.
func (s *Sim) TakeTX() []byte {
	b := s.txBuf
	s.txBuf = nil
	return b
}

func (s *Sim) UARTTxReady() bool { return true }

func (s *Sim) UARTTxWrite(b byte) {
	s.txBuf = append(s.txBuf, b)
	s.txComplete = false
}

func (s *Sim) UARTTxComplete() bool {
	done := s.txComplete
	s.txComplete = true
	return done
}

func (s *Sim) UARTRxReady() bool { return len(s.rxBuf) > 0 }

func (s *Sim) UARTRxRead() byte {
	if len(s.rxBuf) == 0 {
		return 0
	}
	b := s.rxBuf[0]
	s.rxBuf = s.rxBuf[1:]
	return b
}

// --- Flash: a single simulated sector backed by a byte array. ---

func (s *Sim) FlashEraseSector() error {
	for i := range s.flash {
		s.flash[i] = 0xFF
	}
	return nil
}

func (s *Sim) FlashWriteWord(addr uint32, word uint32) error {
	if int(addr)+4 > len(s.flash) {
		return errOOB
	}
	s.flash[addr] = byte(word)
	s.flash[addr+1] = byte(word >> 8)
	s.flash[addr+2] = byte(word >> 16)
	s.flash[addr+3] = byte(word >> 24)
	return nil
}

func (s *Sim) FlashRead(addr uint32, length int) []byte {
	if int(addr)+length > len(s.flash) {
		length = len(s.flash) - int(addr)
	}
	if length <= 0 {
		return nil
	}
	return s.flash[addr : int(addr)+length]
}

func (s *Sim) WatchdogFeed() { s.feedCount++ }

// FeedCount reports how many times WatchdogFeed was called, for tests
// asserting the "feed twice within ~1s" requirement (spec §5).
func (s *Sim) FeedCount() int { return s.feedCount }

func (s *Sim) SystemReset() { s.resetCount++ }

// ResetCount reports how many times SystemReset was called.
func (s *Sim) ResetCount() int { return s.resetCount }

type simError string

func (e simError) Error() string { return string(e) }

const errOOB = simError("simhw: flash write out of bounds")
