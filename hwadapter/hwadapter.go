// Package hwadapter defines the hardware adapter contract (spec §6):
// the only seam through which the core touches real registers. Two
// implementations exist: simhw (host-side, deterministic, used by every
// test in this module) and tinygohw (the real MCU, built under
// `tinygo`).
package hwadapter

// Adapter is the pluggable hardware contract so the core compiles for
// both production hardware and a dev board (spec §4.A, §6).
type Adapter interface {
	// NowMs returns a monotonic, non-decreasing millisecond clock.
	NowMs() uint32

	// ReadDigital samples a raw digital input.
	ReadDigital(index uint8) bool
	// ReadAnalog samples a raw 12-bit-right-aligned analog input.
	ReadAnalog(index uint8) uint16

	// SetPin commands a binary pin state. Implementations must ignore
	// this call for a pin currently under manual override (the output
	// driver itself also checks HasOverride first; the adapter check is
	// a second line of defense against a misbehaving caller).
	SetPin(index uint8, state bool)
	// SetPWM commands a PWM duty in permille (0..1000).
	SetPWM(index uint8, permille uint16)

	// SetOverride installs a host-driven manual override for index
	// (SET_OUTPUT); while active, the output driver must not write that
	// pin (spec §4.A).
	SetOverride(index uint8, value bool)
	// ClearOverride removes a manual override, restoring engine control.
	ClearOverride(index uint8)
	// HasOverride reports whether index is currently overridden.
	HasOverride(index uint8) bool

	// UART primitives, polled (spec §6). The codec alone may call these.
	UARTTxReady() bool
	UARTTxWrite(b byte)
	UARTTxComplete() bool
	UARTRxReady() bool
	UARTRxRead() byte

	// Flash primitives backing flashstore (spec §6).
	FlashEraseSector() error
	FlashWriteWord(addr uint32, word uint32) error
	FlashRead(addr uint32, length int) []byte

	// WatchdogFeed resets the hardware watchdog timer; must be called at
	// least twice within any ~1s operation (spec §5).
	WatchdogFeed()

	// SystemReset triggers an MCU reset. Never returns on real hardware.
	SystemReset()
}
