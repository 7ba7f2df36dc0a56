// Package tinygohw implements hwadapter.Adapter on real MCU hardware
// using tinygo.org/x/drivers and the jangala-dev tinygo-uartx buffered
// UART primitives. It is built only under TinyGo; the host build never
// compiles it, matching the teacher's split between cmd/pico-hal-main
// (tinygo target) and cmd/boardtest (host dev-board target).
//
//go:build tinygo

package tinygohw

import (
	"context"
	"machine"

	"github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers"
)

// Pins describes the physical pin assignment for one board variant.
// Production boards register their own Pins value from a board package;
// this type only carries the mapping the adapter needs.
type Pins struct {
	Digital []machine.Pin
	Analog  []machine.ADC
	Outputs []machine.Pin
	PWM     []drivers.PWM
	UART    *uartx.UART
	Flash   FlashSector
}

// uartRXBuf bounds the adapter's local read-ahead buffer. uartx.UART
// exposes block-oriented RecvSomeContext rather than a byte-ready
// register, so the adapter polls a small chunk at a time and serves the
// codec's byte-at-a-time contract from that buffer.
const uartRXBuf = 64

// FlashSector addresses the dedicated sector used for config
// persistence (spec §4.I). Base and Size are board-specific; they must
// name a sector the bootloader/application partition table reserves.
type FlashSector struct {
	Base uint32
	Size uint32
}

// Adapter implements hwadapter.Adapter against real registers.
type Adapter struct {
	pins Pins

	overrideMask [8]uint64 // bitset, 512 pins max; only first len(pins.Outputs) bits meaningful
	overrideVal  [8]uint64

	clock func() uint32

	rx     [uartRXBuf]byte
	rxLen  int
	rxPos  int
}

// New returns an Adapter for the given pin mapping. clockMs must return
// a monotonically non-decreasing millisecond count (board startup code
// typically wires this to machine.GetSystemTicks or a free-running
// timer divided down to milliseconds).
func New(pins Pins, clockMs func() uint32) *Adapter {
	return &Adapter{pins: pins, clock: clockMs}
}

func (a *Adapter) NowMs() uint32 { return a.clock() }

func (a *Adapter) ReadDigital(index uint8) bool {
	if int(index) >= len(a.pins.Digital) {
		return false
	}
	return a.pins.Digital[index].Get()
}

func (a *Adapter) ReadAnalog(index uint8) uint16 {
	if int(index) >= len(a.pins.Analog) {
		return 0
	}
	return a.pins.Analog[index].Get() >> 4 // 16-bit ADC.Get() -> 12-bit right-aligned
}

func (a *Adapter) overrideBit(index uint8) (word, bit uint) {
	return uint(index) / 64, uint(index) % 64
}

func (a *Adapter) SetPin(index uint8, state bool) {
	if a.HasOverride(index) || int(index) >= len(a.pins.Outputs) {
		return
	}
	a.pins.Outputs[index].Set(state)
}

func (a *Adapter) SetPWM(index uint8, permille uint16) {
	if a.HasOverride(index) || int(index) >= len(a.pins.PWM) {
		return
	}
	top := a.pins.PWM[index].Top()
	a.pins.PWM[index].Set(uint32(permille) * top / 1000)
}

func (a *Adapter) SetOverride(index uint8, value bool) {
	w, b := a.overrideBit(index)
	a.overrideMask[w] |= 1 << b
	if value {
		a.overrideVal[w] |= 1 << b
	} else {
		a.overrideVal[w] &^= 1 << b
	}
	a.SetPinForced(index, value)
}

// SetPinForced writes a pin regardless of override state; used only by
// SetOverride itself to apply the commanded override value.
func (a *Adapter) SetPinForced(index uint8, state bool) {
	if int(index) >= len(a.pins.Outputs) {
		return
	}
	a.pins.Outputs[index].Set(state)
}

func (a *Adapter) ClearOverride(index uint8) {
	w, b := a.overrideBit(index)
	a.overrideMask[w] &^= 1 << b
}

func (a *Adapter) HasOverride(index uint8) bool {
	w, b := a.overrideBit(index)
	return a.overrideMask[w]&(1<<b) != 0
}

// UARTTxReady always reports true: uartx.UART.Write is a buffered,
// synchronous call (no separate ready-to-accept register), so the codec
// never has to wait before handing it the next byte.
func (a *Adapter) UARTTxReady() bool { return true }

func (a *Adapter) UARTTxWrite(b byte) { a.pins.UART.Write([]byte{b}) }

// UARTTxComplete reports true immediately: Write already blocked until
// the byte was accepted by the driver's TX path, so there is nothing
// left to poll for.
func (a *Adapter) UARTTxComplete() bool { return true }

// UARTRxReady refills the adapter's small read-ahead buffer from the
// UART's RX path with a non-blocking poll (a context that is already
// past its deadline makes RecvSomeContext return immediately with
// whatever is available rather than waiting for more).
func (a *Adapter) UARTRxReady() bool {
	if a.rxPos < a.rxLen {
		return true
	}
	a.rxPos, a.rxLen = 0, 0

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	n, _ := a.pins.UART.RecvSomeContext(ctx, a.rx[:])
	a.rxLen = n
	return a.rxLen > 0
}

func (a *Adapter) UARTRxRead() byte {
	if a.rxPos >= a.rxLen {
		return 0
	}
	b := a.rx[a.rxPos]
	a.rxPos++
	return b
}

func (a *Adapter) FlashEraseSector() error {
	return machine.Flash.EraseBlocks(int64(a.pins.Flash.Base), int64(a.pins.Flash.Size))
}

func (a *Adapter) FlashWriteWord(addr uint32, word uint32) error {
	var buf [4]byte
	buf[0] = byte(word)
	buf[1] = byte(word >> 8)
	buf[2] = byte(word >> 16)
	buf[3] = byte(word >> 24)
	_, err := machine.Flash.WriteAt(buf[:], int64(a.pins.Flash.Base+addr))
	return err
}

func (a *Adapter) FlashRead(addr uint32, length int) []byte {
	buf := make([]byte, length)
	_, _ = machine.Flash.ReadAt(buf, int64(a.pins.Flash.Base+addr))
	return buf
}

func (a *Adapter) WatchdogFeed() { machine.Watchdog.Update() }

func (a *Adapter) SystemReset() { machine.CPUReset() }
