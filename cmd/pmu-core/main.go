// cmd/pmu-core is the MCU entry point: brings up the board's pins,
// loads the embedded hardware inventory, and runs the single-threaded
// tick loop (spec §5) tying together every module. It is the TinyGo
// counterpart to the teacher's cmd/pico-hal-main.
//
//go:build tinygo

package main

import (
	"machine"
	"time"

	"github.com/jangala-dev/tinygo-uartx/uartx"

	"pmucore/cfgcodec"
	"pmucore/dispatch"
	"pmucore/enginecore"
	"pmucore/flashstore"
	"pmucore/hwadapter/tinygohw"
	"pmucore/hwinventory"
	"pmucore/outputdriver"
	"pmucore/protocol"
	"pmucore/store"
)

// flashSectorBase/Size name the dedicated config sector, reserved past
// the application image in the board's partition layout (spec §4.I).
const (
	flashSectorBase = 0x100000
	flashSectorSize = 4096
)

var digitalPins = []machine.Pin{machine.GP2, machine.GP3}
var analogPins = []machine.ADC{
	{Pin: machine.ADC0},
	{Pin: machine.ADC1},
}
var outputPins = []machine.Pin{machine.GP6, machine.GP7, machine.GP8}

func configurePins() tinygohw.Pins {
	for _, p := range digitalPins {
		p.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	}
	for _, a := range analogPins {
		a.Configure(machine.ADCConfig{})
	}
	for _, p := range outputPins {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	}

	uartx.UART0.Configure(uartx.UARTConfig{})
	_ = uartx.UART0.SetBaudRate(115200)

	return tinygohw.Pins{
		Digital: digitalPins,
		Analog:  analogPins,
		Outputs: outputPins,
		PWM:     nil, // this board's outputs are all on/off relays
		UART:    uartx.UART0,
		Flash:   tinygohw.FlashSector{Base: flashSectorBase, Size: flashSectorSize},
	}
}

var bootMs = time.Now()

func nowMs() uint32 { return uint32(time.Since(bootMs).Milliseconds()) }

func main() {
	time.Sleep(500 * time.Millisecond)
	println("[pmu-core] booting")

	hw := tinygohw.New(configurePins(), nowMs)

	inv, err := hwinventory.Decode([]byte(boardInventories["pico"]))
	if err != nil {
		println("[pmu-core] bad hardware inventory, halting")
		for {
			hw.WatchdogFeed()
			time.Sleep(time.Second)
		}
	}
	digital, analog, outputs := inv.Register(st)
	println("[pmu-core] inventory: digital=", digital, " analog=", analog, " outputs=", outputs)

	run(hw, inv)
}

var st = store.NewStore()

func run(hw *tinygohw.Adapter, inv hwinventory.Config) {
	eng := enginecore.NewEngine(st)
	bindings := &outputdriver.Table{}
	flash := flashstore.New(hw)
	codec := protocol.NewCodec(hw)
	d := dispatch.New(st, eng, bindings, hw, codec, flash)

	if blob, ok := flash.Load(); ok {
		if _, err := cfgcodec.Decode(blob, st, eng, bindings); err != nil {
			println("[pmu-core] persisted config rejected on boot")
		} else {
			println("[pmu-core] loaded persisted config")
		}
	}

	var lastTick uint32
	for {
		now := hw.NowMs()
		if now == lastTick {
			continue
		}
		lastTick = now

		hw.WatchdogFeed()

		inv.SampleInputs(st, func(class store.Class, index uint8) int32 {
			switch class {
			case store.ClassInputSwitch:
				if hw.ReadDigital(index) {
					return store.BoolTrue
				}
				return 0
			default:
				return int32(hw.ReadAnalog(index))
			}
		})

		eng.Tick(now)
		bindings.Drive(st, hw)

		codec.PollRX()
		codec.Drain(d.Handle)
		d.EmitTelemetryIfDue(now)
	}
}
