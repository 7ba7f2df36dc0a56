// cmd/pmu-bench is a host-side interactive CLI that drives a running
// core over the wire protocol, the way the teacher's cmd/boardtest
// drives a running HAL over the bus. There is no separate serial
// process to attach to in this environment, so the core runs in this
// same process against hwadapter/simhw's loopback UART queues: typed
// commands are encoded into frames, pushed into the simulated RX queue,
// the core is pumped forward, and whatever it wrote to its simulated TX
// queue is parsed back and printed.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/google/shlex"

	"pmucore/cfgcodec"
	"pmucore/dispatch"
	"pmucore/enginecore"
	"pmucore/flashstore"
	"pmucore/hwadapter/simhw"
	"pmucore/outputdriver"
	"pmucore/protocol"
	"pmucore/store"
)

type bench struct {
	sim    *simhw.Sim
	st     *store.Store
	eng    *enginecore.Engine
	d      *dispatch.Dispatcher
	codec  *protocol.Codec
	parser protocol.Parser
}

func newBench() *bench {
	sim := simhw.New()
	st := store.NewStore()
	eng := enginecore.NewEngine(st)
	bindings := &outputdriver.Table{}
	flash := flashstore.New(sim)
	codec := protocol.NewCodec(sim)
	d := dispatch.New(st, eng, bindings, sim, codec, flash)
	d.SetLogger(logFunc(func(format string, args ...any) { fmt.Printf(format+"\n", args...) }))
	return &bench{sim: sim, st: st, eng: eng, d: d, codec: codec}
}

type logFunc func(format string, args ...any)

func (f logFunc) Printf(format string, args ...any) { f(format, args...) }

// pump advances the core by n simulated milliseconds, one tick at a
// time: engine tick, RX poll and drain into the dispatcher, telemetry.
// Unlike cmd/pmu-core's main loop it does not sample inputs or drive
// output bindings.
func (b *bench) pump(n int) {
	for i := 0; i < n; i++ {
		b.sim.Advance(1)
		now := b.sim.NowMs()
		b.eng.Tick(now)
		b.codec.PollRX()
		b.codec.Drain(b.d.Handle)
		b.d.EmitTelemetryIfDue(now)
	}
}

// send encodes cmd/payload into a frame and feeds it to the core's
// simulated RX queue, pumps the core forward, then prints every frame
// the core wrote back.
func (b *bench) send(cmd byte, payload []byte) {
	var buf [600]byte
	n := protocol.Encode(buf[:], cmd, payload)
	if n == 0 {
		fmt.Println("encode failed: payload too large")
		return
	}
	b.sim.FeedRX(buf[:n]...)
	b.pump(20)
	b.printReplies()
}

func (b *bench) printReplies() {
	for _, raw := range b.sim.TakeTX() {
		if frame, ok := b.parser.Feed(raw); ok {
			fmt.Printf("<- cmd=0x%02x len=%d payload=% x\n", frame.Cmd, frame.Len, frame.Data())
		}
	}
}

func main() {
	b := newBench()
	fmt.Println("pmu-bench: type 'help' for commands, 'quit' to exit")

	scan := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scan.Scan() {
			return
		}
		args, err := shlex.Split(scan.Text())
		if err != nil || len(args) == 0 {
			continue
		}
		if !b.dispatch(args) {
			return
		}
	}
}

func (b *bench) dispatch(args []string) bool {
	switch args[0] {
	case "quit", "exit":
		return false
	case "help":
		printHelp()
	case "ping":
		b.send(dispatch.CmdPing, nil)
	case "reset":
		b.send(dispatch.CmdReset, nil)
	case "get-config":
		b.send(dispatch.CmdGetConfig, nil)
	case "save-config":
		b.send(dispatch.CmdSaveConfig, nil)
	case "clear-config":
		b.send(dispatch.CmdClearConfig, nil)
	case "get-capabilities":
		b.send(dispatch.CmdGetCapabilities, nil)
	case "stop-stream":
		b.send(dispatch.CmdStopStream, nil)
	case "start-stream":
		rate := uint16(10)
		if len(args) >= 2 {
			if v, err := strconv.Atoi(args[1]); err == nil {
				rate = uint16(v)
			}
		}
		b.send(dispatch.CmdStartStream, []byte{byte(rate), byte(rate >> 8)})
	case "set-output":
		if len(args) < 3 {
			fmt.Println("usage: set-output <pin> <0|1>")
			return true
		}
		pin, _ := strconv.Atoi(args[1])
		state, _ := strconv.Atoi(args[2])
		b.send(dispatch.CmdSetOutput, []byte{byte(pin), byte(state)})
	case "load-binary":
		if len(args) < 2 {
			fmt.Println("usage: load-binary <file.bin>")
			return true
		}
		b.loadBinaryFile(args[1])
	case "validate":
		if len(args) < 2 {
			fmt.Println("usage: validate <file.bin>")
			return true
		}
		b.validateBinaryFile(args[1])
	case "advance":
		ms := 1
		if len(args) >= 2 {
			if v, err := strconv.Atoi(args[1]); err == nil {
				ms = v
			}
		}
		b.pump(ms)
		b.printReplies()
	default:
		fmt.Println("unknown command:", args[0])
	}
	return true
}

// loadBinaryFile reads a cfgcodec blob from disk and sends it to the
// core as one or more chunked LOAD_BINARY frames (spec §4.G).
func (b *bench) loadBinaryFile(path string) {
	blob, err := os.ReadFile(path)
	if err != nil {
		fmt.Println("read failed:", err)
		return
	}
	const chunkPayload = 251 // engineconf.MaxChunkPayload
	total := (len(blob) + chunkPayload - 1) / chunkPayload
	if total == 0 {
		total = 1
	}
	for idx := 0; idx < total; idx++ {
		start := idx * chunkPayload
		end := start + chunkPayload
		if end > len(blob) {
			end = len(blob)
		}
		payload := make([]byte, 4+(end-start))
		payload[0] = byte(idx)
		payload[1] = byte(idx >> 8)
		payload[2] = byte(total)
		payload[3] = byte(total >> 8)
		copy(payload[4:], blob[start:end])
		b.send(dispatch.CmdLoadBinary, payload)
	}
}

// validateBinaryFile decodes blob against a scratch store/engine/table,
// entirely separate from the bench's live core, so a malformed blob can
// be diagnosed locally before wasting a chunked LOAD_BINARY round-trip.
func (b *bench) validateBinaryFile(path string) {
	blob, err := os.ReadFile(path)
	if err != nil {
		fmt.Println("read failed:", err)
		return
	}
	scratch := store.NewStore()
	eng := enginecore.NewEngine(scratch)
	var bindings outputdriver.Table
	count, err := cfgcodec.Decode(blob, scratch, eng, &bindings)
	if err != nil {
		fmt.Println("invalid blob:", err)
		return
	}
	fmt.Printf("ok: %d channels, %d output bindings (format version %d)\n", count, bindings.Len(), cfgcodec.FormatVersion)
}

func printHelp() {
	fmt.Println(`commands:
  ping
  reset
  get-config
  load-binary <file.bin>
  validate <file.bin>
  save-config
  clear-config
  start-stream [hz]
  stop-stream
  set-output <pin> <0|1>
  get-capabilities
  advance [ms]
  quit`)
}
