package dispatch

import (
	"encoding/binary"
	"testing"

	"pmucore/cfgcodec"
	"pmucore/enginecore"
	"pmucore/flashstore"
	"pmucore/hwadapter/simhw"
	"pmucore/outputdriver"
	"pmucore/protocol"
	"pmucore/store"
)

type harness struct {
	sim    *simhw.Sim
	st     *store.Store
	eng    *enginecore.Engine
	d      *Dispatcher
	codec  *protocol.Codec
	parser protocol.Parser
}

func newHarness() *harness {
	sim := simhw.New()
	st := store.NewStore()
	eng := enginecore.NewEngine(st)
	bindings := &outputdriver.Table{}
	flash := flashstore.New(sim)
	codec := protocol.NewCodec(sim)
	d := New(st, eng, bindings, sim, codec, flash)
	return &harness{sim: sim, st: st, eng: eng, d: d, codec: codec}
}

// call builds a Frame the way protocol.Parser would hand one to
// Dispatcher.Handle and invokes it directly, bypassing wire framing.
func (h *harness) call(cmd byte, payload []byte) {
	var f protocol.Frame
	f.Cmd = cmd
	f.Len = uint8(len(payload))
	copy(f.Payload[:], payload)
	h.d.Handle(&f)
}

// drain parses every byte the dispatcher wrote to the simulated UART TX
// queue back into frames.
func (h *harness) drain() []*protocol.Frame {
	var out []*protocol.Frame
	for _, raw := range h.sim.TakeTX() {
		if f, ok := h.parser.Feed(raw); ok {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out
}

func TestHandlePingRepliesPong(t *testing.T) {
	h := newHarness()
	h.call(CmdPing, nil)
	frames := h.drain()
	if len(frames) != 1 || frames[0].Cmd != CmdPong {
		t.Fatalf("expected a single PONG reply, got %+v", frames)
	}
}

func TestHandleUnknownCommandNacks(t *testing.T) {
	h := newHarness()
	h.call(0x7F, nil)
	frames := h.drain()
	if len(frames) != 1 || frames[0].Cmd != CmdNack {
		t.Fatalf("expected NACK for unknown command, got %+v", frames)
	}
	if frames[0].Data()[1] != NackUnknownCommand {
		t.Fatalf("expected NackUnknownCommand reason")
	}
}

func TestHandleSetOutputBadPayloadNacks(t *testing.T) {
	h := newHarness()
	h.call(CmdSetOutput, []byte{1})
	frames := h.drain()
	if len(frames) != 1 || frames[0].Cmd != CmdNack {
		t.Fatalf("expected NACK for short SET_OUTPUT payload, got %+v", frames)
	}
}

func TestHandleSetOutputAcksAndOverrides(t *testing.T) {
	h := newHarness()
	h.call(CmdSetOutput, []byte{5, 1})
	frames := h.drain()
	if len(frames) != 1 || frames[0].Cmd != CmdOutputAck {
		t.Fatalf("expected OUTPUT_ACK, got %+v", frames)
	}
	if !h.sim.HasOverride(5) || !h.sim.PinState(5) {
		t.Fatalf("expected pin 5 overridden high")
	}
}

func TestHandleLoadBinarySingleChunk(t *testing.T) {
	h := newHarness()
	blob := cfgcodec.Encode([]cfgcodec.Definition{
		{JSONID: 1, Name: "x", Kind: enginecore.KindLogic, Logic: enginecore.LogicDef{Op: enginecore.LogicNot}},
	}, nil)

	payload := make([]byte, 4+len(blob))
	binary.LittleEndian.PutUint16(payload[0:2], 0)
	binary.LittleEndian.PutUint16(payload[2:4], 1)
	copy(payload[4:], blob)

	h.call(CmdLoadBinary, payload)
	frames := h.drain()
	if len(frames) != 1 || frames[0].Cmd != CmdBinaryAck {
		t.Fatalf("expected BINARY_ACK, got %+v", frames)
	}
	if frames[0].Data()[0] != 1 {
		t.Fatalf("expected ok=1 in BINARY_ACK")
	}
}

func TestHandleLoadBinaryRejectsBadBlob(t *testing.T) {
	h := newHarness()
	payload := make([]byte, 4+3)
	binary.LittleEndian.PutUint16(payload[0:2], 0)
	binary.LittleEndian.PutUint16(payload[2:4], 1)
	payload[4] = cfgcodec.FormatVersion + 1 // bad version byte

	h.call(CmdLoadBinary, payload)
	frames := h.drain()
	if len(frames) != 1 || frames[0].Cmd != CmdBinaryAck || frames[0].Data()[0] != 0 {
		t.Fatalf("expected BINARY_ACK with ok=0 for a malformed blob, got %+v", frames)
	}
}

func TestHandleGetConfigEchoesLastLoadedBlob(t *testing.T) {
	h := newHarness()
	blob := cfgcodec.Encode([]cfgcodec.Definition{
		{JSONID: 1, Name: "x", Kind: enginecore.KindLogic, Logic: enginecore.LogicDef{Op: enginecore.LogicNot}},
	}, nil)
	payload := make([]byte, 4+len(blob))
	binary.LittleEndian.PutUint16(payload[2:4], 1)
	copy(payload[4:], blob)
	h.call(CmdLoadBinary, payload)
	h.drain()

	h.call(CmdGetConfig, nil)
	frames := h.drain()
	if len(frames) != 1 || frames[0].Cmd != CmdConfigData {
		t.Fatalf("expected a single CONFIG_DATA chunk, got %+v", frames)
	}
	got := frames[0].Data()[chunkHeaderSize:]
	if len(got) != len(blob) {
		t.Fatalf("echoed blob len = %d, want %d", len(got), len(blob))
	}
	for i, b := range blob {
		if got[i] != b {
			t.Fatalf("echoed blob differs at byte %d", i)
		}
	}
}

func TestHandleStartStopStream(t *testing.T) {
	h := newHarness()
	h.call(CmdStartStream, []byte{10, 0})
	frames := h.drain()
	if len(frames) != 1 || frames[0].Cmd != CmdAck {
		t.Fatalf("expected ACK for START_STREAM, got %+v", frames)
	}
	if !h.d.stream.Active() {
		t.Fatalf("expected streaming armed")
	}

	h.call(CmdStopStream, nil)
	h.drain()
	if h.d.stream.Active() {
		t.Fatalf("expected streaming disarmed after STOP_STREAM")
	}
}

func TestHandleClearConfigResetsGraph(t *testing.T) {
	h := newHarness()
	blob := cfgcodec.Encode([]cfgcodec.Definition{
		{JSONID: 1, Name: "x", Kind: enginecore.KindLogic, Logic: enginecore.LogicDef{Op: enginecore.LogicNot}},
	}, nil)
	payload := make([]byte, 4+len(blob))
	binary.LittleEndian.PutUint16(payload[2:4], 1)
	copy(payload[4:], blob)
	h.call(CmdLoadBinary, payload)
	h.drain()

	h.call(CmdClearConfig, nil)
	frames := h.drain()
	if len(frames) != 1 || frames[0].Cmd != CmdClearConfigAck {
		t.Fatalf("expected CLEAR_CONFIG_ACK, got %+v", frames)
	}
	if h.eng.Count() != 0 {
		t.Fatalf("expected engine graph cleared")
	}
}

func TestHandleGetCapabilitiesReportsVersion(t *testing.T) {
	h := newHarness()
	h.call(CmdGetCapabilities, nil)
	frames := h.drain()
	if len(frames) != 1 || frames[0].Cmd != CmdCapabilities {
		t.Fatalf("expected CAPABILITIES reply, got %+v", frames)
	}
	if frames[0].Data()[0] != FormatVersion {
		t.Fatalf("capabilities payload should echo FormatVersion")
	}
}
