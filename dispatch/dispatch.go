// Package dispatch implements the command dispatcher (spec §4.G):
// mapping inbound command IDs to handlers and building response
// frames over the wire protocol codec.
package dispatch

import (
	"encoding/binary"

	"pmucore/cfgcodec"
	"pmucore/channelid"
	"pmucore/engineconf"
	"pmucore/enginecore"
	"pmucore/errcode"
	"pmucore/flashstore"
	"pmucore/hwadapter"
	"pmucore/internal/corelog"
	"pmucore/outputdriver"
	"pmucore/protocol"
	"pmucore/store"
	"pmucore/telemetry"
)

// Command ids. Fixed 1-byte constants per spec §6; values are a
// device-level ABI.
const (
	CmdPing  byte = 0x01
	CmdPong  byte = 0x02
	CmdReset byte = 0x03
	CmdAck   byte = 0x04
	CmdNack  byte = 0x05

	CmdGetConfig  byte = 0x10
	CmdConfigData byte = 0x11

	CmdLoadBinary byte = 0x12
	CmdBinaryAck  byte = 0x13

	CmdSaveConfig byte = 0x14
	CmdFlashAck   byte = 0x15

	CmdClearConfig    byte = 0x16
	CmdClearConfigAck byte = 0x17

	CmdStartStream byte = 0x18
	CmdStopStream  byte = 0x19

	CmdSetOutput byte = 0x1A
	CmdOutputAck byte = 0x1B

	CmdGetCapabilities byte = 0x1C
	CmdCapabilities    byte = 0x1D

	CmdTelemetryData byte = 0x1E
)

// NACK reason codes (spec §7: "Protocol errors... NACK with {offending
// id, code}").
const (
	NackUnknownCommand byte = 0x01
	NackBadPayload     byte = 0x02
)

// chunkHeaderSize is the {idx,total} header prefixing LOAD_BINARY and
// CONFIG_DATA payloads (spec §4.G).
const chunkHeaderSize = 4

// Dispatcher holds the config buffer, stream state, and everything a
// handler needs to mutate the live system (spec §4.G: "current config
// buffer, stream-active flag, stream period, stream counter").
type Dispatcher struct {
	st       *store.Store
	eng      *enginecore.Engine
	bindings *outputdriver.Table
	hw       hwadapter.Adapter
	codec    *protocol.Codec
	flash    *flashstore.Store
	stream   telemetry.Streamer
	log      corelog.Logger

	// lastBlob is the last successfully LOAD_BINARY'd or flash-loaded
	// blob, kept verbatim so GET_CONFIG can echo it byte-for-byte
	// (spec §8 property 7) rather than re-serializing from the live
	// graph.
	lastBlob [engineconf.MaxConfigBlob]byte
	lastLen  int

	// loadBuf reassembles a chunked LOAD_BINARY transfer. loadSize tracks
	// the high-water mark of off+len(chunk) across every chunk seen so
	// far, since chunks may arrive out of order and the final one isn't
	// necessarily the one that completes the set. loadActive guards
	// loadReceived/loadTotal from being wiped by a retransmitted chunk 0
	// mid-transfer; it is only true between a transfer's first chunk 0
	// and its completion (success or failure).
	loadBuf      [engineconf.MaxConfigBlob]byte
	loadTotal    uint16
	loadSize     int
	loadActive   bool
	loadReceived map[uint16]bool
}

// New returns a Dispatcher wired to the live system components.
func New(st *store.Store, eng *enginecore.Engine, bindings *outputdriver.Table, hw hwadapter.Adapter, codec *protocol.Codec, flash *flashstore.Store) *Dispatcher {
	return &Dispatcher{
		st: st, eng: eng, bindings: bindings, hw: hw, codec: codec, flash: flash,
		loadReceived: make(map[uint16]bool, 64),
	}
}

// Stream exposes the streamer so the main loop can check Due/Snapshot.
func (d *Dispatcher) Stream() *telemetry.Streamer { return &d.stream }

// SetLogger wires an optional diagnostic sink for boundary failures
// (config decode, flash). Passing nil silences it again.
func (d *Dispatcher) SetLogger(log corelog.Logger) { d.log = log }

func (d *Dispatcher) logErr(op string, err error) {
	if d.log == nil || err == nil {
		return
	}
	d.log.Printf("dispatch: %s failed: %s", op, errcode.Of(err))
}

// Handle dispatches one complete frame (spec §4.G). It is the callback
// passed to protocol.Codec.Drain.
func (d *Dispatcher) Handle(f *protocol.Frame) {
	switch f.Cmd {
	case CmdPing:
		d.codec.Send(CmdPong, nil)
	case CmdReset:
		d.handleReset()
	case CmdGetConfig:
		d.handleGetConfig()
	case CmdLoadBinary:
		d.handleLoadBinary(f.Data())
	case CmdSaveConfig:
		d.handleSaveConfig()
	case CmdClearConfig:
		d.handleClearConfig()
	case CmdStartStream:
		d.handleStartStream(f.Data())
	case CmdStopStream:
		d.stream.Stop()
		d.codec.Send(CmdAck, []byte{CmdStopStream})
	case CmdSetOutput:
		d.handleSetOutput(f.Data())
	case CmdGetCapabilities:
		d.handleGetCapabilities()
	default:
		d.codec.Send(CmdNack, []byte{f.Cmd, NackUnknownCommand})
	}
}

func (d *Dispatcher) handleReset() {
	d.codec.Send(CmdAck, []byte{CmdReset})
	d.hw.SystemReset()
}

func (d *Dispatcher) handleGetConfig() {
	blob := d.lastBlob[:d.lastLen]
	total := (len(blob) + engineconf.MaxChunkPayload - 1) / engineconf.MaxChunkPayload
	if total == 0 {
		total = 1
	}
	for idx := 0; idx < total; idx++ {
		start := idx * engineconf.MaxChunkPayload
		end := start + engineconf.MaxChunkPayload
		if end > len(blob) {
			end = len(blob)
		}
		payload := make([]byte, chunkHeaderSize+(end-start))
		binary.LittleEndian.PutUint16(payload[0:2], uint16(idx))
		binary.LittleEndian.PutUint16(payload[2:4], uint16(total))
		copy(payload[chunkHeaderSize:], blob[start:end])
		d.codec.Send(CmdConfigData, payload)
	}
}

func (d *Dispatcher) handleLoadBinary(data []byte) {
	if len(data) < chunkHeaderSize {
		d.codec.Send(CmdNack, []byte{CmdLoadBinary, NackBadPayload})
		return
	}
	idx := binary.LittleEndian.Uint16(data[0:2])
	total := binary.LittleEndian.Uint16(data[2:4])
	chunk := data[chunkHeaderSize:]

	if idx == 0 && !d.loadActive {
		d.stream.Stop()
		d.loadReceived = make(map[uint16]bool, total)
		d.loadTotal = total
		d.loadSize = 0
		d.loadActive = true
	}

	off := int(idx) * engineconf.MaxChunkPayload
	if off+len(chunk) > len(d.loadBuf) {
		d.ackBinary(false, 0)
		d.loadActive = false
		return
	}
	copy(d.loadBuf[off:], chunk)
	d.loadReceived[idx] = true
	if end := off + len(chunk); end > d.loadSize {
		d.loadSize = end
	}

	if uint16(len(d.loadReceived)) < d.loadTotal {
		return // wait for remaining chunks before handing off to the decoder
	}

	blob := append([]byte(nil), d.loadBuf[:d.loadSize]...)
	count, err := cfgcodec.Decode(blob, d.st, d.eng, d.bindings)
	if err != nil {
		d.logErr("load_binary", err)
		d.ackBinary(false, 0)
		d.loadActive = false
		return
	}
	copy(d.lastBlob[:], blob)
	d.lastLen = len(blob)
	d.loadActive = false
	d.ackBinary(true, count)
}

func (d *Dispatcher) ackBinary(ok bool, count int) {
	payload := []byte{0, 0, byte(count), byte(count >> 8)}
	if ok {
		payload[0] = 1
	}
	d.codec.Send(CmdBinaryAck, payload)
}

func (d *Dispatcher) handleSaveConfig() {
	err := d.flash.Save(d.lastBlob[:d.lastLen])
	ok := byte(0)
	if err == nil {
		ok = 1
	} else {
		d.logErr("save_config", err)
	}
	d.codec.Send(CmdFlashAck, []byte{ok})
}

func (d *Dispatcher) handleClearConfig() {
	d.stream.Stop()
	d.st.ClearVirtual()
	d.eng.Reset()
	d.bindings.Clear()
	d.lastLen = 0
	if err := d.flash.Erase(); err != nil {
		d.logErr("clear_config", err)
	}
	d.codec.Send(CmdClearConfigAck, []byte{1})
}

func (d *Dispatcher) handleStartStream(data []byte) {
	var rate uint16
	if len(data) >= 2 {
		rate = binary.LittleEndian.Uint16(data[0:2])
	}
	d.stream.Start(rate)
	d.codec.Send(CmdAck, []byte{CmdStartStream})
}

func (d *Dispatcher) handleSetOutput(data []byte) {
	if len(data) < 2 {
		d.codec.Send(CmdNack, []byte{CmdSetOutput, NackBadPayload})
		return
	}
	pin := data[0]
	// State 1 latches the pin high under a manual override; state 0
	// clears the override, drives the pin low and leaves it to the
	// bindings from the next Drive on.
	if data[1] != 0 {
		d.hw.SetOverride(pin, true)
	} else {
		d.hw.ClearOverride(pin)
		d.hw.SetPin(pin, false)
	}
	d.codec.Send(CmdOutputAck, []byte{pin, data[1]})
}

// handleGetCapabilities reports a fixed 10-byte device description
// (spec §4.G): byte 0 is the config blob format version, then channel,
// virtual and output capacities and the tick rate (u16 little-endian
// each), and byte 9 is the number of physical output slots, so a host
// can size its authoring tool without a separate introspection
// round-trip.
func (d *Dispatcher) handleGetCapabilities() {
	payload := make([]byte, 10)
	payload[0] = FormatVersion
	binary.LittleEndian.PutUint16(payload[1:3], uint16(engineconf.MaxChannels))
	binary.LittleEndian.PutUint16(payload[3:5], uint16(engineconf.MaxVirtual))
	binary.LittleEndian.PutUint16(payload[5:7], uint16(engineconf.MaxOutputs))
	binary.LittleEndian.PutUint16(payload[7:9], uint16(engineconf.TickHz))
	payload[9] = byte(channelid.OutputLast - channelid.OutputFirst + 1)
	d.codec.Send(CmdCapabilities, payload)
}

// FormatVersion is echoed in GET_CAPABILITIES; it tracks cfgcodec's
// blob format version.
const FormatVersion = cfgcodec.FormatVersion

// EmitTelemetryIfDue snapshots and sends a telemetry frame when the
// streamer's period has elapsed (spec §4.H). Call once per tick.
func (d *Dispatcher) EmitTelemetryIfDue(nowMs uint32) {
	if !d.stream.Due(nowMs) {
		return
	}
	frame := d.stream.Snapshot(d.st, nowMs)
	d.codec.Send(CmdTelemetryData, frame.Bytes())
}
