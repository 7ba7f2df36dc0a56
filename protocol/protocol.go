// Package protocol implements the wire protocol codec (spec §4.F): sync
// detection, byte-stuffing, length/CRC32 framing, and the byte-fed
// parser state machine that surfaces complete frames to the command
// dispatcher. Transmission polls the UART TX register directly through
// hwadapter.Adapter; there is no io.Reader/io.Writer here because the
// single-threaded loop never blocks on either direction.
package protocol

import (
	"hash/crc32"

	"pmucore/engineconf"
	"pmucore/hwadapter"
)

const (
	syncByte = 0xAA
	stuffByte = 0x55
	eofByte   = 0x55
)

// MaxPayload is the largest payload a single frame may carry; the
// length byte in the header is one byte wide (spec §4.F).
const MaxPayload = 255

// Frame is one complete, CRC-verified application frame (spec §4.F,
// named after the teacher's bridge.Frame{Type,Payload}).
type Frame struct {
	Cmd     byte
	Payload [MaxPayload]byte
	Len     uint8
}

// Data returns the frame's payload slice.
func (f *Frame) Data() []byte { return f.Payload[:f.Len] }

// state is the parser's position in the byte-fed state machine (spec
// §4.F: "SearchingForSync, GotHeader, CollectingPayload, CollectingCrc,
// AwaitingEof").
type state uint8

const (
	stateSearchingSync state = iota
	stateGotHeader
	stateCollectingLen
	stateCollectingPayload
	stateCollectingCrc
	stateAwaitingEof
)

// Parser is a byte-fed state machine (spec §4.F). Feed is called once
// per received byte; it returns ok=true exactly when a full, CRC-valid
// frame has just completed. On any framing or CRC error the parser
// silently resets to stateSearchingSync (spec §7: "framing errors:
// silently discard partial frame; reset parser").
type Parser struct {
	st state

	syncRun int // consecutive 0xAA seen while searching for sync

	cmd    byte
	length uint8

	payload  [MaxPayload]byte
	payloadN uint8

	crc    [4]byte
	crcN   uint8

	// destuff tracks consecutive raw 0xAA bytes across the id/length/
	// payload/crc region of the frame; hitting 2 means the next byte
	// must be the stuffed 0x55, which is consumed and not stored.
	destuffRun   int
	expectStuff  bool

	frame Frame
}

// Reset returns the parser to its initial state, discarding any
// partially-collected frame. The last completed frame is kept, so the
// pointer Feed returned for it stays valid until the next frame completes.
func (p *Parser) Reset() {
	last := p.frame
	*p = Parser{}
	p.frame = last
}

// Feed advances the parser by one received byte. frame is only valid
// when ok is true.
func (p *Parser) Feed(b byte) (frame *Frame, ok bool) {
	if p.expectStuff {
		p.expectStuff = false
		if b != stuffByte {
			p.Reset()
			return nil, false
		}
		return nil, false // stuffed byte consumed, not data
	}

	if p.st == stateSearchingSync {
		if b == syncByte {
			p.syncRun++
			return nil, false
		}
		if p.syncRun < 3 {
			p.syncRun = 0
			return nil, false
		}
		// A run of three or more 0xAA ends at the first other byte: the
		// last three were the sync and b is the command id. A frame whose
		// command id is 0xAA is therefore not recognised.
		p.beginHeader()
	}

	// Every byte from here on (id, length, payload, CRC) shares one
	// stuffing run, matching Encode, which stuffs the same span.
	if p.st != stateAwaitingEof {
		p.destuff(b)
	}

	switch p.st {
	case stateGotHeader:
		p.cmd = b
		p.st = stateCollectingLen
		return nil, false

	case stateCollectingLen:
		p.length = b
		p.payloadN = 0
		if p.length == 0 {
			p.st = stateCollectingCrc
			p.crcN = 0
		} else {
			p.st = stateCollectingPayload
		}
		return nil, false

	case stateCollectingPayload:
		p.payload[p.payloadN] = b
		p.payloadN++
		if p.payloadN >= p.length {
			p.st = stateCollectingCrc
			p.crcN = 0
		}
		return nil, false

	case stateCollectingCrc:
		p.crc[p.crcN] = b
		p.crcN++
		if p.crcN == 4 {
			p.st = stateAwaitingEof
		}
		return nil, false

	case stateAwaitingEof:
		defer p.Reset()
		if b != eofByte {
			return nil, false
		}
		want := uint32(p.crc[0]) | uint32(p.crc[1])<<8 | uint32(p.crc[2])<<16 | uint32(p.crc[3])<<24
		if want != p.checksum() {
			return nil, false
		}
		p.frame.Cmd = p.cmd
		p.frame.Len = p.payloadN
		copy(p.frame.Payload[:p.payloadN], p.payload[:p.payloadN])
		return &p.frame, true
	}

	p.Reset()
	return nil, false
}

func (p *Parser) beginHeader() {
	p.syncRun = 0
	p.destuffRun = 0
	p.expectStuff = false
	p.st = stateGotHeader
}

// destuff tracks the stuffing run across the id/length/payload/CRC
// region. It arms expectStuff when b is the second of two consecutive
// 0xAA bytes, so the byte fed in next must be the stuffed 0x55 rather
// than frame content.
func (p *Parser) destuff(b byte) {
	if b == syncByte {
		p.destuffRun++
		if p.destuffRun == 2 {
			p.destuffRun = 0
			p.expectStuff = true
		}
	} else {
		p.destuffRun = 0
	}
}

func (p *Parser) checksum() uint32 {
	var buf [2 + MaxPayload]byte
	buf[0] = p.cmd
	buf[1] = p.length
	copy(buf[2:], p.payload[:p.payloadN])
	return crc32.ChecksumIEEE(buf[:2+int(p.payloadN)])
}

// Encode assembles cmd/payload into a frame, with sync, byte-stuffing,
// CRC32 trailer and EOF, into dst. It reports the number of bytes
// written, or 0 if payload exceeds MaxPayload or dst is too small.
// engineconf.TXStagingBufferSize is the caller's expected dst capacity.
func Encode(dst []byte, cmd byte, payload []byte) int {
	if len(payload) > MaxPayload {
		return 0
	}
	n := 0
	put := func(b byte) bool {
		if n >= len(dst) {
			return false
		}
		dst[n] = b
		n++
		return true
	}

	for i := 0; i < 3; i++ {
		if !put(syncByte) {
			return 0
		}
	}

	var body [2 + MaxPayload]byte
	body[0] = cmd
	body[1] = byte(len(payload))
	copy(body[2:], payload)
	bodyLen := 2 + len(payload)

	crc := crc32.ChecksumIEEE(body[:bodyLen])
	var crcBytes [4]byte
	crcBytes[0] = byte(crc)
	crcBytes[1] = byte(crc >> 8)
	crcBytes[2] = byte(crc >> 16)
	crcBytes[3] = byte(crc >> 24)

	run := 0
	emitStuffed := func(b byte) bool {
		if !put(b) {
			return false
		}
		if b == syncByte {
			run++
			if run == 2 {
				run = 0
				if !put(stuffByte) {
					return false
				}
			}
		} else {
			run = 0
		}
		return true
	}

	for i := 0; i < bodyLen; i++ {
		if !emitStuffed(body[i]) {
			return 0
		}
	}
	for _, b := range crcBytes {
		if !emitStuffed(b) {
			return 0
		}
	}
	if !put(eofByte) {
		return 0
	}
	return n
}

// Codec owns the TX staging buffer and RX ring used to drive Encode and
// Parser against a real UART register interface, implementing the
// TX-atomicity and RX-during-TX discipline of spec §4.F: the codec
// polls RX inside both TX-empty and TX-complete waits so no inbound
// byte is dropped while a response is being sent, and defers draining
// that buffered RX into the parser if a command handler is already
// running (the reentrancy guard — see the inHandler field and Drain).
type Codec struct {
	hw     hwadapter.Adapter
	parser Parser

	rxRing [engineconf.RXRingSize]byte
	rxHead int
	rxTail int

	inHandler bool
}

// NewCodec returns a Codec driving hw.
func NewCodec(hw hwadapter.Adapter) *Codec { return &Codec{hw: hw} }

func (c *Codec) rxPush(b byte) {
	next := (c.rxHead + 1) % len(c.rxRing)
	if next == c.rxTail {
		return // ring full, drop rather than corrupt the index
	}
	c.rxRing[c.rxHead] = b
	c.rxHead = next
}

func (c *Codec) rxPop() (byte, bool) {
	if c.rxHead == c.rxTail {
		return 0, false
	}
	b := c.rxRing[c.rxTail]
	c.rxTail = (c.rxTail + 1) % len(c.rxRing)
	return b, true
}

// drainUARTIntoRing moves every byte currently waiting in the hardware
// RX register into the ring, without touching the parser.
func (c *Codec) drainUARTIntoRing() {
	for c.hw.UARTRxReady() {
		c.rxPush(c.hw.UARTRxRead())
	}
}

// Send transmits cmd/payload as a single unreliable frame (spec §4.F:
// "one attempt; if the host does not observe a response... the host
// retries"). It sets the reentrancy guard for its duration (spec §4.G:
// "each handler sets the reentrancy flag before any send, clears it on
// return") and polls RX into the ring throughout, since the
// single-threaded loop cannot otherwise read the UART while busy-
// waiting on TX (spec §4.F).
func (c *Codec) Send(cmd byte, payload []byte) {
	var buf [engineconf.TXStagingBufferSize]byte
	n := Encode(buf[:], cmd, payload)
	if n == 0 {
		return
	}

	wasInHandler := c.inHandler
	c.inHandler = true
	defer func() { c.inHandler = wasInHandler }()

	for i := 0; i < n; i++ {
		for !c.hw.UARTTxReady() {
			c.drainUARTIntoRing()
		}
		c.hw.UARTTxWrite(buf[i])
		for !c.hw.UARTTxComplete() {
			c.drainUARTIntoRing()
		}
		c.drainUARTIntoRing()
	}
}

// PollRX drains the hardware RX register into the ring. Call this once
// per main-loop iteration outside of any handler.
func (c *Codec) PollRX() { c.drainUARTIntoRing() }

// Drain feeds every ring byte through the parser, calling onFrame for
// each completed frame, unless a command handler is currently running
// (the reentrancy guard of spec §4.F: a handler that calls Send must
// not re-enter the parser from the RX it buffered during that send).
// When guarded, Drain is a no-op and the buffered bytes remain queued
// for the next idle main-loop iteration.
func (c *Codec) Drain(onFrame func(*Frame)) {
	if c.inHandler {
		return
	}
	for {
		b, ok := c.rxPop()
		if !ok {
			return
		}
		if frame, ok := c.parser.Feed(b); ok {
			c.inHandler = true
			onFrame(frame)
			c.inHandler = false
		}
	}
}
