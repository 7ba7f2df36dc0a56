// Package flashstore implements the flash config store (spec §4.I):
// atomic persistence of a config blob into a dedicated flash sector,
// with a verified read on boot.
package flashstore

import (
	"encoding/binary"

	"pmucore/engineconf"
	"pmucore/errcode"
	"pmucore/hwadapter"
)

// Magic identifies a valid header; it is a device-level ABI value (spec
// §6: "changes require a migration strategy").
const Magic uint32 = 0x504D5530 // "PMU0"

// headerSize is magic(4) + size(2) + crc16(2), word-aligned.
const headerSize = 8

// Store persists a single config blob into one flash sector via hw.
type Store struct {
	hw hwadapter.Adapter
}

// New returns a Store backed by hw's flash primitives.
func New(hw hwadapter.Adapter) *Store { return &Store{hw: hw} }

// Save writes blob into the sector: feed the watchdog, unlock (implicit
// in the adapter contract), erase, feed the watchdog again, then write
// the header and payload word-by-word (spec §4.I). Erase can take
// hundreds of milliseconds, hence the watchdog feed on both sides of
// it. On any write failure the prior persisted image is left
// unspecified (a torn write); callers fall back to the in-RAM graph
// already running, which Save never touches.
func (s *Store) Save(blob []byte) error {
	if len(blob) > engineconf.MaxConfigBlob {
		return ErrTooLarge
	}

	s.hw.WatchdogFeed()
	if err := s.hw.FlashEraseSector(); err != nil {
		return err
	}
	s.hw.WatchdogFeed()

	padded := (len(blob) + 3) &^ 3
	var header [headerSize]byte
	binary.LittleEndian.PutUint32(header[0:4], Magic)
	binary.LittleEndian.PutUint16(header[4:6], uint16(len(blob)))
	binary.LittleEndian.PutUint16(header[6:8], crc16(blob))

	if err := writeWords(s.hw, 0, header[:]); err != nil {
		return err
	}

	var padBuf [engineconf.MaxConfigBlob]byte
	copy(padBuf[:], blob)
	if err := writeWords(s.hw, headerSize, padBuf[:padded]); err != nil {
		return err
	}
	return nil
}

// Load reads and verifies the persisted image. ok is false if the
// sector is empty (magic mismatch), the size is out of range, or the
// CRC does not match the payload — in every such case the caller must
// not activate the returned (nil) blob (spec §4.I).
func (s *Store) Load() (blob []byte, ok bool) {
	header := s.hw.FlashRead(0, headerSize)
	if len(header) < headerSize {
		return nil, false
	}
	magic := binary.LittleEndian.Uint32(header[0:4])
	if magic != Magic {
		return nil, false
	}
	size := binary.LittleEndian.Uint16(header[4:6])
	wantCRC := binary.LittleEndian.Uint16(header[6:8])
	if int(size) > engineconf.MaxConfigBlob {
		return nil, false
	}

	payload := s.hw.FlashRead(headerSize, int(size))
	if len(payload) != int(size) {
		return nil, false
	}
	if crc16(payload) != wantCRC {
		return nil, false
	}
	return payload, true
}

// Erase wipes the sector, used by CLEAR_CONFIG (spec §4.G) so the next
// boot starts with no persisted graph.
func (s *Store) Erase() error {
	s.hw.WatchdogFeed()
	err := s.hw.FlashEraseSector()
	s.hw.WatchdogFeed()
	return err
}

func writeWords(hw hwadapter.Adapter, addr uint32, data []byte) error {
	for i := 0; i+4 <= len(data); i += 4 {
		word := binary.LittleEndian.Uint32(data[i : i+4])
		if err := hw.FlashWriteWord(addr+uint32(i), word); err != nil {
			return err
		}
	}
	return nil
}

// crc16 is CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF), chosen for a
// compact bit-loop implementation with no lookup table — the blob is
// small and this runs only on Save/Load, never per-tick.
func crc16(data []byte) uint16 {
	var crc uint16 = 0xFFFF
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// ErrTooLarge is returned by Save when blob exceeds engineconf.MaxConfigBlob.
// It is an errcode.Code, the same boundary-error vocabulary cfgcodec uses,
// so a host logging through corelog.Logger sees one consistent code space
// across config-decode and flash failures.
const ErrTooLarge errcode.Code = "flashstore_too_large"
