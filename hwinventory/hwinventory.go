// Package hwinventory decodes the boot-time hardware inventory: which
// physical digital/analog input indices and power-output indices exist
// on this board, and the human name each should be registered under in
// the channel store (spec §4.A, §4.B). It is the JSON counterpart to
// cfgcodec's binary TLV blob — the channel graph itself is never
// described here, only the fixed physical wiring a board brings up
// with.
//
// This file is the host build path (encoding/json, exactly as
// services/config would use on a build without the tinygo tag); see
// hwinventory_tinygo.go for the TinyGo build, which goes through
// tinyjson instead since encoding/json's reflection-heavy decoder pulls
// in more flash than a small MCU budget tolerates.
//
//go:build !tinygo

package hwinventory

import "encoding/json"

// Decode parses raw into a Config. raw is the embedded board inventory
// JSON (see Config for the expected shape).
func Decode(raw []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
