// TinyGo build path: decode the inventory through tinyjson's generic
// Raw/Value walk rather than encoding/json, exactly the pattern
// services/config.publishConfig uses for its embedded device configs.
//
//go:build tinygo

package hwinventory

import (
	"errors"

	"github.com/andreyvit/tinyjson"
)

var errBadInventory = errors.New("hwinventory: malformed inventory JSON")

// Decode parses raw into a Config via tinyjson.
func Decode(raw []byte) (Config, error) {
	r := tinyjson.Raw(raw)
	val := r.Value()
	r.EnsureEOF()

	m, ok := val.(map[string]any)
	if !ok {
		return Config{}, errBadInventory
	}

	var cfg Config
	var err error
	if cfg.Digital, err = slotList(m["digital"]); err != nil {
		return Config{}, err
	}
	if cfg.Analog, err = slotList(m["analog"]); err != nil {
		return Config{}, err
	}
	if cfg.Outputs, err = slotList(m["outputs"]); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func slotList(v any) ([]Slot, error) {
	if v == nil {
		return nil, nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, errBadInventory
	}
	out := make([]Slot, 0, len(arr))
	for _, item := range arr {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, errBadInventory
		}
		idx, ok := obj["index"].(float64)
		if !ok {
			return nil, errBadInventory
		}
		name, _ := obj["name"].(string)
		out = append(out, Slot{Index: uint8(idx), Name: name})
	}
	return out, nil
}
