package main

// Embedded per-board hardware inventories, keyed by board name, in the
// same style as the teacher's services/config.embeddedConfigs: a raw
// JSON literal populated at build time rather than read from a
// filesystem that doesn't exist on the MCU.
const boardInventoryPico = `{
  "digital": [
    {"index": 0, "name": "ignition_sense"},
    {"index": 1, "name": "door_sense"}
  ],
  "analog": [
    {"index": 0, "name": "battery_voltage"},
    {"index": 1, "name": "supply_current"}
  ],
  "outputs": [
    {"index": 0, "name": "main_relay"},
    {"index": 1, "name": "aux_relay"},
    {"index": 2, "name": "pump_relay"}
  ]
}`

var boardInventories = map[string]string{
	"pico": boardInventoryPico,
}
