// Package engineconf holds the compile-time capacities for every fixed-size
// table in the core, sized from spec §3's maxima plus ~30% slack so the
// binary's memory footprint is predictable (spec §9, "Fixed-capacity
// collections").
package engineconf

const (
	// MaxChannels is the channel store's total capacity (spec §4.B).
	MaxChannels = 256

	// MaxVirtual bounds how many virtual channels a single config blob
	// may define.
	MaxVirtual = 196

	// MaxOutputs bounds the number of power-output bindings.
	MaxOutputs = 64

	// MaxNameLen is the bound on a channel's human name (spec §3).
	MaxNameLen = 32

	// MaxMathInputs bounds a Math node's input ref list (spec §3, "up to ~8").
	MaxMathInputs = 8

	// MaxFilterWindow bounds a Filter node's ring buffer (spec §3, "<=16").
	MaxFilterWindow = 16

	// MaxLookupPoints bounds a Math LookupN node's breakpoint table.
	MaxLookupPoints = 16

	// MaxConfigBlob bounds the size of an in-RAM configuration buffer.
	MaxConfigBlob = 8192

	// TXStagingBufferSize is the codec's bounded TX staging buffer (spec §4.F, "~600 bytes").
	TXStagingBufferSize = 600

	// RXRingSize is the codec's bounded RX ring used while a TX is in flight (spec §4.F, "~256 bytes").
	RXRingSize = 256

	// MaxTelemetryVirtualChannels bounds the number of (id,value) records
	// appended to a telemetry frame (spec §4.H, "up to 16").
	MaxTelemetryVirtualChannels = 16

	// MaxChunkPayload is the largest payload a single GET_CONFIG/LOAD_BINARY
	// chunk may carry (spec §4.G, "up to 251 bytes" after the 4-byte chunk header).
	MaxChunkPayload = 251

	// TickHz is the nominal control-loop rate (spec §1).
	TickHz = 1000
)
