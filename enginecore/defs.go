// Package enginecore implements the channel engine: per-tick evaluation
// of every virtual channel in definition order (spec §4.D). The
// Logic/Math/Timer/Filter/Switch families are modeled as a tagged union
// with a per-variant payload rather than a virtual-method hierarchy, per
// spec §9's design note — this keeps runtime state storable in a flat,
// pre-sized array with no tick-time allocation.
package enginecore

import (
	"pmucore/channelid"
	"pmucore/engineconf"
)

// NodeKind discriminates the virtual-channel variant.
type NodeKind uint8

const (
	KindLogic NodeKind = iota
	KindMath
	KindTimer
	KindFilter
	KindSwitch
)

// Edge selects which transition an edge-sensitive ref reacts to.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

// LogicOp enumerates every Logic node operation (spec §3).
type LogicOp uint8

const (
	LogicIsTrue LogicOp = iota
	LogicIsFalse
	LogicAnd
	LogicOr
	LogicXor
	LogicNot
	LogicNand
	LogicNor
	LogicEqual
	LogicNotEqual
	LogicLess
	LogicGreater
	LogicLessEq
	LogicGreaterEq
	LogicInRange
	LogicChanged
	LogicHysteresis
	LogicSRLatch
	LogicToggle
	LogicPulse
	LogicFlash
	LogicEdgeRising
	LogicEdgeFalling
)

// LogicDef carries every Logic-node parameter; only the fields relevant
// to Op are meaningful (spec §3).
type LogicDef struct {
	Op LogicOp

	InputA channelid.ID
	InputB channelid.ID

	Threshold int32
	Upper     int32
	Lower     int32

	OnTimeMs  uint32
	OffTimeMs uint32
	DelayMs   uint32

	Inverted bool // polarity, for Hysteresis
	EdgeSel  Edge // for Toggle and Pulse

	SetRef    channelid.ID
	ResetRef  channelid.ID
	ToggleRef channelid.ID

	DefaultState bool

	PulseCount uint16
	Retrigger  bool
}

// MathOp enumerates every Number/Math node operation (spec §3).
type MathOp uint8

const (
	MathConstant MathOp = iota
	MathChannel
	MathAdd
	MathSubtract
	MathMultiply
	MathDivide
	MathModulo
	MathMin
	MathMax
	MathClamp
	MathLookupN
)

// LookupPoint is one breakpoint in a Math LookupN table.
type LookupPoint struct {
	X, Y int32
}

// MathDef carries every Math-node parameter (spec §3).
type MathDef struct {
	Op MathOp

	Inputs    [engineconf.MaxMathInputs]channelid.ID
	NumInputs uint8

	Constant int32

	ClampMin int32
	ClampMax int32

	Lookup    [engineconf.MaxLookupPoints]LookupPoint
	NumLookup uint8
}

// TimerMode selects count-up vs count-down (spec §3).
type TimerMode uint8

const (
	TimerCountUp TimerMode = iota
	TimerCountDown
)

// TimerDef carries every Timer-node parameter (spec §3). A Timer node
// produces two channels: a boolean "running" channel (tracked via
// NodeDefEntry.Second) and a scaled elapsed/remaining-ms channel
// (NodeDefEntry.Output).
type TimerDef struct {
	StartRef  channelid.ID
	StopRef   channelid.ID
	StartEdge Edge
	StopEdge  Edge
	Mode      TimerMode
	LimitMs   uint32
}

// FilterType enumerates every Filter node variant (spec §3).
type FilterType uint8

const (
	FilterMovingAverage FilterType = iota
	FilterLowPass
	FilterMinWindow
	FilterMaxWindow
	FilterMedian
)

// FilterDef carries every Filter-node parameter (spec §3).
type FilterDef struct {
	Type           FilterType
	Input          channelid.ID
	Window         uint8 // <= engineconf.MaxFilterWindow
	TimeConstantMs uint32
}

// SwitchDef carries every Switch-node parameter (spec §3).
type SwitchDef struct {
	UpRef   channelid.ID
	DownRef channelid.ID
	UpEdge  Edge
	DownEdge Edge
	First   int32
	Last    int32
	Default int32
}

// NodeDefEntry is one virtual channel's full definition, as registered
// by the config decoder. Output is the channel written by most
// variants; Timer additionally writes Second (the "running"
// channel).
type NodeDefEntry struct {
	Kind   NodeKind
	Output channelid.ID
	Second channelid.ID // Timer's "running" channel; channelid.None otherwise

	Logic  LogicDef
	Math   MathDef
	Timer  TimerDef
	Filter FilterDef
	Switch SwitchDef
}
