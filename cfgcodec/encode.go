package cfgcodec

import (
	"encoding/binary"

	"pmucore/channelid"
	"pmucore/enginecore"
	"pmucore/outputdriver"
)

// Definition is one channel-kind record as an authoring tool would
// emit it: JSONID is whatever small dense number the tool uses, and
// every ref field inside Logic/Math/Timer/Filter/Switch may be either a
// physical runtime id or another Definition's JSONID — Decode resolves
// both the same way (spec §4.C step 3).
type Definition struct {
	JSONID  uint16
	Name    string
	Min     int32
	Max     int32
	Enabled bool

	Kind enginecore.NodeKind

	Logic  enginecore.LogicDef
	Math   enginecore.MathDef
	Timer  enginecore.TimerDef
	Filter enginecore.FilterDef
	Switch enginecore.SwitchDef
}

type writer struct{ b []byte }

func (w *writer) u8(v uint8) { w.b = append(w.b, v) }

func (w *writer) bool8(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

func (w *writer) u16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	w.b = append(w.b, tmp[:]...)
}

func (w *writer) u32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.b = append(w.b, tmp[:]...)
}

func (w *writer) i32(v int32) { w.u32(uint32(v)) }
func (w *writer) ref(id channelid.ID) { w.u16(uint16(id)) }
func (w *writer) str(s string) {
	w.u8(uint8(len(s)))
	w.b = append(w.b, s...)
}

// Encode assembles a TLV blob from defs and bindings, in the exact wire
// format Decode parses. It exists for tests and for the host bench
// tool (cmd/pmu-bench) to construct well-formed blobs; production code
// never calls it.
func Encode(defs []Definition, bindings []outputdriver.Binding) []byte {
	w := &writer{}
	w.u8(FormatVersion)
	w.u16(uint16(len(defs) + len(bindings)))

	for _, d := range defs {
		encodeCommonHeader(w, tagForKind(d.Kind), d.JSONID, d.Name, d.Min, d.Max, d.Enabled)
		switch d.Kind {
		case enginecore.KindLogic:
			encodeLogic(w, &d.Logic)
		case enginecore.KindMath:
			encodeMath(w, &d.Math)
		case enginecore.KindTimer:
			encodeTimer(w, &d.Timer)
		case enginecore.KindFilter:
			encodeFilter(w, &d.Filter)
		case enginecore.KindSwitch:
			encodeSwitch(w, &d.Switch)
		}
	}
	for _, b := range bindings {
		encodeCommonHeader(w, tagOutput, 0, "", 0, 0, true)
		encodeOutput(w, &b)
	}
	return w.b
}

func tagForKind(k enginecore.NodeKind) byte {
	switch k {
	case enginecore.KindLogic:
		return tagLogic
	case enginecore.KindMath:
		return tagMath
	case enginecore.KindTimer:
		return tagTimer
	case enginecore.KindFilter:
		return tagFilter
	case enginecore.KindSwitch:
		return tagSwitch
	default:
		return tagOutput
	}
}

func encodeCommonHeader(w *writer, tag byte, jsonID uint16, name string, min, max int32, enabled bool) {
	w.u8(tag)
	w.u16(jsonID)
	w.str(name)
	w.i32(min)
	w.i32(max)
	w.bool8(enabled)
}

func encodeLogic(w *writer, d *enginecore.LogicDef) {
	w.u8(uint8(d.Op))
	w.ref(d.InputA)
	w.ref(d.InputB)
	w.i32(d.Threshold)
	w.i32(d.Upper)
	w.i32(d.Lower)
	w.u32(d.OnTimeMs)
	w.u32(d.OffTimeMs)
	w.u32(d.DelayMs)
	w.bool8(d.Inverted)
	w.u8(uint8(d.EdgeSel))
	w.ref(d.SetRef)
	w.ref(d.ResetRef)
	w.ref(d.ToggleRef)
	w.bool8(d.DefaultState)
	w.u16(d.PulseCount)
	w.bool8(d.Retrigger)
}

func encodeMath(w *writer, d *enginecore.MathDef) {
	w.u8(uint8(d.Op))
	w.u8(d.NumInputs)
	for i := 0; i < int(d.NumInputs); i++ {
		w.ref(d.Inputs[i])
	}
	w.i32(d.Constant)
	w.i32(d.ClampMin)
	w.i32(d.ClampMax)
	w.u8(d.NumLookup)
	for i := 0; i < int(d.NumLookup); i++ {
		w.i32(d.Lookup[i].X)
		w.i32(d.Lookup[i].Y)
	}
}

func encodeTimer(w *writer, d *enginecore.TimerDef) {
	w.ref(d.StartRef)
	w.ref(d.StopRef)
	w.u8(uint8(d.StartEdge))
	w.u8(uint8(d.StopEdge))
	w.u8(uint8(d.Mode))
	w.u32(d.LimitMs)
}

func encodeFilter(w *writer, d *enginecore.FilterDef) {
	w.u8(uint8(d.Type))
	w.ref(d.Input)
	w.u8(d.Window)
	w.u32(d.TimeConstantMs)
}

func encodeSwitch(w *writer, d *enginecore.SwitchDef) {
	w.ref(d.UpRef)
	w.ref(d.DownRef)
	w.u8(uint8(d.UpEdge))
	w.u8(uint8(d.DownEdge))
	w.i32(d.First)
	w.i32(d.Last)
	w.i32(d.Default)
}

func encodeOutput(w *writer, b *outputdriver.Binding) {
	w.u8(b.NumPins)
	for i := 0; i < int(b.NumPins); i++ {
		w.u8(b.Pins[i])
	}
	w.ref(b.Source)
	w.bool8(b.PWMEnable)
	w.u16(b.FixedDutyPct)
	w.ref(b.DutySource)
	w.u32(b.PWMFrequency)
	w.u32(b.Protect.CurrentLimitMilliA)
	w.u32(b.Protect.InrushLimitMilliA)
	w.u32(b.Protect.InrushTimeMs)
	w.u8(b.Protect.RetryCount)
	w.bool8(b.Protect.RetryForever)
	w.u32(b.Protect.SoftStartMs)
}
