// Package cfgcodec implements the config decoder (spec §4.C): parsing a
// compact TLV-style binary configuration blob into channel definitions
// and output bindings, and the inverse Encode used by tests and the
// host bench tool to construct well-formed blobs. Decode alone is the
// production path; devices never call Encode.
package cfgcodec

import (
	"encoding/binary"

	"pmucore/channelid"
	"pmucore/engineconf"
	"pmucore/enginecore"
	"pmucore/errcode"
	"pmucore/outputdriver"
	"pmucore/store"
)

// FormatVersion is the only blob version this decoder accepts.
const FormatVersion = 1

// Record tags. 0x00 is reserved (never a valid tag) so a zeroed or
// truncated blob fails fast rather than silently decoding as Logic.
const (
	tagLogic  = 0x10
	tagMath   = 0x11
	tagTimer  = 0x12
	tagFilter = 0x13
	tagSwitch = 0x14
	tagOutput = 0x20
)

// Decode failures are errcode.Code values (spec §7: "Config errors...
// reject the blob, keep prior graph, return BINARY_ACK with ok=0") so
// callers logging through corelog.Logger get the same stable,
// alloc-free vocabulary the teacher uses at every driver/bus boundary.
const (
	// ErrBadVersion is returned when the blob's version byte does not
	// match FormatVersion.
	ErrBadVersion errcode.Code = "cfgcodec_bad_version"
	// ErrTruncated is returned when the blob ends mid-record.
	ErrTruncated errcode.Code = "cfgcodec_truncated"
	// ErrBadTag is returned for an unrecognized record tag.
	ErrBadTag errcode.Code = "cfgcodec_bad_tag"
	// ErrTooManyChannels is returned when a blob defines more virtual
	// channels than engineconf.MaxVirtual.
	ErrTooManyChannels errcode.Code = "cfgcodec_too_many_channels"
	// ErrTooManyOutputs is returned when a blob defines more output
	// bindings than engineconf.MaxOutputs.
	ErrTooManyOutputs errcode.Code = "cfgcodec_too_many_outputs"
)

// reader walks a blob, tracking position and surfacing ErrTruncated
// rather than panicking on a short read (spec §4.D: "the engine never
// panics" applies just as much to the decoder it feeds).
type reader struct {
	b   []byte
	pos int
}

func (r *reader) u8() (uint8, error) {
	if r.pos+1 > len(r.b) {
		return 0, ErrTruncated
	}
	v := r.b[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if r.pos+2 > len(r.b) {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint16(r.b[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.pos+4 > len(r.b) {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint32(r.b[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *reader) ref() (channelid.ID, error) {
	v, err := r.u16()
	return channelid.ID(v), err
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.b) {
		return nil, ErrTruncated
	}
	v := r.b[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *reader) str(n int) (string, error) {
	b, err := r.bytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) eof() bool { return r.pos >= len(r.b) }

// rawRecord is one TLV record after a single structural pass, still
// carrying unresolved refs exactly as they appeared in the blob (either
// a physical runtime id or a jsonID awaiting lookup).
type rawRecord struct {
	tag    byte
	jsonID uint16
	name   string
	min    int32
	max    int32
	enabled bool

	kind enginecore.NodeKind
	logic  enginecore.LogicDef
	math   enginecore.MathDef
	timer  enginecore.TimerDef
	filter enginecore.FilterDef
	swtch  enginecore.SwitchDef

	binding outputdriver.Binding
}

// parseRecords performs the single structural pass over the blob: every
// record's fixed fields and variant payload are decoded, but reference
// fields are left as the raw uint16 the blob carried. No store or
// engine state is touched here, so a structural error partway through
// never leaves anything mutated (spec §4.C: "no partial load").
func parseRecords(blob []byte) ([]rawRecord, error) {
	r := &reader{b: blob}

	ver, err := r.u8()
	if err != nil {
		return nil, err
	}
	if ver != FormatVersion {
		return nil, ErrBadVersion
	}
	count, err := r.u16()
	if err != nil {
		return nil, err
	}

	recs := make([]rawRecord, 0, count)
	for i := uint16(0); i < count; i++ {
		rec, err := parseOneRecord(r)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func parseOneRecord(r *reader) (rawRecord, error) {
	var rec rawRecord

	tag, err := r.u8()
	if err != nil {
		return rec, err
	}
	rec.tag = tag

	jsonID, err := r.u16()
	if err != nil {
		return rec, err
	}
	rec.jsonID = jsonID

	nameLen, err := r.u8()
	if err != nil {
		return rec, err
	}
	name, err := r.str(int(nameLen))
	if err != nil {
		return rec, err
	}
	rec.name = name

	rec.min, err = r.i32()
	if err != nil {
		return rec, err
	}
	rec.max, err = r.i32()
	if err != nil {
		return rec, err
	}
	en, err := r.u8()
	if err != nil {
		return rec, err
	}
	rec.enabled = en != 0

	switch tag {
	case tagLogic:
		rec.kind = enginecore.KindLogic
		if err := parseLogic(r, &rec.logic); err != nil {
			return rec, err
		}
	case tagMath:
		rec.kind = enginecore.KindMath
		if err := parseMath(r, &rec.math); err != nil {
			return rec, err
		}
	case tagTimer:
		rec.kind = enginecore.KindTimer
		if err := parseTimer(r, &rec.timer); err != nil {
			return rec, err
		}
	case tagFilter:
		rec.kind = enginecore.KindFilter
		if err := parseFilter(r, &rec.filter); err != nil {
			return rec, err
		}
	case tagSwitch:
		rec.kind = enginecore.KindSwitch
		if err := parseSwitch(r, &rec.swtch); err != nil {
			return rec, err
		}
	case tagOutput:
		if err := parseOutput(r, &rec.binding); err != nil {
			return rec, err
		}
	default:
		return rec, ErrBadTag
	}
	return rec, nil
}

func parseLogic(r *reader, d *enginecore.LogicDef) (err error) {
	var op uint8
	if op, err = r.u8(); err != nil {
		return err
	}
	d.Op = enginecore.LogicOp(op)
	if d.InputA, err = r.ref(); err != nil {
		return err
	}
	if d.InputB, err = r.ref(); err != nil {
		return err
	}
	if d.Threshold, err = r.i32(); err != nil {
		return err
	}
	if d.Upper, err = r.i32(); err != nil {
		return err
	}
	if d.Lower, err = r.i32(); err != nil {
		return err
	}
	on, err := r.u32()
	if err != nil {
		return err
	}
	d.OnTimeMs = on
	off, err := r.u32()
	if err != nil {
		return err
	}
	d.OffTimeMs = off
	delay, err := r.u32()
	if err != nil {
		return err
	}
	d.DelayMs = delay
	inv, err := r.u8()
	if err != nil {
		return err
	}
	d.Inverted = inv != 0
	edge, err := r.u8()
	if err != nil {
		return err
	}
	d.EdgeSel = enginecore.Edge(edge)
	if d.SetRef, err = r.ref(); err != nil {
		return err
	}
	if d.ResetRef, err = r.ref(); err != nil {
		return err
	}
	if d.ToggleRef, err = r.ref(); err != nil {
		return err
	}
	def, err := r.u8()
	if err != nil {
		return err
	}
	d.DefaultState = def != 0
	pc, err := r.u16()
	if err != nil {
		return err
	}
	d.PulseCount = pc
	retrig, err := r.u8()
	if err != nil {
		return err
	}
	d.Retrigger = retrig != 0
	return nil
}

func parseMath(r *reader, d *enginecore.MathDef) error {
	op, err := r.u8()
	if err != nil {
		return err
	}
	d.Op = enginecore.MathOp(op)

	n, err := r.u8()
	if err != nil {
		return err
	}
	if int(n) > engineconf.MaxMathInputs {
		n = engineconf.MaxMathInputs
	}
	d.NumInputs = n
	for i := 0; i < int(n); i++ {
		ref, err := r.ref()
		if err != nil {
			return err
		}
		d.Inputs[i] = ref
	}

	if d.Constant, err = r.i32(); err != nil {
		return err
	}
	if d.ClampMin, err = r.i32(); err != nil {
		return err
	}
	if d.ClampMax, err = r.i32(); err != nil {
		return err
	}

	nl, err := r.u8()
	if err != nil {
		return err
	}
	if int(nl) > engineconf.MaxLookupPoints {
		nl = engineconf.MaxLookupPoints
	}
	d.NumLookup = nl
	for i := 0; i < int(nl); i++ {
		x, err := r.i32()
		if err != nil {
			return err
		}
		y, err := r.i32()
		if err != nil {
			return err
		}
		d.Lookup[i] = enginecore.LookupPoint{X: x, Y: y}
	}
	return nil
}

func parseTimer(r *reader, d *enginecore.TimerDef) (err error) {
	if d.StartRef, err = r.ref(); err != nil {
		return err
	}
	if d.StopRef, err = r.ref(); err != nil {
		return err
	}
	se, err := r.u8()
	if err != nil {
		return err
	}
	d.StartEdge = enginecore.Edge(se)
	te, err := r.u8()
	if err != nil {
		return err
	}
	d.StopEdge = enginecore.Edge(te)
	mode, err := r.u8()
	if err != nil {
		return err
	}
	d.Mode = enginecore.TimerMode(mode)
	limit, err := r.u32()
	if err != nil {
		return err
	}
	d.LimitMs = limit
	return nil
}

func parseFilter(r *reader, d *enginecore.FilterDef) error {
	t, err := r.u8()
	if err != nil {
		return err
	}
	d.Type = enginecore.FilterType(t)
	if d.Input, err = r.ref(); err != nil {
		return err
	}
	w, err := r.u8()
	if err != nil {
		return err
	}
	d.Window = w
	tc, err := r.u32()
	if err != nil {
		return err
	}
	d.TimeConstantMs = tc
	return nil
}

func parseSwitch(r *reader, d *enginecore.SwitchDef) (err error) {
	if d.UpRef, err = r.ref(); err != nil {
		return err
	}
	if d.DownRef, err = r.ref(); err != nil {
		return err
	}
	ue, err := r.u8()
	if err != nil {
		return err
	}
	d.UpEdge = enginecore.Edge(ue)
	de, err := r.u8()
	if err != nil {
		return err
	}
	d.DownEdge = enginecore.Edge(de)
	if d.First, err = r.i32(); err != nil {
		return err
	}
	if d.Last, err = r.i32(); err != nil {
		return err
	}
	if d.Default, err = r.i32(); err != nil {
		return err
	}
	return nil
}

func parseOutput(r *reader, b *outputdriver.Binding) error {
	n, err := r.u8()
	if err != nil {
		return err
	}
	if int(n) > outputdriver.MaxPinsPerBinding {
		n = outputdriver.MaxPinsPerBinding
	}
	b.NumPins = n
	for i := 0; i < int(n); i++ {
		pin, err := r.u8()
		if err != nil {
			return err
		}
		b.Pins[i] = pin
	}

	if b.Source, err = r.ref(); err != nil {
		return err
	}
	pe, err := r.u8()
	if err != nil {
		return err
	}
	b.PWMEnable = pe != 0
	fd, err := r.u16()
	if err != nil {
		return err
	}
	b.FixedDutyPct = fd
	if b.DutySource, err = r.ref(); err != nil {
		return err
	}
	freq, err := r.u32()
	if err != nil {
		return err
	}
	b.PWMFrequency = freq

	cl, err := r.u32()
	if err != nil {
		return err
	}
	b.Protect.CurrentLimitMilliA = cl
	il, err := r.u32()
	if err != nil {
		return err
	}
	b.Protect.InrushLimitMilliA = il
	it, err := r.u32()
	if err != nil {
		return err
	}
	b.Protect.InrushTimeMs = it
	rc, err := r.u8()
	if err != nil {
		return err
	}
	b.Protect.RetryCount = rc
	rf, err := r.u8()
	if err != nil {
		return err
	}
	b.Protect.RetryForever = rf != 0
	ss, err := r.u32()
	if err != nil {
		return err
	}
	b.Protect.SoftStartMs = ss
	return nil
}

// Decode parses blob and, if and only if it is structurally valid,
// atomically replaces st's virtual channels, eng's graph and bindings'
// output table (spec §4.C steps 1-3). On any error the previous
// configuration is left untouched. On success it returns the number of
// virtual channels loaded.
func Decode(blob []byte, st *store.Store, eng *enginecore.Engine, bindings *outputdriver.Table) (int, error) {
	recs, err := parseRecords(blob)
	if err != nil {
		return 0, err
	}

	var nChannels int
	for _, rec := range recs {
		if rec.tag != tagOutput {
			nChannels++
		}
	}
	if nChannels > engineconf.MaxVirtual {
		return 0, ErrTooManyChannels
	}
	var nOutputs int
	for _, rec := range recs {
		if rec.tag == tagOutput {
			nOutputs++
		}
	}
	if nOutputs > engineconf.MaxOutputs {
		return 0, ErrTooManyOutputs
	}

	// Pass 1: allocate a runtime virtual id for every distinct jsonID,
	// in first-appearance order, so evaluation order matches how the
	// authoring tool laid the graph out even when a later record
	// redefines an earlier id (spec §4.C: "last-writer-wins").
	jsonToRuntime := make(map[uint16]channelid.ID, len(recs))
	order := make([]uint16, 0, len(recs))
	next := channelid.VirtualFirst
	for _, rec := range recs {
		if rec.tag == tagOutput {
			continue
		}
		if _, ok := jsonToRuntime[rec.jsonID]; ok {
			continue
		}
		jsonToRuntime[rec.jsonID] = next
		order = append(order, rec.jsonID)
		next++
	}

	// Pass 2: resolve every reference field and build the final,
	// deduplicated definition for each jsonID (last record wins).
	resolve := func(ref channelid.ID) channelid.ID {
		if ref == channelid.None {
			return channelid.None
		}
		// A ref names a physical channel only when that channel is
		// registered in st; any other ref is looked up as a jsonID.
		if channelid.IsPhysicalInput(ref) || channelid.IsPhysicalOutput(ref) {
			if _, ok := st.Lookup(ref); ok {
				return ref
			}
		}
		if rt, ok := jsonToRuntime[uint16(ref)]; ok {
			return rt
		}
		return channelid.None
	}

	byID := make(map[uint16]rawRecord, len(order))
	for _, rec := range recs {
		if rec.tag == tagOutput {
			continue
		}
		byID[rec.jsonID] = rec
	}

	st.ClearVirtual()
	bindings.Clear()

	// Timer "running" channels need an id of their own, disjoint from
	// every jsonID-derived primary id; they are allocated from a
	// separate counter starting just past the virtual id range so they
	// never collide with a primary id even in a maximally-full load.
	nextSecondary := channelid.VirtualLast + 1

	defs := make([]enginecore.NodeDefEntry, 0, len(order))
	for _, jid := range order {
		rec := byID[jid]
		runtimeID := jsonToRuntime[jid]

		entry := enginecore.NodeDefEntry{Kind: rec.kind, Output: runtimeID, Second: channelid.None}

		switch rec.kind {
		case enginecore.KindLogic:
			d := rec.logic
			d.InputA = resolve(d.InputA)
			d.InputB = resolve(d.InputB)
			d.SetRef = resolve(d.SetRef)
			d.ResetRef = resolve(d.ResetRef)
			d.ToggleRef = resolve(d.ToggleRef)
			entry.Logic = d
			registerChannel(st, rec, runtimeID, store.FormatBoolean)
		case enginecore.KindMath:
			d := rec.math
			for i := 0; i < int(d.NumInputs); i++ {
				d.Inputs[i] = resolve(d.Inputs[i])
			}
			entry.Math = d
			registerChannel(st, rec, runtimeID, store.FormatScaledMilli)
		case enginecore.KindTimer:
			d := rec.timer
			d.StartRef = resolve(d.StartRef)
			d.StopRef = resolve(d.StopRef)
			entry.Timer = d
			entry.Second = nextSecondary
			nextSecondary++
			registerChannel(st, rec, runtimeID, store.FormatScaledMilli)
			registerSecondary(st, entry.Second, rec.name)
		case enginecore.KindFilter:
			d := rec.filter
			d.Input = resolve(d.Input)
			entry.Filter = d
			registerChannel(st, rec, runtimeID, store.FormatScaledMilli)
		case enginecore.KindSwitch:
			d := rec.swtch
			d.UpRef = resolve(d.UpRef)
			d.DownRef = resolve(d.DownRef)
			entry.Switch = d
			registerChannel(st, rec, runtimeID, store.FormatScaledMilli)
		}
		defs = append(defs, entry)
	}
	eng.Load(defs)

	for _, rec := range recs {
		if rec.tag != tagOutput {
			continue
		}
		b := rec.binding
		b.Source = resolve(b.Source)
		b.DutySource = resolve(b.DutySource)
		bindings.Add(b)
	}

	return len(defs), nil
}

func registerChannel(st *store.Store, rec rawRecord, id channelid.ID, format store.Format) {
	min, max := rec.min, rec.max
	if format == store.FormatBoolean {
		// Boolean channels always snap to {0,1000} on write (spec §3); a
		// blob declaring bounds like 0/1 must not leave the snapped
		// value outside its own declared range.
		min, max = store.BoolFalse, store.BoolTrue
	}
	st.Register(store.Channel{
		ID:        id,
		Name:      rec.name,
		Class:     store.ClassCalculated,
		Direction: store.DirVirtual,
		Format:    format,
		Min:       min,
		Max:       max,
		Enabled:   rec.enabled,
	})
}

func registerSecondary(st *store.Store, id channelid.ID, baseName string) {
	name := baseName + ".running"
	if len(name) > engineconf.MaxNameLen {
		name = name[:engineconf.MaxNameLen]
	}
	st.Register(store.Channel{
		ID:        id,
		Name:      name,
		Class:     store.ClassCalculated,
		Direction: store.DirVirtual,
		Format:    store.FormatBoolean,
		Min:       store.BoolFalse,
		Max:       store.BoolTrue,
		Enabled:   true,
	})
}
