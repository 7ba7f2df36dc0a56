package enginecore

// edgeFired reports whether prev->cur crosses the selected edge.
func edgeFired(edge Edge, prev, cur bool) bool {
	switch edge {
	case EdgeRising:
		return !prev && cur
	case EdgeFalling:
		return prev && !cur
	case EdgeBoth:
		return prev != cur
	default:
		return false
	}
}

func (e *Engine) evalLogic(entry *NodeDefEntry, st *nodeState, nowMs uint32) {
	def := &entry.Logic
	a := e.readInt(def.InputA)
	b := e.readInt(def.InputB)
	aBool := a > 0
	bBool := b > 0

	var out bool

	switch def.Op {
	case LogicIsTrue:
		out = aBool
	case LogicIsFalse:
		out = !aBool
	case LogicAnd:
		out = aBool && bBool
	case LogicOr:
		out = aBool || bBool
	case LogicXor:
		out = aBool != bBool
	case LogicNot:
		out = !aBool
	case LogicNand:
		out = !(aBool && bBool)
	case LogicNor:
		out = !(aBool || bBool)
	case LogicEqual:
		out = a == def.Threshold
	case LogicNotEqual:
		out = a != def.Threshold
	case LogicLess:
		out = a < def.Threshold
	case LogicGreater:
		out = a > def.Threshold
	case LogicLessEq:
		out = a <= def.Threshold
	case LogicGreaterEq:
		out = a >= def.Threshold
	case LogicInRange:
		out = a >= def.Lower && a <= def.Upper

	case LogicChanged:
		delta := a - st.prevA
		if delta < 0 {
			delta = -delta
		}
		if delta >= def.Threshold {
			st.changedHoldUntilMs = nowMs + def.OnTimeMs
			st.changedArmed = true
		}
		out = st.changedArmed && nowMs < st.changedHoldUntilMs
		if st.changedArmed && nowMs >= st.changedHoldUntilMs {
			st.changedArmed = false
		}

	case LogicHysteresis:
		if def.Inverted {
			if a <= def.Lower {
				st.latch = true
			} else if a >= def.Upper {
				st.latch = false
			}
		} else {
			if a >= def.Upper {
				st.latch = true
			} else if a <= def.Lower {
				st.latch = false
			}
		}
		out = st.latch

	case LogicSRLatch:
		if !st.seeded {
			st.latch = def.DefaultState
			st.seeded = true
		}
		setCur := e.readBool(def.SetRef)
		resetCur := e.readBool(def.ResetRef)
		setEdge := edgeFired(EdgeRising, st.prevSet, setCur)
		resetEdge := edgeFired(EdgeRising, st.prevReset, resetCur)
		st.prevSet = setCur
		st.prevReset = resetCur
		if setEdge {
			st.latch = true // set has priority
		} else if resetEdge {
			st.latch = false
		}
		out = st.latch

	case LogicToggle:
		if !st.seeded {
			st.latch = def.DefaultState
			st.seeded = true
		}
		toggleCur := e.readBool(def.ToggleRef)
		if edgeFired(def.EdgeSel, st.prevToggle, toggleCur) {
			st.latch = !st.latch
		}
		st.prevToggle = toggleCur
		if e.readBool(def.SetRef) {
			st.latch = true
		}
		if e.readBool(def.ResetRef) {
			st.latch = false
		}
		out = st.latch

	case LogicPulse:
		trig := edgeFired(def.EdgeSel, st.prevPulseTrigger, aBool)
		st.prevPulseTrigger = aBool
		if trig && def.PulseCount > 0 && (!st.pulseActive || def.Retrigger) {
			st.pulseActive = true
			st.pulsesRemaining = def.PulseCount
			st.pulseOn = true
			st.pulseDeadlineMs = nowMs + def.OnTimeMs
		}
		if st.pulseActive && nowMs >= st.pulseDeadlineMs {
			if st.pulseOn {
				st.pulseOn = false
				st.pulseDeadlineMs = nowMs + def.OnTimeMs // 50% duty
				st.pulsesRemaining--
				if st.pulsesRemaining == 0 {
					st.pulseActive = false
				}
			} else {
				st.pulseOn = true
				st.pulseDeadlineMs = nowMs + def.OnTimeMs
			}
		}
		out = st.pulseActive && st.pulseOn

	case LogicFlash:
		gate := aBool
		if gate && st.flashGateWasLow {
			st.flashOn = false // starts OFF when the gate input goes true
			st.flashDeadlineMs = nowMs + def.OffTimeMs
		}
		st.flashGateWasLow = !gate
		if gate {
			if nowMs >= st.flashDeadlineMs {
				st.flashOn = !st.flashOn
				if st.flashOn {
					st.flashDeadlineMs = nowMs + def.OnTimeMs
				} else {
					st.flashDeadlineMs = nowMs + def.OffTimeMs
				}
			}
			out = st.flashOn
		} else {
			out = false
		}

	case LogicEdgeRising:
		out = edgeFired(EdgeRising, st.prevEdgeInput > 0, aBool)
	case LogicEdgeFalling:
		out = edgeFired(EdgeFalling, st.prevEdgeInput > 0, aBool)
	}

	st.prevA = a
	st.prevB = b
	st.prevEdgeInput = a
	e.writeBool(entry.Output, out)
}
