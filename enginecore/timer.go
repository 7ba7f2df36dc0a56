package enginecore

func (e *Engine) evalTimer(entry *NodeDefEntry, st *nodeState, nowMs uint32) {
	def := &entry.Timer

	startCur := e.readBool(def.StartRef)
	stopCur := e.readBool(def.StopRef)
	startEdge := edgeFired(def.StartEdge, st.prevStart, startCur)
	stopEdge := edgeFired(def.StopEdge, st.prevStop, stopCur)
	st.prevStart = startCur
	st.prevStop = stopCur

	if startEdge && !st.timerRunning {
		st.timerRunning = true
		st.timerStartMs = nowMs
	}
	if stopEdge && st.timerRunning {
		st.timerRunning = false
		st.timerStoppedAt = elapsedSince(st.timerStartMs, nowMs, def.LimitMs)
	}

	var elapsed uint32
	if st.timerRunning {
		elapsed = elapsedSince(st.timerStartMs, nowMs, def.LimitMs)
	} else {
		elapsed = st.timerStoppedAt
	}

	var out int32
	if def.Mode == TimerCountDown {
		rem := int32(def.LimitMs) - int32(elapsed)
		if rem < 0 {
			rem = 0
		}
		out = rem
	} else {
		out = int32(elapsed)
	}

	e.writeInt(entry.Output, out)
	e.writeBool(entry.Second, st.timerRunning)
}

// elapsedSince computes now-start saturated at limit (spec §4.D:
// "saturate at limit").
func elapsedSince(start, now, limit uint32) uint32 {
	var d uint32
	if now >= start {
		d = now - start
	}
	if d > limit {
		d = limit
	}
	return d
}
