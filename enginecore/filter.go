package enginecore

import "pmucore/engineconf"

func (e *Engine) evalFilter(entry *NodeDefEntry, st *nodeState) {
	def := &entry.Filter
	x := e.readInt(def.Input)

	window := int(def.Window)
	if window <= 0 {
		window = 1
	}
	if window > engineconf.MaxFilterWindow {
		window = engineconf.MaxFilterWindow
	}

	var out int32

	switch def.Type {
	case FilterLowPass:
		// alpha = 1000 / (1 + time_constant*100), clamped [10,1000] (spec §4.D).
		alpha := int32(1000)
		denom := int32(1) + int32(def.TimeConstantMs)*100
		if denom > 0 {
			alpha = 1000 / denom
		}
		if alpha < 10 {
			alpha = 10
		}
		if alpha > 1000 {
			alpha = 1000
		}
		if !st.emaInit {
			st.emaValue = x
			st.emaInit = true
		} else {
			st.emaValue += (alpha * (x - st.emaValue)) / 1000
		}
		out = st.emaValue

	default:
		pushRing(st, window, x)
		switch def.Type {
		case FilterMovingAverage:
			out = ringMean(st, window)
		case FilterMinWindow:
			out = ringExtremum(st, window, false)
		case FilterMaxWindow:
			out = ringExtremum(st, window, true)
		case FilterMedian:
			out = ringMedian(st, window)
		}
	}

	e.writeInt(entry.Output, out)
}

func pushRing(st *nodeState, window int, x int32) {
	st.ring[st.ringNext] = x
	st.ringNext = (st.ringNext + 1) % uint8(window)
	if int(st.ringLen) < window {
		st.ringLen++
	}
}

func ringMean(st *nodeState, window int) int32 {
	n := int(st.ringLen)
	if n == 0 {
		return 0
	}
	var sum int64
	for i := 0; i < n; i++ {
		sum += int64(st.ring[i])
	}
	return int32(sum / int64(n))
}

func ringExtremum(st *nodeState, window int, max bool) int32 {
	n := int(st.ringLen)
	if n == 0 {
		return 0
	}
	best := st.ring[0]
	for i := 1; i < n; i++ {
		v := st.ring[i]
		if max && v > best {
			best = v
		}
		if !max && v < best {
			best = v
		}
	}
	return best
}

// ringMedian sorts a copy of the ring with a bubble sort, acceptable
// for window <= 16 (spec §4.D).
func ringMedian(st *nodeState, window int) int32 {
	n := int(st.ringLen)
	if n == 0 {
		return 0
	}
	var tmp [engineconf.MaxFilterWindow]int32
	copy(tmp[:n], st.ring[:n])
	for i := 0; i < n-1; i++ {
		for j := 0; j < n-1-i; j++ {
			if tmp[j] > tmp[j+1] {
				tmp[j], tmp[j+1] = tmp[j+1], tmp[j]
			}
		}
	}
	return tmp[n/2]
}
