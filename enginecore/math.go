package enginecore

import "pmucore/internal/mathx"

func (e *Engine) evalMath(entry *NodeDefEntry, st *nodeState) {
	def := &entry.Math
	n := int(def.NumInputs)
	if n > len(def.Inputs) {
		n = len(def.Inputs)
	}

	var out int32

	switch def.Op {
	case MathConstant:
		out = def.Constant

	case MathChannel:
		if n > 0 {
			out = e.readInt(def.Inputs[0])
		}

	case MathAdd:
		var sum int32
		for i := 0; i < n; i++ {
			sum += e.readInt(def.Inputs[i])
		}
		out = sum

	case MathSubtract:
		if n > 0 {
			out = e.readInt(def.Inputs[0])
			for i := 1; i < n; i++ {
				out -= e.readInt(def.Inputs[i])
			}
		}

	case MathMultiply:
		out = 1000
		for i := 0; i < n; i++ {
			out = (out * e.readInt(def.Inputs[i])) / 1000
		}

	case MathDivide:
		if n >= 2 {
			a := e.readInt(def.Inputs[0])
			b := e.readInt(def.Inputs[1])
			if b != 0 {
				out = (a * 1000) / b
			} else {
				out = 0
			}
		}

	case MathModulo:
		if n >= 2 {
			a := e.readInt(def.Inputs[0])
			b := e.readInt(def.Inputs[1])
			if b != 0 {
				out = a % b
			} else {
				out = 0
			}
		}

	case MathMin:
		if n > 0 {
			out = e.readInt(def.Inputs[0])
			for i := 1; i < n; i++ {
				out = mathx.Min(out, e.readInt(def.Inputs[i]))
			}
		}

	case MathMax:
		if n > 0 {
			out = e.readInt(def.Inputs[0])
			for i := 1; i < n; i++ {
				out = mathx.Max(out, e.readInt(def.Inputs[i]))
			}
		}

	case MathClamp:
		var v int32
		if n > 0 {
			v = e.readInt(def.Inputs[0])
		}
		out = mathx.Clamp(v, def.ClampMin, def.ClampMax)

	case MathLookupN:
		var x int32
		if n > 0 {
			x = e.readInt(def.Inputs[0])
		}
		out = lookupInterp(def, x)
	}

	e.writeInt(entry.Output, out)
}

// lookupInterp performs linear interpolation over def.Lookup's
// breakpoints (spec §4.D: "Lookup uses linear interpolation over
// breakpoints"). Breakpoints must be supplied in ascending X order by
// the config decoder; x outside the table clamps to the nearest edge
// value.
func lookupInterp(def *MathDef, x int32) int32 {
	n := int(def.NumLookup)
	if n == 0 {
		return 0
	}
	if n == 1 || x <= def.Lookup[0].X {
		return def.Lookup[0].Y
	}
	last := def.Lookup[n-1]
	if x >= last.X {
		return last.Y
	}
	for i := 1; i < n; i++ {
		p0 := def.Lookup[i-1]
		p1 := def.Lookup[i]
		if x <= p1.X {
			return mathx.LerpI32(x, p0.X, p0.Y, p1.X, p1.Y)
		}
	}
	return last.Y
}
