// Package mathx provides small generic numeric helpers used by the
// channel engine's Math nodes (Min, Max, Clamp, LookupN). Ported from the
// teacher's x/mathx package and generalized with
// golang.org/x/exp/constraints; the output driver does its duty/permille
// arithmetic without it.
package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Between reports lo <= v && v <= hi (order-insensitive).
func Between[T constraints.Ordered](v, lo, hi T) bool {
	if hi < lo {
		lo, hi = hi, lo
	}
	return v >= lo && v <= hi
}

// Min returns the lesser of a and b.
func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// Max returns the greater of a and b.
func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// Abs returns the absolute value of a signed integer.
func Abs[T ~int | ~int8 | ~int16 | ~int32 | ~int64](x T) T {
	if x < 0 {
		return -x
	}
	return x
}

// LerpI32 linearly interpolates between breakpoints (x0,y0) and (x1,y1)
// at x, using 64-bit intermediates to avoid overflow. Used by the Math
// LookupN node (spec §4.D).
func LerpI32(x, x0, y0, x1, y1 int32) int32 {
	if x1 == x0 {
		return y0
	}
	num := int64(y1-y0) * int64(x-x0)
	den := int64(x1 - x0)
	return y0 + int32(num/den)
}
