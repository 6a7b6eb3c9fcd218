package util

import (
	"golang.org/x/exp/constraints"
)

type Number interface {
	constraints.Integer | constraints.Float
}

// Scale maps value linearly from [fromLow, fromHigh] into
// [toLow, toHigh]. The input is clamped to its range first, so the
// result never leaves the target range. For integer targets the
// result is truncated toward zero.
func Scale[F Number, T Number](value, fromLow, fromHigh F, toLow, toHigh T) T {
	if fromHigh == fromLow {
		return toLow
	}
	v := float64(value)
	lo, hi := float64(fromLow), float64(fromHigh)
	if lo < hi {
		v = max(lo, min(v, hi))
	} else {
		v = max(hi, min(v, lo))
	}
	return T((v-lo)*(float64(toHigh)-float64(toLow))/(hi-lo) + float64(toLow))
}
