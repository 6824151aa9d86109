// Package safeconv narrows integers whose range is bounded by the program
// rather than by their type, such as slice indexes stored as uint32 slots.
package safeconv

import (
	"fmt"
	"math"
)

type signed interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}

// Uint32 converts v, reporting false when it is negative or above
// math.MaxUint32.
func Uint32[T signed](v T) (uint32, bool) {
	if v < 0 || int64(v) > math.MaxUint32 {
		return 0, false
	}

	return uint32(v), true
}

// MustUint32 is Uint32 for values that cannot be out of range; it panics
// otherwise.
func MustUint32[T signed](v T) uint32 {
	u, ok := Uint32(v)
	if !ok {
		panic(fmt.Sprintf("safeconv: %d does not fit in uint32", int64(v)))
	}

	return u
}
