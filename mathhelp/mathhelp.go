package mathhelp

import "golang.org/x/exp/constraints"

// Pow2 returns 2^n, e.g. the number of tiles along one axis of a quad tree level.
func Pow2[T constraints.Unsigned](n T) T {
	return 1 << n
}
