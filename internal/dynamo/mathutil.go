package dynamo

import "golang.org/x/exp/constraints"

// Clamp evaluates max(min(v, hi), lo). With lo > hi the result is lo.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	return max(min(v, hi), lo)
}
