// Package reservation locks inventory pools in a global order and applies
// stock changes through the locked instances.
package reservation

import (
	"slices"

	"github.com/samber/lo"
)

// ResolveLockOrder returns the distinct pool ids in ascending order. Every
// path that locks more than one pool must acquire them in this order.
func ResolveLockOrder(poolIDs []int64) []int64 {
	ordered := lo.Uniq(poolIDs)
	slices.Sort(ordered)
	return ordered
}
