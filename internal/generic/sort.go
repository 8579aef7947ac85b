package generic

import (
	"sort"

	"golang.org/x/exp/constraints"
)

// SortSliceBy sorts arr in ascending order of the key derived from each
// element.
func SortSliceBy[T any, K constraints.Ordered](arr []T, key func(T) K) {
	sort.Slice(arr, func(i, j int) bool {
		return key(arr[i]) < key(arr[j])
	})
}
