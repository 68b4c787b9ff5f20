package ordering

import (
	"fmt"
	"sort"

	"taskboard/internal/model"
)

// CheckDense reports the first violation of the 0..n-1 invariant in one
// column. The tasks may be in any order.
func CheckDense(tasks []model.Task) error {
	indexes := make([]int, len(tasks))
	for i, t := range tasks {
		indexes[i] = t.OrderIndex
	}
	sort.Ints(indexes)
	for want, got := range indexes {
		if got != want {
			return fmt.Errorf("expected index %d, found %d", want, got)
		}
	}
	return nil
}
