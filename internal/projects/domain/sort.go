package domain

import "sort"

// SortNewestFirst orders projects by Timestamp descending, keeping the
// input order for equal timestamps.
func SortNewestFirst(items []Project) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp > items[j].Timestamp
	})
}
