package epic

import (
	"sort"
	"strconv"
)

// CompareIDs orders epic IDs numerically when both parse as integers
// and lexicographically otherwise, so "2" sorts before "10".
func CompareIDs(a, b string) int {
	an, aerr := strconv.Atoi(a)
	bn, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// SortByID sorts epics in place by ID using the numeric-aware comparator.
func SortByID(epics []Epic) {
	sort.SliceStable(epics, func(i, j int) bool {
		return CompareIDs(epics[i].ID, epics[j].ID) < 0
	})
}
