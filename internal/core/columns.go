package core

import (
	"fmt"
	"slices"
)

// SliceByLabel returns the inclusive run of columns between two labels.
// An empty start or end means the first or last column. Bounds given in
// reverse order are swapped. An empty column list always yields an empty
// result, even when the labels would otherwise be unknown.
func SliceByLabel(columns []string, start, end string) ([]string, error) {
	if len(columns) == 0 {
		return []string{}, nil
	}

	lo, hi := 0, len(columns)-1
	if start != "" {
		if lo = slices.Index(columns, start); lo < 0 {
			return nil, fmt.Errorf("%w: start label %s", ErrUnknownLabel, start)
		}
	}
	if end != "" {
		if hi = slices.Index(columns, end); hi < 0 {
			return nil, fmt.Errorf("%w: end label %s", ErrUnknownLabel, end)
		}
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return slices.Clone(columns[lo : hi+1]), nil
}

// MergeColumns returns base followed by every addition not already present,
// keeping first-seen order. base itself is copied unchanged.
func MergeColumns(base, additions []string) []string {
	merged := append(make([]string, 0, len(base)+len(additions)), base...)
	seen := make(map[string]bool, len(merged))
	for _, c := range base {
		seen[c] = true
	}
	for _, c := range additions {
		if !seen[c] {
			seen[c] = true
			merged = append(merged, c)
		}
	}
	return merged
}
