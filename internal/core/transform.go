package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TransformMode selects how a series group is reshaped before it is returned.
type TransformMode string

const (
	TransformRaw             TransformMode = "raw"
	TransformMonthlyChange   TransformMode = "monthly_change"
	TransformQuarterlyChange TransformMode = "quarterly_change"
)

// ParseTransformMode validates a mode name. Empty means raw.
func ParseTransformMode(s string) (TransformMode, error) {
	switch m := TransformMode(strings.TrimSpace(s)); m {
	case "":
		return TransformRaw, nil
	case TransformRaw, TransformMonthlyChange, TransformQuarterlyChange:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTransform, s)
	}
}

// Transform projects t to the date column plus series, drops rows without a
// parseable date and sorts by date, keeping the original order among equal
// dates. For the change modes the rows are then bucketed by calendar month
// or quarter end, each series is averaged per bucket, and the difference
// between consecutive buckets is returned. Buckets with no rows do not
// appear, and the first bucket is dropped since it has nothing to diff
// against. t is not modified.
func Transform(t *Table, dateColumn string, series []string, mode TransformMode) (*Table, error) {
	if _, err := ParseTransformMode(string(mode)); err != nil {
		return nil, err
	}

	cols := []string{dateColumn}
	for _, s := range series {
		if s != dateColumn {
			cols = append(cols, s)
		}
	}
	working, err := t.Select(cols...)
	if err != nil {
		return nil, err
	}

	dates, _ := working.Column(dateColumn)
	coerceDates(dates)

	var positions []int
	for i, c := range dates.Cells {
		if !c.IsMissing() {
			positions = append(positions, i)
		}
	}
	sort.SliceStable(positions, func(a, b int) bool {
		return dates.Cells[positions[a]].Date.Before(dates.Cells[positions[b]].Date)
	})
	working = working.Rows(positions)

	switch mode {
	case TransformMonthlyChange:
		return bucketChange(working, dateColumn, monthEnd), nil
	case TransformQuarterlyChange:
		return bucketChange(working, dateColumn, quarterEnd), nil
	default:
		return working, nil
	}
}

func monthEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

func quarterEnd(t time.Time) time.Time {
	last := time.Month((int(t.Month())-1)/3*3 + 3)
	return time.Date(t.Year(), last+1, 0, 0, 0, 0, 0, time.UTC)
}

// bucketChange expects rows sorted by date.
func bucketChange(t *Table, dateColumn string, bucket func(time.Time) time.Time) *Table {
	dates, _ := t.Column(dateColumn)

	var keys []time.Time
	var starts []int
	for i, c := range dates.Cells {
		k := bucket(c.Date)
		if len(keys) == 0 || !k.Equal(keys[len(keys)-1]) {
			keys = append(keys, k)
			starts = append(starts, i)
		}
	}
	starts = append(starts, len(dates.Cells))

	out := NewTable()
	dateOut := &Column{Name: dateColumn, Kind: ColumnDate, Cells: []Cell{}}
	for _, k := range keys[min(1, len(keys)):] {
		dateOut.Cells = append(dateOut.Cells, DateCell(k))
	}
	out.addColumn(dateOut)

	for _, c := range t.columns {
		if c.Name == dateColumn {
			continue
		}
		means := make([]Cell, len(keys))
		for b := range keys {
			means[b] = meanOf(c.Cells[starts[b]:starts[b+1]])
		}
		col := &Column{Name: c.Name, Kind: ColumnNumber, Cells: []Cell{}}
		for b := 1; b < len(means); b++ {
			if means[b].IsMissing() || means[b-1].IsMissing() {
				col.Cells = append(col.Cells, Missing())
				continue
			}
			col.Cells = append(col.Cells, NumberCell(means[b].Number-means[b-1].Number))
		}
		out.addColumn(col)
	}
	return out
}

// meanOf averages the numeric cells; other cells are ignored.
func meanOf(cells []Cell) Cell {
	sum, n := 0.0, 0
	for _, c := range cells {
		if c.Kind == CellNumber {
			sum += c.Number
			n++
		}
	}
	if n == 0 {
		return Missing()
	}
	return NumberCell(sum / float64(n))
}
