package core

// InferDateColumn picks the column whose values most often parse as dates.
// The first column with the strictly highest parsed fraction wins, so ties
// go to the leftmost column. It never fails: with no parseable column at
// all the first column is returned. The table must have at least one column.
func InferDateColumn(t *Table) string {
	best := ""
	bestScore := -1.0
	for _, c := range t.columns {
		if score := dateFraction(c); score > bestScore {
			best, bestScore = c.Name, score
		}
	}
	return best
}

func dateFraction(c *Column) float64 {
	if len(c.Cells) == 0 {
		return 0
	}
	parsed := 0
	for _, cell := range c.Cells {
		if cell.AsDate().Valid {
			parsed++
		}
	}
	return float64(parsed) / float64(len(c.Cells))
}

// coerceDates converts a column to dates in place. Unparseable values become
// missing.
func coerceDates(c *Column) {
	for i, cell := range c.Cells {
		if d := cell.AsDate(); d.Valid {
			c.Cells[i] = DateCell(d.Time)
		} else {
			c.Cells[i] = Missing()
		}
	}
	c.Kind = ColumnDate
}

// NumericColumns lists the numeric columns in table order.
func NumericColumns(t *Table) []string {
	var names []string
	for _, c := range t.columns {
		if c.Kind == ColumnNumber {
			names = append(names, c.Name)
		}
	}
	return names
}
