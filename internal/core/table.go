package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// CellKind identifies what a Cell holds.
type CellKind uint8

const (
	CellMissing CellKind = iota
	CellNumber
	CellText
	CellDate
)

// Cell is a single nullable table value.
type Cell struct {
	Kind   CellKind
	Number float64
	Text   string
	Date   time.Time
}

// Missing returns an empty cell.
func Missing() Cell { return Cell{} }

// NumberCell returns a numeric cell; NaN becomes missing.
func NumberCell(f float64) Cell {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Missing()
	}
	return Cell{Kind: CellNumber, Number: f}
}

// TextCell returns a text cell; empty text becomes missing.
func TextCell(s string) Cell {
	if s == "" {
		return Missing()
	}
	return Cell{Kind: CellText, Text: s}
}

// DateCell returns a date cell.
func DateCell(t time.Time) Cell { return Cell{Kind: CellDate, Date: t} }

// IsMissing reports whether the cell holds no value.
func (c Cell) IsMissing() bool { return c.Kind == CellMissing }

// Float returns the numeric view of the cell. Only numeric cells are valid.
func (c Cell) Float() pgtype.Float8 {
	if c.Kind != CellNumber {
		return pgtype.Float8{}
	}
	return pgtype.Float8{Float64: c.Number, Valid: true}
}

// AsDate coerces the cell to a date. Text is parsed; numbers are never dates.
func (c Cell) AsDate() pgtype.Date {
	switch c.Kind {
	case CellDate:
		return pgtype.Date{Time: c.Date, Valid: true}
	case CellText:
		return ToPgDate(c.Text)
	default:
		return pgtype.Date{}
	}
}

// Value returns the JSON-friendly form of the cell: nil, float64, string,
// or an ISO date string.
func (c Cell) Value() any {
	switch c.Kind {
	case CellNumber:
		return c.Number
	case CellText:
		return c.Text
	case CellDate:
		return c.Date.Format(isoDate)
	default:
		return nil
	}
}

// String renders the cell for delimited text export.
func (c Cell) String() string {
	switch c.Kind {
	case CellNumber:
		return formatFloat(c.Number)
	case CellText:
		return c.Text
	case CellDate:
		return formatDate(c.Date)
	default:
		return ""
	}
}

// ColumnKind is the inferred type of a whole column.
type ColumnKind uint8

const (
	ColumnText ColumnKind = iota
	ColumnNumber
	ColumnDate
)

// Column is a named, typed sequence of cells.
type Column struct {
	Name  string
	Kind  ColumnKind
	Cells []Cell
}

// Table is an ordered set of equally long columns.
type Table struct {
	columns []*Column
	index   map[string]int
}

// NewTable builds a table from columns. All columns must have the same length.
func NewTable(columns ...*Column) *Table {
	t := &Table{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		t.addColumn(c)
	}
	return t
}

func (t *Table) addColumn(c *Column) {
	t.index[c.Name] = len(t.columns)
	t.columns = append(t.columns, c)
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// HasColumn reports whether name is a column of the table.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int { return len(t.columns) }

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	if len(t.columns) == 0 {
		return 0
	}
	return len(t.columns[0].Cells)
}

// Record returns row i as an ordered record.
func (t *Table) Record(i int) Record {
	rec := Record{Columns: t.Columns(), Values: make([]any, len(t.columns))}
	for j, c := range t.columns {
		rec.Values[j] = c.Cells[i].Value()
	}
	return rec
}

// Select projects the table to the named columns, in the given order.
// Cells are copied, so the result can be mutated independently.
func (t *Table) Select(names ...string) (*Table, error) {
	out := NewTable()
	for _, name := range names {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
		}
		out.addColumn(&Column{Name: c.Name, Kind: c.Kind, Cells: append([]Cell(nil), c.Cells...)})
	}
	return out, nil
}

// Rows returns a new table holding the given row positions, in order.
func (t *Table) Rows(positions []int) *Table {
	out := NewTable()
	for _, c := range t.columns {
		cells := make([]Cell, len(positions))
		for i, p := range positions {
			cells[i] = c.Cells[p]
		}
		out.addColumn(&Column{Name: c.Name, Kind: c.Kind, Cells: cells})
	}
	return out
}

// Filter keeps the rows for which keep returns true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	var positions []int
	for i := 0; i < t.NumRows(); i++ {
		if keep(i) {
			positions = append(positions, i)
		}
	}
	return t.Rows(positions)
}

// Head returns at most the first n rows.
func (t *Table) Head(n int) *Table {
	if n > t.NumRows() {
		n = t.NumRows()
	}
	if n < 0 {
		n = 0
	}
	positions := make([]int, n)
	for i := range positions {
		positions[i] = i
	}
	return t.Rows(positions)
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out, _ := t.Select(t.Columns()...)
	return out
}

// Record is one table row. It marshals to a JSON object whose keys keep
// the table's column order.
type Record struct {
	Columns []string
	Values  []any
}

// Get returns the value for column, or nil if absent.
func (r Record) Get(column string) any {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i]
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	return marshalOrdered(r.Columns, r.Values)
}

func marshalOrdered(keys []string, values []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
