package core

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Content types of exported files.
const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Preview returns the first limit rows as ordered records. Date cells are
// rendered as YYYY-MM-DD.
func Preview(t *Table, limit int) []Record {
	head := t.Head(limit)
	records := make([]Record, head.NumRows())
	for i := range records {
		records[i] = head.Record(i)
	}
	return records
}

// SeriesPayload is a chart-ready series group: a "dates" array followed by
// one array per series, all aligned by position.
type SeriesPayload struct {
	Dates  []string
	Series []string
	Values [][]any
}

// MarshalJSON implements json.Marshaler, keeping "dates" first and the
// series in request order.
func (p SeriesPayload) MarshalJSON() ([]byte, error) {
	keys := append([]string{"dates"}, p.Series...)
	values := make([]any, 0, len(keys))
	values = append(values, p.Dates)
	for _, v := range p.Values {
		values = append(values, v)
	}
	return marshalOrdered(keys, values)
}

// SerializeSeries builds the payload for dateColumn and series of t.
func SerializeSeries(t *Table, dateColumn string, series []string) (SeriesPayload, error) {
	dates, ok := t.Column(dateColumn)
	if !ok {
		return SeriesPayload{}, fmt.Errorf("%w: %s", ErrUnknownColumn, dateColumn)
	}

	p := SeriesPayload{
		Dates:  make([]string, len(dates.Cells)),
		Series: series,
		Values: make([][]any, len(series)),
	}
	for i, c := range dates.Cells {
		if d := c.AsDate(); d.Valid {
			p.Dates[i] = d.Time.Format(isoDate)
		}
	}
	for j, name := range series {
		col, ok := t.Column(name)
		if !ok {
			return SeriesPayload{}, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
		}
		p.Values[j] = make([]any, len(col.Cells))
		for i, c := range col.Cells {
			p.Values[j][i] = c.Value()
		}
	}
	return p, nil
}

// EncodeCSV writes t as comma-separated text with a header row.
func EncodeCSV(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(t.Columns()); err != nil {
		return nil, err
	}
	record := make([]string, t.NumColumns())
	for i := 0; i < t.NumRows(); i++ {
		for j, c := range t.columns {
			record[j] = c.Cells[i].String()
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NamedTable is one worksheet of an exported workbook.
type NamedTable struct {
	Name  string
	Table *Table
}

// EncodeXLSX writes each table to its own worksheet, in order. Dates are
// written as text so they read back unchanged.
func EncodeXLSX(sheets ...NamedTable) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, errors.New("workbook needs at least one sheet")
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet.Name); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return nil, err
		}
		if err := writeSheet(f, sheet.Name, sheet.Table); err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheet.Name, err)
		}
		if err := f.SetRowStyle(sheet.Name, 1, 1, headerStyle); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, name string, t *Table) error {
	header := make([]any, t.NumColumns())
	for j, c := range t.Columns() {
		header[j] = c
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return err
	}

	row := make([]any, t.NumColumns())
	for i := 0; i < t.NumRows(); i++ {
		for j, c := range t.columns {
			cell := c.Cells[i]
			if cell.Kind == CellDate {
				row[j] = cell.String()
			} else {
				row[j] = cell.Value()
			}
		}
		addr, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, addr, &row); err != nil {
			return err
		}
	}
	return nil
}

// EncodeTable renders a single table in format, naming the sheet for xlsx.
func EncodeTable(t *Table, format Format, sheetName string) ([]byte, string, error) {
	switch format {
	case FormatCSV:
		data, err := EncodeCSV(t)
		return data, ContentTypeCSV, err
	case FormatXLSX:
		data, err := EncodeXLSX(NamedTable{Name: sheetName, Table: t})
		return data, ContentTypeXLSX, err
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
}

// ExportFile is a rendered export with a suggested download name.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
