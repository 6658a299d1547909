package core

// decode.go turns uploaded bytes into raw string grids and typed tables.
//
// Two encodings are accepted, chosen by file extension: ".xlsx" workbooks
// (every sheet, first row is the header) and delimited text for anything
// else. Decoding never infers shape; that is left to the dataset and
// input-file parsers.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format is the encoding of an uploaded or exported file.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat picks the decoder for a file name. Only ".xlsx" selects the
// workbook decoder; everything else is read as delimited text.
func DetectFormat(filename string) Format {
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}

// ParseFormat validates an export format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
}

// rawSheet is an undecorated grid: a header row plus data rows, all padded
// to the header width.
type rawSheet struct {
	Name   string
	Header []string
	Rows   [][]string
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeCSV reads delimited text. Blank lines are skipped; short rows are
// padded, rows wider than the header are rejected.
func decodeCSV(data []byte) (rawSheet, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	data = bytes.ToValidUTF8(data, []byte("�"))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	var sheet rawSheet
	line := 0
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rawSheet{}, err
		}
		line++

		if sheet.Header == nil {
			sheet.Header = record
			continue
		}
		if isBlankRow(record) {
			continue
		}
		if len(record) > len(sheet.Header) {
			return rawSheet{}, fmt.Errorf("line %d: expected %d fields, saw %d", line, len(sheet.Header), len(record))
		}
		sheet.Rows = append(sheet.Rows, padRow(record, len(sheet.Header)))
	}

	if sheet.Header == nil {
		return rawSheet{}, errors.New("no columns to parse from file")
	}
	return sheet, nil
}

// decodeWorkbook reads every sheet of an xlsx workbook in workbook order.
// A sheet without a header row decodes to an empty header. The header is
// widened with blank labels to the longest row, so cells past the last
// named column are kept under generated names.
func decodeWorkbook(data []byte) ([]rawSheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sheets []rawSheet
	for _, name := range f.GetSheetList() {
		rows, err := readSheetRows(f, name)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}

		width := 0
		for _, row := range rows {
			width = max(width, len(row))
		}

		sheet := rawSheet{Name: name}
		for i, row := range rows {
			if i == 0 {
				sheet.Header = padRow(row, width)
				continue
			}
			if isBlankRow(row) {
				continue
			}
			sheet.Rows = append(sheet.Rows, padRow(row, width))
		}
		sheets = append(sheets, sheet)
	}
	return sheets, nil
}

// readSheetRows merges formatted and raw cell values: formatted text is kept
// when it reads as a date, otherwise the raw value is used so that numbers
// keep their full precision regardless of the cell's number format.
func readSheetRows(f *excelize.File, sheet string) ([][]string, error) {
	formatted, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}

	for i, row := range formatted {
		if i >= len(raw) {
			break
		}
		for j, cell := range row {
			if j >= len(raw[i]) {
				break
			}
			if !ToPgDate(cell).Valid {
				row[j] = raw[i][j]
			}
		}
	}
	return formatted, nil
}

// decodeFirstSheet decodes the default sheet of a file: the CSV body, or the
// first worksheet of a workbook. A readable workbook whose first sheet is
// blank is empty input, not a parse failure.
func decodeFirstSheet(data []byte, filename string) (rawSheet, error) {
	if DetectFormat(filename) == FormatXLSX {
		sheets, err := decodeWorkbook(data)
		if err != nil {
			return rawSheet{}, parseError(filename, err)
		}
		if len(sheets) == 0 || len(sheets[0].Header) == 0 {
			return rawSheet{}, fmt.Errorf("%s: %w", filename, ErrEmptyInput)
		}
		return sheets[0], nil
	}

	sheet, err := decodeCSV(data)
	if err != nil {
		return rawSheet{}, parseError(filename, err)
	}
	return sheet, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}

// headerNames cleans header labels: blank labels become "Unnamed: N" and
// repeated labels get a ".1", ".2" suffix so every column name is unique.
func headerNames(header []string, trim bool) []string {
	names := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		if trim {
			h = strings.TrimSpace(h)
		}
		if strings.TrimSpace(h) == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for n := 1; seen[name]; n++ {
			name = h + "." + strconv.Itoa(n)
		}
		seen[name] = true
		names[i] = name
	}
	return names
}

// buildTable types each column: a column whose non-empty values all parse as
// numbers becomes numeric (including an all-empty column), anything else is
// text. Empty cells are missing in both cases.
func buildTable(sheet rawSheet) *Table {
	names := headerNames(sheet.Header, false)
	t := NewTable()

	for j, name := range names {
		numeric := true
		for _, row := range sheet.Rows {
			if CleanCell(row[j]) != "" && !ToPgFloat8(row[j]).Valid {
				numeric = false
				break
			}
		}

		col := &Column{Name: name, Kind: ColumnText, Cells: make([]Cell, len(sheet.Rows))}
		if numeric {
			col.Kind = ColumnNumber
		}
		for i, row := range sheet.Rows {
			switch {
			case strings.TrimSpace(row[j]) == "":
				col.Cells[i] = Missing()
			case numeric:
				col.Cells[i] = NumberCell(ToPgFloat8(row[j]).Float64)
			default:
				col.Cells[i] = TextCell(row[j])
			}
		}
		t.addColumn(col)
	}
	return t
}
