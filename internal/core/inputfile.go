package core

// inputfile.go parses the "input file" shape: one row per named series,
// indexed by a Mnemonic column, with period columns labelled like 2022.1
// and any other columns kept as descriptive metadata.

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

const (
	// IndexColumn names the series-name column every input sheet must have.
	IndexColumn = "Mnemonic"
	// ScenarioColumn is the metadata column tagging a projection scenario.
	ScenarioColumn = "Scenario"
	// DefaultSheet is the sheet read from workbooks and the name given to
	// the single sheet of a delimited file.
	DefaultSheet = "Quarterly"
)

// timeColumnPattern matches period labels: four-digit year, a dot, period.
var timeColumnPattern = regexp.MustCompile(`^\d{4}\.\d+$`)

// IsTimeColumn reports whether a column label names a period.
func IsTimeColumn(label string) bool {
	return timeColumnPattern.MatchString(label)
}

// Sheet is one series table of an input file. Time columns are fixed at
// parse time; only their cells can be edited.
type Sheet struct {
	Name            string
	Series          []string
	TimeColumns     []string
	MetadataColumns []string

	columns  []string                   // non-index columns in file order
	rows     map[string]int             // series name -> first row
	values   map[string][]pgtype.Float8 // time column -> cell per row
	metadata map[string][]pgtype.Text   // metadata column -> cell per row
}

// ParseSheet builds a Sheet from a decoded grid.
func ParseSheet(name string, raw rawSheet) (*Sheet, error) {
	if len(raw.Rows) == 0 {
		return nil, fmt.Errorf("sheet %s: %w", name, ErrEmptyInput)
	}

	header := headerNames(raw.Header, true)
	index := -1
	for j, h := range header {
		if h == IndexColumn {
			index = j
			break
		}
	}
	if index < 0 {
		return nil, fmt.Errorf("sheet %s: %w: %s column required", name, ErrMissingIndex, IndexColumn)
	}

	s := &Sheet{
		Name:     name,
		rows:     make(map[string]int),
		values:   make(map[string][]pgtype.Float8),
		metadata: make(map[string][]pgtype.Text),
	}
	for j, h := range header {
		if j == index {
			continue
		}
		s.columns = append(s.columns, h)
		if IsTimeColumn(h) {
			s.TimeColumns = append(s.TimeColumns, h)
		} else {
			s.MetadataColumns = append(s.MetadataColumns, h)
		}
	}
	if len(s.TimeColumns) == 0 {
		return nil, fmt.Errorf("sheet %s: %w", name, ErrNoTimeColumns)
	}

	for _, row := range raw.Rows {
		series := strings.TrimSpace(CleanCell(row[index]))
		if series == "" {
			continue
		}
		if _, seen := s.rows[series]; !seen {
			s.rows[series] = len(s.Series)
		}
		s.Series = append(s.Series, series)

		for j, h := range header {
			switch {
			case j == index:
			case IsTimeColumn(h):
				s.values[h] = append(s.values[h], ToPgFloat8(row[j]))
			default:
				s.metadata[h] = append(s.metadata[h], ToPgText(row[j]))
			}
		}
	}
	if len(s.Series) == 0 {
		return nil, fmt.Errorf("sheet %s: %w", name, ErrEmptyInput)
	}
	return s, nil
}

// Columns returns every non-index column in file order.
func (s *Sheet) Columns() []string {
	return append([]string(nil), s.columns...)
}

// HasSeries reports whether name is in the sheet's index.
func (s *Sheet) HasSeries(name string) bool {
	_, ok := s.rows[name]
	return ok
}

// Values returns the cells of series at each label, in label order. Labels
// the sheet does not carry, and every label of an unknown series, are
// missing.
func (s *Sheet) Values(series string, labels []string) []pgtype.Float8 {
	out := make([]pgtype.Float8, len(labels))
	row, ok := s.rows[series]
	if !ok {
		return out
	}
	for i, label := range labels {
		if cells, ok := s.values[label]; ok {
			out[i] = cells[row]
		}
	}
	return out
}

// PresentColumns keeps the candidates at which series has a value.
func (s *Sheet) PresentColumns(series string, candidates []string) []string {
	present := []string{}
	for i, v := range s.Values(series, candidates) {
		if v.Valid {
			present = append(present, candidates[i])
		}
	}
	return present
}

// Metadata returns the non-blank metadata fields of series.
func (s *Sheet) Metadata(series string) map[string]string {
	fields := map[string]string{}
	row, ok := s.rows[series]
	if !ok {
		return fields
	}
	for _, col := range s.MetadataColumns {
		if v := s.metadata[col][row]; v.Valid {
			fields[col] = v.String
		}
	}
	return fields
}

// Scenario returns the trimmed Scenario field of series, if any.
func (s *Sheet) Scenario(series string) (string, bool) {
	cells, ok := s.metadata[ScenarioColumn]
	if !ok {
		return "", false
	}
	row, ok := s.rows[series]
	if !ok || !cells[row].Valid {
		return "", false
	}
	return cells[row].String, true
}

// set overwrites one time cell. Nothing is written unless both the series
// and the label are known.
func (s *Sheet) set(series, label string, value float64) error {
	row, ok := s.rows[series]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSeries, series)
	}
	cells, ok := s.values[label]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLabel, label)
	}
	cells[row] = Float8(value)
	return nil
}

// Table renders the sheet with the index restored as the leading column.
func (s *Sheet) Table() *Table {
	t := NewTable()
	index := &Column{Name: IndexColumn, Kind: ColumnText, Cells: make([]Cell, len(s.Series))}
	for i, name := range s.Series {
		index.Cells[i] = TextCell(name)
	}
	t.addColumn(index)

	for _, name := range s.columns {
		col := &Column{Name: name, Cells: make([]Cell, len(s.Series))}
		if cells, ok := s.values[name]; ok {
			col.Kind = ColumnNumber
			for i, v := range cells {
				if v.Valid {
					col.Cells[i] = NumberCell(v.Float64)
				}
			}
		} else {
			col.Kind = ColumnText
			for i, v := range s.metadata[name] {
				if v.Valid {
					col.Cells[i] = TextCell(v.String)
				}
			}
		}
		t.addColumn(col)
	}
	return t
}

// InputFile is a stored upload: one or more sheets in workbook order.
type InputFile struct {
	ID     string
	Format Format
	Sheets []*Sheet
}

// Sheet looks a sheet up by name; an empty name means DefaultSheet.
func (f *InputFile) Sheet(name string) (*Sheet, bool) {
	if name == "" {
		name = DefaultSheet
	}
	for _, s := range f.Sheets {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// SheetNames lists the sheets in order.
func (f *InputFile) SheetNames() []string {
	names := make([]string, len(f.Sheets))
	for i, s := range f.Sheets {
		names[i] = s.Name
	}
	return names
}

// ParseInputFile decodes an input-file upload. A delimited file becomes a
// single DefaultSheet. A workbook must contain a DefaultSheet sheet, which is
// parsed strictly; other sheets are kept when they parse and skipped
// otherwise. A workbook without DefaultSheet yields a file with no sheets
// and no error, and the caller decides whether to reject it.
func ParseInputFile(data []byte, filename string) (*InputFile, error) {
	file := &InputFile{ID: filename, Format: DetectFormat(filename)}

	if file.Format == FormatCSV {
		raw, err := decodeCSV(data)
		if err != nil {
			return nil, parseError(filename, err)
		}
		sheet, err := ParseSheet(DefaultSheet, raw)
		if err != nil {
			return nil, err
		}
		file.Sheets = []*Sheet{sheet}
		return file, nil
	}

	raws, err := decodeWorkbook(data)
	if err != nil {
		return nil, parseError(filename, err)
	}

	found := false
	for _, raw := range raws {
		if raw.Name == DefaultSheet {
			found = true
		}
	}
	if !found {
		return file, nil
	}

	for _, raw := range raws {
		sheet, err := ParseSheet(raw.Name, raw)
		if err != nil {
			if raw.Name == DefaultSheet {
				return nil, err
			}
			continue
		}
		file.Sheets = append(file.Sheets, sheet)
	}
	return file, nil
}
