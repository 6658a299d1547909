package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// workbook builds xlsx bytes with one sheet per entry, in order.
func workbook(t *testing.T, sheets ...rawSheet) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName(f.GetSheetName(0), s.Name))
		} else {
			_, err := f.NewSheet(s.Name)
			require.NoError(t, err)
		}
		rows := append([][]string{s.Header}, s.Rows...)
		for r, row := range rows {
			for c, v := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				require.NoError(t, err)
				if fv := ToPgFloat8(v); fv.Valid && r > 0 {
					require.NoError(t, f.SetCellValue(s.Name, cell, fv.Float64))
				} else {
					require.NoError(t, f.SetCellValue(s.Name, cell, v))
				}
			}
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatXLSX, DetectFormat("book.xlsx"))
	assert.Equal(t, FormatXLSX, DetectFormat("BOOK.XLSX"))
	assert.Equal(t, FormatCSV, DetectFormat("data.csv"))
	assert.Equal(t, FormatCSV, DetectFormat("data.txt"))
	assert.Equal(t, FormatCSV, DetectFormat("noext"))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("pdf")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestDecodeCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantErr  bool
		wantHead []string
		wantRows [][]string
	}{
		{
			name:     "basic",
			input:    "a,b\n1,2\n3,4\n",
			wantHead: []string{"a", "b"},
			wantRows: [][]string{{"1", "2"}, {"3", "4"}},
		},
		{
			name:     "bom is stripped",
			input:    "\xEF\xBB\xBFa,b\n1,2\n",
			wantHead: []string{"a", "b"},
			wantRows: [][]string{{"1", "2"}},
		},
		{
			name:     "short rows are padded",
			input:    "a,b,c\n1\n",
			wantHead: []string{"a", "b", "c"},
			wantRows: [][]string{{"1", "", ""}},
		},
		{
			name:     "blank lines are skipped",
			input:    "a,b\n1,2\n,\n3,4\n",
			wantHead: []string{"a", "b"},
			wantRows: [][]string{{"1", "2"}, {"3", "4"}},
		},
		{
			name:     "header only",
			input:    "a,b\n",
			wantHead: []string{"a", "b"},
		},
		{
			name:    "row wider than header",
			input:   "a,b\n1,2,3\n",
			wantErr: true,
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "bad quoting",
			input:   "a,b\n\"1,2\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeCSV([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHead, got.Header)
			assert.Equal(t, tt.wantRows, got.Rows)
		})
	}
}

func TestDecodeCSV_InvalidUTF8(t *testing.T) {
	got, err := decodeCSV([]byte("name\nab\xffc\n"))
	require.NoError(t, err)
	assert.Equal(t, "ab�c", got.Rows[0][0])
}

func TestDecodeWorkbook(t *testing.T) {
	data := workbook(t,
		rawSheet{Name: "First", Header: []string{"a", "b"}, Rows: [][]string{{"x", "1.25"}}},
		rawSheet{Name: "Second", Header: []string{"c"}, Rows: [][]string{{"y"}, {"z"}}},
	)

	sheets, err := decodeWorkbook(data)
	require.NoError(t, err)
	require.Len(t, sheets, 2)

	assert.Equal(t, "First", sheets[0].Name)
	assert.Equal(t, []string{"a", "b"}, sheets[0].Header)
	assert.Equal(t, [][]string{{"x", "1.25"}}, sheets[0].Rows)

	assert.Equal(t, "Second", sheets[1].Name)
	assert.Equal(t, [][]string{{"y"}, {"z"}}, sheets[1].Rows)
}

func TestDecodeWorkbook_RowWiderThanHeader(t *testing.T) {
	data := workbook(t, rawSheet{
		Name:   DefaultSheet,
		Header: []string{"Mnemonic", "2022.1"},
		Rows:   [][]string{{"GDP", "1", "note"}, {"CPI", "2"}},
	})

	sheets, err := decodeWorkbook(data)
	require.NoError(t, err)
	require.Len(t, sheets, 1)

	assert.Equal(t, []string{"Mnemonic", "2022.1", ""}, sheets[0].Header)
	assert.Equal(t, [][]string{{"GDP", "1", "note"}, {"CPI", "2", ""}}, sheets[0].Rows)
	assert.Equal(t, []string{"Mnemonic", "2022.1", "Unnamed: 2"}, headerNames(sheets[0].Header, true))
}

func TestDecodeFirstSheet_BlankWorkbookIsEmpty(t *testing.T) {
	data := workbook(t, rawSheet{Name: "Sheet1"})

	_, err := decodeFirstSheet(data, "blank.xlsx")
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.NotErrorIs(t, err, ErrParse)
}

func TestDecodeWorkbook_NotAWorkbook(t *testing.T) {
	_, err := decodeWorkbook([]byte("a,b\n1,2\n"))
	assert.Error(t, err)
}

func TestDecodeFirstSheet_WrapsParseError(t *testing.T) {
	_, err := decodeFirstSheet([]byte("garbage"), "broken.xlsx")
	assert.ErrorIs(t, err, ErrParse)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "broken.xlsx", pe.Filename)
}

func TestHeaderNames(t *testing.T) {
	got := headerNames([]string{"a", "", "a", " b ", "a"}, false)
	assert.Equal(t, []string{"a", "Unnamed: 1", "a.1", " b ", "a.2"}, got)

	got = headerNames([]string{" Mnemonic ", "2022.1"}, true)
	assert.Equal(t, []string{"Mnemonic", "2022.1"}, got)
}

func TestBuildTable_ColumnKinds(t *testing.T) {
	tbl := buildTable(rawSheet{
		Header: []string{"date", "value", "label", "blank"},
		Rows: [][]string{
			{"2022-01-01", "1.5", "north", ""},
			{"2022-01-02", "", "south", ""},
			{"2022-01-03", "3", "", ""},
		},
	})

	kinds := map[string]ColumnKind{}
	for _, name := range tbl.Columns() {
		c, _ := tbl.Column(name)
		kinds[name] = c.Kind
	}
	assert.Equal(t, map[string]ColumnKind{
		"date":  ColumnText,
		"value": ColumnNumber,
		"label": ColumnText,
		"blank": ColumnNumber,
	}, kinds)

	value, _ := tbl.Column("value")
	assert.Equal(t, 1.5, value.Cells[0].Number)
	assert.True(t, value.Cells[1].IsMissing())

	label, _ := tbl.Column("label")
	assert.True(t, label.Cells[2].IsMissing())
}
