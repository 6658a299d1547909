package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const regionCSV = "Mnemonic,2022.1,2022.2,Region\n" +
	"GDP,1.5,2.5,North\n" +
	"CPI,3,,South\n" +
	"UNEMP,4.25,5,\n"

func TestIsTimeColumn(t *testing.T) {
	for _, label := range []string{"2022.1", "1999.12", "2022.004"} {
		assert.True(t, IsTimeColumn(label), label)
	}
	for _, label := range []string{"2022", "22.1", "2022.", "2022.1a", "Q1 2022", " 2022.1"} {
		assert.False(t, IsTimeColumn(label), label)
	}
}

func TestParseInputFile_CSV(t *testing.T) {
	f, err := ParseInputFile([]byte(regionCSV), "forecast.csv")
	require.NoError(t, err)

	assert.Equal(t, FormatCSV, f.Format)
	assert.Equal(t, []string{DefaultSheet}, f.SheetNames())

	sh, ok := f.Sheet("")
	require.True(t, ok)
	assert.Equal(t, []string{"2022.1", "2022.2"}, sh.TimeColumns)
	assert.Equal(t, []string{"Region"}, sh.MetadataColumns)
	assert.Equal(t, []string{"GDP", "CPI", "UNEMP"}, sh.Series)
	assert.Equal(t, []string{"2022.1", "2022.2", "Region"}, sh.Columns())
}

func TestParseInputFile_TrimsHeaders(t *testing.T) {
	f, err := ParseInputFile([]byte(" Mnemonic , 2022.1 \nGDP,1\n"), "x.csv")
	require.NoError(t, err)
	sh, _ := f.Sheet(DefaultSheet)
	assert.Equal(t, []string{"2022.1"}, sh.TimeColumns)
}

func TestParseInputFile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"no mnemonic", "Name,2022.1\nGDP,1\n", ErrMissingIndex},
		{"no time columns", "Mnemonic,Region\nGDP,North\n", ErrNoTimeColumns},
		{"header only", "Mnemonic,2022.1\n", ErrEmptyInput},
		{"only blank names", "Mnemonic,2022.1\n,1\n", ErrEmptyInput},
		{"malformed", "Mnemonic,2022.1\nGDP,1,2\n", ErrParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInputFile([]byte(tt.input), "bad.csv")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseInputFile_Workbook(t *testing.T) {
	data := workbook(t,
		rawSheet{Name: "Notes", Header: []string{"text"}, Rows: [][]string{{"hello"}}},
		rawSheet{
			Name:   DefaultSheet,
			Header: []string{"Mnemonic", "2022.1", "Scenario"},
			Rows:   [][]string{{"GDP", "1.5", "Base"}},
		},
		rawSheet{
			Name:   "Annual",
			Header: []string{"Mnemonic", "2022.1"},
			Rows:   [][]string{{"GDP", "6"}},
		},
	)

	f, err := ParseInputFile(data, "book.xlsx")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f.Format)
	assert.Equal(t, []string{DefaultSheet, "Annual"}, f.SheetNames())

	sh, ok := f.Sheet(DefaultSheet)
	require.True(t, ok)
	v := sh.Values("GDP", []string{"2022.1"})
	assert.Equal(t, 1.5, v[0].Float64)
	sc, ok := sh.Scenario("GDP")
	assert.True(t, ok)
	assert.Equal(t, "Base", sc)
}

func TestParseInputFile_WorkbookKeepsCellsPastHeader(t *testing.T) {
	data := workbook(t, rawSheet{
		Name:   DefaultSheet,
		Header: []string{"Mnemonic", "2022.1"},
		Rows:   [][]string{{"GDP", "1", "note"}},
	})

	f, err := ParseInputFile(data, "book.xlsx")
	require.NoError(t, err)
	sh, ok := f.Sheet(DefaultSheet)
	require.True(t, ok)
	assert.Equal(t, []string{"2022.1"}, sh.TimeColumns)
	assert.Equal(t, []string{"Unnamed: 2"}, sh.MetadataColumns)
	assert.Equal(t, map[string]string{"Unnamed: 2": "note"}, sh.Metadata("GDP"))

	out, err := EncodeCSV(sh.Table())
	require.NoError(t, err)
	assert.Equal(t, "Mnemonic,2022.1,Unnamed: 2\nGDP,1,note\n", string(out))
}

func TestParseInputFile_WorkbookWithoutQuarterly(t *testing.T) {
	data := workbook(t, rawSheet{
		Name:   "Sheet1",
		Header: []string{"Mnemonic", "2022.1"},
		Rows:   [][]string{{"GDP", "1"}},
	})

	f, err := ParseInputFile(data, "book.xlsx")
	require.NoError(t, err)
	assert.Empty(t, f.Sheets)
}

func TestParseInputFile_BadQuarterlySheetFails(t *testing.T) {
	data := workbook(t, rawSheet{
		Name:   DefaultSheet,
		Header: []string{"Name", "2022.1"},
		Rows:   [][]string{{"GDP", "1"}},
	})

	_, err := ParseInputFile(data, "book.xlsx")
	assert.ErrorIs(t, err, ErrMissingIndex)
}

func TestSheet_Lookups(t *testing.T) {
	f, err := ParseInputFile([]byte(regionCSV), "forecast.csv")
	require.NoError(t, err)
	sh, _ := f.Sheet(DefaultSheet)

	vals := sh.Values("CPI", []string{"2022.2", "2022.1", "2030.1"})
	require.Len(t, vals, 3)
	assert.False(t, vals[0].Valid)
	assert.Equal(t, 3.0, vals[1].Float64)
	assert.False(t, vals[2].Valid)

	missing := sh.Values("NOPE", []string{"2022.1", "2022.2"})
	assert.Len(t, missing, 2)
	assert.False(t, missing[0].Valid)
	assert.False(t, missing[1].Valid)

	assert.Equal(t, []string{"2022.1"}, sh.PresentColumns("CPI", sh.TimeColumns))
	assert.Equal(t, []string{}, sh.PresentColumns("NOPE", sh.TimeColumns))

	assert.Equal(t, map[string]string{"Region": "North"}, sh.Metadata("GDP"))
	assert.Equal(t, map[string]string{}, sh.Metadata("UNEMP"))

	_, ok := sh.Scenario("GDP")
	assert.False(t, ok)
}

func TestSheet_DuplicateSeriesFirstWins(t *testing.T) {
	f, err := ParseInputFile([]byte("Mnemonic,2022.1\nGDP,1\nGDP,2\n"), "dup.csv")
	require.NoError(t, err)
	sh, _ := f.Sheet(DefaultSheet)

	assert.Equal(t, []string{"GDP", "GDP"}, sh.Series)
	assert.Equal(t, 1.0, sh.Values("GDP", []string{"2022.1"})[0].Float64)
}

func TestSheet_Table(t *testing.T) {
	f, err := ParseInputFile([]byte(regionCSV), "forecast.csv")
	require.NoError(t, err)
	sh, _ := f.Sheet(DefaultSheet)

	tbl := sh.Table()
	assert.Equal(t, []string{"Mnemonic", "2022.1", "2022.2", "Region"}, tbl.Columns())
	assert.Equal(t, 3, tbl.NumRows())

	rec := tbl.Record(1)
	assert.Equal(t, "CPI", rec.Get("Mnemonic"))
	assert.Equal(t, 3.0, rec.Get("2022.1"))
	assert.Nil(t, rec.Get("2022.2"))
	assert.Equal(t, "South", rec.Get("Region"))
}
