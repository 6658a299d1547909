package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService(Options{}, prometheus.NewRegistry())
	require.NoError(t, err)
	return s
}

func TestNewService_Defaults(t *testing.T) {
	s := newTestService(t)
	assert.Equal(t, DefaultPreviewRows, s.opts.PreviewRows)
	assert.Equal(t, DefaultSeriesPreviewRows, s.opts.SeriesPreviewRows)
	assert.Equal(t, DefaultMaxPlotFiles, s.opts.MaxPlotFiles)
	assert.Equal(t, DefaultMaxConcurrentUploads, s.Limiter().MaxConcurrent())
}

func TestNewService_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewService(Options{}, reg)
	require.NoError(t, err)
	_, err = NewService(Options{}, reg)
	assert.Error(t, err)

	_, err = NewService(Options{}, nil)
	assert.NoError(t, err)
}

func TestService_DatasetLifecycle(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	sum, err := s.UploadDataset(ctx, "sales.csv", []byte(salesCSV))
	require.NoError(t, err)
	require.NotEmpty(t, sum.DatasetID)
	assert.Equal(t, "date", sum.DateColumn)
	assert.Len(t, sum.Preview, 5)

	got, err := s.GetDataset(sum.DatasetID)
	require.NoError(t, err)
	assert.Equal(t, sum.Columns, got.Columns)

	res, err := s.QuerySeries(ctx, sum.DatasetID, SeriesQuery{DateColumn: "date", Series: []string{"sales"}})
	require.NoError(t, err)
	assert.Len(t, res.Data.Dates, 4)

	_, err = s.QuerySeries(ctx, sum.DatasetID, SeriesQuery{DateColumn: "date", Series: []string{"sales"}, Transform: "weekly"})
	assert.ErrorIs(t, err, ErrInvalidTransform)

	require.NoError(t, s.EditDataset(ctx, sum.DatasetID, []CellEdit{{Date: "2022-01-15", Column: "sales", Value: ptr(12)}}))

	out, err := s.ExportDataset(ctx, sum.DatasetID, "csv")
	require.NoError(t, err)
	assert.Contains(t, string(out.Data), "north,2022-01-15,12,1")

	_, err = s.ExportDataset(ctx, sum.DatasetID, "pdf")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	require.NoError(t, s.DeleteDataset(ctx, sum.DatasetID))
	_, err = s.GetDataset(sum.DatasetID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.EditDataset(ctx, sum.DatasetID, nil), ErrNotFound)
}

func TestService_UploadDatasetErrors(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.UploadDataset(ctx, "empty.csv", []byte("a,b\n"))
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = s.UploadDataset(ctx, "bad.xlsx", []byte("nope"))
	assert.ErrorIs(t, err, ErrParse)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.operations.WithLabelValues("dataset_upload", "FILE002")))
}

func TestService_UploadWaitsForSlot(t *testing.T) {
	s, err := NewService(Options{MaxConcurrent: 1, MaxWait: 1}, nil)
	require.NoError(t, err)
	require.True(t, s.Limiter().TryAcquire())
	defer s.Limiter().Release()

	_, err = s.UploadDataset(context.Background(), "sales.csv", []byte(salesCSV))
	assert.ErrorIs(t, err, ErrTooManyUploads)
}

func TestService_InputFileLifecycle(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	sum, err := s.UploadInputFile(ctx, "a.csv", []byte(fileA))
	require.NoError(t, err)
	assert.Equal(t, "a.csv", sum.ID)
	assert.Equal(t, []string{"GDP", "CPI"}, sum.Series)

	dup, err := s.UploadInputFile(ctx, "a.csv", []byte(fileB))
	require.NoError(t, err)
	assert.NotEqual(t, "a.csv", dup.ID)

	listing := s.ListInputFiles()
	assert.Len(t, listing.Files, 2)
	assert.Equal(t, []string{"CPI", "GDP"}, listing.SeriesNames)

	require.NoError(t, s.EditInputFile(ctx, InputFileEdit{FileID: "a.csv", SeriesName: "GDP", Label: "2022.1", Value: ptr(9)}))
	assert.ErrorIs(t, s.EditInputFile(ctx, InputFileEdit{FileID: "a.csv", SeriesName: "GDP", Label: "x", Value: ptr(1)}), ErrUnknownLabel)
	assert.ErrorIs(t, s.EditInputFile(ctx, InputFileEdit{FileID: "a.csv", SeriesName: "GDP", Label: "2022.1"}), ErrInvalidRequest)

	detail, err := s.GetSeries("a.csv", "", "GDP")
	require.NoError(t, err)
	assert.Equal(t, []string{"2022.1", "2022.2"}, detail.Labels)
	assert.Equal(t, 9.0, detail.Values[0].Float64)
	assert.Equal(t, []string{"2022.1", "2022.2"}, detail.Present)
	require.NotNil(t, detail.Scenario)
	assert.Equal(t, "Base", *detail.Scenario)

	_, err = s.GetSeries("a.csv", "", "NOPE")
	assert.ErrorIs(t, err, ErrUnknownSeries)
	_, err = s.GetSeries("zzz.csv", "", "GDP")
	assert.ErrorIs(t, err, ErrNotFound)

	out, err := s.ExportInputFile(ctx, "a.csv", "csv")
	require.NoError(t, err)
	assert.Equal(t, "a.csv", out.Filename)
	assert.Equal(t, "Mnemonic,2022.1,2022.2,Scenario,Region\nGDP,9,2,Base,North\nCPI,3,4,,\n", string(out.Data))

	out, err = s.ExportInputFile(ctx, "a.csv", "xlsx")
	require.NoError(t, err)
	assert.Equal(t, "a.xlsx", out.Filename)
	reloaded, err := ParseInputFile(out.Data, out.Filename)
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultSheet}, reloaded.SheetNames())

	require.NoError(t, s.DeleteInputFile(ctx, "a.csv"))
	assert.ErrorIs(t, s.DeleteInputFile(ctx, "a.csv"), ErrNotFound)
	_, err = s.ExportInputFile(ctx, "a.csv", "csv")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_UploadInputFileWithoutQuarterlySheet(t *testing.T) {
	s := newTestService(t)
	data := workbook(t, rawSheet{Name: "Sheet1", Header: []string{"Mnemonic", "2022.1"}, Rows: [][]string{{"GDP", "1"}}})

	_, err := s.UploadInputFile(context.Background(), "book.xlsx", data)
	assert.ErrorIs(t, err, ErrNoSheets)
	assert.Equal(t, 0, s.Inputs().Len())
}

func TestService_Plot(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	_, err := s.UploadInputFile(ctx, "a.csv", []byte(fileA))
	require.NoError(t, err)
	_, err = s.UploadInputFile(ctx, "b.csv", []byte("Mnemonic,2022.2,2022.3\nCPI,5,6\n"))
	require.NoError(t, err)

	res, err := s.Plot(ctx, PlotRequest{SeriesName: "GDP", Files: []string{"a.csv", "b.csv"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"2022.1", "2022.2", "2022.3"}, res.Labels)
	require.Len(t, res.Series, 2)
	assert.Equal(t, []bool{true, true, false}, validFlags(res.Series[0].Values))
	// GDP is only in a.csv: b.csv contributes missing values, no error.
	assert.Equal(t, []bool{false, false, false}, validFlags(res.Series[1].Values))
	require.NotNil(t, res.Series[0].Scenario)
	assert.Equal(t, "Base", *res.Series[0].Scenario)
	assert.Nil(t, res.Series[1].Scenario)
	assert.Equal(t, map[string]string{"Scenario": "Base", "Region": "North"}, res.Metadata)

	sliced, err := s.Plot(ctx, PlotRequest{SeriesName: "CPI", Files: []string{"b.csv", "a.csv"}, StartLabel: "2022.1", EndLabel: "2022.3"})
	require.NoError(t, err)
	// b.csv's columns come first in the merged axis.
	assert.Equal(t, []string{"2022.3", "2022.1"}, sliced.Labels)
}

func TestService_PlotErrors(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	_, err := s.UploadInputFile(ctx, "a.csv", []byte(fileA))
	require.NoError(t, err)

	tests := []struct {
		name string
		req  PlotRequest
		want error
	}{
		{"no files", PlotRequest{SeriesName: "GDP"}, ErrNoFiles},
		{"too many files", PlotRequest{SeriesName: "GDP", Files: []string{"a.csv", "a.csv", "a.csv"}}, ErrTooManyFiles},
		{"unknown file", PlotRequest{SeriesName: "GDP", Files: []string{"a.csv", "zzz.csv"}}, ErrNotFound},
		{"unknown label", PlotRequest{SeriesName: "GDP", Files: []string{"a.csv"}, StartLabel: "1999.1"}, ErrUnknownLabel},
		{"sheet with no columns", PlotRequest{SeriesName: "GDP", Files: []string{"a.csv"}, Sheet: "Annual"}, ErrNoTimeColumns},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Plot(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestService_NameList(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	assert.False(t, s.NameList().Active)

	snap, err := s.UploadNameList(ctx, "names.csv", []byte("Mnemonic\nGDP\nCPI\n"))
	require.NoError(t, err)
	assert.Equal(t, NameListSnapshot{Active: true, Names: []string{"GDP", "CPI"}}, snap)

	_, err = s.UploadNameList(ctx, "names.csv", []byte("Name\nX\n"))
	assert.ErrorIs(t, err, ErrMissingIndex)
	assert.Equal(t, []string{"GDP", "CPI"}, s.NameList().Names)
}

func TestService_LoadInputDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("b.csv", fileB)
	write("a.csv", fileA)
	write("broken.csv", "Name,2022.1\nX,1\n")
	write("notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.csv"), 0o755))

	s := newTestService(t)
	n, err := s.LoadInputDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a.csv", "b.csv"}, s.Inputs().IDs())
	assert.Equal(t, 2.0, testutil.ToFloat64(s.metrics.inputFiles))
}

func TestService_LoadInputDirMissing(t *testing.T) {
	s := newTestService(t)
	n, err := s.LoadInputDir(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestService_ClientIPInContext(t *testing.T) {
	ctx := ContextWithClientIP(context.Background(), "10.0.0.1")
	assert.Equal(t, "10.0.0.1", ClientIPFromContext(ctx))
	assert.Equal(t, "", ClientIPFromContext(context.Background()))
}
