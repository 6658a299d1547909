package core

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/monoidalcat-ux/Impulse-overlay/internal/logging"
)

// Options tune the service. Zero values fall back to the defaults below.
type Options struct {
	PreviewRows       int
	SeriesPreviewRows int
	MaxPlotFiles      int
	LoadWorkers       int
	MaxConcurrent     int
	MaxWait           time.Duration
}

const (
	DefaultPreviewRows       = 20
	DefaultSeriesPreviewRows = 30
	DefaultMaxPlotFiles      = 2
	DefaultLoadWorkers       = 4
)

func (o Options) withDefaults() Options {
	if o.PreviewRows <= 0 {
		o.PreviewRows = DefaultPreviewRows
	}
	if o.SeriesPreviewRows <= 0 {
		o.SeriesPreviewRows = DefaultSeriesPreviewRows
	}
	if o.MaxPlotFiles <= 0 {
		o.MaxPlotFiles = DefaultMaxPlotFiles
	}
	if o.LoadWorkers <= 0 {
		o.LoadWorkers = DefaultLoadWorkers
	}
	return o
}

// Service is the entry point for every dataset, input-file and name-list
// operation. Each Service owns its own stores, so tests get a clean state
// by building a new one.
type Service struct {
	datasets *DatasetRegistry
	inputs   *InputFileStore
	names    *NameList
	limiter  *UploadLimiter
	metrics  *serviceMetrics
	opts     Options
}

// NewService builds a service and registers its metrics with reg, which
// may be nil.
func NewService(opts Options, reg prometheus.Registerer) (*Service, error) {
	opts = opts.withDefaults()
	m, err := newServiceMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	return &Service{
		datasets: NewDatasetRegistry(),
		inputs:   NewInputFileStore(),
		names:    &NameList{},
		limiter:  NewUploadLimiter(opts.MaxConcurrent, opts.MaxWait),
		metrics:  m,
		opts:     opts,
	}, nil
}

// Limiter exposes the upload limiter for health checks and shutdown.
func (s *Service) Limiter() *UploadLimiter { return s.limiter }

// Inputs exposes the input file store.
func (s *Service) Inputs() *InputFileStore { return s.inputs }

func (s *Service) logger(ctx context.Context) *slog.Logger {
	if ip := ClientIPFromContext(ctx); ip != "" {
		return logging.WithFields(ctx, "client_ip", ip)
	}
	return logging.FromContext(ctx)
}

// parse runs fn holding an upload slot.
func (s *Service) parse(ctx context.Context, kind string, fn func() error) error {
	if err := s.limiter.Acquire(ctx); err != nil {
		return err
	}
	defer s.limiter.Release()
	defer s.metrics.timeParse(kind, time.Now())
	return fn()
}

// ---------- Datasets ----------

// UploadDataset parses and stores a dataset upload.
func (s *Service) UploadDataset(ctx context.Context, filename string, data []byte) (sum DatasetSummary, err error) {
	defer func() { s.metrics.observe("dataset_upload", err) }()

	if filename == "" {
		filename = "dataset"
	}
	var ds *Dataset
	err = s.parse(ctx, "dataset", func() error {
		var perr error
		ds, perr = ParseDataset(data, filename)
		return perr
	})
	if err != nil {
		return DatasetSummary{}, err
	}

	id := s.datasets.Add(ds)
	s.metrics.datasets.Set(float64(s.datasets.Len()))
	s.logger(ctx).Info("dataset uploaded",
		"dataset_id", id,
		"filename", filename,
		"date_column", ds.DateColumn,
		"rows", ds.table.NumRows(),
	)
	return ds.Summary(s.opts.PreviewRows), nil
}

// GetDataset returns the metadata and preview of a dataset.
func (s *Service) GetDataset(id string) (DatasetSummary, error) {
	ds, err := s.datasets.Get(id)
	if err != nil {
		return DatasetSummary{}, err
	}
	return ds.Summary(s.opts.PreviewRows), nil
}

// QuerySeries transforms and filters series of a dataset.
func (s *Service) QuerySeries(ctx context.Context, id string, q SeriesQuery) (res SeriesResult, err error) {
	defer func() { s.metrics.observe("series_query", err) }()

	if q.Transform, err = ParseTransformMode(string(q.Transform)); err != nil {
		return SeriesResult{}, err
	}
	ds, err := s.datasets.Get(id)
	if err != nil {
		return SeriesResult{}, err
	}
	return ds.Query(q, s.opts.SeriesPreviewRows)
}

// EditDataset applies a batch of cell edits, all or nothing.
func (s *Service) EditDataset(ctx context.Context, id string, edits []CellEdit) (err error) {
	defer func() { s.metrics.observe("dataset_edit", err) }()

	ds, err := s.datasets.Get(id)
	if err != nil {
		return err
	}
	n, err := ds.ApplyEdits(edits)
	if err != nil {
		return err
	}
	s.logger(ctx).Info("dataset edited", "dataset_id", id, "edits", len(edits), "cells", n)
	return nil
}

// ExportDataset renders a dataset as csv or xlsx.
func (s *Service) ExportDataset(ctx context.Context, id, format string) (ExportFile, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return ExportFile{}, err
	}
	ds, err := s.datasets.Get(id)
	if err != nil {
		return ExportFile{}, err
	}
	out, err := ds.Export(f)
	s.metrics.observe("dataset_export", err)
	return out, err
}

// DeleteDataset drops a dataset.
func (s *Service) DeleteDataset(ctx context.Context, id string) error {
	if err := s.datasets.Delete(id); err != nil {
		return err
	}
	s.metrics.datasets.Set(float64(s.datasets.Len()))
	s.logger(ctx).Info("dataset deleted", "dataset_id", id)
	return nil
}

// ---------- Input files ----------

// UploadInputFile parses an input file and stores it under its file name,
// adding a short suffix when the name is taken.
func (s *Service) UploadInputFile(ctx context.Context, filename string, data []byte) (sum InputFileSummary, err error) {
	defer func() { s.metrics.observe("input_upload", err) }()

	if filename == "" {
		filename = "uploaded.csv"
	}
	var file *InputFile
	err = s.parse(ctx, "input_file", func() error {
		var perr error
		file, perr = ParseInputFile(data, filename)
		return perr
	})
	if err != nil {
		return InputFileSummary{}, err
	}
	if len(file.Sheets) == 0 {
		return InputFileSummary{}, fmt.Errorf("%s: %w", filename, ErrNoSheets)
	}

	id := s.inputs.RegisterUnique(filename, file)
	s.metrics.inputFiles.Set(float64(s.inputs.Len()))
	s.logger(ctx).Info("input file uploaded", "file_id", id, "sheets", file.SheetNames())
	return s.inputs.Summary(id)
}

// InputFileListing lists every stored input file.
type InputFileListing struct {
	Files       []InputFileSummary `json:"files"`
	SeriesNames []string           `json:"series_names"`
}

// ListInputFiles describes the stored input files in id order.
func (s *Service) ListInputFiles() InputFileListing {
	files, names := s.inputs.Summaries()
	return InputFileListing{Files: files, SeriesNames: names}
}

// InputFileEdit targets one time cell of an input file.
type InputFileEdit struct {
	FileID     string   `json:"file_id" validate:"required"`
	Sheet      string   `json:"sheet,omitempty"`
	SeriesName string   `json:"series_name" validate:"required"`
	Label      string   `json:"label" validate:"required"`
	Value      *float64 `json:"value" validate:"required"`
}

// EditInputFile overwrites one time cell.
func (s *Service) EditInputFile(ctx context.Context, e InputFileEdit) (err error) {
	defer func() { s.metrics.observe("input_edit", err) }()

	if e.Value == nil {
		return fmt.Errorf("%w: edit of %s at %s has no value", ErrInvalidRequest, e.SeriesName, e.Label)
	}
	if err := s.inputs.Edit(e.FileID, e.Sheet, e.SeriesName, e.Label, *e.Value); err != nil {
		return err
	}
	s.logger(ctx).Info("input file edited",
		"file_id", e.FileID,
		"series", e.SeriesName,
		"label", e.Label,
	)
	return nil
}

// DeleteInputFile drops an input file.
func (s *Service) DeleteInputFile(ctx context.Context, id string) error {
	if err := s.inputs.Delete(id); err != nil {
		return err
	}
	s.metrics.inputFiles.Set(float64(s.inputs.Len()))
	s.logger(ctx).Info("input file deleted", "file_id", id)
	return nil
}

// ExportInputFile renders an input file: csv holds the default sheet, xlsx
// holds every sheet. The Mnemonic index is the leading column.
func (s *Service) ExportInputFile(ctx context.Context, id, format string) (out ExportFile, err error) {
	defer func() { s.metrics.observe("input_export", err) }()

	f, err := ParseFormat(format)
	if err != nil {
		return ExportFile{}, err
	}

	err = s.inputs.View(id, func(file *InputFile) error {
		var data []byte
		var encErr error
		switch f {
		case FormatXLSX:
			sheets := make([]NamedTable, len(file.Sheets))
			for i, sh := range file.Sheets {
				sheets[i] = NamedTable{Name: sh.Name, Table: sh.Table()}
			}
			data, encErr = EncodeXLSX(sheets...)
			out.ContentType = ContentTypeXLSX
		default:
			sh, ok := file.Sheet(DefaultSheet)
			if !ok {
				sh = file.Sheets[0]
			}
			data, encErr = EncodeCSV(sh.Table())
			out.ContentType = ContentTypeCSV
		}
		out.Data = data
		return encErr
	})
	if err != nil {
		return ExportFile{}, err
	}
	out.Filename = strings.TrimSuffix(id, filepath.Ext(id)) + "." + string(f)
	return out, nil
}

// SeriesDetail is one series of one input file.
type SeriesDetail struct {
	FileID     string            `json:"file_id"`
	Sheet      string            `json:"sheet"`
	SeriesName string            `json:"series_name"`
	Labels     []string          `json:"labels"`
	Values     []pgtype.Float8   `json:"values"`
	Present    []string          `json:"present_columns"`
	Metadata   map[string]string `json:"metadata"`
	Scenario   *string           `json:"scenario"`
}

// GetSeries returns a series of one file. Unlike plotting, an unknown
// series is an error here.
func (s *Service) GetSeries(fileID, sheet, series string) (SeriesDetail, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}
	var known bool
	if err := s.inputs.View(fileID, func(f *InputFile) error {
		sh, ok := f.Sheet(sheet)
		if !ok {
			return fmt.Errorf("input file %s sheet %s: %w", fileID, sheet, ErrNotFound)
		}
		known = sh.HasSeries(series)
		return nil
	}); err != nil {
		return SeriesDetail{}, err
	}
	if !known {
		return SeriesDetail{}, fmt.Errorf("%w: %s", ErrUnknownSeries, series)
	}

	labels, err := s.inputs.TimeColumns(fileID, sheet)
	if err != nil {
		return SeriesDetail{}, err
	}
	d := SeriesDetail{
		FileID:     fileID,
		Sheet:      sheet,
		SeriesName: series,
		Labels:     labels,
		Values:     s.inputs.LookupSeriesValues(fileID, sheet, series, labels),
		Present:    s.inputs.LookupSeriesColumns(fileID, sheet, series, labels),
		Metadata:   s.inputs.LookupMetadata(series, []string{fileID}, sheet),
	}
	if sc, ok := s.inputs.LookupScenario(fileID, series, sheet); ok {
		d.Scenario = &sc
	}
	return d, nil
}

// PlotRequest overlays one series across several input files.
type PlotRequest struct {
	SeriesName string   `json:"series_name" validate:"required"`
	Files      []string `json:"files"`
	Sheet      string   `json:"sheet,omitempty"`
	StartLabel string   `json:"start_label,omitempty"`
	EndLabel   string   `json:"end_label,omitempty"`
}

// PlotSeries is one file's line of a plot.
type PlotSeries struct {
	File     string          `json:"file"`
	Values   []pgtype.Float8 `json:"values"`
	Scenario *string         `json:"scenario"`
}

// PlotResult is a multi-file overlay aligned on Labels.
type PlotResult struct {
	SeriesName string            `json:"series_name"`
	Sheet      string            `json:"sheet"`
	Labels     []string          `json:"labels"`
	Series     []PlotSeries      `json:"series"`
	Metadata   map[string]string `json:"metadata"`
}

// Plot aligns one series across files. The label axis is the union of the
// files' time columns, first file first, cut to the requested range. A file
// that lacks the series contributes all-missing values.
func (s *Service) Plot(ctx context.Context, req PlotRequest) (res PlotResult, err error) {
	defer func() { s.metrics.observe("plot", err) }()

	switch {
	case len(req.Files) == 0:
		return PlotResult{}, ErrNoFiles
	case len(req.Files) > s.opts.MaxPlotFiles:
		return PlotResult{}, fmt.Errorf("%w: select up to %d", ErrTooManyFiles, s.opts.MaxPlotFiles)
	}

	var missing []string
	for _, id := range req.Files {
		if !s.inputs.Has(id) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return PlotResult{}, fmt.Errorf("input files %s: %w", strings.Join(missing, ", "), ErrNotFound)
	}

	sheet := req.Sheet
	if sheet == "" {
		sheet = DefaultSheet
	}

	var labels []string
	for _, id := range req.Files {
		cols, err := s.inputs.TimeColumns(id, sheet)
		if err != nil {
			return PlotResult{}, err
		}
		labels = MergeColumns(labels, cols)
	}
	if len(labels) == 0 {
		return PlotResult{}, fmt.Errorf("sheet %s: %w", sheet, ErrNoTimeColumns)
	}
	if labels, err = SliceByLabel(labels, req.StartLabel, req.EndLabel); err != nil {
		return PlotResult{}, err
	}

	res = PlotResult{
		SeriesName: req.SeriesName,
		Sheet:      sheet,
		Labels:     labels,
		Series:     make([]PlotSeries, len(req.Files)),
		Metadata:   s.inputs.LookupMetadata(req.SeriesName, req.Files, sheet),
	}
	for i, id := range req.Files {
		ps := PlotSeries{
			File:   id,
			Values: s.inputs.LookupSeriesValues(id, sheet, req.SeriesName, labels),
		}
		if sc, ok := s.inputs.LookupScenario(id, req.SeriesName, sheet); ok {
			ps.Scenario = &sc
		}
		res.Series[i] = ps
	}
	return res, nil
}

// ---------- Name list ----------

// UploadNameList replaces the name list with the Mnemonic column of an
// upload.
func (s *Service) UploadNameList(ctx context.Context, filename string, data []byte) (snap NameListSnapshot, err error) {
	defer func() { s.metrics.observe("name_list_upload", err) }()

	var names []string
	err = s.parse(ctx, "name_list", func() error {
		var perr error
		names, perr = ParseNameList(data, filename)
		return perr
	})
	if err != nil {
		return NameListSnapshot{}, err
	}

	s.names.Replace(names)
	s.logger(ctx).Info("name list replaced", "names", len(names))
	return s.names.Snapshot(), nil
}

// NameList returns the current name list.
func (s *Service) NameList() NameListSnapshot {
	return s.names.Snapshot()
}
