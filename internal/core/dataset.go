package core

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Dataset is an uploaded wide table keyed by an inferred date column.
// Its lock orders edits against reads and exports of the same dataset.
type Dataset struct {
	ID             string
	Filename       string
	DateColumn     string
	NumericColumns []string

	mu    sync.RWMutex
	table *Table
}

// ParseDataset decodes an upload, picks the date column and coerces it.
// Numeric columns are classified after coercion, so the date column is
// never one of them.
func ParseDataset(data []byte, filename string) (*Dataset, error) {
	raw, err := decodeFirstSheet(data, filename)
	if err != nil {
		return nil, err
	}
	if len(raw.Rows) == 0 || len(raw.Header) == 0 {
		return nil, fmt.Errorf("%s: %w", filename, ErrEmptyInput)
	}

	t := buildTable(raw)
	dateColumn := InferDateColumn(t)
	col, _ := t.Column(dateColumn)
	coerceDates(col)

	return &Dataset{
		Filename:       filename,
		DateColumn:     dateColumn,
		NumericColumns: NumericColumns(t),
		table:          t,
	}, nil
}

// DatasetSummary is the metadata-plus-preview view of a dataset.
type DatasetSummary struct {
	DatasetID      string   `json:"dataset_id"`
	Filename       string   `json:"filename"`
	Columns        []string `json:"columns"`
	NumericColumns []string `json:"numeric_columns"`
	DateColumn     string   `json:"date_column"`
	Preview        []Record `json:"preview"`
	MinDate        *string  `json:"min_date"`
	MaxDate        *string  `json:"max_date"`
}

// Summary describes the dataset with its first previewRows rows.
func (d *Dataset) Summary(previewRows int) DatasetSummary {
	d.mu.RLock()
	defer d.mu.RUnlock()

	sum := DatasetSummary{
		DatasetID:      d.ID,
		Filename:       d.Filename,
		Columns:        d.table.Columns(),
		NumericColumns: append([]string{}, d.NumericColumns...),
		DateColumn:     d.DateColumn,
		Preview:        Preview(d.table, previewRows),
	}

	var lo, hi time.Time
	found := false
	col, _ := d.table.Column(d.DateColumn)
	for _, c := range col.Cells {
		if c.Kind != CellDate {
			continue
		}
		if !found || c.Date.Before(lo) {
			lo = c.Date
		}
		if !found || c.Date.After(hi) {
			hi = c.Date
		}
		found = true
	}
	if found {
		minDate, maxDate := lo.Format(isoDate), hi.Format(isoDate)
		sum.MinDate, sum.MaxDate = &minDate, &maxDate
	}
	return sum
}

// SeriesQuery selects and reshapes series of a dataset. Date bounds are
// inclusive and optional.
type SeriesQuery struct {
	DateColumn string
	Series     []string
	Transform  TransformMode
	StartDate  string
	EndDate    string
}

// SeriesResult is the chart payload plus a tabular preview of the same rows.
type SeriesResult struct {
	Data  SeriesPayload `json:"data"`
	Table []Record      `json:"table"`
}

// Query transforms the requested series, applies the date bounds and drops
// rows missing any requested series.
func (d *Dataset) Query(q SeriesQuery, previewRows int) (SeriesResult, error) {
	start, err := parseBound(q.StartDate)
	if err != nil {
		return SeriesResult{}, err
	}
	end, err := parseBound(q.EndDate)
	if err != nil {
		return SeriesResult{}, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.table.HasColumn(q.DateColumn) {
		return SeriesResult{}, fmt.Errorf("%w: date column %s", ErrUnknownColumn, q.DateColumn)
	}
	for _, s := range q.Series {
		if !d.table.HasColumn(s) {
			return SeriesResult{}, fmt.Errorf("%w: series column %s", ErrUnknownColumn, s)
		}
	}

	transformed, err := Transform(d.table, q.DateColumn, q.Series, q.Transform)
	if err != nil {
		return SeriesResult{}, err
	}

	dates, _ := transformed.Column(q.DateColumn)
	out := transformed.Filter(func(i int) bool {
		day := dates.Cells[i].Date
		if start != nil && day.Before(*start) {
			return false
		}
		if end != nil && day.After(*end) {
			return false
		}
		for _, s := range q.Series {
			if c, _ := transformed.Column(s); c.Cells[i].IsMissing() {
				return false
			}
		}
		return true
	})

	payload, err := SerializeSeries(out, q.DateColumn, q.Series)
	if err != nil {
		return SeriesResult{}, err
	}
	return SeriesResult{Data: payload, Table: Preview(out, previewRows)}, nil
}

func parseBound(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d := ToPgDate(s)
	if !d.Valid {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return &d.Time, nil
}

// CellEdit sets column to value on every row dated date. Value is a
// pointer so that an omitted value is rejected rather than read as zero.
type CellEdit struct {
	Date   string   `json:"date" validate:"required"`
	Column string   `json:"column" validate:"required"`
	Value  *float64 `json:"value" validate:"required"`
}

// ApplyEdits applies a batch of edits. Every edit is resolved before any
// cell is written, so a failing batch leaves the dataset unchanged. The
// date column itself cannot be edited.
func (d *Dataset) ApplyEdits(edits []CellEdit) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dates, _ := d.table.Column(d.DateColumn)
	type target struct {
		col  *Column
		rows []int
	}
	targets := make([]target, len(edits))

	for i, e := range edits {
		if e.Value == nil {
			return 0, fmt.Errorf("%w: edit of %s on %s has no value", ErrInvalidRequest, e.Column, e.Date)
		}
		if e.Column == d.DateColumn {
			return 0, fmt.Errorf("%w: %s is the date column", ErrUnknownColumn, e.Column)
		}
		col, ok := d.table.Column(e.Column)
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownColumn, e.Column)
		}
		when := ToPgDate(e.Date)
		if !when.Valid {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDate, e.Date)
		}
		var rows []int
		for r, c := range dates.Cells {
			if c.Kind == CellDate && c.Date.Equal(when.Time) {
				rows = append(rows, r)
			}
		}
		if len(rows) == 0 {
			return 0, fmt.Errorf("%w: %s", ErrNoRowForDate, e.Date)
		}
		targets[i] = target{col: col, rows: rows}
	}

	written := 0
	for i, t := range targets {
		for _, r := range t.rows {
			t.col.Cells[r] = NumberCell(*edits[i].Value)
			written++
		}
	}
	return written, nil
}

// Export renders the dataset. The suggested name keeps the uploaded stem.
func (d *Dataset) Export(format Format) (ExportFile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	data, contentType, err := EncodeTable(d.table, format, "Sheet1")
	if err != nil {
		return ExportFile{}, err
	}
	stem := strings.TrimSuffix(d.Filename, filepath.Ext(d.Filename))
	return ExportFile{
		Filename:    stem + "." + string(format),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// DatasetRegistry holds datasets by generated id.
type DatasetRegistry struct {
	mu       sync.RWMutex
	datasets map[string]*Dataset
}

// NewDatasetRegistry returns an empty registry.
func NewDatasetRegistry() *DatasetRegistry {
	return &DatasetRegistry{datasets: make(map[string]*Dataset)}
}

// Add stores d under a fresh id and returns the id.
func (r *DatasetRegistry) Add(d *Dataset) string {
	d.ID = uuid.NewString()
	r.mu.Lock()
	r.datasets[d.ID] = d
	r.mu.Unlock()
	return d.ID
}

// Get returns the dataset stored under id.
func (r *DatasetRegistry) Get(id string) (*Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.datasets[id]
	if !ok {
		return nil, fmt.Errorf("dataset %s: %w", id, ErrNotFound)
	}
	return d, nil
}

// Delete removes the dataset stored under id.
func (r *DatasetRegistry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.datasets[id]; !ok {
		return fmt.Errorf("dataset %s: %w", id, ErrNotFound)
	}
	delete(r.datasets, id)
	return nil
}

// Len returns the number of stored datasets.
func (r *DatasetRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.datasets)
}
