package core

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// InputFileStore holds input files by id for the life of the process.
//
// Lookups used for plotting are lenient: an unknown file, sheet or series
// reads as missing values. Edits are strict and report what was not found.
// All access goes through one lock, so a register or delete is observed
// whole and an export never sees half an edit.
type InputFileStore struct {
	mu    sync.RWMutex
	files map[string]*InputFile
}

// NewInputFileStore returns an empty store.
func NewInputFileStore() *InputFileStore {
	return &InputFileStore{files: make(map[string]*InputFile)}
}

// Register stores file under id, replacing any previous entry.
func (s *InputFileStore) Register(id string, file *InputFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file.ID = id
	s.files[id] = file
}

// RegisterUnique stores file under name, or under name with a short random
// suffix before the extension when name is taken. It returns the id used.
func (s *InputFileStore) RegisterUnique(name string, file *InputFile) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := name
	for {
		if _, taken := s.files[id]; !taken {
			break
		}
		ext := filepath.Ext(name)
		id = strings.TrimSuffix(name, ext) + "-" + uuid.NewString()[:8] + ext
	}
	file.ID = id
	s.files[id] = file
	return id
}

// Has reports whether id is stored.
func (s *InputFileStore) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[id]
	return ok
}

// IDs returns the stored ids in sorted order.
func (s *InputFileStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.files))
	for id := range s.files {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of stored files.
func (s *InputFileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

func (s *InputFileStore) sheet(fileID, sheetName string) (*Sheet, bool) {
	f, ok := s.files[fileID]
	if !ok {
		return nil, false
	}
	return f.Sheet(sheetName)
}

// LookupSeriesValues returns one value per label. Anything not found is
// missing; it never fails.
func (s *InputFileStore) LookupSeriesValues(fileID, sheetName, series string, labels []string) []pgtype.Float8 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.sheet(fileID, sheetName)
	if !ok {
		return make([]pgtype.Float8, len(labels))
	}
	return sh.Values(series, labels)
}

// LookupSeriesColumns keeps the candidate columns at which series has a
// value, in candidate order.
func (s *InputFileStore) LookupSeriesColumns(fileID, sheetName, series string, candidates []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.sheet(fileID, sheetName)
	if !ok {
		return []string{}
	}
	return sh.PresentColumns(series, candidates)
}

// LookupMetadata returns the metadata of series from the first file, in
// fileIDs order, that has at least one non-blank field for it. Fields are
// not merged across files.
func (s *InputFileStore) LookupMetadata(series string, fileIDs []string, sheetName string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range fileIDs {
		sh, ok := s.sheet(id, sheetName)
		if !ok {
			continue
		}
		if fields := sh.Metadata(series); len(fields) > 0 {
			return fields
		}
	}
	return map[string]string{}
}

// LookupScenario returns the Scenario tag of series in one file.
func (s *InputFileStore) LookupScenario(fileID, series, sheetName string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.sheet(fileID, sheetName)
	if !ok {
		return "", false
	}
	return sh.Scenario(series)
}

// Edit overwrites one time cell. The file is left unchanged on error.
func (s *InputFileStore) Edit(fileID, sheetName, series, label string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileID]
	if !ok {
		return fmt.Errorf("input file %s: %w", fileID, ErrNotFound)
	}
	sh, ok := f.Sheet(sheetName)
	if !ok {
		return fmt.Errorf("input file %s sheet %s: %w", fileID, sheetName, ErrNotFound)
	}
	return sh.set(series, label, value)
}

// Delete removes a file.
func (s *InputFileStore) Delete(fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[fileID]; !ok {
		return fmt.Errorf("input file %s: %w", fileID, ErrNotFound)
	}
	delete(s.files, fileID)
	return nil
}

// View runs fn with read access to a stored file. fn must not retain the
// file after returning.
func (s *InputFileStore) View(fileID string, fn func(*InputFile) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[fileID]
	if !ok {
		return fmt.Errorf("input file %s: %w", fileID, ErrNotFound)
	}
	return fn(f)
}

// InputFileSummary describes a stored file for listings. Series and
// Columns come from the default sheet.
type InputFileSummary struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Format  Format   `json:"format"`
	Sheets  []string `json:"sheets"`
	Series  []string `json:"series"`
	Columns []string `json:"columns"`
}

func summarize(f *InputFile) InputFileSummary {
	sum := InputFileSummary{
		ID:      f.ID,
		Name:    f.ID,
		Format:  f.Format,
		Sheets:  f.SheetNames(),
		Series:  []string{},
		Columns: []string{},
	}
	if sh, ok := f.Sheet(DefaultSheet); ok {
		sum.Series = append(sum.Series, sh.Series...)
		sum.Columns = append(sum.Columns, sh.TimeColumns...)
	}
	return sum
}

// Summary describes one stored file.
func (s *InputFileStore) Summary(fileID string) (InputFileSummary, error) {
	var sum InputFileSummary
	err := s.View(fileID, func(f *InputFile) error {
		sum = summarize(f)
		return nil
	})
	return sum, err
}

// Summaries describes every stored file in id order, plus the sorted set of
// series names across all files.
func (s *InputFileStore) Summaries() ([]InputFileSummary, []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.files))
	for id := range s.files {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	files := make([]InputFileSummary, 0, len(ids))
	seen := map[string]bool{}
	names := []string{}
	for _, id := range ids {
		sum := summarize(s.files[id])
		files = append(files, sum)
		for _, n := range sum.Series {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	sort.Strings(names)
	return files, names
}

// TimeColumns returns the time columns of one sheet of a file.
func (s *InputFileStore) TimeColumns(fileID, sheetName string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[fileID]
	if !ok {
		return nil, fmt.Errorf("input file %s: %w", fileID, ErrNotFound)
	}
	sh, ok := f.Sheet(sheetName)
	if !ok {
		return []string{}, nil
	}
	return append([]string(nil), sh.TimeColumns...), nil
}
