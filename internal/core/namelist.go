package core

import (
	"fmt"
	"strings"
	"sync"
)

// NameList is the optional set of canonical series names. Uploading a new
// list replaces the previous one whole.
type NameList struct {
	mu     sync.RWMutex
	active bool
	names  []string
}

// NameListSnapshot is the current list state.
type NameListSnapshot struct {
	Active bool     `json:"active"`
	Names  []string `json:"names"`
}

// ParseNameList reads the Mnemonic column of a single-sheet upload. Blank
// names are skipped and repeats keep their first position.
func ParseNameList(data []byte, filename string) ([]string, error) {
	raw, err := decodeFirstSheet(data, filename)
	if err != nil {
		return nil, err
	}

	index := -1
	for j, h := range headerNames(raw.Header, true) {
		if h == IndexColumn {
			index = j
			break
		}
	}
	if index < 0 {
		return nil, fmt.Errorf("%s: %w: %s column required", filename, ErrMissingIndex, IndexColumn)
	}

	names := []string{}
	seen := map[string]bool{}
	for _, row := range raw.Rows {
		name := strings.TrimSpace(CleanCell(row[index]))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%s: %w", filename, ErrEmptyInput)
	}
	return names, nil
}

// Replace installs names as the active list.
func (l *NameList) Replace(names []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = true
	l.names = append([]string(nil), names...)
}

// Snapshot returns a copy of the current state.
func (l *NameList) Snapshot() NameListSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return NameListSnapshot{Active: l.active, Names: append([]string{}, l.names...)}
}
