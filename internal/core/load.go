package core

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// LoadInputDir registers every .csv and .xlsx file in dir as an input file,
// keyed by its base name. Files are parsed in parallel and registered in
// name order; files that fail to parse are logged and skipped. A missing
// directory loads nothing.
func (s *Service) LoadInputDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".csv", ".xlsx":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	parsed := make([]*InputFile, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.LoadWorkers)

	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				s.logger(ctx).Warn("skipping input file", "file", name, "error", err)
				return nil
			}
			file, err := ParseInputFile(data, name)
			if err == nil && len(file.Sheets) == 0 {
				err = ErrNoSheets
			}
			if err != nil {
				s.logger(ctx).Warn("skipping input file", "file", name, "error", err)
				return nil
			}
			parsed[i] = file
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	loaded := 0
	for i, file := range parsed {
		if file == nil {
			continue
		}
		s.inputs.Register(names[i], file)
		loaded++
	}
	s.metrics.inputFiles.Set(float64(s.inputs.Len()))
	s.logger(ctx).Info("input directory loaded", "dir", dir, "files", loaded, "skipped", len(names)-loaded)
	return loaded, nil
}
