// Package catalog finds the per-timestep NetCDF files of each dataset root.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/lowercolorado/flowpath-viewer/services/dashboard/memo"
)

// Extension is the suffix of a time-slice file.
const Extension = ".nc"

// ErrMissingSlice is returned when a dataset root lacks a time slice that
// the first dataset has.
var ErrMissingSlice = errors.New("time slice missing from dataset")

// Locator lists time-slice files, memoizing per root.
type Locator struct {
	cache *memo.Cache[[]string]
}

// NewLocator wraps cache; a nil cache disables memoization.
func NewLocator(cache *memo.Cache[[]string]) *Locator {
	return &Locator{cache: cache}
}

// List returns the sorted time-slice paths directly under root. A missing
// or empty directory yields an empty list.
func (l *Locator) List(root string) ([]string, error) {
	if l.cache == nil {
		return list(root)
	}
	return l.cache.Do("catalog.List", []any{root}, func() ([]string, error) {
		return list(root)
	})
}

// Names returns the base names of the time slices under root.
func (l *Locator) Names(root string) ([]string, error) {
	paths, err := l.List(root)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return names, nil
}

// Match resolves name in every root, in root order.
func (l *Locator) Match(roots []string, name string) ([]string, error) {
	out := make([]string, 0, len(roots))
	for _, root := range roots {
		p := filepath.Join(root, filepath.Base(name))
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			return nil, fmt.Errorf("%w: %s in %s", ErrMissingSlice, filepath.Base(name), root)
		}
		out = append(out, p)
	}
	return out, nil
}

func list(root string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(root, "*"+Extension))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", root, err)
	}
	files := make([]string, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, m)
	}
	sort.Strings(files)
	return files, nil
}
