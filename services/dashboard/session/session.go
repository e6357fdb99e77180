// Package session keeps the dashboard controls of one operator session.
// State values are immutable: handlers receive a copy, derive a new State
// and hand it back to the Store.
package session

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// ErrInvalidUpdate wraps rejected control changes.
var ErrInvalidUpdate = errors.New("invalid session update")

// Columns are the value columns a chart can plot.
var Columns = []string{"flow", "velocity", "depth"}

// Phase is the presenter state derived from the selection.
type Phase string

const (
	NoSelection  Phase = "NoSelection"
	HasSelection Phase = "HasSelection"
)

// TimeRange bounds the plotted rows. Zero ends are open.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// State is the set of controls of one session.
type State struct {
	ID            string    `json:"id"`
	Datasets      []string  `json:"datasets"`
	LayerPath     string    `json:"layer_path"`
	File          string    `json:"file"`
	ShowMap       bool      `json:"show_map"`
	Selection     Selection `json:"selection"`
	Column        string    `json:"column"`
	Range         TimeRange `json:"time_range"`
	ShowFullTable bool      `json:"show_full_table"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Phase reports whether anything is selected.
func (s State) Phase() Phase {
	if s.Selection.Len() == 0 {
		return NoSelection
	}
	return HasSelection
}

// Update is a partial change of controls. Nil fields are left alone.
type Update struct {
	Datasets      []string   `json:"datasets"`
	AddDataset    *string    `json:"add_dataset"`
	LayerPath     *string    `json:"layer_path"`
	File          *string    `json:"file"`
	ShowMap       *bool      `json:"show_map"`
	Selection     *Selection `json:"selection"`
	Column        *string    `json:"column"`
	From          *time.Time `json:"from"`
	To            *time.Time `json:"to"`
	ShowFullTable *bool      `json:"show_full_table"`
}

// Apply returns s with u applied.
func (s State) Apply(u Update) (State, error) {
	next := s
	next.Datasets = slices.Clone(s.Datasets)

	if u.Datasets != nil {
		next.Datasets = cleanPaths(u.Datasets)
	}
	if u.AddDataset != nil {
		if p := strings.TrimSpace(*u.AddDataset); p != "" && !slices.Contains(next.Datasets, p) {
			next.Datasets = append(next.Datasets, p)
		}
	}
	if u.LayerPath != nil {
		next.LayerPath = strings.TrimSpace(*u.LayerPath)
	}
	if u.File != nil {
		next.File = strings.TrimSpace(*u.File)
	}
	if u.ShowMap != nil {
		next.ShowMap = *u.ShowMap
	}
	if u.Selection != nil {
		next.Selection = *u.Selection
	}
	if u.Column != nil {
		if !slices.Contains(Columns, *u.Column) {
			return s, fmt.Errorf("%w: column must be one of %s", ErrInvalidUpdate, strings.Join(Columns, ", "))
		}
		next.Column = *u.Column
	}
	if u.From != nil {
		next.Range.From = u.From.UTC()
	}
	if u.To != nil {
		next.Range.To = u.To.UTC()
	}
	if !next.Range.From.IsZero() && !next.Range.To.IsZero() && next.Range.To.Before(next.Range.From) {
		return s, fmt.Errorf("%w: time range ends before it starts", ErrInvalidUpdate)
	}
	if u.ShowFullTable != nil {
		next.ShowFullTable = *u.ShowFullTable
	}
	return next, nil
}

// Toggle returns s with id's selection membership flipped.
func (s State) Toggle(id int64) State {
	next := s
	next.Selection = s.Selection.Toggle(id)
	return next
}

func cleanPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}
