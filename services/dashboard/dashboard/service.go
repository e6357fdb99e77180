// Package dashboard recomputes the comparison view of a session: the file
// and feature options, the merged table, the chart series and the map.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/lowercolorado/flowpath-viewer/services/dashboard/catalog"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/chart"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/frame"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/hydrofabric"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/observability"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/session"
)

// Warnings replace a rendering step that has nothing to show.
const (
	WarnNoFiles     = "no NetCDF files found"
	WarnNoSelection = "select at least one feature_id"
	WarnNoRows      = "no data for the selected feature_ids"
	WarnEmptyRange  = "no data for the selected time range"
)

// ErrMapHidden is returned for map requests of a session with the map off.
var ErrMapHidden = errors.New("map is turned off for this session")

// WarningError carries the warning that stopped a rendering step.
type WarningError struct {
	Warning string
}

func (e *WarningError) Error() string { return e.Warning }

// Locator lists and resolves time-slice files.
type Locator interface {
	List(root string) ([]string, error)
	Names(root string) ([]string, error)
	Match(roots []string, name string) ([]string, error)
}

// FrameLoader decodes one time-slice file.
type FrameLoader interface {
	Load(path string) (*frame.Frame, error)
}

// LayerReader returns a prepared flowpath layer.
type LayerReader interface {
	Read(ctx context.Context, path string) (*hydrofabric.Layer, error)
}

// Options tune a Service. Logger and Metrics are optional.
type Options struct {
	Join       frame.JoinMode
	FitPadding float64
	Logger     *slog.Logger
	Metrics    *observability.Metrics
}

// Service renders session views.
type Service struct {
	locator Locator
	loader  FrameLoader
	layers  LayerReader
	join    frame.JoinMode
	padding float64
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New wires a Service. layers may be nil when no flowpath source is set.
func New(locator Locator, loader FrameLoader, layers LayerReader, opts Options) *Service {
	if opts.Join == "" {
		opts.Join = frame.JoinInner
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		locator: locator,
		loader:  loader,
		layers:  layers,
		join:    opts.Join,
		padding: opts.FitPadding,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
}

// TimeBounds is the time span of the selected rows.
type TimeBounds struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// View is everything one interaction shows.
type View struct {
	Phase      session.Phase  `json:"phase"`
	Files      []string       `json:"files"`
	File       string         `json:"file,omitempty"`
	Features   []int64        `json:"features"`
	Selection  []int64        `json:"selection"`
	Column     string         `json:"column"`
	Join       frame.JoinMode `json:"join"`
	TimeBounds *TimeBounds    `json:"time_bounds,omitempty"`
	Range      *TimeBounds    `json:"time_range,omitempty"`
	Table      *frame.Table   `json:"table,omitempty"`
	Series     []chart.Series `json:"series,omitempty"`
	Warnings   []string       `json:"warnings"`
}

func (v *View) warn(w string) {
	v.Warnings = append(v.Warnings, w)
}

// Files returns the time-slice names of the first dataset.
func (s *Service) Files(st session.State) ([]string, error) {
	if len(st.Datasets) == 0 {
		return []string{}, nil
	}
	return s.locator.Names(st.Datasets[0])
}

// Features returns the feature ids of the selected time slice of the first
// dataset.
func (s *Service) Features(st session.State) ([]int64, error) {
	files, err := s.Files(st)
	if err != nil || len(files) == 0 {
		return []int64{}, err
	}
	name, err := pickFile(files, st.File)
	if err != nil {
		return nil, err
	}
	paths, err := s.locator.Match(st.Datasets[:1], name)
	if err != nil {
		return nil, err
	}
	f, err := s.loader.Load(paths[0])
	if err != nil {
		return nil, err
	}
	return frame.FeatureIDs(f), nil
}

// Render recomputes the view of st from scratch.
func (s *Service) Render(ctx context.Context, st session.State) (*View, error) {
	v := &View{
		Phase:     st.Phase(),
		Files:     []string{},
		Features:  []int64{},
		Selection: st.Selection.IDs(),
		Column:    st.Column,
		Join:      s.join,
		Warnings:  []string{},
	}

	files, err := s.Files(st)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		v.warn(WarnNoFiles)
		return v, nil
	}
	v.Files = files

	if v.File, err = pickFile(files, st.File); err != nil {
		return nil, err
	}
	paths, err := s.locator.Match(st.Datasets, v.File)
	if err != nil {
		return nil, err
	}
	selected := make([]*frame.Frame, len(paths))
	for i, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if selected[i], err = s.loader.Load(p); err != nil {
			return nil, err
		}
	}
	v.Features = frame.FeatureIDs(selected[0])

	if st.Phase() == session.NoSelection {
		v.warn(WarnNoSelection)
		return v, nil
	}

	ids := st.Selection.IDs()
	restricted, err := s.restrictDatasets(ctx, st.Datasets, ids)
	if err != nil {
		return nil, err
	}

	minT, maxT, ok := frame.TimeBounds(restricted...)
	if !ok {
		v.warn(WarnNoRows)
		return v, nil
	}
	v.TimeBounds = &TimeBounds{Min: minT, Max: maxT}

	from, to := minT, maxT
	if !st.Range.From.IsZero() {
		from = st.Range.From
	}
	if !st.Range.To.IsZero() {
		to = st.Range.To
	}
	v.Range = &TimeBounds{Min: from, Max: to}

	filtered := make([]*frame.Frame, len(restricted))
	anyEmpty := false
	for i, f := range restricted {
		filtered[i] = frame.BetweenTimes(f, from, to)
		anyEmpty = anyEmpty || filtered[i].Empty()
	}

	merged, err := frame.Merge(s.join, filtered...)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.MergedRows.Observe(float64(merged.Len()))
	}

	var table frame.Table
	if st.ShowFullTable {
		table = frame.FullTable(merged)
	} else if table, err = frame.ReducedTable(merged, st.Column); err != nil {
		return nil, err
	}
	v.Table = &table

	if anyEmpty {
		v.warn(WarnEmptyRange)
		return v, nil
	}
	v.Series = chart.Build(filtered, ids, st.Column)

	s.logger.Debug("rendered view",
		"session", st.ID,
		"datasets", len(st.Datasets),
		"selected", len(ids),
		"merged_rows", merged.Len(),
	)
	return v, nil
}

// restrictDatasets concatenates every time slice of each dataset, keeping
// only the rows of ids.
func (s *Service) restrictDatasets(ctx context.Context, roots []string, ids []int64) ([]*frame.Frame, error) {
	out := make([]*frame.Frame, len(roots))
	for i, root := range roots {
		paths, err := s.locator.List(root)
		if err != nil {
			return nil, err
		}
		parts := make([]*frame.Frame, 0, len(paths))
		for _, p := range paths {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			f, err := s.loader.Load(p)
			if err != nil {
				return nil, err
			}
			parts = append(parts, frame.Restrict(f, ids))
		}
		out[i] = frame.Concat(parts...)
	}
	return out, nil
}

// Chart renders the chart of st. A view that ends in a warning yields a
// *WarningError.
func (s *Service) Chart(ctx context.Context, st session.State, w io.Writer, format chart.Format) error {
	v, err := s.Render(ctx, st)
	if err != nil {
		return err
	}
	if len(v.Warnings) > 0 {
		return &WarningError{Warning: v.Warnings[0]}
	}
	if err := chart.Render(w, format, st.Column, v.Series); err != nil {
		if errors.Is(err, chart.ErrNoData) {
			return &WarningError{Warning: WarnEmptyRange}
		}
		return err
	}
	return nil
}

// Table renders the table of st as CSV.
func (s *Service) Table(ctx context.Context, st session.State, w io.Writer) error {
	v, err := s.Render(ctx, st)
	if err != nil {
		return err
	}
	if v.Table == nil {
		return &WarningError{Warning: v.Warnings[0]}
	}
	return v.Table.WriteCSV(w)
}

// Map styles the flowpath layer of st with its selection highlighted.
func (s *Service) Map(ctx context.Context, st session.State) (*hydrofabric.Map, error) {
	if !st.ShowMap {
		return nil, ErrMapHidden
	}
	if s.layers == nil {
		return nil, fmt.Errorf("%w: no flowpath source configured", hydrofabric.ErrLayerNotFound)
	}
	layer, err := s.layers.Read(ctx, st.LayerPath)
	if err != nil {
		return nil, err
	}
	return hydrofabric.BuildMap(layer, st.Selection.IDs(), s.padding)
}

// Toggle flips id in the selection of st.
func (s *Service) Toggle(st session.State, id int64) session.State {
	s.countClick("toggled")
	return st.Toggle(id)
}

// Click applies a map click given as the tooltip text of the clicked
// flowpath. ok is false, and st is returned unchanged, when the tooltip
// does not name a feature.
func (s *Service) Click(st session.State, tooltip string) (next session.State, ok bool) {
	id, ok := session.ParseTooltip(tooltip)
	if !ok {
		s.countClick("ignored")
		s.logger.Debug("ignored map click", "session", st.ID)
		return st, false
	}
	return s.Toggle(st, id), true
}

func (s *Service) countClick(outcome string) {
	if s.metrics != nil {
		s.metrics.MapClicks.WithLabelValues(outcome).Inc()
	}
}

func pickFile(files []string, want string) (string, error) {
	if want == "" {
		return files[0], nil
	}
	if !slices.Contains(files, want) {
		return "", fmt.Errorf("%w: %s", catalog.ErrMissingSlice, want)
	}
	return want, nil
}
