// Package chart draws the comparison line chart of one value column.
package chart

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"

	"github.com/lowercolorado/flowpath-viewer/services/dashboard/frame"
)

// ErrNoData is returned when no series has a plottable point.
var ErrNoData = errors.New("no data to plot")

// Format selects the image encoding.
type Format string

const (
	PNG Format = "png"
	SVG Format = "svg"
)

// ParseFormat accepts "png" and "svg"; empty means PNG.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", PNG:
		return PNG, nil
	case SVG:
		return SVG, nil
	}
	return "", fmt.Errorf("unsupported chart format %q", s)
}

// ContentType is the MIME type of the rendered image.
func (f Format) ContentType() string {
	if f == SVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// Point is one plotted sample.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Series is the trace of one feature in one dataset. Dataset is 1-based.
type Series struct {
	Dataset   int     `json:"dataset"`
	FeatureID int64   `json:"feature_id"`
	Label     string  `json:"label"`
	Points    []Point `json:"points"`
}

// Build extracts one series per (feature, dataset) from the per-dataset
// frames, features outermost. NaN samples are dropped.
func Build(datasets []*frame.Frame, ids []int64, column string) []Series {
	out := make([]Series, 0, len(ids)*len(datasets))
	for _, id := range ids {
		for i, f := range datasets {
			s := Series{
				Dataset:   i + 1,
				FeatureID: id,
				Label:     fmt.Sprintf("Dataset %d - feature_id: %d", i+1, id),
				Points:    []Point{},
			}
			if f != nil {
				if col := f.ColumnIndex(column); col >= 0 {
					for _, r := range frame.ForFeature(f, id).Rows {
						if math.IsNaN(r.Values[col]) {
							continue
						}
						s.Points = append(s.Points, Point{Time: r.Time, Value: r.Values[col]})
					}
				}
			}
			out = append(out, s)
		}
	}
	return out
}

// Title is the chart heading for column.
func Title(column string) string {
	return fmt.Sprintf("%s vs Time for selected feature_ids", capitalize(column))
}

// Render draws series as a line chart of column against time.
func Render(w io.Writer, format Format, column string, series []Series) error {
	plotted := make([]gochart.Series, 0, len(series))
	minY, maxY := math.Inf(1), math.Inf(-1)
	var minT, maxT time.Time

	for i, s := range series {
		if len(s.Points) == 0 {
			continue
		}
		xs := make([]time.Time, 0, len(s.Points)+1)
		ys := make([]float64, 0, len(s.Points)+1)
		for _, p := range s.Points {
			xs = append(xs, p.Time)
			ys = append(ys, p.Value)
			minY, maxY = math.Min(minY, p.Value), math.Max(maxY, p.Value)
			if minT.IsZero() || p.Time.Before(minT) {
				minT = p.Time
			}
			if p.Time.After(maxT) {
				maxT = p.Time
			}
		}
		// go-chart needs at least two X values per series.
		if len(xs) == 1 {
			xs = append(xs, xs[0].Add(time.Second))
			ys = append(ys, ys[0])
		}
		plotted = append(plotted, gochart.TimeSeries{
			Name:    s.Label,
			XValues: xs,
			YValues: ys,
			Style:   seriesStyle(i, s.Dataset),
		})
	}
	if len(plotted) == 0 {
		return ErrNoData
	}

	if !maxT.After(minT) {
		maxT = minT.Add(time.Second)
	}
	if maxY <= minY {
		pad := math.Max(math.Abs(minY)*0.05, 1)
		minY, maxY = minY-pad, maxY+pad
	}

	ch := gochart.Chart{
		Title:      Title(column),
		Width:      960,
		Height:     540,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: gochart.XAxis{
			Name:           "Time",
			ValueFormatter: gochart.TimeValueFormatterWithFormat("2006-01-02 15:04"),
			Range:          &gochart.ContinuousRange{Min: gochart.TimeToFloat64(minT), Max: gochart.TimeToFloat64(maxT)},
		},
		YAxis: gochart.YAxis{
			Name:  capitalize(column),
			Range: &gochart.ContinuousRange{Min: minY, Max: maxY},
		},
		Series: plotted,
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}

	provider := gochart.PNG
	if format == SVG {
		provider = gochart.SVG
	}
	if err := ch.Render(provider, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// seriesStyle draws the first dataset solid and later ones dashed.
func seriesStyle(i, dataset int) gochart.Style {
	color := gochart.GetDefaultColor(i)
	st := gochart.Style{
		StrokeColor: color,
		StrokeWidth: 2,
		DotColor:    color,
		DotWidth:    3,
	}
	if dataset > 1 {
		st.StrokeDashArray = []float64{6, 4}
	}
	return st
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
