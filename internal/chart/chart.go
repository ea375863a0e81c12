// Package chart renders basketball data as standalone HTML charts.
package chart

import (
	"fmt"
	"io"
	"math"
	"regexp"
	"slices"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/dotcommander/courtside/internal/storage/cache"
)

// Chart kinds.
const (
	Bar       = "bar"
	Line      = "line"
	Pie       = "pie"
	Scatter   = "scatter"
	Histogram = "histogram"
)

// Kinds lists the chart kinds Render accepts.
var Kinds = []string{Bar, Line, Pie, Scatter, Histogram}

// DefaultBins is the histogram bin count when Spec.Bins is zero.
const DefaultBins = 10

// Spec describes one single-series chart. Labels pair with Values by index
// and are ignored by histograms.
type Spec struct {
	Kind   string
	Title  string
	Series string
	XLabel string
	YLabel string
	Labels []string
	Values []float64
	Bins   int
}

// Validate reports a spec Render cannot draw.
func (s Spec) Validate() error {
	if !slices.Contains(Kinds, s.Kind) {
		return fmt.Errorf("unknown chart type %q, want one of %s", s.Kind, strings.Join(Kinds, ", "))
	}
	if len(s.Values) == 0 {
		return fmt.Errorf("no values to plot")
	}
	if s.Kind != Histogram && len(s.Labels) != len(s.Values) {
		return fmt.Errorf("%d labels for %d values", len(s.Labels), len(s.Values))
	}
	if s.Bins < 0 {
		return fmt.Errorf("bins must be positive")
	}
	return nil
}

type renderer interface {
	Render(w io.Writer) error
}

// Render writes s as an HTML page.
func Render(w io.Writer, s Spec) error {
	if err := s.Validate(); err != nil {
		return err
	}
	name := s.Series
	if name == "" {
		name = s.Title
	}
	title := charts.WithTitleOpts(opts.Title{Title: s.Title})
	axes := []charts.GlobalOpts{
		title,
		charts.WithXAxisOpts(opts.XAxis{Name: s.XLabel}),
		charts.WithYAxisOpts(opts.YAxis{Name: s.YLabel}),
	}

	var c renderer
	switch s.Kind {
	case Bar:
		bar := charts.NewBar()
		bar.SetGlobalOptions(axes...)
		bar.SetXAxis(s.Labels)
		bar.AddSeries(name, barData(s.Values))
		c = bar
	case Histogram:
		labels, counts := bin(s.Values, s.Bins)
		bar := charts.NewBar()
		bar.SetGlobalOptions(axes...)
		bar.SetXAxis(labels)
		bar.AddSeries(name, barData(counts))
		c = bar
	case Line:
		line := charts.NewLine()
		line.SetGlobalOptions(axes...)
		line.SetXAxis(s.Labels)
		data := make([]opts.LineData, len(s.Values))
		for i, v := range s.Values {
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(name, data)
		c = line
	case Scatter:
		scatter := charts.NewScatter()
		scatter.SetGlobalOptions(axes...)
		scatter.SetXAxis(s.Labels)
		data := make([]opts.ScatterData, len(s.Values))
		for i, v := range s.Values {
			data[i] = opts.ScatterData{Name: s.Labels[i], Value: v}
		}
		scatter.AddSeries(name, data)
		c = scatter
	case Pie:
		pie := charts.NewPie()
		pie.SetGlobalOptions(title)
		data := make([]opts.PieData, len(s.Values))
		for i, v := range s.Values {
			data[i] = opts.PieData{Name: s.Labels[i], Value: v}
		}
		pie.AddSeries(name, data)
		c = pie
	}
	return c.Render(w)
}

func barData(values []float64) []opts.BarData {
	data := make([]opts.BarData, len(values))
	for i, v := range values {
		data[i] = opts.BarData{Value: v}
	}
	return data
}

// bin counts values into n equal-width bins between their min and max.
func bin(values []float64, n int) (labels []string, counts []float64) {
	if n <= 0 {
		n = DefaultBins
	}
	lo, hi := slices.Min(values), slices.Max(values)
	if lo == hi {
		return []string{formatEdge(lo)}, []float64{float64(len(values))}
	}
	width := (hi - lo) / float64(n)
	counts = make([]float64, n)
	for _, v := range values {
		i := min(int(math.Floor((v-lo)/width)), n-1)
		counts[i]++
	}
	labels = make([]string, n)
	for i := range labels {
		labels[i] = formatEdge(lo+float64(i)*width) + "-" + formatEdge(lo+float64(i+1)*width)
	}
	return labels, counts
}

func formatEdge(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", f), "0"), ".")
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// ID names the file a chart is saved under.
func ID(s Spec) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s.Title), "-"), "-")
	if slug == "" {
		slug = "chart"
	}
	return slug + "-" + s.Kind
}

// Store saves charts under the visuals cache.
type Store struct {
	files *cache.Cache
}

// NewStore opens the visuals directory under baseDir.
func NewStore(baseDir string) (*Store, error) {
	files, err := cache.New(baseDir, cache.Visuals, ".html")
	if err != nil {
		return nil, err
	}
	return &Store{files: files}, nil
}

// Save renders s and returns the path of the written file. A chart with the
// same title and kind is replaced.
func (st *Store) Save(s Spec) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	id := ID(s)
	if err := st.files.Write(id, func(w io.Writer) error { return Render(w, s) }); err != nil {
		return "", fmt.Errorf("save chart: %w", err)
	}
	return st.files.Path(id), nil
}
