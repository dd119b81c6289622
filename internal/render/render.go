// Package render draws scanned roadmaps as PNG plots and HTML charts.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/overdrive/internal/track"
)

// ErrEmptyRoadmap is returned when there is nothing to draw.
var ErrEmptyRoadmap = errors.New("render: empty roadmap")

// Point is one vertex of a roadmap's centerline, in millimetres.
type Point struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label string  `json:"label"`
}

// Outline returns the world entry point of every piece from the anchor,
// labelled "n:kind". An open roadmap ends with the exit point of its last
// piece; a complete one ends back at the first entry point.
func Outline(rm *track.Roadmap) []Point {
	var (
		pts  []Point
		last track.Placed
	)
	for p := range rm.Pieces() {
		e := p.WorldEntry()
		pts = append(pts, Point{X: e.X(), Y: e.Y(), Label: fmt.Sprintf("%d:%s", len(pts)+1, p.Kind())})
		last = p
	}
	if len(pts) == 0 {
		return nil
	}
	if rm.IsComplete() {
		pts = append(pts, Point{X: pts[0].X, Y: pts[0].Y})
	} else {
		e := last.WorldExit()
		pts = append(pts, Point{X: e.X(), Y: e.Y()})
	}
	return pts
}

// PlotPNG writes a square PNG of the roadmap centerline with a label at
// each piece entry.
func PlotPNG(w io.Writer, rm *track.Roadmap, title string) error {
	pts := Outline(rm)
	if len(pts) == 0 {
		return ErrEmptyRoadmap
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (mm)"
	p.Y.Label.Text = "y (mm)"
	p.Add(plotter.NewGrid())

	xys := make(plotter.XYs, len(pts))
	labels := make([]string, len(pts))
	for i, pt := range pts {
		xys[i] = plotter.XY{X: pt.X, Y: pt.Y}
		labels[i] = pt.Label
	}

	line, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("centerline: %w", err)
	}
	line.Width = vg.Points(2)
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}

	scatter, err := plotter.NewScatter(xys[:len(xys)-1])
	if err != nil {
		return fmt.Errorf("entry points: %w", err)
	}
	scatter.Radius = vg.Points(3)

	lbls, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return fmt.Errorf("labels: %w", err)
	}
	p.Add(line, scatter, lbls)

	wt, err := p.WriterTo(6*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// ChartHTML writes a standalone echarts page plotting the roadmap
// centerline on value axes.
func ChartHTML(w io.Writer, rm *track.Roadmap, title string) error {
	pts := Outline(rm)
	if len(pts) == 0 {
		return ErrEmptyRoadmap
	}

	data := make([]opts.LineData, len(pts))
	for i, pt := range pts {
		data[i] = opts.LineData{Name: pt.Label, Value: []interface{}{pt.X, pt.Y}}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("pieces=%d complete=%t", rm.Len(), rm.IsComplete())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "X (mm)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Y (mm)", NameLocation: "middle", NameGap: 40}),
	)
	line.AddSeries("centerline", data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
