package view

import (
	"fmt"
	"strconv"
	"strings"
)

// ChartStyle is how the account chart draws its income and expense series.
type ChartStyle string

const (
	AreaStyle ChartStyle = "area"
	LineStyle ChartStyle = "line"
)

// DefaultChartStyle is used until the user picks another one.
const DefaultChartStyle = AreaStyle

// ChartStyles lists the styles in menu order.
func ChartStyles() []ChartStyle { return []ChartStyle{AreaStyle, LineStyle} }

// ParseChartStyle accepts "area" or "line"; empty means the default.
func ParseChartStyle(s string) (ChartStyle, error) {
	switch ChartStyle(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultChartStyle, nil
	case AreaStyle:
		return AreaStyle, nil
	case LineStyle:
		return LineStyle, nil
	}
	return "", fmt.Errorf("unknown chart style %q", s)
}

func (s ChartStyle) Label() string {
	if s == LineStyle {
		return "Line"
	}
	return "Area"
}

// Plot area in SVG user units.
const (
	PlotWidth  = 600
	PlotHeight = 200
)

// Series is one polyline in plot coordinates. Area closes the line down to
// the baseline and is empty for the line style.
type Series struct {
	Line string
	Area string
}

// Plot is the chart laid out for drawing.
type Plot struct {
	Style   ChartStyle
	Width   int
	Height  int
	Income  Series
	Expense Series
}

// Plot lays the buckets out left to right over PlotWidth, scaling values
// against MaxValue so the largest one touches the top. A single bucket is
// centred.
func (c Chart) Plot(style ChartStyle) Plot {
	if style != LineStyle {
		style = AreaStyle
	}
	p := Plot{Style: style, Width: PlotWidth, Height: PlotHeight}
	if len(c.Buckets) == 0 {
		return p
	}

	top := c.MaxValue().InexactFloat64()
	xs := make([]float64, len(c.Buckets))
	income := make([]float64, len(c.Buckets))
	expense := make([]float64, len(c.Buckets))
	for i, b := range c.Buckets {
		xs[i] = PlotWidth / 2
		if len(c.Buckets) > 1 {
			xs[i] = float64(i) * PlotWidth / float64(len(c.Buckets)-1)
		}
		income[i] = plotY(b.Income.InexactFloat64(), top)
		expense[i] = plotY(b.Expense.InexactFloat64(), top)
	}
	p.Income = series(xs, income, style)
	p.Expense = series(xs, expense, style)
	return p
}

func plotY(v, top float64) float64 {
	if top <= 0 {
		return PlotHeight
	}
	return PlotHeight - v/top*PlotHeight
}

func series(xs, ys []float64, style ChartStyle) Series {
	pts := make([]string, len(xs))
	for i := range xs {
		pts[i] = point(xs[i], ys[i])
	}
	s := Series{Line: strings.Join(pts, " ")}
	if style == AreaStyle {
		s.Area = point(xs[0], PlotHeight) + " " + s.Line + " " + point(xs[len(xs)-1], PlotHeight)
	}
	return s
}

func point(x, y float64) string {
	return strconv.FormatFloat(x, 'f', 1, 64) + "," + strconv.FormatFloat(y, 'f', 1, 64)
}
