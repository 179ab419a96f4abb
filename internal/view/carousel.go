package view

import "fmt"

// ChartKind is one slide of the summary chart carousel.
type ChartKind string

const (
	BarChart      ChartKind = "bar"
	PieChart      ChartKind = "pie"
	ComposedChart ChartKind = "composed"
)

var carouselOrder = []ChartKind{BarChart, PieChart, ComposedChart}

// SwipeThreshold is the minimum horizontal travel, in pixels, of a swipe.
const SwipeThreshold = 50

// Carousel cycles through the summary charts.
type Carousel struct {
	Current ChartKind
}

func NewCarousel() Carousel { return Carousel{Current: BarChart} }

func ParseChartKind(s string) (ChartKind, error) {
	for _, k := range carouselOrder {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown chart kind %q", s)
}

func (c Carousel) index() int {
	for i, k := range carouselOrder {
		if k == c.Current {
			return i
		}
	}
	return 0
}

func (c Carousel) Next() Carousel {
	return Carousel{Current: carouselOrder[(c.index()+1)%len(carouselOrder)]}
}

func (c Carousel) Prev() Carousel {
	n := len(carouselOrder)
	return Carousel{Current: carouselOrder[(c.index()-1+n)%n]}
}

// Swipe applies a touch gesture. Only mostly-horizontal moves longer than
// SwipeThreshold count; a move to the right goes back.
func (c Carousel) Swipe(dx, dy int) Carousel {
	adx, ady := abs(dx), abs(dy)
	if adx <= SwipeThreshold || adx <= ady {
		return c
	}
	if dx > 0 {
		return c.Prev()
	}
	return c.Next()
}

// Kinds lists the slides in order, for rendering the dot indicators.
func (c Carousel) Kinds() []ChartKind {
	out := make([]ChartKind, len(carouselOrder))
	copy(out, carouselOrder)
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
