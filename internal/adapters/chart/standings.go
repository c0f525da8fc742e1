// Package chart renders season standings as PNG images.
package chart

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/okian/duelkit/internal/domain/standings"
)

// Kinds of standings charts.
const (
	KindLine = "line"
	KindBar  = "bar"
)

// PNG content type served for rendered charts.
const ContentType = "image/png"

const (
	lineWidth  = 900
	lineHeight = 500
	barWidth   = 40
	barSpacing = 24
	barHeight  = 450
	minWidth   = 480
	maxYTicks  = 10
)

// Palette colors a chart.
type Palette struct {
	Background drawing.Color
	Text       drawing.Color
	Series     []drawing.Color
}

// DefaultPalette is a dark theme that reads well inside Discord embeds.
var DefaultPalette = Palette{
	Background: drawing.ColorFromHex("2b2d31"),
	Text:       drawing.ColorFromHex("dbdee1"),
	Series: []drawing.Color{
		drawing.ColorFromHex("5865f2"),
		drawing.ColorFromHex("57f287"),
		drawing.ColorFromHex("fee75c"),
		drawing.ColorFromHex("eb459e"),
		drawing.ColorFromHex("ed4245"),
		drawing.ColorFromHex("3ba55c"),
		drawing.ColorFromHex("faa61a"),
		drawing.ColorFromHex("00b0f4"),
	},
}

func (p Palette) color(i int) drawing.Color {
	if len(p.Series) == 0 {
		return chart.GetDefaultColor(i)
	}
	return p.Series[i%len(p.Series)]
}

// Render draws the chart of the given kind.
func Render(kind string, s standings.Season, p Palette) ([]byte, error) {
	switch kind {
	case KindLine:
		return Line(s, p)
	case KindBar:
		return Bar(s, p)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Line plots every player's cumulative wins after each week.
func Line(s standings.Season, p Palette) ([]byte, error) {
	if len(s.Records) == 0 || len(s.Weeks) == 0 {
		return renderNoDataPlaceholder(p)
	}

	xTicks := make([]chart.Tick, len(s.Weeks)+1)
	for i := range xTicks {
		xTicks[i] = chart.Tick{Value: float64(i), Label: "W" + strconv.Itoa(i)}
	}

	top := 0
	series := make([]chart.Series, 0, len(s.Records))
	for i, r := range s.Records {
		xs := make([]float64, len(r.Cumulative))
		ys := make([]float64, len(r.Cumulative))
		for w, v := range r.Cumulative {
			xs[w] = float64(w)
			ys[w] = float64(v)
		}
		top = max(top, r.Total)
		c := p.color(i)
		series = append(series, chart.ContinuousSeries{
			Name:    r.Player,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: c,
				StrokeWidth: 2,
				DotColor:    c,
				DotWidth:    3,
			},
		})
	}

	graph := chart.Chart{
		Title:      "Cumulative wins",
		TitleStyle: chart.Style{FontColor: p.Text},
		Width:      lineWidth,
		Height:     lineHeight,
		Background: chart.Style{
			FillColor: p.Background,
			Padding:   chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		Canvas: chart.Style{
			FillColor: p.Background,
		},
		XAxis: chart.XAxis{
			Name:      "Week",
			NameStyle: chart.Style{FontColor: p.Text},
			Style:     chart.Style{FontColor: p.Text},
			Range:     &chart.ContinuousRange{Min: 0, Max: float64(len(s.Weeks))},
			Ticks:     xTicks,
		},
		YAxis: chart.YAxis{
			Name:      "Wins",
			NameStyle: chart.Style{FontColor: p.Text},
			Style:     chart.Style{FontColor: p.Text},
			Range:     &chart.ContinuousRange{Min: 0, Max: float64(max(top, 1))},
			Ticks:     intTicks(top),
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{
		chart.Legend(&graph, chart.Style{FillColor: p.Background, FontColor: p.Text, StrokeColor: p.Text}),
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	return buffer.Bytes(), nil
}

// Bar plots every player's season total.
func Bar(s standings.Season, p Palette) ([]byte, error) {
	if len(s.Records) == 0 {
		return renderNoDataPlaceholder(p)
	}

	top := 0
	bars := make([]chart.Value, len(s.Records))
	for i, r := range s.Records {
		top = max(top, r.Total)
		c := p.color(i)
		bars[i] = chart.Value{
			Label: r.Player,
			Value: float64(r.Total),
			Style: chart.Style{FillColor: c, StrokeColor: c},
		}
	}

	graph := chart.BarChart{
		Title:      "Season wins",
		TitleStyle: chart.Style{FontColor: p.Text},
		Width:      max(minWidth, 120+len(bars)*(barWidth+barSpacing)*3/2),
		Height:     barHeight,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		Background: chart.Style{
			FillColor: p.Background,
			Padding:   chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		Canvas: chart.Style{FillColor: p.Background},
		XAxis:  chart.Style{FontColor: p.Text},
		YAxis: chart.YAxis{
			Style: chart.Style{FontColor: p.Text},
			Range: &chart.ContinuousRange{Min: 0, Max: float64(max(top, 1))},
			Ticks: intTicks(top),
		},
		Bars: bars,
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	return buffer.Bytes(), nil
}

// intTicks labels the win axis with whole numbers only.
func intTicks(top int) []chart.Tick {
	top = max(top, 1)
	step := (top + maxYTicks - 1) / maxYTicks
	var ticks []chart.Tick
	for v := 0; v <= top; v += step {
		ticks = append(ticks, chart.Tick{Value: float64(v), Label: strconv.Itoa(v)})
	}
	if ticks[len(ticks)-1].Value != float64(top) {
		ticks = append(ticks, chart.Tick{Value: float64(top), Label: strconv.Itoa(top)})
	}
	return ticks
}

func renderNoDataPlaceholder(p Palette) ([]byte, error) {
	const (
		width  = 400
		height = 200
		msg    = "No standings yet"
	)

	graph := chart.Chart{
		Width:  width,
		Height: height,
		Background: chart.Style{
			FillColor: p.Background,
		},
		Canvas: chart.Style{
			FillColor: p.Background,
		},
		XAxis: chart.XAxis{Style: chart.Hidden()},
		YAxis: chart.YAxis{Style: chart.Hidden()},
		// Render refuses a chart without a visible series or with a flat range.
		Series: []chart.Series{chart.ContinuousSeries{
			XValues: []float64{0, 1},
			YValues: []float64{0, 1},
			Style:   chart.Style{StrokeColor: drawing.ColorTransparent},
		}},
		Elements: []chart.Renderable{
			func(r chart.Renderer, cb chart.Box, _ chart.Style) {
				r.SetFontColor(p.Text)
				r.SetFontSize(12.0)
				tb := r.MeasureText(msg)
				x := (cb.Width() - tb.Width()) / 2
				y := (cb.Height() + tb.Height()) / 2
				r.Text(msg, x, y)
			},
		},
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	return buffer.Bytes(), nil
}
