package status

import (
	"bytes"
	"image/color"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// darkPlot returns a plot styled white on black.
func darkPlot() *plot.Plot {
	p := plot.New()
	p.BackgroundColor = color.Black
	p.Title.TextStyle.Color = color.White
	p.Legend.TextStyle.Color = color.White
	for _, axis := range []*plot.Axis{&p.X, &p.Y} {
		axis.Color = color.White
		axis.Label.TextStyle.Color = color.White
		axis.Tick.Color = color.White
		axis.Tick.Label.Color = color.White
	}
	return p
}

type altitudePoint struct {
	t   time.Time
	alt float64
}

// altitudePNG plots altitude against minutes since the first point.
func altitudePNG(history []altitudePoint) ([]byte, error) {
	p := darkPlot()
	p.Title.Text = "Altitude"
	p.Y.Label.Text = "m"
	p.X.Label.Text = "min"

	xys := make(plotter.XYs, len(history))
	alts := make([]float64, len(history))
	for i, h := range history {
		xys[i] = plotter.XY{X: h.t.Sub(history[0].t).Minutes(), Y: h.alt}
		alts[i] = h.alt
	}

	lo, hi := floats.Min(alts), floats.Max(alts)
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = 10
	}
	p.Y.Min = lo - pad
	p.Y.Max = hi + pad

	p.Add(plotter.NewGrid())
	if err := plotutil.AddLines(p, "altitude", xys); err != nil {
		return nil, err
	}

	w, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
