// Package viz renders live plots of stream probes and serves them over HTTP.
package viz

import (
	"image/color"

	"gonum.org/v1/plot"
)

type PlotOptions func(p *plot.Plot)

// YRange fixes the vertical axis.
func YRange(min, max float64) PlotOptions {
	return func(p *plot.Plot) {
		p.Y.Min = min
		p.Y.Max = max
	}
}

// XRange fixes the horizontal axis.
func XRange(min, max float64) PlotOptions {
	return func(p *plot.Plot) {
		p.X.Min = min
		p.X.Max = max
	}
}

// plotWithDefaults returns a white on black plot.
func plotWithDefaults() *plot.Plot {
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

