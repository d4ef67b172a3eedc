package viz

import (
	"bytes"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

type PlotType int

const (
	PlotTypeDefault PlotType = iota
	PlotTypeScatter
	PlotTypeLines
)

// TimeDomainPlotter shows the last size samples of a real stream.
type TimeDomainPlotter struct {
	mu sync.Mutex

	bufFloat    []float32
	size        int
	name        string
	plotFunc    func(*plot.Plot, ...interface{}) error
	plotOptions []PlotOptions
}

func NewTimeDomainPlotter(name string, size int) *TimeDomainPlotter {
	return &TimeDomainPlotter{
		bufFloat: make([]float32, 0, size),
		size:     size,
		name:     name,
		plotFunc: plotutil.AddScatters,
	}
}

func (t *TimeDomainPlotter) Name() string {
	return t.name
}

func (t *TimeDomainPlotter) SetPlotType(tp PlotType) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch tp {
	case PlotTypeLines:
		t.plotFunc = plotutil.AddLines
	default:
		t.plotFunc = plotutil.AddScatters
	}
}

func (tp *TimeDomainPlotter) Receive(f []float32) error {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	tp.bufFloat = append(tp.bufFloat, f...)
	if n := len(tp.bufFloat); n > tp.size {
		copy(tp.bufFloat, tp.bufFloat[n-tp.size:])
		tp.bufFloat = tp.bufFloat[:tp.size]
	}
	return nil
}

// Samples returns a copy of what the next image would show, or nil until the
// buffer has filled up.
func (tp *TimeDomainPlotter) Samples() []float32 {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	if len(tp.bufFloat) < tp.size {
		return nil
	}
	return append([]float32(nil), tp.bufFloat...)
}

func (tp *TimeDomainPlotter) AddPlotOption(opt PlotOptions) {
	tp.mu.Lock()
	tp.plotOptions = append(tp.plotOptions, opt)
	tp.mu.Unlock()
}

func (tp *TimeDomainPlotter) GetImage() (*ImageContainer, error) {
	samples := tp.Samples()
	if samples == nil {
		return nil, nil
	}

	tp.mu.Lock()
	plotFunc := tp.plotFunc
	opts := append([]PlotOptions(nil), tp.plotOptions...)
	tp.mu.Unlock()

	p := plotWithDefaults()
	p.Title.Text = tp.name
	p.Y.Label.Text = "Amplitude"
	p.Y.Min = -4
	p.Y.Max = 4
	p.X.Label.Text = "t"

	for _, opt := range opts {
		opt(p)
	}

	p.Add(plotter.NewGrid())

	points := make(plotter.XYs, len(samples))
	for i, v := range samples {
		points[i] = plotter.XY{X: float64(i), Y: float64(v)}
	}
	if err := plotFunc(p, "f(t)", points); err != nil {
		return nil, err
	}

	var imageData bytes.Buffer
	w, err := p.WriterTo(8*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return nil, err
	}
	if _, err := w.WriteTo(&imageData); err != nil {
		return nil, err
	}
	return &ImageContainer{name: tp.name, data: imageData.Bytes()}, nil
}
