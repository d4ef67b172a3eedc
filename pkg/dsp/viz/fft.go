package viz

import (
	"bytes"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/norasector/aisrx/pkg/dsp/filters/fir"
	"github.com/norasector/aisrx/pkg/dsp/stream"
)

const (
	MIX_AVG = 0.10
	BAL_AVG = 0.05
)

// FFTPlotter keeps the last len samples of a stream and renders their
// averaged power spectrum. Attach it to any connection as an extra receiver.
type FFTPlotter struct {
	mu sync.Mutex

	bufFloat     []float32
	bufComplex   []complex64
	sampleRate   int
	len          int
	isComplex    bool
	averagePower []float64
	avgSumPower  float64
	name         string
	showBalance  bool
	plotOptions  []PlotOptions

	window []float32
	cfft   *fourier.CmplxFFT
	rfft   *fourier.FFT
}

func (f *FFTPlotter) ShowBalance(show bool) {
	f.mu.Lock()
	f.showBalance = show
	f.mu.Unlock()
}

func (f *FFTPlotter) Name() string {
	return f.name
}

func NewFFTPlotterFloat(name string, len, sampleRate int) *FFTPlotter {
	return &FFTPlotter{
		bufFloat:     make([]float32, len),
		averagePower: make([]float64, len),
		len:          len,
		sampleRate:   sampleRate,
		name:         name,
		window:       fir.BlackmanWindow(len),
		rfft:         fourier.NewFFT(len),
	}
}

func NewFFTPlotterComplex(name string, len, sampleRate int) *FFTPlotter {
	return &FFTPlotter{
		bufComplex:   make([]complex64, len),
		averagePower: make([]float64, len),
		len:          len,
		sampleRate:   sampleRate,
		isComplex:    true,
		name:         name,
		window:       fir.BlackmanWindow(len),
		cfft:         fourier.NewCmplxFFT(len),
	}
}

func appendTail[T any](buf, s []T) []T {
	if len(s) >= len(buf) {
		copy(buf, s[len(s)-len(buf):])
		return buf
	}
	copy(buf, buf[len(s):])
	copy(buf[len(buf)-len(s):], s)
	return buf
}

// Receive appends complex samples.
func (p *FFTPlotter) Receive(s []complex64) error {
	if !p.isComplex {
		return fmt.Errorf("%s: complex samples sent to a real spectrum plot", p.name)
	}
	p.mu.Lock()
	appendTail(p.bufComplex, s)
	p.mu.Unlock()
	return nil
}

// Float returns a receiver feeding real samples into the plot.
func (p *FFTPlotter) Float() stream.Receiver[float32] {
	return stream.ReceiverFunc[float32](func(s []float32) error {
		if p.isComplex {
			return fmt.Errorf("%s: real samples sent to a complex spectrum plot", p.name)
		}
		p.mu.Lock()
		appendTail(p.bufFloat, s)
		p.mu.Unlock()
		return nil
	})
}

func (pb *FFTPlotter) AddPlotOption(opt PlotOptions) {
	pb.mu.Lock()
	pb.plotOptions = append(pb.plotOptions, opt)
	pb.mu.Unlock()
}

// Spectrum returns frequency and averaged power in dB for every bin, lowest
// frequency first, and updates the running average.
func (pb *FFTPlotter) Spectrum() plotter.XYs {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	var coeffs []complex128
	var shiftFunc func(int) int
	var freqFunc func(int) float64
	norm := 0.42 * float64(pb.len)

	if pb.isComplex {
		data := make([]complex128, pb.len)
		for i, v := range pb.bufComplex {
			data[i] = complex128(v) * complex(float64(pb.window[i])/norm, 0)
		}
		coeffs = pb.cfft.Coefficients(nil, data)
		shiftFunc = pb.cfft.ShiftIdx
		freqFunc = pb.cfft.Freq
	} else {
		data := make([]float64, pb.len)
		for i, v := range pb.bufFloat {
			data[i] = float64(v) * float64(pb.window[i]) / norm
		}
		coeffs = pb.rfft.Coefficients(nil, data)
		shiftFunc = func(i int) int { return i }
		freqFunc = pb.rfft.Freq
	}

	ret := make(plotter.XYs, 0, len(coeffs))
	var sumPower float64
	for i := range coeffs {
		shiftIdx := shiftFunc(i)
		freq := freqFunc(shiftIdx) * float64(pb.sampleRate)
		mag := cmplx.Abs(coeffs[shiftIdx])

		pb.averagePower[i] = ((1.0 - MIX_AVG) * pb.averagePower[i]) + (MIX_AVG * mag)
		if pb.averagePower[i] == 0 {
			continue
		}

		if pb.averagePower[i] > 1e-5 {
			if freq < 0 {
				sumPower -= pb.averagePower[i]
			} else if freq > 0 {
				sumPower += pb.averagePower[i]
			}
			pb.avgSumPower = ((1.0 - BAL_AVG) * pb.avgSumPower) + (BAL_AVG * sumPower)
		}
		ret = append(ret, plotter.XY{X: freq, Y: 20 * math.Log10(pb.averagePower[i])})
	}

	return ret
}

func (pb *FFTPlotter) GetImage() (*ImageContainer, error) {
	points := pb.Spectrum()

	pb.mu.Lock()
	title := pb.name
	if pb.showBalance {
		title += fmt.Sprintf(" Balance: %3.0f", math.Abs(pb.avgSumPower*1000))
	}
	opts := append([]PlotOptions(nil), pb.plotOptions...)
	pb.mu.Unlock()

	p := plotWithDefaults()
	p.Title.Text = title
	p.Y.Label.Text = "Power (dB)"
	p.X.Label.Text = "Frequency"
	p.Y.Max = 0
	p.Y.Min = -100

	for _, opt := range opts {
		opt(p)
	}

	p.Add(plotter.NewGrid())
	if err := plotutil.AddLines(p, "frequency", points); err != nil {
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
	return &ImageContainer{name: pb.name, data: imageData.Bytes()}, nil
}
