package receiver

import (
	"errors"
	"fmt"
	"math"

	"github.com/racerxdl/segdsp/dsp"

	"github.com/norasector/aisrx/pkg/dsp/agc/rmsagc"
	"github.com/norasector/aisrx/pkg/dsp/convert"
	"github.com/norasector/aisrx/pkg/dsp/demodulators/quad"
	"github.com/norasector/aisrx/pkg/dsp/filters/cic"
	"github.com/norasector/aisrx/pkg/dsp/filters/fir"
	"github.com/norasector/aisrx/pkg/dsp/freqcorr"
	"github.com/norasector/aisrx/pkg/dsp/mixer"
	"github.com/norasector/aisrx/pkg/dsp/processor"
	"github.com/norasector/aisrx/pkg/dsp/resample"
	"github.com/norasector/aisrx/pkg/dsp/slicer"
	"github.com/norasector/aisrx/pkg/dsp/stream"
	"github.com/norasector/aisrx/pkg/dsp/viz"
	"github.com/norasector/aisrx/pkg/receiver/config"
	"github.com/norasector/aisrx/pkg/util"
)

const (
	IntermediateRate = 96000
	ChannelRate      = 48000
	SymbolRate       = 9600
	Deviation        = 2400

	decimatorCutoff     = 10000
	decimatorTransition = 4000

	symbolCutoff     = 7200
	symbolTransition = 4800
	rrcAlpha         = 0.35
	rrcTaps          = 7*ChannelRate/SymbolRate | 1

	agcAlpha = 0.01
)

var ErrUnsupportedRate = errors.New("unsupported sample rate")

// ratePlan takes a device rate down to IntermediateRate: a converter of
// 2^converterStages, then halvings extra CIC halvings, then an optional
// upsampling by upM/upN.
type ratePlan struct {
	converterStages int
	halvings        int
	upN, upM        int
}

func (p ratePlan) String() string {
	s := fmt.Sprintf("convert /%d", 1<<p.converterStages)
	if p.halvings > 0 {
		s += fmt.Sprintf(", halve x%d", p.halvings)
	}
	if p.upN > 0 {
		s += fmt.Sprintf(", upsample %d/%d", p.upM, p.upN)
	}
	return s
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// planRates prefers exact decimation by powers of two. Rates that cannot reach
// IntermediateRate that way are brought just below it and interpolated back up.
func planRates(sampleRate int) (ratePlan, error) {
	if sampleRate <= 0 {
		return ratePlan{}, fmt.Errorf("%w: %d", ErrUnsupportedRate, sampleRate)
	}

	for stages := 5; stages >= 3; stages-- {
		factor := 1 << stages
		if sampleRate%factor != 0 {
			continue
		}
		rate := sampleRate / factor
		halvings := 0
		for rate > IntermediateRate && rate%2 == 0 && rate/2 >= IntermediateRate {
			rate /= 2
			halvings++
		}
		if rate == IntermediateRate {
			return ratePlan{converterStages: stages, halvings: halvings}, nil
		}
	}

	for stages := 3; stages <= 5; stages++ {
		factor := 1 << stages
		if sampleRate%factor != 0 {
			continue
		}
		rate := sampleRate / factor
		if rate < IntermediateRate {
			g := gcd(rate, IntermediateRate)
			return ratePlan{converterStages: stages, upN: rate / g, upM: IntermediateRate / g}, nil
		}
	}

	return ratePlan{}, fmt.Errorf("%w: %d", ErrUnsupportedRate, sampleRate)
}

func (r *Receiver) processorOptions(tags ...string) []processor.ProcessorOption {
	opts := []processor.ProcessorOption{
		processor.WithInfluxDB(r.writeAPI),
		processor.WithLogger(r.logger),
	}
	if r.vizServer != nil {
		opts = append(opts, processor.WithVizServer(r.vizServer))
	}
	for i := 0; i+1 < len(tags); i += 2 {
		opts = append(opts, processor.WithTag(tags[i], tags[i+1]))
	}
	return opts
}

// buildFrontEnd converts raw device bytes to complex samples at
// IntermediateRate and returns the connection carrying them.
func (r *Receiver) buildFrontEnd(format stream.Format) (*stream.Connection[complex64], error) {
	plan, err := planRates(r.opts.SampleRate)
	if err != nil {
		return nil, err
	}

	proc := processor.NewProcessor("frontend", format.String(), r.processorOptions()...)
	rate := r.opts.SampleRate

	var out *stream.Connection[complex64]
	var factor int
	switch format {
	case stream.FormatCU8:
		c, err := convert.NewDownsampleCU8(plan.converterStages)
		if err != nil {
			return nil, err
		}
		entry := processor.Timed[stream.CU8](proc, c)
		r.receiveRaw = func(buf []byte) error {
			r.cu8 = r.pairs.CU8FromBytes(r.cu8[:0], buf)
			return entry.Receive(r.cu8)
		}
		out, factor = &c.Out, c.Factor()
	case stream.FormatCS8:
		c, err := convert.NewDownsampleCS8(plan.converterStages)
		if err != nil {
			return nil, err
		}
		entry := processor.Timed[stream.CS8](proc, c)
		r.receiveRaw = func(buf []byte) error {
			r.cs8 = r.pairs.CS8FromBytes(r.cs8[:0], buf)
			return entry.Receive(r.cs8)
		}
		out, factor = &c.Out, c.Factor()
	default:
		return nil, fmt.Errorf("%w: unknown sample format %s", stream.ErrInvalidConfig, format)
	}
	proc.AddBlock(processor.NewBlockRawC("converter", fmt.Sprintf("%s to complex /%d", format, factor), rate, rate/factor, out, processor.ShowFFTBalance()))
	rate /= factor

	for i := 0; i < plan.halvings; i++ {
		d := cic.NewDownsample2CIC5()
		out.Connect(d)
		out = &d.Out
		proc.AddBlock(processor.NewBlockCC(fmt.Sprintf("halve_%d", i), "CIC /2", rate, rate/2, out))
		rate /= 2
	}

	if plan.upN > 0 {
		u, err := resample.NewUpsample(plan.upN, plan.upM)
		if err != nil {
			return nil, err
		}
		out.Connect(u)
		out = &u.Out
		proc.AddBlock(processor.NewBlockCC("upsample", fmt.Sprintf("Upsample %d/%d", plan.upM, plan.upN), rate, IntermediateRate, out, processor.ShowFFTBalance()))
	}

	if err := proc.Initialize(); err != nil {
		return nil, err
	}
	r.frontEnd = proc

	r.logger.Info().
		Int("sample_rate", r.opts.SampleRate).
		Str("format", format.String()).
		Str("plan", plan.String()).
		Msg("front end")
	return out, nil
}

// Channel is the demodulation chain of one AIS frequency.
type Channel struct {
	Name      string
	Frequency int

	proc     *processor.Processor
	pll      *slicer.SimplePLL
	nrzi     *slicer.NRZI
	freqCorr *freqcorr.SquareFreqOffsetCorrection
}

func (c *Channel) Processor() *processor.Processor {
	return c.proc
}

// FreqOffset is the residual carrier offset in Hz, zero when correction is off.
func (c *Channel) FreqOffset() float64 {
	if c.freqCorr == nil {
		return 0
	}
	return c.freqCorr.Offset() * ChannelRate
}

func (r *Receiver) logFilter(channel, stage string, taps []float32, sampleRate, pass, stop float64) {
	response := fir.MagnitudeResponse(taps, 1024)
	var worst float64
	for i, m := range response[:len(response)/2] {
		if float64(i)*sampleRate/float64(len(response)) >= stop && m > worst {
			worst = m
		}
	}
	r.logger.Debug().
		Str("channel", channel).
		Str("stage", stage).
		Int("taps", len(taps)).
		Float64("passband_gain", fir.GainAt(taps, sampleRate, pass)).
		Float64("stopband_db", 20*math.Log10(worst+1e-12)).
		Msg("filter design")
}

// buildChannel mixes the channel at offset to baseband and demodulates it to
// bits, which are handed to every output.
func (r *Receiver) buildChannel(name string, frequency int, in *stream.Connection[complex64]) (*Channel, error) {
	ch := &Channel{Name: name, Frequency: frequency}
	proc := processor.NewProcessor("channel_"+name, "mixer", r.processorOptions("channel", name)...)
	ch.proc = proc

	proc.AddBlock(processor.NewBlockCC("mixer", fmt.Sprintf("Channel %s %s", name, util.MHzToString(frequency)),
		IntermediateRate, IntermediateRate, in, processor.ShowFFTBalance()))

	var entry stream.Receiver[complex64]
	var out *stream.Connection[complex64]
	switch r.opts.Decimator {
	case config.DecimatorFIR:
		taps := fir.MakeLowPass(1, IntermediateRate, decimatorCutoff, decimatorTransition, fir.Hamming)
		r.logFilter(name, "decimator", taps, IntermediateRate, Deviation, decimatorCutoff+decimatorTransition)
		k, err := resample.NewDownsampleKFilter(taps, IntermediateRate/ChannelRate)
		if err != nil {
			return nil, err
		}
		entry, out = k, &k.Out
	case config.DecimatorFIRDecimate2:
		taps := dsp.MakeLowPass(1, IntermediateRate, decimatorCutoff, decimatorTransition)
		r.logFilter(name, "decimator", taps, IntermediateRate, Deviation, decimatorCutoff+decimatorTransition)
		f, err := fir.NewFilterComplex(taps)
		if err != nil {
			return nil, err
		}
		d := resample.NewDecimate2()
		f.Out.Connect(d)
		entry, out = f, &d.Out
	case config.DecimatorCIC:
		f := cic.NewFilterCIC5()
		d := resample.NewDecimate2()
		f.Out.Connect(d)
		entry, out = f, &d.Out
	default:
		return nil, fmt.Errorf("%w: unknown decimator %q", stream.ErrInvalidConfig, r.opts.Decimator)
	}
	in.Connect(processor.Timed(proc, entry))
	proc.AddBlock(processor.NewBlockCC("decimator", "Decimate /2 ("+r.opts.Decimator+")", IntermediateRate, ChannelRate, out))

	if fc := r.opts.FreqCorrection; fc.Enabled {
		ch.freqCorr = freqcorr.NewSquareFreqOffsetCorrection()
		if err := ch.freqCorr.SetParams(fc.FFTSize, fc.Window); err != nil {
			return nil, err
		}
		spacing := int(math.Round(float64(fc.FFTSize) * SymbolRate / ChannelRate))
		if err := ch.freqCorr.SetToneSpacing(spacing); err != nil {
			return nil, err
		}
		out.Connect(ch.freqCorr)
		out = &ch.freqCorr.Out
		proc.AddBlock(processor.NewBlockCC("freq_correction", "Frequency corrected", ChannelRate, ChannelRate, out, processor.ShowFFTBalance()))
	}

	demod := quad.MakeQuadDemod(quad.GainForDeviation(ChannelRate, Deviation))
	out.Connect(demod)
	soft := &demod.Out
	proc.AddBlock(processor.NewBlockCF("demod", "FM discriminator", ChannelRate, ChannelRate, soft,
		processor.WithPlotOptions(viz.YRange(-2, 2)), processor.WithVizLength(256)))

	var symbolTaps []float32
	switch r.opts.SymbolFilter {
	case config.SymbolFilterLowPass:
		symbolTaps = fir.MakeLowPass(1, ChannelRate, symbolCutoff, symbolTransition, fir.Hamming)
	case config.SymbolFilterRRC:
		symbolTaps = dsp.MakeRRC(1, ChannelRate, SymbolRate, rrcAlpha, rrcTaps)
	case config.SymbolFilterNone, "":
	default:
		return nil, fmt.Errorf("%w: unknown symbol filter %q", stream.ErrInvalidConfig, r.opts.SymbolFilter)
	}
	if symbolTaps != nil {
		r.logFilter(name, "symbol_filter", symbolTaps, ChannelRate, Deviation, symbolCutoff+symbolTransition)
		f, err := fir.NewFilter(symbolTaps)
		if err != nil {
			return nil, err
		}
		soft.Connect(f)
		soft = &f.Out
		proc.AddBlock(processor.NewBlockFF("symbol_filter", "Symbol filter ("+r.opts.SymbolFilter+")", ChannelRate, ChannelRate, soft,
			processor.WithFloatFFTPlot()))
	}

	agc := rmsagc.NewRMSAGC(agcAlpha, 1)
	soft.Connect(agc)
	proc.AddBlock(processor.NewBlockFF("agc", "AGC", ChannelRate, ChannelRate, &agc.Out,
		processor.WithPlotOptions(viz.YRange(-2, 2)), processor.WithPlotType(viz.PlotTypeScatter), processor.WithVizLength(256)))

	pll, err := slicer.NewSimplePLL(float64(ChannelRate) / SymbolRate)
	if err != nil {
		return nil, err
	}
	pll.SetInvert(r.opts.InvertBits)
	agc.Out.Connect(pll)
	ch.pll = pll
	proc.AddBlock(processor.NewBlockFB("pll", "Clock recovery", ChannelRate, SymbolRate))

	ch.nrzi = slicer.NewNRZI()
	pll.Out.Connect(ch.nrzi)
	proc.AddBlock(processor.NewBlockBB("nrzi", "NRZI decode", SymbolRate, SymbolRate))

	for _, o := range r.outputs {
		rcv, err := o.Channel(name)
		if err != nil {
			return nil, err
		}
		ch.nrzi.Out.Connect(rcv)
	}

	if err := proc.Initialize(); err != nil {
		return nil, err
	}
	return ch, nil
}

// channelFrequencies returns the frequencies of channel A and B.
func (r *Receiver) channelFrequencies() []int {
	return []int{r.opts.CenterFreq - r.opts.ChannelSpacing, r.opts.CenterFreq + r.opts.ChannelSpacing}
}

// buildChannels splits the intermediate stream into the two AIS channels,
// spacing below and above the center frequency.
func (r *Receiver) buildChannels(in *stream.Connection[complex64]) error {
	rotate := mixer.NewRotateHz(IntermediateRate, r.opts.ChannelSpacing)
	in.Connect(rotate)

	freqs := r.channelFrequencies()
	a, err := r.buildChannel("A", freqs[0], &rotate.Up)
	if err != nil {
		return err
	}
	b, err := r.buildChannel("B", freqs[1], &rotate.Down)
	if err != nil {
		return err
	}
	r.channels = []*Channel{a, b}
	return nil
}
