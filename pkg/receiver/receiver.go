package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/norasector/aisrx/pkg/dsp/processor"
	"github.com/norasector/aisrx/pkg/dsp/slicer"
	"github.com/norasector/aisrx/pkg/dsp/stream"
	"github.com/norasector/aisrx/pkg/dsp/viz"
	"github.com/norasector/aisrx/pkg/receiver/device"
	"github.com/norasector/aisrx/pkg/receiver/output"
	"github.com/norasector/aisrx/pkg/util"
)

// ErrSourceExhausted ends a session whose device ran out of samples.
var ErrSourceExhausted = errors.New("sample source exhausted")

const (
	rawQueueLength = 4
	// half of the 25 kHz AIS channel, kept clear of the band edge
	channelHalfWidth = 12500
	statsEvery     = 64
)

// Receiver runs the two AIS channel chains over the samples of one device.
// All DSP happens on a single goroutine, so stages need no locking.
type Receiver struct {
	device    device.Device
	opts      Options
	writeAPI  api.WriteAPI
	vizServer *viz.Server
	logger    zerolog.Logger
	outputs   []output.Output

	frontEnd   *processor.Processor
	channels   []*Channel
	receiveRaw func([]byte) error
	pairs      stream.PairReader
	cu8        []stream.CU8
	cs8        []stream.CS8
	segments   int

	rawSamples chan []byte
	sourceDone chan struct{}

	mu     sync.Mutex
	built  bool
	cancel context.CancelFunc
}

type ReceiverOption func(r *Receiver) error

func WithInfluxDB(writeAPI api.WriteAPI) ReceiverOption {
	return func(r *Receiver) error {
		r.writeAPI = writeAPI
		return nil
	}
}

func WithImageServer(vizServer *viz.Server) ReceiverOption {
	return func(r *Receiver) error {
		r.vizServer = vizServer
		return nil
	}
}

func WithLogger(logger zerolog.Logger) ReceiverOption {
	return func(r *Receiver) error {
		r.logger = logger
		return nil
	}
}

func WithOutput(o output.Output) ReceiverOption {
	return func(r *Receiver) error {
		if o == nil {
			return fmt.Errorf("nil output")
		}
		r.outputs = append(r.outputs, o)
		return nil
	}
}

func NewReceiver(dev device.Device, options Options, opts ...ReceiverOption) (*Receiver, error) {
	r := &Receiver{
		device:     dev,
		opts:       options,
		writeAPI:   &util.MockWriteAPI{},
		logger:     log.Logger,
		rawSamples: make(chan []byte, rawQueueLength),
		sourceDone: make(chan struct{}),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	if r.opts.CenterFreq == 0 || r.opts.SampleRate == 0 || r.opts.ChannelSpacing == 0 {
		return nil, fmt.Errorf("must specify center freq, sample rate, and channel spacing")
	}
	if r.device == nil {
		return nil, fmt.Errorf("must specify a device")
	}

	freqs := r.channelFrequencies()
	for _, rate := range []int{r.opts.SampleRate, IntermediateRate} {
		if !util.WithinBandwidth(r.opts.CenterFreq, rate, channelHalfWidth, freqs...) {
			low, high := util.FrequencyRange(freqs...)
			return nil, fmt.Errorf("%w: channels %s to %s do not fit in %d Hz around %s",
				stream.ErrInvalidConfig, util.MHzToString(low), util.MHzToString(high), rate, util.MHzToString(r.opts.CenterFreq))
		}
	}
	return r, nil
}

// Build wires the front end and both channel chains. Start calls it; it is
// exported so samples can be pushed with ProcessRaw without running a device.
func (r *Receiver) Build() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.built {
		return nil
	}

	out, err := r.buildFrontEnd(r.device.Format())
	if err != nil {
		return err
	}
	if err := r.buildChannels(out); err != nil {
		return err
	}

	for _, ch := range r.channels {
		r.logger.Info().
			Str("channel", ch.Name).
			Str("frequency", util.MHzToString(ch.Frequency)).
			Int("blocks", len(ch.proc.Blocks())).
			Msg("channel ready")
	}
	r.built = true
	return nil
}

func (r *Receiver) Channels() []*Channel {
	return r.channels
}

// Post sends a control message to the clock recovery of every channel.
func (r *Receiver) Post(m slicer.Message) error {
	var errs []error
	for _, ch := range r.channels {
		if err := ch.pll.Post(m); err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", ch.Name, err))
		}
	}
	return errors.Join(errs...)
}

// ProcessRaw pushes one buffer of raw device bytes through every chain.
func (r *Receiver) ProcessRaw(buf []byte) error {
	if r.receiveRaw == nil {
		return fmt.Errorf("receiver not built")
	}
	if err := r.receiveRaw(buf); err != nil {
		return err
	}

	r.segments++
	if r.segments%statsEvery == 0 {
		r.writeStats(len(buf))
	}
	return nil
}

func (r *Receiver) writeStats(segmentBytes int) {
	for _, ch := range r.channels {
		r.writeAPI.WritePoint(influxdb2.NewPoint("aisrx.channel.stats",
			map[string]string{
				"channel":   ch.Name,
				"frequency": util.MHzToString(ch.Frequency),
			},
			map[string]interface{}{
				"segment":       r.segments,
				"segment_bytes": segmentBytes,
				"freq_offset":   ch.FreqOffset(),
				"training":      ch.pll.Training(),
			}, time.Now()))
	}
}

func (r *Receiver) processRawSamples(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case buf := <-r.rawSamples:
			if err := r.ProcessRaw(buf); err != nil {
				return err
			}
		case <-r.sourceDone:
			for {
				select {
				case buf := <-r.rawSamples:
					if err := r.ProcessRaw(buf); err != nil {
						return err
					}
				default:
					return ErrSourceExhausted
				}
			}
		}
	}
}

func (r *Receiver) Start(ctx context.Context) error {
	if r.opts.SampleRate > r.device.MaxSampleRate() {
		return fmt.Errorf("error: sample rate %d > device max sample rate %d", r.opts.SampleRate, r.device.MaxSampleRate())
	}
	if err := r.Build(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		defer close(r.sourceDone)
		err := r.device.Start(ctx, r.opts.CenterFreq, r.opts.SampleRate, r.rawSamples)
		if errors.Is(err, io.EOF) {
			r.logger.Info().Msg("end of samples")
			return nil
		}
		return err
	})

	eg.Go(func() error {
		return r.processRawSamples(ctx)
	})

	if r.vizServer != nil {
		eg.Go(func() error {
			return r.vizServer.Run(ctx)
		})
		eg.Go(func() error {
			<-ctx.Done()
			return r.vizServer.Stop(context.Background())
		})
	}

	for _, o := range r.outputs {
		thisOutput := o
		eg.Go(func() error {
			return thisOutput.Start(ctx)
		})
	}

	r.logger.Info().
		Str("center_freq", util.MHzToString(r.opts.CenterFreq)).
		Str("sample_rate", util.MHzToString(r.opts.SampleRate)).
		Str("decimator", r.opts.Decimator).
		Str("symbol_filter", r.opts.SymbolFilter).
		Msg("Starting")

	err := eg.Wait()
	for _, ch := range r.channels {
		r.logger.Info().Str("channel", ch.Name).Float64("freq_offset_hz", ch.FreqOffset()).Msg("channel stopped")
	}
	if errors.Is(err, ErrSourceExhausted) {
		return nil
	}
	return err
}

func (r *Receiver) Stop() error {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	return r.device.Stop()
}
