package processor

import (
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/norasector/aisrx/pkg/dsp/stream"
	"github.com/norasector/aisrx/pkg/dsp/viz"
	"github.com/norasector/aisrx/pkg/util"
)

// Processor checks that the blocks of a chain fit together, hangs plots off
// their outputs and records how long the chain takes per input block.
type Processor struct {
	Name      string
	InputName string

	blocks      []*Block
	vizServer   *viz.Server
	writeAPI    api.WriteAPI
	logger      zerolog.Logger
	tags        map[string]string
	initialized bool
}

type ProcessorOption func(p *Processor)

func WithVizServer(s *viz.Server) ProcessorOption {
	return func(p *Processor) {
		p.vizServer = s
	}
}

func WithInfluxDB(writeAPI api.WriteAPI) ProcessorOption {
	return func(p *Processor) {
		p.writeAPI = writeAPI
	}
}

func WithLogger(logger zerolog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithTag adds a tag to every metrics point written for the chain.
func WithTag(key, value string) ProcessorOption {
	return func(p *Processor) {
		p.tags[key] = value
	}
}

func NewProcessor(name, inputName string, opts ...ProcessorOption) *Processor {
	p := &Processor{
		Name:      name,
		InputName: inputName,
		writeAPI:  &util.MockWriteAPI{},
		logger:    log.Logger,
		tags:      map[string]string{"chain": name},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Processor) AddBlock(block *Block) {
	p.blocks = append(p.blocks, block)
}

func (p *Processor) Blocks() []*Block {
	return p.blocks
}

// OutputRate is the rate at the end of the chain.
func (p *Processor) OutputRate() int {
	if len(p.blocks) == 0 {
		return 0
	}
	return p.blocks[len(p.blocks)-1].OutputRate
}

func (p *Processor) Initialize() error {
	if p.initialized {
		return nil
	}
	if len(p.blocks) == 0 {
		return fmt.Errorf("%s: must specify at least 1 block", p.Name)
	}

	for i := 1; i < len(p.blocks); i++ {
		cur, next := p.blocks[i-1], p.blocks[i]
		if cur.outputDataType != next.inputDataType {
			return fmt.Errorf("cur: %s next %s data type mismatch (%s %s)", cur.Name, next.Name, cur.outputDataType, next.inputDataType)
		}
		if cur.OutputRate != next.InputRate {
			return fmt.Errorf("cur: %s next %s rate mismatch (%d %d)", cur.Name, next.Name, cur.OutputRate, next.InputRate)
		}
	}

	if p.vizServer != nil {
		p.registerPlots()
	}

	for i, b := range p.blocks {
		p.logger.Debug().
			Str("chain", p.Name).
			Int("index", i).
			Str("block", b.Name).
			Str("input_type", b.inputDataType.String()).
			Str("output_type", b.outputDataType.String()).
			Int("input_rate", b.InputRate).
			Int("output_rate", b.OutputRate).
			Msg("chain block")
	}

	p.initialized = true
	return nil
}

func (p *Processor) registerPlots() {
	vizIndex := 0
	nextIndexString := func(s string) string {
		vizIndex++
		return fmt.Sprintf("%02d. %s", vizIndex, s)
	}

	for _, b := range p.blocks {
		if b.noPlot {
			continue
		}

		var producer viz.Producer
		switch {
		case b.complexOut != nil:
			vizLength := 1024
			if b.vizSize > 0 {
				vizLength = b.vizSize
			}
			fft := viz.NewFFTPlotterComplex(nextIndexString(b.DisplayName), vizLength, b.OutputRate)
			fft.ShowBalance(b.showBalance)
			b.complexOut.Connect(fft)
			producer = fft

		case b.floatOut != nil && b.floatFFT:
			vizLength := 1024
			if b.vizSize > 0 {
				vizLength = b.vizSize
			}
			fft := viz.NewFFTPlotterFloat(nextIndexString(b.DisplayName), vizLength, b.OutputRate)
			b.floatOut.Connect(fft.Float())
			producer = fft

		case b.floatOut != nil:
			vizLength := 128
			if b.vizSize > 0 {
				vizLength = b.vizSize
			}
			td := viz.NewTimeDomainPlotter(nextIndexString(b.DisplayName), vizLength)
			if b.plotType != viz.PlotTypeDefault {
				td.SetPlotType(b.plotType)
			}
			b.floatOut.Connect(td)
			producer = td

		default:
			continue
		}

		for _, opt := range b.plotOptions {
			producer.AddPlotOption(opt)
		}
		p.vizServer.Register(p.Name, producer)
	}
}

func (p *Processor) record(samples int, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"sample_length": samples,
		"duration":      duration.Microseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	p.writeAPI.WritePoint(influxdb2.NewPoint("aisrx.chain.processed", p.tags, fields, time.Now()))
}

type timed[T any] struct {
	p    *Processor
	next stream.Receiver[T]
}

func (t *timed[T]) Receive(block []T) error {
	var err error
	duration := util.TimeOperation(func() {
		err = t.next.Receive(block)
	})
	t.p.record(len(block), duration, err)
	return err
}

// Timed wraps the entry stage of a chain so every block pushed through it is
// measured. Since stages call each other synchronously the measurement covers
// everything downstream of next.
func Timed[T any](p *Processor, next stream.Receiver[T]) stream.Receiver[T] {
	return &timed[T]{p: p, next: next}
}
