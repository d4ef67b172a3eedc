package processor

import (
	"github.com/norasector/aisrx/pkg/dsp/stream"
	"github.com/norasector/aisrx/pkg/dsp/viz"
)

type DataType int

const (
	DataTypeComplex DataType = iota
	DataTypeFloat
	DataTypeBytes
)

func (d DataType) String() string {
	switch d {
	case DataTypeComplex:
		return "complex"
	case DataTypeFloat:
		return "float"
	case DataTypeBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Block describes one stage of a chain: its rates, its sample types and the
// connection its output leaves through, which is where probes are attached.
type Block struct {
	Name        string
	DisplayName string
	InputRate   int
	OutputRate  int

	inputDataType  DataType
	outputDataType DataType

	complexOut *stream.Connection[complex64]
	floatOut   *stream.Connection[float32]

	vizSize     int
	plotType    viz.PlotType
	floatFFT    bool
	showBalance bool
	noPlot      bool
	plotOptions []viz.PlotOptions
}

type BlockOption func(b *Block)

func WithPlotOptions(opts ...viz.PlotOptions) BlockOption {
	return func(b *Block) {
		b.plotOptions = append(b.plotOptions, opts...)
	}
}

func WithVizLength(length int) BlockOption {
	return func(b *Block) {
		b.vizSize = length
	}
}

func WithPlotType(plotType viz.PlotType) BlockOption {
	return func(b *Block) {
		b.plotType = plotType
	}
}

// WithFloatFFTPlot plots the spectrum of a real output instead of its waveform.
func WithFloatFFTPlot() BlockOption {
	return func(b *Block) {
		b.floatFFT = true
	}
}

func ShowFFTBalance() BlockOption {
	return func(b *Block) {
		b.showBalance = true
	}
}

func WithoutPlot() BlockOption {
	return func(b *Block) {
		b.noPlot = true
	}
}

func newBlock(name, displayName string, inputRate, outputRate int, in, out DataType, opts []BlockOption) *Block {
	b := &Block{
		Name:           name,
		DisplayName:    displayName,
		InputRate:      inputRate,
		OutputRate:     outputRate,
		inputDataType:  in,
		outputDataType: out,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewBlockCC describes a complex to complex stage.
func NewBlockCC(name, displayName string, inputRate, outputRate int, out *stream.Connection[complex64], opts ...BlockOption) *Block {
	b := newBlock(name, displayName, inputRate, outputRate, DataTypeComplex, DataTypeComplex, opts)
	b.complexOut = out
	return b
}

// NewBlockCF describes a complex to float stage.
func NewBlockCF(name, displayName string, inputRate, outputRate int, out *stream.Connection[float32], opts ...BlockOption) *Block {
	b := newBlock(name, displayName, inputRate, outputRate, DataTypeComplex, DataTypeFloat, opts)
	b.floatOut = out
	return b
}

// NewBlockFF describes a float to float stage.
func NewBlockFF(name, displayName string, inputRate, outputRate int, out *stream.Connection[float32], opts ...BlockOption) *Block {
	b := newBlock(name, displayName, inputRate, outputRate, DataTypeFloat, DataTypeFloat, opts)
	b.floatOut = out
	return b
}

// NewBlockFB describes a stage turning soft symbols into bits.
func NewBlockFB(name, displayName string, inputRate, outputRate int, opts ...BlockOption) *Block {
	return newBlock(name, displayName, inputRate, outputRate, DataTypeFloat, DataTypeBytes, opts)
}

// NewBlockBB describes a bit to bit stage.
func NewBlockBB(name, displayName string, inputRate, outputRate int, opts ...BlockOption) *Block {
	return newBlock(name, displayName, inputRate, outputRate, DataTypeBytes, DataTypeBytes, opts)
}

// NewBlockRawC describes a stage reading raw device samples, such as a format
// converter.
func NewBlockRawC(name, displayName string, inputRate, outputRate int, out *stream.Connection[complex64], opts ...BlockOption) *Block {
	b := newBlock(name, displayName, inputRate, outputRate, DataTypeBytes, DataTypeComplex, opts)
	b.complexOut = out
	return b
}
