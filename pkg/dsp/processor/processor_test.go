package processor

import (
	"errors"
	"testing"
	"time"

	"github.com/norasector/aisrx/pkg/dsp/stream"
	"github.com/norasector/aisrx/pkg/dsp/viz"
	"github.com/norasector/aisrx/pkg/util"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeChecksRates(t *testing.T) {
	var a, b stream.Connection[complex64]
	var c stream.Connection[float32]

	p := NewProcessor("channel-A", "Input", WithLogger(zerolog.Nop()))
	p.AddBlock(NewBlockCC("decimator", "Decimator", 96000, 48000, &a))
	p.AddBlock(NewBlockCC("freq_correction", "Frequency Correction", 48000, 48000, &b))
	p.AddBlock(NewBlockCF("quad_demod", "FM Demodulation", 48000, 48000, &c))
	p.AddBlock(NewBlockFB("pll", "PLL", 48000, 9600))
	p.AddBlock(NewBlockBB("nrzi", "NRZI", 9600, 9600))

	require.NoError(t, p.Initialize())
	assert.Equal(t, 9600, p.OutputRate())
	assert.Len(t, p.Blocks(), 5)
	// second call is a no-op
	require.NoError(t, p.Initialize())
}

func TestInitializeRejectsMismatches(t *testing.T) {
	var a stream.Connection[complex64]
	var f stream.Connection[float32]

	rate := NewProcessor("rate", "Input", WithLogger(zerolog.Nop()))
	rate.AddBlock(NewBlockCC("a", "A", 96000, 48000, &a))
	rate.AddBlock(NewBlockCC("b", "B", 96000, 96000, &a))
	assert.ErrorContains(t, rate.Initialize(), "rate mismatch")

	types := NewProcessor("types", "Input", WithLogger(zerolog.Nop()))
	types.AddBlock(NewBlockFF("a", "A", 48000, 48000, &f))
	types.AddBlock(NewBlockCC("b", "B", 48000, 48000, &a))
	assert.ErrorContains(t, types.Initialize(), "data type mismatch")

	empty := NewProcessor("empty", "Input")
	assert.Error(t, empty.Initialize())
}

func TestPlotsAttachToOutputs(t *testing.T) {
	var a stream.Connection[complex64]
	var f stream.Connection[float32]
	s := viz.NewServer(0, time.Second)

	p := NewProcessor("channel-B", "Input", WithVizServer(s), WithLogger(zerolog.Nop()))
	p.AddBlock(NewBlockCC("decimator", "Decimator", 96000, 48000, &a, ShowFFTBalance()))
	p.AddBlock(NewBlockCF("quad_demod", "FM Demodulation", 48000, 48000, &f, WithVizLength(64), WithPlotOptions(viz.YRange(-2, 2))))
	p.AddBlock(NewBlockFB("pll", "PLL", 48000, 9600))
	require.NoError(t, p.Initialize())

	assert.True(t, a.Connected())
	assert.True(t, f.Connected())
	assert.Equal(t, []string{"channel-B"}, s.Buckets())
}

func TestTimedRecordsPoints(t *testing.T) {
	mock := &util.MockWriteAPI{Keep: true}
	p := NewProcessor("channel-A", "Input", WithInfluxDB(mock), WithTag("channel", "A"))

	var sink stream.Sink[complex64]
	entry := Timed[complex64](p, &sink)
	require.NoError(t, entry.Receive(make([]complex64, 10)))

	boom := errors.New("boom")
	failing := Timed[complex64](p, stream.ReceiverFunc[complex64](func([]complex64) error { return boom }))
	assert.ErrorIs(t, failing.Receive(make([]complex64, 3)), boom)

	assert.Len(t, sink.Data, 10)
	points := mock.Points()
	require.Len(t, points, 2)
	assert.Equal(t, "aisrx.chain.processed", points[0].Name())
}
