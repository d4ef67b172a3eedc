package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aisrx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, "device: rtlsdr\n"))
	require.NoError(t, err)

	assert.Equal(t, 162000000, c.CenterFreq)
	assert.Equal(t, 1536000, c.SampleRate)
	assert.Equal(t, 25000, c.ChannelSpacing)
	assert.Equal(t, "cu8", c.SampleFormat)
	assert.Equal(t, DecimatorFIR, c.Decimator)
	assert.Equal(t, SymbolFilterLowPass, c.SymbolFilter)
	assert.Equal(t, 2048, c.FreqCorrection.FFTSize)
	assert.Equal(t, 750, c.FreqCorrection.Window)
	assert.Equal(t, 500*time.Millisecond, c.UpdateInterval())
}

func TestLoadFull(t *testing.T) {
	c, err := Load(writeConfig(t, `
device: hackrf
sample_rate: 3072000
center_freq: 162000000
decimator: cic
symbol_filter: rrc
invert_bits: true
freq_correction:
  enabled: true
  fft_size: 4096
  window: 1000
output_destinations:
  - host: localhost
    port: 5000
viz_server:
  port: 8080
  update_interval_ms: 250
influxdb:
  host: http://localhost:8086
  bucket: ais
`))
	require.NoError(t, err)

	assert.Equal(t, "cs8", c.SampleFormat)
	assert.True(t, c.FreqCorrection.Enabled)
	assert.Equal(t, 4096, c.FreqCorrection.FFTSize)
	assert.True(t, c.InvertBits)
	assert.Equal(t, []OutputDestination{{Host: "localhost", Port: 5000}}, c.OutputDestinations)
	assert.Equal(t, 250*time.Millisecond, c.UpdateInterval())
	assert.Equal(t, "ais", c.InfluxDB.Bucket)
}

func TestPlaybackSelectsFileDevice(t *testing.T) {
	c := Config{PlaybackLocation: "capture.cs8", SampleFormat: "cs8"}
	require.NoError(t, c.Validate())
	assert.Equal(t, DeviceFile, c.Device)
}

func TestValidateErrors(t *testing.T) {
	cases := map[string]Config{
		"unknown device":    {Device: "airspy"},
		"file without path": {Device: DeviceFile},
		"bad format":        {Device: DeviceRTLSDR, SampleFormat: "cf32"},
		"format mismatch":   {Device: DeviceHackRF, SampleFormat: "cu8"},
		"bad decimator":     {Device: DeviceRTLSDR, Decimator: "polyphase"},
		"bad filter":        {Device: DeviceRTLSDR, SymbolFilter: "gaussian"},
		"bad destination":   {Device: DeviceRTLSDR, OutputDestinations: []OutputDestination{{Host: "", Port: 1}}},
	}
	for name, c := range cases {
		c := c
		t.Run(name, func(t *testing.T) {
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
