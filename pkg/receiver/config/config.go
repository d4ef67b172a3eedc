package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	DeviceRTLSDR = "rtlsdr"
	DeviceHackRF = "hackrf"
	DeviceFile   = "file"

	DecimatorFIR          = "fir"
	DecimatorFIRDecimate2 = "fir_decimate2"
	DecimatorCIC          = "cic"

	SymbolFilterLowPass = "lowpass"
	SymbolFilterRRC     = "rrc"
	SymbolFilterNone    = "none"
)

type Config struct {
	CenterFreq         int                 `yaml:"center_freq"`
	SampleRate         int                 `yaml:"sample_rate"`
	Device             string              `yaml:"device"`
	SampleFormat       string              `yaml:"sample_format"`
	RTLSDRDeviceIndex  int                 `yaml:"rtlsdr_device_index"`
	Gain               int                 `yaml:"gain"`
	RecordLocation     string              `yaml:"record_location"`
	PlaybackLocation   string              `yaml:"playback_location"`
	ChannelSpacing     int                 `yaml:"channel_spacing"`
	Decimator          string              `yaml:"decimator"`
	SymbolFilter       string              `yaml:"symbol_filter"`
	FreqCorrection     FreqCorrection      `yaml:"freq_correction"`
	InvertBits         bool                `yaml:"invert_bits"`
	BitsLocation       string              `yaml:"bits_location"`
	OutputDestinations []OutputDestination `yaml:"output_destinations"`
	VizServer          struct {
		Port             int `yaml:"port"`
		UpdateIntervalMS int `yaml:"update_interval_ms"`
	} `yaml:"viz_server"`
	InfluxDB struct {
		Host         string `yaml:"host"`
		Token        string `yaml:"token"`
		Organization string `yaml:"organization"`
		Bucket       string `yaml:"bucket"`
	} `yaml:"influxdb"`
}

type FreqCorrection struct {
	Enabled bool `yaml:"enabled"`
	FFTSize int  `yaml:"fft_size"`
	Window  int  `yaml:"window"`
}

type OutputDestination struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(c.VizServer.UpdateIntervalMS) * time.Millisecond
}

// Validate fills in defaults and rejects settings the receiver cannot run with.
func (c *Config) Validate() error {
	if c.PlaybackLocation != "" {
		c.Device = DeviceFile
	}
	if c.Device == "" {
		c.Device = DeviceRTLSDR
	}
	if c.CenterFreq == 0 {
		c.CenterFreq = 162000000
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1536000
	}
	if c.ChannelSpacing == 0 {
		c.ChannelSpacing = 25000
	}
	if c.Decimator == "" {
		c.Decimator = DecimatorFIR
	}
	if c.SymbolFilter == "" {
		c.SymbolFilter = SymbolFilterLowPass
	}
	if c.FreqCorrection.FFTSize == 0 {
		c.FreqCorrection.FFTSize = 2048
	}
	if c.FreqCorrection.Window == 0 {
		c.FreqCorrection.Window = 750
	}
	if c.VizServer.UpdateIntervalMS == 0 {
		c.VizServer.UpdateIntervalMS = 500
	}

	switch c.Device {
	case DeviceRTLSDR:
		if c.SampleFormat == "" {
			c.SampleFormat = "cu8"
		}
	case DeviceHackRF:
		if c.SampleFormat == "" {
			c.SampleFormat = "cs8"
		}
	case DeviceFile:
		if c.PlaybackLocation == "" {
			return fmt.Errorf("device %q needs playback_location", c.Device)
		}
		if c.SampleFormat == "" {
			c.SampleFormat = "cu8"
		}
	default:
		return fmt.Errorf("unknown device %q", c.Device)
	}

	if c.SampleFormat != "cu8" && c.SampleFormat != "cs8" {
		return fmt.Errorf("unknown sample format %q", c.SampleFormat)
	}
	if (c.Device == DeviceRTLSDR && c.SampleFormat != "cu8") || (c.Device == DeviceHackRF && c.SampleFormat != "cs8") {
		return fmt.Errorf("device %s does not produce %s samples", c.Device, c.SampleFormat)
	}

	switch c.Decimator {
	case DecimatorFIR, DecimatorFIRDecimate2, DecimatorCIC:
	default:
		return fmt.Errorf("unknown decimator %q", c.Decimator)
	}
	switch c.SymbolFilter {
	case SymbolFilterLowPass, SymbolFilterRRC, SymbolFilterNone:
	default:
		return fmt.Errorf("unknown symbol filter %q", c.SymbolFilter)
	}

	if c.SampleRate < 0 || c.ChannelSpacing < 0 {
		return fmt.Errorf("sample rate and channel spacing must be positive")
	}
	for _, dest := range c.OutputDestinations {
		if dest.Host == "" || dest.Port <= 0 {
			return fmt.Errorf("invalid output destination %s:%d", dest.Host, dest.Port)
		}
	}
	return nil
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(contents, &c); err != nil {
		return nil, fmt.Errorf("error unmarshaling yaml file: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
