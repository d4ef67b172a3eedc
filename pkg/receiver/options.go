package receiver

import (
	"github.com/norasector/aisrx/pkg/receiver/config"
)

type Options struct {
	CenterFreq     int
	SampleRate     int
	ChannelSpacing int
	Decimator      string
	SymbolFilter   string
	FreqCorrection config.FreqCorrection
	InvertBits     bool
}

func OptionsFromConfig(c *config.Config) Options {
	return Options{
		CenterFreq:     c.CenterFreq,
		SampleRate:     c.SampleRate,
		ChannelSpacing: c.ChannelSpacing,
		Decimator:      c.Decimator,
		SymbolFilter:   c.SymbolFilter,
		FreqCorrection: c.FreqCorrection,
		InvertBits:     c.InvertBits,
	}
}
