package util

import (
	"fmt"
	"math"
)

func MHzToString(hz int) string {
	return fmt.Sprintf("%0.4f MHz", float64(hz)/1e6)
}

func FrequencyRange(freqs ...int) (low, high int) {
	low = math.MaxInt
	high = math.MinInt

	for _, freq := range freqs {
		if freq < low {
			low = freq
		}
		if freq > high {
			high = freq
		}
	}

	return
}

// WithinBandwidth reports whether all freqs lie inside the band a receiver
// tuned to center at sampleRate can see, keeping margin Hz clear of either edge.
func WithinBandwidth(center, sampleRate, margin int, freqs ...int) bool {
	low, high := FrequencyRange(freqs...)
	half := sampleRate/2 - margin
	return low >= center-half && high <= center+half
}
