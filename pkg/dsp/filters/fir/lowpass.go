package fir

import (
	"math"
)

func computeNTaps(sampleRate, transitionWidth float64, winType WindowType) int {
	ntaps := int(windowMaxAttenuation[winType] * sampleRate / (22.0 * transitionWidth))
	return ntaps | 1
}

// MakeLowPass designs a windowed-sinc low pass with a DC gain of gain. The
// number of taps follows from the window's attenuation and the transition width.
func MakeLowPass(gain, sampleRate, cutFrequency, transitionWidth float64, winType WindowType) []float32 {
	nTaps := computeNTaps(sampleRate, transitionWidth, winType)
	w, err := Window(winType, nTaps)
	if err != nil {
		panic(err)
	}

	taps := make([]float32, nTaps)
	m := (nTaps - 1) / 2
	fwT0 := 2 * math.Pi * cutFrequency / sampleRate

	var sum float64
	for i := -m; i <= m; i++ {
		v := fwT0 / math.Pi
		if i != 0 {
			fi := float64(i)
			v = math.Sin(fi*fwT0) / (fi * math.Pi)
		}
		v *= float64(w[i+m])
		taps[i+m] = float32(v)
		sum += v
	}

	for i := range taps {
		taps[i] = float32(float64(taps[i]) * gain / sum)
	}

	return taps
}
