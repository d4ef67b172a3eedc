package hackrf

import (
	"context"
	"os"

	"github.com/samuel/go-hackrf/hackrf"

	"github.com/norasector/aisrx/pkg/dsp/stream"
)

const (
	maxSampleRate = 20e6
	defaultLNA    = 32
)

type HackRFDevice struct {
	device *hackrf.Device

	lnaGain int

	outputChan chan<- []byte
	ctx        context.Context

	outputFile *os.File
}

// NewHackRFDevice opens the first hackrf; hackrf.Init must have been called. When recordLocation is set every raw
// buffer is also appended to that file.
func NewHackRFDevice(lnaGain int, recordLocation string) (*HackRFDevice, error) {
	device, err := hackrf.Open()
	if err != nil {
		return nil, err
	}
	if lnaGain <= 0 {
		lnaGain = defaultLNA
	}

	h := &HackRFDevice{device: device, lnaGain: lnaGain}
	if recordLocation != "" {
		h.outputFile, err = os.Create(recordLocation)
		if err != nil {
			device.Close()
			return nil, err
		}
	}
	return h, nil
}

func (h *HackRFDevice) MaxSampleRate() int {
	return maxSampleRate
}

func (h *HackRFDevice) Format() stream.Format {
	return stream.FormatCS8
}

func (h *HackRFDevice) callback(buf []byte) error {
	if h.outputFile != nil {
		if _, err := h.outputFile.Write(buf); err != nil {
			return err
		}
	}

	// the library reuses buf once we return
	data := make([]byte, len(buf))
	copy(data, buf)

	select {
	case <-h.ctx.Done():
		return h.ctx.Err()
	case h.outputChan <- data:
	}
	return nil
}

func (h *HackRFDevice) Start(ctx context.Context, centerFreq int, sampleRate int, samples chan<- []byte) error {
	h.ctx = ctx
	h.outputChan = samples

	if err := h.device.SetFreq(uint64(centerFreq)); err != nil {
		return err
	}
	if err := h.device.SetSampleRateManual(sampleRate*2, 2); err != nil {
		return err
	}
	if err := h.device.SetLNAGain(h.lnaGain); err != nil {
		return err
	}
	if err := h.device.SetBasebandFilterBandwidth(sampleRate); err != nil {
		return err
	}
	if err := h.device.SetAmpEnable(true); err != nil {
		return err
	}
	if err := h.device.StartRX(h.callback); err != nil {
		return err
	}

	<-ctx.Done()
	return ctx.Err()
}

func (h *HackRFDevice) Stop() error {
	if h.outputFile != nil {
		defer h.outputFile.Close()
	}
	if err := h.device.StopRX(); err != nil {
		return err
	}
	return h.device.Close()
}
