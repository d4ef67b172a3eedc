package rtlsdr

import (
	"context"
	"sync"

	gsdr "github.com/jpoirier/gortlsdr"

	"github.com/norasector/aisrx/pkg/dsp/stream"
)

const maxSampleRate = 3.2e6

type RTLSDRDevice struct {
	deviceIdx int
	gain      int
	device    *gsdr.Context

	outputChan chan<- []byte
	ctx        context.Context
	wg         sync.WaitGroup
}

// NewRTLSDRDevice selects the dongle at deviceIdx. A gain of zero, in tenths
// of a dB, leaves the tuner on automatic gain.
func NewRTLSDRDevice(deviceIdx int, gain int) (*RTLSDRDevice, error) {
	return &RTLSDRDevice{deviceIdx: deviceIdx, gain: gain}, nil
}

func (r *RTLSDRDevice) MaxSampleRate() int {
	return maxSampleRate
}

func (r *RTLSDRDevice) Format() stream.Format {
	return stream.FormatCU8
}

func (r *RTLSDRDevice) callback(buf []byte) {
	r.wg.Add(1)
	defer r.wg.Done()

	data := make([]byte, len(buf))
	copy(data, buf)

	select {
	case <-r.ctx.Done():
	case r.outputChan <- data:
	}
}

func (r *RTLSDRDevice) Stop() error {
	if r.device == nil {
		return nil
	}
	err := r.device.CancelAsync()

	r.wg.Wait()
	if err != nil {
		return err
	}

	return r.device.Close()
}

func (r *RTLSDRDevice) Start(ctx context.Context, centerFreq int, sampleRate int, samples chan<- []byte) error {
	var err error
	r.device, err = gsdr.Open(r.deviceIdx)
	if err != nil {
		return err
	}
	r.ctx = ctx
	r.outputChan = samples

	if err := r.device.SetCenterFreq(centerFreq); err != nil {
		return err
	}
	if err := r.device.SetSampleRate(sampleRate); err != nil {
		return err
	}
	if r.gain > 0 {
		if err := r.device.SetTunerGainMode(true); err != nil {
			return err
		}
		if err := r.device.SetTunerGain(r.gain); err != nil {
			return err
		}
	} else if err := r.device.SetTunerGainMode(false); err != nil {
		return err
	}
	if err := r.device.ResetBuffer(); err != nil {
		return err
	}

	r.wg.Add(1)
	defer r.wg.Done()
	return r.device.ReadAsync(r.callback, nil, 0, 0)
}
