package device

import (
	"context"

	"github.com/norasector/aisrx/pkg/dsp/stream"
)

// Device produces raw interleaved IQ bytes in its Format. Start blocks until
// the device stops, the context is cancelled or, for finite sources, io.EOF
// is returned once everything has been sent.
type Device interface {
	Start(ctx context.Context, centerFreq int, sampleRate int, samples chan<- []byte) error
	Stop() error
	MaxSampleRate() int
	Format() stream.Format
}
