package file

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/norasector/aisrx/pkg/dsp/stream"
)

type FileDevice struct {
	readFile    io.ReadCloser
	readSize    int
	timeBetween time.Duration
	format      stream.Format
}

// NewFileDevice plays back a recording of raw samples, one readSize chunk every
// timeBetween. A zero timeBetween reads as fast as the receiver consumes.
func NewFileDevice(file string, format stream.Format, readSize int, timeBetween time.Duration) (*FileDevice, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	return NewReaderDevice(f, format, readSize, timeBetween), nil
}

func NewReaderDevice(r io.ReadCloser, format stream.Format, readSize int, timeBetween time.Duration) *FileDevice {
	if readSize <= 0 {
		readSize = 1 << 16
	}
	return &FileDevice{
		readFile:    r,
		readSize:    readSize,
		timeBetween: timeBetween,
		format:      format,
	}
}

func (f *FileDevice) Start(ctx context.Context, centerFreq int, sampleRate int, samples chan<- []byte) error {
	var tick <-chan time.Time
	if f.timeBetween > 0 {
		ticker := time.NewTicker(f.timeBetween)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		}

		buf := make([]byte, f.readSize)
		n, err := io.ReadFull(f.readFile, buf)
		if n > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case samples <- buf[:n]:
			}
		}
		if err == io.ErrUnexpectedEOF {
			return io.EOF
		}
		if err != nil {
			return err
		}
	}
}

func (f *FileDevice) Stop() error {
	return f.readFile.Close()
}

func (f *FileDevice) MaxSampleRate() int {
	return 20e6
}

func (f *FileDevice) Format() stream.Format {
	return f.format
}
