package output

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/norasector/aisrx/pkg/dsp/stream"
)

// BitWriter writes one byte, 0 or 1, per bit. Bits received after Close are
// dropped.
type BitWriter struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	closed bool
}

func NewBitWriter(w io.Writer) *BitWriter {
	b := &BitWriter{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		b.closer = c
	}
	return b
}

func (b *BitWriter) Receive(bits []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	_, err := b.w.Write(bits)
	return err
}

func (b *BitWriter) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.w.Flush()
}

func (b *BitWriter) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	err := b.w.Flush()
	if b.closer != nil {
		if cerr := b.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// BitFiles writes each channel to its own file named <prefix>_<channel>.bits.
type BitFiles struct {
	prefix  string
	mu      sync.Mutex
	writers []*BitWriter
}

func NewBitFiles(prefix string) *BitFiles {
	return &BitFiles{prefix: prefix}
}

func (f *BitFiles) Path(name string) string {
	return fmt.Sprintf("%s_%s.bits", f.prefix, name)
}

func (f *BitFiles) Channel(name string) (stream.Receiver[byte], error) {
	file, err := os.Create(f.Path(name))
	if err != nil {
		return nil, err
	}
	w := NewBitWriter(file)

	f.mu.Lock()
	f.writers = append(f.writers, w)
	f.mu.Unlock()

	log.Info().Str("channel", name).Str("path", f.Path(name)).Msg("writing bits")
	return w, nil
}

func (f *BitFiles) Start(ctx context.Context) error {
	<-ctx.Done()
	if err := f.Close(); err != nil {
		return err
	}
	return ctx.Err()
}

func (f *BitFiles) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var firstErr error
	for _, w := range f.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ stream.Receiver[byte] = (*BitWriter)(nil)
