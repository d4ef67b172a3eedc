package output

import (
	"context"

	"github.com/norasector/aisrx/pkg/dsp/stream"
)

// Output consumes the recovered bits of every receive channel. Channel is
// called once per channel while the chains are built; Start runs until the
// context is cancelled and releases whatever the output holds.
type Output interface {
	Channel(name string) (stream.Receiver[byte], error)
	Start(ctx context.Context) error
}
