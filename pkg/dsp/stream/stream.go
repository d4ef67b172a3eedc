// Package stream is the push-based graph every DSP stage in this module plugs into.
//
// A producer owns the slice it passes to Send. Receivers may only read it for the
// duration of the call and must copy anything they keep.
package stream

import "errors"

// ErrInvalidConfig is returned by stage constructors and setters for
// parameters the stage cannot run with.
var ErrInvalidConfig = errors.New("invalid stage configuration")

// Receiver consumes blocks of samples pushed by an upstream Connection.
type Receiver[T any] interface {
	Receive(block []T) error
}

// ReceiverFunc adapts a function to a Receiver.
type ReceiverFunc[T any] func(block []T) error

func (f ReceiverFunc[T]) Receive(block []T) error {
	return f(block)
}

// Connection is the output side of a stage. It forwards every block it is
// given to all connected receivers, in the order they were connected.
type Connection[T any] struct {
	receivers []Receiver[T]
}

func (c *Connection[T]) Connect(receivers ...Receiver[T]) {
	c.receivers = append(c.receivers, receivers...)
}

func (c *Connection[T]) Connected() bool {
	return len(c.receivers) > 0
}

// Send delivers block to each receiver synchronously. The first error stops
// delivery and is returned as is.
func (c *Connection[T]) Send(block []T) error {
	for _, r := range c.receivers {
		if err := r.Receive(block); err != nil {
			return err
		}
	}
	return nil
}
