package stream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionFanOutOrder(t *testing.T) {
	var order []string
	var c Connection[int]

	assert.False(t, c.Connected())
	require.NoError(t, c.Send([]int{1}))

	c.Connect(ReceiverFunc[int](func(b []int) error {
		order = append(order, "a")
		return nil
	}))
	c.Connect(ReceiverFunc[int](func(b []int) error {
		order = append(order, "b")
		return nil
	}))

	assert.True(t, c.Connected())
	require.NoError(t, c.Send([]int{1, 2, 3}))
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestConnectionErrorStopsDelivery(t *testing.T) {
	boom := errors.New("boom")
	var c Connection[float32]
	var after Sink[float32]

	c.Connect(ReceiverFunc[float32](func([]float32) error { return boom }), &after)

	err := c.Send([]float32{1})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, after.Data)
}

func TestErrorPropagatesThroughChain(t *testing.T) {
	boom := errors.New("downstream")
	var first, second Connection[int]

	first.Connect(ReceiverFunc[int](func(b []int) error {
		return second.Send(b)
	}))
	second.Connect(ReceiverFunc[int](func([]int) error { return boom }))

	assert.ErrorIs(t, first.Send([]int{1}), boom)
}

func TestSinkCopies(t *testing.T) {
	var s Sink[int]
	buf := []int{1, 2}
	require.NoError(t, s.Receive(buf))
	buf[0] = 9
	require.NoError(t, s.Receive(buf[:1]))

	assert.Equal(t, []int{1, 2, 9}, s.Data)
	assert.Equal(t, 2, s.Blocks)

	s.Reset()
	assert.Empty(t, s.Data)
}

func TestPairReaderOddLengths(t *testing.T) {
	var p PairReader
	var out []CU8

	out = p.CU8FromBytes(out, []byte{1, 2, 3})
	assert.Equal(t, []CU8{{1, 2}}, out)

	out = p.CU8FromBytes(out, []byte{4})
	assert.Equal(t, []CU8{{1, 2}, {3, 4}}, out)

	out = p.CU8FromBytes(out, []byte{5, 6})
	assert.Equal(t, []CU8{{1, 2}, {3, 4}, {5, 6}}, out)

	var ps PairReader
	s := ps.CS8FromBytes(nil, []byte{0xff, 0x80})
	assert.Equal(t, []CS8{{-1, -128}}, s)
	assert.Equal(t, "cs8", FormatCS8.String())
}
