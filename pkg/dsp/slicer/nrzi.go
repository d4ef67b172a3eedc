package slicer

import "github.com/norasector/aisrx/pkg/dsp/stream"

// NRZI decodes non-return-to-zero inverted bits: an unchanged level is a 1 and
// a level change is a 0.
type NRZI struct {
	Out stream.Connection[byte]

	prev   byte
	output []byte
}

func NewNRZI() *NRZI {
	return &NRZI{}
}

func (n *NRZI) Reset() {
	n.prev = 0
}

func (n *NRZI) Receive(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if cap(n.output) < len(data) {
		n.output = make([]byte, len(data))
	}
	out := n.output[:len(data)]

	for i, b := range data {
		if b == n.prev {
			out[i] = 1
		} else {
			out[i] = 0
		}
		n.prev = b
	}
	return n.Out.Send(out)
}
