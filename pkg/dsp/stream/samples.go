package stream

// Format identifies the raw sample layout produced by a device.
type Format int

const (
	FormatCU8 Format = iota
	FormatCS8
)

func (f Format) String() string {
	switch f {
	case FormatCU8:
		return "cu8"
	case FormatCS8:
		return "cs8"
	default:
		return "unknown"
	}
}

// CU8 is an interleaved unsigned 8 bit IQ pair with a DC bias of 128 (rtl-sdr).
type CU8 struct {
	I, Q uint8
}

// CS8 is an interleaved signed 8 bit IQ pair (hackrf).
type CS8 struct {
	I, Q int8
}

// PairReader turns a stream of interleaved IQ bytes into sample pairs. A
// trailing odd byte is kept and prepended to the next call.
type PairReader struct {
	pending    byte
	hasPending bool
}

func (p *PairReader) pairs(buf []byte, emit func(i, q byte)) {
	if len(buf) == 0 {
		return
	}
	if p.hasPending {
		emit(p.pending, buf[0])
		buf = buf[1:]
		p.hasPending = false
	}
	n := len(buf) &^ 1
	for i := 0; i < n; i += 2 {
		emit(buf[i], buf[i+1])
	}
	if n < len(buf) {
		p.pending = buf[n]
		p.hasPending = true
	}
}

// CU8FromBytes appends the pairs contained in buf to dst.
func (p *PairReader) CU8FromBytes(dst []CU8, buf []byte) []CU8 {
	p.pairs(buf, func(i, q byte) {
		dst = append(dst, CU8{I: i, Q: q})
	})
	return dst
}

// CS8FromBytes appends the pairs contained in buf to dst.
func (p *PairReader) CS8FromBytes(dst []CS8, buf []byte) []CS8 {
	p.pairs(buf, func(i, q byte) {
		dst = append(dst, CS8{I: int8(i), Q: int8(q)})
	})
	return dst
}
