package cic

// Cascade is a chain of integer halving sections working on separate I and Q
// registers. Each section renormalises its output by 16, leaving a net gain of
// two per stage that is removed when converting to float at the end.
type Cascade struct {
	stages []halving
	scale  float32
}

type halving struct {
	i, q State[int32]
	odd  bool
}

// NewCascade returns a cascade of n halving sections whose float output
// maps an input magnitude of fullScale to 1.0.
func NewCascade(n int, fullScale int32) *Cascade {
	return &Cascade{
		stages: make([]halving, n),
		scale:  1.0 / (float32(fullScale) * float32(int32(1)<<n)),
	}
}

// Factor is the total decimation of the cascade.
func (c *Cascade) Factor() int {
	return 1 << len(c.stages)
}

// Push feeds one IQ pair into the cascade. It reports true when the last
// section produced an output.
func (c *Cascade) Push(i, q int32) (complex64, bool) {
	for k := range c.stages {
		st := &c.stages[k]
		i, q = st.i.Push(i), st.q.Push(q)
		if !st.odd {
			st.odd = true
			return 0, false
		}
		st.odd = false
		i, q = (i+8)>>4, (q+8)>>4
	}
	return complex(float32(i)*c.scale, float32(q)*c.scale), true
}
