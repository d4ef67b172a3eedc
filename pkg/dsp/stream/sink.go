package stream

// Sink keeps a copy of everything it receives.
type Sink[T any] struct {
	Data   []T
	Blocks int
}

func (s *Sink[T]) Receive(block []T) error {
	s.Data = append(s.Data, block...)
	s.Blocks++
	return nil
}

func (s *Sink[T]) Reset() {
	s.Data = s.Data[:0]
	s.Blocks = 0
}
