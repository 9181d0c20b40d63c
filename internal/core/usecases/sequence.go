package usecases

import "sync/atomic"

// Sequence issues monotonically increasing request numbers. Only the most
// recently issued number is current; responses carrying older numbers are stale.
type Sequence struct {
	n atomic.Uint64
}

// Next issues a new request number, making every earlier one stale.
func (s *Sequence) Next() uint64 {
	return s.n.Add(1)
}

// Current reports whether seq is the latest issued number.
func (s *Sequence) Current(seq uint64) bool {
	return s.n.Load() == seq
}
