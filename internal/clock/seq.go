package clock

import "sync/atomic"

// Seq is a monotonic logical clock.
//
// Safe for concurrent use. Each call to Next returns a unique, strictly
// increasing value.
type Seq struct {
	n atomic.Int64
}

// NewSeq creates a sequence starting at 0. The first Next returns 1.
func NewSeq() *Seq {
	return &Seq{}
}

// NewSeqAt creates a sequence resuming after start.
func NewSeqAt(start int64) *Seq {
	s := &Seq{}
	s.n.Store(start)
	return s
}

// Next returns the next sequence number.
func (s *Seq) Next() int64 {
	return s.n.Add(1)
}

// Current returns the last issued sequence number without incrementing.
func (s *Seq) Current() int64 {
	return s.n.Load()
}
