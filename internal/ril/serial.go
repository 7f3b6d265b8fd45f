package ril

import "sync"

// serialAllocator hands out per-epoch serials. It has its own lock so pool
// contention never interacts with serial assignment.
type serialAllocator struct {
	mu    sync.Mutex
	next  int32
	epoch uint64
}

// Next returns a fresh serial and the epoch it belongs to.
func (s *serialAllocator) Next() (int32, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	serial := s.next
	s.next++
	return serial, s.epoch
}

// Reset starts a new epoch whose first serial is zero.
func (s *serialAllocator) Reset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = 0
	s.epoch++
	return s.epoch
}

func (s *serialAllocator) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}
