package epoch

import (
	"context"
	"sync"
)

// Local keeps epochs in-process (default). Epochs are lost on restart,
// which is only safe when the byte store is in-process too.
type Local struct {
	mu     sync.RWMutex
	epochs map[string]uint64
}

var _ Store = (*Local)(nil)

func NewLocal() *Local {
	return &Local{epochs: make(map[string]uint64)}
}

func (s *Local) Current(_ context.Context, ns string) (uint64, error) {
	s.mu.RLock()
	e := s.epochs[ns] // zero value (0) if missing
	s.mu.RUnlock()
	return e, nil
}

func (s *Local) Bump(_ context.Context, ns string) (uint64, error) {
	s.mu.Lock()
	s.epochs[ns]++
	e := s.epochs[ns]
	s.mu.Unlock()
	return e, nil
}

func (s *Local) Close(context.Context) error { return nil }
