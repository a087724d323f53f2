package genstore

import (
	"context"
	"sync"
)

var _ GenStore = (*LocalGenStore)(nil)

// LocalGenStore keeps generations in-process. They reset to 0 on restart,
// which is harmless for in-process providers because those start empty too.
type LocalGenStore struct {
	mu   sync.Mutex
	gens map[string]uint64
}

func NewLocalGenStore() *LocalGenStore {
	return &LocalGenStore{gens: make(map[string]uint64)}
}

func (s *LocalGenStore) Snapshot(_ context.Context, ns string) (uint64, error) {
	s.mu.Lock()
	g := s.gens[ns]
	s.mu.Unlock()
	return g, nil
}

func (s *LocalGenStore) Bump(_ context.Context, ns string) (uint64, error) {
	s.mu.Lock()
	s.gens[ns]++
	g := s.gens[ns]
	s.mu.Unlock()
	return g, nil
}

func (s *LocalGenStore) Close(context.Context) error { return nil }
