package app

import (
	"errors"
	"sync"
)

const maxSessions = 64

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidSettings = errors.New("invalid settings")
	ErrNoStore         = errors.New("artifact storage is not configured")
	ErrNoSpeech        = errors.New("speech synthesis is not configured")
)

// sessions keeps the most recent runs by id. The oldest entry is evicted
// once limit is reached.
type sessions[T any] struct {
	mu    sync.Mutex
	items map[string]T
	order []string
	limit int
}

func newSessions[T any](limit int) *sessions[T] {
	return &sessions[T]{items: make(map[string]T), limit: limit}
}

func (s *sessions[T]) put(id string, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		s.order = append(s.order, id)
	}
	s.items[id] = v

	for len(s.order) > s.limit {
		delete(s.items, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *sessions[T]) get(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[id]
	return v, ok
}

func (s *sessions[T]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
