package registry

import (
	"errors"
	"sync"

	"github.com/samber/do/v2"
)

var ErrAlreadyEngaged = errors.New("player is already in a duel")

// Service is the process-wide table of players currently in a duel. It is the
// only state shared between concurrently running duel lifecycles, so every
// mutation happens under one mutex.
type Service struct {
	mu      sync.Mutex
	engaged map[string]bool
}

func NewService(_ do.Injector) (*Service, error) {
	return &Service{
		engaged: map[string]bool{},
	}, nil
}

// TryReserve atomically checks that neither player is in a duel and inserts
// both. On failure nothing is mutated, so two challenges racing over an
// overlapping pair can never both succeed.
func (s *Service) TryReserve(a, b string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engaged[a] || s.engaged[b] {
		return ErrAlreadyEngaged
	}

	s.engaged[a] = true
	s.engaged[b] = true

	return nil
}

// Release removes both players unconditionally. Idempotent; called on every
// terminal path of a duel lifecycle.
func (s *Service) Release(a, b string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.engaged, a)
	delete(s.engaged, b)
}

func (s *Service) Engaged(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.engaged[id]
}
