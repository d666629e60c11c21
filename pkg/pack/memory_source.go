package pack

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type inMemSource struct {
	mu    sync.RWMutex
	packs map[uuid.UUID]Pack
	free  uuid.UUID
}

// NewInMemSource returns an in-memory Source over a copy of the given packs.
// The catalog must contain at least one active free pack; the source panics
// on an empty catalog and returns an error for inconsistent ones, failing
// fast during initialization.
func NewInMemSource(packs ...Pack) (Source, error) {
	if len(packs) == 0 {
		panic("pack: at least one pack is required")
	}
	if err := validate(packs); err != nil {
		return nil, err
	}

	s := &inMemSource{packs: make(map[uuid.UUID]Pack, len(packs))}
	for _, p := range packs {
		s.packs[p.ID] = p
		if p.Kind == KindFree && p.Active && s.free == uuid.Nil {
			s.free = p.ID
		}
	}
	return s, nil
}

// MustNewInMemSource is NewInMemSource that panics on invalid catalogs.
func MustNewInMemSource(packs ...Pack) Source {
	s, err := NewInMemSource(packs...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *inMemSource) Get(ctx context.Context, id uuid.UUID) (*Pack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.packs[id]
	if !ok || !p.Active {
		return nil, ErrPackNotFound
	}
	cp := p
	return &cp, nil
}

func (s *inMemSource) Free(ctx context.Context) (*Pack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.packs[s.free]
	if !ok {
		return nil, ErrNoFreePack
	}
	cp := p
	return &cp, nil
}

func (s *inMemSource) List(ctx context.Context) ([]Pack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Pack, 0, len(s.packs))
	for _, p := range s.packs {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}
