package clinic

import (
	"context"
	"sync"
)

// Service caches the clinic row; it changes rarely and is read on every
// printout.
type Service struct {
	repo Repository

	mu     sync.RWMutex
	cached *Info
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context) (*Info, error) {
	s.mu.RLock()
	cached := s.cached
	s.mu.RUnlock()
	if cached != nil {
		cp := *cached
		return &cp, nil
	}

	info, err := s.repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cached = info
	s.mu.Unlock()
	cp := *info
	return &cp, nil
}

func (s *Service) Update(ctx context.Context, info *Info) error {
	info.Normalize()
	if err := info.Validate(); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, info); err != nil {
		return err
	}
	cp := *info
	s.mu.Lock()
	s.cached = &cp
	s.mu.Unlock()
	return nil
}
