package tokenstore

import (
	"context"
	"sync"
	"time"
)

type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]time.Time{}, now: time.Now}
}

func (s *MemoryStore) Save(ctx context.Context, token string) error {
	if err := checkContext(ctx, "save"); err != nil {
		return err
	}
	key := Key(token)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		s.entries[key] = s.now().UTC()
	}
	return nil
}

func (s *MemoryStore) Exists(ctx context.Context, token string) (bool, error) {
	if err := checkContext(ctx, "exists"); err != nil {
		return false, err
	}
	key := Key(token)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok, nil
}

func (s *MemoryStore) Revoke(ctx context.Context, token string) error {
	_, err := s.Consume(ctx, token)
	return err
}

func (s *MemoryStore) Consume(ctx context.Context, token string) (bool, error) {
	if err := checkContext(ctx, "consume"); err != nil {
		return false, err
	}
	key := Key(token)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

func (s *MemoryStore) PurgeCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := checkContext(ctx, "purge"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for key, createdAt := range s.entries {
		if createdAt.Before(cutoff) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
