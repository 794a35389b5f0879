// Package counters keeps the named per-command counters behind $(count).
package counters

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"djBot/internal/domain"
)

// Store serializes counter mutations and writes every increment through to the
// repository before returning.
type Store struct {
	repo domain.CounterRepository
	mu   sync.Mutex
}

func NewStore(repo domain.CounterRepository) *Store {
	return &Store{repo: repo}
}

// Normalize lowercases name and strips one leading command prefix.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimPrefix(name, "!")
}

func (s *Store) Increment(ctx context.Context, name string) (int64, error) {
	key := Normalize(name)
	if key == "" {
		return 0, fmt.Errorf("counters: empty name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.repo.IncrementCounter(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("counters: increment %s: %w", key, err)
	}
	return v, nil
}

// Get returns zero for counters that were never incremented.
func (s *Store) Get(ctx context.Context, name string) (int64, error) {
	v, _, err := s.lookup(ctx, name)
	return v, err
}

func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	_, found, err := s.lookup(ctx, name)
	return found, err
}

func (s *Store) lookup(ctx context.Context, name string) (int64, bool, error) {
	key := Normalize(name)
	if key == "" {
		return 0, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, found, err := s.repo.GetCounter(ctx, key)
	if err != nil {
		return 0, false, fmt.Errorf("counters: get %s: %w", key, err)
	}
	return v, found, nil
}

// Set is the explicit external edit path (CLI).
func (s *Store) Set(ctx context.Context, name string, value int64) error {
	key := Normalize(name)
	if key == "" {
		return fmt.Errorf("counters: empty name")
	}
	if value < 0 {
		return fmt.Errorf("counters: negative value %d", value)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.SetCounter(ctx, key, value); err != nil {
		return fmt.Errorf("counters: set %s: %w", key, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.repo.ListCounters(ctx)
	if err != nil {
		return nil, fmt.Errorf("counters: list: %w", err)
	}
	return out, nil
}
