package counters

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo is deliberately not goroutine safe: Store must serialize access.
type memRepo struct {
	values map[string]int64
}

func newMemRepo() *memRepo { return &memRepo{values: map[string]int64{}} }

func (m *memRepo) IncrementCounter(_ context.Context, name string) (int64, error) {
	v := m.values[name]
	v++
	m.values[name] = v
	return v, nil
}

func (m *memRepo) GetCounter(_ context.Context, name string) (int64, bool, error) {
	v, ok := m.values[name]
	return v, ok, nil
}

func (m *memRepo) SetCounter(_ context.Context, name string, value int64) error {
	m.values[name] = value
	return nil
}

func (m *memRepo) ListCounters(context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "deaths", Normalize("!Deaths"))
	assert.Equal(t, "deaths", Normalize("  deaths "))
	assert.Equal(t, "!x", Normalize("!!x"))
}

func TestIncrementNormalizesAndReturnsNewValue(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	repo.values["deaths"] = 7
	s := NewStore(repo)

	v, err := s.Increment(ctx, "!DEATHS")
	require.NoError(t, err)
	assert.Equal(t, int64(8), v)

	got, err := s.Get(ctx, "deaths")
	require.NoError(t, err)
	assert.Equal(t, int64(8), got)
}

func TestGetMissingIsZero(t *testing.T) {
	s := NewStore(newMemRepo())
	v, err := s.Get(context.Background(), "!nothing")
	require.NoError(t, err)
	assert.Zero(t, v)

	ok, err := s.Exists(context.Background(), "nothing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConcurrentIncrementsAreNotLost(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newMemRepo())

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Increment(ctx, "!hugs")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	v, err := s.Get(ctx, "hugs")
	require.NoError(t, err)
	assert.Equal(t, int64(n), v)
}

func TestSetRejectsNegative(t *testing.T) {
	s := NewStore(newMemRepo())
	require.Error(t, s.Set(context.Background(), "x", -1))
	require.NoError(t, s.Set(context.Background(), "!x", 5))
	v, _ := s.Get(context.Background(), "x")
	assert.Equal(t, int64(5), v)
}

func TestEmptyNameRejected(t *testing.T) {
	_, err := NewStore(newMemRepo()).Increment(context.Background(), "!")
	require.Error(t, err)
}
