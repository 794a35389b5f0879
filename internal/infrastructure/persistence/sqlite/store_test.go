package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"djBot/internal/domain"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "bot.db")
	store, err := NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestCountersPersistAcrossReopen(t *testing.T) {
	ctx := context.Background()
	store, path := newTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := store.IncrementCounter(ctx, "deaths")
		require.NoError(t, err)
	}
	require.NoError(t, store.Close())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	v, found, err := reopened.GetCounter(ctx, "deaths")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(3), v)

	next, err := reopened.IncrementCounter(ctx, "deaths")
	require.NoError(t, err)
	assert.Equal(t, int64(4), next)
}

func TestConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.IncrementCounter(ctx, "hugs")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	v, _, err := store.GetCounter(ctx, "hugs")
	require.NoError(t, err)
	assert.Equal(t, int64(n), v)
}

func TestSetListAndImport(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	imported, err := store.ImportCounters(ctx, map[string]int64{"a": 2, "b": 5})
	require.NoError(t, err)
	assert.Equal(t, 2, imported)

	again, err := store.ImportCounters(ctx, map[string]int64{"c": 1})
	require.NoError(t, err)
	assert.Zero(t, again)

	require.NoError(t, store.SetCounter(ctx, "a", 10))
	all, err := store.ListCounters(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"a": 10, "b": 5}, all)

	_, found, err := store.GetCounter(ctx, "c")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNotifications(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	n := &domain.Notification{
		Type:     domain.NotificationRedemption,
		Platform: domain.PlatformTwitch,
		Username: "alice",
		Message:  "never gonna give you up",
		Metadata: map[string]string{"reward": "Song Request", "status": "FULFILLED"},
	}
	require.NoError(t, store.SaveNotification(ctx, n))
	assert.NotZero(t, n.ID)

	list, err := store.ListNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0].Username)
	assert.Equal(t, "FULFILLED", list[0].Metadata["status"])
	assert.Equal(t, domain.NotificationRedemption, list[0].Type)
}
