package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"djBot/internal/domain"
)

type flakyAdapter struct {
	mu     sync.Mutex
	starts int
	failN  int
	sent   []string
}

func (f *flakyAdapter) Start(ctx context.Context) error {
	f.mu.Lock()
	f.starts++
	n := f.starts
	f.mu.Unlock()
	if n <= f.failN {
		return errors.New("connection reset")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *flakyAdapter) SendMessage(_ context.Context, _ domain.Platform, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, channelID+":"+text)
	return nil
}

func (f *flakyAdapter) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func TestPlatformManagerRestartsAdapter(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := NewPlatformManager(ManagerConfig{})
	var delays []time.Duration
	var mu sync.Mutex
	m.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return ctx.Err()
	}
	adapter := &flakyAdapter{failN: 2}
	m.Add(domain.PlatformTwitch, adapter, "#chan")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool {
		return adapter.startCount() == 3 && m.Running()[domain.PlatformTwitch]
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Announce(context.Background(), domain.PlatformTwitch, "hola"))
	assert.Equal(t, []string{"#chan:hola"}, adapter.sent)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, delays)
	mu.Unlock()
	assert.Empty(t, m.Sender().Platforms())
}

func TestAnnounceWithoutAdapter(t *testing.T) {
	m := NewPlatformManager(ManagerConfig{})
	err := m.Announce(context.Background(), domain.PlatformKick, "x")
	assert.ErrorIs(t, err, ErrNoAdapter)
}

func TestRestartDelayCaps(t *testing.T) {
	assert.Equal(t, 2*time.Second, restartDelay(1))
	assert.Equal(t, 32*time.Second, restartDelay(5))
	assert.Equal(t, time.Minute, restartDelay(10))
}
