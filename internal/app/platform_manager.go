package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"djBot/internal/domain"
	"djBot/internal/interface/outs"
)

const (
	restartBase = 2 * time.Second
	restartMax  = time.Minute
)

// ChatAdapter is one chat connection (Twitch IRC, Kick websocket).
type ChatAdapter interface {
	outs.Sender
	Start(ctx context.Context) error
}

type ManagerConfig struct {
	MultiOut *outs.MultiSender
	Logger   *zap.Logger
}

// PlatformManager owns the chat adapters: it registers them as senders and
// keeps each one running, restarting with backoff when a connection drops.
type PlatformManager struct {
	multiOut *outs.MultiSender
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error

	mu       sync.RWMutex
	adapters map[domain.Platform]*platformEntry
}

type platformEntry struct {
	adapter   ChatAdapter
	channelID string
	running   bool
}

func NewPlatformManager(cfg ManagerConfig) *PlatformManager {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	multiOut := cfg.MultiOut
	if multiOut == nil {
		multiOut = outs.NewMultiSender()
	}
	return &PlatformManager{
		multiOut: multiOut,
		logger:   logger,
		sleep:    sleepCtx,
		adapters: make(map[domain.Platform]*platformEntry),
	}
}

// Add registers adapter for platform. channelID is the primary channel the
// bot posts unsolicited messages to (timers, redemption replies).
func (m *PlatformManager) Add(platform domain.Platform, adapter ChatAdapter, channelID string) {
	if adapter == nil {
		return
	}
	m.mu.Lock()
	m.adapters[platform] = &platformEntry{adapter: adapter, channelID: channelID}
	m.mu.Unlock()
	m.multiOut.Register(platform, adapter)
}

func (m *PlatformManager) Sender() *outs.MultiSender { return m.multiOut }

func (m *PlatformManager) ChannelID(platform domain.Platform) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.adapters[platform]; ok {
		return e.channelID
	}
	return ""
}

// Running reports which adapters are currently connected.
func (m *PlatformManager) Running() map[domain.Platform]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[domain.Platform]bool, len(m.adapters))
	for p, e := range m.adapters {
		out[p] = e.running
	}
	return out
}

// Run keeps every adapter alive until ctx is done.
func (m *PlatformManager) Run(ctx context.Context) error {
	m.mu.RLock()
	entries := make(map[domain.Platform]*platformEntry, len(m.adapters))
	for p, e := range m.adapters {
		entries[p] = e
	}
	m.mu.RUnlock()

	if len(entries) == 0 {
		m.logger.Warn("platform manager: no chat adapters configured")
		<-ctx.Done()
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for platform, entry := range entries {
		g.Go(func() error {
			m.supervise(ctx, platform, entry)
			return nil
		})
	}
	return g.Wait()
}

func (m *PlatformManager) supervise(ctx context.Context, platform domain.Platform, entry *platformEntry) {
	defer m.multiOut.Unregister(platform)

	failures := 0
	for {
		m.setRunning(entry, true)
		started := time.Now()
		err := entry.adapter.Start(ctx)
		m.setRunning(entry, false)

		if ctx.Err() != nil {
			return
		}
		if time.Since(started) > restartMax {
			failures = 0
		}
		failures++
		delay := restartDelay(failures)
		m.logger.Warn("platform manager: adapter stopped, restarting",
			zap.String("platform", string(platform)),
			zap.Int("failures", failures),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := m.sleep(ctx, delay); err != nil {
			return
		}
	}
}

func (m *PlatformManager) setRunning(e *platformEntry, running bool) {
	m.mu.Lock()
	e.running = running
	m.mu.Unlock()
}

func restartDelay(failures int) time.Duration {
	d := restartBase
	for i := 1; i < failures && d < restartMax; i++ {
		d *= 2
	}
	if d > restartMax {
		d = restartMax
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ErrNoAdapter is returned by Announce when the platform has no adapter.
var ErrNoAdapter = errors.New("platform manager: no adapter for platform")

// Announce posts text to the primary channel of platform.
func (m *PlatformManager) Announce(ctx context.Context, platform domain.Platform, text string) error {
	channel := m.ChannelID(platform)
	if channel == "" {
		return fmt.Errorf("%w %s", ErrNoAdapter, platform)
	}
	return m.multiOut.SendMessage(ctx, platform, channel, text)
}
