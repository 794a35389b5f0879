package timers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"djBot/internal/domain"
)

type captureOut struct {
	mu   sync.Mutex
	sent []string
}

func (c *captureOut) SendMessage(_ context.Context, _ domain.Platform, _ string, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return nil
}

type upperEngine struct{}

func (upperEngine) Process(_ context.Context, tmpl string, _ map[string]string) string {
	return "[" + tmpl + "]"
}

func newTestScheduler(now *time.Time) (*Scheduler, *captureOut) {
	out := &captureOut{}
	s := NewScheduler(upperEngine{}, out, domain.PlatformTwitch, "chan", nil)
	s.now = func() time.Time { return *now }
	return s, out
}

func lines(s *Scheduler, n int) {
	for i := 0; i < n; i++ {
		s.ObserveLine(domain.Message{})
	}
}

func TestTimerNeedsLinesAndInterval(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s, out := newTestScheduler(&now)
	s.Replace([]domain.Timer{{Name: "socials", Message: "follow", Interval: 10, Lines: 2}})
	ctx := context.Background()

	lines(s, 1)
	s.Check(ctx)
	assert.Empty(t, out.sent, "not enough lines")

	lines(s, 1)
	s.Check(ctx)
	assert.Equal(t, []string{"[follow]"}, out.sent)

	lines(s, 5)
	now = now.Add(9 * time.Minute)
	s.Check(ctx)
	assert.Len(t, out.sent, 1, "interval not elapsed")

	now = now.Add(time.Minute)
	s.Check(ctx)
	assert.Len(t, out.sent, 2)

	now = now.Add(time.Hour)
	s.Check(ctx)
	assert.Len(t, out.sent, 2, "no chat since last run")
}

func TestReplaceAppliesDefaultsAndDropsInvalid(t *testing.T) {
	now := time.Now()
	s, _ := newTestScheduler(&now)
	s.Replace([]domain.Timer{
		{Name: "a", Message: "x"},
		{Name: "", Message: "y"},
		{Name: "b", Message: "  "},
	})

	assert.Equal(t, []domain.Timer{{Name: "a", Message: "x", Interval: DefaultInterval}}, s.timers)
}

func TestRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	now := time.Now()
	s, _ := newTestScheduler(&now)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
