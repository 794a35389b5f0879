// Package timers broadcasts periodic messages once enough time and chat
// activity have passed.
package timers

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"djBot/internal/domain"
)

const (
	DefaultInterval = 15
	DefaultLines    = 2
	checkEvery      = time.Minute
)

type Processor interface {
	Process(ctx context.Context, tmpl string, vars map[string]string) string
}

type timerState struct {
	lastRun   time.Time
	lastLines int64
}

type Scheduler struct {
	engine    Processor
	out       domain.OutgoingMessagePort
	platform  domain.Platform
	channelID string
	logger    *zap.Logger
	now       func() time.Time

	mu     sync.Mutex
	timers []domain.Timer
	state  map[string]*timerState
	lines  int64
}

func NewScheduler(engine Processor, out domain.OutgoingMessagePort, platform domain.Platform, channelID string, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		engine:    engine,
		out:       out,
		platform:  platform,
		channelID: channelID,
		logger:    logger,
		now:       time.Now,
		state:     make(map[string]*timerState),
	}
}

// Replace swaps the timer list. Run state of timers that keep their name is
// preserved.
func (s *Scheduler) Replace(timers []domain.Timer) {
	next := make([]domain.Timer, 0, len(timers))
	for _, t := range timers {
		if strings.TrimSpace(t.Name) == "" || strings.TrimSpace(t.Message) == "" {
			continue
		}
		if t.Interval <= 0 {
			t.Interval = DefaultInterval
		}
		if t.Lines < 0 {
			t.Lines = 0
		}
		next = append(next, t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers = next
	for name := range s.state {
		keep := false
		for _, t := range next {
			if t.Name == name {
				keep = true
				break
			}
		}
		if !keep {
			delete(s.state, name)
		}
	}
}

func (s *Scheduler) ObserveLine(domain.Message) {
	s.mu.Lock()
	s.lines++
	s.mu.Unlock()
}

// Run checks the timers every minute until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(checkEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

// Check fires every due timer: its interval has elapsed since the last run
// and at least Lines chat lines arrived since then.
func (s *Scheduler) Check(ctx context.Context) {
	for _, t := range s.due() {
		text := t.Message
		if s.engine != nil {
			text = s.engine.Process(ctx, text, nil)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		if err := s.out.SendMessage(ctx, s.platform, s.channelID, text); err != nil {
			s.logger.Warn("timers: send failed", zap.String("timer", t.Name), zap.Error(err))
			continue
		}
		s.logger.Debug("timers: fired", zap.String("timer", t.Name))
	}
}

func (s *Scheduler) due() []domain.Timer {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var fire []domain.Timer
	for _, t := range s.timers {
		st, ok := s.state[t.Name]
		if !ok {
			st = &timerState{}
			s.state[t.Name] = st
		}
		interval := time.Duration(t.Interval) * time.Minute
		if !st.lastRun.IsZero() && now.Sub(st.lastRun) < interval {
			continue
		}
		if s.lines-st.lastLines < int64(t.Lines) {
			continue
		}
		st.lastRun = now
		st.lastLines = s.lines
		fire = append(fire, t)
	}
	return fire
}
