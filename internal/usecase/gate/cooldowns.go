package gate

import (
	"strings"
	"sync"
	"time"

	"djBot/internal/domain"
)

// Cooldowns tracks the last accepted invocation per command. State lives only
// in memory and resets with the process.
type Cooldowns struct {
	mu        sync.Mutex
	durations domain.CooldownTable
	last      map[string]time.Time
	now       func() time.Time
}

func NewCooldowns(table domain.CooldownTable, now func() time.Time) *Cooldowns {
	if now == nil {
		now = time.Now
	}
	c := &Cooldowns{
		last: make(map[string]time.Time),
		now:  now,
	}
	c.Replace(table)
	return c
}

// Replace swaps the configured durations. Recorded invocations are kept.
func (c *Cooldowns) Replace(table domain.CooldownTable) {
	cp := make(domain.CooldownTable, len(table))
	for k, v := range table {
		cp[strings.ToLower(strings.TrimSpace(k))] = v
	}
	c.mu.Lock()
	c.durations = cp
	c.mu.Unlock()
}

// CheckAndUpdate returns true when command is still cooling down. Otherwise it
// records now as the last invocation and returns false.
func (c *Cooldowns) CheckAndUpdate(command string) bool {
	command = strings.ToLower(command)

	c.mu.Lock()
	defer c.mu.Unlock()

	secs, ok := c.durations[command]
	if !ok {
		return false
	}
	now := c.now()
	if last, seen := c.last[command]; seen && now.Sub(last) < time.Duration(secs)*time.Second {
		return true
	}
	c.last[command] = now
	return false
}
