// Package settings keeps the live copy of settings.json.
package settings

import (
	"fmt"
	"sync"

	"djBot/internal/domain"
)

type Saver interface {
	SaveSettings(s domain.Settings) error
}

type Holder struct {
	saver Saver

	mu       sync.RWMutex
	current  domain.Settings
	onChange []func(old, next domain.Settings)
}

func NewHolder(initial domain.Settings, saver Saver) *Holder {
	return &Holder{current: initial, saver: saver}
}

func (h *Holder) Get() domain.Settings {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// OnChange registers fn to run after every Replace or Update.
func (h *Holder) OnChange(fn func(old, next domain.Settings)) {
	h.mu.Lock()
	h.onChange = append(h.onChange, fn)
	h.mu.Unlock()
}

// Replace installs settings read from disk.
func (h *Holder) Replace(next domain.Settings) {
	h.mu.Lock()
	old := h.current
	h.current = next
	hooks := append([]func(old, next domain.Settings){}, h.onChange...)
	h.mu.Unlock()

	for _, fn := range hooks {
		fn(old, next)
	}
}

// Update mutates a copy, persists it and installs it.
func (h *Holder) Update(mutate func(*domain.Settings)) (domain.Settings, error) {
	h.mu.Lock()
	old := h.current
	next := old
	mutate(&next)
	if h.saver != nil {
		if err := h.saver.SaveSettings(next); err != nil {
			h.mu.Unlock()
			return old, fmt.Errorf("settings: save: %w", err)
		}
	}
	h.current = next
	hooks := append([]func(old, next domain.Settings){}, h.onChange...)
	h.mu.Unlock()

	for _, fn := range hooks {
		fn(old, next)
	}
	return next, nil
}
