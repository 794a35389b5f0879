package jsonstore

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"djBot/internal/domain"
)

const (
	DefaultDebounce = time.Second
	debounceTick    = 100 * time.Millisecond
)

var watchedKinds = map[string]domain.ConfigKind{
	string(domain.ConfigCommands) + ".json":    domain.ConfigCommands,
	string(domain.ConfigAliases) + ".json":     domain.ConfigAliases,
	string(domain.ConfigPermissions) + ".json": domain.ConfigPermissions,
	string(domain.ConfigCooldowns) + ".json":   domain.ConfigCooldowns,
	string(domain.ConfigSettings) + ".json":    domain.ConfigSettings,
	string(domain.ConfigResponses) + ".json":   domain.ConfigResponses,
	string(domain.ConfigTimers) + ".json":      domain.ConfigTimers,
	string(domain.ConfigGameAliases) + ".json": domain.ConfigGameAliases,
}

// Subscribe returns a channel that receives the kind of every changed
// document, after debouncing. Slow subscribers miss notifications.
func (s *Store) Subscribe() (<-chan domain.ConfigKind, func()) {
	ch := make(chan domain.ConfigKind, 16)
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = ch
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
}

func (s *Store) notify(kind domain.ConfigKind) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- kind:
		default:
			s.logger.Warn("jsonstore: change notification dropped", zap.String("kind", string(kind)))
		}
	}
}

// Watch reports edits to the data directory until ctx is done. Rapid writes
// to one file collapse into a single notification once it has been quiet for
// debounce.
func (s *Store) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("jsonstore: watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(s.dir); err != nil {
		return fmt.Errorf("jsonstore: watch %s: %w", s.dir, err)
	}
	s.logger.Info("jsonstore: watching data directory", zap.String("dir", s.dir))

	pending := make(map[domain.ConfigKind]time.Time)
	ticker := time.NewTicker(debounceTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			name := filepath.Base(ev.Name)
			if strings.HasPrefix(name, ".") {
				continue
			}
			if kind, ok := watchedKinds[name]; ok {
				pending[kind] = time.Now()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("jsonstore: watcher error", zap.Error(err))

		case now := <-ticker.C:
			for kind, at := range pending {
				if now.Sub(at) >= debounce {
					delete(pending, kind)
					s.logger.Info("jsonstore: config changed", zap.String("kind", string(kind)))
					s.notify(kind)
				}
			}
		}
	}
}
