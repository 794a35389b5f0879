package commands

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"djBot/internal/domain"
)

var ErrReservedName = errors.New("name reserved by a native command")

// CommandSaver persists the full custom command set.
type CommandSaver interface {
	SaveCommands(cmds map[string]*domain.CustomCommand) error
}

// CustomCommandManager owns the in-memory snapshot of custom commands.
// Callers only ever see clones.
type CustomCommandManager struct {
	saver CommandSaver

	mu         sync.RWMutex
	commands   map[string]*domain.CustomCommand
	isReserved func(string) bool
	now        func() time.Time
}

func NewCustomCommandManager(saver CommandSaver, initial map[string]*domain.CustomCommand) *CustomCommandManager {
	mgr := &CustomCommandManager{
		saver:    saver,
		commands: make(map[string]*domain.CustomCommand),
		now:      time.Now,
	}
	mgr.Replace(initial)
	return mgr
}

// Replace swaps the snapshot, used on load and on config change. Triggers
// owned by a native command are left out and returned.
func (m *CustomCommandManager) Replace(cmds map[string]*domain.CustomCommand) []string {
	next := make(map[string]*domain.CustomCommand, len(cmds))
	for key, cmd := range cmds {
		if cmd == nil {
			continue
		}
		trigger := normalizeCommandName(cmd.Trigger)
		if trigger == "" {
			trigger = normalizeCommandName(key)
		}
		if trigger == "" {
			continue
		}
		c := cloneCommand(cmd)
		c.Trigger = trigger
		next[trigger] = c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = next
	return m.pruneLocked()
}

// SetReservedChecker installs fn and drops any loaded command it reserves.
func (m *CustomCommandManager) SetReservedChecker(fn func(string) bool) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isReserved = fn
	return m.pruneLocked()
}

// Prune drops loaded commands that became reserved, e.g. after a native
// command was registered.
func (m *CustomCommandManager) Prune() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pruneLocked()
}

// pruneLocked only touches memory; the file keeps the entry so removing the
// native later brings it back on the next load.
func (m *CustomCommandManager) pruneLocked() []string {
	if m.isReserved == nil {
		return nil
	}
	var dropped []string
	for key := range m.commands {
		if m.isReserved(key) {
			delete(m.commands, key)
			dropped = append(dropped, key)
		}
	}
	slices.Sort(dropped)
	return dropped
}

func (m *CustomCommandManager) Find(trigger string) *domain.CustomCommand {
	if m == nil {
		return nil
	}
	key := normalizeCommandName(trigger)
	if key == "" {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if cmd, ok := m.commands[key]; ok {
		return cloneCommand(cmd)
	}
	return nil
}

func (m *CustomCommandManager) List() []*domain.CustomCommand {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.CustomCommand, 0, len(m.commands))
	for _, cmd := range m.commands {
		out = append(out, cloneCommand(cmd))
	}
	slices.SortFunc(out, func(a, b *domain.CustomCommand) int {
		return strings.Compare(a.Trigger, b.Trigger)
	})
	return out
}

func (m *CustomCommandManager) Triggers() []string {
	list := m.List()
	out := make([]string, 0, len(list))
	for _, cmd := range list {
		out = append(out, cmd.Trigger)
	}
	return out
}

// Add creates or overwrites trigger. It refuses native command names.
func (m *CustomCommandManager) Add(trigger, response string) (bool, error) {
	key := normalizeCommandName(trigger)
	response = strings.TrimSpace(response)
	if key == "" || response == "" {
		return false, fmt.Errorf("commands: trigger and response are required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isReserved != nil && m.isReserved(key) {
		return false, fmt.Errorf("commands: add %s: %w", key, ErrReservedName)
	}

	_, exists := m.commands[key]
	next := m.cloneAllLocked()
	next[key] = &domain.CustomCommand{
		Trigger:   key,
		Response:  response,
		Enabled:   true,
		UpdatedAt: m.now(),
	}
	if err := m.persistLocked(next); err != nil {
		return false, err
	}
	return !exists, nil
}

// Edit replaces the response of an existing command. It reports false when
// trigger does not exist.
func (m *CustomCommandManager) Edit(trigger, response string) (bool, error) {
	key := normalizeCommandName(trigger)
	response = strings.TrimSpace(response)
	if key == "" || response == "" {
		return false, fmt.Errorf("commands: trigger and response are required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.commands[key]
	if !ok {
		return false, nil
	}
	next := m.cloneAllLocked()
	updated := cloneCommand(existing)
	updated.Response = response
	updated.UpdatedAt = m.now()
	next[key] = updated
	if err := m.persistLocked(next); err != nil {
		return false, err
	}
	return true, nil
}

func (m *CustomCommandManager) Delete(trigger string) (bool, error) {
	key := normalizeCommandName(trigger)
	if key == "" {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.commands[key]; !ok {
		return false, nil
	}
	next := m.cloneAllLocked()
	delete(next, key)
	if err := m.persistLocked(next); err != nil {
		return false, err
	}
	return true, nil
}

// persistLocked saves next and only then swaps it in, so a failed write
// leaves the snapshot untouched.
func (m *CustomCommandManager) persistLocked(next map[string]*domain.CustomCommand) error {
	if m.saver != nil {
		if err := m.saver.SaveCommands(next); err != nil {
			return fmt.Errorf("commands: save: %w", err)
		}
	}
	m.commands = next
	return nil
}

func (m *CustomCommandManager) cloneAllLocked() map[string]*domain.CustomCommand {
	out := make(map[string]*domain.CustomCommand, len(m.commands)+1)
	for k, v := range m.commands {
		out[k] = cloneCommand(v)
	}
	return out
}

func normalizeCommandName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func cloneCommand(cmd *domain.CustomCommand) *domain.CustomCommand {
	if cmd == nil {
		return nil
	}
	c := *cmd
	return &c
}
