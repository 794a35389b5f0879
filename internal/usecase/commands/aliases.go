package commands

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"djBot/internal/domain"
)

var ErrAliasExists = errors.New("alias already exists")

type AliasSaver interface {
	SaveAliases(t domain.AliasTable) error
}

// AliasPair is one alias -> main command entry.
type AliasPair struct {
	Alias string
	Main  string
}

// AliasManager rewrites aliased lines into their main command. Every alias
// belongs to exactly one main command.
type AliasManager struct {
	saver  AliasSaver
	logger *zap.Logger

	mu    sync.RWMutex
	table domain.AliasTable
	index map[string]string
	// aliases ordered longest first so "!editcom !duo" wins over "!editcom".
	ordered []string
}

func NewAliasManager(saver AliasSaver, initial domain.AliasTable, logger *zap.Logger) *AliasManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &AliasManager{saver: saver, logger: logger}
	m.Replace(initial)
	return m
}

// Replace loads a stored table. An alias claimed by several mains keeps the
// first owner in sorted order.
func (m *AliasManager) Replace(t domain.AliasTable) {
	mains := make([]string, 0, len(t))
	for main := range t {
		mains = append(mains, main)
	}
	slices.Sort(mains)

	table := make(domain.AliasTable, len(t))
	index := make(map[string]string)
	for _, rawMain := range mains {
		main := normalizeCommandName(rawMain)
		if main == "" {
			continue
		}
		for _, rawAlias := range t[rawMain] {
			alias := normalizeCommandName(rawAlias)
			if alias == "" {
				continue
			}
			if owner, dup := index[alias]; dup {
				m.logger.Warn("aliases: duplicate alias ignored",
					zap.String("alias", alias),
					zap.String("owner", owner),
					zap.String("main", main))
				continue
			}
			index[alias] = main
			table[main] = append(table[main], alias)
		}
	}

	m.mu.Lock()
	m.setLocked(table, index)
	m.mu.Unlock()
}

func (m *AliasManager) setLocked(table domain.AliasTable, index map[string]string) {
	ordered := make([]string, 0, len(index))
	for alias := range index {
		ordered = append(ordered, alias)
	}
	slices.SortFunc(ordered, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	m.table = table
	m.index = index
	m.ordered = ordered
}

// Rewrite replaces a leading alias with its main command. The line must equal
// the alias or continue with a space; the remainder is kept verbatim.
func (m *AliasManager) Rewrite(line string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, alias := range m.ordered {
		if len(line) < len(alias) || !strings.EqualFold(line[:len(alias)], alias) {
			continue
		}
		if len(line) > len(alias) && line[len(alias)] != ' ' {
			continue
		}
		return m.index[alias] + line[len(alias):], true
	}
	return line, false
}

// Owner returns the main command alias points to.
func (m *AliasManager) Owner(alias string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	main, ok := m.index[normalizeCommandName(alias)]
	return main, ok
}

func (m *AliasManager) List() []AliasPair {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mains := make([]string, 0, len(m.table))
	for main := range m.table {
		mains = append(mains, main)
	}
	slices.Sort(mains)

	var out []AliasPair
	for _, main := range mains {
		for _, alias := range m.table[main] {
			out = append(out, AliasPair{Alias: alias, Main: main})
		}
	}
	return out
}

// Add registers alias for main. It fails with ErrAliasExists when the alias
// already points somewhere.
func (m *AliasManager) Add(main, alias string) error {
	main, alias = normalizeCommandName(main), normalizeCommandName(alias)
	if main == "" || alias == "" {
		return fmt.Errorf("aliases: main and alias are required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if owner, ok := m.index[alias]; ok {
		return fmt.Errorf("aliases: %s -> %s: %w", alias, owner, ErrAliasExists)
	}
	table, index := m.cloneLocked()
	table[main] = append(table[main], alias)
	index[alias] = main
	return m.persistLocked(table, index)
}

// Delete removes alias. It reports false when the alias is unknown.
func (m *AliasManager) Delete(alias string) (bool, error) {
	alias = normalizeCommandName(alias)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.index[alias]; !ok {
		return false, nil
	}
	table, index := m.cloneLocked()
	removeAlias(table, index, alias)
	return true, m.persistLocked(table, index)
}

// Move points alias at main, detaching it from its previous owner.
func (m *AliasManager) Move(main, alias string) error {
	main, alias = normalizeCommandName(main), normalizeCommandName(alias)
	if main == "" || alias == "" {
		return fmt.Errorf("aliases: main and alias are required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	table, index := m.cloneLocked()
	removeAlias(table, index, alias)
	table[main] = append(table[main], alias)
	index[alias] = main
	return m.persistLocked(table, index)
}

func removeAlias(table domain.AliasTable, index map[string]string, alias string) {
	owner, ok := index[alias]
	if !ok {
		return
	}
	delete(index, alias)
	rest := slices.DeleteFunc(table[owner], func(a string) bool { return a == alias })
	if len(rest) == 0 {
		delete(table, owner)
		return
	}
	table[owner] = rest
}

func (m *AliasManager) cloneLocked() (domain.AliasTable, map[string]string) {
	table := make(domain.AliasTable, len(m.table))
	for main, aliases := range m.table {
		table[main] = append([]string(nil), aliases...)
	}
	index := make(map[string]string, len(m.index))
	for k, v := range m.index {
		index[k] = v
	}
	return table, index
}

func (m *AliasManager) persistLocked(table domain.AliasTable, index map[string]string) error {
	if m.saver != nil {
		if err := m.saver.SaveAliases(table); err != nil {
			return fmt.Errorf("aliases: save: %w", err)
		}
	}
	m.setLocked(table, index)
	return nil
}
