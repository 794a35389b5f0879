// Package jsonstore keeps the bot configuration as JSON documents in the data
// directory, one file per kind, and reports external edits.
package jsonstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"djBot/internal/domain"
)

const countsFile = "counts.json"

// Store implements domain.ConfigStore over <dir>/<kind>.json.
type Store struct {
	dir    string
	logger *zap.Logger

	writeMu sync.Mutex

	subMu     sync.Mutex
	subs      map[int]chan domain.ConfigKind
	nextSubID int
}

var _ domain.ConfigStore = (*Store)(nil)

func New(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("jsonstore: create data dir: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: logger,
		subs:   make(map[int]chan domain.ConfigKind),
	}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) path(kind domain.ConfigKind) string {
	return filepath.Join(s.dir, string(kind)+".json")
}

// read returns the trimmed file body, or nil when the file is missing or empty.
func (s *Store) read(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jsonstore: read %s: %w", name, err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

func (s *Store) readKind(kind domain.ConfigKind, v any) (bool, error) {
	data, err := s.read(string(kind) + ".json")
	if err != nil || data == nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("jsonstore: decode %s: %w", kind, err)
	}
	return true, nil
}

// write replaces the file atomically (temp file + rename).
func (s *Store) write(kind domain.ConfigKind, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("jsonstore: encode %s: %w", kind, err)
	}
	data = append(data, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "."+string(kind)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("jsonstore: write %s: %w", kind, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("jsonstore: write %s: %w", kind, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("jsonstore: write %s: %w", kind, err)
	}
	if err := os.Rename(tmpName, s.path(kind)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("jsonstore: write %s: %w", kind, err)
	}
	return nil
}

// LoadCommands accepts the current map form and the legacy shapes: a map of
// trigger to plain string, or a list of {trigger, response}. !clip is native
// and always skipped.
func (s *Store) LoadCommands() (map[string]*domain.CustomCommand, error) {
	data, err := s.read(string(domain.ConfigCommands) + ".json")
	if err != nil || data == nil {
		return map[string]*domain.CustomCommand{}, err
	}
	cmds, err := decodeCommands(data)
	if err != nil {
		return map[string]*domain.CustomCommand{}, fmt.Errorf("jsonstore: decode commands: %w", err)
	}
	return cmds, nil
}

type commandRecord struct {
	Trigger   string     `json:"trigger,omitempty"`
	Response  string     `json:"response"`
	Enabled   *bool      `json:"enabled,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (r commandRecord) toDomain(trigger string) *domain.CustomCommand {
	cmd := &domain.CustomCommand{
		Trigger:  strings.ToLower(strings.TrimSpace(trigger)),
		Response: r.Response,
		Enabled:  r.Enabled == nil || *r.Enabled,
	}
	if r.UpdatedAt != nil {
		cmd.UpdatedAt = *r.UpdatedAt
	}
	return cmd
}

func decodeCommands(data []byte) (map[string]*domain.CustomCommand, error) {
	out := make(map[string]*domain.CustomCommand)

	if data[0] == '[' {
		var list []commandRecord
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, err
		}
		for _, rec := range list {
			if rec.Trigger == "" || isClip(rec.Trigger) {
				continue
			}
			cmd := rec.toDomain(rec.Trigger)
			out[cmd.Trigger] = cmd
		}
		return out, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for trigger, body := range raw {
		if isClip(trigger) {
			continue
		}
		var rec commandRecord
		var plain string
		if err := json.Unmarshal(body, &plain); err == nil {
			rec.Response = plain
		} else if err := json.Unmarshal(body, &rec); err != nil {
			return nil, fmt.Errorf("command %q: %w", trigger, err)
		}
		cmd := rec.toDomain(trigger)
		out[cmd.Trigger] = cmd
	}
	return out, nil
}

func isClip(trigger string) bool {
	return strings.EqualFold(strings.TrimSpace(trigger), "!clip")
}

func (s *Store) SaveCommands(cmds map[string]*domain.CustomCommand) error {
	out := make(map[string]commandRecord, len(cmds))
	for key, cmd := range cmds {
		if cmd == nil {
			continue
		}
		enabled := cmd.Enabled
		rec := commandRecord{Response: cmd.Response, Enabled: &enabled}
		if !cmd.UpdatedAt.IsZero() {
			ts := cmd.UpdatedAt.UTC()
			rec.UpdatedAt = &ts
		}
		trigger := cmd.Trigger
		if trigger == "" {
			trigger = key
		}
		out[trigger] = rec
	}
	return s.write(domain.ConfigCommands, out)
}

func (s *Store) LoadAliases() (domain.AliasTable, error) {
	t := domain.AliasTable{}
	_, err := s.readKind(domain.ConfigAliases, &t)
	return t, err
}

func (s *Store) SaveAliases(t domain.AliasTable) error {
	return s.write(domain.ConfigAliases, t)
}

// LoadPermissions returns an empty table when the file does not exist yet.
func (s *Store) LoadPermissions() (domain.PermissionTable, error) {
	var raw map[string][]string
	if _, err := s.readKind(domain.ConfigPermissions, &raw); err != nil {
		return domain.PermissionTable{}, err
	}
	t := make(domain.PermissionTable, len(raw))
	for cmd, roles := range raw {
		list := make([]domain.Role, 0, len(roles))
		for _, r := range roles {
			list = append(list, domain.ParseRole(r))
		}
		t[cmd] = list
	}
	return t, nil
}

func (s *Store) SavePermissions(t domain.PermissionTable) error {
	raw := make(map[string][]string, len(t))
	for cmd, roles := range t {
		list := make([]string, 0, len(roles))
		for _, r := range roles {
			list = append(list, string(r))
		}
		raw[cmd] = list
	}
	return s.write(domain.ConfigPermissions, raw)
}

func (s *Store) LoadCooldowns() (domain.CooldownTable, error) {
	var raw map[string]float64
	if _, err := s.readKind(domain.ConfigCooldowns, &raw); err != nil {
		return domain.CooldownTable{}, err
	}
	t := make(domain.CooldownTable, len(raw))
	for cmd, secs := range raw {
		if secs <= 0 {
			continue
		}
		t[strings.ToLower(strings.TrimSpace(cmd))] = int(math.Ceil(secs))
	}
	return t, nil
}

// LoadSettings overlays the file on the defaults, so missing keys keep their
// default value.
func (s *Store) LoadSettings() (domain.Settings, error) {
	settings := domain.DefaultSettings()
	_, err := s.readKind(domain.ConfigSettings, &settings)
	if err != nil {
		return domain.DefaultSettings(), err
	}
	return settings, nil
}

func (s *Store) SaveSettings(settings domain.Settings) error {
	return s.write(domain.ConfigSettings, settings)
}

// LoadResponses accepts {template, description, enabled} objects and legacy
// plain strings. enabled defaults to true.
func (s *Store) LoadResponses() (map[string]domain.Response, error) {
	var raw map[string]json.RawMessage
	if _, err := s.readKind(domain.ConfigResponses, &raw); err != nil {
		return map[string]domain.Response{}, err
	}
	out := make(map[string]domain.Response, len(raw))
	for key, body := range raw {
		var plain string
		if err := json.Unmarshal(body, &plain); err == nil {
			out[key] = domain.Response{Template: plain, Enabled: true}
			continue
		}
		var rec struct {
			Template    string `json:"template"`
			Description string `json:"description"`
			Enabled     *bool  `json:"enabled"`
		}
		if err := json.Unmarshal(body, &rec); err != nil {
			s.logger.Warn("jsonstore: bad response entry", zap.String("key", key), zap.Error(err))
			continue
		}
		out[key] = domain.Response{
			Template:    rec.Template,
			Description: rec.Description,
			Enabled:     rec.Enabled == nil || *rec.Enabled,
		}
	}
	return out, nil
}

// LoadTimers applies interval 15 and lines 2 when they are missing.
func (s *Store) LoadTimers() ([]domain.Timer, error) {
	var raw []struct {
		Name     string `json:"name"`
		Message  string `json:"message"`
		Interval *int   `json:"interval"`
		Lines    *int   `json:"lines"`
	}
	if _, err := s.readKind(domain.ConfigTimers, &raw); err != nil {
		return nil, err
	}
	out := make([]domain.Timer, 0, len(raw))
	for _, r := range raw {
		t := domain.Timer{Name: r.Name, Message: r.Message, Interval: 15, Lines: 2}
		if r.Interval != nil {
			t.Interval = *r.Interval
		}
		if r.Lines != nil {
			t.Lines = *r.Lines
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) LoadGameAliases() (map[string]string, error) {
	m := map[string]string{}
	_, err := s.readKind(domain.ConfigGameAliases, &m)
	return m, err
}

// LoadLegacyCounts reads data/counts.json from before counters moved to sqlite.
func (s *Store) LoadLegacyCounts() (map[string]int64, error) {
	data, err := s.read(countsFile)
	if err != nil || data == nil {
		return nil, err
	}
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("jsonstore: decode %s: %w", countsFile, err)
	}
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		out[k] = int64(v)
	}
	return out, nil
}
