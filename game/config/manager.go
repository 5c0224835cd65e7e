package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wricardo/mafia-game/game/engine"
	"github.com/wricardo/mafia-game/game/service"
)

var (
	ErrRulesNotFound = errors.New("rules preset not found")
	ErrInvalidRules  = errors.New("invalid rules preset")
)

// Manager handles rules preset loading and caching
type Manager struct {
	configDir    string
	defaultRules *engine.Rules
	presets      map[string]*engine.Rules
	mu           sync.RWMutex
}

// NewManager creates a new rules manager over configDir
func NewManager(configDir string) (*Manager, error) {
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}

	m := &Manager{
		configDir: configDir,
		presets:   make(map[string]*engine.Rules),
	}
	m.loadDefaultRules()
	return m, nil
}

// LoadRules loads a preset by id (file name without .json). The returned
// rules are shared; callers that mutate must Clone.
func (m *Manager) LoadRules(name string) (*engine.Rules, error) {
	name = strings.TrimSuffix(name, ".json")
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, ErrRulesNotFound
	}

	m.mu.RLock()
	if rules, exists := m.presets[name]; exists {
		m.mu.RUnlock()
		return rules, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if rules, exists := m.presets[name]; exists {
		return rules, nil
	}

	data, err := os.ReadFile(filepath.Join(m.configDir, name+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrRulesNotFound
		}
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	rules, err := engine.ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}

	m.presets[name] = rules
	return rules, nil
}

// ListRules returns information about all valid presets
func (m *Manager) ListRules() ([]*service.RulesInfo, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var presets []*service.RulesInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")
		rules, err := m.LoadRules(id)
		if err != nil {
			// Skip invalid presets
			continue
		}

		presets = append(presets, &service.RulesInfo{
			Filename:    entry.Name(),
			RulesID:     id,
			Name:        rules.Name,
			Description: rules.Description,
			MinPlayers:  rules.MinPlayers,
			Durations:   rules.Durations,
		})
	}

	sort.Slice(presets, func(i, j int) bool { return presets[i].RulesID < presets[j].RulesID })
	return presets, nil
}

// GetDefault returns the default preset
func (m *Manager) GetDefault() *engine.Rules {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultRules
}

// SetDefault sets the default preset by id
func (m *Manager) SetDefault(name string) error {
	rules, err := m.LoadRules(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultRules = rules
	return nil
}

// RefreshCache drops every cached preset and reloads the default
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	m.presets = make(map[string]*engine.Rules)
	m.mu.Unlock()

	m.loadDefaultRules()
}

// SaveRules validates and writes a preset to disk
func (m *Manager) SaveRules(name string, rules *engine.Rules) error {
	if err := engine.ValidateRules(rules); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	name = strings.TrimSuffix(name, ".json")
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: bad preset id %q", ErrInvalidRules, name)
	}

	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.configDir, name+".json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write rules file: %w", err)
	}

	m.mu.Lock()
	m.presets[name] = rules.Clone()
	m.mu.Unlock()
	return nil
}

// loadDefaultRules prefers classic.json, then the first valid preset, then
// the built-in defaults
func (m *Manager) loadDefaultRules() {
	rules, err := m.LoadRules("classic")
	if err != nil {
		rules = engine.DefaultRules()
		if presets, listErr := m.ListRules(); listErr == nil && len(presets) > 0 {
			if first, err := m.LoadRules(presets[0].RulesID); err == nil {
				rules = first
			}
		}
	}

	m.mu.Lock()
	m.defaultRules = rules
	m.mu.Unlock()
}
