package tui

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"crawlwatch/internal/api"
)

// PreferencesFile is the file name of saved dashboard preferences inside the
// data directory
const PreferencesFile = "tui.json"

// Preferences holds dashboard settings restored between runs
type Preferences struct {
	Tab     string      `json:"tab,omitempty"`
	Filters api.Filters `json:"filters"`
	Sidebar bool        `json:"sidebar,omitempty"`
}

// LoadPreferences reads saved preferences. A missing or unreadable file yields
// defaults.
func LoadPreferences(path string) *Preferences {
	p := &Preferences{Tab: TabDashboard.String()}
	data, err := os.ReadFile(path)
	if err != nil {
		return p
	}
	json.Unmarshal(data, p) // ignore parse errors, use defaults
	return p
}

// Save writes the preferences to disk
func (p *Preferences) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
