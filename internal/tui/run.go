package tui

import (
	"fmt"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"crawlwatch/internal/api"
	"crawlwatch/internal/livesync"
)

// RunConfig holds everything needed to build a dashboard
type RunConfig struct {
	BackendURL      string
	RefreshSchedule string
	ReconnectDelay  time.Duration
	RequestTimeout  time.Duration
	Location        *time.Location

	// History is optional; when set the Analytics tab shows a records trend
	History HistorySource

	ExportDir     string
	ExportOptions api.ExportOptions

	// PreferencesPath is where tab, filters and sidebar state persist.
	// Empty disables persistence.
	PreferencesPath string
	// LogPath receives log output while the alt screen is active
	LogPath string
}

// NewDashboard builds a model wired to its own live client. The caller owns
// the returned client and must Close it when the view goes away.
func NewDashboard(cfg *RunConfig, renderer *lipgloss.Renderer) (Model, *LiveClient, error) {
	client, err := api.NewClient(cfg.BackendURL, api.WithTimeout(cfg.RequestTimeout))
	if err != nil {
		return Model{}, nil, err
	}

	schedule := cfg.RefreshSchedule
	if schedule == "" {
		schedule = livesync.DefaultRefreshSchedule
	}
	ticker, err := livesync.NewCronTicker(schedule)
	if err != nil {
		return Model{}, nil, err
	}

	live, err := NewLiveClient(cfg.BackendURL, livesync.Options{
		Ticker:         ticker,
		ReconnectDelay: cfg.ReconnectDelay,
	})
	if err != nil {
		return Model{}, nil, err
	}

	var prefs *Preferences
	if cfg.PreferencesPath != "" {
		prefs = LoadPreferences(cfg.PreferencesPath)
	}

	reconnect := cfg.ReconnectDelay
	if reconnect <= 0 {
		reconnect = livesync.DefaultReconnectDelay
	}

	model := NewModel(ModelConfig{
		Backend:        client,
		Live:           live,
		History:        cfg.History,
		BackendURL:     client.BaseURL(),
		RefreshSpec:    ticker.Spec(),
		ReconnectDelay: reconnect,
		RequestTimeout: cfg.RequestTimeout,
		Location:       cfg.Location,
		Renderer:       renderer,
		ExportDir:      cfg.ExportDir,
		ExportOptions:  cfg.ExportOptions,
		Preferences:    prefs,
	})
	return model, live, nil
}

// Run starts the local dashboard and blocks until the user quits
func Run(cfg *RunConfig) error {
	if cfg.LogPath != "" {
		f, err := tea.LogToFile(cfg.LogPath, "")
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
	}

	model, live, err := NewDashboard(cfg, nil)
	if err != nil {
		return err
	}
	defer live.Close()

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	if m, ok := finalModel.(Model); ok && cfg.PreferencesPath != "" {
		prefs := m.Preferences()
		if err := prefs.Save(cfg.PreferencesPath); err != nil {
			log.Printf("[TUI] Failed to save preferences: %v", err)
		}
	}

	return nil
}
