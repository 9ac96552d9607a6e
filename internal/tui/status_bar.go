package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"crawlwatch/internal/livesync"
)

// StatusBarModel manages the bottom status bar
type StatusBarModel struct {
	Conn        livesync.ConnectionState
	Healthy     bool
	Reconnects  int
	BackendURL  string
	RefreshSpec string
	CrawlStatus string
	LastRefresh time.Time
	Loading     bool
	Spinner     string
	SSHUser     string // set for SSH sessions
	Width       int
	Styles      Styles
}

// NewStatusBarModel creates a new status bar
func NewStatusBarModel(styles Styles) StatusBarModel {
	return StatusBarModel{
		Conn:   livesync.Closed,
		Styles: styles,
	}
}

// ConnLabel is the plain-text connection indicator
func (s StatusBarModel) ConnLabel() string {
	switch {
	case s.Conn == livesync.Open && s.Healthy:
		return "live"
	case s.Conn == livesync.Connecting:
		return "connecting"
	default:
		return "disconnected"
	}
}

// View renders the status bar
func (s StatusBarModel) View() string {
	var parts []string

	switch s.ConnLabel() {
	case "live":
		parts = append(parts, s.Styles.StatusConnected.Render("* live"))
	case "connecting":
		label := "~ connecting"
		if s.Reconnects > 0 {
			label = fmt.Sprintf("~ reconnecting (%d)", s.Reconnects)
		}
		parts = append(parts, s.Styles.StatusReconnecting.Render(label))
	default:
		parts = append(parts, s.Styles.StatusDisconnected.Render("x disconnected"))
	}

	if s.BackendURL != "" {
		url := strings.TrimPrefix(s.BackendURL, "http://")
		url = strings.TrimPrefix(url, "https://")
		if len(url) > 25 {
			url = url[:22] + "..."
		}
		parts = append(parts, s.Styles.Muted.Render(url))
	}

	switch s.CrawlStatus {
	case "running":
		parts = append(parts, s.Styles.Running.Render("crawler running"))
	case "":
	default:
		parts = append(parts, s.Styles.Stopped.Render("crawler "+s.CrawlStatus))
	}

	if s.RefreshSpec != "" {
		parts = append(parts, s.Styles.Muted.Render("poll "+s.RefreshSpec))
	}

	if s.Loading {
		parts = append(parts, s.Styles.Accent.Render(s.Spinner+" loading"))
	} else if !s.LastRefresh.IsZero() {
		parts = append(parts, s.Styles.Muted.Render("updated "+humanize.Time(s.LastRefresh)))
	}

	if s.SSHUser != "" {
		parts = append(parts, s.Styles.Accent.Render(fmt.Sprintf("SSH: %s", s.SSHUser)))
	}

	content := strings.Join(parts, "  |  ")
	return s.Styles.StatusBar.Width(s.Width).Render(content)
}
