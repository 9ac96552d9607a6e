package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"crawlwatch/internal/api"
	"crawlwatch/internal/livesync"
	"crawlwatch/internal/version"
)

// SidebarTab is the sidebar section on screen
type SidebarTab int

const (
	SidebarTabActivity SidebarTab = iota
	SidebarTabConnection
	SidebarTabAccounts
	sidebarTabCount
)

var sidebarTabNames = [sidebarTabCount]string{"Activity", "Link", "Accounts"}

// SidebarModel is the toggleable panel on the right of the dashboard. It
// shows recent activity, push channel health and the account breakdown.
type SidebarModel struct {
	ActiveTab SidebarTab
	Width     int
	Height    int
	Visible   bool
	Styles    Styles
	Location  *time.Location

	Conn           livesync.ConnectionState
	Healthy        bool
	Reconnects     int
	LastError      string
	BackendURL     string
	RefreshSpec    string
	ReconnectDelay time.Duration
	LastTrigger    livesync.Source
	LastRefresh    time.Time
	PushCount      int

	Accounts []api.Account
	Activity []ActivityInfo
}

func NewSidebarModel(styles Styles) SidebarModel {
	return SidebarModel{ActiveTab: SidebarTabActivity, Width: 36, Styles: styles}
}

func (s *SidebarModel) CycleTab() {
	s.ActiveTab = (s.ActiveTab + 1) % sidebarTabCount
}

// TotalSidebarWidth includes the left border and padding
func (s SidebarModel) TotalSidebarWidth() int {
	if !s.Visible {
		return 0
	}
	return s.Width + 3
}

func (s SidebarModel) View() string {
	if !s.Visible {
		return ""
	}

	header := make([]string, 0, sidebarTabCount)
	for i, name := range sidebarTabNames {
		style := s.Styles.SidebarTabInactive
		if SidebarTab(i) == s.ActiveTab {
			style = s.Styles.SidebarTabActive
		}
		header = append(header, style.Render(name))
	}

	var body string
	switch s.ActiveTab {
	case SidebarTabConnection:
		body = s.linkSection()
	case SidebarTabAccounts:
		body = s.accountsSection()
	default:
		body = s.activitySection()
	}

	return s.Styles.SidebarBorder.
		Width(s.Width).
		Height(s.Height).
		Render(strings.Join(header, " | ") + "\n\n" + body)
}

// clip shortens text to fit n cells, marking the cut with "..."
func clip(text string, n int) string {
	if n < 4 {
		n = 4
	}
	if len(text) <= n {
		return text
	}
	return text[:n-3] + "..."
}

func (s SidebarModel) title(text string) string {
	return s.Styles.SidebarTitle.Render(text) + "\n"
}

func (s SidebarModel) activitySection() string {
	out := s.title("Recent Activity")
	if len(s.Activity) == 0 {
		return out + s.Styles.Muted.Render("Nothing yet")
	}

	kindStyle := map[string]lipgloss.Style{
		"push":   s.Styles.ActivityPush,
		"error":  s.Styles.AccountError,
		"action": s.Styles.ActivityAction,
	}
	width := max(s.Width-10, 10)

	var b strings.Builder
	b.WriteString(out)
	for i := len(s.Activity) - 1; i >= 0; i-- {
		a := s.Activity[i]
		at := a.At
		if s.Location != nil {
			at = at.In(s.Location)
		}
		style, ok := kindStyle[a.Kind]
		if !ok {
			style = s.Styles.Muted
		}
		summary := clip(strings.ReplaceAll(a.Summary, "\n", " "), width)
		fmt.Fprintf(&b, "%s %s\n", s.Styles.Muted.Render(at.Format("15:04:05")), style.Render(summary))
	}
	return b.String()
}

func (s SidebarModel) linkSection() string {
	var b strings.Builder
	b.WriteString(s.title("Push Channel"))

	switch {
	case s.Conn == livesync.Open && s.Healthy:
		b.WriteString(s.Styles.StatusConnected.Render("* Open"))
	case s.Conn == livesync.Connecting:
		b.WriteString(s.Styles.StatusReconnecting.Render("~ Connecting"))
	default:
		b.WriteString(s.Styles.StatusDisconnected.Render("x Disconnected (" + s.Conn.String() + ")"))
	}
	b.WriteString("\n")

	if s.BackendURL != "" {
		fmt.Fprintf(&b, "URL:   %s\n", clip(s.BackendURL, s.Width-6))
	}
	if s.Reconnects > 0 {
		fmt.Fprintf(&b, "Drops: %d\n", s.Reconnects)
	}
	if s.ReconnectDelay > 0 {
		fmt.Fprintf(&b, "Retry: every %s\n", formatDuration(s.ReconnectDelay))
	}
	if s.LastError != "" {
		b.WriteString(s.Styles.AccountError.Render(clip(s.LastError, s.Width-2)) + "\n")
	}

	b.WriteString("\n" + s.title("Refresh"))
	if s.RefreshSpec != "" {
		fmt.Fprintf(&b, "Poll:  %s\n", s.RefreshSpec)
	}
	fmt.Fprintf(&b, "Pushes: %s\n", humanize.Comma(int64(s.PushCount)))
	if !s.LastRefresh.IsZero() {
		fmt.Fprintf(&b, "Last:  %s (%s)\n", humanize.Time(s.LastRefresh), s.LastTrigger)
	}

	b.WriteString("\n" + s.title("Client"))
	fmt.Fprintf(&b, "crawlwatch %s\n", version.Full())
	return b.String()
}

func (s SidebarModel) accountsSection() string {
	out := s.title("Accounts")
	if len(s.Accounts) == 0 {
		return out + s.Styles.Muted.Render("No accounts loaded")
	}

	byStatus := make(map[string]int)
	for _, a := range s.Accounts {
		byStatus[a.Status]++
	}
	active := float64(byStatus[api.AccountActive]) / float64(len(s.Accounts)) * 100

	var b strings.Builder
	b.WriteString(out)
	b.WriteString(renderRatioBar(s.Styles, active, s.Width-8) + "\n\n")
	for _, status := range []string{api.AccountActive, api.AccountInactive, api.AccountError, api.AccountDisabled} {
		fmt.Fprintf(&b, "%s %d\n", s.Styles.accountStyle(status).Render(fmt.Sprintf("%-9s", status)), byStatus[status])
	}
	return b.String()
}

// renderRatioBar draws [========--------] 42%, coloured by how full it is
func renderRatioBar(styles Styles, percent float64, width int) string {
	width = max(width, 4)
	percent = min(max(percent, 0), 100)
	filled := min(int(percent/100*float64(width)), width)

	style := styles.RatioLow
	if percent > 80 {
		style = styles.RatioHigh
	} else if percent > 50 {
		style = styles.RatioMedium
	}
	bar := "[" + strings.Repeat("=", filled) + strings.Repeat("-", width-filled) + "]"
	return style.Render(bar) + fmt.Sprintf(" %d%%", int(percent))
}

// formatDuration prints the two largest units: 3s, 1.5s, 2h5m, 1d2h
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		if d%time.Second != 0 {
			return fmt.Sprintf("%.1fs", d.Seconds())
		}
		return fmt.Sprintf("%ds", int(d/time.Second))
	}

	units := []struct {
		size   time.Duration
		suffix string
	}{
		{24 * time.Hour, "d"},
		{time.Hour, "h"},
		{time.Minute, "m"},
	}
	for i, u := range units {
		if d < u.size {
			continue
		}
		out := fmt.Sprintf("%d%s", d/u.size, u.suffix)
		if i+1 < len(units) {
			next := units[i+1]
			if rest := (d % u.size) / next.size; rest > 0 {
				out += fmt.Sprintf("%d%s", rest, next.suffix)
			}
		}
		return out
	}
	return d.String()
}
