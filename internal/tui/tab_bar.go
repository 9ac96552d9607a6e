package tui

import (
	"fmt"
	"strings"
)

// Tab identifies one dashboard page
type Tab int

const (
	TabDashboard Tab = iota
	TabData
	TabAccounts
	TabAnalytics
	TabKeywords
)

var tabLabels = []string{"Dashboard", "Data", "Accounts", "Analytics", "Keywords"}

func (t Tab) String() string {
	if t < 0 || int(t) >= len(tabLabels) {
		return "unknown"
	}
	return tabLabels[t]
}

// ParseTab resolves a tab by (case-insensitive) name, defaulting to the
// dashboard
func ParseTab(name string) Tab {
	for i, label := range tabLabels {
		if strings.EqualFold(label, name) {
			return Tab(i)
		}
	}
	return TabDashboard
}

// TabInfo is one entry of the tab bar
type TabInfo struct {
	Label string
	// HasUnread marks a tab whose data changed while it was not shown
	HasUnread bool
}

// TabBarModel tracks which page is shown and which changed in the background
type TabBarModel struct {
	Tabs      []TabInfo
	ActiveIdx int
	Width     int
	Styles    Styles
}

// NewTabBarModel creates a tab bar with every dashboard page
func NewTabBarModel(styles Styles) TabBarModel {
	tabs := make([]TabInfo, len(tabLabels))
	for i, label := range tabLabels {
		tabs[i] = TabInfo{Label: label}
	}
	return TabBarModel{
		Tabs:   tabs,
		Styles: styles,
	}
}

// Active returns the selected tab
func (t *TabBarModel) Active() Tab {
	return Tab(t.ActiveIdx)
}

// Select switches to tab and clears its unread marker
func (t *TabBarModel) Select(tab Tab) {
	if int(tab) < 0 || int(tab) >= len(t.Tabs) {
		return
	}
	t.ActiveIdx = int(tab)
	t.Tabs[t.ActiveIdx].HasUnread = false
}

// Next moves one tab right, wrapping around
func (t *TabBarModel) Next() {
	t.Select(Tab((t.ActiveIdx + 1) % len(t.Tabs)))
}

// Prev moves one tab left, wrapping around
func (t *TabBarModel) Prev() {
	t.Select(Tab((t.ActiveIdx + len(t.Tabs) - 1) % len(t.Tabs)))
}

// MarkUnread flags tab as changed unless it is the one being shown
func (t *TabBarModel) MarkUnread(tab Tab) {
	if int(tab) == t.ActiveIdx || int(tab) < 0 || int(tab) >= len(t.Tabs) {
		return
	}
	t.Tabs[tab].HasUnread = true
}

// View renders "1 Dashboard  2 Data ..." with the shown tab highlighted
// and changed tabs starred
func (t TabBarModel) View() string {
	labels := make([]string, 0, len(t.Tabs))
	for i, tab := range t.Tabs {
		label, style := fmt.Sprintf("%d %s", i+1, tab.Label), t.Styles.TabInactive
		switch {
		case i == t.ActiveIdx:
			style = t.Styles.TabActive
		case tab.HasUnread:
			label, style = "* "+label, t.Styles.TabUnread
		}
		labels = append(labels, style.Render(label))
	}
	if len(labels) == 0 {
		return ""
	}
	return t.Styles.TabBar.Width(t.Width).Render(strings.Join(labels, " "))
}
