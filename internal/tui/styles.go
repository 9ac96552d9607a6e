package tui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// palette, in 256-colour terminal codes
const (
	colorText      = lipgloss.Color("252")
	colorBright    = lipgloss.Color("15")
	colorDim       = lipgloss.Color("245")
	colorFaint     = lipgloss.Color("241")
	colorRule      = lipgloss.Color("238")
	colorBar       = lipgloss.Color("235")
	colorHighlight = lipgloss.Color("62")
	colorAccent    = lipgloss.Color("213")
	colorUnread    = lipgloss.Color("212")
	colorGood      = lipgloss.Color("76")
	colorWarn      = lipgloss.Color("214")
	colorBad       = lipgloss.Color("196")
	colorPush      = lipgloss.Color("81")
	colorErrorBg   = lipgloss.Color("124")
	colorNoticeBg  = lipgloss.Color("114")
	colorInk       = lipgloss.Color("16")
)

// Styles holds every style the dashboard renders with. Build one per
// renderer so SSH sessions get colours for the remote terminal.
type Styles struct {
	App lipgloss.Style

	TabActive   lipgloss.Style
	TabInactive lipgloss.Style
	TabUnread   lipgloss.Style
	TabBar      lipgloss.Style

	Card      lipgloss.Style
	CardLabel lipgloss.Style
	CardValue lipgloss.Style
	Section   lipgloss.Style

	ErrorBanner  lipgloss.Style
	NoticeBanner lipgloss.Style

	Running        lipgloss.Style
	Stopped        lipgloss.Style
	AccountActive  lipgloss.Style
	AccountError   lipgloss.Style
	AccountOff     lipgloss.Style
	KeywordHit     lipgloss.Style
	ActivityPush   lipgloss.Style
	ActivityAction lipgloss.Style

	FormLabel   lipgloss.Style
	FormFocused lipgloss.Style
	FormBox     lipgloss.Style

	SidebarBorder      lipgloss.Style
	SidebarTitle       lipgloss.Style
	SidebarContent     lipgloss.Style
	SidebarTabActive   lipgloss.Style
	SidebarTabInactive lipgloss.Style

	StatusBar          lipgloss.Style
	StatusConnected    lipgloss.Style
	StatusDisconnected lipgloss.Style
	StatusReconnecting lipgloss.Style

	// RatioLow is under 50%, RatioHigh over 80%
	RatioLow    lipgloss.Style
	RatioMedium lipgloss.Style
	RatioHigh   lipgloss.Style

	Table table.Styles

	Muted  lipgloss.Style
	Bold   lipgloss.Style
	Accent lipgloss.Style
	Help   lipgloss.Style
}

// DefaultStyles renders for the local terminal
func DefaultStyles() Styles {
	return NewStyles(lipgloss.DefaultRenderer())
}

// NewStyles builds the style set for r. Over SSH pass the renderer from
// wishbubbletea.MakeRenderer(sess).
func NewStyles(r *lipgloss.Renderer) Styles {
	fg := func(c lipgloss.Color) lipgloss.Style { return r.NewStyle().Foreground(c) }
	strong := func(c lipgloss.Color) lipgloss.Style { return fg(c).Bold(true) }
	selected := strong(colorBright).Background(colorHighlight)
	rule := lipgloss.NormalBorder()

	tableStyles := table.DefaultStyles()
	tableStyles.Header = strong(colorText).
		BorderStyle(rule).
		BorderBottom(true).
		BorderForeground(colorRule).
		Padding(0, 1)
	tableStyles.Cell = r.NewStyle().Padding(0, 1)
	tableStyles.Selected = selected

	return Styles{
		App: r.NewStyle(),

		TabActive:   selected.Padding(0, 2),
		TabInactive: fg(colorDim).Padding(0, 2),
		TabUnread:   strong(colorUnread).Underline(true).Padding(0, 2),
		TabBar:      r.NewStyle().BorderStyle(rule).BorderBottom(true).BorderForeground(colorRule),

		Card: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorRule).
			Padding(0, 2).
			MarginRight(1),
		CardLabel: fg(colorDim),
		CardValue: strong(colorBright),
		Section:   strong(colorAccent).MarginTop(1),

		ErrorBanner:  fg(colorBright).Background(colorErrorBg).Padding(0, 1),
		NoticeBanner: fg(colorInk).Background(colorNoticeBg).Padding(0, 1),

		Running:        strong(colorGood),
		Stopped:        strong(colorBad),
		AccountActive:  fg(colorGood),
		AccountError:   fg(colorBad),
		AccountOff:     fg(colorDim),
		KeywordHit:     strong(colorWarn),
		ActivityPush:   fg(colorPush),
		ActivityAction: fg(colorGood),

		FormLabel:   fg(colorDim).Width(14),
		FormFocused: strong(colorAccent).Width(14),
		FormBox:     r.NewStyle().Border(rule).BorderForeground(colorHighlight).Padding(0, 1),

		SidebarBorder:      r.NewStyle().BorderStyle(rule).BorderLeft(true).BorderForeground(colorRule).Padding(0, 1),
		SidebarTitle:       strong(colorAccent).MarginBottom(1),
		SidebarContent:     fg(colorText),
		SidebarTabActive:   strong(colorBright).Underline(true),
		SidebarTabInactive: fg(colorDim),

		StatusBar:          fg(colorText).Background(colorBar).Padding(0, 1),
		StatusConnected:    strong(colorGood),
		StatusDisconnected: strong(colorBad),
		StatusReconnecting: strong(colorWarn),

		RatioLow:    fg(colorBad),
		RatioMedium: fg(colorWarn),
		RatioHigh:   fg(colorGood),

		Table: tableStyles,

		Muted:  fg(colorDim),
		Bold:   r.NewStyle().Bold(true),
		Accent: fg(colorAccent),
		Help:   fg(colorFaint),
	}
}

// accountStyle picks the colour for an account status
func (s Styles) accountStyle(status string) lipgloss.Style {
	switch status {
	case "active":
		return s.AccountActive
	case "error":
		return s.AccountError
	default:
		return s.AccountOff
	}
}
