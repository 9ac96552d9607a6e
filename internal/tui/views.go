package tui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"crawlwatch/internal/api"
	"crawlwatch/pkg/protocol"
)

// dashboardRecordLimit is how many newest records the dashboard shows
const dashboardRecordLimit = 20

// formatTimestamp renders a backend timestamp in loc, or "-" when unknown
func formatTimestamp(ts protocol.Timestamp, loc *time.Location) string {
	if ts.IsZero() {
		return "-"
	}
	t := ts.Time
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("2006-01-02 15:04:05")
}

// formatKeywords renders a keyword map as "kw:n, kw:n" sorted by keyword
func formatKeywords(kw map[string]int) string {
	if len(kw) == 0 {
		return ""
	}
	keys := make([]string, 0, len(kw))
	for k := range kw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s:%d", k, kw[k])
	}
	return strings.Join(parts, ", ")
}

func recordColumns(withKeywords bool) []table.Column {
	cols := []table.Column{
		{Title: "Account", Width: 10},
		{Title: "Seq", Width: 4},
		{Title: "IP", Width: 15},
		{Title: "Type", Width: 6},
		{Title: "Name", Width: 12},
		{Title: "Lvl", Width: 4},
		{Title: "Guild", Width: 8},
		{Title: "Skill", Width: 8},
		{Title: "Count", Width: 9},
		{Title: "Accum", Width: 6},
	}
	if withKeywords {
		cols = append(cols, table.Column{Title: "Keywords", Width: 16})
	}
	return append(cols,
		table.Column{Title: "Status", Width: 6},
		table.Column{Title: "Crawled", Width: 19},
	)
}

func recordRows(records []api.Record, withKeywords bool, limit int, loc *time.Location) []table.Row {
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	rows := make([]table.Row, 0, len(records))
	for _, r := range records {
		row := table.Row{
			r.AccountUsername,
			strconv.Itoa(r.SequenceNumber),
			r.IP,
			r.Type,
			r.Name,
			strconv.Itoa(r.Level),
			r.Guild,
			r.Skill,
			fmt.Sprintf("%d/%d", r.CountCurrent, r.CountTotal),
			strconv.Itoa(r.AccumulatedCount),
		}
		if withKeywords {
			row = append(row, formatKeywords(r.KeywordsDetected))
		}
		row = append(row, r.Status, formatTimestamp(r.CrawlTimestamp, loc))
		rows = append(rows, row)
	}
	return rows
}

func accountColumns() []table.Column {
	return []table.Column{
		{Title: "Username", Width: 16},
		{Title: "Status", Width: 9},
		{Title: "Last crawl", Width: 19},
		{Title: "Added", Width: 19},
	}
}

func accountRows(accounts []api.Account, loc *time.Location) []table.Row {
	rows := make([]table.Row, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, table.Row{
			a.Username,
			a.Status,
			formatTimestamp(a.LastCrawl, loc),
			formatTimestamp(a.CreatedAt, loc),
		})
	}
	return rows
}

func performanceColumns() []table.Column {
	return []table.Column{
		{Title: "Account", Width: 12},
		{Title: "Records", Width: 8},
		{Title: "Accumulated", Width: 11},
		{Title: "Current", Width: 8},
		{Title: "Avg", Width: 6},
		{Title: "Keywords", Width: 8},
		{Title: "Last crawl", Width: 19},
	}
}

func performanceRows(perf []api.AccountPerformance, loc *time.Location) []table.Row {
	rows := make([]table.Row, 0, len(perf))
	for _, p := range perf {
		rows = append(rows, table.Row{
			p.Username,
			humanize.Comma(int64(p.TotalRecords)),
			humanize.Comma(int64(p.TotalAccumulated)),
			humanize.Comma(int64(p.TotalCurrent)),
			strconv.FormatFloat(p.AvgCurrent, 'f', 1, 64),
			strconv.Itoa(p.KeywordsDetected),
			formatTimestamp(p.LastCrawl, loc),
		})
	}
	return rows
}

func keywordColumns() []table.Column {
	return []table.Column{
		{Title: "Keyword", Width: 12},
		{Title: "Total", Width: 7},
		{Title: "Accounts", Width: 8},
		{Title: "Affected", Width: 24},
		{Title: "Last seen", Width: 19},
	}
}

func keywordRows(stats []api.KeywordStat, loc *time.Location) []table.Row {
	rows := make([]table.Row, 0, len(stats))
	for _, k := range stats {
		affected := k.AccountsAffected
		suffix := ""
		if len(affected) > 3 {
			affected = affected[:3]
			suffix = ", ..."
		}
		rows = append(rows, table.Row{
			k.Keyword,
			humanize.Comma(int64(k.TotalCount)),
			strconv.Itoa(len(k.AccountsAffected)),
			strings.Join(affected, ", ") + suffix,
			formatTimestamp(k.LastSeen, loc),
		})
	}
	return rows
}

// newTable builds a bubbles table with the shared styles
func newTable(styles Styles, cols []table.Column) table.Model {
	t := table.New(
		table.WithColumns(cols),
		table.WithHeight(10),
	)
	t.SetStyles(styles.Table)
	return t
}

// card renders one dashboard counter
func card(styles Styles, label, value string, valueStyle lipgloss.Style) string {
	return styles.Card.Render(styles.CardLabel.Render(label) + "\n" + valueStyle.Render(value))
}

// crawlLabel is the human label of a crawl status
func crawlLabel(status *api.Status) string {
	if status == nil {
		return "unknown"
	}
	if status.Running() {
		return "running"
	}
	if status.CrawlStatus == "" {
		return api.CrawlStopped
	}
	return status.CrawlStatus
}

// controlLabel is the text of the start/stop control
func controlLabel(status *api.Status) string {
	if status != nil && status.Running() {
		return "Stop crawler"
	}
	return "Start crawler"
}

// sparkline renders values as a row of block characters scaled to the
// range of the data
func sparkline(values []int, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}
	blocks := []rune("▁▂▃▄▅▆▇█")
	lo, hi := values[0], values[0]
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	out := make([]rune, len(values))
	for i, v := range values {
		idx := 0
		if hi > lo {
			idx = (v - lo) * (len(blocks) - 1) / (hi - lo)
		}
		out[i] = blocks[idx]
	}
	return string(out)
}

func (m Model) renderDashboard() string {
	st := m.state.Status
	var total, active, records string = "-", "-", "-"
	if st != nil {
		total = humanize.Comma(int64(st.TotalAccounts))
		active = humanize.Comma(int64(st.ActiveAccounts))
		records = humanize.Comma(int64(st.TotalRecords))
	}
	crawlStyle := m.styles.Stopped
	if st != nil && st.Running() {
		crawlStyle = m.styles.Running
	}

	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		card(m.styles, "Total accounts", total, m.styles.CardValue),
		card(m.styles, "Active accounts", active, m.styles.CardValue),
		card(m.styles, "Total records", records, m.styles.CardValue),
		card(m.styles, "Crawler", crawlLabel(st), crawlStyle),
	)

	var sb strings.Builder
	sb.WriteString(cards)
	sb.WriteString("\n")
	sb.WriteString(m.styles.Muted.Render(fmt.Sprintf("[s] %s  [r] refresh", controlLabel(st))))
	sb.WriteString("\n")
	sb.WriteString(m.styles.Section.Render(fmt.Sprintf("Latest records (%d newest)", dashboardRecordLimit)))
	sb.WriteString("\n")
	if len(m.state.Records) == 0 {
		sb.WriteString(m.styles.Muted.Render("No records yet"))
	} else {
		sb.WriteString(m.latestTable.View())
	}
	return sb.String()
}

func (m Model) renderData() string {
	var sb strings.Builder
	if m.filterForm.Active() {
		sb.WriteString(m.filterForm.View())
		sb.WriteString("\n")
	} else {
		active := m.state.Filters.Values()
		desc := "none"
		if len(active) > 0 {
			desc = active.Encode()
		}
		sb.WriteString(m.styles.Muted.Render("Filters: " + desc))
		sb.WriteString("\n")
		sb.WriteString(m.styles.Help.Render("[f] edit filters  [c] clear  [e] export CSV"))
		sb.WriteString("\n")
	}
	sb.WriteString(m.styles.Section.Render(fmt.Sprintf("Results (%s records)", humanize.Comma(int64(len(m.state.Records))))))
	sb.WriteString("\n")
	sb.WriteString(m.recordsTable.View())
	return sb.String()
}

func (m Model) renderAccounts() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Help.Render("[E] enable all  [D] disable all  [a] add  [t] toggle  [x] test  [d] delete"))
	sb.WriteString("\n")
	if m.accountForm.Active() {
		sb.WriteString(m.accountForm.View())
		sb.WriteString("\n")
	}
	if m.confirmDelete != "" {
		sb.WriteString(m.styles.ErrorBanner.Render(fmt.Sprintf("Delete account %s? [y/N]", m.confirmDelete)))
		sb.WriteString("\n")
	}
	sb.WriteString(m.styles.Section.Render(fmt.Sprintf("Accounts (%d)", len(m.state.Accounts))))
	sb.WriteString("\n")
	sb.WriteString(m.accountsTable.View())
	return sb.String()
}

func (m Model) renderAnalytics() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Section.Render("Data summary"))
	sb.WriteString("\n")
	if s := m.state.Summary; s != nil {
		sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			card(m.styles, "Total records", humanize.Comma(int64(s.TotalRecords)), m.styles.CardValue),
			card(m.styles, "Last 24h", humanize.Comma(int64(s.RecentRecords24h)), m.styles.CardValue),
			card(m.styles, "Accumulated", humanize.Comma(int64(s.AccumulationStats.TotalAccumulated)), m.styles.CardValue),
			card(m.styles, "Avg accumulated", strconv.FormatFloat(s.AccumulationStats.AvgAccumulated, 'f', 1, 64), m.styles.CardValue),
		))
	} else {
		sb.WriteString(m.styles.Muted.Render("No summary yet"))
	}
	sb.WriteString("\n")

	if len(m.state.Trend) > 0 {
		sb.WriteString(m.styles.Section.Render("Records trend (local history)"))
		sb.WriteString("\n")
		first, last := m.state.Trend[0], m.state.Trend[len(m.state.Trend)-1]
		sb.WriteString(m.styles.Accent.Render(sparkline(m.state.Trend, 60)))
		sb.WriteString(m.styles.Muted.Render(fmt.Sprintf("  %s → %s", humanize.Comma(int64(first)), humanize.Comma(int64(last)))))
		sb.WriteString("\n")
	}

	sb.WriteString(m.styles.Section.Render("Account performance"))
	sb.WriteString("\n")
	sb.WriteString(m.performanceTable.View())
	return sb.String()
}

func (m Model) renderKeywords() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Section.Render(fmt.Sprintf("Keyword statistics (%d)", len(m.state.Keywords))))
	sb.WriteString("\n")
	if len(m.state.Keywords) == 0 {
		sb.WriteString(m.styles.Muted.Render("No keywords detected"))
		return sb.String()
	}
	sb.WriteString(m.keywordsTable.View())
	return sb.String()
}
