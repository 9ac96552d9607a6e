package tui

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"crawlwatch/internal/api"
	"crawlwatch/internal/history"
	"crawlwatch/internal/livesync"
)

const (
	actionStart      = "Start crawler"
	actionStop       = "Stop crawler"
	actionEnableAll  = "Enable all"
	actionDisableAll = "Disable all"
	actionToggle     = "Toggle account"
	actionAdd        = "Add account"
	actionDelete     = "Delete account"
	actionExport     = "Export"

	noticeTimeout = 4 * time.Second
	historyLimit  = 120
)

// ModelConfig holds the configuration for creating a new TUI model
type ModelConfig struct {
	Backend Backend
	// Live delivers refresh triggers. If nil, the model fetches once on Init
	// and then only on manual refresh.
	Live    LiveSource
	History HistorySource

	BackendURL     string
	RefreshSpec    string
	ReconnectDelay time.Duration
	RequestTimeout time.Duration

	// Location is the timezone for rendering timestamps. If nil, times render as-is.
	Location *time.Location
	// Renderer is the Lip Gloss renderer to use for styling. Over SSH, pass the
	// renderer from wishbubbletea.MakeRenderer so colors work correctly. If nil,
	// the default renderer (local terminal) is used.
	Renderer *lipgloss.Renderer

	ExportDir     string
	ExportOptions api.ExportOptions

	// Preferences restores the last tab, filters and sidebar visibility
	Preferences *Preferences

	Now func() time.Time
}

// ViewState is everything the dashboard shows. It is only mutated inside
// Update.
type ViewState struct {
	Records     []api.Record
	Status      *api.Status
	Accounts    []api.Account
	Keywords    []api.KeywordStat
	Summary     *api.Summary
	Performance []api.AccountPerformance
	Trend       []int

	Filters api.Filters

	// Errors holds the latest fetch failure per collection
	Errors map[api.Collection]error
	Banner string
	Notice string

	// Loading counts fetches in flight
	Loading int

	Conn        livesync.ConnectionState
	Healthy     bool
	LastRefresh time.Time
	LastTrigger livesync.Source
}

// Model is the root BubbleTea model
type Model struct {
	config  ModelConfig
	backend Backend
	live    LiveSource
	styles  Styles

	// Sub-models
	tabBar    TabBarModel
	sidebar   SidebarModel
	statusBar StatusBarModel
	spinner   spinner.Model

	filterForm  FormModel
	accountForm FormModel

	latestTable      table.Model
	recordsTable     table.Model
	accountsTable    table.Model
	performanceTable table.Model
	keywordsTable    table.Model

	state ViewState

	// confirmDelete holds the username awaiting a y/N answer
	confirmDelete string
	// bannerColl is the collection whose failure the banner shows, empty for
	// action failures
	bannerColl api.Collection
	noticeSeq  int

	width    int
	height   int
	quitting bool
}

// NewModel creates the root TUI model
func NewModel(config ModelConfig) Model {
	r := config.Renderer
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	styles := NewStyles(r)

	if config.Now == nil {
		config.Now = time.Now
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = api.DefaultTimeout
	}
	if config.ExportDir == "" {
		config.ExportDir = "."
	}

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = styles.Accent

	m := Model{
		config:           config,
		backend:          config.Backend,
		live:             config.Live,
		styles:           styles,
		tabBar:           NewTabBarModel(styles),
		sidebar:          NewSidebarModel(styles),
		statusBar:        NewStatusBarModel(styles),
		spinner:          sp,
		filterForm:       NewFilterForm(styles),
		accountForm:      NewAccountForm(styles),
		latestTable:      newTable(styles, recordColumns(false)),
		recordsTable:     newTable(styles, recordColumns(true)),
		accountsTable:    newTable(styles, accountColumns()),
		performanceTable: newTable(styles, performanceColumns()),
		keywordsTable:    newTable(styles, keywordColumns()),
		state: ViewState{
			Errors: make(map[api.Collection]error),
			Conn:   livesync.Closed,
		},
	}
	for _, t := range m.tables() {
		t.Focus()
	}

	m.sidebar.Location = config.Location
	m.sidebar.RefreshSpec = config.RefreshSpec
	m.sidebar.ReconnectDelay = config.ReconnectDelay
	m.statusBar.RefreshSpec = config.RefreshSpec
	if config.Live != nil {
		m.state.Conn = livesync.Connecting
		m.sidebar.Conn = livesync.Connecting
		m.statusBar.Conn = livesync.Connecting
	}
	m.SetBackendURL(config.BackendURL)

	if p := config.Preferences; p != nil {
		m.tabBar.Select(ParseTab(p.Tab))
		m.state.Filters = p.Filters
		m.filterForm.SetFilters(p.Filters)
		m.sidebar.Visible = p.Sidebar
	}

	return m
}

func (m *Model) tables() []*table.Model {
	return []*table.Model{
		&m.latestTable,
		&m.recordsTable,
		&m.accountsTable,
		&m.performanceTable,
		&m.keywordsTable,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	if m.live == nil {
		return tea.Batch(m.spinner.Tick, func() tea.Msg {
			return RefreshMsg{Trigger: livesync.Trigger{Source: livesync.SourceInitial, At: m.config.Now()}}
		})
	}
	return tea.Batch(
		m.live.StartCmd(),
		m.live.ListenCmd(),
		m.spinner.Tick,
	)
}

// State returns a copy of the view state
func (m Model) State() ViewState {
	return m.state
}

// ActiveTab returns the selected page
func (m Model) ActiveTab() Tab {
	return m.tabBar.Active()
}

// Preferences returns the settings worth restoring next time
func (m Model) Preferences() Preferences {
	return Preferences{
		Tab:     m.tabBar.Active().String(),
		Filters: m.state.Filters,
		Sidebar: m.sidebar.Visible,
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyMsg(msg))
		if m.quitting {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.statusBar.Spinner = m.spinner.View()
		cmds = append(cmds, cmd)

	// Live sync messages
	case RefreshMsg:
		cmds = append(cmds, m.handleRefresh(msg.Trigger))

	case ConnStateMsg:
		m.handleConnState(msg)

	case LiveStoppedMsg:
		if msg.Err != nil {
			log.Printf("[TUI] Live updates stopped: %v", msg.Err)
			m.showError("", "Live updates unavailable: "+msg.Err.Error())
		}

	// Collection responses
	case RecordsLoadedMsg:
		m.finishFetch(api.CollectionRecords, msg.Err)
		if msg.Err == nil {
			m.state.Records = msg.Records
			setRows(&m.latestTable, recordRows(msg.Records, false, dashboardRecordLimit, m.config.Location))
			setRows(&m.recordsTable, recordRows(msg.Records, true, 0, m.config.Location))
		}

	case StatusLoadedMsg:
		m.finishFetch(api.CollectionStatus, msg.Err)
		if msg.Err == nil {
			m.state.Status = msg.Status
			m.statusBar.CrawlStatus = crawlLabel(msg.Status)
		}

	case AccountsLoadedMsg:
		m.finishFetch(api.CollectionAccounts, msg.Err)
		if msg.Err == nil {
			m.state.Accounts = msg.Accounts
			m.sidebar.Accounts = msg.Accounts
			setRows(&m.accountsTable, accountRows(msg.Accounts, m.config.Location))
		}

	case KeywordsLoadedMsg:
		m.finishFetch(api.CollectionKeywords, msg.Err)
		if msg.Err == nil {
			m.state.Keywords = msg.Keywords
			setRows(&m.keywordsTable, keywordRows(msg.Keywords, m.config.Location))
		}

	case SummaryLoadedMsg:
		m.finishFetch(api.CollectionSummary, msg.Err)
		if msg.Err == nil {
			m.state.Summary = msg.Summary
		}

	case PerformanceLoadedMsg:
		m.finishFetch(api.CollectionPerformance, msg.Err)
		if msg.Err == nil {
			m.state.Performance = msg.Performance
			setRows(&m.performanceTable, performanceRows(msg.Performance, m.config.Location))
		}

	case HistoryLoadedMsg:
		if msg.Err != nil {
			log.Printf("[TUI] Failed to load local history: %v", msg.Err)
		} else {
			m.state.Trend = history.RecordsTrend(msg.Snapshots)
		}

	// Action results
	case ActionDoneMsg:
		cmds = append(cmds, m.handleActionDone(msg))

	case TestResultMsg:
		switch {
		case msg.Err != nil:
			log.Printf("[TUI] Test of %s failed: %v", msg.Username, msg.Err)
			m.showError("", fmt.Sprintf("Test %s failed: %s", msg.Username, api.Detail(msg.Err)))
		case msg.Result != nil && msg.Result.Succeeded():
			m.clearBanner()
			cmds = append(cmds, m.showNotice(fmt.Sprintf("Test %s: %s", msg.Username, msg.Result.TestResult)))
		default:
			result := "no result"
			if msg.Result != nil {
				result = msg.Result.TestResult
				if msg.Result.Message != "" {
					result += " (" + msg.Result.Message + ")"
				}
			}
			m.showError("", fmt.Sprintf("Test %s: %s", msg.Username, result))
		}
		m.addActivity("action", "Tested "+msg.Username)

	case ExportDoneMsg:
		if msg.Err != nil {
			log.Printf("[TUI] Export failed: %v", msg.Err)
			m.showError("", "Export failed: "+api.Detail(msg.Err))
		} else {
			m.clearBanner()
			cmds = append(cmds, m.showNotice(fmt.Sprintf("Exported %s to %s", humanize.Bytes(uint64(msg.Bytes)), msg.Path)))
			m.addActivity("action", "Exported "+filepath.Base(msg.Path))
		}

	case clearNoticeMsg:
		if msg.seq == m.noticeSeq {
			m.state.Notice = ""
		}
	}

	// Re-subscribe to the live client after processing any live message
	switch msg.(type) {
	case RefreshMsg, ConnStateMsg:
		if m.live != nil {
			cmds = append(cmds, m.live.ListenCmd())
		}
	}

	m.statusBar.Loading = m.state.Loading > 0
	return m, tea.Batch(cmds...)
}

// handleRefresh records the trigger and issues every fetch
func (m *Model) handleRefresh(t livesync.Trigger) tea.Cmd {
	at := t.At
	if at.IsZero() {
		at = m.config.Now()
	}
	m.state.LastTrigger = t.Source
	m.state.LastRefresh = at
	m.sidebar.LastTrigger = t.Source
	m.sidebar.LastRefresh = at
	m.statusBar.LastRefresh = at

	switch t.Source {
	case livesync.SourcePush:
		m.sidebar.PushCount++
		summary := "Crawler update"
		if u := t.Update; u != nil {
			summary = fmt.Sprintf("%s: %d records", u.Account, u.RecordCount())
		}
		m.addActivityAt("push", summary, at)
		m.tabBar.MarkUnread(TabData)
		m.tabBar.MarkUnread(TabAnalytics)
		m.tabBar.MarkUnread(TabKeywords)
	case livesync.SourceManual:
		m.addActivityAt("refresh", "Manual refresh", at)
	}

	return m.fetchAll()
}

func (m *Model) handleConnState(msg ConnStateMsg) {
	m.state.Conn = msg.State
	m.state.Healthy = msg.State == livesync.Open
	m.sidebar.Conn = msg.State
	m.sidebar.Healthy = m.state.Healthy
	m.statusBar.Conn = msg.State
	m.statusBar.Healthy = m.state.Healthy

	switch msg.State {
	case livesync.Open:
		m.sidebar.LastError = ""
		m.addActivity("refresh", "Push channel open")
	case livesync.Closed:
		m.sidebar.Reconnects++
		m.statusBar.Reconnects = m.sidebar.Reconnects
		summary := "Push channel closed"
		if msg.Err != nil {
			m.sidebar.LastError = msg.Err.Error()
			summary += ": " + msg.Err.Error()
		}
		m.addActivity("error", summary)
	}
}

func (m *Model) handleActionDone(msg ActionDoneMsg) tea.Cmd {
	if msg.Err != nil {
		log.Printf("[TUI] %s failed: %v", msg.Action, msg.Err)
		m.showError("", fmt.Sprintf("%s failed: %s", msg.Action, api.Detail(msg.Err)))
		m.addActivity("error", msg.Action+" failed")
		return nil
	}

	m.clearBanner()
	switch msg.Action {
	case actionStart:
		m.setCrawlStatus(api.CrawlRunning)
	case actionStop:
		m.setCrawlStatus(api.CrawlStopped)
	}

	summary := msg.Action
	if msg.Notice != "" {
		summary = msg.Notice
	}
	m.addActivity("action", summary)

	cmds := []tea.Cmd{m.showNotice(summary)}
	for _, c := range msg.Reload {
		cmds = append(cmds, m.fetch(c))
	}
	return tea.Batch(cmds...)
}

// setCrawlStatus updates the mirrored status ahead of the next fetch so the
// control label flips immediately
func (m *Model) setCrawlStatus(status string) {
	st := api.Status{}
	if m.state.Status != nil {
		st = *m.state.Status
	}
	st.CrawlStatus = status
	m.state.Status = &st
	m.statusBar.CrawlStatus = crawlLabel(&st)
}

// handleKeyMsg processes keyboard input
func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()

	if key == "ctrl+c" {
		m.quit()
		return tea.Quit
	}

	// Forms own the keyboard while open
	if m.filterForm.Active() {
		return m.handleFilterFormKey(msg)
	}
	if m.accountForm.Active() {
		return m.handleAccountFormKey(msg)
	}
	if m.confirmDelete != "" {
		username := m.confirmDelete
		m.confirmDelete = ""
		if key == "y" || key == "Y" {
			return m.deleteAccount(username)
		}
		return nil
	}

	switch key {
	case "q":
		m.quit()
		return tea.Quit
	case "1", "2", "3", "4", "5":
		m.tabBar.Select(Tab(key[0] - '1'))
		return nil
	case "alt+right", "right":
		m.tabBar.Next()
		return nil
	case "alt+left", "left":
		m.tabBar.Prev()
		return nil
	case "tab":
		// Toggle sidebar
		m.sidebar.Visible = !m.sidebar.Visible
		m.updateLayout()
		return nil
	case "shift+tab":
		m.sidebar.CycleTab()
		return nil
	case "r":
		return m.refresh()
	case "s":
		return m.toggleCrawler()
	}

	switch m.tabBar.Active() {
	case TabData:
		switch key {
		case "f":
			return m.filterForm.Open()
		case "c":
			m.filterForm.Reset()
			m.state.Filters = api.Filters{}
			return m.fetch(api.CollectionRecords)
		case "e":
			return m.export()
		}
	case TabAccounts:
		switch key {
		case "a":
			return m.accountForm.Open()
		case "t":
			if acct, ok := m.selectedAccount(); ok {
				return m.toggleAccount(acct)
			}
			return nil
		case "x":
			if acct, ok := m.selectedAccount(); ok {
				return m.testAccount(acct.Username)
			}
			return nil
		case "d":
			if acct, ok := m.selectedAccount(); ok {
				m.confirmDelete = acct.Username
			}
			return nil
		case "E":
			return m.runAction(actionEnableAll, "Enabled all accounts", reloadAccounts, m.backend.EnableAll)
		case "D":
			return m.runAction(actionDisableAll, "Disabled all accounts", reloadAccounts, m.backend.DisableAll)
		}
	}

	if t := m.activeTable(); t != nil {
		var cmd tea.Cmd
		*t, cmd = t.Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) handleFilterFormKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.filterForm.Close()
		return nil
	case "enter":
		m.filterForm.Close()
		m.state.Filters = m.filterForm.Filters()
		return m.fetch(api.CollectionRecords)
	}
	return m.filterForm.Update(msg)
}

func (m *Model) handleAccountFormKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.accountForm.Close()
		m.accountForm.Reset()
		return nil
	case "enter":
		creds := m.accountForm.Credentials()
		if creds.Username == "" || creds.Password == "" {
			m.showError("", "Username and password are required")
			return nil
		}
		m.accountForm.Close()
		m.accountForm.Reset()
		return m.runAction(actionAdd, "Added account "+creds.Username, reloadAccounts, func(ctx context.Context) error {
			return m.backend.AddAccount(ctx, creds)
		})
	}
	return m.accountForm.Update(msg)
}

func (m *Model) quit() {
	m.quitting = true
	if m.live != nil {
		m.live.Close()
	}
}

// refresh asks the live source for a manual refresh, or triggers one
// directly when there is none
func (m *Model) refresh() tea.Cmd {
	if m.live != nil {
		m.live.Refresh()
		return nil
	}
	return m.handleRefresh(livesync.Trigger{Source: livesync.SourceManual, At: m.config.Now()})
}

func (m *Model) toggleCrawler() tea.Cmd {
	if m.state.Status != nil && m.state.Status.Running() {
		return m.runAction(actionStop, "Crawler stopped", reloadStatus, m.backend.Stop)
	}
	return m.runAction(actionStart, "Crawler started", reloadStatus, m.backend.Start)
}

func (m *Model) selectedAccount() (api.Account, bool) {
	i := m.accountsTable.Cursor()
	if i < 0 || i >= len(m.state.Accounts) {
		return api.Account{}, false
	}
	return m.state.Accounts[i], true
}

func (m *Model) toggleAccount(acct api.Account) tea.Cmd {
	notice := "Disabled " + acct.Username
	if acct.Status == api.AccountDisabled {
		notice = "Enabled " + acct.Username
	}
	return m.runAction(actionToggle, notice, reloadAccounts, func(ctx context.Context) error {
		return m.backend.ToggleAccount(ctx, acct)
	})
}

func (m *Model) deleteAccount(username string) tea.Cmd {
	reload := append([]api.Collection{api.CollectionPerformance}, reloadAccounts...)
	return m.runAction(actionDelete, "Deleted account "+username, reload, func(ctx context.Context) error {
		return m.backend.DeleteAccount(ctx, username)
	})
}

func (m *Model) testAccount(username string) tea.Cmd {
	backend, timeout := m.backend, m.config.RequestTimeout
	m.addActivity("action", "Testing "+username)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		res, err := backend.TestAccount(ctx, username)
		return TestResultMsg{Username: username, Result: res, Err: err}
	}
}

func (m *Model) export() tea.Cmd {
	backend, timeout := m.backend, m.config.RequestTimeout
	opts := m.config.ExportOptions
	path := filepath.Join(m.config.ExportDir, api.DefaultExportFile)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		data, err := backend.Export(ctx, opts)
		if err != nil {
			return ExportDoneMsg{Path: path, Err: err}
		}
		if err := api.SaveExport(path, data); err != nil {
			return ExportDoneMsg{Path: path, Err: err}
		}
		return ExportDoneMsg{Path: path, Bytes: len(data)}
	}
}

var (
	reloadStatus   = []api.Collection{api.CollectionStatus}
	reloadAccounts = []api.Collection{api.CollectionAccounts, api.CollectionStatus}
)

// runAction performs a control call off the event loop
func (m *Model) runAction(action, notice string, reload []api.Collection, fn func(ctx context.Context) error) tea.Cmd {
	timeout := m.config.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := fn(ctx)
		return ActionDoneMsg{Action: action, Notice: notice, Err: err, Reload: reload}
	}
}

// fetchAll issues one independent request per collection, plus local history
// when available
func (m *Model) fetchAll() tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(api.Collections)+1)
	for _, c := range api.Collections {
		cmds = append(cmds, m.fetch(c))
	}
	if m.config.History != nil {
		hist := m.config.History
		cmds = append(cmds, func() tea.Msg {
			snaps, err := hist.RecentSnapshots(context.Background(), historyLimit)
			return HistoryLoadedMsg{Snapshots: snaps, Err: err}
		})
	}
	return tea.Batch(cmds...)
}

// fetch returns a command that requests a single collection. Filters are
// captured when the command is built.
func (m *Model) fetch(c api.Collection) tea.Cmd {
	backend, timeout := m.backend, m.config.RequestTimeout
	filters := m.state.Filters
	run := func(f func(ctx context.Context) tea.Msg) tea.Cmd {
		m.state.Loading++
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			return f(ctx)
		}
	}

	switch c {
	case api.CollectionRecords:
		return run(func(ctx context.Context) tea.Msg {
			records, err := backend.Records(ctx, filters)
			return RecordsLoadedMsg{Records: records, Err: err}
		})
	case api.CollectionStatus:
		return run(func(ctx context.Context) tea.Msg {
			status, err := backend.Status(ctx)
			return StatusLoadedMsg{Status: status, Err: err}
		})
	case api.CollectionAccounts:
		return run(func(ctx context.Context) tea.Msg {
			accounts, err := backend.Accounts(ctx)
			return AccountsLoadedMsg{Accounts: accounts, Err: err}
		})
	case api.CollectionKeywords:
		return run(func(ctx context.Context) tea.Msg {
			stats, err := backend.KeywordStats(ctx)
			return KeywordsLoadedMsg{Keywords: stats, Err: err}
		})
	case api.CollectionSummary:
		return run(func(ctx context.Context) tea.Msg {
			summary, err := backend.Summary(ctx)
			return SummaryLoadedMsg{Summary: summary, Err: err}
		})
	case api.CollectionPerformance:
		return run(func(ctx context.Context) tea.Msg {
			perf, err := backend.Performance(ctx)
			return PerformanceLoadedMsg{Performance: perf, Err: err}
		})
	}
	return nil
}

// finishFetch settles one response. Failures keep the previous data and
// surface in the banner; a success clears that collection's failure.
func (m *Model) finishFetch(c api.Collection, err error) {
	if m.state.Loading > 0 {
		m.state.Loading--
	}
	if err != nil {
		log.Printf("[TUI] Failed to fetch %s: %v", c, err)
		m.state.Errors[c] = err
		m.showError(c, fmt.Sprintf("Failed to load %s: %s", c, api.Detail(err)))
		return
	}

	delete(m.state.Errors, c)
	if m.bannerColl != c {
		return
	}
	m.clearBanner()
	for _, other := range api.Collections {
		if e, ok := m.state.Errors[other]; ok {
			m.showError(other, fmt.Sprintf("Failed to load %s: %s", other, api.Detail(e)))
			break
		}
	}
}

func (m *Model) showError(c api.Collection, text string) {
	m.state.Banner = text
	m.bannerColl = c
}

func (m *Model) clearBanner() {
	m.state.Banner = ""
	m.bannerColl = ""
}

func (m *Model) showNotice(text string) tea.Cmd {
	m.noticeSeq++
	seq := m.noticeSeq
	m.state.Notice = text
	return tea.Tick(noticeTimeout, func(time.Time) tea.Msg {
		return clearNoticeMsg{seq: seq}
	})
}

func (m *Model) addActivity(kind, summary string) {
	m.addActivityAt(kind, summary, m.config.Now())
}

func (m *Model) addActivityAt(kind, summary string, at time.Time) {
	m.sidebar.Activity = appendActivity(m.sidebar.Activity, ActivityInfo{Kind: kind, Summary: summary, At: at})
}

// setRows replaces a table's rows and keeps the cursor in range
func setRows(t *table.Model, rows []table.Row) {
	t.SetRows(rows)
	if t.Cursor() >= len(rows) {
		n := len(rows) - 1
		if n < 0 {
			n = 0
		}
		t.SetCursor(n)
	}
}

func (m *Model) activeTable() *table.Model {
	switch m.tabBar.Active() {
	case TabDashboard:
		return &m.latestTable
	case TabData:
		return &m.recordsTable
	case TabAccounts:
		return &m.accountsTable
	case TabAnalytics:
		return &m.performanceTable
	case TabKeywords:
		return &m.keywordsTable
	}
	return nil
}

// updateLayout recalculates sub-model dimensions
func (m *Model) updateLayout() {
	tabBarHeight := 2 // tab bar + border
	statusBarHeight := 1
	bannerHeight := 1

	sidebarWidth := m.sidebar.TotalSidebarWidth()
	contentWidth := m.width - sidebarWidth
	contentHeight := m.height - tabBarHeight - statusBarHeight - bannerHeight

	if contentWidth < 20 {
		contentWidth = 20
	}
	if contentHeight < 8 {
		contentHeight = 8
	}

	m.tabBar.Width = m.width
	m.sidebar.Height = contentHeight
	m.statusBar.Width = m.width

	m.latestTable.SetWidth(contentWidth)
	m.latestTable.SetHeight(max(contentHeight-9, 3))
	m.recordsTable.SetWidth(contentWidth)
	m.recordsTable.SetHeight(max(contentHeight-5, 3))
	m.accountsTable.SetWidth(contentWidth)
	m.accountsTable.SetHeight(max(contentHeight-4, 3))
	m.performanceTable.SetWidth(contentWidth)
	m.performanceTable.SetHeight(max(contentHeight-10, 3))
	m.keywordsTable.SetWidth(contentWidth)
	m.keywordsTable.SetHeight(max(contentHeight-3, 3))
}

// View renders the entire TUI
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	var sections []string

	sections = append(sections, m.tabBar.View())

	switch {
	case m.state.Banner != "":
		sections = append(sections, m.styles.ErrorBanner.Width(m.width).Render(m.state.Banner))
	case m.state.Notice != "":
		sections = append(sections, m.styles.NoticeBanner.Width(m.width).Render(m.state.Notice))
	default:
		sections = append(sections, "")
	}

	var content string
	switch m.tabBar.Active() {
	case TabDashboard:
		content = m.renderDashboard()
	case TabData:
		content = m.renderData()
	case TabAccounts:
		content = m.renderAccounts()
	case TabAnalytics:
		content = m.renderAnalytics()
	case TabKeywords:
		content = m.renderKeywords()
	}

	if m.sidebar.Visible {
		contentWidth := m.width - m.sidebar.TotalSidebarWidth()
		if contentWidth < 20 {
			contentWidth = 20
		}
		content = lipgloss.JoinHorizontal(lipgloss.Top,
			lipgloss.NewStyle().Width(contentWidth).Render(content),
			m.sidebar.View(),
		)
	}
	sections = append(sections, content)

	sections = append(sections, m.statusBar.View())

	return strings.TrimRight(lipgloss.JoinVertical(lipgloss.Left, sections...), "\n")
}

// SetSSHUser sets the SSH user for display in the status bar
func (m *Model) SetSSHUser(user string) {
	m.statusBar.SSHUser = user
}

// SetBackendURL sets the crawler URL for display
func (m *Model) SetBackendURL(url string) {
	m.statusBar.BackendURL = url
	m.sidebar.BackendURL = url
}
