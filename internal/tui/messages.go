package tui

import (
	"crawlwatch/internal/api"
	"crawlwatch/internal/history"
	"crawlwatch/internal/livesync"
)

// BubbleTea message types produced by the live client and the fetch commands

// RefreshMsg asks the model to re-request every collection
type RefreshMsg struct {
	livesync.Trigger
}

// ConnStateMsg reports a push channel state transition
type ConnStateMsg struct {
	State livesync.ConnectionState
	Err   error
}

// LiveStoppedMsg signals that the live client was closed
type LiveStoppedMsg struct {
	Err error
}

// RecordsLoadedMsg carries a /data response
type RecordsLoadedMsg struct {
	Records []api.Record
	Err     error
}

// StatusLoadedMsg carries a /status response
type StatusLoadedMsg struct {
	Status *api.Status
	Err    error
}

// AccountsLoadedMsg carries an /accounts response
type AccountsLoadedMsg struct {
	Accounts []api.Account
	Err      error
}

// KeywordsLoadedMsg carries a /data/keywords response
type KeywordsLoadedMsg struct {
	Keywords []api.KeywordStat
	Err      error
}

// SummaryLoadedMsg carries a /data/summary response
type SummaryLoadedMsg struct {
	Summary *api.Summary
	Err     error
}

// PerformanceLoadedMsg carries a /data/accounts-performance response
type PerformanceLoadedMsg struct {
	Performance []api.AccountPerformance
	Err         error
}

// HistoryLoadedMsg carries locally recorded snapshots, newest first
type HistoryLoadedMsg struct {
	Snapshots []history.StatusSnapshot
	Err       error
}

// ActionDoneMsg reports the outcome of a control call
type ActionDoneMsg struct {
	Action string
	Notice string
	Err    error
	// Reload lists the collections to re-request after success
	Reload []api.Collection
}

// TestResultMsg reports a single-account test run
type TestResultMsg struct {
	Username string
	Result   *api.TestResult
	Err      error
}

// ExportDoneMsg reports a finished CSV export
type ExportDoneMsg struct {
	Path  string
	Bytes int
	Err   error
}

// clearNoticeMsg hides a transient notice if it is still the one shown
type clearNoticeMsg struct {
	seq int
}
