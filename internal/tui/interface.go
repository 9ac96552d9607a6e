package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"crawlwatch/internal/api"
	"crawlwatch/internal/history"
)

// Backend is the crawler surface the dashboard reads and drives.
// *api.Client implements it.
type Backend interface {
	Records(ctx context.Context, f api.Filters) ([]api.Record, error)
	Status(ctx context.Context) (*api.Status, error)
	Accounts(ctx context.Context) ([]api.Account, error)
	KeywordStats(ctx context.Context) ([]api.KeywordStat, error)
	Summary(ctx context.Context) (*api.Summary, error)
	Performance(ctx context.Context) ([]api.AccountPerformance, error)

	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	EnableAll(ctx context.Context) error
	DisableAll(ctx context.Context) error
	ToggleAccount(ctx context.Context, acct api.Account) error
	AddAccount(ctx context.Context, creds api.Credentials) error
	DeleteAccount(ctx context.Context, username string) error
	TestAccount(ctx context.Context, username string) (*api.TestResult, error)
	Export(ctx context.Context, opts api.ExportOptions) ([]byte, error)
}

// LiveSource delivers refresh triggers and connection state changes as
// tea.Msgs. LiveClient implements it on top of a livesync.Synchronizer.
type LiveSource interface {
	StartCmd() tea.Cmd
	ListenCmd() tea.Cmd
	Refresh()
	Close()
}

// HistorySource supplies locally recorded status snapshots for trends.
// *history.Store implements it.
type HistorySource interface {
	RecentSnapshots(ctx context.Context, limit int) ([]history.StatusSnapshot, error)
}
