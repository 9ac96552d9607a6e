package main

import (
	"log"

	"github.com/spf13/cobra"

	"crawlwatch/internal/datadir"
	"crawlwatch/internal/tui"
)

var tuiNoHistory bool

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the crawler dashboard",
	Long: `Launch the Bubble Tea dashboard for the crawler at backend_url. The view
re-fetches everything whenever the crawler pushes a crawler_update event and
on the refresh schedule from the config file.

Key bindings:
  1-5             Switch tabs (Dashboard, Data, Accounts, Keywords, Analytics)
  Left/Right      Cycle tabs
  r               Refresh now
  s               Start or stop the crawler
  f / c / e       Filter, clear filters, export (Data tab)
  a / t / x / d   Add, toggle, test, delete account (Accounts tab)
  E / D           Enable all, disable all (Accounts tab)
  Tab             Toggle sidebar
  Shift+Tab       Cycle sidebar sections
  q / Ctrl+C      Quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadRuntime()
		if err != nil {
			return err
		}

		cfg := env.dashboardConfig(nil)
		if !tuiNoHistory {
			store, err := env.openHistory()
			if err != nil {
				log.Printf("Warning: history unavailable: %v", err)
			} else {
				defer store.Close()
				cfg.History = store
			}
		}
		cfg.PreferencesPath = env.dd.Path(datadir.AreaRoot, tui.PreferencesFile)
		cfg.LogPath = env.dd.Path(datadir.AreaLogs, "tui.log")

		return tui.Run(&cfg)
	},
}

func init() {
	tuiCmd.Flags().BoolVar(&tuiNoHistory, "no-history", false, "do not read the local history database")
}
