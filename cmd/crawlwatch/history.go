package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"crawlwatch/internal/history"
)

var (
	historyLimit int
	historySince time.Duration
	historyPrune bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show locally recorded crawler history",
	Long: `Print what the daemon recorded: recent status snapshots, records pushed per
account, and recent alerts. --prune applies the configured retention first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadRuntime()
		if err != nil {
			return err
		}
		store, err := env.openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if historyPrune {
			res, err := store.Prune(ctx, env.cfg.Database.Retention())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Pruned %d rows older than %d days\n\n", res.Total(), env.cfg.Database.RetentionDays)
		}

		snaps, err := store.RecentSnapshots(ctx, historyLimit)
		if err != nil {
			return err
		}
		counts, err := store.PushCountsSince(ctx, time.Now().Add(-historySince))
		if err != nil {
			return err
		}
		alerts, err := store.RecentAlerts(ctx, historyLimit)
		if err != nil {
			return err
		}

		loc := env.cfg.GetLocation()
		printSnapshots(out, snaps, loc)
		fmt.Fprintln(out)
		printPushCounts(out, counts, historySince)
		fmt.Fprintln(out)
		printAlerts(out, alerts, loc)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "rows per section")
	historyCmd.Flags().DurationVar(&historySince, "since", 24*time.Hour, "window for push counts")
	historyCmd.Flags().BoolVar(&historyPrune, "prune", false, "delete rows older than database.retention_days first")
}

func printSnapshots(out io.Writer, snaps []history.StatusSnapshot, loc *time.Location) {
	fmt.Fprintln(out, "Status snapshots")
	if len(snaps) == 0 {
		fmt.Fprintln(out, "  (none recorded; run 'crawlwatch daemon')")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  OBSERVED\tCRAWLER\tACCOUNTS\tRECORDS\tSOURCE")
	for _, s := range snaps {
		fmt.Fprintf(w, "  %s\t%s\t%d/%d\t%s\t%s\n",
			s.ObservedAt.In(loc).Format("2006-01-02 15:04:05"), s.CrawlStatus,
			s.ActiveAccounts, s.TotalAccounts, humanize.Comma(int64(s.TotalRecords)), s.Source)
	}
	w.Flush()
}

func printPushCounts(out io.Writer, counts map[string]int, window time.Duration) {
	fmt.Fprintf(out, "Records pushed (last %s)\n", window)
	if len(counts) == 0 {
		fmt.Fprintln(out, "  (none)")
		return
	}
	accounts := make([]string, 0, len(counts))
	for a := range counts {
		accounts = append(accounts, a)
	}
	sort.Strings(accounts)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, a := range accounts {
		fmt.Fprintf(w, "  %s\t%s\n", a, humanize.Comma(int64(counts[a])))
	}
	w.Flush()
}

func printAlerts(out io.Writer, alerts []history.Alert, loc *time.Location) {
	fmt.Fprintln(out, "Alerts")
	if len(alerts) == 0 {
		fmt.Fprintln(out, "  (none)")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, a := range alerts {
		sent := "sent"
		if !a.Delivered {
			sent = "pending"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n",
			a.RaisedAt.In(loc).Format("2006-01-02 15:04:05"), a.Kind, sent, a.Message)
	}
	w.Flush()
}
