package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"crawlwatch/internal/api"
	"crawlwatch/pkg/protocol"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show crawler status and data summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadRuntime()
		if err != nil {
			return err
		}
		client, err := env.client()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := client.Status(ctx)
		if err != nil {
			return err
		}
		summary, err := client.Summary(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if statusJSON {
			return writeJSON(out, map[string]interface{}{
				"status":  st,
				"summary": summary,
			})
		}
		printStatus(out, st, summary, env.cfg.GetLocation())
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the crawler scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, "Crawler started", func(c *api.Client) error {
			return c.Start(cmd.Context())
		})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the crawler scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, "Crawler stopped", func(c *api.Client) error {
			return c.Stop(cmd.Context())
		})
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print raw JSON")
}

// runControl performs a single control call and prints done on success
func runControl(cmd *cobra.Command, done string, call func(*api.Client) error) error {
	return withClient(func(c *api.Client) error {
		if err := call(c); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), done)
		return nil
	})
}

func printStatus(out io.Writer, st *api.Status, summary *api.Summary, loc *time.Location) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Crawler:\t%s\n", st.CrawlStatus)
	fmt.Fprintf(w, "Accounts:\t%d active / %d total\n", st.ActiveAccounts, st.TotalAccounts)
	fmt.Fprintf(w, "Records:\t%s\n", humanize.Comma(int64(st.TotalRecords)))
	fmt.Fprintf(w, "Last update:\t%s\n", describeTime(st.LastUpdate, loc))
	if summary != nil {
		fmt.Fprintf(w, "Records (24h):\t%s\n", humanize.Comma(int64(summary.RecentRecords24h)))
		fmt.Fprintf(w, "Accumulated:\t%s (avg %.1f)\n",
			humanize.Comma(int64(summary.AccumulationStats.TotalAccumulated)),
			summary.AccumulationStats.AvgAccumulated)
	}
	w.Flush()
}

// describeTime renders "2006-01-02 15:04:05 (3 minutes ago)", or "-" when unset
func describeTime(ts protocol.Timestamp, loc *time.Location) string {
	if ts.IsZero() {
		return "-"
	}
	t := ts.Time
	if loc != nil {
		t = t.In(loc)
	}
	return fmt.Sprintf("%s (%s)", t.Format("2006-01-02 15:04:05"), humanize.Time(ts.Time))
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
