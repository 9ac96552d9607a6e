package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"crawlwatch/internal/api"
)

var (
	recordFilters api.Filters
	recordsLimit  int
	recordsJSON   bool
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List crawled records",
	Long: `List crawled records, newest first. Filter flags are passed to the crawler
unchanged; an empty flag means no constraint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadRuntime()
		if err != nil {
			return err
		}
		client, err := env.client()
		if err != nil {
			return err
		}

		records, err := client.Records(cmd.Context(), recordFilters)
		if err != nil {
			return err
		}
		if recordsLimit > 0 && len(records) > recordsLimit {
			records = records[:recordsLimit]
		}

		out := cmd.OutOrStdout()
		if recordsJSON {
			return writeJSON(out, records)
		}
		if len(records) == 0 {
			fmt.Fprintln(out, "No records match.")
			return nil
		}
		printRecords(out, records, env.cfg.GetLocation())
		return nil
	},
}

var (
	exportOutput        string
	exportNoKeywords    bool
	exportNoAccumulated bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export crawled data as CSV",
	Long: `Download the crawler's CSV export. Without --output the file is written to
the export directory as crawler_data_<timestamp>.csv.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadRuntime()
		if err != nil {
			return err
		}
		client, err := env.client()
		if err != nil {
			return err
		}

		opts := env.exportOptions()
		if exportNoKeywords {
			opts.IncludeKeywords = false
		}
		if exportNoAccumulated {
			opts.IncludeAccumulated = false
		}

		path := exportOutput
		if path == "" {
			path = filepath.Join(env.exportDir(), api.TimestampedExportFile(time.Now()))
		}

		n, err := client.ExportToFile(cmd.Context(), opts, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", humanize.Bytes(uint64(n)), path)
		return nil
	},
}

func init() {
	f := recordsCmd.Flags()
	f.StringVar(&recordFilters.AccountUsername, "account", "", "only records from this account")
	f.StringVar(&recordFilters.Keyword, "keyword", "", "only records where this keyword was detected")
	f.StringVar(&recordFilters.Status, "status", "", "only records with this status")
	f.StringVar(&recordFilters.Guild, "guild", "", "only records from this guild")
	f.StringVar(&recordFilters.MinCount, "min-count", "", "minimum current count")
	f.StringVar(&recordFilters.MaxCount, "max-count", "", "maximum current count")
	f.IntVarP(&recordsLimit, "limit", "n", 50, "maximum rows to print (0 for all)")
	f.BoolVar(&recordsJSON, "json", false, "print raw JSON")

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file path")
	exportCmd.Flags().BoolVar(&exportNoKeywords, "no-keywords", false, "omit the keywords column")
	exportCmd.Flags().BoolVar(&exportNoAccumulated, "no-accumulated", false, "omit the accumulated count column")
}

func printRecords(out io.Writer, records []api.Record, loc *time.Location) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tSEQ\tNAME\tLEVEL\tGUILD\tCOUNT\tKEYWORDS\tSTATUS\tCRAWLED")
	for _, r := range records {
		keywords := formatKeywordHits(r.KeywordsDetected)
		if keywords == "" {
			keywords = "-"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\t%d/%d\t%s\t%s\t%s\n",
			r.AccountUsername, r.SequenceNumber, r.Name, r.Level, r.Guild,
			r.CountCurrent, r.CountTotal, keywords, r.Status,
			describeTime(r.CrawlTimestamp, loc))
	}
	w.Flush()
}

// formatKeywordHits renders "kw:n, kw:n" sorted by keyword
func formatKeywordHits(kw map[string]int) string {
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
