package main

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"crawlwatch/internal/daemon"
	"crawlwatch/internal/livesync"
	"crawlwatch/internal/notify"
	"crawlwatch/internal/scheduler"
)

var (
	daemonHealthAddr string
	daemonNoJobs     bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Watch the crawler headlessly",
	Long: `Run the refresh pipeline without a terminal. Every push event and every
scheduled refresh fetches a snapshot, records it in the local history
database, and raises alerts (crawler status changes, accounts entering the
error state, keyword detections). Alerts go to Telegram when
notify.telegram is enabled. Scheduled jobs from 'crawlwatch jobs' run here.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadRuntime()
		if err != nil {
			return err
		}
		client, err := env.client()
		if err != nil {
			return err
		}

		store, err := env.openHistory()
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer store.Close()

		var sinks []notify.Sink
		if tg := env.cfg.Notify.Telegram; tg.Enabled {
			sink, err := notify.NewTelegramSink(tg)
			if err != nil {
				return err
			}
			sinks = append(sinks, sink)
			log.Printf("[Daemon] Telegram alerts enabled for chat %d", tg.ChatID)
		}

		ticker, err := livesync.NewCronTicker(env.cfg.Refresh.Schedule)
		if err != nil {
			return err
		}

		var jobs daemon.JobRunner
		if !daemonNoJobs {
			exec := scheduler.NewActionExecutor(client, scheduler.ExportConfig{
				Dir:     env.exportDir(),
				Options: env.exportOptions(),
			}, time.Now)
			jobs = scheduler.New(env.dd.Root(), exec)
		}

		d, err := daemon.New(daemon.Options{
			BackendURL: env.cfg.BackendURL,
			Fetcher:    client,
			Sync: livesync.Options{
				Ticker:         ticker,
				ReconnectDelay: env.cfg.Refresh.ReconnectDelay(),
			},
			History:    store,
			Retention:  env.cfg.Database.Retention(),
			Notifier:   notify.New(store, sinks...),
			Jobs:       jobs,
			HealthAddr: daemonHealthAddr,
		})
		if err != nil {
			return err
		}

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		log.Printf("[Daemon] Starting crawlwatch %s (refresh %s, history %s)",
			env.cfg.BackendURL, ticker.Spec(), env.historyPath())
		if err := d.Run(ctx); err != nil {
			return err
		}
		log.Println("[Daemon] Stopped gracefully")
		return nil
	},
}

func init() {
	daemonCmd.Flags().StringVar(&daemonHealthAddr, "health-addr", "", "serve GET /health on this address (e.g. :8090)")
	daemonCmd.Flags().BoolVar(&daemonNoJobs, "no-jobs", false, "do not run scheduled jobs")
}
