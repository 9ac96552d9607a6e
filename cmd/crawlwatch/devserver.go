package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"crawlwatch/internal/fakebackend"
)

var (
	devAddr      string
	devSeed      int64
	devInterval  time.Duration
	devAutoStart bool
)

var devServerCmd = &cobra.Command{
	Use:   "dev-server",
	Short: "Run an in-memory crawler for development",
	Long: `Serve the crawler REST API and push channel from memory, with generated
records. While the crawler is started, every account is crawled on each
--interval and a crawler_update event is broadcast.

  crawlwatch dev-server --addr :8001 --autostart
  crawlwatch --backend http://localhost:8001`,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend := fakebackend.New(fakebackend.WithSeed(devSeed))
		backend.SeedAccounts()
		defer backend.Close()

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		server := &http.Server{
			Addr:              devAddr,
			Handler:           backend,
			ReadHeaderTimeout: 10 * time.Second,
		}

		backend.SetRunning(devAutoStart)
		go backend.Simulate(ctx, devInterval)

		errCh := make(chan error, 1)
		go func() {
			log.Printf("[FakeBackend] Listening on %s", devAddr)
			errCh <- server.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("dev server failed: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	devServerCmd.Flags().StringVar(&devAddr, "addr", ":8001", "listen address")
	devServerCmd.Flags().Int64Var(&devSeed, "seed", time.Now().UnixNano(), "random seed for generated records")
	devServerCmd.Flags().DurationVar(&devInterval, "interval", 5*time.Second, "crawl interval while started")
	devServerCmd.Flags().BoolVar(&devAutoStart, "autostart", false, "start the crawler immediately")
}
