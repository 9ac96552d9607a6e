// Package daemon runs the dashboard's refresh pipeline without a terminal:
// every trigger fetches a snapshot, records it in the local history, and
// feeds the alert notifier.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"

	"crawlwatch/internal/api"
	"crawlwatch/internal/history"
	"crawlwatch/internal/livesync"
	"crawlwatch/internal/notify"
	"crawlwatch/internal/scheduler"
	"crawlwatch/internal/version"
	"crawlwatch/pkg/protocol"
)

// DefaultPruneSchedule runs history retention once an hour
const DefaultPruneSchedule = "@hourly"

// Fetcher loads a full snapshot. *api.Client implements it.
type Fetcher interface {
	FetchAll(ctx context.Context, f api.Filters) *api.Snapshot
}

// Recorder persists observations. *history.Store implements it.
type Recorder interface {
	RecordStatus(ctx context.Context, st api.Status, source string, at time.Time) error
	RecordPush(ctx context.Context, update *protocol.CrawlerUpdate, receivedAt time.Time) error
	Prune(ctx context.Context, retention time.Duration) (history.PruneResult, error)
}

// JobRunner runs scheduled jobs alongside the daemon. *scheduler.Scheduler
// implements it.
type JobRunner interface {
	Start() error
	Stop()
	Status() scheduler.Status
}

// Options configures a Daemon
type Options struct {
	BackendURL string
	Fetcher    Fetcher
	// Sync overrides the synchronizer settings; URL and callbacks are set by New
	Sync livesync.Options

	History   Recorder
	Retention time.Duration
	// PruneSchedule defaults to DefaultPruneSchedule
	PruneSchedule string

	Notifier *notify.Notifier
	// Jobs is optional
	Jobs JobRunner

	// HealthAddr serves GET /health when set
	HealthAddr string
}

// Stats summarises what the daemon has done since it started
type Stats struct {
	Version     string    `json:"version"`
	StartedAt   time.Time `json:"started_at"`
	Connection  string    `json:"connection"`
	Refreshes   int       `json:"refreshes"`
	PushEvents  int       `json:"push_events"`
	FetchErrors int       `json:"fetch_errors"`
	Alerts      int       `json:"alerts"`
	LastRefresh time.Time `json:"last_refresh,omitempty"`
	LastError   string    `json:"last_error,omitempty"`

	Scheduler *scheduler.Status `json:"scheduler,omitempty"`
}

// Daemon is the headless synchronizer
type Daemon struct {
	opts Options
	sync *livesync.Synchronizer
	cron *cron.Cron

	// handleMu serializes snapshot handling
	handleMu sync.Mutex
	wg       sync.WaitGroup

	mu    sync.Mutex
	stats Stats
	ctx   context.Context
	// stopping is set before Run waits on wg; no handler starts after it
	stopping bool
}

// New creates a daemon. Nothing runs until Run.
func New(opts Options) (*Daemon, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	streamURL, err := livesync.StreamURL(opts.BackendURL)
	if err != nil {
		return nil, err
	}
	if opts.PruneSchedule == "" {
		opts.PruneSchedule = DefaultPruneSchedule
	}

	d := &Daemon{
		opts: opts,
		cron: cron.New(),
		stats: Stats{
			Version:    version.Info(),
			Connection: livesync.Closed.String(),
		},
	}

	syncOpts := opts.Sync
	syncOpts.URL = streamURL
	syncOpts.OnRefresh = d.onRefresh
	syncOpts.OnState = d.onState
	d.sync, err = livesync.New(syncOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create synchronizer: %w", err)
	}

	if opts.History != nil && opts.Retention > 0 {
		if _, err := d.cron.AddFunc(opts.PruneSchedule, d.prune); err != nil {
			return nil, fmt.Errorf("invalid prune schedule %q: %w", opts.PruneSchedule, err)
		}
	}
	return d, nil
}

// Run starts everything and blocks until ctx is cancelled
func (d *Daemon) Run(ctx context.Context) error {
	d.mu.Lock()
	d.ctx = ctx
	d.stats.StartedAt = time.Now()
	d.mu.Unlock()

	if d.opts.Jobs != nil {
		if err := d.opts.Jobs.Start(); err != nil {
			log.Printf("[Daemon] WARNING: Failed to start scheduler: %v", err)
		}
		defer d.opts.Jobs.Stop()
	}

	var server *http.Server
	if d.opts.HealthAddr != "" {
		server = &http.Server{Addr: d.opts.HealthAddr, Handler: d.Router()}
		go func() {
			log.Printf("[Daemon] Health endpoint on %s", d.opts.HealthAddr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("[Daemon] Health server error: %v", err)
			}
		}()
	}

	if d.opts.History != nil && d.opts.Retention > 0 {
		d.prune()
	}
	d.cron.Start()

	if err := d.sync.Start(ctx); err != nil {
		d.cron.Stop()
		return err
	}
	log.Printf("[Daemon] Watching %s", d.opts.BackendURL)

	<-ctx.Done()
	log.Printf("[Daemon] Shutting down...")

	d.sync.Teardown()
	<-d.cron.Stop().Done()
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}

	d.mu.Lock()
	d.stopping = true
	d.mu.Unlock()
	d.wg.Wait()
	return nil
}

// Refresh triggers a manual refresh
func (d *Daemon) Refresh() {
	d.sync.Refresh()
}

// Stats returns a copy of the current counters
func (d *Daemon) Stats() Stats {
	d.mu.Lock()
	st := d.stats
	d.mu.Unlock()

	if d.opts.Jobs != nil {
		sched := d.opts.Jobs.Status()
		st.Scheduler = &sched
	}
	return st
}

// Router exposes the daemon's HTTP endpoints
func (d *Daemon) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", d.handleHealth).Methods(http.MethodGet)
	return r
}

func (d *Daemon) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := d.Stats()
	status := http.StatusOK
	if st.Connection != livesync.Open.String() {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(st)
}

func (d *Daemon) onState(state livesync.ConnectionState, err error) {
	d.mu.Lock()
	d.stats.Connection = state.String()
	d.mu.Unlock()
	if err != nil {
		log.Printf("[Daemon] Push channel %s: %v", state, err)
	}
}

// onRefresh runs on synchronizer goroutines, so handling moves off them
func (d *Daemon) onRefresh(t livesync.Trigger) {
	d.mu.Lock()
	ctx := d.ctx
	if d.stopping || ctx == nil || ctx.Err() != nil {
		d.mu.Unlock()
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.handle(ctx, t)
	}()
}

func (d *Daemon) handle(ctx context.Context, t livesync.Trigger) {
	d.handleMu.Lock()
	defer d.handleMu.Unlock()

	if t.Source == livesync.SourcePush && d.opts.History != nil {
		if err := d.opts.History.RecordPush(ctx, t.Update, t.At); err != nil {
			log.Printf("[Daemon] %v", err)
		}
	}

	snap := d.opts.Fetcher.FetchAll(ctx, api.Filters{})
	if err := snap.Err(); err != nil {
		log.Printf("[Daemon] %v", err)
	}

	if snap.Status != nil && d.opts.History != nil {
		if err := d.opts.History.RecordStatus(ctx, *snap.Status, string(t.Source), snap.FetchedAt); err != nil {
			log.Printf("[Daemon] %v", err)
		}
	}

	var alerts int
	if d.opts.Notifier != nil {
		alerts = len(d.opts.Notifier.Observe(ctx, snap))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.Refreshes++
	d.stats.Alerts += alerts
	d.stats.LastRefresh = snap.FetchedAt
	if t.Source == livesync.SourcePush {
		d.stats.PushEvents++
	}
	if err := snap.Err(); err != nil {
		d.stats.FetchErrors++
		d.stats.LastError = err.Error()
	} else {
		d.stats.LastError = ""
	}
}

func (d *Daemon) prune() {
	ctx := context.Background()
	d.mu.Lock()
	if d.ctx != nil {
		ctx = d.ctx
	}
	d.mu.Unlock()

	res, err := d.opts.History.Prune(ctx, d.opts.Retention)
	if err != nil {
		log.Printf("[Daemon] History prune failed: %v", err)
		return
	}
	if res.Total() > 0 {
		log.Printf("[Daemon] Pruned %d snapshots, %d push events, %d alerts",
			res.Snapshots, res.PushEvents, res.Alerts)
	}
}
