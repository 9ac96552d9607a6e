package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawlwatch/internal/api"
	"crawlwatch/internal/fakebackend"
	"crawlwatch/internal/history"
	"crawlwatch/internal/livesync"
	"crawlwatch/internal/notify"
	"crawlwatch/internal/scheduler"
)

type fixture struct {
	backend *fakebackend.Server
	client  *api.Client
	store   *history.Store
	daemon  *Daemon
	cancel  context.CancelFunc
	done    chan error
}

func startDaemon(t *testing.T) *fixture {
	t.Helper()
	backend := fakebackend.New(fakebackend.WithSeed(11))
	backend.SeedAccounts()
	srv := httptest.NewServer(backend)

	client, err := api.NewClient(srv.URL)
	require.NoError(t, err)
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)

	d, err := New(Options{
		BackendURL: srv.URL,
		Fetcher:    client,
		Sync:       livesync.Options{ReconnectDelay: 50 * time.Millisecond},
		History:    store,
		Retention:  24 * time.Hour,
		Notifier:   notify.New(store),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	f := &fixture{backend: backend, client: client, store: store, daemon: d, cancel: cancel, done: make(chan error, 1)}
	go func() { f.done <- d.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-f.done:
		case <-time.After(5 * time.Second):
			t.Error("daemon did not stop")
		}
		backend.Close()
		srv.Close()
		store.Close()
	})
	return f
}

func TestNew_Validates(t *testing.T) {
	_, err := New(Options{BackendURL: "http://localhost:8001"})
	assert.Error(t, err)

	client, err := api.NewClient("http://localhost:8001")
	require.NoError(t, err)
	_, err = New(Options{BackendURL: "ftp://nowhere", Fetcher: client})
	assert.Error(t, err)

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()
	_, err = New(Options{BackendURL: "http://localhost:8001", Fetcher: client, History: store, Retention: time.Hour, PruneSchedule: "whenever"})
	assert.Error(t, err)
}

func TestDaemon_RecordsInitialSnapshot(t *testing.T) {
	f := startDaemon(t)
	ctx := context.Background()

	require.Eventually(t, func() bool {
		snaps, err := f.store.RecentSnapshots(ctx, 10)
		return err == nil && len(snaps) >= 1
	}, 5*time.Second, 20*time.Millisecond)

	snaps, err := f.store.RecentSnapshots(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, string(livesync.SourceInitial), snaps[len(snaps)-1].Source)
	assert.Equal(t, api.CrawlStopped, snaps[len(snaps)-1].CrawlStatus)
}

func TestDaemon_PushEventsAndAlerts(t *testing.T) {
	f := startDaemon(t)
	ctx := context.Background()

	require.Eventually(t, func() bool {
		return f.daemon.Stats().Connection == livesync.Open.String() && f.daemon.Stats().Refreshes >= 1
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, f.client.Start(ctx))
	f.backend.CrawlOnce()

	require.Eventually(t, func() bool {
		events, err := f.store.RecentPushEvents(ctx, 50)
		return err == nil && len(events) >= 1
	}, 5*time.Second, 20*time.Millisecond)

	f.daemon.Refresh()
	require.Eventually(t, func() bool {
		alerts, err := f.store.RecentAlerts(ctx, 50)
		if err != nil {
			return false
		}
		for _, a := range alerts {
			if a.Kind == notify.KindCrawlStatus {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		st := f.daemon.Stats()
		return st.PushEvents >= 1 && st.Alerts >= 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Empty(t, f.daemon.Stats().LastError)
}

func TestDaemon_FetchErrorsCounted(t *testing.T) {
	f := startDaemon(t)
	require.Eventually(t, func() bool { return f.daemon.Stats().Refreshes >= 1 }, 5*time.Second, 20*time.Millisecond)

	f.backend.Fail("/status", http.StatusInternalServerError)
	before := f.daemon.Stats().Refreshes
	f.daemon.Refresh()

	require.Eventually(t, func() bool {
		st := f.daemon.Stats()
		return st.Refreshes > before && st.FetchErrors >= 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Contains(t, f.daemon.Stats().LastError, "status")
}

func TestDaemon_NoHandlingAfterShutdown(t *testing.T) {
	f := startDaemon(t)
	require.Eventually(t, func() bool { return f.daemon.Stats().Refreshes >= 1 }, 5*time.Second, 20*time.Millisecond)

	// triggers keep arriving while Run winds down
	stop := make(chan struct{})
	hammered := make(chan struct{})
	go func() {
		defer close(hammered)
		for {
			select {
			case <-stop:
				return
			default:
				f.daemon.onRefresh(livesync.Trigger{Source: livesync.SourceManual, At: time.Now()})
				time.Sleep(time.Millisecond)
			}
		}
	}()

	f.cancel()
	var err error
	select {
	case err = <-f.done:
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
	require.NoError(t, err)
	close(stop)
	<-hammered
	f.done <- err

	before := f.daemon.Stats().Refreshes
	f.daemon.onRefresh(livesync.Trigger{Source: livesync.SourceManual, At: time.Now()})
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, before, f.daemon.Stats().Refreshes)
}

func TestHealthEndpoint(t *testing.T) {
	f := startDaemon(t)
	require.Eventually(t, func() bool {
		return f.daemon.Stats().Connection == livesync.Open.String()
	}, 5*time.Second, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	f.daemon.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var st Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "open", st.Connection)
	assert.NotEmpty(t, st.Version)
}

type fakeJobs struct {
	started, stopped bool
}

func (f *fakeJobs) Start() error { f.started = true; return nil }
func (f *fakeJobs) Stop()        { f.stopped = true }
func (f *fakeJobs) Status() scheduler.Status {
	return scheduler.Status{Running: f.started && !f.stopped, TotalJobs: 2}
}

func TestDaemon_RunsJobs(t *testing.T) {
	backend := fakebackend.New()
	srv := httptest.NewServer(backend)
	defer func() {
		backend.Close()
		srv.Close()
	}()
	client, err := api.NewClient(srv.URL)
	require.NoError(t, err)

	jobs := &fakeJobs{}
	d, err := New(Options{BackendURL: srv.URL, Fetcher: client, Jobs: jobs})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return d.Stats().Refreshes >= 1 }, 5*time.Second, 20*time.Millisecond)
	st := d.Stats()
	require.NotNil(t, st.Scheduler)
	assert.Equal(t, 2, st.Scheduler.TotalJobs)

	cancel()
	require.NoError(t, <-done)
	assert.True(t, jobs.stopped)
}
