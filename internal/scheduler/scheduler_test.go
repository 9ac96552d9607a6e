package scheduler

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawlwatch/internal/api"
	"crawlwatch/internal/fakebackend"
)

// recorder is an executor that records the jobs it ran
type recorder struct {
	mu   sync.Mutex
	runs []Action
	err  error
}

func (r *recorder) exec(ctx context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, job.Action)
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("Enable-All")
	require.NoError(t, err)
	assert.Equal(t, ActionEnableAll, a)

	_, err = ParseAction("reboot")
	assert.Error(t, err)
}

func TestValidateSchedule(t *testing.T) {
	for _, spec := range []string{"*/5 * * * *", "0 */5 * * * *", "@every 10m", "@daily"} {
		assert.NoError(t, ValidateSchedule(spec), spec)
	}
	assert.Error(t, ValidateSchedule("every tuesday"))
}

func TestAddJob_ValidatesAndPersists(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	s := New(dir, rec.exec)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Error(t, s.AddJob(&Job{Schedule: "@every 1h", Action: "reboot"}))
	assert.Error(t, s.AddJob(&Job{Schedule: "nope", Action: ActionStart}))

	job := &Job{Name: "morning", Schedule: "0 8 * * *", Action: ActionStart, Enabled: true}
	require.NoError(t, s.AddJob(job))
	assert.NotEmpty(t, job.ID)
	require.NotNil(t, job.NextRun)

	assert.Error(t, s.AddJob(&Job{ID: job.ID, Schedule: "@daily", Action: ActionStop}))

	status := s.Status()
	assert.True(t, status.Running)
	assert.Equal(t, 1, status.TotalJobs)
	assert.Equal(t, 1, status.CronEntries)

	_, err := os.Stat(filepath.Join(dir, JobsFile))
	require.NoError(t, err)

	// A fresh scheduler sees the saved job
	other := New(dir, nil)
	require.NoError(t, other.Load())
	got, err := other.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "morning", got.Name)
	assert.Equal(t, ActionStart, got.Action)
	assert.True(t, got.Enabled)
}

func TestEnableDisableRemove(t *testing.T) {
	s := New(t.TempDir(), nil)
	require.NoError(t, s.Start())
	defer s.Stop()

	job := &Job{Schedule: "@every 1h", Action: ActionExport}
	require.NoError(t, s.AddJob(job))
	assert.Equal(t, 0, s.Status().CronEntries)

	require.NoError(t, s.EnableJob(job.ID))
	assert.Equal(t, 1, s.Status().CronEntries)
	assert.Equal(t, 1, s.Status().EnabledJobs)

	require.NoError(t, s.DisableJob(job.ID))
	assert.Equal(t, 0, s.Status().CronEntries)
	got, err := s.GetJob(job.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Nil(t, got.NextRun)

	require.NoError(t, s.RemoveJob(job.ID))
	assert.Empty(t, s.ListJobs())
	assert.Error(t, s.RemoveJob(job.ID))
	assert.Error(t, s.EnableJob(job.ID))
	assert.Error(t, s.DisableJob(job.ID))
	assert.Error(t, s.RunNow(job.ID))
}

func TestRunNow_RecordsOutcome(t *testing.T) {
	rec := &recorder{err: errors.New("crawler offline")}
	s := New(t.TempDir(), rec.exec)
	require.NoError(t, s.Start())
	defer s.Stop()

	job := &Job{Schedule: "@every 1h", Action: ActionStop, Enabled: true}
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunNow(job.ID))

	require.Eventually(t, func() bool {
		got, err := s.GetJob(job.ID)
		return err == nil && got.LastError != ""
	}, 2*time.Second, 10*time.Millisecond)

	got, err := s.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RunCount)
	assert.Equal(t, "crawler offline", got.LastError)
	require.NotNil(t, got.LastRun)
	assert.Equal(t, []Action{ActionStop}, rec.runs)
}

func TestRunNow_OneShotIsRemoved(t *testing.T) {
	rec := &recorder{}
	s := New(t.TempDir(), rec.exec)
	require.NoError(t, s.Start())
	defer s.Stop()

	job := &Job{Schedule: "@every 1h", Action: ActionEnableAll, Enabled: true, OneShot: true}
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunNow(job.ID))

	require.Eventually(t, func() bool { return len(s.ListJobs()) == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, 0, s.Status().CronEntries)
}

func TestScheduledJobFires(t *testing.T) {
	rec := &recorder{}
	s := New(t.TempDir(), rec.exec)
	require.NoError(t, s.Start())
	defer s.Stop()

	require.NoError(t, s.AddJob(&Job{Schedule: "@every 1s", Action: ActionStart, Enabled: true}))
	require.Eventually(t, func() bool { return rec.count() >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestListJobs_OldestFirst(t *testing.T) {
	s := New(t.TempDir(), nil)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	require.NoError(t, s.AddJob(&Job{Name: "first", Schedule: "@daily", Action: ActionStart}))
	require.NoError(t, s.AddJob(&Job{Name: "second", Schedule: "@daily", Action: ActionStop}))

	jobs := s.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "first", jobs[0].Name)
	assert.Equal(t, "second", jobs[1].Name)
}

func TestActionExecutor_AgainstFakeBackend(t *testing.T) {
	backend := fakebackend.New(fakebackend.WithSeed(3))
	backend.SeedAccounts()
	srv := httptest.NewServer(backend)
	t.Cleanup(func() {
		backend.Close()
		srv.Close()
	})
	client, err := api.NewClient(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	dir := t.TempDir()
	stamp := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	exec := NewActionExecutor(client, ExportConfig{Dir: dir, Options: api.DefaultExportOptions()}, func() time.Time { return stamp })

	require.NoError(t, exec(ctx, &Job{Action: ActionStart}))
	st, err := client.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Running())

	require.NoError(t, exec(ctx, &Job{Action: ActionDisableAll}))
	accounts, err := client.Accounts(ctx)
	require.NoError(t, err)
	for _, a := range accounts {
		assert.Equal(t, api.AccountDisabled, a.Status)
	}
	require.NoError(t, exec(ctx, &Job{Action: ActionEnableAll}))

	backend.CrawlOnce()
	require.NoError(t, exec(ctx, &Job{Action: ActionExport}))
	data, err := os.ReadFile(filepath.Join(dir, "crawler_data_20250601_083000.csv"))
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	require.NoError(t, exec(ctx, &Job{Action: ActionStop}))
	assert.Error(t, exec(ctx, &Job{Action: "reboot"}))
}
