// Package scheduler runs persisted crawler operations (start, stop, export,
// batch enable/disable) on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// JobExecutor performs a job's action
type JobExecutor func(ctx context.Context, job *Job) error

// Status summarises the scheduler
type Status struct {
	Running     bool `json:"running"`
	TotalJobs   int  `json:"total_jobs"`
	EnabledJobs int  `json:"enabled_jobs"`
	CronEntries int  `json:"cron_entries"`
}

// parser accepts 5-field specs, 6-field specs with seconds and descriptors
// such as @daily or @every 10m
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule reports whether spec is a schedule the scheduler accepts
func ValidateSchedule(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron expression: %v", err)
	}
	return nil
}

// Scheduler keeps the job list in memory, mirrors every change to the job
// file and registers enabled jobs with cron while running.
type Scheduler struct {
	file     jobFile
	executor JobExecutor
	cron     *cron.Cron
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	jobs    map[string]*Job
	running bool
}

// New creates a scheduler whose jobs persist in dir/jobs.json. A nil
// executor records runs without doing anything.
func New(dir string, executor JobExecutor) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		file:     jobFile(filepath.Join(dir, JobsFile)),
		executor: executor,
		cron:     cron.New(cron.WithParser(parser)),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(map[string]*Job),
	}
}

// Load reads the job file without scheduling anything
func (s *Scheduler) Load() error {
	jobs, err := s.file.read()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.jobs = jobs
	s.mu.Unlock()
	return nil
}

// Start loads the job file and registers enabled jobs. An unreadable file
// is logged and the scheduler starts empty.
func (s *Scheduler) Start() error {
	jobs, loadErr := s.file.read()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if loadErr != nil {
		log.Printf("[Scheduler] Warning: failed to load jobs: %v", loadErr)
	} else {
		s.jobs = jobs
	}

	for _, job := range s.jobs {
		if !job.Enabled {
			continue
		}
		if err := s.register(job); err != nil {
			log.Printf("[Scheduler] Failed to schedule job %s: %v", job.ID, err)
		}
	}
	s.cron.Start()
	s.running = true

	log.Printf("[Scheduler] Started with %d jobs (%d enabled)", len(s.jobs), s.enabledLocked())
	return nil
}

// Stop cancels running executors and waits for them to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	was := s.running
	s.running = false
	s.mu.Unlock()
	if !was {
		return
	}

	s.cancel()
	<-s.cron.Stop().Done()
	log.Printf("[Scheduler] Stopped")
}

// AddJob validates and stores job, registering it when enabled. An empty ID
// gets a new UUID.
func (s *Scheduler) AddJob(job *Job) error {
	if err := job.Action.Validate(); err != nil {
		return err
	}
	if err := ValidateSchedule(job.Schedule); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if _, dup := s.jobs[job.ID]; dup {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	job.CreatedAt = s.now()
	if job.Enabled {
		if err := s.register(job); err != nil {
			return err
		}
	}
	s.jobs[job.ID] = job
	return s.file.write(s.jobs)
}

// update runs fn on the job with id and saves the result
func (s *Scheduler) update(id string, fn func(job *Job) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	if err := fn(job); err != nil {
		return err
	}
	return s.file.write(s.jobs)
}

func (s *Scheduler) RemoveJob(id string) error {
	return s.update(id, func(job *Job) error {
		s.unregister(job)
		delete(s.jobs, id)
		return nil
	})
}

func (s *Scheduler) EnableJob(id string) error {
	return s.update(id, func(job *Job) error {
		if job.Enabled {
			return nil
		}
		if err := s.register(job); err != nil {
			return err
		}
		job.Enabled = true
		return nil
	})
}

func (s *Scheduler) DisableJob(id string) error {
	return s.update(id, func(job *Job) error {
		job.Enabled = false
		job.NextRun = nil
		s.unregister(job)
		return nil
	})
}

// GetJob returns a copy of the job with id
func (s *Scheduler) GetJob(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if job, ok := s.jobs[id]; ok {
		return job.clone(), nil
	}
	return nil, fmt.Errorf("job %s not found", id)
}

// ListJobs returns copies of every job, oldest first
func (s *Scheduler) ListJobs() []*Job {
	s.mu.RLock()
	out := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// RunNow fires a job in the background, outside its schedule
func (s *Scheduler) RunNow(id string) error {
	s.mu.RLock()
	job, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	go s.fire(job)
	return nil
}

func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Running:     s.running,
		TotalJobs:   len(s.jobs),
		EnabledJobs: s.enabledLocked(),
		CronEntries: len(s.cron.Entries()),
	}
}

// register adds job to cron and computes its next run. Callers hold s.mu.
func (s *Scheduler) register(job *Job) error {
	s.unregister(job)
	sched, err := parser.Parse(job.Schedule)
	if err != nil {
		return fmt.Errorf("failed to schedule job: %v", err)
	}
	job.entry = s.cron.Schedule(sched, cron.FuncJob(func() { s.fire(job) }))
	next := sched.Next(s.now())
	job.NextRun = &next

	log.Printf("[Scheduler] Scheduled %s (%s at %q), next run %s",
		job.ID, job.Action, job.Schedule, next.Format(time.RFC3339))
	return nil
}

func (s *Scheduler) unregister(job *Job) {
	if job.entry != 0 {
		s.cron.Remove(job.entry)
		job.entry = 0
	}
}

// fire runs the executor and records the outcome. One-shot jobs are removed
// after their first run whether or not it succeeded.
func (s *Scheduler) fire(job *Job) {
	s.mu.Lock()
	started := s.now()
	job.LastRun = &started
	job.RunCount++
	snapshot := job.clone()
	s.mu.Unlock()

	log.Printf("[Scheduler] Running %s (%s)", snapshot.ID, snapshot.Action)
	var err error
	if s.executor != nil {
		err = s.executor(s.ctx, snapshot)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job.LastError = ""
	if err != nil {
		job.LastError = err.Error()
		log.Printf("[Scheduler] Job %s failed: %v", job.ID, err)
	}

	switch {
	case job.OneShot:
		s.unregister(job)
		delete(s.jobs, job.ID)
		log.Printf("[Scheduler] One-shot job %s removed", job.ID)
	case job.Enabled:
		if sched, perr := parser.Parse(job.Schedule); perr == nil {
			next := sched.Next(s.now())
			job.NextRun = &next
		}
	}
	if err := s.file.write(s.jobs); err != nil {
		log.Printf("[Scheduler] Failed to save jobs: %v", err)
	}
}

func (s *Scheduler) enabledLocked() int {
	n := 0
	for _, job := range s.jobs {
		if job.Enabled {
			n++
		}
	}
	return n
}
