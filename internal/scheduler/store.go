package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
)

// JobsFile is the job store's file name inside the data directory
const JobsFile = "jobs.json"

// Job is a crawler operation run on a schedule
type Job struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	Schedule  string     `json:"schedule"`
	Action    Action     `json:"action"`
	Enabled   bool       `json:"enabled"`
	OneShot   bool       `json:"oneshot,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	RunCount  int        `json:"run_count"`
	LastError string     `json:"last_error,omitempty"`

	// entry is non-zero while the job is registered with cron
	entry cron.EntryID
}

func (j *Job) clone() *Job {
	c := *j
	c.LastRun = copyTime(j.LastRun)
	c.NextRun = copyTime(j.NextRun)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// jobFile reads and writes the JSON job list. Writes go to a temp file that
// is renamed over the old one, so the daemon never reads half a file written
// by `crawlwatch jobs add`.
type jobFile string

func (f jobFile) read() (map[string]*Job, error) {
	jobs := make(map[string]*Job)
	data, err := os.ReadFile(string(f))
	if os.IsNotExist(err) {
		return jobs, nil
	}
	if err != nil {
		return nil, err
	}

	var list []*Job
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f, err)
	}
	for _, j := range list {
		if j != nil && j.ID != "" {
			jobs[j.ID] = j
		}
	}
	return jobs, nil
}

func (f jobFile) write(jobs map[string]*Job) error {
	list := make([]*Job, 0, len(jobs))
	for _, j := range jobs {
		list = append(list, j)
	}
	sort.Slice(list, func(a, b int) bool { return list[a].ID < list[b].ID })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(string(f))
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".jobs-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), string(f))
}
