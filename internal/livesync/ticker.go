package livesync

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
)

// DefaultRefreshSchedule re-fetches everything every 30 seconds
const DefaultRefreshSchedule = "@every 30s"

// scheduleParser accepts 5-field specs, 6-field specs with seconds and
// descriptors such as @every 30s
var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule parses a refresh schedule the way CronTicker runs it
func ParseSchedule(spec string) (cron.Schedule, error) {
	return scheduleParser.Parse(spec)
}

// Ticker drives the periodic refresh
type Ticker interface {
	Start(fire func()) error
	Stop()
}

// CronTicker fires on a cron schedule ("@every 30s", "*/1 * * * *", "*/10 * * * * *")
type CronTicker struct {
	spec string
	mu   sync.Mutex
	cron *cron.Cron
}

// NewCronTicker validates spec and returns a stopped ticker
func NewCronTicker(spec string) (*CronTicker, error) {
	if _, err := ParseSchedule(spec); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return &CronTicker{spec: spec}, nil
}

// Spec returns the schedule expression
func (t *CronTicker) Spec() string {
	return t.spec
}

// Start begins firing. Calling Start on a running ticker is an error.
func (t *CronTicker) Start(fire func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cron != nil {
		return fmt.Errorf("ticker already started")
	}
	c := cron.New(cron.WithParser(scheduleParser))
	if _, err := c.AddFunc(t.spec, fire); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", t.spec, err)
	}
	c.Start()
	t.cron = c
	return nil
}

// Stop halts the ticker. It does not wait for an in-flight fire to return.
func (t *CronTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cron != nil {
		t.cron.Stop()
		t.cron = nil
	}
}
