package scheduler

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"crawlwatch/internal/api"
)

// Action is the crawler operation a job performs
type Action string

const (
	ActionStart      Action = "start"
	ActionStop       Action = "stop"
	ActionExport     Action = "export"
	ActionEnableAll  Action = "enable_all"
	ActionDisableAll Action = "disable_all"
)

// Actions lists every supported action
var Actions = []Action{ActionStart, ActionStop, ActionExport, ActionEnableAll, ActionDisableAll}

// ParseAction resolves an action name. Dashes are accepted for underscores.
func ParseAction(name string) (Action, error) {
	a := Action(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_"))
	if err := a.Validate(); err != nil {
		return "", err
	}
	return a, nil
}

// Validate reports whether a is a supported action
func (a Action) Validate() error {
	for _, known := range Actions {
		if a == known {
			return nil
		}
	}
	return fmt.Errorf("unknown action %q", string(a))
}

// CrawlerControl is the part of the crawler API jobs drive.
// *api.Client implements it.
type CrawlerControl interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	EnableAll(ctx context.Context) error
	DisableAll(ctx context.Context) error
	ExportToFile(ctx context.Context, opts api.ExportOptions, path string) (int, error)
}

// ExportConfig controls files written by export jobs
type ExportConfig struct {
	Dir     string
	Options api.ExportOptions
}

// NewActionExecutor returns an executor that performs job actions against
// the crawler. Export jobs write timestamped CSV files into cfg.Dir.
func NewActionExecutor(client CrawlerControl, cfg ExportConfig, now func() time.Time) JobExecutor {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, job *Job) error {
		switch job.Action {
		case ActionStart:
			return client.Start(ctx)
		case ActionStop:
			return client.Stop(ctx)
		case ActionEnableAll:
			return client.EnableAll(ctx)
		case ActionDisableAll:
			return client.DisableAll(ctx)
		case ActionExport:
			path := filepath.Join(cfg.Dir, api.TimestampedExportFile(now()))
			n, err := client.ExportToFile(ctx, cfg.Options, path)
			if err != nil {
				return err
			}
			log.Printf("[Scheduler] Exported %s to %s", humanize.Bytes(uint64(n)), path)
			return nil
		default:
			return job.Action.Validate()
		}
	}
}
