package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"crawlwatch/internal/scheduler"
)

var (
	jobName     string
	jobDisabled bool
	jobOneShot  bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage scheduled crawler operations",
	Long: `Scheduled jobs start or stop the crawler, export data, or enable/disable all
accounts on a cron schedule. Jobs run while 'crawlwatch daemon' is running.

Actions: ` + actionNames(),
}

// openJobs loads the job store without starting the scheduler
func openJobs() (*scheduler.Scheduler, error) {
	env, err := loadRuntime()
	if err != nil {
		return nil, err
	}
	s := scheduler.New(env.dd.Root(), nil)
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openJobs()
		if err != nil {
			return err
		}
		jobs := s.ListJobs()

		out := cmd.OutOrStdout()
		if len(jobs) == 0 {
			fmt.Fprintln(out, "No scheduled jobs.")
			fmt.Fprintln(out, `Add one with: crawlwatch jobs add "0 8 * * *" start`)
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSCHEDULE\tACTION\tENABLED\tRUNS\tLAST RUN\tLAST ERROR")
		for _, j := range jobs {
			lastRun := "-"
			if j.LastRun != nil {
				lastRun = humanize.Time(*j.LastRun)
			}
			lastErr := j.LastError
			if lastErr == "" {
				lastErr = "-"
			}
			name := j.Name
			if name == "" {
				name = "-"
			}
			enabled := "yes"
			if !j.Enabled {
				enabled = "no"
			}
			if j.OneShot {
				enabled += " (once)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
				shortID(j.ID), name, j.Schedule, j.Action, enabled, j.RunCount, lastRun, lastErr)
		}
		return w.Flush()
	},
}

var jobsAddCmd = &cobra.Command{
	Use:   "add <schedule> <action>",
	Short: "Add a scheduled job",
	Long: `Add a job. The schedule is a 5-field cron expression, a 6-field expression
with seconds, or a descriptor such as @daily or "@every 2h".

Actions: ` + actionNames(),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		action, err := scheduler.ParseAction(args[1])
		if err != nil {
			return err
		}
		s, err := openJobs()
		if err != nil {
			return err
		}

		job := &scheduler.Job{
			Name:     jobName,
			Schedule: args[0],
			Action:   action,
			Enabled:  !jobDisabled,
			OneShot:  jobOneShot,
		}
		if err := s.AddJob(job); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Added job %s (%s %s)\n", job.ID, job.Action, job.Schedule)
		if job.NextRun != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Next run: %s\n", job.NextRun.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var jobsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a scheduled job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJob(args[0], func(s *scheduler.Scheduler, id string) error {
			if err := s.RemoveJob(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed job %s\n", id)
			return nil
		})
	},
}

var jobsEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable a scheduled job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJob(args[0], func(s *scheduler.Scheduler, id string) error {
			if err := s.EnableJob(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Enabled job %s\n", id)
			return nil
		})
	},
}

var jobsDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a scheduled job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJob(args[0], func(s *scheduler.Scheduler, id string) error {
			if err := s.DisableJob(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Disabled job %s\n", id)
			return nil
		})
	},
}

func init() {
	jobsAddCmd.Flags().StringVar(&jobName, "name", "", "display name")
	jobsAddCmd.Flags().BoolVar(&jobDisabled, "disabled", false, "add the job disabled")
	jobsAddCmd.Flags().BoolVar(&jobOneShot, "once", false, "remove the job after its first run")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsAddCmd)
	jobsCmd.AddCommand(jobsRemoveCmd)
	jobsCmd.AddCommand(jobsEnableCmd)
	jobsCmd.AddCommand(jobsDisableCmd)
}

// withJob opens the job store and resolves a full or abbreviated job ID
func withJob(ref string, fn func(s *scheduler.Scheduler, id string) error) error {
	s, err := openJobs()
	if err != nil {
		return err
	}
	id, err := resolveJobID(s.ListJobs(), ref)
	if err != nil {
		return err
	}
	return fn(s, id)
}

// resolveJobID accepts a full ID or a unique prefix
func resolveJobID(jobs []*scheduler.Job, ref string) (string, error) {
	var matches []string
	for _, j := range jobs {
		if j.ID == ref {
			return j.ID, nil
		}
		if strings.HasPrefix(j.ID, ref) {
			matches = append(matches, j.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("job %s not found", ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("job ID %s is ambiguous (%d matches)", ref, len(matches))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func actionNames() string {
	names := make([]string, len(scheduler.Actions))
	for i, a := range scheduler.Actions {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}
