package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/abrezinsky/autobid/internal/errors"
	"github.com/abrezinsky/autobid/internal/models"
	"github.com/abrezinsky/autobid/internal/services"
)

var (
	runMethod        string
	runTimetableFile string
	runAt            string
	runDryRun        bool
	runCourses       []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Register the courses in the catalog",
	Long: `Run logs in to the registration portal and registers every course in
the catalog, in catalog order, until each one is registered or abandoned.

Examples:
  # Register everything now with the configured method
  autobid run

  # Drive a real browser instead of plain HTTP
  autobid run --method browser

  # Replace the catalog with a timetable file first
  autobid run --timetable-file timetable.txt

  # Wait for registration to open at 09:00
  autobid run --at "0 9 * * *"

  # Exercise the whole pipeline against a simulated portal
  autobid run --dry-run --courses CSC1001,MPU3113`,
	RunE: runRegistration,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runMethod, "method", "m", "", "Submission method: http or browser (default from settings)")
	runCmd.Flags().StringVarP(&runTimetableFile, "timetable-file", "f", "", "Replace the catalog with this timetable or JSON file before running")
	runCmd.Flags().StringVar(&runAt, "at", "", "Wait for the next time matching this cron spec before starting")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Run against a simulated portal")
	runCmd.Flags().StringSliceVar(&runCourses, "courses", nil, "Only register these course codes")
}

func runRegistration(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withApp(cmd, func(env *environment) error {
		out := cmd.OutOrStdout()

		if runTimetableFile != "" {
			courses, err := env.app.Catalog().ImportFile(ctx, runTimetableFile)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Imported %d courses from %s\n", len(courses), runTimetableFile)
		}

		opts := services.RunOptions{Method: runMethod, Codes: runCourses, DryRun: runDryRun}

		if runAt != "" {
			next, err := nextRunTime(env.app.Runs(), runAt, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%sWaiting until %s%s\n", yellow, next.Format(time.RFC1123), reset)
			if err := sleepUntil(ctx, next); err != nil {
				fmt.Fprintf(out, "%sStopped by user before the run started%s\n", yellow, reset)
				return nil
			}
		}

		summary, err := env.app.Runs().Run(ctx, opts)
		if summary != nil {
			printSummary(out, summary)
		}
		if errors.Is(err, errors.ErrCancelled) {
			if summary == nil {
				fmt.Fprintf(out, "%sStopped by user%s\n", yellow, reset)
			}
			return nil
		}
		if err != nil {
			return err
		}
		if !summary.AllSatisfied() {
			return fmt.Errorf("%d of %d courses not registered",
				len(summary.Results)-summary.Count(models.StateSatisfied), len(summary.Results))
		}
		return nil
	})
}

// nextRunTime validates spec with the run scheduler and returns its next activation
func nextRunTime(runs *services.RunService, spec string, opts services.RunOptions) (time.Time, error) {
	sched, err := runs.ScheduleRun(spec, opts)
	if err != nil {
		return time.Time{}, err
	}
	if err := runs.Unschedule(); err != nil {
		return time.Time{}, err
	}
	return sched.Next, nil
}

// sleepUntil blocks until t or until ctx ends
func sleepUntil(ctx context.Context, t time.Time) error {
	timer := time.NewTimer(time.Until(t))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// printSummary writes the per-course results of a run as a table
func printSummary(w io.Writer, summary *models.RunSummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tNAME\tSTATE\tOUTCOME\tATTEMPTS\tMESSAGE")
	for _, r := range summary.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", r.Code, r.Name, r.State, r.Outcome, r.Attempts, r.Message)
	}
	tw.Flush()

	status := "completed"
	if summary.Stopped {
		status = "stopped"
	}
	fmt.Fprintf(w, "\nRun %s %s after %d %s: %d/%d registered\n",
		summary.RunID, status, summary.Passes, plural(summary.Passes, "pass", "passes"),
		summary.Count(models.StateSatisfied), len(summary.Results))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
