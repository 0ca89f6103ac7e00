package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyCSV   string
)

var historyCmd = &cobra.Command{
	Use:   "history [RUN_ID]",
	Short: "List past runs, or show one run",
	Long: `History lists the most recent runs. With a run id it shows the results
and the attempt log of that run, and --csv writes its results to a file.

Examples:
  autobid history
  autobid history 3f2c9a1e-... --csv results.csv`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(env *environment) error {
			if len(args) == 1 {
				return showRun(cmd, env, args[0])
			}
			runs, err := env.app.Runs().History(cmd.Context(), historyLimit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs yet")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tMETHOD\tSTATUS\tPASSES\tMESSAGE")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
					r.ID, r.StartedAt.Local().Format(time.DateTime), r.Method, r.Status, r.Passes, r.Message)
			}
			return tw.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list")
	historyCmd.Flags().StringVar(&historyCSV, "csv", "", "Write the results of RUN_ID to this CSV file")
}

func showRun(cmd *cobra.Command, env *environment, id string) error {
	ctx := cmd.Context()
	if historyCSV != "" {
		f, err := os.Create(historyCSV)
		if err != nil {
			return err
		}
		if err := env.app.Runs().ExportResults(ctx, id, f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Results written to %s\n", historyCSV)
		return nil
	}

	detail, err := env.app.Runs().Detail(ctx, id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (%s, %s) started %s\n\n",
		detail.Run.ID, detail.Run.Method, detail.Run.Status, detail.Run.StartedAt.Local().Format(time.DateTime))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tNAME\tSTATE\tOUTCOME\tATTEMPTS\tMESSAGE")
	for _, r := range detail.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", r.Code, r.Name, r.State, r.Outcome, r.Attempts, r.Message)
	}
	tw.Flush()

	if len(detail.Attempts) == 0 {
		return nil
	}
	fmt.Fprintln(out, "\nAttempts:")
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, a := range detail.Attempts {
		fmt.Fprintf(tw, "%s\t%s\t#%d\t%s\t%s\n",
			a.CreatedAt.Local().Format(time.TimeOnly), a.Code, a.Attempt, a.Outcome, a.Message)
	}
	return tw.Flush()
}
