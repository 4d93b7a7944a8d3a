package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"metadata-ingestion/internal/app"
)

func newRunCommand(o *rootOptions) *cobra.Command {
	var schedule string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the ingestion workflow",
		Example: `  ingest run -c workflow.yaml
  ingest run -c workflow.yaml --schedule "0 */6 * * *"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := o.newApp()
			if err != nil {
				return err
			}
			defer a.Cleanup()

			if schedule != "" {
				s, err := app.NewScheduler(a, schedule)
				if err != nil {
					return err
				}
				return s.Run(ctx)
			}

			result, err := a.RunWorkflow(ctx)
			if result != nil {
				printResult(cmd, result)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", "cron expression; repeat the workflow until interrupted")
	return cmd
}

func printResult(cmd *cobra.Command, r *app.RunResult) {
	out := cmd.OutOrStdout()
	if r.RunID != "" {
		fmt.Fprintf(out, "Run %s\n", r.RunID)
	}
	fmt.Fprintf(out, "Source: %d records, %d filtered, %d warnings, %d failures\n",
		r.Source.Records, r.Source.Filtered, r.Source.Warnings, r.Source.Failures)
	fmt.Fprintf(out, "Sink:   %d records, %d warnings, %d failures\n",
		r.Sink.Records, r.Sink.Warnings, r.Sink.Failures)
	fmt.Fprintf(out, "Success: %.2f%%\n", r.SuccessPct)
	for _, f := range r.Failures {
		fmt.Fprintf(out, "  - %s: %s\n", f.Name, f.Error)
	}
}

