package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTestConnectionCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection",
		Short: "Check the source connection of the workflow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.newApp()
			if err != nil {
				return err
			}
			defer a.Cleanup()

			result, err := a.TestConnection(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, step := range result.Steps {
				mark := "PASS"
				if !step.Passed {
					mark = "FAIL"
				}
				fmt.Fprintf(out, "[%s] %s", mark, step.Name)
				if step.Message != "" {
					fmt.Fprintf(out, ": %s", step.Message)
				}
				fmt.Fprintln(out)
			}

			if !result.Passed() {
				return fmt.Errorf("connection test failed")
			}
			return nil
		},
	}
}
