package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/uirecorder/teststore/pkg/testmodel"
)

func newReportsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Submit and list execution reports",
	}

	cmd.AddCommand(newReportsListCommand())
	cmd.AddCommand(newReportsSubmitCommand())

	return cmd
}

func newReportsListCommand() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reports of an owner, most recent first",
		Example: `  teststore reports list --limit 20
  teststore reports list --owner pixel-7 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			reports, err := rt.store.ListReports(cmd.Context(), rt.cfg.Owner, limit, offset)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), reports)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tVERSION\tSTARTED\tDURATION\tPASSED\tFAILED\tSUCCESS")
			for _, r := range reports {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%d\t%d\t%t\n",
					r.ID,
					r.Name,
					r.Version,
					r.StartTime.UTC().Format("2006-01-02 15:04:05"),
					r.EndTime.Sub(r.StartTime),
					r.PassedSteps(),
					r.ErrorSteps(),
					r.Success,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of reports (0 for all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of reports to skip")

	return cmd
}

func newReportsSubmitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "submit <file>",
		Short: "Store the report in a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			var report testmodel.Report
			if err := json.Unmarshal(data, &report); err != nil {
				return fmt.Errorf("failed to parse report: %w", err)
			}
			if report.RunID == "" {
				report.RunID = uuid.New().String()
			}

			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			id, err := rt.store.SubmitReport(cmd.Context(), rt.cfg.Owner, report)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]any{"id": id, "runId": report.RunID})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Report %d stored (run %s)\n", id, report.RunID)
			return nil
		},
	}
}
