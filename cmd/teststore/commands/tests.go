package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/uirecorder/teststore/pkg/importer"
)

func newTestsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tests",
		Short: "Read and write recorded tests",
		Long: `Read and write recorded tests of one owner.

Every write stores the test one version above both the version it carries
and the version already stored. Step images are never stored.`,
	}

	cmd.AddCommand(newTestsListCommand())
	cmd.AddCommand(newTestsShowCommand())
	cmd.AddCommand(newTestsWriteCommand())

	return cmd
}

func newTestsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the stored tests of an owner",
		Example: `  teststore tests list --owner pixel-7
  teststore tests list --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			pending, err := rt.store.ReadTests(cmd.Context(), rt.cfg.Owner)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), pending)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tVERSION\tACTIVE\tSTEPS")
			for _, p := range pending {
				fmt.Fprintf(w, "%s\t%d\t%t\t%d\n", p.Name(), p.Test.Version, p.Test.Active, len(p.Test.Steps))
			}
			return w.Flush()
		},
	}
}

func newTestsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print one stored test as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			test, err := rt.store.GetTest(cmd.Context(), rt.cfg.Owner, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), test)
		},
	}
}

func newTestsWriteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "write <file>",
		Short: "Store the test or tests in a JSON file",
		Args:  cobra.ExactArgs(1),
		Example: `  # Store a recorded test for the default owner
  teststore tests write login.json

  # Store for a specific device
  teststore tests write suite.json --owner pixel-7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			tests, err := importer.DecodeTests(data)
			if err != nil {
				return err
			}

			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			for _, test := range tests {
				version, err := rt.store.WriteTest(cmd.Context(), rt.cfg.Owner, test)
				if err != nil {
					return err
				}
				log.Debug().Str("owner", rt.cfg.Owner).Str("test", test.Name).Int("version", version).Msg("Test stored")
				fmt.Fprintf(cmd.OutOrStdout(), "✓ %s stored at version %d\n", test.Name, version)
			}
			return nil
		},
	}
}
