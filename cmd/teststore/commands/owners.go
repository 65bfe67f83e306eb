package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newOwnersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "owners",
		Short: "Inspect owners",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every owner that has stored a test",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			owners, err := rt.store.ListOwners(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), owners)
			}
			for _, owner := range owners {
				fmt.Fprintln(cmd.OutOrStdout(), owner)
			}
			return nil
		},
	})

	return cmd
}
