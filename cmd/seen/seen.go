// Package seen implements inspection commands for the snapshot store.
package seen

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	cmdcommon "github.com/Speed-Jobs/jobwatch/cmd/common"
)

// Command returns the seen command group for use in the root command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seen",
		Short: "Inspect and manage the snapshot store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(listCommand())
	cmd.AddCommand(clearCommand())
	return cmd
}

// listCommand renders the stored fingerprints as a table.
func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List observed posting fingerprints",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := cmdcommon.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}
			defer deps.Close()

			ctx := cmd.Context()
			entries, err := deps.Store.Entries(ctx)
			if err != nil {
				return fmt.Errorf("failed to list entries: %w", err)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Fingerprint", "First Seen", "Last Seen"})
			for _, entry := range entries {
				t.AppendRow(table.Row{
					string(entry.Fingerprint),
					entry.FirstSeenAt.Local().Format(time.RFC3339),
					entry.LastSeenAt.Local().Format(time.RFC3339),
				})
			}
			t.Render()

			if lastCheck, err := deps.Store.LastCheck(ctx); err == nil && !lastCheck.IsZero() {
				cmd.Printf("Last check: %s\n", lastCheck.Local().Format(time.RFC3339))
			}
			cmd.Printf("%d entr%s\n", len(entries), plural(len(entries)))
			return nil
		},
	}
}

// clearCommand wipes the snapshot store; the next check re-seeds.
func clearCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the snapshot store",
		Long: `Removes every stored fingerprint and the check marker. The next
check cycle treats the source as a fresh baseline and announces
nothing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear without --yes")
			}

			deps, err := cmdcommon.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}
			defer deps.Close()

			if err := deps.Store.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear store: %w", err)
			}
			cmd.Println("Snapshot store cleared.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm clearing the store")
	return cmd
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
