// Package check implements the one-shot check command.
package check

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	cmdcommon "github.com/Speed-Jobs/jobwatch/cmd/common"
	"github.com/Speed-Jobs/jobwatch/internal/diff"
	"github.com/Speed-Jobs/jobwatch/internal/metrics"
	"github.com/Speed-Jobs/jobwatch/internal/notify"
)

// Command returns the check command for use in the root command.
func Command() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a single check cycle against the posting source",
		Long: `Fetches the posting source once, diffs it against the snapshot store
and announces new postings through the configured sinks. On a fresh
store this seeds the baseline and reports nothing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := cmdcommon.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}
			defer deps.Close()

			return run(cmd, deps, quiet)
		},
	}

	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress stdout output, only notify sinks")
	return cmd
}

func run(cmd *cobra.Command, deps *cmdcommon.CommandDeps, quiet bool) error {
	ctx := cmd.Context()

	source, err := deps.NewSource()
	if err != nil {
		return err
	}

	batch, err := source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch postings: %w", err)
	}

	engine := diff.NewEngine(deps.Store, deps.Logger)
	result, err := engine.Run(ctx, batch, time.Now())
	if err != nil {
		return fmt.Errorf("check cycle failed: %w", err)
	}

	dispatcher := deps.NewDispatcher(metrics.NewUnregistered())
	dispatcher.RequestPermission(ctx)
	dispatcher.Dispatch(result)
	dispatcher.Close()

	if quiet {
		return nil
	}

	if !result.HasNew() {
		cmd.Printf("Checked %d posting(s), nothing new.\n", len(batch))
		return nil
	}

	cmd.Println(notify.Summarize(result.New))
	for _, job := range result.New {
		cmd.Printf("  %s - %s (%s)\n", job.Title, job.Company, job.Location)
	}
	return nil
}
