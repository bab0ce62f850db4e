package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/deadonfilm/morbid/internal/batch"
	"github.com/deadonfilm/morbid/internal/checkpoint"
	"github.com/deadonfilm/morbid/internal/storage"
)

var (
	batchLimit   int
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run bulk research through an asynchronous job provider",
	Long: `Batch researches many subjects at once through the provider's
asynchronous job API, at a fraction of interactive cost:

  morbid batch submit          submit one request per eligible subject
  morbid batch status <job>    poll a submitted job
  morbid batch apply <job>     apply a finished job's results
  morbid batch jobs            list jobs with live checkpoints

Apply progress is checkpointed. If an apply pass crashes, run it
again; already-applied subjects are skipped and field writes are
idempotent, so nothing is double-counted.`,
}

var batchSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a research job for eligible subjects",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
		defer cancel()

		controller, store, err := buildController()
		if err != nil {
			return err
		}
		defer store.Close()

		jobID, count, err := controller.Submit(ctx)
		if err != nil {
			return err
		}
		if count == 0 {
			fmt.Fprintln(os.Stderr, "No eligible subjects outside in-flight jobs.")
			return nil
		}

		fmt.Printf("%s\n", jobID)
		fmt.Fprintf(os.Stderr, "Submitted %d subjects. Poll with: morbid batch status %s\n", count, jobID)
		return nil
	},
}

var batchStatusCmd = &cobra.Command{
	Use:   "status <job>",
	Short: "Poll a submitted job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
		defer cancel()

		controller, store, err := buildController()
		if err != nil {
			return err
		}
		defer store.Close()

		status, err := controller.Status(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "Job %s: %s (%d/%d complete, %d failed)\n",
			status.ID, status.Status, status.Completed, status.Total, status.Failed)

		switch status.Status {
		case batch.JobProcessing:
			return ErrStillProcessing
		case batch.JobFailed:
			return fmt.Errorf("job %s failed at the provider", status.ID)
		}
		fmt.Fprintf(os.Stderr, "Apply with: morbid batch apply %s\n", status.ID)
		return nil
	},
}

var batchApplyCmd = &cobra.Command{
	Use:   "apply <job>",
	Short: "Apply a finished job's results to the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
		defer cancel()

		controller, store, err := buildController()
		if err != nil {
			return err
		}
		defer store.Close()

		summary, err := controller.Apply(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "Applied %d results (%d skipped as already applied)\n", summary.Applied, summary.Skipped)
		fmt.Fprintf(os.Stderr, "  succeeded: %d\n", summary.Succeeded)
		fmt.Fprintf(os.Stderr, "  errored:   %d\n", summary.Errored)
		fmt.Fprintf(os.Stderr, "  expired:   %d\n", summary.Expired)
		fmt.Fprintf(os.Stderr, "  fields:    %d\n", summary.Changed)
		if summary.Retired {
			fmt.Fprintln(os.Stderr, "Checkpoint retired; job is fully accounted for.")
		} else {
			fmt.Fprintln(os.Stderr, "Checkpoint kept: some results errored or expired.")
		}
		return nil
	},
	Args: cobra.ExactArgs(1),
}

var batchJobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List jobs with live checkpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		checkpoints := checkpoint.NewStore(cfg.Checkpoint.Dir)
		jobs, err := checkpoints.List()
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Fprintln(os.Stderr, "No jobs in flight.")
			return nil
		}

		for _, jobID := range jobs {
			cp, err := checkpoints.Load(jobID)
			if err != nil || cp == nil {
				continue
			}
			fmt.Printf("%s  %s  %d/%d applied (%d errored, %d expired)\n",
				cp.JobID, cp.State, cp.AppliedCount(), cp.Submitted, cp.Errored, cp.Expired)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.AddCommand(batchSubmitCmd, batchStatusCmd, batchApplyCmd, batchJobsCmd)

	batchCmd.PersistentFlags().DurationVar(&batchTimeout, "timeout", 15*time.Minute, "timeout for the provider call")
	batchSubmitCmd.Flags().IntVar(&batchLimit, "limit", 0, "cap subjects this submission (0 uses the configured limit)")
}

// buildController wires storage, checkpoints, and the job provider.
// Caller closes the returned store.
func buildController() (*batch.Controller, *storage.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if batchLimit > 0 {
		cfg.Batch.Limit = batchLimit
	}

	provider, err := batch.NewOpenAIProvider(cfg.LLM.APIKey, cfg.Batch)
	if err != nil {
		return nil, nil, err
	}

	store, err := storage.NewStore(cfg.Storage.Path)
	if err != nil {
		return nil, nil, err
	}

	controller := batch.NewController(store, checkpoint.NewStore(cfg.Checkpoint.Dir), provider, cfg.Batch)
	if verbose {
		controller.Logf = logf
	}
	return controller, store, nil
}
