package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/deadonfilm/morbid/internal/reprocess"
	"github.com/deadonfilm/morbid/internal/storage"
)

var reprocessJob string

// reprocessCmd represents the reprocess command
var reprocessCmd = &cobra.Command{
	Use:   "reprocess",
	Short: "Replay stored failure records through the current parser",
	Long: `Reprocess re-parses batch responses that failed to parse or
validate when they first arrived. The raw responses were kept, so a
parser fix recovers them without resubmitting (or re-paying for) any
job. Responses that still fail stay pending for the next fix.

Example:
  morbid reprocess
  morbid reprocess --job batch_68a9f2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		store, err := storage.NewStore(cfg.Storage.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		runner := reprocess.NewRunner(store)
		if verbose {
			runner.Logf = logf
		}

		summary, err := runner.Run(ctx, reprocessJob)
		if err != nil {
			return err
		}
		if summary.Total == 0 {
			fmt.Fprintln(os.Stderr, "No pending failures.")
			return nil
		}

		fmt.Fprintf(os.Stderr, "Recovered %d of %d failures (%d fields written, %d still pending)\n",
			summary.Recovered, summary.Total, summary.Changed, summary.StillBad)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reprocessCmd)
	reprocessCmd.Flags().StringVar(&reprocessJob, "job", "", "only replay failures from this job")
}
