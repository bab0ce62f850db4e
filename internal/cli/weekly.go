package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/deadonfilm/morbid/internal/storage"
	"github.com/deadonfilm/morbid/internal/weekly"
)

var (
	weeklyStart string
	weeklyDays  int
	weeklyJSON  bool
)

// weeklyCmd represents the weekly command
var weeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "List subjects whose death anniversary falls this week",
	Long: `Weekly selects subjects whose death anniversary lands inside a
rolling window, for "died this week in history" features. The window
may cross a month or year boundary; leap-day deaths surface on
February 28 in non-leap years.

Example:
  morbid weekly
  morbid weekly --start 2026-12-29 --days 7
  morbid weekly --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		start := time.Now().UTC()
		if weeklyStart != "" {
			start, err = time.Parse("2006-01-02", weeklyStart)
			if err != nil {
				return fmt.Errorf("invalid --start date %q: %w", weeklyStart, err)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		store, err := storage.NewStore(cfg.Storage.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		subjects, err := weekly.Select(ctx, store, weekly.NewWindow(start, weeklyDays))
		if err != nil {
			return err
		}

		if weeklyJSON {
			return json.NewEncoder(os.Stdout).Encode(subjects)
		}

		if len(subjects) == 0 {
			fmt.Fprintln(os.Stderr, "No anniversaries in the window.")
			return nil
		}
		for _, subject := range subjects {
			line := fmt.Sprintf("%s (died %s)", subject.Name, subject.Death)
			if subject.Cause != "" {
				line += ": " + subject.Cause
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(weeklyCmd)
	weeklyCmd.Flags().StringVar(&weeklyStart, "start", "", "window start date (default today, UTC)")
	weeklyCmd.Flags().IntVar(&weeklyDays, "days", 7, "window length in days")
	weeklyCmd.Flags().BoolVar(&weeklyJSON, "json", false, "emit JSON instead of text")
}
