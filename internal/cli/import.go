package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/deadonfilm/morbid/internal/model"
	"github.com/deadonfilm/morbid/internal/storage"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load subjects from a JSON lines export",
	Long: `Import reads one subject per line, as JSON with person_id, name,
birth, and death fields, and inserts any that are not already present.
Existing rows are left untouched, so re-importing the same export is
safe.

Example:
  morbid import dead_actors.jsonl`,
	Args: cobra.ExactArgs(1),
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

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		var imported, skipped int
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			var subject model.Subject
			if err := json.Unmarshal([]byte(line), &subject); err != nil {
				skipped++
				if verbose {
					fmt.Fprintf(os.Stderr, "skipping malformed line: %v\n", err)
				}
				continue
			}
			if subject.PersonID == 0 || subject.Name == "" {
				skipped++
				continue
			}

			if err := store.InsertSubject(ctx, subject); err != nil {
				return err
			}
			imported++
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read import file: %w", err)
		}

		fmt.Fprintf(os.Stderr, "Imported %d subjects (%d lines skipped)\n", imported, skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
