package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/deadonfilm/morbid/internal/browser"
	"github.com/deadonfilm/morbid/internal/cache"
	"github.com/deadonfilm/morbid/internal/fusion"
	"github.com/deadonfilm/morbid/internal/llm"
	"github.com/deadonfilm/morbid/internal/model"
	"github.com/deadonfilm/morbid/internal/source"
	"github.com/deadonfilm/morbid/internal/storage"
	"github.com/deadonfilm/morbid/internal/util"
	"github.com/deadonfilm/morbid/internal/worker"
)

var (
	enrichLimit       int
	enrichConcurrency int
	enrichTimeout     time.Duration
	enrichNoBrowser   bool
	enrichNoCache     bool
	enrichPerson      int
)

// enrichCmd represents the enrich command
var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Research death details for subjects missing them",
	Long: `Enrich runs the interactive research pipeline:
- Select subjects with a recorded death but no cause yet
- Query each enabled source adapter, most reliable first
- Fuse the collected evidence into one cleaned record
- Write new fields to the database; existing values are never replaced

Blocked sources are skipped, metered sources respect the configured
cost ceilings, and a subject with no findable information is marked
terminal so it is not retried on every run.

Example:
  morbid enrich --limit 50
  morbid enrich --person 31415
  morbid enrich --limit 200 --concurrency 8 --no-browser`,
	RunE: runEnrich,
}

func init() {
	rootCmd.AddCommand(enrichCmd)

	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 25, "maximum subjects to research this run")
	enrichCmd.Flags().IntVar(&enrichConcurrency, "concurrency", 4, "subjects researched in parallel")
	enrichCmd.Flags().DurationVar(&enrichTimeout, "timeout", 30*time.Minute, "overall run timeout")
	enrichCmd.Flags().BoolVar(&enrichNoBrowser, "no-browser", false, "disable the headless browser (skips browser-only sources)")
	enrichCmd.Flags().BoolVar(&enrichNoCache, "no-cache", false, "disable the page cache (force fresh fetches)")
	enrichCmd.Flags().IntVar(&enrichPerson, "person", 0, "research a single subject by person id")
}

func runEnrich(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if enrichNoBrowser {
		cfg.Browser.Enabled = false
	}
	if enrichNoCache {
		cfg.Cache.Enabled = false
	}

	ctx, cancel := context.WithTimeout(context.Background(), enrichTimeout)
	defer cancel()

	store, err := storage.NewStore(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	engine, mgr, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	if mgr != nil {
		defer mgr.Close()
	}

	var subjects []model.Subject
	if enrichPerson > 0 {
		subject, err := store.GetSubject(ctx, enrichPerson)
		if err != nil {
			return err
		}
		if subject == nil {
			return fmt.Errorf("no subject with person id %d", enrichPerson)
		}
		subjects = []model.Subject{*subject}
	} else {
		subjects, err = store.EligibleSubjects(ctx, enrichLimit, nil)
		if err != nil {
			return err
		}
	}
	if len(subjects) == 0 {
		fmt.Fprintln(os.Stderr, "Nothing to enrich.")
		return nil
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Researching %d subjects with %d workers\n", len(subjects), enrichConcurrency)
	}

	results := worker.NewEnrichBatch(engine, enrichConcurrency).Process(ctx, subjects)

	var enriched, noInfo, unpublishable, failed, fieldsChanged int
	ceilingHit := false
	for _, r := range results {
		if r.Error != nil {
			if errors.Is(r.Error, fusion.ErrCostCeiling) {
				ceilingHit = true
			} else {
				failed++
				fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.Subject.Name, r.Error)
			}
			continue
		}

		switch {
		case r.Result.NoInfo:
			noInfo++
			if err := store.MarkEnriched(ctx, r.Subject.PersonID); err != nil {
				return err
			}
		case !r.Result.Record.Publishable():
			unpublishable++
			if err := store.MarkEnriched(ctx, r.Subject.PersonID); err != nil {
				return err
			}
		default:
			changed, err := store.ApplyRecord(ctx, r.Subject.PersonID, r.Result.Record, "fusion", "")
			if err != nil {
				return err
			}
			enriched++
			fieldsChanged += changed
			if verbose {
				fmt.Fprintf(os.Stderr, "✓ %s: %s (%d fields)\n", r.Subject.Name, r.Result.Record.Cause, changed)
			}
		}
	}

	fmt.Fprintf(os.Stderr, "\nEnriched %d, no info %d, withheld %d, failed %d (%d fields written, $%.4f spent)\n",
		enriched, noInfo, unpublishable, failed, fieldsChanged, engine.TotalSpend())
	if ceilingHit {
		fmt.Fprintln(os.Stderr, "Cost ceiling reached; remaining subjects left for the next run.")
	}
	return nil
}

// buildEngine assembles the fetch stack, source adapters, and fusion
// engine from configuration. The returned browser manager is nil when
// the browser is disabled; callers own its shutdown.
func buildEngine(cfg *model.Config) (*fusion.Engine, *browser.Manager, error) {
	var pages cache.Cache
	if cfg.Cache.Enabled {
		pages = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	}

	var robots *util.RobotsChecker
	if cfg.Sources.RespectRobots {
		robots = util.NewRobotsChecker(cfg.HTTP.UserAgent, cfg.HTTP.Timeout)
	}

	fetcher := source.NewFetcher(cfg.HTTP, pages, robots)

	var mgr *browser.Manager
	var rendered source.RenderedFetcher
	if cfg.Browser.Enabled {
		var solver browser.CaptchaSolver = browser.NoSolver{}
		if cfg.Browser.SolverAPIKey != "" {
			solver = browser.NewAPISolver(cfg.Browser.SolverAPIKey, cfg.Browser.SolverCostEach)
		}
		mgr = browser.NewManager(cfg.Browser, solver)
		rendered = mgr
	}

	candidates := []source.Adapter{
		source.NewWikidataAdapter(fetcher),
		source.NewWikipediaAdapter(fetcher),
		source.NewTradePressAdapter(rendered),
		source.NewWaybackAdapter(fetcher),
		source.NewFindAGraveAdapter(fetcher),
		source.NewLLMResearchAdapter(cfg.LLM),
	}

	registry, err := source.NewRegistry(cfg.Sources.Enabled, candidates)
	if err != nil {
		return nil, nil, err
	}

	synth, err := llm.NewSynthesizer(cfg.LLM)
	if err != nil {
		return nil, nil, err
	}

	return fusion.NewEngine(registry, synth, cfg.Cost, cfg.Output.Verbose), mgr, nil
}
