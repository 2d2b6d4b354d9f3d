package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"igleads/pkg/auth"
	"igleads/pkg/checkpoint"
	"igleads/pkg/classifier"
	"igleads/pkg/config"
	"igleads/pkg/contact"
	"igleads/pkg/crawler"
	"igleads/pkg/instagram"
	"igleads/pkg/logger"
	"igleads/pkg/metrics"
	"igleads/pkg/models"
	"igleads/pkg/ratelimit"
	"igleads/pkg/report"
	"igleads/pkg/sink"
	"igleads/pkg/storage"
	"igleads/pkg/ui"
)

var (
	// Crawl command flags
	seedHandles   []string
	seedFile      string
	maxDepth      int
	maxProfiles   int
	workers       int
	minDelay      time.Duration
	maxDelay      time.Duration
	timeBudget    time.Duration
	outputDir     string
	formats       []string
	accountName   string
	sessionID     string
	csrfToken     string
	semantic      bool
	useCheckpoint bool
	resumeCrawl   bool
	freshCrawl    bool
	metricsListen string
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl [handle...]",
	Short: "Crawl the follow graph from seed accounts and export leads",
	Long: `Crawl the Instagram follow graph breadth-first, starting from seed accounts.

Every visited profile is checked against the relevance keywords (or the
embedding classifier when enabled). Relevant profiles are classified, their
WhatsApp contact details extracted, and the result written to every configured
output. Only relevant profiles are expanded to their followers and followings.

The crawl stops when the profile cap is reached, the depth limit is exhausted,
the time budget runs out or the process is interrupted. With checkpoints
enabled an interrupted crawl can be continued with --resume.

Seeds come from the arguments, --seed, crawl.seeds and crawl.seed_file.`,
	Example: `  # Crawl two levels out from two seed shops
  igleads crawl celularesmx reparaciones.cdmx --max-depth 2

  # Read seeds from a file, stop after 200 leads, write CSV and SQLite
  igleads crawl --seed-file seeds.txt --max-profiles 200 --format csv,sqlite

  # Use a specific stored account and four parallel fetches
  igleads crawl tiendacel --account scout --workers 4

  # Continue an interrupted crawl
  igleads crawl --seed-file seeds.txt --resume`,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	f := crawlCmd.Flags()
	f.StringSliceVar(&seedHandles, "seed", nil, "seed handle (repeatable or comma separated)")
	f.StringVar(&seedFile, "seed-file", "", "file with one seed handle per line")
	f.IntVar(&maxDepth, "max-depth", 1, "levels to expand beyond the seeds")
	f.IntVar(&maxProfiles, "max-profiles", 100, "stop after this many leads")
	f.IntVarP(&workers, "workers", "w", 1, "profiles fetched in parallel within a level")
	f.DurationVar(&minDelay, "min-delay", 0, "minimum pause between requests (e.g. 2s)")
	f.DurationVar(&maxDelay, "max-delay", 0, "maximum pause between requests (e.g. 6s)")
	f.DurationVar(&timeBudget, "time-budget", 0, "stop the crawl after this long (e.g. 45m)")
	f.StringVarP(&outputDir, "output", "o", "", "output directory (default: ./leads)")
	f.StringSliceVarP(&formats, "format", "f", nil, "output formats: csv, jsonl, sqlite")
	f.StringVarP(&accountName, "account", "a", "", "use a specific stored account")
	f.StringVar(&sessionID, "session-id", "", "Instagram sessionid cookie")
	f.StringVar(&csrfToken, "csrf-token", "", "Instagram csrftoken cookie")
	f.BoolVar(&semantic, "semantic", false, "use the embedding classifier for relevance")
	f.BoolVar(&useCheckpoint, "checkpoint", true, "save checkpoints while crawling")
	f.BoolVar(&resumeCrawl, "resume", false, "resume from the checkpoint for these seeds")
	f.BoolVar(&freshCrawl, "fresh", false, "discard any checkpoint for these seeds")
	f.StringVar(&metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address (e.g. :9090)")

	crawlCmd.MarkFlagsMutuallyExclusive("resume", "fresh")
}

// crawlFlags builds the config override map from the flags the user set.
// Unset flags never override the configuration file.
func crawlFlags(cmd *cobra.Command, args []string) map[string]interface{} {
	flags := make(map[string]interface{})
	changed := cmd.Flags().Changed

	seeds := append([]string(nil), args...)
	seeds = append(seeds, seedHandles...)
	if len(seeds) > 0 {
		flags["seeds"] = seeds
	}
	if seedFile != "" {
		flags["seed-file"] = seedFile
	}
	if changed("max-depth") {
		flags["max-depth"] = maxDepth
	}
	if changed("max-profiles") {
		flags["max-profiles"] = maxProfiles
	}
	if changed("workers") {
		flags["workers"] = workers
	}
	if changed("min-delay") {
		flags["min-delay"] = minDelay
	}
	if changed("max-delay") {
		flags["max-delay"] = maxDelay
	}
	if changed("time-budget") {
		flags["time-budget"] = timeBudget
	}

	if outputDir != "" {
		flags["output"] = outputDir
	}
	if len(formats) > 0 {
		flags["formats"] = formats
	}
	if accountName != "" {
		flags["account"] = accountName
	}
	if sessionID != "" {
		flags["session-id"] = sessionID
	}
	if csrfToken != "" {
		flags["csrf-token"] = csrfToken
	}
	if changed("semantic") {
		flags["semantic"] = semantic
	}
	if changed("checkpoint") {
		flags["checkpoint"] = useCheckpoint
	}
	if metricsListen != "" {
		flags["metrics-listen"] = metricsListen
	}
	return flags
}

func runCrawl(cmd *cobra.Command, args []string) error {
	p := printer(cmd)

	cfg, log, err := loadConfig(crawlFlags(cmd, args))
	if err != nil {
		return err
	}
	p.Logo()

	raw, err := cfg.Crawl.ResolveSeeds()
	if err != nil {
		return err
	}
	handles, invalid := models.NormalizeHandles(raw)
	for _, s := range invalid {
		p.Warning(fmt.Sprintf("Skipping invalid seed %q", s))
	}
	if len(handles) == 0 {
		return errors.New("no seed handles: pass them as arguments, with --seed, or in crawl.seed_file")
	}
	seeds := make([]string, len(handles))
	for i, h := range handles {
		seeds[i] = string(h)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newInstagramClient(cfg, log, p)
	if err != nil {
		return err
	}

	cls, err := buildClassifier(ctx, cfg, log)
	if err != nil {
		return err
	}

	var (
		cpMgr  *checkpoint.Manager
		resume *checkpoint.Checkpoint
	)
	if cfg.Checkpoint.Enabled {
		cpMgr, resume, err = openCheckpoint(cfg.Checkpoint, seeds, log)
		if err != nil {
			return err
		}
	}

	runID := uuid.NewString()
	if resume != nil && resume.RunID != "" {
		runID = resume.RunID
	}

	store, err := storage.NewManager(cfg.Sink.OutputDir)
	if err != nil {
		return err
	}
	stack, err := sink.Build(ctx, cfg.Sink, runID, store, log)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	prom, err := metrics.NewPrometheus(reg)
	if err != nil {
		stack.Sink.Close()
		return err
	}
	if cfg.Metrics.Listen != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, reg, log); err != nil {
				log.WithError(err).Warn("Metrics server stopped")
			}
		}()
	}

	profiles := instagram.NewProfileFetcher(client, log)
	var fetcher crawler.Fetcher = profiles
	if cfg.Instagram.PageFallback {
		fetcher = instagram.NewFallbackFetcher(log, profiles, instagram.NewPageFetcher(client, log))
	}

	deps := crawler.Dependencies{
		Fetcher:    fetcher,
		Expander:   instagram.NewGraphExpander(client, profiles, cfg.Instagram.MaxNeighbors, log),
		Classifier: cls,
		Extractor:  contact.New(cfg.Regions),
		Sink:       stack.Sink,
		Pacer:      ratelimit.NewRandomDelay(cfg.Crawl.MinDelay, cfg.Crawl.MaxDelay),
		Logger:     log,
		Recorder:   ui.NewProgress(p, prom, cfg.Crawl.MaxProfiles),
	}
	if cpMgr != nil {
		deps.Checkpointer = cpMgr
	}

	engine, err := crawler.New(deps, crawler.Options{
		MaxDepth:        cfg.Crawl.MaxDepth,
		MaxProfiles:     cfg.Crawl.MaxProfiles,
		Workers:         cfg.Crawl.Workers,
		CheckpointEvery: cfg.Checkpoint.Every,
		RunID:           runID,
	})
	if err != nil {
		stack.Sink.Close()
		return err
	}

	p.Info("Run", runID)
	p.Info("Seeds", fmt.Sprintf("%d", len(seeds)))
	p.Info("Output", store.OutputDir())

	runCtx := ctx
	if cfg.Crawl.TimeBudget > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Crawl.TimeBudget)
		defer cancel()
	}

	var summary *crawler.Summary
	var runErr error
	if resume != nil {
		p.Highlight(fmt.Sprintf("Resuming from depth %d with %d profiles already visited", resume.Depth, len(resume.Visited)))
		summary, runErr = engine.Resume(runCtx, resume)
	} else {
		summary, runErr = engine.Run(runCtx, seeds)
	}
	if summary == nil {
		stack.Sink.Close()
		return runErr
	}

	outputs := finishOutputs(cfg, store, stack, summary, log, p)
	p.PrintSummary(summary)
	for _, path := range outputs {
		p.Info("Wrote", path)
	}

	switch {
	case runErr == nil:
		if cpMgr != nil {
			if err := cpMgr.Delete(); err != nil {
				log.WithError(err).Warn("Failed to remove checkpoint")
			}
		}
		return nil
	case errors.Is(runErr, context.DeadlineExceeded):
		p.Warning(fmt.Sprintf("Time budget of %s used up", cfg.Crawl.TimeBudget))
		if cpMgr != nil {
			p.Plain("Run the same command with --resume to continue.")
		}
		return nil
	default:
		if cpMgr != nil {
			p.Plain("Run the same command with --resume to continue.")
		}
		return fmt.Errorf("crawl interrupted: %w", runErr)
	}
}

// newInstagramClient builds the HTTP client and applies the session picked
// from flags, configuration or the credential stores
func newInstagramClient(cfg *config.Config, log logger.Logger, p *ui.Printer) (*instagram.Client, error) {
	authMgr, err := auth.NewManager("", log)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential stores: %w", err)
	}

	session, err := authMgr.Resolve(cfg.Instagram)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			p.Error("No Instagram session found", nil)
			p.Plain("\nTo store a session, run:")
			p.Plain("  igleads auth login")
			p.Plain("\nOr set the environment variables:")
			p.Plain("  export %s=your_session_id", auth.EnvSessionID)
			p.Plain("  export %s=your_csrf_token", auth.EnvCSRFToken)
		}
		return nil, err
	}
	if err := session.Validate(); err != nil {
		return nil, err
	}

	client := instagram.NewClient(cfg.Instagram, cfg.RateLimit, log)
	client.SetSession(session.SessionID, session.CSRFToken)
	if session.UserAgent != "" {
		client.SetHeader("User-Agent", session.UserAgent)
	}
	log.WithField("account", session.Account).Info("Using Instagram session")
	p.Info("Account", session.Account)
	return client, nil
}

// buildClassifier returns the keyword classifier, or the embedding
// classifier backed by it when semantic relevance is enabled
func buildClassifier(ctx context.Context, cfg *config.Config, log logger.Logger) (classifier.Classifier, error) {
	keywords := classifier.NewKeywordClassifier(cfg.Classifier.Keywords)
	sem := cfg.Classifier.Semantic
	if !sem.Enabled {
		return keywords, nil
	}

	embedder, err := classifier.NewGenAIEmbedder(ctx, sem.APIKey, sem.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	return classifier.NewSemanticClassifier(embedder, keywords, sem.Threshold, log), nil
}

// openCheckpoint opens the checkpoint for seeds and loads it when resuming.
// An existing checkpoint must be resumed or discarded explicitly.
func openCheckpoint(cfg config.CheckpointConfig, seeds []string, log logger.Logger) (*checkpoint.Manager, *checkpoint.Checkpoint, error) {
	mgr, err := checkpoint.NewManager(cfg.Dir, checkpoint.KeyFor(seeds), log)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case freshCrawl:
		if err := mgr.Delete(); err != nil {
			return nil, nil, err
		}
		return mgr, nil, nil
	case resumeCrawl:
		cp, err := mgr.Load()
		if err != nil {
			return nil, nil, err
		}
		if cp == nil {
			log.Info("No checkpoint found, starting a new crawl")
		}
		return mgr, cp, nil
	case mgr.Exists():
		return nil, nil, fmt.Errorf("a checkpoint exists for these seeds at %s: use --resume to continue it or --fresh to discard it", mgr.Path())
	}
	return mgr, nil, nil
}

// finishOutputs closes the sinks, folds queued write failures into the
// summary, then writes the batch export and the report. It returns the
// paths written.
func finishOutputs(cfg *config.Config, store *storage.Manager, stack *sink.Stack, summary *crawler.Summary, log logger.Logger, p *ui.Printer) []string {
	if err := stack.Sink.Close(); err != nil {
		log.WithError(err).Warn("Some outputs did not close cleanly")
	}
	if stack.Async != nil {
		summary.SinkFailures += int(stack.Async.Failed())
	}

	outputs := append([]string(nil), stack.Files...)
	leads := stack.Memory.Leads()

	exportName := sink.FileName(summary.RunID, "export.csv")
	if err := sink.ExportBatch(store, exportName, leads); err != nil {
		p.Error("Failed to write batch export", err)
	} else {
		outputs = append(outputs, store.Path(exportName))
	}

	if cfg.Sink.Report {
		path, err := report.WriteFile(store, report.DefaultName, report.Report{
			Summary: summary,
			Leads:   leads,
			Outputs: outputs,
		})
		if err != nil {
			p.Error("Failed to write report", err)
		} else {
			outputs = append(outputs, path)
		}
	}
	return outputs
}
