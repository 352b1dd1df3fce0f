package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"carinfo-scanner/config"
	"carinfo-scanner/models"
	"carinfo-scanner/observability"
	"carinfo-scanner/query"
	"carinfo-scanner/scraper"
	"carinfo-scanner/server"
	"carinfo-scanner/services"
	"carinfo-scanner/storage"
	"carinfo-scanner/utils"
)

type options struct {
	serve       bool
	interactive bool
	file        string
	source      string
	batch       string

	make, model string
	from, to    int
	fuel, gear  string
}

func parseFlags() options {
	var o options
	flag.BoolVar(&o.serve, "serve", false, "Run the HTTP API instead of a one-shot analysis")
	flag.BoolVar(&o.interactive, "interactive", false, "Ask for the search interactively")
	flag.StringVar(&o.file, "file", "", "Analyze a saved classifieds HTML page instead of fetching")
	flag.StringVar(&o.source, "source", "", "Page URL of -file, used to resolve relative ad links")
	flag.StringVar(&o.batch, "batch", "", "CSV file of searches: make,model,start_year,end_year,fuel,gearbox")
	flag.StringVar(&o.make, "make", "", "Car make, e.g. volvo")
	flag.StringVar(&o.model, "model", "", "Car model, e.g. v70")
	flag.IntVar(&o.from, "from", 0, "First model year")
	flag.IntVar(&o.to, "to", 0, "Last model year")
	flag.StringVar(&o.fuel, "fuel", "", "petrol|diesel|electric|hybrid or 1-4")
	flag.StringVar(&o.gear, "gearbox", "", "automatic|manual or 1-2")
	flag.Parse()
	return o
}

func main() {
	opts := parseFlags()
	cfg := config.Load()
	logger := utils.NewLoggerTo(os.Stdout, os.Stderr, utils.ParseLevel(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		logger.Error("%v", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("=== car.info price scanner starting ===")
	logger.Info("Config: fetch %s (timeout %s, retries %d) | threshold %.2f | concurrency %d | rate %dms",
		cfg.FetchMode, cfg.FetchTimeout, cfg.MaxRetries, cfg.DeviationThreshold, cfg.MaxConcurrency, cfg.RateLimitMs)

	metrics := observability.NewMetrics()

	fetcher, closeFetcher := buildFetcher(ctx, cfg, metrics, logger)
	defer closeFetcher()

	archive := openArchive(ctx, cfg, logger)
	if archive != nil {
		defer archive.Close()
	}

	analyzer := services.NewAnalyzer(services.AnalyzerOptions{
		Threshold: cfg.DeviationThreshold,
		Fetcher:   fetcher,
		BaseURL:   cfg.BaseURL,
		Archive:   archive,
		Metrics:   metrics,
	}, logger)

	var err error
	switch {
	case opts.serve:
		err = serve(ctx, cfg, analyzer, metrics, logger)
	case opts.file != "":
		err = analyzeFile(analyzer, opts, logger)
	case opts.batch != "":
		err = runBatch(ctx, cfg, analyzer, opts.batch, logger)
	default:
		err = analyzeOne(ctx, analyzer, opts, logger)
	}

	if cfg.MetricsFile != "" && !opts.serve {
		if werr := metrics.WriteTextfile(cfg.MetricsFile); werr != nil {
			logger.Warn("%v", werr)
		} else {
			logger.Info("Metrics written to %s", cfg.MetricsFile)
		}
	}

	if err != nil {
		logger.Error("%v", err)
		// Deferred closes do not run on os.Exit.
		if archive != nil {
			archive.Close()
		}
		closeFetcher()
		os.Exit(1)
	}
}

// buildFetcher picks the HTTP or browser fetcher and puts the Redis page
// cache in front of it when REDIS_URL is set.
func buildFetcher(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *utils.Logger) (scraper.Fetcher, func()) {
	var base scraper.Fetcher
	if cfg.FetchMode == config.FetchModeBrowser {
		base = scraper.NewBrowserFetcher(cfg.ChromeBin, cfg.FetchTimeout, cfg.MaxRetries, logger)
	} else {
		base = scraper.NewHTTPFetcher(cfg.FetchTimeout, cfg.MaxRetries, logger)
	}
	fetcher := scraper.Recorded(base, metrics, "network")

	if cfg.RedisURL == "" {
		return fetcher, func() {}
	}
	store, err := scraper.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("Page cache disabled: %v", err)
		return fetcher, func() {}
	}
	logger.Info("Page cache enabled (ttl %s)", cfg.PageCacheTTL)
	return scraper.NewCachedFetcher(fetcher, store, cfg.PageCacheTTL, logger, metrics), func() { _ = store.Close() }
}

// openArchive returns the configured raw row archive, or nil when none is
// configured. Archive failures only disable archiving.
func openArchive(ctx context.Context, cfg *config.Config, logger *utils.Logger) storage.RawListingWriter {
	var writers storage.MultiWriter
	if cfg.RawCSVPath != "" {
		w, err := storage.NewCSVWriter(cfg.RawCSVPath)
		if err != nil {
			logger.Warn("Raw CSV archive disabled: %v", err)
		} else {
			logger.Info("Archiving raw rows to %s", cfg.RawCSVPath)
			writers = append(writers, w)
		}
	}
	if cfg.ArchiveDSN != "" {
		pa, err := storage.NewPostgresArchive(ctx, cfg.ArchiveDSN)
		if err != nil {
			logger.Warn("PostgreSQL archive disabled: %v", err)
		} else {
			logger.Info("Archiving raw rows to PostgreSQL (table: raw_listings)")
			writers = append(writers, pa)
		}
	}

	switch len(writers) {
	case 0:
		return nil
	case 1:
		return writers[0]
	default:
		return writers
	}
}

func serve(ctx context.Context, cfg *config.Config, a *services.Analyzer, metrics *observability.Metrics, logger *utils.Logger) error {
	if cfg.GinRelease {
		gin.SetMode(gin.ReleaseMode)
	}
	r := server.NewRouter(server.NewHandler(a, logger), metrics, logger)
	return server.Run(ctx, ":"+cfg.ServerPort, r, logger)
}

func analyzeFile(a *services.Analyzer, opts options, logger *utils.Logger) error {
	f, err := os.Open(opts.file)
	if err != nil {
		return fmt.Errorf("open %s: %w", opts.file, err)
	}
	defer f.Close()

	logger.Info("Analyzing %s", opts.file)
	analysis, err := a.Analyze(f, opts.source)
	return report(opts.file, analysis, err, logger)
}

func analyzeOne(ctx context.Context, a *services.Analyzer, opts options, logger *utils.Logger) error {
	q, err := resolveQuery(opts)
	if err != nil {
		return err
	}
	analysis, err := a.AnalyzeQuery(ctx, q)
	return report(q.String(), analysis, err, logger)
}

// resolveQuery builds the search from flags, or asks for it when make or
// model is missing or -interactive is set.
func resolveQuery(opts options) (query.Query, error) {
	if opts.interactive || opts.make == "" || opts.model == "" {
		return query.NewPrompter(os.Stdin, os.Stdout).Collect()
	}

	q := query.Query{Make: opts.make, Model: opts.model, StartYear: opts.from, EndYear: opts.to}
	var err error
	if q.Fuel, err = query.ParseFuel(opts.fuel); err != nil {
		return q, err
	}
	if q.Gearbox, err = query.ParseGearbox(opts.gear); err != nil {
		return q, err
	}
	return q, q.Validate()
}

func runBatch(ctx context.Context, cfg *config.Config, a *services.Analyzer, path string, logger *utils.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	queries, err := query.ReadBatch(f)
	f.Close()
	if err != nil {
		return err
	}

	results := services.NewBatchRunner(a, cfg.MaxConcurrency, cfg.RateLimit(), logger).Run(ctx, queries)
	failed := 0
	for _, r := range results {
		if r.DuplicateOf >= 0 {
			logger.Info("%s: same page as search %d", r.Query, r.DuplicateOf+1)
			continue
		}
		if err := report(r.Query.String(), r.Analysis, r.Err, logger); err != nil {
			logger.Error("%s: %v", r.Query, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d searches failed", failed, len(results))
	}
	return nil
}

// report prints the insight report for an analysis. A partial analysis
// from a failed fit is still printed so its skip counts are visible.
func report(title string, analysis *models.Analysis, err error, logger *utils.Logger) error {
	var ferr *services.FitError
	switch {
	case errors.Is(err, services.ErrNoListings):
		return fmt.Errorf("no listings found for %s", title)
	case errors.As(err, &ferr):
		logger.Warn("No price trend for %s: %v", title, err)
	case err != nil:
		return err
	}

	insights := services.NewInsightService(logger)
	insights.Print(os.Stdout, insights.Generate(title, analysis))
	return err
}
