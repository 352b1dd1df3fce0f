package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"carinfo-scanner/models"
	"carinfo-scanner/observability"
	"carinfo-scanner/query"
	"carinfo-scanner/scraper"
	"carinfo-scanner/scraper/carinfo"
	"carinfo-scanner/storage"
	"carinfo-scanner/utils"
)

// ErrNoListings means the page yielded no usable listing at all. It is kept
// apart from *FitError, which means listings exist but no trend fits them.
var ErrNoListings = errors.New("no listings found")

// Analyzer runs extract → normalize → fit → classify over one page.
type Analyzer struct {
	extractor  *carinfo.Extractor
	cleaner    *Cleaner
	classifier *Classifier
	fetcher    scraper.Fetcher
	baseURL    string
	archive    storage.RawListingWriter
	metrics    *observability.Metrics
	logger     *utils.Logger
}

// AnalyzerOptions configures an Analyzer. Zero values select defaults;
// Fetcher and Archive are only used by AnalyzeQuery.
type AnalyzerOptions struct {
	Locator   carinfo.RowLocator
	Threshold float64
	Fetcher   scraper.Fetcher
	BaseURL   string
	Archive   storage.RawListingWriter
	Metrics   *observability.Metrics
}

// NewAnalyzer wires the pipeline stages.
func NewAnalyzer(opts AnalyzerOptions, logger *utils.Logger) *Analyzer {
	return &Analyzer{
		extractor:  carinfo.NewExtractor(opts.Locator, logger),
		cleaner:    NewCleaner(logger),
		classifier: NewClassifier(opts.Threshold),
		fetcher:    opts.Fetcher,
		baseURL:    opts.BaseURL,
		archive:    opts.Archive,
		metrics:    opts.Metrics,
		logger:     logger,
	}
}

// AnalyzeQuery fetches the classifieds page for q and analyzes it.
func (a *Analyzer) AnalyzeQuery(ctx context.Context, q query.Query) (*models.Analysis, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if a.fetcher == nil {
		return nil, errors.New("analyzer: no fetcher configured")
	}

	pageURL := q.URL(a.baseURL)
	a.logger.Info("[analyzer] Fetching %s", pageURL)
	body, err := a.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("analyzer: fetch: %w", err)
	}

	extraction, err := a.extractor.Extract(strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	if a.archive != nil {
		batch := storage.RawBatch{RunID: runID, SourceURL: pageURL, Listings: extraction.Listings()}
		if err := a.archive.WriteRaw(ctx, batch); err != nil {
			a.logger.Warn("[analyzer] Run %s: archiving raw rows failed: %v", runID, err)
		}
	}
	return a.analyzeRows(runID, extraction, pageURL)
}

// Analyze runs the pipeline over a fetched document. sourceURL, when known,
// is used to resolve relative detail links.
//
// Row and listing scoped failures are counted in the Analysis and never
// abort the run. The returned error is ErrNoListings or a *FitError; in
// both cases the partially filled Analysis is returned too.
func (a *Analyzer) Analyze(doc io.Reader, sourceURL string) (*models.Analysis, error) {
	extraction, err := a.extractor.Extract(doc)
	if err != nil {
		return nil, err
	}
	return a.analyzeRows(uuid.NewString(), extraction, sourceURL)
}

func (a *Analyzer) analyzeRows(runID string, extraction *carinfo.Extraction, sourceURL string) (*models.Analysis, error) {
	analysis := &models.Analysis{
		RunID:     runID,
		SourceURL: sourceURL,
		Listings:  []*models.ClassifiedListing{},
	}
	analysis.RowsFound = len(extraction.Rows)
	for _, row := range extraction.Rows {
		if row.Err != nil {
			analysis.ExtractionSkips++
			analysis.Skips = append(analysis.Skips, models.Skip{
				Position: row.Err.Position, Stage: models.StageExtraction, Reason: row.Err.Error(),
			})
		}
	}

	cleaned := a.cleaner.Clean(extraction.Listings())
	for _, f := range cleaned.Failures {
		analysis.NormalizationFailures++
		analysis.Skips = append(analysis.Skips, models.Skip{
			Position: f.Raw.Position, Stage: models.StageNormalization, Reason: f.Err.Error(),
		})
	}
	a.recordRows(analysis, len(extraction.Listings()))

	if len(cleaned.Dataset) == 0 {
		a.logger.Warn("[analyzer] Run %s: %d rows found, none usable", analysis.RunID, analysis.RowsFound)
		return analysis, ErrNoListings
	}

	model, err := Fit(cleaned.Dataset)
	if err != nil {
		if a.metrics != nil {
			a.metrics.FitFailures.Inc()
		}
		a.logger.Warn("[analyzer] Run %s: %v", analysis.RunID, err)
		return analysis, err
	}
	analysis.Model = &model
	a.logger.Info("[analyzer] Trend over %d listings: price = %.2f × mileage + %.2f (R² %.2f)",
		model.N, model.Slope, model.Intercept, model.RSquared)

	for _, l := range cleaned.Dataset {
		cl, err := a.classifier.Classify(l, model)
		if err != nil {
			analysis.ClassificationSkips++
			analysis.Skips = append(analysis.Skips, models.Skip{
				Position: l.Position, Stage: models.StageClassification, Reason: err.Error(),
			})
			continue
		}
		cl.AbsoluteURL = resolveURL(sourceURL, cl.DetailURL)
		analysis.Listings = append(analysis.Listings, cl)
	}
	a.recordClassified(analysis)

	a.logger.Info("[analyzer] Run %s: %d classified, skipped %d extraction / %d normalization / %d classification",
		analysis.RunID, len(analysis.Listings),
		analysis.ExtractionSkips, analysis.NormalizationFailures, analysis.ClassificationSkips)
	return analysis, nil
}

func (a *Analyzer) recordRows(an *models.Analysis, extracted int) {
	if a.metrics == nil {
		return
	}
	a.metrics.RowsExtracted.Add(float64(extracted))
	a.metrics.RowsSkipped.WithLabelValues(string(models.StageExtraction)).Add(float64(an.ExtractionSkips))
	a.metrics.RowsSkipped.WithLabelValues(string(models.StageNormalization)).Add(float64(an.NormalizationFailures))
}

func (a *Analyzer) recordClassified(an *models.Analysis) {
	if a.metrics == nil {
		return
	}
	a.metrics.RowsSkipped.WithLabelValues(string(models.StageClassification)).Add(float64(an.ClassificationSkips))
	for _, l := range an.Listings {
		a.metrics.ListingsClassified.WithLabelValues(string(l.Classification)).Inc()
	}
	a.metrics.RSquared.Set(an.Model.RSquared)
}

// resolveURL makes href absolute against base; it returns href unchanged
// when either does not parse.
func resolveURL(base, href string) string {
	if base == "" {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}
