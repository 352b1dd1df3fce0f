package services

import (
	"context"
	"time"

	"carinfo-scanner/models"
	"carinfo-scanner/query"
	"carinfo-scanner/utils"
)

// BatchResult is the outcome of one query in a batch. Duplicate queries
// share the Analysis of the first occurrence.
type BatchResult struct {
	Query       query.Query
	URL         string
	Analysis    *models.Analysis
	Err         error
	DuplicateOf int
}

// BatchRunner analyzes several queries concurrently while keeping the
// request rate polite.
type BatchRunner struct {
	analyzer    *Analyzer
	concurrency int
	interval    time.Duration
	logger      *utils.Logger
}

func NewBatchRunner(a *Analyzer, concurrency int, interval time.Duration, logger *utils.Logger) *BatchRunner {
	return &BatchRunner{analyzer: a, concurrency: concurrency, interval: interval, logger: logger}
}

// Run returns one result per query, in input order. Queries resolving to an
// already claimed page URL are not fetched again.
func (b *BatchRunner) Run(ctx context.Context, queries []query.Query) []BatchResult {
	results := make([]BatchResult, len(queries))
	pool := utils.NewWorkerPool(b.concurrency, b.interval)
	claimed := utils.NewURLSet()

	for i, q := range queries {
		i, q := i, q
		results[i] = BatchResult{Query: q, URL: q.URL(b.analyzer.baseURL), DuplicateOf: -1}

		if owner, first := claimed.Claim(results[i].URL, i); !first {
			b.logger.Debug("[batch] Query %d duplicates query %d", i, owner)
			results[i].DuplicateOf = owner
			continue
		}

		submitted := pool.Submit(ctx, func(ctx context.Context) {
			results[i].Analysis, results[i].Err = b.analyzer.AnalyzeQuery(ctx, q)
		})
		if !submitted {
			results[i].Err = ctx.Err()
		}
	}
	pool.Wait()

	for i := range results {
		if results[i].DuplicateOf >= 0 {
			owner := results[results[i].DuplicateOf]
			results[i].Analysis, results[i].Err = owner.Analysis, owner.Err
		}
		if results[i].Analysis == nil && results[i].Err == nil {
			// Skipped by the pool after cancellation.
			results[i].Err = ctx.Err()
		}
	}

	b.logger.Info("[batch] Analyzed %d queries (%d unique pages)", len(queries), claimed.Size())
	return results
}
