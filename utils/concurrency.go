package utils

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// WorkerPool runs jobs on at most maxWorkers goroutines and spaces job
// starts at least minInterval apart.
type WorkerPool struct {
	semaphore chan struct{}
	limiter   *rate.Limiter
	wg        sync.WaitGroup
}

// NewWorkerPool creates a WorkerPool with the given concurrency and rate limit.
func NewWorkerPool(maxWorkers int, minInterval time.Duration) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &WorkerPool{
		semaphore: make(chan struct{}, maxWorkers),
		limiter:   rate.NewLimiter(limit, 1),
	}
}

// Submit enqueues a job. It blocks while the pool is saturated and returns
// false without running the job if ctx is done first.
func (wp *WorkerPool) Submit(ctx context.Context, job func(ctx context.Context)) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case wp.semaphore <- struct{}{}:
	case <-ctx.Done():
		return false
	}

	wp.wg.Add(1)
	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.semaphore }()

		if !wp.waitTurn(ctx) {
			return
		}
		job(ctx)
	}()
	return true
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) waitTurn(ctx context.Context) bool {
	return wp.limiter.Wait(ctx) == nil
}

// URLSet is a thread-safe set of page URLs already claimed for fetching.
type URLSet struct {
	mu   sync.Mutex
	seen map[string]int
}

// NewURLSet creates an empty URLSet.
func NewURLSet() *URLSet {
	return &URLSet{seen: make(map[string]int)}
}

// Claim records url as owned by index. It returns the owning index and
// whether this call was the first to claim it.
func (s *URLSet) Claim(url string, index int) (owner int, first bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.seen[url]; ok {
		return prev, false
	}
	s.seen[url] = index
	return index, true
}

// Size returns the number of unique URLs tracked.
func (s *URLSet) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
