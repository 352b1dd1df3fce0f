package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"carinfo-scanner/utils"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// maxPageBytes caps how much of a response body is read.
const maxPageBytes = 16 << 20

// Fetcher retrieves a classifieds page and returns its markup.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Code)
}

// HTTPFetcher fetches pages with a plain HTTP GET.
type HTTPFetcher struct {
	client *http.Client
	retry  *utils.RetryConfig
	logger *utils.Logger
}

// NewHTTPFetcher creates an HTTPFetcher whose requests time out after
// timeout and are retried up to maxRetries times.
func NewHTTPFetcher(timeout time.Duration, maxRetries int, logger *utils.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
		retry: &utils.RetryConfig{
			MaxAttempts: maxRetries,
			BaseDelay:   time.Second,
			Logger:      logger,
		},
		logger: logger,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	var body string
	err := f.retry.Do(ctx, "fetch "+url, func(ctx context.Context) error {
		b, err := f.get(ctx, url)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scraper: %w", err)
	}
	f.logger.Debug("[fetch] %s: %d bytes", url, len(body))
	return body, nil
}

func (f *HTTPFetcher) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", utils.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")
	req.Header.Set("Accept-Language", "sv-SE,sv;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		serr := &StatusError{URL: url, Code: resp.StatusCode}
		// 4xx other than 429 will not improve on retry.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", utils.Permanent(serr)
		}
		return "", serr
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(b), nil
}

// FetchRecorder observes fetch outcomes. Implemented by the metrics layer.
type FetchRecorder interface {
	RecordFetch(source string, err error)
}

type recordedFetcher struct {
	next     Fetcher
	recorder FetchRecorder
	source   string
}

// Recorded reports every call to next to recorder under source.
func Recorded(next Fetcher, recorder FetchRecorder, source string) Fetcher {
	if recorder == nil {
		return next
	}
	return &recordedFetcher{next: next, recorder: recorder, source: source}
}

func (r *recordedFetcher) Fetch(ctx context.Context, url string) (string, error) {
	body, err := r.next.Fetch(ctx, url)
	r.recorder.RecordFetch(r.source, err)
	return body, err
}
