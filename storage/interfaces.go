package storage

import (
	"context"
	"errors"

	"carinfo-scanner/models"
)

// RawBatch is the set of raw rows extracted in one pipeline run.
type RawBatch struct {
	RunID     string
	SourceURL string
	Listings  []*models.RawListing
}

// RawListingWriter is the interface for archiving unprocessed scraped rows.
// Classified results are never written.
type RawListingWriter interface {
	WriteRaw(ctx context.Context, batch RawBatch) error
	Close() error
}

// MultiWriter fans every batch out to all of its writers.
type MultiWriter []RawListingWriter

// WriteRaw writes to every writer and joins their errors.
func (m MultiWriter) WriteRaw(ctx context.Context, batch RawBatch) error {
	var errs []error
	for _, w := range m {
		if err := w.WriteRaw(ctx, batch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiWriter) Close() error {
	var errs []error
	for _, w := range m {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
