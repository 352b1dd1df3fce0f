package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresArchive stores raw extracted rows in PostgreSQL for later
// re-analysis when the site's markup changes.
type PostgresArchive struct {
	db *sqlx.DB
}

type rawRow struct {
	RunID       string `db:"run_id"`
	SourceURL   string `db:"source_url"`
	Position    int    `db:"position"`
	Name        string `db:"name"`
	DetailURL   string `db:"detail_url"`
	PriceText   string `db:"price_text"`
	MileageText string `db:"mileage_text"`
}

// NewPostgresArchive connects to PostgreSQL, runs the schema migration, and
// returns a ready-to-use archive.
func NewPostgresArchive(ctx context.Context, dsn string) (*PostgresArchive, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 5; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pa := &PostgresArchive{db: db}
	if err := pa.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return pa, nil
}

func (pa *PostgresArchive) migrate(ctx context.Context) error {
	_, err := pa.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS raw_listings (
			id           SERIAL PRIMARY KEY,
			run_id       UUID        NOT NULL,
			source_url   TEXT        NOT NULL DEFAULT '',
			position     INTEGER     NOT NULL,
			name         TEXT        NOT NULL,
			detail_url   TEXT        NOT NULL,
			price_text   TEXT        NOT NULL,
			mileage_text TEXT        NOT NULL,
			scraped_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (run_id, position)
		);

		CREATE INDEX IF NOT EXISTS idx_raw_listings_source ON raw_listings(source_url);
	`)
	return err
}

const batchSize = 50

// WriteRaw batch-inserts the rows of one run.
func (pa *PostgresArchive) WriteRaw(ctx context.Context, batch RawBatch) error {
	rows := make([]rawRow, 0, len(batch.Listings))
	for _, l := range batch.Listings {
		rows = append(rows, rawRow{
			RunID:       batch.RunID,
			SourceURL:   batch.SourceURL,
			Position:    l.Position,
			Name:        l.Name,
			DetailURL:   l.DetailURL,
			PriceText:   l.PriceText,
			MileageText: l.MileageText,
		})
	}

	for i := 0; i < len(rows); i += batchSize {
		end := i + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		_, err := pa.db.NamedExecContext(ctx, `
			INSERT INTO raw_listings (run_id, source_url, position, name, detail_url, price_text, mileage_text)
			VALUES (:run_id, :source_url, :position, :name, :detail_url, :price_text, :mileage_text)
			ON CONFLICT (run_id, position) DO NOTHING
		`, rows[i:end])
		if err != nil {
			return fmt.Errorf("postgres: insert batch: %w", err)
		}
	}
	return nil
}

// CountRun returns how many rows were archived for a run.
func (pa *PostgresArchive) CountRun(ctx context.Context, runID string) (int, error) {
	var n int
	if err := pa.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM raw_listings WHERE run_id = $1`, runID); err != nil {
		return 0, fmt.Errorf("postgres: count run: %w", err)
	}
	return n, nil
}

func (pa *PostgresArchive) Close() error {
	return pa.db.Close()
}
