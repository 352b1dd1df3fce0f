package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"carinfo-scanner/models"
)

func TestCSVWriterWritesRawRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "raw.csv")
	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("NewCSVWriter: %v", err)
	}
	w.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	batch := RawBatch{
		RunID:     "run-1",
		SourceURL: "https://www.car.info/sv-se/volvo/v70/classifieds",
		Listings: []*models.RawListing{
			{Position: 0, Name: "Volvo V70, D5", DetailURL: "/c/1", PriceText: "89 900 kr", MileageText: "21 500 mil"},
			{Position: 2, Name: "Volvo V70 T4", DetailURL: "/c/2", PriceText: "124 000 kr", MileageText: "14 200 mil"},
		},
	}
	if err := w.WriteRaw(context.Background(), batch); err != nil {
		t.Fatalf("WriteRaw: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records: got %d, want 3 (header + 2)", len(records))
	}
	if records[0][0] != "run_id" {
		t.Errorf("header: got %v", records[0])
	}
	want := []string{"run-1", batch.SourceURL, "0", "Volvo V70, D5", "/c/1", "89 900 kr", "21 500 mil", "2025-03-01T12:00:00Z"}
	for i, v := range want {
		if records[1][i] != v {
			t.Errorf("row 1 col %d: got %q, want %q", i, records[1][i], v)
		}
	}
	if records[2][2] != "2" {
		t.Errorf("row 2 position: got %q, want 2", records[2][2])
	}
}

type failingWriter struct{ writes, closes int }

func (f *failingWriter) WriteRaw(context.Context, RawBatch) error {
	f.writes++
	return errors.New("disk full")
}

func (f *failingWriter) Close() error {
	f.closes++
	return nil
}

func TestMultiWriterWritesToAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.csv")
	csvW, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("NewCSVWriter: %v", err)
	}
	bad := &failingWriter{}
	m := MultiWriter{bad, csvW}

	batch := RawBatch{RunID: "r", Listings: []*models.RawListing{{Position: 0, Name: "Saab"}}}
	if err := m.WriteRaw(context.Background(), batch); err == nil {
		t.Error("expected the failing writer's error")
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if bad.writes != 1 || bad.closes != 1 {
		t.Errorf("failing writer: %d writes, %d closes", bad.writes, bad.closes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "Saab") {
		t.Errorf("csv writer should still receive the batch:\n%s", data)
	}
}
