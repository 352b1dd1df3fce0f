package services

import (
	"errors"
	"testing"

	"carinfo-scanner/models"
)

func flatModel(price float64) models.TrendModel {
	return models.TrendModel{Slope: 0, Intercept: price, RSquared: 1, N: 2}
}

func TestClassifyBoundaries(t *testing.T) {
	c := NewClassifier(DefaultThreshold)
	m := flatModel(100000)

	tests := []struct {
		price     int64
		deviation float64
		want      models.Classification
	}{
		{85000, -0.15, models.Underpriced},
		{84999, -0.15001, models.Underpriced},
		{85001, -0.14999, models.Normal},
		{100000, 0, models.Normal},
		{114999, 0.14999, models.Normal},
		{115000, 0.15, models.Overpriced},
		{200000, 1, models.Overpriced},
	}

	for _, tt := range tests {
		got, err := c.Classify(&models.Listing{Price: tt.price, Mileage: 123456}, m)
		if err != nil {
			t.Fatalf("Classify(price=%d): %v", tt.price, err)
		}
		if got.Classification != tt.want {
			t.Errorf("Classify(price=%d) = %s; want %s", tt.price, got.Classification, tt.want)
		}
		if !approx(got.Deviation, tt.deviation) {
			t.Errorf("Classify(price=%d) deviation = %.6f; want %.6f", tt.price, got.Deviation, tt.deviation)
		}
		if got.PredictedPrice != 100000 {
			t.Errorf("predicted price: got %.2f, want 100000", got.PredictedPrice)
		}
	}
}

func TestClassifyExactBoundaryDeviation(t *testing.T) {
	got, err := NewClassifier(DefaultThreshold).Classify(&models.Listing{Price: 85000, Mileage: 777}, flatModel(100000))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.Deviation != -0.15 {
		t.Errorf("deviation: got %v, want exactly -0.15", got.Deviation)
	}
	if got.Classification != models.Underpriced {
		t.Errorf("classification: got %s, want underpriced", got.Classification)
	}
}

func TestClassifyUsesSlope(t *testing.T) {
	m := models.TrendModel{Slope: -2, Intercept: 100000}
	got, err := NewClassifier(DefaultThreshold).Classify(&models.Listing{Price: 60000, Mileage: 10000}, m)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.PredictedPrice != 80000 || got.Deviation != -0.25 || got.Classification != models.Underpriced {
		t.Errorf("got %+v", got)
	}
}

func TestClassifyNonPositivePrediction(t *testing.T) {
	c := NewClassifier(DefaultThreshold)
	for _, m := range []models.TrendModel{
		flatModel(0),
		{Slope: -10, Intercept: 100000},
	} {
		_, err := c.Classify(&models.Listing{Position: 4, Price: 5000, Mileage: 20000}, m)
		var cerr *ClassificationError
		if !errors.As(err, &cerr) {
			t.Fatalf("expected ClassificationError for %+v, got %v", m, err)
		}
		if cerr.Position != 4 {
			t.Errorf("position: got %d, want 4", cerr.Position)
		}
	}
}

func TestNewClassifierDefaultsThreshold(t *testing.T) {
	if c := NewClassifier(0); c.Threshold != DefaultThreshold {
		t.Errorf("threshold: got %v, want %v", c.Threshold, DefaultThreshold)
	}
	if c := NewClassifier(0.2); c.Threshold != 0.2 {
		t.Errorf("threshold: got %v, want 0.2", c.Threshold)
	}
}
