package services

import (
	"fmt"

	"carinfo-scanner/models"
)

// DefaultThreshold is the relative deviation at which a listing stops being
// Normal. The boundary value itself belongs to the outer class.
const DefaultThreshold = 0.15

// ClassificationError reports a listing whose predicted price is not
// positive, so no relative deviation can be computed.
type ClassificationError struct {
	Position       int
	PredictedPrice float64
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify listing %d: predicted price %.2f is not positive", e.Position, e.PredictedPrice)
}

// Classifier scores listings against a fitted trend.
type Classifier struct {
	Threshold float64
}

// NewClassifier returns a Classifier; a non-positive threshold selects
// DefaultThreshold.
func NewClassifier(threshold float64) *Classifier {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Classifier{Threshold: threshold}
}

// Classify compares l's price with the trend prediction at its mileage.
func (c *Classifier) Classify(l *models.Listing, m models.TrendModel) (*models.ClassifiedListing, error) {
	predicted := m.Predict(l.Mileage)
	if predicted <= 0 {
		return nil, &ClassificationError{Position: l.Position, PredictedPrice: predicted}
	}

	deviation := (float64(l.Price) - predicted) / predicted

	class := models.Normal
	switch {
	case deviation <= -c.Threshold:
		class = models.Underpriced
	case deviation >= c.Threshold:
		class = models.Overpriced
	}

	return &models.ClassifiedListing{
		Listing:        *l,
		PredictedPrice: predicted,
		Deviation:      deviation,
		Classification: class,
	}, nil
}
