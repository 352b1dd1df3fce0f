package services

import (
	"fmt"
	"math"

	"carinfo-scanner/models"
)

// FitError reports a dataset for which no unique trend line exists.
type FitError struct {
	Reason string
	N      int
}

func (e *FitError) Error() string {
	return fmt.Sprintf("fit trend over %d listings: %s", e.N, e.Reason)
}

const (
	reasonTooFewPoints    = "too few points"
	reasonZeroVariance    = "zero mileage variance"
	reasonConstantResidue = "constant price with non-zero residuals"
)

// residualTolerance bounds float noise when deciding that a constant-price
// fit has no residual.
const residualTolerance = 1e-9

// Fit regresses price on mileage by ordinary least squares. It needs at
// least two listings with differing mileage.
func Fit(dataset []*models.Listing) (models.TrendModel, error) {
	n := len(dataset)
	if n < 2 {
		return models.TrendModel{}, &FitError{Reason: reasonTooFewPoints, N: n}
	}

	var sumX, sumY float64
	for _, l := range dataset {
		sumX += float64(l.Mileage)
		sumY += float64(l.Price)
	}
	meanX, meanY := sumX/float64(n), sumY/float64(n)

	var sxx, sxy, syy float64
	for _, l := range dataset {
		dx := float64(l.Mileage) - meanX
		dy := float64(l.Price) - meanY
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if sxx == 0 {
		return models.TrendModel{}, &FitError{Reason: reasonZeroVariance, N: n}
	}

	m := models.TrendModel{Slope: sxy / sxx, N: n}
	m.Intercept = meanY - m.Slope*meanX

	var ssRes float64
	for _, l := range dataset {
		r := float64(l.Price) - m.Predict(l.Mileage)
		ssRes += r * r
	}

	if syy == 0 {
		// Equal prices give slope 0 and intercept meanY, so ssRes is only
		// rounding noise unless the arithmetic went wrong.
		if exceedsResidualTolerance(ssRes, meanY) {
			return models.TrendModel{}, &FitError{Reason: reasonConstantResidue, N: n}
		}
		m.RSquared = 1
		return m, nil
	}

	m.RSquared = clamp01(1 - ssRes/syy)
	return m, nil
}

// exceedsResidualTolerance reports whether ssRes is larger than float noise
// for prices around meanY.
func exceedsResidualTolerance(ssRes, meanY float64) bool {
	return ssRes > residualTolerance*math.Max(1, meanY*meanY)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
