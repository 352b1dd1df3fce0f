package services

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"carinfo-scanner/models"
	"carinfo-scanner/utils"
)

// nonDigitRegexp matches everything Normalize throws away: any rune that
// is not a Unicode decimal digit (category Nd). Decimal points, thousands
// separators and signs are not interpreted: "1.234,56" and "123456"
// normalize to the same value.
var nonDigitRegexp = regexp.MustCompile(`\P{Nd}+`)

// NormalizationError reports text that holds no digits.
type NormalizationError struct {
	Text string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %q: no digits", e.Text)
}

// Normalize keeps the decimal digits of text in any script, in order, and
// reads them as a base-10 integer. It fails only when text has no digit.
// Values beyond the int64 range saturate at math.MaxInt64.
func Normalize(text string) (int64, error) {
	kept := nonDigitRegexp.ReplaceAllString(text, "")
	if kept == "" {
		return 0, &NormalizationError{Text: text}
	}

	digits := make([]byte, 0, len(kept))
	for _, r := range kept {
		digits = append(digits, '0'+digitValue(r))
	}
	n, err := strconv.ParseInt(string(digits), 10, 64)
	if err != nil {
		// Only ErrRange is possible here.
		return math.MaxInt64, nil
	}
	return n, nil
}

// digitValue returns the value of the Nd rune r. Nd digits are encoded as
// contiguous runs of ten starting at zero, so the offset from the start of
// the run gives the value.
func digitValue(r rune) byte {
	zero := r
	for unicode.IsDigit(zero - 1) {
		zero--
	}
	return byte((r - zero) % 10)
}

// ListingOutcome is the result of normalizing one raw row: either Listing is
// set or Err says why the row was dropped.
type ListingOutcome struct {
	Raw     *models.RawListing
	Listing *models.Listing
	Err     error
}

// CleanResult is the dataset plus the rows that failed normalization.
type CleanResult struct {
	Dataset  []*models.Listing
	Failures []ListingOutcome
}

// Cleaner transforms RawListings into normalized Listings.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean normalizes every raw row, preserving order. Rows whose price or
// mileage cannot be normalized are dropped and reported in Failures.
func (c *Cleaner) Clean(raw []*models.RawListing) *CleanResult {
	res := &CleanResult{Dataset: make([]*models.Listing, 0, len(raw))}

	for _, r := range raw {
		out := c.cleanOne(r)
		if out.Err != nil {
			c.logger.Warn("[cleaner] Dropping row %d (%s): %v", r.Position, r.Name, out.Err)
			res.Failures = append(res.Failures, out)
			continue
		}
		res.Dataset = append(res.Dataset, out.Listing)
	}

	c.logger.Info("[cleaner] Normalized %d → %d listings (dropped %d)",
		len(raw), len(res.Dataset), len(res.Failures))
	return res
}

func (c *Cleaner) cleanOne(r *models.RawListing) ListingOutcome {
	price, err := Normalize(r.PriceText)
	if err != nil {
		return ListingOutcome{Raw: r, Err: fmt.Errorf("price: %w", err)}
	}
	mileage, err := Normalize(r.MileageText)
	if err != nil {
		return ListingOutcome{Raw: r, Err: fmt.Errorf("mileage: %w", err)}
	}
	return ListingOutcome{Raw: r, Listing: &models.Listing{
		Position:  r.Position,
		Name:      normaliseText(r.Name),
		DetailURL: strings.TrimSpace(r.DetailURL),
		Price:     price,
		Mileage:   mileage,
	}}
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}
