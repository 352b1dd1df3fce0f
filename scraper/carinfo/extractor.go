package carinfo

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"carinfo-scanner/models"
	"carinfo-scanner/utils"
)

// FieldKind names one of the four sub-fields read from an ad row.
type FieldKind int

const (
	FieldName FieldKind = iota
	FieldDetailURL
	FieldPrice
	FieldMileage
)

func (k FieldKind) String() string {
	switch k {
	case FieldName:
		return "name"
	case FieldDetailURL:
		return "detail_url"
	case FieldPrice:
		return "price"
	case FieldMileage:
		return "mileage"
	default:
		return fmt.Sprintf("field(%d)", int(k))
	}
}

var requiredFields = []FieldKind{FieldName, FieldDetailURL, FieldPrice, FieldMileage}

// RowLocator isolates the site-specific markup shape from the extraction loop.
type RowLocator interface {
	// LocateRows returns the ad rows in document order.
	LocateRows(doc *goquery.Document) []*goquery.Selection
	// ExtractField returns the raw value of kind within row, or false when
	// the node (or attribute) is absent.
	ExtractField(row *goquery.Selection, kind FieldKind) (string, bool)
}

// Selectors for the car.info classifieds table. They track the live site and
// will need updating when its markup changes.
const (
	rowSelector     = "tr.classified_item.list-row.position-relative"
	nameSelector    = "span.d-inline.rec_name"
	linkSelector    = "a.classified_url.flex-grow-1.text-truncate"
	priceSelector   = "td.d-none.d-sm-table-cell.price.text-right"
	mileageSelector = "td.d-none.d-sm-table-cell.text-nowrap.td_size_smaller.text-right"
)

// CarInfoLocator matches the car.info classifieds list layout.
type CarInfoLocator struct{}

func (CarInfoLocator) LocateRows(doc *goquery.Document) []*goquery.Selection {
	var rows []*goquery.Selection
	doc.Find(rowSelector).Each(func(_ int, s *goquery.Selection) {
		rows = append(rows, s)
	})
	return rows
}

func (CarInfoLocator) ExtractField(row *goquery.Selection, kind FieldKind) (string, bool) {
	switch kind {
	case FieldName:
		return firstText(row, nameSelector)
	case FieldDetailURL:
		link := row.Find(linkSelector).First()
		if link.Length() == 0 {
			return "", false
		}
		href, ok := link.Attr("href")
		href = strings.TrimSpace(href)
		return href, ok && href != ""
	case FieldPrice:
		return firstText(row, priceSelector)
	case FieldMileage:
		return firstText(row, mileageSelector)
	}
	return "", false
}

func firstText(row *goquery.Selection, selector string) (string, bool) {
	node := row.Find(selector).First()
	if node.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(node.Text()), true
}

// ExtractionError reports an ad row that lacks a required sub-field.
type ExtractionError struct {
	Position int
	Field    FieldKind
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("row %d: missing %s", e.Position, e.Field)
}

// RowResult is either an extracted row or the reason it was skipped.
type RowResult struct {
	Raw *models.RawListing
	Err *ExtractionError
}

// Extraction holds one result per located row, in document order.
type Extraction struct {
	Rows []RowResult
}

// Listings returns the successfully extracted rows in document order.
func (e *Extraction) Listings() []*models.RawListing {
	out := make([]*models.RawListing, 0, len(e.Rows))
	for _, r := range e.Rows {
		if r.Err == nil {
			out = append(out, r.Raw)
		}
	}
	return out
}

// Skipped returns the number of rows dropped for missing sub-fields.
func (e *Extraction) Skipped() int {
	n := 0
	for _, r := range e.Rows {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// Extractor turns a classifieds page into raw ad rows.
type Extractor struct {
	locator RowLocator
	logger  *utils.Logger
}

// NewExtractor creates an Extractor. A nil locator selects CarInfoLocator.
func NewExtractor(locator RowLocator, logger *utils.Logger) *Extractor {
	if locator == nil {
		locator = CarInfoLocator{}
	}
	return &Extractor{locator: locator, logger: logger}
}

// Extract parses the document in r. Malformed rows are recorded in the
// result and skipped; only an unparseable document returns an error.
func (x *Extractor) Extract(r io.Reader) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("carinfo: parse document: %w", err)
	}

	rows := x.locator.LocateRows(doc)
	x.logger.Debug("[extractor] Located %d ad rows", len(rows))

	result := &Extraction{Rows: make([]RowResult, 0, len(rows))}
	for i, row := range rows {
		result.Rows = append(result.Rows, x.extractRow(i, row))
	}

	if skipped := result.Skipped(); skipped > 0 {
		x.logger.Warn("[extractor] Skipped %d of %d rows with missing fields", skipped, len(rows))
	}
	return result, nil
}

// ExtractString is Extract over an in-memory document.
func (x *Extractor) ExtractString(html string) (*Extraction, error) {
	return x.Extract(strings.NewReader(html))
}

func (x *Extractor) extractRow(pos int, row *goquery.Selection) RowResult {
	var values [4]string
	for _, kind := range requiredFields {
		v, ok := x.locator.ExtractField(row, kind)
		if !ok {
			err := &ExtractionError{Position: pos, Field: kind}
			x.logger.Debug("[extractor] %v", err)
			return RowResult{Err: err}
		}
		values[kind] = v
	}
	return RowResult{Raw: &models.RawListing{
		Position:    pos,
		Name:        values[FieldName],
		DetailURL:   values[FieldDetailURL],
		PriceText:   values[FieldPrice],
		MileageText: values[FieldMileage],
	}}
}
