package models

// RawListing holds one ad row exactly as it was read from the page markup.
// Position is the zero-based index of the row among all located rows.
type RawListing struct {
	Position    int    `json:"position"`
	Name        string `json:"name"`
	DetailURL   string `json:"detail_url"`
	PriceText   string `json:"price_text"`
	MileageText string `json:"mileage_text"`
}

// Listing is a normalized ad: price in SEK, mileage in Swedish mil.
type Listing struct {
	Position  int    `json:"position"`
	Name      string `json:"name"`
	DetailURL string `json:"detail_url"`
	Price     int64  `json:"price"`
	Mileage   int64  `json:"mileage"`
}

// TrendModel is an ordinary least-squares line of price on mileage.
type TrendModel struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
	N         int     `json:"n"`
}

// Predict returns the fitted price for a mileage.
func (m TrendModel) Predict(mileage int64) float64 {
	return m.Slope*float64(mileage) + m.Intercept
}

// Classification tags a listing by its deviation from the trend.
type Classification string

const (
	Underpriced Classification = "underpriced"
	Overpriced  Classification = "overpriced"
	Normal      Classification = "normal"
)

// ClassifiedListing is a Listing scored against a TrendModel.
type ClassifiedListing struct {
	Listing
	PredictedPrice float64        `json:"predicted_price"`
	Deviation      float64        `json:"deviation"`
	Classification Classification `json:"classification"`
	AbsoluteURL    string         `json:"absolute_url,omitempty"`
}

// Stage names the pipeline step that dropped a row.
type Stage string

const (
	StageExtraction     Stage = "extraction"
	StageNormalization  Stage = "normalization"
	StageClassification Stage = "classification"
)

// Skip records one row dropped by the skip-and-continue policy.
type Skip struct {
	Position int    `json:"position"`
	Stage    Stage  `json:"stage"`
	Reason   string `json:"reason"`
}

// Analysis is the outcome of one pipeline run over one page.
type Analysis struct {
	RunID                 string               `json:"run_id"`
	SourceURL             string               `json:"source_url,omitempty"`
	RowsFound             int                  `json:"rows_found"`
	Listings              []*ClassifiedListing `json:"listings"`
	Model                 *TrendModel          `json:"model,omitempty"`
	ExtractionSkips       int                  `json:"extraction_skips"`
	NormalizationFailures int                  `json:"normalization_failures"`
	ClassificationSkips   int                  `json:"classification_skips"`
	Skips                 []Skip               `json:"skips,omitempty"`
}

// InsightReport summarises an Analysis for the terminal report and the API.
type InsightReport struct {
	Title         string               `json:"title"`
	TotalListings int                  `json:"total_listings"`
	Underpriced   int                  `json:"underpriced"`
	Overpriced    int                  `json:"overpriced"`
	Normal        int                  `json:"normal"`
	AveragePrice  float64              `json:"average_price"`
	MinPrice      int64                `json:"min_price"`
	MaxPrice      int64                `json:"max_price"`
	BestDeal      *ClassifiedListing   `json:"best_deal,omitempty"`
	WorstDeal     *ClassifiedListing   `json:"worst_deal,omitempty"`
	Model         *TrendModel          `json:"model,omitempty"`
	Skipped       map[Stage]int        `json:"skipped"`
	Listings      []*ClassifiedListing `json:"-"`
}
