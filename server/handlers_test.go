package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"carinfo-scanner/observability"
	"carinfo-scanner/query"
	"carinfo-scanner/services"
	"carinfo-scanner/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testBase = "https://www.car.info"

func adRow(href, name, price, mileage string) string {
	return fmt.Sprintf(`<tr class="classified_item list-row position-relative"><td>`+
		`<a class="classified_url flex-grow-1 text-truncate" href="%s"><span class="d-inline rec_name">%s</span></a></td>`+
		`<td class="d-none d-sm-table-cell price text-right">%s</td>`+
		`<td class="d-none d-sm-table-cell text-nowrap td_size_smaller text-right">%s</td></tr>`,
		href, name, price, mileage)
}

func page(rows ...string) string {
	return "<html><body><table>" + strings.Join(rows, "") + "</table></body></html>"
}

var fourAds = page(
	adRow("/sv-se/classifieds/1", "Volvo V70 A", "100 000 kr", "10 000 mil"),
	adRow("/sv-se/classifieds/2", "Volvo V70 B", "80 000 kr", "15 000 mil"),
	adRow("/sv-se/classifieds/3", "Volvo V70 C", "70 000 kr", "20 000 mil"),
	adRow("/sv-se/classifieds/4", "Volvo V70 D", "40 000 kr", "25 000 mil"),
)

type stubFetcher struct {
	pages map[string]string
	err   error
}

func (s *stubFetcher) Fetch(_ context.Context, url string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	body, ok := s.pages[url]
	if !ok {
		return "", fmt.Errorf("unexpected url %s", url)
	}
	return body, nil
}

func setupRouter(t *testing.T, f *stubFetcher) *gin.Engine {
	t.Helper()
	logger := utils.NewDiscardLogger()
	metrics := observability.NewMetrics()
	a := services.NewAnalyzer(services.AnalyzerOptions{Fetcher: f, BaseURL: testBase, Metrics: metrics}, logger)
	return NewRouter(NewHandler(a, logger), metrics, logger)
}

func perform(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "text/html")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := setupRouter(t, &stubFetcher{})
	w := perform(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("health: %d %s", w.Code, w.Body.String())
	}
}

func TestAnalyzeDocument(t *testing.T) {
	r := setupRouter(t, &stubFetcher{})
	w := perform(r, http.MethodPost, "/api/v1/analyze?source="+testBase+"/sv-se/volvo/v70/classifieds", fourAds)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}

	var resp analyzeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Analysis == nil || len(resp.Analysis.Listings) != 4 || resp.Analysis.Model == nil {
		t.Fatalf("analysis: got %+v", resp.Analysis)
	}
	if got := resp.Analysis.Listings[0].AbsoluteURL; got != testBase+"/sv-se/classifieds/1" {
		t.Errorf("absolute url: got %q", got)
	}
	if resp.Summary == nil || resp.Summary.TotalListings != 4 {
		t.Errorf("summary: got %+v", resp.Summary)
	}
}

func TestAnalyzeDocumentStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty body", "", http.StatusBadRequest},
		{"no ads", page(), http.StatusNotFound},
		{"single ad", page(adRow("/a", "A", "50 000 kr", "9 000 mil")), http.StatusUnprocessableEntity},
	}
	r := setupRouter(t, &stubFetcher{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(r, http.MethodPost, "/api/v1/analyze", tt.body)
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestAnalyzeDocumentErrorKeepsRowCounts(t *testing.T) {
	r := setupRouter(t, &stubFetcher{})
	unusable := page(
		adRow("/a", "A", "Ring för pris", "9 000 mil"),
		adRow("/b", "B", "50 000 kr", "okänt"),
		`<tr class="classified_item list-row position-relative"><td>no fields</td></tr>`,
	)
	w := perform(r, http.MethodPost, "/api/v1/analyze", unusable)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404 (%s)", w.Code, w.Body.String())
	}

	var body struct {
		RowsFound             int `json:"rows_found"`
		ExtractionSkips       int `json:"extraction_skips"`
		NormalizationFailures int `json:"normalization_failures"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.RowsFound != 3 || body.ExtractionSkips != 1 || body.NormalizationFailures != 2 {
		t.Errorf("counts: got %+v, want rows 3, extraction 1, normalization 2", body)
	}
}

func TestAnalyzeQuery(t *testing.T) {
	q := query.Query{Make: "volvo", Model: "v70", StartYear: 2005, EndYear: 2010, Fuel: query.FuelDiesel, Gearbox: query.GearboxManual}
	r := setupRouter(t, &stubFetcher{pages: map[string]string{q.URL(testBase): fourAds}})

	w := perform(r, http.MethodGet, "/api/v1/analyze?make=volvo&model=v70&start_year=2005&end_year=2010&fuel=diesel&gearbox=manual", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var resp analyzeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Analysis.SourceURL != q.URL(testBase) {
		t.Errorf("source: got %q", resp.Analysis.SourceURL)
	}
	if resp.Analysis.Listings[3].Classification == "" {
		t.Error("listings should be classified")
	}
}

func TestAnalyzeQueryErrors(t *testing.T) {
	valid := "make=volvo&model=v70&start_year=2005&end_year=2010&fuel=2&gearbox=5"
	tests := []struct {
		name    string
		query   string
		fetcher *stubFetcher
		want    int
	}{
		{"missing year", "make=volvo&model=v70&fuel=2&gearbox=5", &stubFetcher{}, http.StatusBadRequest},
		{"non-numeric year", "make=volvo&model=v70&start_year=tjugo&end_year=2010&fuel=2&gearbox=5", &stubFetcher{}, http.StatusBadRequest},
		{"missing make", "model=v70&start_year=2005&end_year=2010&fuel=2&gearbox=5", &stubFetcher{}, http.StatusBadRequest},
		{"missing gearbox", "make=volvo&model=v70&start_year=2005&end_year=2010&fuel=2", &stubFetcher{}, http.StatusBadRequest},
		{"year out of range", "make=volvo&model=v70&start_year=1900&end_year=2010&fuel=2&gearbox=5", &stubFetcher{}, http.StatusBadRequest},
		{"unknown fuel", "make=volvo&model=v70&start_year=2005&end_year=2010&fuel=coal&gearbox=5", &stubFetcher{}, http.StatusBadRequest},
		{"fetch failure", valid, &stubFetcher{err: errors.New("connection refused")}, http.StatusBadGateway},
		{"empty page", valid, &stubFetcher{pages: map[string]string{
			query.Query{Make: "volvo", Model: "v70", StartYear: 2005, EndYear: 2010, Fuel: "2", Gearbox: "5"}.URL(testBase): page(),
		}}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupRouter(t, tt.fetcher)
			w := perform(r, http.MethodGet, "/api/v1/analyze?"+tt.query, "")
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := setupRouter(t, &stubFetcher{})
	perform(r, http.MethodPost, "/api/v1/analyze", fourAds)

	w := perform(r, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "carinfo_rows_extracted_total 4") {
		t.Errorf("metrics body missing extracted count:\n%s", w.Body.String())
	}
}
