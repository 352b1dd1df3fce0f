package services

import (
	"fmt"
	"io"
	"strings"

	"carinfo-scanner/models"
	"carinfo-scanner/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate summarises an analysis. A nil or empty analysis yields an empty
// report.
func (s *InsightService) Generate(title string, a *models.Analysis) *models.InsightReport {
	report := &models.InsightReport{
		Title:   title,
		Skipped: make(map[models.Stage]int),
	}
	if a == nil {
		return report
	}

	report.Model = a.Model
	report.Skipped[models.StageExtraction] = a.ExtractionSkips
	report.Skipped[models.StageNormalization] = a.NormalizationFailures
	report.Skipped[models.StageClassification] = a.ClassificationSkips

	if len(a.Listings) == 0 {
		return report
	}

	report.TotalListings = len(a.Listings)
	report.Listings = a.Listings
	report.MinPrice = a.Listings[0].Price
	report.MaxPrice = a.Listings[0].Price
	report.BestDeal = a.Listings[0]
	report.WorstDeal = a.Listings[0]

	var total float64
	for _, l := range a.Listings {
		switch l.Classification {
		case models.Underpriced:
			report.Underpriced++
		case models.Overpriced:
			report.Overpriced++
		default:
			report.Normal++
		}

		total += float64(l.Price)
		if l.Price < report.MinPrice {
			report.MinPrice = l.Price
		}
		if l.Price > report.MaxPrice {
			report.MaxPrice = l.Price
		}
		if l.Deviation < report.BestDeal.Deviation {
			report.BestDeal = l
		}
		if l.Deviation > report.WorstDeal.Deviation {
			report.WorstDeal = l
		}
	}
	report.AveragePrice = round2(total / float64(len(a.Listings)))

	return report
}

var classColour = map[models.Classification]string{
	models.Underpriced: "\033[1;32m",
	models.Overpriced:  "\033[1;31m",
	models.Normal:      "\033[1;34m",
}

var classLabel = map[models.Classification]string{
	models.Underpriced: "Potentiellt undervärderad",
	models.Overpriced:  "Potentiellt övervärderad",
	models.Normal:      "Normalpris",
}

func (s *InsightService) Print(w io.Writer, r *models.InsightReport) {
	sep := strings.Repeat("═", 72)
	thin := strings.Repeat("─", 72)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  Pris vs. Miltal för %s\033[0m\n", r.Title)
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Trend\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.Model != nil {
		fmt.Fprintf(w, "  Regressionslinje : pris = %.2f × miltal + %.0f kr\n", r.Model.Slope, r.Model.Intercept)
		fmt.Fprintf(w, "  R²               : \033[1m%.2f\033[0m (%d annonser)\n", r.Model.RSquared, r.Model.N)
	} else {
		fmt.Fprintf(w, "  Ingen trend kunde beräknas\n")
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Översikt\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Klassade annonser : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Fprintf(w, "  Undervärderade    : \033[1;32m%d\033[0m\n", r.Underpriced)
	fmt.Fprintf(w, "  Övervärderade     : \033[1;31m%d\033[0m\n", r.Overpriced)
	fmt.Fprintf(w, "  Normalpris        : \033[1;34m%d\033[0m\n", r.Normal)
	if r.TotalListings > 0 {
		fmt.Fprintf(w, "  Snittpris         : %.0f kr (min %d, max %d)\n", r.AveragePrice, r.MinPrice, r.MaxPrice)
	}
	fmt.Fprintf(w, "  Överhoppade rader : %d extraktion, %d normalisering, %d klassning\n",
		r.Skipped[models.StageExtraction], r.Skipped[models.StageNormalization], r.Skipped[models.StageClassification])
	fmt.Fprintln(w)

	if r.BestDeal != nil {
		fmt.Fprintf(w, "\033[1;33m  Bästa affär\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.BestDeal.Name, 60))
		fmt.Fprintf(w, "  %d kr, %d mil (%+.1f%% mot trend)\n", r.BestDeal.Price, r.BestDeal.Mileage, r.BestDeal.Deviation*100)
		fmt.Fprintf(w, "  %s\n\n", linkOf(r.BestDeal))
	}

	fmt.Fprintf(w, "\033[1;33m  Annonser\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.Listings) == 0 {
		fmt.Fprintf(w, "  Inga annonser\n")
	}
	for i, l := range r.Listings {
		fmt.Fprintf(w, "  %s%2d. %-34s %9d kr %7d mil %+6.1f%%\033[0m  %s\n",
			classColour[l.Classification], i+1, truncate(l.Name, 34),
			l.Price, l.Mileage, l.Deviation*100, classLabel[l.Classification])
		fmt.Fprintf(w, "      %s\n", linkOf(l))
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func linkOf(l *models.ClassifiedListing) string {
	if l.AbsoluteURL != "" {
		return l.AbsoluteURL
	}
	return l.DetailURL
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
