package server

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"carinfo-scanner/models"
	"carinfo-scanner/query"
	"carinfo-scanner/services"
	"carinfo-scanner/utils"
)

// maxDocumentBytes caps uploaded HTML documents.
const maxDocumentBytes = 8 << 20

type Handler struct {
	analyzer *services.Analyzer
	insights *services.InsightService
	logger   *utils.Logger
	started  time.Time
}

func NewHandler(a *services.Analyzer, logger *utils.Logger) *Handler {
	return &Handler{
		analyzer: a,
		insights: services.NewInsightService(logger),
		logger:   logger,
		started:  time.Now(),
	}
}

type analyzeResponse struct {
	Analysis *models.Analysis      `json:"analysis"`
	Summary  *models.InsightReport `json:"summary"`
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "carinfo-scanner",
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}

// AnalyzeDocument analyzes an HTML classifieds page sent as the request
// body. ?source= names the page URL for resolving relative links.
func (h *Handler) AnalyzeDocument(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDocumentBytes+1))
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "could not read request body", err)
		return
	}
	if len(body) == 0 {
		errorResponse(c, http.StatusBadRequest, "request body must be an HTML document", nil)
		return
	}
	if len(body) > maxDocumentBytes {
		errorResponse(c, http.StatusRequestEntityTooLarge, "document too large", nil)
		return
	}

	source := c.Query("source")
	analysis, err := h.analyzer.Analyze(bytes.NewReader(body), source)
	h.respond(c, source, analysis, err)
}

// AnalyzeQuery fetches and analyzes the classifieds page selected by the
// query string.
func (h *Handler) AnalyzeQuery(c *gin.Context) {
	q, err := parseQuery(c)
	if err == nil {
		err = q.Validate()
	}
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid query", err)
		return
	}

	analysis, err := h.analyzer.AnalyzeQuery(c.Request.Context(), q)
	if err != nil && analysis == nil && !isPipelineError(err) {
		errorResponse(c, http.StatusBadGateway, "could not fetch classifieds page", err)
		return
	}
	h.respond(c, q.String(), analysis, err)
}

func (h *Handler) respond(c *gin.Context, title string, analysis *models.Analysis, err error) {
	var ferr *services.FitError
	switch {
	case errors.Is(err, services.ErrNoListings):
		pipelineErrorResponse(c, http.StatusNotFound, "no listings found", analysis, err)
	case errors.As(err, &ferr):
		pipelineErrorResponse(c, http.StatusUnprocessableEntity, "no price trend could be fitted", analysis, err)
	case err != nil:
		errorResponse(c, http.StatusBadRequest, "could not analyze document", err)
	default:
		c.JSON(http.StatusOK, analyzeResponse{
			Analysis: analysis,
			Summary:  h.insights.Generate(title, analysis),
		})
	}
}

func isPipelineError(err error) bool {
	var ferr *services.FitError
	return errors.Is(err, services.ErrNoListings) || errors.As(err, &ferr)
}

// AnalyzeQueryRequest is the query string of GET /api/v1/analyze. Fuel and
// gearbox accept anything query.ParseFuel and query.ParseGearbox accept.
type AnalyzeQueryRequest struct {
	Make      string `form:"make" binding:"required"`
	Model     string `form:"model" binding:"required"`
	StartYear int    `form:"start_year" binding:"required"`
	EndYear   int    `form:"end_year" binding:"required"`
	Fuel      string `form:"fuel" binding:"required"`
	Gearbox   string `form:"gearbox" binding:"required"`
}

func parseQuery(c *gin.Context) (query.Query, error) {
	var req AnalyzeQueryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		return query.Query{}, err
	}

	q := query.Query{Make: req.Make, Model: req.Model, StartYear: req.StartYear, EndYear: req.EndYear}
	var err error
	if q.Fuel, err = query.ParseFuel(req.Fuel); err != nil {
		return q, err
	}
	if q.Gearbox, err = query.ParseGearbox(req.Gearbox); err != nil {
		return q, err
	}
	return q, nil
}

func errorResponse(c *gin.Context, status int, message string, err error) {
	resp := gin.H{"success": false, "message": message}
	if err != nil {
		resp["error"] = err.Error()
	}
	c.JSON(status, resp)
}

// pipelineErrorResponse keeps the row counts of a partial analysis so
// clients can tell an empty page from one whose rows were all skipped.
func pipelineErrorResponse(c *gin.Context, status int, message string, analysis *models.Analysis, err error) {
	resp := gin.H{"success": false, "message": message, "error": err.Error()}
	if analysis != nil {
		resp["rows_found"] = analysis.RowsFound
		resp["extraction_skips"] = analysis.ExtractionSkips
		resp["normalization_failures"] = analysis.NormalizationFailures
	}
	c.JSON(status, resp)
}
