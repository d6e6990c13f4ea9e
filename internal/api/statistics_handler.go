package api

import (
	"net/http"
	"strconv"

	"coinsleuth/app"
	"coinsleuth/domain/core"
	"coinsleuth/domain/partition"
	"coinsleuth/domain/stats"
	"coinsleuth/internal"
	apperrors "coinsleuth/internal/errors"

	"github.com/gin-gonic/gin"
)

// StatisticsHandler serves statistics tables, summaries and sample analysis
type StatisticsHandler struct {
	store    *app.StatisticsStore
	analyzer *app.SequenceAnalyzer
	tester   *app.SampleTester
	sampling *app.SamplingService
	logger   *internal.Logger
}

// SequencesRequest carries the sample of an analyze or test request
type SequencesRequest struct {
	Sequences []string `json:"sequences" binding:"required,min=1"`
}

// NewStatisticsHandler creates a new statistics handler
func NewStatisticsHandler(
	store *app.StatisticsStore,
	analyzer *app.SequenceAnalyzer,
	tester *app.SampleTester,
	sampling *app.SamplingService,
	logger *internal.Logger,
) *StatisticsHandler {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &StatisticsHandler{
		store:    store,
		analyzer: analyzer,
		tester:   tester,
		sampling: sampling,
		logger:   logger.WithComponent("API"),
	}
}

// GetTable returns the statistics table for :n
func (h *StatisticsHandler) GetTable(c *gin.Context) {
	n, ok := h.lengthParam(c, c.Param("n"))
	if !ok {
		return
	}

	table, err := h.store.GetTable(c.Request.Context(), n)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newTableResponse(table))
}

// GetRow returns the row of :partition in the table for :n
func (h *StatisticsHandler) GetRow(c *gin.Context) {
	n, ok := h.lengthParam(c, c.Param("n"))
	if !ok {
		return
	}

	p, err := partition.ID(c.Param("partition")).Parse()
	if err != nil {
		h.fail(c, core.NewValidationError("partition", err.Error()))
		return
	}
	if !p.Valid(n) {
		h.fail(c, core.NewValidationError("partition", "parts must sum to n"))
		return
	}

	table, err := h.store.GetTable(c.Request.Context(), n)
	if err != nil {
		h.fail(c, err)
		return
	}
	row, found := table.Lookup(p.ID())
	if !found {
		h.fail(c, core.NewInvariantError("partition %s missing from %s", p.ID(), table.Key()))
		return
	}
	c.JSON(http.StatusOK, newRowResponse(row))
}

// GetSummary returns the summary table of :statistic
func (h *StatisticsHandler) GetSummary(c *gin.Context) {
	statistic, err := stats.ParseStatistic(c.Param("statistic"))
	if err != nil {
		h.fail(c, err)
		return
	}

	summary, err := h.store.GetSummary(c.Request.Context(), statistic)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newSummaryResponse(summary))
}

// Analyze returns one record per posted sequence
func (h *StatisticsHandler) Analyze(c *gin.Context) {
	var req SequencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, core.NewValidationError("body", err.Error()))
		return
	}

	records, err := h.analyzer.AnalyzeSample(c.Request.Context(), req.Sequences)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": newRecordResponses(records)})
}

// Test analyzes the posted sample and z-tests it against the population
func (h *StatisticsHandler) Test(c *gin.Context) {
	var req SequencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, core.NewValidationError("body", err.Error()))
		return
	}

	ctx := c.Request.Context()
	records, err := h.analyzer.AnalyzeSample(ctx, req.Sequences)
	if err != nil {
		h.fail(c, err)
		return
	}
	report, err := h.tester.Test(ctx, records)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newSampleReportResponse(report, records))
}

// MarginsOfError reports margins for ?n=&sample_size=&statistic=
func (h *StatisticsHandler) MarginsOfError(c *gin.Context) {
	n, ok := h.lengthParam(c, c.Query("n"))
	if !ok {
		return
	}
	sampleSize, err := strconv.Atoi(c.Query("sample_size"))
	if err != nil {
		h.fail(c, core.NewValidationError("sample_size", "must be an integer"))
		return
	}
	statistic, err := stats.ParseStatistic(c.DefaultQuery("statistic", string(stats.ChiSquared)))
	if err != nil {
		h.fail(c, err)
		return
	}

	margins, err := h.sampling.MarginsOfError(c.Request.Context(), n, sampleSize, statistic)
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := make([]gin.H, len(margins))
	for i, m := range margins {
		resp[i] = gin.H{"confidence_level": m.ConfidenceLevel, "z_score": m.ZScore, "margin": finite(m.Margin)}
	}
	c.JSON(http.StatusOK, gin.H{
		"n":           n,
		"sample_size": sampleSize,
		"statistic":   statistic,
		"margins":     resp,
	})
}

func (h *StatisticsHandler) lengthParam(c *gin.Context, raw string) (int, bool) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		h.fail(c, core.NewValidationError("n", "must be an integer"))
		return 0, false
	}
	return n, true
}

func (h *StatisticsHandler) fail(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": apperrors.GetCode(err)})
}
