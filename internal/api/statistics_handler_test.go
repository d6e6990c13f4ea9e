package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"coinsleuth/app"
	"coinsleuth/internal"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, health HealthCheck) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := internal.NewLogger(internal.LogLevelError)

	store, err := app.NewStatisticsStore(app.StoreConfig{EnableInMemoryCache: true}, nil, logger)
	require.NoError(t, err)

	handler := NewStatisticsHandler(
		store,
		app.NewSequenceAnalyzer(store, 2, logger),
		app.NewSampleTester(store, logger),
		app.NewSamplingService(store, store, 2, logger),
		logger,
	)
	return NewRouter(handler, health)
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestGetTable(t *testing.T) {
	router := newTestRouter(t, nil)

	w := serve(router, http.MethodGet, "/api/statistics/4", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "/statistics/N_4", body["key"])
	assert.Equal(t, float64(16), body["total_multiplicity"])
	rows := body["rows"].([]interface{})
	require.Len(t, rows, 5)
	assert.Equal(t, "1+1+2", rows[0].(map[string]interface{})["partition"])
	assert.Equal(t, float64(1), rows[0].(map[string]interface{})["p_value"])
}

func TestGetTable_SingleFlipEncodesNull(t *testing.T) {
	router := newTestRouter(t, nil)

	w := serve(router, http.MethodGet, "/api/statistics/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	row := decode(t, w)["rows"].([]interface{})[0].(map[string]interface{})
	assert.Nil(t, row["log_chi_squared"])
	assert.Equal(t, float64(0), row["chi_squared"])
}

func TestGetTable_BadLength(t *testing.T) {
	router := newTestRouter(t, nil)

	for _, path := range []string{"/api/statistics/abc", "/api/statistics/0", "/api/statistics/64"} {
		w := serve(router, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Equal(t, "INVALID_INPUT", decode(t, w)["code"], path)
	}
}

func TestGetRow(t *testing.T) {
	router := newTestRouter(t, nil)

	w := serve(router, http.MethodGet, "/api/statistics/4/rows/2+2", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "2+2", body["partition"])
	assert.InDelta(t, 0.375, body["p_value"], 1e-12)

	w = serve(router, http.MethodGet, "/api/statistics/4/rows/2+3", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSummary(t *testing.T) {
	router := newTestRouter(t, nil)
	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/statistics/3", "").Code)

	w := serve(router, http.MethodGet, "/api/summary/chi_squared", "")
	require.Equal(t, http.StatusOK, w.Code)
	rows := decode(t, w)["rows"].([]interface{})
	require.Len(t, rows, 1)
	assert.InDelta(t, 2.2, rows[0].(map[string]interface{})["mean"], 1e-12)

	w = serve(router, http.MethodGet, "/api/summary/kurtosis", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyze(t *testing.T) {
	router := newTestRouter(t, nil)

	w := serve(router, http.MethodPost, "/api/analyze", `{"sequences":["0011","HTHT"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	records := decode(t, w)["records"].([]interface{})
	require.Len(t, records, 2)
	assert.Equal(t, "0011", records[0].(map[string]interface{})["sequence"])
	assert.InDelta(t, 4.9, records[0].(map[string]interface{})["chi_squared"], 1e-9)

	w = serve(router, http.MethodPost, "/api/analyze", `{"sequences":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(router, http.MethodPost, "/api/analyze", `{"sequences":["012"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTestSample(t *testing.T) {
	router := newTestRouter(t, nil)

	w := serve(router, http.MethodPost, "/api/test", `{"sequences":["0000","1111","0000"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(3), body["sample_size"])
	assert.NotEmpty(t, body["run_id"])
	assert.Len(t, body["results"].([]interface{}), 3)

	w = serve(router, http.MethodPost, "/api/test", `{"sequences":["000","1111"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarginsOfError(t *testing.T) {
	router := newTestRouter(t, nil)

	w := serve(router, http.MethodGet, "/api/moe?n=3&sample_size=16&statistic=chi_squared", "")
	require.Equal(t, http.StatusOK, w.Code)
	margins := decode(t, w)["margins"].([]interface{})
	assert.Len(t, margins, len(app.ConfidenceLevels))

	w = serve(router, http.MethodGet, "/api/moe?n=3", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t, nil)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/healthz", "").Code)

	serve(router, http.MethodGet, "/api/statistics/5", "")
	w := serve(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "coinsleuth_table_lookups_total")

	down := newTestRouter(t, func() error { return errors.New("database closed") })
	assert.Equal(t, http.StatusServiceUnavailable, serve(down, http.MethodGet, "/healthz", "").Code)
}
