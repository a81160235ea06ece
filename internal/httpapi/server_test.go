package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/internal/adapters/memcache"
	"tradejournal/internal/adapters/sqlite"
	"tradejournal/internal/app"
)

type noopLogger struct{}

func (noopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (noopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Logger: noopLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	svc, err := app.New(app.ServiceConfig{
		Logger:   noopLogger{},
		Trades:   repo,
		Batches:  repo,
		Settings: repo,
		Cache:    memcache.New(),
		CacheTTL: time.Second,
	})
	require.NoError(t, err)

	srv, err := NewServer(svc, noopLogger{}, Config{
		Password: "hunter2",
		Secret:   "test-secret",
		TokenTTL: time.Hour,
	})
	require.NoError(t, err)
	return srv.Router()
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func loginToken(t *testing.T, router *gin.Engine) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{"password": "hunter2"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	router := newTestServer(t)
	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/trades", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/trades", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTradeCRUDOverHTTP(t *testing.T) {
	router := newTestServer(t)
	token := loginToken(t, router)

	create := map[string]interface{}{
		"symbol":     "RELIANCE",
		"side":       "LONG",
		"entryDate":  "2024-03-15T09:30:00Z",
		"entryPrice": 100,
		"entryQty":   10,
	}
	rec := doJSON(t, router, http.MethodPost, "/api/trades", token, create)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID       string  `json:"id"`
		StopLoss float64 `json:"stopLoss"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 97.0, created.StopLoss)

	rec = doJSON(t, router, http.MethodGet, "/api/trades/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var withMetrics struct {
		Metrics struct {
			Status  string  `json:"status"`
			OpenQty float64 `json:"openQty"`
		} `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &withMetrics))
	assert.Equal(t, "OPEN", withMetrics.Metrics.Status)
	assert.Equal(t, 10.0, withMetrics.Metrics.OpenQty)

	exit := map[string]interface{}{
		"exitDate":  "2024-03-18T14:00:00Z",
		"exitPrice": 110,
		"exitQty":   10,
	}
	rec = doJSON(t, router, http.MethodPost, "/api/trades/"+created.ID+"/exits", token, exit)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodDelete, "/api/trades/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/trades/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidationErrorsMapTo400(t *testing.T) {
	router := newTestServer(t)
	token := loginToken(t, router)

	create := map[string]interface{}{
		"symbol":     "",
		"side":       "LONG",
		"entryDate":  "2024-03-15T09:30:00Z",
		"entryPrice": 100,
		"entryQty":   10,
	}
	rec := doJSON(t, router, http.MethodPost, "/api/trades", token, create)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "Symbol")
}

func TestImportAndDashboardOverHTTP(t *testing.T) {
	router := newTestServer(t)
	token := loginToken(t, router)

	csvText := "symbol,trade type,quantity,price,order id,order execution time\n" +
		"RELIANCE,buy,10,100,ORD1,2024-03-15 09:30:00\n" +
		"RELIANCE,sell,10,120,ORD2,2024-03-18 14:00:00\n"
	rec := doJSON(t, router, http.MethodPost, "/api/imports/zerodha", token, map[string]string{
		"csvText": csvText, "fileName": "tradebook.csv",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result struct {
		NewTradesCount int `json:"newTradesCount"`
		Batch          struct {
			ID string `json:"id"`
		} `json:"batch"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.NewTradesCount)

	rec = doJSON(t, router, http.MethodGet, "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var dash struct {
		Summary struct {
			TotalRealizedPnL float64 `json:"totalRealizedPnL"`
			TradesCount      int     `json:"tradesCount"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dash))
	assert.Equal(t, 1, dash.Summary.TradesCount)
	assert.Equal(t, 200.0, dash.Summary.TotalRealizedPnL)

	rec = doJSON(t, router, http.MethodDelete, "/api/imports/"+result.Batch.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSettingsOverHTTP(t *testing.T) {
	router := newTestServer(t)
	token := loginToken(t, router)

	rec := doJSON(t, router, http.MethodPut, "/api/settings", token, map[string]float64{
		"totalCapital": 500000, "defaultCharges": 40,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/settings", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var settings struct {
		TotalCapital float64 `json:"totalCapital"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, 500000.0, settings.TotalCapital)
}
