package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/honeynil/RentalOrderService/internal/handler"
	"github.com/honeynil/RentalOrderService/internal/infrastructure/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "router-secret"

func TestSetupRouter_ProtectedRoutesRequireToken(t *testing.T) {
	router := SetupRouter(handler.NewHandler(nil), secret, nil)

	req := httptest.NewRequest(http.MethodGet, "/rentals/1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Invalid bodies are rejected before the service is reached.
	token, err := auth.IssueToken(secret, 5, time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/rentals", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetupRouter_Health(t *testing.T) {
	healthy := SetupRouter(handler.NewHandler(nil), secret, map[string]HealthCheck{
		"postgres": func(ctx context.Context) error { return nil },
	})
	rec := httptest.NewRecorder()
	healthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	failing := SetupRouter(handler.NewHandler(nil), secret, map[string]HealthCheck{
		"redis": func(ctx context.Context) error { return errors.New("connection refused") },
	})
	rec = httptest.NewRecorder()
	failing.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestSetupRouter_Metrics(t *testing.T) {
	router := SetupRouter(handler.NewHandler(nil), secret, nil)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{endpoint="/healthz",method="GET",status="200"}`)
}
