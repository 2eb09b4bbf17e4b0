package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePinger is a Pinger with a fixed result.
type fakePinger struct {
	err error
}

func (f fakePinger) Ping(context.Context) error {
	return f.err
}

// setupTestRouter creates a bare test Gin router.
func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestHealthHandler_Health(t *testing.T) {
	handler := &HealthHandler{startTime: time.Now(), env: "test"}

	router := setupTestRouter()
	router.GET("/health", handler.Health)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var response HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, HealthResponse{Status: "healthy"}, response)
}

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		name           string
		pingErr        error
		expectedStatus int
		expectedBody   ReadyResponse
	}{
		{
			name:           "returns 200 when database is connected",
			expectedStatus: http.StatusOK,
			expectedBody:   ReadyResponse{Status: "ready", Database: "connected"},
		},
		{
			name:           "returns 503 when database ping fails",
			pingErr:        errors.New("connection refused"),
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   ReadyResponse{Status: "not_ready", Database: "disconnected"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(fakePinger{err: tt.pingErr}, "test")

			router := setupTestRouter()
			router.GET("/health/ready", handler.Ready)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response ReadyResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedBody, response)
		})
	}
}

func TestHealthHandler_Info(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		startTime   time.Time
		checkUptime bool
	}{
		{
			name:        "returns API info with development environment",
			env:         "development",
			startTime:   time.Now().Add(-2 * time.Hour),
			checkUptime: true,
		},
		{
			name:        "returns API info with production environment",
			env:         "production",
			startTime:   time.Now().Add(-24 * time.Hour),
			checkUptime: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := &HealthHandler{startTime: tt.startTime, env: tt.env}

			router := setupTestRouter()
			router.GET("/api/v1/info", handler.Info)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/info", nil))

			assert.Equal(t, http.StatusOK, w.Code)

			var response InfoResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, APIVersion, response.Version)
			assert.Equal(t, tt.env, response.Environment)
			if tt.checkUptime {
				assert.NotEmpty(t, response.Uptime)
			}
		})
	}
}

// fakeSweep is a SweepReporter with a fixed last run.
type fakeSweep struct {
	at  time.Time
	err error
}

func (f fakeSweep) LastRun() (time.Time, error) {
	return f.at, f.err
}

func TestHealthHandler_InfoReportsSweep(t *testing.T) {
	lastRun := time.Date(2026, time.March, 16, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		sweep   fakeSweep
		wantRun bool
		wantErr string
	}{
		{name: "never ran", sweep: fakeSweep{}},
		{name: "succeeded", sweep: fakeSweep{at: lastRun}, wantRun: true},
		{
			name:    "failed",
			sweep:   fakeSweep{at: lastRun, err: errors.New("store unavailable")},
			wantRun: true,
			wantErr: "store unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(fakePinger{}, "test").WithSweep(tt.sweep)

			router := setupTestRouter()
			router.GET("/api/v1/info", handler.Info)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/info", nil))
			require.Equal(t, http.StatusOK, w.Code)

			var response InfoResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			require.NotNil(t, response.OverdueSweep)
			if tt.wantRun {
				require.NotNil(t, response.OverdueSweep.LastRun)
				assert.True(t, lastRun.Equal(*response.OverdueSweep.LastRun))
			} else {
				assert.Nil(t, response.OverdueSweep.LastRun)
			}
			assert.Equal(t, tt.wantErr, response.OverdueSweep.Error)
		})
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{
			name:     "formats seconds only",
			duration: 45 * time.Second,
			expected: "0h 0m 45s",
		},
		{
			name:     "formats hours, minutes and seconds",
			duration: 2*time.Hour + 15*time.Minute + 45*time.Second,
			expected: "2h 15m 45s",
		},
		{
			name:     "formats days, hours, minutes and seconds",
			duration: 3*24*time.Hour + 5*time.Hour + 30*time.Minute + 15*time.Second,
			expected: "3d 5h 30m 15s",
		},
		{
			name:     "formats zero duration",
			duration: 0,
			expected: "0h 0m 0s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatUptime(tt.duration))
		})
	}
}
