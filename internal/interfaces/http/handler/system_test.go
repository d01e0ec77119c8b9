package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemHandler_Health(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantStatus int
		want       HealthResponse
	}{
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			want:       HealthResponse{Status: "ok"},
		},
		{
			name: "all up",
			checks: map[string]HealthCheck{
				"database": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return nil },
			},
			wantStatus: http.StatusOK,
			want:       HealthResponse{Status: "ok", Checks: map[string]string{"database": "up", "redis": "up"}},
		},
		{
			name: "database down",
			checks: map[string]HealthCheck{
				"database": func(context.Context) error { return errors.New("connection refused") },
				"redis":    func(context.Context) error { return nil },
			},
			wantStatus: http.StatusServiceUnavailable,
			want:       HealthResponse{Status: "degraded", Checks: map[string]string{"database": "down", "redis": "up"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSystemHandler("invoicing", "test")
			for name, check := range tt.checks {
				h.AddCheck(name, check)
			}
			w, c := newTestContext(http.MethodGet, "/health")

			h.Health(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			var got HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, w.Body.String(), "connection refused")
		})
	}
}

func TestSystemHandler_Health_CheckHasDeadline(t *testing.T) {
	var deadline time.Time
	h := NewSystemHandler("invoicing", "test").AddCheck("database", func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return nil
	})
	_, c := newTestContext(http.MethodGet, "/health")

	h.Health(c)

	assert.WithinDuration(t, time.Now().Add(healthCheckTimeout), deadline, time.Second)
}

func TestSystemHandler_HealthOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	w, _ := api.do(http.MethodGet, "/health", nil, withoutAuth())
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"database":"up"}}`, w.Body.String())
}

func TestSystemHandler_GetSystemInfo(t *testing.T) {
	h := NewSystemHandler("invoicing", "1.2.3")
	w, c := newTestContext(http.MethodGet, "/system/info")

	h.GetSystemInfo(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "invoicing", data["name"])
	assert.Equal(t, "1.2.3", data["version"])
	assert.NotEmpty(t, data["go_version"])
	assert.NotEmpty(t, data["uptime"])
}

func TestSystemHandler_Ping(t *testing.T) {
	h := NewSystemHandler("invoicing", "test")
	w, c := newTestContext(http.MethodGet, "/system/ping")

	h.Ping(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]any)
	assert.Equal(t, "pong", data["message"])
	_, err := time.Parse(time.RFC3339, data["timestamp"].(string))
	assert.NoError(t, err)
}
