package httpservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/magicians360/pinkflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAdapter_Config(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  map[string]any
		wantErr bool
	}{
		{name: "minimal", config: map[string]any{"base_url": "http://localhost"}},
		{name: "float timeout from json", config: map[string]any{"base_url": "http://localhost", "timeout": float64(5)}},
		{name: "int timeout from yaml", config: map[string]any{"base_url": "http://localhost", "timeout": 5}},
		{name: "missing base url", config: map[string]any{}, wantErr: true},
		{name: "timeout too large", config: map[string]any{"base_url": "http://localhost", "timeout": 301}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewAdapter(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAdapter_Invoke(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/file", r.URL.Path)
		assert.Equal(t, "key-123", r.Header.Get("X-Api-Key"))

		var params map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&params))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"filingId": "F-1", "state": params["state"]})
	}))
	t.Cleanup(server.Close)

	adapter, err := NewAdapter(map[string]any{
		"base_url": server.URL + "/v1/",
		"headers":  map[string]any{"X-Api-Key": "key-123"},
	})
	require.NoError(t, err)

	result, err := adapter.Invoke(context.Background(), "file", map[string]any{"state": "DE"})
	require.NoError(t, err)
	assert.Equal(t, "F-1", result["filingId"])
	assert.Equal(t, "DE", result["state"])
}

func TestAdapter_InvokeStatusError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{name: "bad request", status: http.StatusBadRequest, retryable: false},
		{name: "unprocessable", status: http.StatusUnprocessableEntity, retryable: false},
		{name: "rate limited", status: http.StatusTooManyRequests, retryable: true},
		{name: "server error", status: http.StatusBadGateway, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			t.Cleanup(server.Close)

			adapter, err := NewAdapter(map[string]any{"base_url": server.URL})
			require.NoError(t, err)

			_, err = adapter.Invoke(context.Background(), "review", nil)
			require.Error(t, err)

			var statusErr *protocol.StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, tt.status, statusErr.StatusCode)
			assert.Equal(t, tt.retryable, statusErr.Retryable())
			assert.Equal(t, "nope", statusErr.Message)
		})
	}
}

func TestDecodeResult(t *testing.T) {
	t.Parallel()

	assert.Equal(t, map[string]any{"status_code": 204}, decodeResult(204, nil))
	assert.Equal(t, map[string]any{"data": []any{float64(1), float64(2)}}, decodeResult(200, []byte(`[1,2]`)))
	assert.Equal(t, map[string]any{"body": "ok", "status_code": 200}, decodeResult(200, []byte("ok")))
}

func TestAdapter_Ping(t *testing.T) {
	t.Parallel()

	var healthy atomic.Bool
	healthy.Store(true)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)

		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	t.Cleanup(server.Close)

	adapter, err := NewAdapter(map[string]any{"base_url": server.URL, "health_path": "/health"})
	require.NoError(t, err)

	require.NoError(t, adapter.Ping(context.Background()))

	healthy.Store(false)

	assert.Error(t, adapter.Ping(context.Background()))

	noProbe, err := NewAdapter(map[string]any{"base_url": "http://127.0.0.1:1"})
	require.NoError(t, err)
	assert.NoError(t, noProbe.Ping(context.Background()))
}
