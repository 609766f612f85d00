// Package httpservice provides an adapter that invokes service actions over JSON HTTP.
package httpservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/magicians360/pinkflow/pkg/protocol"
)

const maxResponseBytes = 4 << 20

// Config defines how to reach one HTTP service.
type Config struct {
	BaseURL    string            `json:"base_url"`
	Headers    map[string]string `json:"headers"`
	Timeout    int               `json:"timeout"`
	HealthPath string            `json:"health_path"`
}

// Adapter posts parameters as JSON to <base_url>/<action> and returns the JSON response.
type Adapter struct {
	config Config
	client *http.Client
}

// NewAdapter creates an HTTP adapter from a configuration map.
func NewAdapter(config map[string]any) (*Adapter, error) {
	httpConfig := Config{
		Headers: make(map[string]string),
		Timeout: 30,
	}

	baseURL, ok := config["base_url"].(string)
	if !ok || baseURL == "" {
		return nil, errors.New("missing required field 'base_url'")
	}

	httpConfig.BaseURL = strings.TrimSuffix(baseURL, "/")

	if headers, ok := config["headers"].(map[string]any); ok {
		for k, v := range headers {
			if strVal, ok := v.(string); ok {
				httpConfig.Headers[k] = strVal
			}
		}
	}

	switch timeout := config["timeout"].(type) {
	case int:
		httpConfig.Timeout = timeout
	case float64:
		httpConfig.Timeout = int(timeout)
	}

	if httpConfig.Timeout < 1 || httpConfig.Timeout > 300 {
		return nil, errors.New("timeout must be between 1 and 300 seconds")
	}

	if healthPath, ok := config["health_path"].(string); ok {
		httpConfig.HealthPath = healthPath
	}

	return &Adapter{
		config: httpConfig,
		client: &http.Client{Timeout: time.Duration(httpConfig.Timeout) * time.Second},
	}, nil
}

// Invoke performs the action request. Non-2xx responses are returned as *protocol.StatusError.
func (a *Adapter) Invoke(ctx context.Context, action string, parameters map[string]any) (map[string]any, error) {
	if parameters == nil {
		parameters = map[string]any{}
	}

	body, err := json.Marshal(parameters)
	if err != nil {
		return nil, fmt.Errorf("failed to encode parameters: %w", err)
	}

	url := a.config.BaseURL + "/" + strings.TrimPrefix(action, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range a.config.Headers {
		req.Header.Set(key, value)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return nil, &protocol.StatusError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(respBody)),
		}
	}

	return decodeResult(resp.StatusCode, respBody), nil
}

// Ping checks the service's health endpoint when one is configured.
func (a *Adapter) Ping(ctx context.Context) error {
	if a.config.HealthPath == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.BaseURL+a.config.HealthPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}

	_ = resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &protocol.StatusError{StatusCode: resp.StatusCode, Message: "health check failed"}
	}

	return nil
}

func decodeResult(statusCode int, body []byte) map[string]any {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{"status_code": statusCode}
	}

	var object map[string]any
	if err := json.Unmarshal(body, &object); err == nil {
		return object
	}

	var value any
	if err := json.Unmarshal(body, &value); err == nil {
		return map[string]any{"data": value}
	}

	return map[string]any{"body": string(body), "status_code": statusCode}
}
