package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/magicians360/pinkflow/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValues(t *testing.T) {
	t.Parallel()

	cfg := config.NewDefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Second, cfg.StepTimeout)
	assert.Equal(t, 3, cfg.StepRetry.MaxAttempts)
	assert.Equal(t, 3, cfg.WebhookRetry.MaxAttempts)
	assert.Equal(t, 24*time.Hour, cfg.DedupWindow)
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
	assert.Zero(t, cfg.UserActionTimeout)
	assert.Contains(t, cfg.SyncRoutes, config.SyncTypeBusinessVR)
	assert.Contains(t, cfg.SyncRoutes, config.SyncTypePinksyncPlatform)
	assert.Contains(t, cfg.SyncRoutes, config.SyncTypeFull)
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		configMod func(*config.Config)
		wantErr   error
	}{
		{
			name:      "zero step timeout",
			configMod: func(c *config.Config) { c.StepTimeout = 0 },
			wantErr:   config.ErrInvalidStepTimeout,
		},
		{
			name:      "no attempts",
			configMod: func(c *config.Config) { c.StepRetry.MaxAttempts = 0 },
			wantErr:   config.ErrInvalidRetryAttempts,
		},
		{
			name: "max interval below initial",
			configMod: func(c *config.Config) {
				c.WebhookRetry.InitialInterval = time.Second
				c.WebhookRetry.MaxInterval = time.Millisecond
			},
			wantErr: config.ErrRetryMaxIntervalTooSmall,
		},
		{
			name:      "shrinking multiplier",
			configMod: func(c *config.Config) { c.StepRetry.Multiplier = 0.5 },
			wantErr:   config.ErrInvalidMultiplier,
		},
		{
			name:      "zero concurrency",
			configMod: func(c *config.Config) { c.WebhookConcurrency = 0 },
			wantErr:   config.ErrInvalidConcurrency,
		},
		{
			name:      "negative user action timeout",
			configMod: func(c *config.Config) { c.UserActionTimeout = -time.Second },
			wantErr:   config.ErrInvalidUserActionTimeout,
		},
		{
			name: "incomplete sync route",
			configMod: func(c *config.Config) {
				c.SyncRoutes["broken"] = config.SyncRoute{Source: config.Endpoint{Service: "x"}}
			},
			wantErr: config.ErrInvalidSyncRoute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.NewDefaultConfig()
			tt.configMod(cfg)

			assert.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestLoadServicesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "services.yaml")
	content := `
services:
  - name: northwest
    adapter: http
    integration: business-formation
    config:
      base_url: https://northwest.example.com/api
      timeout: 15
    actions: [file, fetch]
    schemas:
      file:
        type: object
        required: [state]
  - name: internal
    adapter: internal
    integration: internal
sync_routes:
  business-vr:
    source: {service: northwest, action: fetch}
    target: {service: internal, action: reconcile}
auto_sync:
  - type: business-vr
    source_id: biz-1
    target_id: vr-1
    schedule: "@every 1m"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	file, err := config.LoadServicesFile(path)
	require.NoError(t, err)

	require.Len(t, file.Services, 2)
	assert.Equal(t, "northwest", file.Services[0].Name)
	assert.Equal(t, "http", file.Services[0].Adapter)
	assert.Equal(t, "https://northwest.example.com/api", file.Services[0].Config["base_url"])
	assert.Equal(t, []string{"file", "fetch"}, file.Services[0].Actions)
	assert.Equal(t, "object", file.Services[0].Schemas["file"]["type"])
	require.Len(t, file.AutoSync, 1)
	assert.Equal(t, "@every 1m", file.AutoSync[0].Schedule)

	cfg := config.NewDefaultConfig()
	file.Apply(cfg)

	assert.Equal(t, "internal", cfg.SyncRoutes[config.SyncTypeBusinessVR].Target.Service)
	assert.Equal(t, "internal", cfg.SyncRoutes[config.SyncTypeFull].Source.Service)
	require.NoError(t, cfg.Validate())
}

func TestLoadServicesFile_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "missing adapter", content: "services:\n  - name: northwest\n"},
		{name: "duplicate service", content: "services:\n  - {name: a, adapter: http}\n  - {name: a, adapter: http}\n"},
		{name: "incomplete auto sync", content: "auto_sync:\n  - type: full\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "services.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := config.LoadServicesFile(path)
			assert.ErrorIs(t, err, config.ErrInvalidServicesFile)
		})
	}

	_, err := config.LoadServicesFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
