package httpservice

import (
	"github.com/magicians360/pinkflow/pkg/protocol"
)

// Factory creates HTTP adapters.
type Factory struct{}

// NewFactory creates a new HTTP adapter factory.
func NewFactory() protocol.AdapterFactory {
	return &Factory{}
}

func (f *Factory) Create(config map[string]any) (protocol.Adapter, error) {
	return NewAdapter(config)
}

func (f *Factory) ID() string {
	return "http"
}

func (f *Factory) Name() string {
	return "HTTP Service"
}

func (f *Factory) Description() string {
	return "Invokes service actions by POSTing step parameters as JSON to <base_url>/<action>"
}

// Schema returns the JSON schema for HTTP adapter configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"base_url": map[string]any{
				"type":        "string",
				"description": "Service base URL; the action name is appended as a path segment",
				"examples":    []string{"https://api.northwestregisteredagent.com/v1"},
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "Static headers sent with every request",
			},
			"timeout": map[string]any{
				"type":        "number",
				"description": "HTTP client timeout in seconds",
				"default":     30,
				"minimum":     1,
				"maximum":     300,
			},
			"health_path": map[string]any{
				"type":        "string",
				"description": "Optional path probed by GET to report integration status",
			},
		},
		"required": []string{"base_url"},
	}
}
