package models

import "time"

// IntegrationType groups external services by what they provide.
type IntegrationType string

const (
	IntegrationBusinessFormation IntegrationType = "business-formation"
	IntegrationLegalServices     IntegrationType = "legal-services"
	IntegrationVideoProcessing   IntegrationType = "video-processing"
	IntegrationAccessibility     IntegrationType = "accessibility"
	IntegrationDocumentation     IntegrationType = "documentation"
	IntegrationInternal          IntegrationType = "internal"
)

// IntegrationStatus reports whether an integration can take step invocations.
type IntegrationStatus string

const (
	IntegrationConnected    IntegrationStatus = "connected"
	IntegrationDisconnected IntegrationStatus = "disconnected"
)

// Integration describes a registered service adapter.
type Integration struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Type    IntegrationType   `json:"type"`
	Status  IntegrationStatus `json:"status"`
	Actions []string          `json:"actions,omitempty"`

	// ConnectedAt is when a connect request last reached the service.
	ConnectedAt *time.Time `json:"connectedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
}
