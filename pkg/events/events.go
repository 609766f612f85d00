// Package events defines the event type taxonomy and bus conventions.
package events

import "strings"

// Topic carries every ingested event on the event bus.
const Topic = "pinkflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Business formation events.
	BusinessFormationSubmitted = "business.formation.submitted"
	BusinessFormationCompleted = "business.formation.completed"
	BusinessFormationFailed    = "business.formation.failed"
	BusinessAnalyticsGenerated = "business.analytics.generated"

	// Vocational rehabilitation events.
	V4DeafProgressUpdated        = "v4deaf.progress.updated"
	V4DeafAccommodationRequested = "v4deaf.accommodation.requested"
	V4DeafAccommodationApproved  = "v4deaf.accommodation.approved"

	// PinkSync platform events.
	PinkSyncSessionScheduled        = "pinksync.session.scheduled"
	PinkSyncSessionCompleted        = "pinksync.session.completed"
	PinkSyncTransformationCompleted = "pinksync.transformation.completed"

	// Video events.
	VideoUploaded  = "video.uploaded"
	VideoProcessed = "video.processed"
	VideoCaptioned = "video.captioned"

	// Legal events.
	LegalConsultationScheduled = "legal.consultation.scheduled"
	LegalConsultationCompleted = "legal.consultation.completed"
	LegalDocumentGenerated     = "legal.document.generated"

	// Workflow lifecycle events, emitted by the engine itself.
	WorkflowStarted       = "workflow.started"
	WorkflowCompleted     = "workflow.completed"
	WorkflowFailed        = "workflow.failed"
	WorkflowStepCompleted = "workflow.step.completed"
	WorkflowStepFailed    = "workflow.step.failed"
	WorkflowStepWaiting   = "workflow.step.waiting"

	// Sync events.
	SyncCompleted = "sync.completed"
	SyncFailed    = "sync.failed"
)

// SourceEngine is the source recorded on events emitted by the engine.
const SourceEngine = "pinkflow"

// Namespace returns the first segment of a dot-namespaced event type.
func Namespace(eventType string) string {
	namespace, _, _ := strings.Cut(eventType, ".")

	return namespace
}

// ValidType reports whether eventType is a non-empty dot-namespaced name without empty segments.
func ValidType(eventType string) bool {
	if eventType == "" || strings.ContainsAny(eventType, " *") {
		return false
	}

	for _, segment := range strings.Split(eventType, ".") {
		if segment == "" {
			return false
		}
	}

	return true
}
