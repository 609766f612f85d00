// Package web provides the HTTP handlers of the PinkFlow API.
package web

import (
	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/workflow"
	"github.com/moogar0880/problems"
)

// Response status values. Every body carries one of them under "status".
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ErrorResponse is an RFC 7807 problem extended with the API's error code and message.
// Status shadows the problem's numeric status so "status" stays a string in every body;
// the HTTP status code is reported under "code".
type ErrorResponse struct {
	*problems.Problem

	Status  string `json:"status"`
	Code    int    `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateWorkflowRequest is the body of POST /workflows. The owner comes from X-User-ID
// when the body leaves it empty.
type CreateWorkflowRequest struct {
	Name        string                 `json:"name"        validate:"required"`
	Description string                 `json:"description"`
	Owner       string                 `json:"owner"`
	Steps       []workflow.StepRequest `json:"steps"       validate:"required,min=1,dive"`
	Metadata    map[string]any         `json:"metadata,omitempty"`
}

// UpdateStepRequest is the body of PATCH /workflows/:id/steps/:stepId. Without a status,
// a request carrying an error fails the step and any other request completes it.
type UpdateStepRequest struct {
	Status models.StepStatus `json:"status,omitempty" validate:"omitempty,oneof=completed failed skipped"`
	Result map[string]any    `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// SyncRequest is the body of POST /sync/:type.
type SyncRequest struct {
	SourceID string `json:"sourceId" validate:"required"`
	TargetID string `json:"targetId" validate:"required"`
}

// CancelWorkflowRequest is the optional body of POST /workflows/:id/cancel.
type CancelWorkflowRequest struct {
	Reason string `json:"reason"`
}
