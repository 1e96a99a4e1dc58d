package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// ErrorResponse is the wire-stable error envelope (spec.md §6):
// {code, message, retryable, details?}.
type ErrorResponse struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

var errMissingTenant = model.NewError(model.CodeUnauthorized, "X-Tenant-ID header is required")

// badRequestError wraps a request-deserialization failure as the
// closed taxonomy's SchemaViolation code.
func badRequestError(message string) error {
	return model.NewError(model.CodeSchemaViolation, message)
}

// statusForCode maps the closed error taxonomy (spec.md §7) to an HTTP
// status. Codes not listed fall through to 500.
var statusForCode = map[model.Code]int{
	model.CodeSchemaViolation:  http.StatusBadRequest,
	model.CodeBadReference:     http.StatusNotFound,
	model.CodeClassMismatch:    http.StatusBadRequest,
	model.CodeCycle:            http.StatusBadRequest,
	model.CodeMultiParent:      http.StatusBadRequest,
	model.CodeMultiLevel:       http.StatusBadRequest,
	model.CodeDanglingEdge:     http.StatusBadRequest,
	model.CodeBuiltinImmutable: http.StatusConflict,
	model.CodeOutputValidation: http.StatusBadRequest,
	model.CodeUnauthorized:     http.StatusUnauthorized,
	model.CodeToolDenied:       http.StatusForbidden,
	model.CodeCrossTenant:      http.StatusForbidden,
	model.CodeNoViableAgents:   http.StatusUnprocessableEntity,
	model.CodeSynthesisRefused: http.StatusUnprocessableEntity,
	model.CodeInternal:         http.StatusInternalServerError,
	model.CodeAtCapacity:       http.StatusTooManyRequests,
	model.CodeBackpressure:     http.StatusTooManyRequests,
	model.CodeCancelled:        http.StatusConflict,
}

// writeError serializes err as the standard error envelope, picking the
// HTTP status from the closed Code taxonomy when err is a *model.Error
// and falling back to 500 for anything unrecognized.
func writeError(c *gin.Context, err error) {
	var modelErr *model.Error
	if errors.As(err, &modelErr) {
		status, ok := statusForCode[modelErr.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		c.JSON(status, ErrorResponse{
			Code:      string(modelErr.Code),
			Message:   modelErr.Message,
			Retryable: modelErr.Retryable(),
			Details:   modelErr.Details,
		})
		return
	}

	slog.Error("unexpected handler error", "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Code:    string(model.CodeInternal),
		Message: "internal server error",
	})
}
