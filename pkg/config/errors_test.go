package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fieldstack/orchestrator/pkg/model"
)

func TestValidationErrorError(t *testing.T) {
	baseErr := errors.New("base error")

	tests := []struct {
		name     string
		err      *ValidationError
		contains []string
	}{
		{
			name: "full error",
			err:  NewValidationError(model.CodeBadReference, "agent", "test-agent", "dependency_parent", baseErr),
			contains: []string{"agent", "test-agent", "dependency_parent", "base error"},
		},
		{
			name: "no field",
			err:  NewValidationError(model.CodeCycle, "graph", "g-1", "", errors.New("cyclic")),
			contains: []string{"graph", "g-1", "cyclic"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.contains {
				assert.Contains(t, errStr, substr)
			}
		})
	}
}

func TestValidationErrorUnwrap(t *testing.T) {
	baseErr := errors.New("base error")
	verr := NewValidationError(model.CodeSchemaViolation, "agent", "a-1", "output_schema", baseErr)

	assert.Equal(t, baseErr, verr.Unwrap())
	assert.True(t, errors.Is(verr, baseErr))
}

func TestValidationErrorAsModelError(t *testing.T) {
	verr := NewValidationError(model.CodeMultiParent, "graph", "g-1", "edges", errors.New("boom"))
	merr := verr.AsModelError()
	assert.Equal(t, model.CodeMultiParent, merr.Code)
	assert.False(t, merr.Retryable())
}
