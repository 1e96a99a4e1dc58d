package config

import (
	"errors"
	"fmt"

	"github.com/fieldstack/orchestrator/pkg/model"
)

var (
	// ErrConfigNotFound indicates configuration file was not found
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidYAML indicates YAML parsing failed
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// ErrValidationFailed indicates configuration validation failed
	ErrValidationFailed = errors.New("configuration validation failed")

	// ErrAgentNotFound indicates an agent was not found in the registry
	ErrAgentNotFound = errors.New("agent not found")

	// ErrPlaybookNotFound indicates a playbook was not found in the registry
	ErrPlaybookNotFound = errors.New("playbook not found")

	// ErrGraphNotFound indicates a dependency graph was not found in the registry
	ErrGraphNotFound = errors.New("dependency graph not found")

	// ErrTemplateNotFound indicates a domain template was not found
	ErrTemplateNotFound = errors.New("domain template not found")

	// ErrInvalidReference indicates an invalid cross-reference in configuration
	ErrInvalidReference = errors.New("invalid configuration reference")
)

// ValidationError wraps a Config Store validation failure with the
// component and field it occurred on, and the model.Code a caller
// branches on instead of string-matching.
type ValidationError struct {
	Code      model.Code
	Component string // agent, playbook, graph, template
	ID        string
	Field     string
	Err       error
}

// Error returns a formatted error message
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s '%s': field '%s': %v", e.Component, e.ID, e.Field, e.Err)
	}
	return fmt.Sprintf("%s '%s': %v", e.Component, e.ID, e.Err)
}

// Unwrap returns the underlying error
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// AsModelError converts the ValidationError into the engine-wide error
// envelope so it can cross a component boundary.
func (e *ValidationError) AsModelError() *model.Error {
	return model.Wrap(e.Code, e.Error(), e.Err)
}

// NewValidationError creates a new validation error
func NewValidationError(code model.Code, component, id, field string, err error) *ValidationError {
	return &ValidationError{
		Code:      code,
		Component: component,
		ID:        id,
		Field:     field,
		Err:       err,
	}
}

// LoadError wraps configuration loading errors with file context
type LoadError struct {
	File string
	Err  error
}

// Error returns a formatted error message
func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.File, e.Err)
}

// Unwrap returns the underlying error
func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError creates a new load error
func NewLoadError(file string, err error) *LoadError {
	return &LoadError{File: file, Err: err}
}
