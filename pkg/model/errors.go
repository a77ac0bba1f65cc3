package model

import (
	"errors"
	"fmt"
)

// Sentinel errors of the scheduling engine.
var (
	// ErrSolverUnsuccessful is returned when a search ends INFEASIBLE or
	// UNKNOWN. The engine stays unsolved and may be retried with a larger budget.
	ErrSolverUnsuccessful = errors.New("solver unsuccessful")

	// ErrModelNotFitted is returned when a solved-state accessor is called on
	// an unsolved engine.
	ErrModelNotFitted = errors.New("model not fitted yet")
)

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrValidation   ErrorCode = "VALIDATION_ERROR"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrSolverFailed ErrorCode = "SOLVER_UNSUCCESSFUL"
	ErrNotFitted    ErrorCode = "MODEL_NOT_FITTED"
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the goshop API.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidationError creates an APIError with validation details.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrValidation, Message: msg, Details: details}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

// InvalidTransitionError is returned when an engine state transition is invalid.
type InvalidTransitionError struct {
	From EngineState
	To   EngineState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid engine state transition: %s → %s", e.From, e.To)
}
