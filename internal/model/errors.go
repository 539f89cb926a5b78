package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoProvider is returned when AI analysis is requested but no LLM
// provider is configured (e.g. the API key is missing)
var ErrNoProvider = errors.New("no LLM provider configured")

// LoadError means the dataset could not be loaded. Dependent endpoints
// report it as service unavailable until the file is fixed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load dataset %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ColumnNotFoundError is a client error naming an unknown column
type ColumnNotFoundError struct {
	Column    string
	Available []string
}

func (e *ColumnNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("column '%s' not found", e.Column)
	}
	return fmt.Sprintf("column '%s' not found (available: %s)", e.Column, strings.Join(e.Available, ", "))
}

// InvalidCriterionError is a client error for a malformed filter value
type InvalidCriterionError struct {
	Column string
	Reason string
}

func (e *InvalidCriterionError) Error() string {
	return fmt.Sprintf("invalid filter for column '%s': %s", e.Column, e.Reason)
}

// RequestError is a client error for malformed request parameters
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string { return e.Message }

// ExternalServiceError wraps a failed call to the LLM provider
type ExternalServiceError struct {
	Provider string
	Err      error
}

func (e *ExternalServiceError) Error() string {
	if e.Provider == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// ResponseParseError means the model reply did not have the expected shape.
// Raw carries the reply for diagnosis.
type ResponseParseError struct {
	Raw string
	Err error
}

func (e *ResponseParseError) Error() string {
	return fmt.Sprintf("parse model response: %v", e.Err)
}

func (e *ResponseParseError) Unwrap() error { return e.Err }
