package recipeapi

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrBudgetExhausted is returned when the daily call budget is spent.
	ErrBudgetExhausted = errors.New("daily call budget exhausted")

	// ErrMissingCredentials is returned when client credentials are not
	// configured.
	ErrMissingCredentials = errors.New("recipe API credentials not set")
)

// ErrorClass categorizes upstream failures for retry decisions.
type ErrorClass string

const (
	ErrorClassClient  ErrorClass = "client"
	ErrorClassServer  ErrorClass = "server"
	ErrorClassNetwork ErrorClass = "network"
)

// APIError carries the upstream status and classification.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("recipe API %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("recipe API %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 500:
		return ErrorClassServer
	case status >= 400:
		return ErrorClassClient
	default:
		return ErrorClassNetwork
	}
}

// shouldRetry reports whether an error class is worth retrying. Client
// errors never are; they would just spend budget.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		return false
	}
}
