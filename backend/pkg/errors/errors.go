package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeGraph represents graph database errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeSearch represents search backend and query errors
	ErrorTypeSearch ErrorType = "search"
	// ErrorTypeMail represents notification delivery errors
	ErrorTypeMail ErrorType = "mail"
	// ErrorTypeStore represents relational store errors
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeAuthz represents authentication and authorization errors
	ErrorTypeAuthz ErrorType = "authz"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// typed is implemented by every error in this package.
type typed interface {
	errorType() ErrorType
}

func (e *BaseError) errorType() ErrorType { return e.Type }

// Graph Errors

// ErrGraphConnectionFailed is returned when Neo4j connection fails
type ErrGraphConnectionFailed struct {
	*BaseError
	URI string
}

func NewGraphConnectionFailed(uri string, err error) *ErrGraphConnectionFailed {
	return &ErrGraphConnectionFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("failed to connect to Neo4j: %s", uri), err),
		URI:       uri,
	}
}

// ErrGraphQueryFailed is returned when a graph statement fails
type ErrGraphQueryFailed struct {
	*BaseError
	Operation string
}

func NewGraphQueryFailed(operation string, err error) *ErrGraphQueryFailed {
	return &ErrGraphQueryFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("graph operation failed: %s", operation), err),
		Operation: operation,
	}
}

// Search Errors

// ErrSearchFailed is returned when the search backend cannot answer a query
type ErrSearchFailed struct {
	*BaseError
}

func NewSearchFailed(err error) *ErrSearchFailed {
	return &ErrSearchFailed{
		BaseError: NewBaseError(ErrorTypeSearch, "search failed", err),
	}
}

// ErrInvalidQuery is returned for malformed query arguments
type ErrInvalidQuery struct {
	*BaseError
	Param string
	Value string
}

func NewInvalidQuery(param, value string) *ErrInvalidQuery {
	return &ErrInvalidQuery{
		BaseError: NewBaseError(ErrorTypeSearch, fmt.Sprintf("invalid value for %s: %q", param, value), nil),
		Param:     param,
		Value:     value,
	}
}

// Mail Errors

// ErrMailSendFailed is returned when a notification cannot be delivered
type ErrMailSendFailed struct {
	*BaseError
	Recipient string
}

func NewMailSendFailed(recipient string, err error) *ErrMailSendFailed {
	return &ErrMailSendFailed{
		BaseError: NewBaseError(ErrorTypeMail, fmt.Sprintf("failed to send mail to %s", recipient), err),
		Recipient: recipient,
	}
}

// ErrRoleWithoutEmail marks a role that cannot receive notifications
type ErrRoleWithoutEmail struct {
	*BaseError
	Role string
}

func NewRoleWithoutEmail(role string) *ErrRoleWithoutEmail {
	return &ErrRoleWithoutEmail{
		BaseError: NewBaseError(ErrorTypeMail, fmt.Sprintf("role does not have an e-mail: %s", role), nil),
		Role:      role,
	}
}

// Store Errors

// ErrStoreQueryFailed is returned when a relational query fails
type ErrStoreQueryFailed struct {
	*BaseError
	Operation string
}

func NewStoreQueryFailed(operation string, err error) *ErrStoreQueryFailed {
	return &ErrStoreQueryFailed{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("store operation failed: %s", operation), err),
		Operation: operation,
	}
}

// ErrNotFound is returned when a record does not exist
type ErrNotFound struct {
	*BaseError
	Kind string
	ID   string
}

func NewNotFound(kind, id string) *ErrNotFound {
	return &ErrNotFound{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("%s not found: %s", kind, id), nil),
		Kind:      kind,
		ID:        id,
	}
}

// Authz Errors

// ErrUnauthorized is returned for unknown credentials
var ErrUnauthorized = NewBaseError(ErrorTypeAuthz, "invalid credentials", nil)

// Context Errors

// ErrContextCancelled is returned when context is cancelled
type ErrContextCancelled struct {
	*BaseError
	Operation string
}

func NewContextCancelled(operation string, err error) *ErrContextCancelled {
	return &ErrContextCancelled{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context cancelled: %s", operation), err),
		Operation: operation,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

// IsErrorType checks if an error, or any error it wraps, is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		if t, ok := err.(typed); ok && t.errorType() == errType {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// IsNotFound reports whether err wraps an ErrNotFound
func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return stderrors.As(err, &nf)
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	// Context errors are not retryable
	if IsErrorType(err, ErrorTypeContext) {
		return false
	}
	if IsNotFound(err) {
		return false
	}
	var invalid *ErrInvalidQuery
	if stderrors.As(err, &invalid) {
		return false
	}
	var noEmail *ErrRoleWithoutEmail
	if stderrors.As(err, &noEmail) {
		return false
	}
	return IsErrorType(err, ErrorTypeGraph) ||
		IsErrorType(err, ErrorTypeStore) ||
		IsErrorType(err, ErrorTypeMail) ||
		IsErrorType(err, ErrorTypeSearch)
}
