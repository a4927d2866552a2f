// Package errors provides application-level error types and utilities shared
// across the provisioning, billing and sweep layers.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of an error.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation_error"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeInternal     ErrorType = "internal_error"

	// ErrorTypeInsufficientBalance is a business-rule rejection: the user's
	// balance cannot cover the requested provisioning. Never retried.
	ErrorTypeInsufficientBalance ErrorType = "insufficient_balance"

	// ErrorTypeProvision covers control-plane API failures (non-2xx or
	// transport errors). Create is not safely retryable without a fresh
	// account name; delete and read are.
	ErrorTypeProvision ErrorType = "provision_failed"

	// ErrorTypeUnavailable covers transient network failures and timeouts
	// against external systems.
	ErrorTypeUnavailable ErrorType = "unavailable"

	// ErrorTypePersistence is fatal for the current operation: continuing
	// risks orphaned remote accounts or unbilled devices.
	ErrorTypePersistence ErrorType = "persistence_error"
)

// AppError carries an error category, a user-presentable message and optional
// internal details.
type AppError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Details string    `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func newError(t ErrorType, code int, message string, details ...string) *AppError {
	detail := ""
	if len(details) > 0 {
		detail = details[0]
	}
	return &AppError{Type: t, Message: message, Code: code, Details: detail}
}

func NewValidationError(message string, details ...string) *AppError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, message, details...)
}

func NewNotFoundError(message string, details ...string) *AppError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, message, details...)
}

func NewConflictError(message string, details ...string) *AppError {
	return newError(ErrorTypeConflict, http.StatusConflict, message, details...)
}

func NewUnauthorizedError(message string, details ...string) *AppError {
	return newError(ErrorTypeUnauthorized, http.StatusUnauthorized, message, details...)
}

func NewInternalError(message string, details ...string) *AppError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, message, details...)
}

func NewInsufficientBalanceError(message string, details ...string) *AppError {
	return newError(ErrorTypeInsufficientBalance, http.StatusPaymentRequired, message, details...)
}

func NewProvisionError(message string, details ...string) *AppError {
	return newError(ErrorTypeProvision, http.StatusBadGateway, message, details...)
}

func NewUnavailableError(message string, details ...string) *AppError {
	return newError(ErrorTypeUnavailable, http.StatusServiceUnavailable, message, details...)
}

func NewPersistenceError(message string, details ...string) *AppError {
	return newError(ErrorTypePersistence, http.StatusInternalServerError, message, details...)
}

// GetAppError extracts an AppError from an error chain, or returns nil.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

func IsAppError(err error) bool {
	return GetAppError(err) != nil
}

func isType(err error, t ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == t
}

func IsNotFoundError(err error) bool { return isType(err, ErrorTypeNotFound) }
func IsValidationError(err error) bool { return isType(err, ErrorTypeValidation) }
func IsConflictError(err error) bool { return isType(err, ErrorTypeConflict) }
func IsInsufficientBalanceError(err error) bool { return isType(err, ErrorTypeInsufficientBalance) }
func IsProvisionError(err error) bool { return isType(err, ErrorTypeProvision) }
func IsUnauthorizedError(err error) bool { return isType(err, ErrorTypeUnauthorized) }
func IsPersistenceError(err error) bool { return isType(err, ErrorTypePersistence) }
