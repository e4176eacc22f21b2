// Package errors provides unified error handling for the moderation engine
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

const (
	// Transient provider errors (1xxx) — retry-safe
	ErrCodeProviderRateLimited ErrorCode = "MOD_TRANSIENT_1001"
	ErrCodeProviderTimeout     ErrorCode = "MOD_TRANSIENT_1002"

	// Permanent provider errors (2xxx) — not retry-safe without config change
	ErrCodeProviderUnauthorized ErrorCode = "MOD_PERMANENT_2001"
	ErrCodeProviderUnavailable  ErrorCode = "MOD_PERMANENT_2002"
	ErrCodeNoProviderConfigured ErrorCode = "MOD_PERMANENT_2003"

	// Invalid-response errors (3xxx) — schema/parse failures from an LLM or classifier
	ErrCodeInvalidAIResponse    ErrorCode = "MOD_RESPONSE_3001"
	ErrCodeMalformedJSON        ErrorCode = "MOD_RESPONSE_3002"
	ErrCodeAnswerSchemaMismatch ErrorCode = "MOD_RESPONSE_3003"

	// Budget errors (4xxx)
	ErrCodeBudgetExceeded ErrorCode = "MOD_BUDGET_4001"

	// Coalescer errors (5xxx)
	ErrCodeCoalesceTimeout ErrorCode = "MOD_COALESCE_5001"
	ErrCodeLockNotOwned    ErrorCode = "MOD_COALESCE_5002"

	// Store errors (6xxx)
	ErrCodeStoreUnavailable ErrorCode = "MOD_STORE_6001"
	ErrCodeStoreWriteFailed ErrorCode = "MOD_STORE_6002"

	// Configuration errors (7xxx)
	ErrCodeMissingRulesJSON ErrorCode = "MOD_CONFIG_7001"
	ErrCodeInvalidSettings  ErrorCode = "MOD_CONFIG_7002"

	// Validation errors (8xxx)
	ErrCodeRuleValidationWarning ErrorCode = "MOD_VALIDATION_8001"
	ErrCodeInvalidInput          ErrorCode = "MOD_VALIDATION_8002"
	ErrCodeMissingParameter      ErrorCode = "MOD_VALIDATION_8003"
	ErrCodeOutOfRange            ErrorCode = "MOD_VALIDATION_8004"
	ErrCodeNotFound              ErrorCode = "MOD_VALIDATION_8005"
	ErrCodeAlreadyExists         ErrorCode = "MOD_VALIDATION_8006"
	ErrCodeConflict              ErrorCode = "MOD_VALIDATION_8007"

	// Generic internal error
	ErrCodeInternal ErrorCode = "MOD_INTERNAL_9001"
)

// ServiceError represents a structured error with code, message, and HTTP status
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails adds additional details to the error
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new ServiceError
func New(code ErrorCode, message string, httpStatus int) *ServiceError {
	return &ServiceError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an existing error with a ServiceError
func Wrap(code ErrorCode, message string, httpStatus int, err error) *ServiceError {
	return &ServiceError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Provider errors

func ProviderRateLimited(provider string) *ServiceError {
	return New(ErrCodeProviderRateLimited, "provider rate limited", http.StatusTooManyRequests).
		WithDetails("provider", provider)
}

func ProviderTimeout(provider string, err error) *ServiceError {
	return Wrap(ErrCodeProviderTimeout, "provider call timed out", http.StatusGatewayTimeout, err).
		WithDetails("provider", provider)
}

func ProviderUnauthorized(provider string, err error) *ServiceError {
	return Wrap(ErrCodeProviderUnauthorized, "provider rejected credentials", http.StatusUnauthorized, err).
		WithDetails("provider", provider)
}

func ProviderUnavailable(provider string, err error) *ServiceError {
	return Wrap(ErrCodeProviderUnavailable, "provider unavailable", http.StatusBadGateway, err).
		WithDetails("provider", provider)
}

func NoProviderConfigured() *ServiceError {
	return New(ErrCodeNoProviderConfigured, "no LLM provider configured", http.StatusPreconditionFailed)
}

// Response validation errors

func InvalidAIResponse(reason string) *ServiceError {
	return New(ErrCodeInvalidAIResponse, "invalid AI response", http.StatusBadGateway).
		WithDetails("reason", reason)
}

func MalformedJSON(err error) *ServiceError {
	return Wrap(ErrCodeMalformedJSON, "malformed JSON payload", http.StatusBadGateway, err)
}

func AnswerSchemaMismatch(questionID string) *ServiceError {
	return New(ErrCodeAnswerSchemaMismatch, "answer does not satisfy schema", http.StatusBadGateway).
		WithDetails("questionId", questionID)
}

// Budget errors

func BudgetExceeded(estimateUSD float64) *ServiceError {
	return New(ErrCodeBudgetExceeded, "daily budget exceeded", http.StatusPaymentRequired).
		WithDetails("estimateUSD", estimateUSD)
}

// Coalescer errors

func CoalesceTimeout(key string) *ServiceError {
	return New(ErrCodeCoalesceTimeout, "timed out waiting for coalesced result", http.StatusGatewayTimeout).
		WithDetails("key", key)
}

func LockNotOwned(key string) *ServiceError {
	return New(ErrCodeLockNotOwned, "lock is not owned by caller", http.StatusConflict).
		WithDetails("key", key)
}

// Store errors

func StoreUnavailable(err error) *ServiceError {
	return Wrap(ErrCodeStoreUnavailable, "key-value store unavailable", http.StatusServiceUnavailable, err)
}

func StoreWriteFailed(key string, err error) *ServiceError {
	return Wrap(ErrCodeStoreWriteFailed, "key-value store write failed", http.StatusInternalServerError, err).
		WithDetails("key", key)
}

// Configuration errors

func MissingRulesJSON(subreddit string) *ServiceError {
	return New(ErrCodeMissingRulesJSON, "no rules JSON configured", http.StatusPreconditionFailed).
		WithDetails("subreddit", subreddit)
}

func InvalidSettings(reason string) *ServiceError {
	return New(ErrCodeInvalidSettings, "invalid installation settings", http.StatusBadRequest).
		WithDetails("reason", reason)
}

// Validation errors

func RuleValidationWarning(ruleID, reason string) *ServiceError {
	return New(ErrCodeRuleValidationWarning, "rule validation warning", http.StatusOK).
		WithDetails("ruleId", ruleID).
		WithDetails("reason", reason)
}

func InvalidInput(field, reason string) *ServiceError {
	return New(ErrCodeInvalidInput, "invalid input", http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("reason", reason)
}

func MissingParameter(param string) *ServiceError {
	return New(ErrCodeMissingParameter, "missing required parameter", http.StatusBadRequest).
		WithDetails("parameter", param)
}

func OutOfRange(field string, minValue, maxValue interface{}) *ServiceError {
	return New(ErrCodeOutOfRange, "value out of range", http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("min", minValue).
		WithDetails("max", maxValue)
}

func NotFound(resource, id string) *ServiceError {
	return New(ErrCodeNotFound, "resource not found", http.StatusNotFound).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

func AlreadyExists(resource, id string) *ServiceError {
	return New(ErrCodeAlreadyExists, "resource already exists", http.StatusConflict).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

func Conflict(message string) *ServiceError {
	return New(ErrCodeConflict, message, http.StatusConflict)
}

// Internal

func Internal(message string, err error) *ServiceError {
	return Wrap(ErrCodeInternal, message, http.StatusInternalServerError, err)
}

// Helper functions

// IsServiceError checks if an error is a ServiceError
func IsServiceError(err error) bool {
	var serviceErr *ServiceError
	return errors.As(err, &serviceErr)
}

// GetServiceError extracts a ServiceError from an error chain
func GetServiceError(err error) *ServiceError {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}
	return nil
}

// GetHTTPStatus returns the HTTP status code for an error
func GetHTTPStatus(err error) int {
	if serviceErr := GetServiceError(err); serviceErr != nil {
		return serviceErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsTransient reports whether an error represents a retry-safe condition.
func IsTransient(err error) bool {
	svcErr := GetServiceError(err)
	if svcErr == nil {
		return false
	}
	switch svcErr.Code {
	case ErrCodeProviderRateLimited, ErrCodeProviderTimeout, ErrCodeStoreUnavailable:
		return true
	default:
		return false
	}
}
