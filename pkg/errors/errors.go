package errors

import (
	"errors"
	"fmt"
)

// Common application errors
var (
	// Privacy budget errors
	ErrBudgetExhausted  = errors.New("privacy budget exhausted")
	ErrInvalidParameter = errors.New("invalid privacy parameter")

	// Secure aggregation errors
	ErrInsufficientShares = errors.New("insufficient shares for reconstruction")
	ErrDuplicateShare     = errors.New("duplicate share submission")

	// Federated training errors
	ErrClientNonResponsive = errors.New("federated client did not respond")
	ErrRoundFailed         = errors.New("federated round failed")

	// Lifecycle errors
	ErrDestructionFailed = errors.New("record destruction failed")
	ErrRecordNotFound    = errors.New("data record not found")
	ErrRequestNotFound   = errors.New("erasure request not found")
	ErrPolicyNotFound    = errors.New("retention policy not found")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// Storage errors
	ErrStorageUnavailable = errors.New("storage backend unavailable")
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypePrivacy       ErrorType = "privacy"
	ErrorTypeAggregation   ErrorType = "aggregation"
	ErrorTypeFederated     ErrorType = "federated"
	ErrorTypeLifecycle     ErrorType = "lifecycle"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeInternal      ErrorType = "internal"
)

// Error codes for different error scenarios
const (
	CodeBudgetExhausted     = "BUDGET_EXHAUSTED"
	CodeInvalidParameter    = "INVALID_PARAMETER"
	CodeInsufficientShares  = "INSUFFICIENT_SHARES"
	CodeDuplicateShare      = "DUPLICATE_SHARE"
	CodeClientNonResponsive = "CLIENT_NON_RESPONSIVE"
	CodeRoundFailed         = "ROUND_FAILED"
	CodeDestructionFailed   = "DESTRUCTION_FAILED"
	CodeRecordNotFound      = "RECORD_NOT_FOUND"
	CodeRequestNotFound     = "REQUEST_NOT_FOUND"
	CodePolicyNotFound      = "POLICY_NOT_FOUND"
	CodeInvalidConfig       = "INVALID_CONFIGURATION"
	CodeStorageError        = "STORAGE_ERROR"
	CodeInternalError       = "INTERNAL_ERROR"
)

// AppError represents an application-specific error with additional context
type AppError struct {
	Type      ErrorType              `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Retryable bool                   `json:"retryable"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with application context
func WrapError(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// NewBudgetExhaustedError creates a budget exhaustion error. The rejected
// query has no side effect; the caller must reduce epsilon or wait for a
// new allocation.
func NewBudgetExhaustedError(requested, remaining float64) *AppError {
	return &AppError{
		Type:    ErrorTypePrivacy,
		Code:    CodeBudgetExhausted,
		Message: fmt.Sprintf("requested epsilon %g exceeds remaining budget %g", requested, remaining),
		Cause:   ErrBudgetExhausted,
	}
}

// NewInvalidParameterError creates a parameter validation error
func NewInvalidParameterError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Code:    CodeInvalidParameter,
		Message: message,
		Cause:   ErrInvalidParameter,
	}
}

// NewInsufficientSharesError creates a quorum shortfall error
func NewInsufficientSharesError(needed, got int) *AppError {
	return &AppError{
		Type:    ErrorTypeAggregation,
		Code:    CodeInsufficientShares,
		Message: fmt.Sprintf("need %d shares, got %d", needed, got),
		Cause:   ErrInsufficientShares,
	}
}

// NewClientNonResponsiveError creates a federated client timeout error.
// The round should be retried with a freshly selected client set.
func NewClientNonResponsiveError(clientID string, round int) *AppError {
	return &AppError{
		Type:      ErrorTypeFederated,
		Code:      CodeClientNonResponsive,
		Message:   fmt.Sprintf("client %s did not respond in round %d", clientID, round),
		Cause:     ErrClientNonResponsive,
		Retryable: true,
	}
}

// NewDestructionFailedError creates a record destruction error
func NewDestructionFailedError(recordID string, cause error) *AppError {
	return &AppError{
		Type:      ErrorTypeLifecycle,
		Code:      CodeDestructionFailed,
		Message:   fmt.Sprintf("failed to destroy record %s", recordID),
		Cause:     errors.Join(ErrDestructionFailed, cause),
		Retryable: true,
	}
}

// NewLifecycleError creates a lifecycle error
func NewLifecycleError(code, message string) *AppError {
	return NewAppError(ErrorTypeLifecycle, code, message)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConfiguration,
		Code:    CodeInvalidConfig,
		Message: message,
		Cause:   ErrInvalidConfiguration,
	}
}

// NewStorageError creates a storage error
func NewStorageError(code, message string) *AppError {
	return NewAppError(ErrorTypeStorage, code, message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, CodeInternalError, message)
}

// IsBudgetExhausted reports whether err is a budget exhaustion failure
func IsBudgetExhausted(err error) bool {
	return errors.Is(err, ErrBudgetExhausted)
}

// IsInsufficientShares reports whether err is a quorum shortfall failure
func IsInsufficientShares(err error) bool {
	return errors.Is(err, ErrInsufficientShares)
}

// IsRetryable determines if an error may be retried
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}
