// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Caller-side conditions
const (
	ErrCodeNoConversation ErrorCode = "NO_CONVERSATION"
	ErrCodeInvalidInput   ErrorCode = "INVALID_INPUT"
)

// Fetch collaborator conditions. The extraction core never produces these.
const (
	ErrCodeNotLoggedIn  ErrorCode = "NOT_LOGGED_IN"
	ErrCodeAuthFailed   ErrorCode = "AUTH_FAILED"
	ErrCodeTokenExpired ErrorCode = "TOKEN_EXPIRED"
	ErrCodeRateLimited  ErrorCode = "RATE_LIMITED"
	ErrCodeFetchFailed  ErrorCode = "FETCH_FAILED"
)

// Extraction outcomes
const (
	ErrCodeNoSearchQueries  ErrorCode = "NO_SEARCH_QUERIES"
	ErrCodeExtractionFailed ErrorCode = "EXTRACTION_FAILED"
)

// Storage / export
const (
	ErrCodeCacheFailed         ErrorCode = "CACHE_FAILED"
	ErrCodeReportPersistFailed ErrorCode = "REPORT_PERSIST_FAILED"
	ErrCodeReportNotFound      ErrorCode = "REPORT_NOT_FOUND"
	ErrCodeExportFailed        ErrorCode = "EXPORT_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is matches any *StandardError carrying the same code, so callers can use
// errors.Is(err, errors.New...Error(...)) or errors.Is(err, &StandardError{Code: c}).
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMetadata attaches a key to the error metadata and returns the error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// CodeOf returns the code of the first StandardError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewNoConversationError is raised by callers before the core runs.
func NewNoConversationError() *StandardError {
	return newError(ErrCodeNoConversation, "No conversation identifier available", "", false)
}

// NewInvalidInputError creates a non-retryable job input error.
func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid job input", details, false)
}

// NewNotLoggedInError signals that the browser session carries no credential.
func NewNotLoggedInError(details string) *StandardError {
	return newError(ErrCodeNotLoggedIn, "Not logged in to the chat service", details, false)
}

// NewAuthFailedError signals the backend refused the credential.
func NewAuthFailedError(details string) *StandardError {
	return newError(ErrCodeAuthFailed, "Authentication with the chat service failed", details, false)
}

// NewTokenExpiredError signals the session credential is no longer valid.
func NewTokenExpiredError(details string) *StandardError {
	return newError(ErrCodeTokenExpired, "Session credential expired", details, false)
}

// NewRateLimitedError creates a retryable rate-limit error.
func NewRateLimitedError(retryAfter time.Duration) *StandardError {
	details := ""
	if retryAfter > 0 {
		details = fmt.Sprintf("retryAfter: %s", retryAfter)
	}
	return newError(ErrCodeRateLimited, "Rate limited by the chat service", details, true)
}

// NewFetchFailedError wraps a generic transport failure.
func NewFetchFailedError(err error) *StandardError {
	return newError(ErrCodeFetchFailed, "Failed to retrieve conversation record", err.Error(), true)
}

// NewNoSearchQueriesError describes a successful extraction with an empty report.
// It is informational and must not be treated as a failure.
func NewNoSearchQueriesError(conversationID string) *StandardError {
	return newError(ErrCodeNoSearchQueries,
		"No search queries found; try a prompt likely to trigger a web search",
		fmt.Sprintf("conversationId: %s", conversationID), false)
}

// NewExtractionFailedError is the only failure the extraction core raises.
func NewExtractionFailedError(cause string) *StandardError {
	return newError(ErrCodeExtractionFailed, "Conversation graph is missing or malformed", cause, false)
}

// NewCacheFailedError creates a retryable cache access error.
func NewCacheFailedError(err error) *StandardError {
	return newError(ErrCodeCacheFailed, "Report cache unavailable", err.Error(), true)
}

// NewReportPersistFailedError creates a retryable archive write error.
func NewReportPersistFailedError(err error) *StandardError {
	return newError(ErrCodeReportPersistFailed, "Failed to persist report", err.Error(), true)
}

// NewReportNotFoundError creates a non-retryable lookup miss.
func NewReportNotFoundError(conversationID string) *StandardError {
	return newError(ErrCodeReportNotFound, "No stored report for conversation",
		fmt.Sprintf("conversationId: %s", conversationID), false)
}

// NewExportFailedError creates a non-retryable export error.
func NewExportFailedError(err error) *StandardError {
	return newError(ErrCodeExportFailed, "Failed to export report", err.Error(), false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes (identical today).
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeNoConversation:      "NO_CONVERSATION",
	ErrCodeInvalidInput:        "INVALID_INPUT",
	ErrCodeNotLoggedIn:         "NOT_LOGGED_IN",
	ErrCodeAuthFailed:          "AUTH_FAILED",
	ErrCodeTokenExpired:        "TOKEN_EXPIRED",
	ErrCodeRateLimited:         "RATE_LIMITED",
	ErrCodeFetchFailed:         "FETCH_FAILED",
	ErrCodeNoSearchQueries:     "NO_SEARCH_QUERIES",
	ErrCodeExtractionFailed:    "EXTRACTION_FAILED",
	ErrCodeCacheFailed:         "CACHE_FAILED",
	ErrCodeReportPersistFailed: "REPORT_PERSIST_FAILED",
	ErrCodeReportNotFound:      "REPORT_NOT_FOUND",
	ErrCodeExportFailed:        "EXPORT_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeRateLimited,
		ErrCodeFetchFailed:
		return 3

	case ErrCodeCacheFailed,
		ErrCodeReportPersistFailed:
		return 2

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code) // Fallback
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// IsInformational reports codes that describe a successful outcome.
func IsInformational(code ErrorCode) bool {
	return code == ErrCodeNoSearchQueries
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeNotLoggedIn || code == ErrCodeAuthFailed || code == ErrCodeTokenExpired:
		return "AUTH"
	case code == ErrCodeRateLimited || code == ErrCodeFetchFailed:
		return "FETCH"
	case strings.Contains(codeStr, "EXTRACTION") || strings.Contains(codeStr, "SEARCH_QUERIES"):
		return "EXTRACTION"
	case strings.Contains(codeStr, "CACHE") || strings.Contains(codeStr, "REPORT"):
		return "STORAGE"
	case strings.Contains(codeStr, "EXPORT"):
		return "EXPORT"
	case strings.Contains(codeStr, "INVALID") || code == ErrCodeNoConversation:
		return "VALIDATION"
	default:
		return "UNKNOWN"
	}
}
