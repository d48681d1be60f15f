// Package errors defines the stable, typed error vocabulary the core
// components fail with. The RPC tool layer serializes these into the
// error envelope; no other error type is expected to cross that boundary.
package errors

import "fmt"

// Code is a stable error code, preserved across transports.
type Code string

const (
	// Context
	CodeContextNotFound      Code = "CONTEXT_NOT_FOUND"
	CodeContextTooLarge      Code = "CONTEXT_TOO_LARGE"
	CodeContextInvalidID     Code = "CONTEXT_INVALID_ID"
	CodeContextAlreadyExists Code = "CONTEXT_ALREADY_EXISTS"

	// Session
	CodeSessionNotFound       Code = "SESSION_NOT_FOUND"
	CodeSessionExpired        Code = "SESSION_EXPIRED"
	CodeSessionMaxReached     Code = "SESSION_MAX_REACHED"
	CodeSessionMemoryExceeded Code = "SESSION_MEMORY_EXCEEDED"

	// Execution
	CodeExecutionTimeout     Code = "EXECUTION_TIMEOUT"
	CodeExecutionFailed      Code = "EXECUTION_FAILED"
	CodeExecutionInvalidCode Code = "EXECUTION_INVALID_CODE"
	CodeSandboxError         Code = "SANDBOX_ERROR"

	// Search
	CodeInvalidRegex  Code = "INVALID_REGEX"
	CodeRegexTimeout  Code = "REGEX_TIMEOUT"
	CodeRedosDetected Code = "REDOS_DETECTED"

	// Resource
	CodeMemoryLimit   Code = "MEMORY_LIMIT"
	CodeVariableLimit Code = "VARIABLE_LIMIT_EXCEEDED"
	CodeChunkLimit    Code = "CHUNK_LIMIT_EXCEEDED"
	CodeOutputLimit   Code = "OUTPUT_LIMIT"

	// Validation
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeMissingField Code = "MISSING_FIELD"
	CodeOutOfRange   Code = "OUT_OF_RANGE"

	// System
	CodeInternal       Code = "INTERNAL"
	CodeNotImplemented Code = "NOT_IMPLEMENTED"
)

// statusOf maps codes to an HTTP-ish status, which every constructor
// stores in RLMError.Status. Neither the CLI nor the RPC error envelope
// reports it.
var statusOf = map[Code]int{
	CodeContextNotFound:      404,
	CodeContextTooLarge:      413,
	CodeContextInvalidID:     400,
	CodeContextAlreadyExists: 409,

	CodeSessionNotFound:       404,
	CodeSessionExpired:        410,
	CodeSessionMaxReached:     429,
	CodeSessionMemoryExceeded: 507,

	CodeExecutionTimeout:     504,
	CodeExecutionFailed:      500,
	CodeExecutionInvalidCode: 400,
	CodeSandboxError:         500,

	CodeInvalidRegex:  400,
	CodeRegexTimeout:  504,
	CodeRedosDetected: 400,

	CodeMemoryLimit:   507,
	CodeVariableLimit: 429,
	CodeChunkLimit:    413,
	CodeOutputLimit:   413,

	CodeInvalidInput: 400,
	CodeMissingField: 400,
	CodeOutOfRange:   400,

	CodeInternal:       500,
	CodeNotImplemented: 501,
}

// RLMError is a structured error carrying a stable code, an HTTP-ish
// status, a short user-facing message, and optional field-level details.
type RLMError struct {
	Code    Code
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *RLMError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newErr(code Code, msg string, details map[string]any) *RLMError {
	return &RLMError{Code: code, Status: statusOf[code], Message: msg, Details: details}
}

// Is reports whether err is an *RLMError with the given code.
func Is(err error, code Code) bool {
	e, ok := err.(*RLMError)
	return ok && e.Code == code
}

// --- Context ---

func NewContextNotFound(contextID string) *RLMError {
	return newErr(CodeContextNotFound, fmt.Sprintf("context not found: %s", contextID),
		map[string]any{"context_id": contextID})
}

func NewContextTooLarge(max, actual int) *RLMError {
	return newErr(CodeContextTooLarge, fmt.Sprintf("context exceeds maximum size: %d bytes (max %d)", actual, max),
		map[string]any{"max_bytes": max, "actual_bytes": actual})
}

func NewContextInvalidID(id string) *RLMError {
	return newErr(CodeContextInvalidID, fmt.Sprintf("invalid context id: %q", id),
		map[string]any{"context_id": id})
}

func NewContextAlreadyExists(id string) *RLMError {
	return newErr(CodeContextAlreadyExists, fmt.Sprintf("context already exists: %s", id),
		map[string]any{"context_id": id})
}

// --- Session ---

func NewSessionNotFound(id string) *RLMError {
	return newErr(CodeSessionNotFound, fmt.Sprintf("session not found: %s", id),
		map[string]any{"session_id": id})
}

func NewSessionExpired(id string) *RLMError {
	return newErr(CodeSessionExpired, fmt.Sprintf("session expired: %s", id),
		map[string]any{"session_id": id})
}

func NewSessionMaxReached(max int) *RLMError {
	return newErr(CodeSessionMaxReached, fmt.Sprintf("maximum session count reached: %d", max),
		map[string]any{"max_sessions": max})
}

func NewSessionMemoryExceeded(max, projected int64) *RLMError {
	return newErr(CodeSessionMemoryExceeded, fmt.Sprintf("session memory cap exceeded: projected %d bytes (max %d)", projected, max),
		map[string]any{"max_bytes": max, "projected_bytes": projected})
}

// --- Execution ---

func NewExecutionTimeout(durationMs int64) *RLMError {
	return newErr(CodeExecutionTimeout, "execution exceeded the time budget",
		map[string]any{"duration_ms": durationMs})
}

func NewExecutionFailed(msg string) *RLMError {
	return newErr(CodeExecutionFailed, msg, nil)
}

func NewExecutionInvalidCode(msg string) *RLMError {
	return newErr(CodeExecutionInvalidCode, msg, nil)
}

func NewSandboxError(msg string) *RLMError {
	return newErr(CodeSandboxError, msg, nil)
}

// --- Search ---

func NewInvalidRegex(pattern, reason string) *RLMError {
	return newErr(CodeInvalidRegex, fmt.Sprintf("invalid regex: %s", reason),
		map[string]any{"pattern": pattern, "reason": reason})
}

func NewRegexTimeout(pattern string, budgetMs int64) *RLMError {
	return newErr(CodeRegexTimeout, "regex execution exceeded its time budget",
		map[string]any{"pattern": pattern, "budget_ms": budgetMs})
}

func NewRedosDetected(pattern, shape string) *RLMError {
	return newErr(CodeRedosDetected, fmt.Sprintf("pattern rejected as ReDoS-prone: %s", shape),
		map[string]any{"pattern": pattern, "shape": shape})
}

// --- Resource ---

func NewMemoryLimit(max, actual int64) *RLMError {
	return newErr(CodeMemoryLimit, "memory limit exceeded",
		map[string]any{"max_bytes": max, "actual_bytes": actual})
}

func NewVariableLimit(kind string, max int) *RLMError {
	return newErr(CodeVariableLimit, fmt.Sprintf("%s limit exceeded (max %d)", kind, max),
		map[string]any{"kind": kind, "max": max})
}

func NewChunkLimit(max int) *RLMError {
	return newErr(CodeChunkLimit, fmt.Sprintf("chunk count exceeds maximum of %d", max),
		map[string]any{"max_chunks": max})
}

func NewOutputLimit(max int) *RLMError {
	return newErr(CodeOutputLimit, fmt.Sprintf("output exceeds maximum of %d characters", max),
		map[string]any{"max_chars": max})
}

// --- Validation ---

func NewInvalidInput(field, msg string) *RLMError {
	details := map[string]any{}
	if field != "" {
		details["field"] = field
	}
	return newErr(CodeInvalidInput, msg, details)
}

func NewMissingField(field string) *RLMError {
	return newErr(CodeMissingField, fmt.Sprintf("missing required field: %s", field),
		map[string]any{"field": field})
}

func NewOutOfRange(field string, value any) *RLMError {
	return newErr(CodeOutOfRange, fmt.Sprintf("%s is out of range", field),
		map[string]any{"field": field, "value": value})
}

// --- System ---

func NewInternal(err error) *RLMError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return newErr(CodeInternal, msg, nil)
}

func NewNotImplemented(what string) *RLMError {
	return newErr(CodeNotImplemented, fmt.Sprintf("not implemented: %s", what), nil)
}
