package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Sentinel errors used across the billing engine. Errors are built with the
// ErrorBuilder and marked with one of these so callers can branch on kind.
var (
	ErrNotFound               = new(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists          = new(ErrCodeAlreadyExists, "resource already exists")
	ErrVersionConflict        = new(ErrCodeVersionConflict, "version conflict")
	ErrValidation             = new(ErrCodeValidation, "validation error")
	ErrInvalidState           = new(ErrCodeInvalidState, "invalid state")
	ErrPermissionDenied       = new(ErrCodePermissionDenied, "permission denied")
	ErrProvider               = new(ErrCodeProvider, "payment provider error")
	ErrSignature              = new(ErrCodeSignature, "webhook signature error")
	ErrPayload                = new(ErrCodePayload, "webhook payload error")
	ErrProviderOutcomeUnknown = new(ErrCodeProviderOutcomeUnknown, "payment provider outcome unknown")
	ErrHTTPClient             = new(ErrCodeHTTPClient, "http client error")
	ErrDatabase               = new(ErrCodeDatabase, "database error")
	ErrSystem                 = new(ErrCodeSystemError, "system error")

	// ordered so the more specific provider kinds win over ErrProvider
	statusCodes = []struct {
		err    error
		status int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrAlreadyExists, http.StatusConflict},
		{ErrVersionConflict, http.StatusConflict},
		{ErrValidation, http.StatusBadRequest},
		{ErrInvalidState, http.StatusConflict},
		{ErrPermissionDenied, http.StatusForbidden},
		{ErrSignature, http.StatusBadRequest},
		{ErrPayload, http.StatusBadRequest},
		{ErrProviderOutcomeUnknown, http.StatusGatewayTimeout},
		{ErrProvider, http.StatusBadGateway},
		{ErrHTTPClient, http.StatusInternalServerError},
		{ErrDatabase, http.StatusInternalServerError},
		{ErrSystem, http.StatusInternalServerError},
	}
)

const (
	ErrCodeHTTPClient             = "http_client_error"
	ErrCodeSystemError            = "system_error"
	ErrCodeNotFound               = "not_found"
	ErrCodeAlreadyExists          = "already_exists"
	ErrCodeVersionConflict        = "version_conflict"
	ErrCodeValidation             = "validation_error"
	ErrCodeInvalidState           = "invalid_state"
	ErrCodePermissionDenied       = "permission_denied"
	ErrCodeProvider               = "provider_error"
	ErrCodeSignature              = "signature_error"
	ErrCodePayload                = "payload_error"
	ErrCodeProviderOutcomeUnknown = "provider_outcome_unknown"
	ErrCodeDatabase               = "database_error"
)

// InternalError represents a domain error
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Op      string // Logical operation name
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is reports whether err has been marked with (or wraps) target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsVersionConflict checks if an error is a version conflict error
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidState checks if an error is an invalid state transition error
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsPermissionDenied checks if an error is a permission denied error
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsSignature checks if an error is a webhook signature error
func IsSignature(err error) bool {
	return errors.Is(err, ErrSignature)
}

// IsPayload checks if an error is a webhook payload error
func IsPayload(err error) bool {
	return errors.Is(err, ErrPayload)
}

// IsOutcomeUnknown checks if a provider call ended without a known result
func IsOutcomeUnknown(err error) bool {
	return errors.Is(err, ErrProviderOutcomeUnknown)
}

// IsProvider reports any payment provider failure, including signature,
// payload and unknown outcome errors.
func IsProvider(err error) bool {
	return errors.Is(err, ErrProvider) ||
		errors.Is(err, ErrSignature) ||
		errors.Is(err, ErrPayload) ||
		errors.Is(err, ErrProviderOutcomeUnknown)
}

// IsHTTPClient checks if an error is an http client error
func IsHTTPClient(err error) bool {
	return errors.Is(err, ErrHTTPClient)
}

// HTTPStatusFromErr maps err to a status code. An error re-marked on its way
// up (a missing plan reported as a validation failure) takes the status of
// its outermost mark.
func HTTPStatusFromErr(err error) int {
	status, depth := http.StatusInternalServerError, -1
	for _, sc := range statusCodes {
		d := markDepth(err, sc.err)
		if d >= 0 && (depth < 0 || d < depth) {
			status, depth = sc.status, d
		}
	}
	return status
}

// markDepth returns how many wrappers sit above the layer marked with
// reference, or -1 when err is not marked with it
func markDepth(err, reference error) int {
	depth := -1
	for i, e := 0, err; e != nil; i, e = i+1, errors.UnwrapOnce(e) {
		if !errors.Is(e, reference) {
			break
		}
		depth = i
	}
	return depth
}
