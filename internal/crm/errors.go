package crm

import (
	"errors"
	"fmt"

	"github.com/dealflow-ai/qualification-platform/internal/model"
)

// ErrorCode classifies a CRM failure.
type ErrorCode string

const (
	// CodeAuthExpired means the access token was rejected and could not be
	// refreshed.
	CodeAuthExpired ErrorCode = "auth_expired"

	// CodeFieldNotFound means the target schema lacks a field we tried to
	// write.
	CodeFieldNotFound ErrorCode = "field_not_found"

	// CodeValidationFailed means the CRM rejected the record's contents.
	CodeValidationFailed ErrorCode = "validation_failed"

	// CodeRateLimited means the CRM throttled the request.
	CodeRateLimited ErrorCode = "rate_limited"

	// CodeCreateFailed is the catch-all for record creation failures.
	CodeCreateFailed ErrorCode = "create_failed"

	// CodeSkippedDependency marks a step that was never attempted because
	// the record it depends on failed to create.
	CodeSkippedDependency ErrorCode = "skipped_dependency_failure"
)

// Error is a structured CRM failure.
type Error struct {
	Object  model.ObjectType
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("crm %s: %s: %s", e.Object, e.Code, e.Message)
}

// CodeOf extracts the error code, defaulting to create_failed for errors
// that did not originate as a structured CRM failure.
func CodeOf(err error) ErrorCode {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeCreateFailed
}

// IsFieldNotFound reports whether err is a missing-field failure.
func IsFieldNotFound(err error) bool {
	return CodeOf(err) == CodeFieldNotFound
}
