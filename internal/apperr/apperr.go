package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies domain errors so callers can act on them without string matching.
type Kind string

// Kind constants define the error taxonomy shared by storage, billing and HTTP layers.
const (
	// KindConfiguration marks missing gateway credentials or an unusable storage backend.
	KindConfiguration Kind = "configuration"
	// KindNotFound marks an unknown tenant, plan, transaction, template or employee.
	KindNotFound Kind = "not_found"
	// KindConflict marks duplicate keys, exceeded plan limits and lost races.
	KindConflict Kind = "conflict"
	// KindGateway marks a malformed or rejected payment payload.
	KindGateway Kind = "gateway"
	// KindSignature marks a webhook signature mismatch.
	KindSignature Kind = "signature"
	// KindPersistence marks a backend read or write failure.
	KindPersistence Kind = "persistence"
	// KindValidation marks invalid caller input.
	KindValidation Kind = "validation"
	// KindUnauthorized marks bad credentials or a missing or invalid admin token.
	KindUnauthorized Kind = "unauthorized"
)

// Stable error codes returned to API clients.
const (
	CodeEmailTaken          = "email_taken"
	CodeSlugTaken           = "slug_taken"
	CodeLimitExceeded       = "limit_exceeded"
	CodeActivationRace      = "activation_race"
	CodeTenantNotFound      = "tenant_not_found"
	CodePlanNotFound        = "plan_not_found"
	CodeTemplateNotFound    = "template_not_found"
	CodeEmployeeNotFound    = "employee_not_found"
	CodeTransactionNotFound = "transaction_not_found"
	CodeRecordNotFound      = "record_not_found"
	CodeMissingCredentials  = "missing_gateway_credentials"
	CodeStorageUnavailable  = "storage_unavailable"
	CodeInvalidPayload      = "invalid_payload"
	CodeAmountMismatch      = "amount_mismatch"
	CodeBadSignature        = "bad_signature"
	CodeStorageFailure      = "storage_failure"
	CodeInvalidInput        = "invalid_input"
	CodeDuplicate           = "duplicate"
	CodeInvalidCredentials  = "invalid_credentials"
	CodeInvalidToken        = "invalid_token"
)

// Error is a classified domain error.
type Error struct {
	Kind    Kind
	Code    string
	Op      string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New constructs a classified error without a cause.
func New(kind Kind, code, op, message string) *Error {
	return &Error{Kind: kind, Code: code, Op: op, Message: message}
}

// Wrap classifies an existing error. A nil err yields nil.
func Wrap(err error, kind Kind, code, op string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Code: code, Op: op, Err: err}
}

// Configuration builds a KindConfiguration error.
func Configuration(code, op, format string, args ...any) *Error {
	return New(KindConfiguration, code, op, fmt.Sprintf(format, args...))
}

// NotFound builds a KindNotFound error.
func NotFound(code, op, format string, args ...any) *Error {
	return New(KindNotFound, code, op, fmt.Sprintf(format, args...))
}

// Conflict builds a KindConflict error.
func Conflict(code, op, format string, args ...any) *Error {
	return New(KindConflict, code, op, fmt.Sprintf(format, args...))
}

// Gateway builds a KindGateway error.
func Gateway(code, op, format string, args ...any) *Error {
	return New(KindGateway, code, op, fmt.Sprintf(format, args...))
}

// Signature builds a KindSignature error.
func Signature(op, format string, args ...any) *Error {
	return New(KindSignature, CodeBadSignature, op, fmt.Sprintf(format, args...))
}

// Validation builds a KindValidation error.
func Validation(op, format string, args ...any) *Error {
	return New(KindValidation, CodeInvalidInput, op, fmt.Sprintf(format, args...))
}

// Unauthorized builds a KindUnauthorized error.
func Unauthorized(code, op, format string, args ...any) *Error {
	return New(KindUnauthorized, code, op, fmt.Sprintf(format, args...))
}

// Persistence wraps a backend failure.
func Persistence(op string, err error) error {
	return Wrap(err, KindPersistence, CodeStorageFailure, op)
}

// KindOf returns the kind of the first classified error in the chain.
// Unclassified errors report KindPersistence.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindPersistence
}

// CodeOf returns the stable code of the first classified error in the chain.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		if appErr.Code != "" {
			return appErr.Code
		}
		return string(appErr.Kind)
	}
	if err == nil {
		return ""
	}
	return CodeStorageFailure
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// HTTPStatus maps an error to the response status used by the API layer.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case "":
		return http.StatusOK
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindSignature, KindUnauthorized:
		return http.StatusUnauthorized
	case KindGateway:
		return http.StatusBadGateway
	case KindConfiguration:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns a message safe to show to API clients.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindPersistence {
		if appErr.Message != "" {
			return appErr.Message
		}
		return string(appErr.Kind)
	}
	return "internal error"
}
