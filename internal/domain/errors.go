package domain

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	CodeTenantNotFound         ErrorCode = "TenantNotFound"
	CodeTenantInactive         ErrorCode = "TenantInactive"
	CodeTenantConflict         ErrorCode = "TenantConflict"
	CodeSchemaProvisionFailure ErrorCode = "SchemaProvisionFailure"
	CodeTokenInvalid           ErrorCode = "TokenInvalid"
	CodePermissionDenied       ErrorCode = "PermissionDenied"
	CodeRouteNotFound          ErrorCode = "RouteNotFound"
	CodeUpstreamUnavailable    ErrorCode = "UpstreamUnavailable"
	CodeUpstreamTimeout        ErrorCode = "UpstreamTimeout"

	CodeInvalidCredentials ErrorCode = "InvalidCredentials"
	CodeAccountLocked      ErrorCode = "AccountLocked"
	CodeInvalidRequest     ErrorCode = "InvalidRequest"
	CodeTenantExists       ErrorCode = "TenantExists"
	CodeInvalidTransition  ErrorCode = "InvalidTransition"
	CodeNotFound           ErrorCode = "NotFound"
	CodeConflict           ErrorCode = "Conflict"
	CodeInternal           ErrorCode = "Internal"
)

// Token failure details carried in Error.Detail for CodeTokenInvalid.
const (
	DetailExpired   = "Expired"
	DetailMalformed = "Malformed"
	DetailRevoked   = "Revoked"
)

// DetailUserLimit marks the Conflict returned when a tenant is at max_users.
const DetailUserLimit = "UserLimit"

// Error is the error type shared by every component. Detail refines Code,
// e.g. TokenInvalid/Revoked.
type Error struct {
	Code    ErrorCode
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Detail != "" {
		msg += "/" + e.Detail
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Code, and on Detail when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Detail == "" || t.Detail == e.Detail
}

// HTTPStatus maps the code to the response status used by every HTTP surface.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeTenantNotFound, CodeRouteNotFound, CodeNotFound:
		return http.StatusNotFound
	case CodeTenantInactive, CodePermissionDenied:
		return http.StatusForbidden
	case CodeTenantConflict, CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeTokenInvalid, CodeInvalidCredentials:
		return http.StatusUnauthorized
	case CodeAccountLocked:
		return http.StatusTooManyRequests
	case CodeTenantExists, CodeInvalidTransition, CodeConflict:
		return http.StatusConflict
	case CodeUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case CodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Sentinels for errors.Is comparisons.
var (
	ErrTenantNotFound         = &Error{Code: CodeTenantNotFound}
	ErrTenantInactive         = &Error{Code: CodeTenantInactive}
	ErrTenantConflict         = &Error{Code: CodeTenantConflict}
	ErrSchemaProvisionFailure = &Error{Code: CodeSchemaProvisionFailure}
	ErrTokenInvalid           = &Error{Code: CodeTokenInvalid}
	ErrTokenExpired           = &Error{Code: CodeTokenInvalid, Detail: DetailExpired}
	ErrTokenMalformed         = &Error{Code: CodeTokenInvalid, Detail: DetailMalformed}
	ErrTokenRevoked           = &Error{Code: CodeTokenInvalid, Detail: DetailRevoked}
	ErrPermissionDenied       = &Error{Code: CodePermissionDenied}
	ErrRouteNotFound          = &Error{Code: CodeRouteNotFound}
	ErrUpstreamUnavailable    = &Error{Code: CodeUpstreamUnavailable}
	ErrUpstreamTimeout        = &Error{Code: CodeUpstreamTimeout}
	ErrInvalidCredentials     = &Error{Code: CodeInvalidCredentials}
	ErrAccountLocked          = &Error{Code: CodeAccountLocked}
	ErrInvalidRequest         = &Error{Code: CodeInvalidRequest}
	ErrTenantExists           = &Error{Code: CodeTenantExists}
	ErrInvalidTransition      = &Error{Code: CodeInvalidTransition}
	ErrNotFound               = &Error{Code: CodeNotFound}
	ErrConflict               = &Error{Code: CodeConflict}
	ErrUserLimitReached       = &Error{Code: CodeConflict, Detail: DetailUserLimit}
	ErrInternal               = &Error{Code: CodeInternal}
)

func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func NewTokenError(detail string, err error) *Error {
	return &Error{Code: CodeTokenInvalid, Detail: detail, Message: "token is not valid", Err: err}
}

// WrapError attaches code to err unless err already carries a domain code.
func WrapError(code ErrorCode, message string, err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return &Error{Code: code, Message: message, Err: err}
}

// AsError extracts the domain error from err, defaulting to Internal.
func AsError(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return &Error{Code: CodeInternal, Message: "internal error", Err: err}
}
