package dto

import "github.com/kingrain94/tenant-platform/internal/domain"

// Error is the error body returned by every HTTP surface, the gateway
// included.
type Error struct {
	ErrorCode string `json:"error_code" example:"TenantNotFound"`
	Message   string `json:"message" example:"tenant \"acme\" not found"`
	Detail    string `json:"detail,omitempty" example:"Expired"`
}

// NewError maps err to its HTTP status and response body. Wrapped causes are
// never exposed to the client.
func NewError(err error) (int, Error) {
	de := domain.AsError(err)
	msg := de.Message
	if msg == "" {
		msg = string(de.Code)
	}
	return de.HTTPStatus(), Error{
		ErrorCode: string(de.Code),
		Message:   msg,
		Detail:    de.Detail,
	}
}
