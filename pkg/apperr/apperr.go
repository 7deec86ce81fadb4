// Package apperr defines the error kinds shared by services and the HTTP boundary.
package apperr

import (
	"net/http"

	"github.com/samber/oops"
)

type Kind string

const (
	Unauthenticated Kind = "UNAUTHENTICATED"
	Forbidden       Kind = "FORBIDDEN"
	Conflict        Kind = "CONFLICT"
	NotFound        Kind = "NOT_FOUND"
	BadRequest      Kind = "BAD_REQUEST"
	Internal        Kind = "INTERNAL"
)

var kinds = []Kind{Unauthenticated, Forbidden, Conflict, NotFound, BadRequest, Internal}

// InternalMessage is the only message callers ever see for Internal errors.
const InternalMessage = "Internal Server Error"

// FieldError is one field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

const (
	fieldsKey  = "fields"
	messageKey = "message"
)

func New(kind Kind, msg string) error {
	return oops.Code(string(kind)).With(messageKey, msg).Errorf("%s", msg)
}

// Wrap attaches kind to a lower-level cause. The caller only sees msg; the cause and any
// extra key/value pairs stay in the oops context for logging.
func Wrap(kind Kind, err error, msg string, kv ...any) error {
	return oops.Code(string(kind)).With(messageKey, msg).With(kv...).Wrapf(err, "%s", msg)
}

func Internalf(err error, op string) error {
	return oops.Code(string(Internal)).With("operation", op).Wrapf(err, "%s", op)
}

// Invalid builds a BadRequest carrying field errors.
func Invalid(fields []FieldError) error {
	return oops.Code(string(BadRequest)).
		With(messageKey, "Validation failed", fieldsKey, fields).
		Errorf("Validation failed")
}

// KindOf reports the kind of err. Errors without a known code are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return Internal
	}
	for _, k := range kinds {
		if oopsErr.Code() == string(k) {
			return k
		}
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the caller-facing message for err.
func Message(err error) string {
	if KindOf(err) == Internal {
		return InternalMessage
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		if msg, ok := oopsErr.Context()[messageKey].(string); ok && msg != "" {
			return msg
		}
	}
	return err.Error()
}

// Fields returns the field errors attached by Invalid, if any.
func Fields(err error) []FieldError {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	fields, _ := oopsErr.Context()[fieldsKey].([]FieldError)
	return fields
}

func Status(kind Kind) int {
	switch kind {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case Conflict:
		return http.StatusConflict
	case NotFound:
		return http.StatusNotFound
	case BadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
