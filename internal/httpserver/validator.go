package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/taskvault/pkg/apperr"
)

const msgUnknownFields = "Unknown fields are not allowed"

// Validator adapts go-playground/validator to echo and reports errors by JSON field name.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Internalf(err, "validate request")
	}

	fields := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperr.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return apperr.Invalid(fields)
}

func fieldMessage(fe validator.FieldError) string {
	label := fe.Field()
	if label != "" {
		label = strings.ToUpper(label[:1]) + label[1:]
	}
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Please provide a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s cannot exceed %s characters", label, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "uuid":
		return label + " must be a valid UUID"
	}
	return label + " is invalid"
}

type normalizer interface {
	Normalize()
}

// bind decodes a JSON body strictly, normalizes it and validates it. An empty body decodes
// as an empty object.
func bind(c echo.Context, dst any) error {
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
			return apperr.Invalid([]apperr.FieldError{{Field: strings.Trim(name, `"`), Message: msgUnknownFields}})
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return apperr.Invalid([]apperr.FieldError{{Field: typeErr.Field, Message: "Invalid type for " + typeErr.Field}})
		}
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON body")
	}
	if n, ok := dst.(normalizer); ok {
		n.Normalize()
	}
	return c.Validate(dst)
}

// pathID reads a UUID path parameter.
func pathID(c echo.Context, name, label string) (string, error) {
	raw := c.Param(name)
	if _, err := uuid.Parse(raw); err != nil {
		return "", apperr.Invalid([]apperr.FieldError{{Field: name, Message: label + " must be a valid UUID"}})
	}
	return raw, nil
}
