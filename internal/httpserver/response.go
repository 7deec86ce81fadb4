package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/taskvault/pkg/apperr"
	"github.com/Skotchmaster/taskvault/pkg/logging"
)

type SuccessBody struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

type ErrorBody struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Errors  []apperr.FieldError `json:"errors"`
}

func respond(c echo.Context, status int, data any, msg string) error {
	return c.JSON(status, SuccessBody{StatusCode: status, Data: data, Message: msg, Success: true})
}

// ErrorHandler renders every error in the error envelope. Internal causes are logged, never sent.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, body := errorResponse(c, err)

	l := logging.FromContext(c.Request().Context())
	if status >= http.StatusInternalServerError {
		logging.Error(l, "request_failed", err, "status", status)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		l.Error("error_response_failed", "error", err)
	}
}

func errorResponse(c echo.Context, err error) (int, ErrorBody) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		switch m := he.Message.(type) {
		case string:
			msg = m
		case error:
			msg = m.Error()
		case nil:
		default:
			msg = fmt.Sprint(m)
		}
		if he.Code == http.StatusNotFound && errors.Is(he, echo.ErrNotFound) {
			msg = fmt.Sprintf("Route %s not found", c.Request().URL.Path)
		}
		if he.Code >= http.StatusInternalServerError {
			msg = apperr.InternalMessage
		}
		return he.Code, ErrorBody{Message: msg, Errors: []apperr.FieldError{}}
	}

	kind := apperr.KindOf(err)
	fields := apperr.Fields(err)
	if fields == nil {
		fields = []apperr.FieldError{}
	}
	return apperr.Status(kind), ErrorBody{Message: apperr.Message(err), Errors: fields}
}
