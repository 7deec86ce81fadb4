package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/taskvault/internal/service"
)

type UserHTTP struct {
	Svc *service.UserService
}

func (h *UserHTTP) List(c echo.Context) error {
	users, err := h.Svc.List(c.Request().Context())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, users, "Users fetched successfully")
}

func (h *UserHTTP) Stats(c echo.Context) error {
	stats, err := h.Svc.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, stats, "User statistics fetched successfully")
}

func (h *UserHTTP) Get(c echo.Context) error {
	id, err := pathID(c, "id", "User ID")
	if err != nil {
		return err
	}
	user, err := h.Svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, user, "User fetched successfully")
}

func (h *UserHTTP) Delete(c echo.Context) error {
	who, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "User ID")
	if err != nil {
		return err
	}
	if err := h.Svc.Delete(c.Request().Context(), who, id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, nil, "User deleted successfully")
}
