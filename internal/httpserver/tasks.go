package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/taskvault/internal/middleware"
	"github.com/Skotchmaster/taskvault/internal/models"
	"github.com/Skotchmaster/taskvault/internal/service"
	"github.com/Skotchmaster/taskvault/internal/transport"
	"github.com/Skotchmaster/taskvault/pkg/apperr"
)

const msgEmptyUpdate = "At least one field (title, description, or status) must be provided for update"

type TaskHTTP struct {
	Svc *service.TaskService
}

func actor(c echo.Context) (models.PublicUser, error) {
	u, ok := middleware.AccountFrom(c.Request().Context())
	if !ok {
		return models.PublicUser{}, apperr.New(apperr.Unauthenticated, "Authentication required")
	}
	return u, nil
}

func (h *TaskHTTP) Create(c echo.Context) error {
	who, err := actor(c)
	if err != nil {
		return err
	}
	var req transport.CreateTaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	task, err := h.Svc.Create(c.Request().Context(), who, service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, task, "Task created successfully")
}

func (h *TaskHTTP) List(c echo.Context) error {
	who, err := actor(c)
	if err != nil {
		return err
	}
	status := models.TaskStatus(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return apperr.Invalid([]apperr.FieldError{{Field: "status", Message: "Status must be one of: TODO, IN_PROGRESS, DONE"}})
	}

	tasks, err := h.Svc.List(c.Request().Context(), who, status)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, tasks, "Tasks fetched successfully")
}

func (h *TaskHTTP) Stats(c echo.Context) error {
	who, err := actor(c)
	if err != nil {
		return err
	}
	stats, err := h.Svc.Stats(c.Request().Context(), who)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, stats, "Task statistics fetched successfully")
}

func (h *TaskHTTP) Search(c echo.Context) error {
	who, err := actor(c)
	if err != nil {
		return err
	}
	q := c.QueryParam("q")
	if q == "" {
		return apperr.Invalid([]apperr.FieldError{{Field: "q", Message: "Search query is required"}})
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))

	res, err := h.Svc.Search(c.Request().Context(), who, q, page, size)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, res, "Tasks fetched successfully")
}

func (h *TaskHTTP) Get(c echo.Context) error {
	who, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "Task ID")
	if err != nil {
		return err
	}
	task, err := h.Svc.Get(c.Request().Context(), who, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, task, "Task fetched successfully")
}

func (h *TaskHTTP) Update(c echo.Context) error {
	who, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "Task ID")
	if err != nil {
		return err
	}
	var req transport.UpdateTaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	upd := req.Update()
	if upd.Empty() {
		return apperr.Invalid([]apperr.FieldError{{Field: "", Message: msgEmptyUpdate}})
	}

	task, err := h.Svc.Update(c.Request().Context(), who, id, upd)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, task, "Task updated successfully")
}

func (h *TaskHTTP) Delete(c echo.Context) error {
	who, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "Task ID")
	if err != nil {
		return err
	}
	if err := h.Svc.Delete(c.Request().Context(), who, id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, nil, "Task deleted successfully")
}
