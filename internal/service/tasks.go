package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/Skotchmaster/taskvault/internal/events"
	"github.com/Skotchmaster/taskvault/internal/models"
	"github.com/Skotchmaster/taskvault/internal/repo"
	"github.com/Skotchmaster/taskvault/internal/search"
	"github.com/Skotchmaster/taskvault/internal/util"
	"github.com/Skotchmaster/taskvault/pkg/apperr"
	"github.com/Skotchmaster/taskvault/pkg/logging"
)

const (
	msgTaskNotFound  = "Task not found"
	msgTaskForbidden = "You are not authorized to access this task"
	msgEmptyUpdate   = "At least one field must be provided for update"
	msgInvalidStatus = "Status must be one of TODO, IN_PROGRESS, DONE"
	msgQueryRequired = "Search query is required"
)

type TaskStore interface {
	CreateTask(ctx context.Context, t *models.Task) error
	FindTaskByID(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context, f repo.TaskFilter) ([]models.Task, error)
	UpdateTask(ctx context.Context, id string, u models.TaskUpdate) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) error
	TaskStats(ctx context.Context, ownerID string) (models.TaskStats, error)
	SearchTasks(ctx context.Context, ownerID, query string, offset, limit int) (int64, []models.Task, error)
	FindTasksByIDs(ctx context.Context, ids []string) ([]models.Task, error)
}

type CreateTaskInput struct {
	Title       string
	Description string
	Status      models.TaskStatus
}

type TaskService struct {
	store   TaskStore
	events  events.Publisher
	indexer search.Indexer
}

// NewTaskService builds the task service. A nil indexer makes search use the database.
func NewTaskService(store TaskStore, publisher events.Publisher, indexer search.Indexer) *TaskService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &TaskService{store: store, events: publisher, indexer: indexer}
}

// ownerScope is empty for admins, who see every account's tasks.
func ownerScope(actor models.PublicUser) string {
	if actor.Role == models.RoleAdmin {
		return ""
	}
	return actor.ID
}

func authorizeTask(actor models.PublicUser, t *models.Task) error {
	if actor.Role == models.RoleAdmin || t.UserID == actor.ID {
		return nil
	}
	return apperr.New(apperr.Forbidden, msgTaskForbidden)
}

func (s *TaskService) Create(ctx context.Context, actor models.PublicUser, in CreateTaskInput) (*models.Task, error) {
	status := in.Status
	if status == "" {
		status = models.StatusTodo
	}
	if !status.Valid() {
		return nil, apperr.New(apperr.BadRequest, msgInvalidStatus)
	}

	t := &models.Task{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Status:      status,
		UserID:      actor.ID,
	}
	if err := s.store.CreateTask(ctx, t); err != nil {
		return nil, apperr.Internalf(err, "create task")
	}

	logging.FromContext(ctx).Info("task_created", "svc", "tasks.create", "task_id", t.ID, "user_id", actor.ID)
	s.index(ctx, *t)
	publish(ctx, s.events, events.TopicTasks, events.Event{
		Type: events.TaskCreated, SubjectID: t.ID, ActorID: actor.ID,
		Data: map[string]any{"title": t.Title, "status": t.Status},
	})
	return t, nil
}

func (s *TaskService) List(ctx context.Context, actor models.PublicUser, status models.TaskStatus) ([]models.Task, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.New(apperr.BadRequest, msgInvalidStatus)
	}
	tasks, err := s.store.ListTasks(ctx, repo.TaskFilter{OwnerID: ownerScope(actor), Status: status})
	if err != nil {
		return nil, apperr.Internalf(err, "list tasks")
	}
	return tasks, nil
}

// load checks existence before ownership so a missing task is always NotFound.
func (s *TaskService) load(ctx context.Context, actor models.PublicUser, id string) (*models.Task, error) {
	t, err := s.store.FindTaskByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, msgTaskNotFound)
		}
		return nil, apperr.Internalf(err, "find task")
	}
	if err := authorizeTask(actor, t); err != nil {
		logging.FromContext(ctx).Warn("task_access_denied", "status", 403, "task_id", id, "user_id", actor.ID)
		return nil, err
	}
	return t, nil
}

func (s *TaskService) Get(ctx context.Context, actor models.PublicUser, id string) (*models.Task, error) {
	return s.load(ctx, actor, id)
}

func (s *TaskService) Update(ctx context.Context, actor models.PublicUser, id string, u models.TaskUpdate) (*models.Task, error) {
	if _, err := s.load(ctx, actor, id); err != nil {
		return nil, err
	}
	if u.Empty() {
		return nil, apperr.New(apperr.BadRequest, msgEmptyUpdate)
	}
	if u.Status != nil && !u.Status.Valid() {
		return nil, apperr.New(apperr.BadRequest, msgInvalidStatus)
	}
	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		u.Title = &title
	}
	if u.Description != nil {
		desc := strings.TrimSpace(*u.Description)
		u.Description = &desc
	}

	t, err := s.store.UpdateTask(ctx, id, u)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, msgTaskNotFound)
		}
		return nil, apperr.Internalf(err, "update task")
	}

	s.index(ctx, *t)
	publish(ctx, s.events, events.TopicTasks, events.Event{
		Type: events.TaskUpdated, SubjectID: t.ID, ActorID: actor.ID,
		Data: map[string]any{"title": t.Title, "status": t.Status},
	})
	return t, nil
}

func (s *TaskService) Delete(ctx context.Context, actor models.PublicUser, id string) error {
	if _, err := s.load(ctx, actor, id); err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return apperr.New(apperr.NotFound, msgTaskNotFound)
		}
		return apperr.Internalf(err, "delete task")
	}

	logging.FromContext(ctx).Info("task_deleted", "svc", "tasks.delete", "task_id", id, "user_id", actor.ID)
	s.unindex(ctx, id)
	publish(ctx, s.events, events.TopicTasks, events.Event{Type: events.TaskDeleted, SubjectID: id, ActorID: actor.ID})
	return nil
}

func (s *TaskService) Stats(ctx context.Context, actor models.PublicUser) (models.TaskStats, error) {
	stats, err := s.store.TaskStats(ctx, ownerScope(actor))
	if err != nil {
		return models.TaskStats{}, apperr.Internalf(err, "task stats")
	}
	return stats, nil
}

// Search prefers the index and falls back to the database when it is absent or failing.
func (s *TaskService) Search(ctx context.Context, actor models.PublicUser, query string, page, size int) (*models.TaskSearchResult, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, apperr.New(apperr.BadRequest, msgQueryRequired)
	}
	offset, limit, page := util.Calculate(page, size)
	scope := ownerScope(actor)
	l := logging.FromContext(ctx).With("svc", "tasks.search")

	if s.indexer != nil {
		total, ids, err := s.indexer.Search(ctx, scope, q, offset, limit)
		if err == nil {
			items, err := s.store.FindTasksByIDs(ctx, ids)
			if err != nil {
				return nil, apperr.Internalf(err, "load search hits")
			}
			return &models.TaskSearchResult{Items: items, Page: util.NewPage(page, limit, total)}, nil
		}
		l.Warn("index_search_failed", "reason", "falling back to database", "error", err)
	}

	total, items, err := s.store.SearchTasks(ctx, scope, q, offset, limit)
	if err != nil {
		return nil, apperr.Internalf(err, "search tasks")
	}
	return &models.TaskSearchResult{Items: items, Page: util.NewPage(page, limit, total)}, nil
}

func (s *TaskService) index(ctx context.Context, t models.Task) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.Index(ctx, t); err != nil {
		logging.FromContext(ctx).Warn("task_index_failed", "task_id", t.ID, "error", err)
	}
}

func (s *TaskService) unindex(ctx context.Context, id string) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.Delete(ctx, id); err != nil {
		logging.FromContext(ctx).Warn("task_unindex_failed", "task_id", id, "error", err)
	}
}
