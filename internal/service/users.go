package service

import (
	"context"
	"errors"

	"github.com/Skotchmaster/taskvault/internal/events"
	"github.com/Skotchmaster/taskvault/internal/models"
	"github.com/Skotchmaster/taskvault/internal/repo"
	"github.com/Skotchmaster/taskvault/internal/search"
	"github.com/Skotchmaster/taskvault/pkg/apperr"
	"github.com/Skotchmaster/taskvault/pkg/logging"
)

const msgSelfDelete = "You cannot delete your own account"

type UserAdminStore interface {
	ListUsersWithTaskCounts(ctx context.Context) ([]models.UserWithTaskCount, error)
	GetUserWithTasks(ctx context.Context, id string) (*models.UserDetail, error)
	DeleteUserCascade(ctx context.Context, id string) error
	UserStats(ctx context.Context) (models.UserStats, error)
	ListTasks(ctx context.Context, f repo.TaskFilter) ([]models.Task, error)
}

// UserService backs the admin-only user routes. Callers must already hold the ADMIN role.
type UserService struct {
	store   UserAdminStore
	events  events.Publisher
	indexer search.Indexer
}

func NewUserService(store UserAdminStore, publisher events.Publisher, indexer search.Indexer) *UserService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &UserService{store: store, events: publisher, indexer: indexer}
}

func (s *UserService) List(ctx context.Context) ([]models.UserWithTaskCount, error) {
	users, err := s.store.ListUsersWithTaskCounts(ctx)
	if err != nil {
		return nil, apperr.Internalf(err, "list users")
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.UserDetail, error) {
	u, err := s.store.GetUserWithTasks(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, msgUserNotFound)
		}
		return nil, apperr.Internalf(err, "get user")
	}
	return u, nil
}

// Delete removes the account and its tasks. An admin cannot delete their own account.
func (s *UserService) Delete(ctx context.Context, actor models.PublicUser, id string) error {
	l := logging.FromContext(ctx).With("svc", "users.delete")
	if actor.ID == id {
		l.Warn("user_delete_refused", "status", 400, "reason", "self delete", "user_id", id)
		return apperr.New(apperr.BadRequest, msgSelfDelete)
	}

	var taskIDs []string
	if s.indexer != nil {
		tasks, err := s.store.ListTasks(ctx, repo.TaskFilter{OwnerID: id})
		if err != nil {
			return apperr.Internalf(err, "list user tasks")
		}
		for _, t := range tasks {
			taskIDs = append(taskIDs, t.ID)
		}
	}

	if err := s.store.DeleteUserCascade(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return apperr.New(apperr.NotFound, msgUserNotFound)
		}
		return apperr.Internalf(err, "delete user")
	}

	for _, tid := range taskIDs {
		if err := s.indexer.Delete(ctx, tid); err != nil {
			l.Warn("task_unindex_failed", "task_id", tid, "error", err)
		}
	}

	l.Info("user_deleted", "user_id", id, "admin_id", actor.ID)
	publish(ctx, s.events, events.TopicUsers, events.Event{Type: events.UserDeleted, SubjectID: id, ActorID: actor.ID})
	return nil
}

func (s *UserService) Stats(ctx context.Context) (models.UserStats, error) {
	stats, err := s.store.UserStats(ctx)
	if err != nil {
		return models.UserStats{}, apperr.Internalf(err, "user stats")
	}
	return stats, nil
}
