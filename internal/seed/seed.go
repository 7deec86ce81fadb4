// Package seed loads demo accounts and tasks into an empty database.
package seed

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/Skotchmaster/taskvault/internal/models"
	"github.com/Skotchmaster/taskvault/internal/repo"
)

type Store interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	CreateTask(ctx context.Context, t *models.Task) error
}

type Hasher interface {
	Hash(password string) (string, error)
}

type demoTask struct {
	title, description string
	status             models.TaskStatus
}

type demoUser struct {
	name, email, password string
	role                  models.Role
	tasks                 []demoTask
}

var demoData = []demoUser{
	{name: "Admin User", email: "admin@primetrade.com", password: "Admin123", role: models.RoleAdmin},
	{
		name: "User One", email: "user1@primetrade.com", password: "User123", role: models.RoleUser,
		tasks: []demoTask{
			{"Setup Development Environment", "Install the toolchain, PostgreSQL, and configure the project environment variables", models.StatusDone},
			{"Implement Authentication", "Complete JWT authentication with access and refresh tokens", models.StatusDone},
			{"Add Task CRUD Operations", "Implement create, read, update, and delete operations for tasks", models.StatusInProgress},
		},
	},
	{
		name: "User Two", email: "user2@primetrade.com", password: "User123", role: models.RoleUser,
		tasks: []demoTask{
			{"Write API Documentation", "Document all API endpoints using Swagger/OpenAPI specification", models.StatusTodo},
			{"Deploy to Production", "Configure production environment and deploy the application", models.StatusTodo},
		},
	},
}

type Result struct {
	UsersCreated int
	UsersSkipped int
	TasksCreated int
}

// Run creates every demo account that does not exist yet. Tasks are only added for accounts
// created by this run, so repeated runs do not duplicate them.
func Run(ctx context.Context, store Store, hasher Hasher, l *slog.Logger) (Result, error) {
	var res Result
	for _, du := range demoData {
		_, err := store.FindUserByEmail(ctx, du.email)
		if err == nil {
			l.Info("seed_user_exists", "email", du.email)
			res.UsersSkipped++
			continue
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return res, oops.Code("SEED_FAILED").With("email", du.email).Wrapf(err, "find user")
		}

		digest, err := hasher.Hash(du.password)
		if err != nil {
			return res, oops.Code("SEED_FAILED").With("email", du.email).Wrapf(err, "hash password")
		}
		u := &models.User{
			ID:           uuid.NewString(),
			Name:         du.name,
			Email:        du.email,
			PasswordHash: digest,
			Role:         du.role,
		}
		if err := store.CreateUser(ctx, u); err != nil {
			return res, oops.Code("SEED_FAILED").With("email", du.email).Wrapf(err, "create user")
		}
		res.UsersCreated++
		l.Info("seed_user_created", "email", u.Email, "role", u.Role)

		for _, dt := range du.tasks {
			t := &models.Task{
				ID:          uuid.NewString(),
				Title:       dt.title,
				Description: dt.description,
				Status:      dt.status,
				UserID:      u.ID,
			}
			if err := store.CreateTask(ctx, t); err != nil {
				return res, oops.Code("SEED_FAILED").With("title", dt.title).Wrapf(err, "create task")
			}
			res.TasksCreated++
		}
	}
	return res, nil
}
