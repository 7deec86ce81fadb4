// Package testutil provides in-memory databases for package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Skotchmaster/taskvault/internal/models"
	"github.com/Skotchmaster/taskvault/internal/repo"
	"github.com/Skotchmaster/taskvault/pkg/db"
)

// NewDB opens a migrated private SQLite database that is closed with the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), db.GormConfig())
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(0)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, repo.New(gdb).Migrate(context.Background()))
	return gdb
}

func NewRepo(t *testing.T) *repo.GormRepo {
	t.Helper()
	return repo.New(NewDB(t))
}

// CreateUser inserts an account with a cheap bcrypt hash of password.
func CreateUser(t *testing.T, r *repo.GormRepo, email, password string, role models.Role) *models.User {
	t.Helper()

	digest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	u := &models.User{
		ID:           uuid.NewString(),
		Name:         "Test " + string(role),
		Email:        email,
		PasswordHash: string(digest),
		Role:         role,
	}
	require.NoError(t, r.CreateUser(context.Background(), u))
	return u
}

func CreateTask(t *testing.T, r *repo.GormRepo, ownerID, title string, status models.TaskStatus) *models.Task {
	t.Helper()

	task := &models.Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: "Description for " + title,
		Status:      status,
		UserID:      ownerID,
	}
	require.NoError(t, r.CreateTask(context.Background(), task))
	return task
}
