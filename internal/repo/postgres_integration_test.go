//go:build integration

package repo_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Skotchmaster/taskvault/internal/models"
	"github.com/Skotchmaster/taskvault/internal/repo"
	"github.com/Skotchmaster/taskvault/pkg/db"
)

var pgDSN string

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("taskvault_test"),
		postgres.WithUsername("taskvault"),
		postgres.WithPassword("taskvault"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		panic("failed to start postgres container: " + err.Error())
	}

	pgDSN, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to get connection string: " + err.Error())
	}

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func openPostgres(t *testing.T, driver string) *repo.GormRepo {
	t.Helper()
	ctx := context.Background()

	gdb, err := db.Open(ctx, db.Config{Driver: driver, DSN: pgDSN})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	r := repo.New(gdb)
	require.NoError(t, r.Migrate(ctx))
	require.NoError(t, gdb.Exec("TRUNCATE tasks, users CASCADE").Error)
	return r
}

func newAccount(t *testing.T, r *repo.GormRepo, email string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{ID: uuid.NewString(), Name: "PG " + string(role), Email: email, PasswordHash: "x", Role: role}
	require.NoError(t, r.CreateUser(context.Background(), u))
	return u
}

func TestPostgres_Drivers(t *testing.T) {
	for _, driver := range []string{db.DriverPGX, db.DriverPQ} {
		t.Run(driver, func(t *testing.T) {
			r := openPostgres(t, driver)
			ctx := context.Background()

			u := newAccount(t, r, "pg@example.com", models.RoleUser)
			err := r.CreateUser(ctx, &models.User{ID: uuid.NewString(), Name: "Dup", Email: "pg@example.com", PasswordHash: "x", Role: models.RoleUser})
			assert.ErrorIs(t, err, repo.ErrDuplicate)

			task := &models.Task{ID: uuid.NewString(), Title: "Ship 100% of it", Description: "Escape the LIKE wildcard", Status: models.StatusTodo, UserID: u.ID}
			require.NoError(t, r.CreateTask(ctx, task))
			require.NoError(t, r.CreateTask(ctx, &models.Task{ID: uuid.NewString(), Title: "Ship 10 of it", Description: "No percent sign here", Status: models.StatusDone, UserID: u.ID}))

			total, found, err := r.SearchTasks(ctx, u.ID, "100%", 0, 10)
			require.NoError(t, err)
			assert.EqualValues(t, 1, total)
			require.Len(t, found, 1)
			assert.Equal(t, task.ID, found[0].ID)

			stats, err := r.TaskStats(ctx, u.ID)
			require.NoError(t, err)
			assert.Equal(t, models.TaskStats{Total: 2, Todo: 1, Done: 1}, stats)

			require.NoError(t, r.DeleteUserCascade(ctx, u.ID))
			_, err = r.FindTaskByID(ctx, task.ID)
			assert.ErrorIs(t, err, repo.ErrNotFound)
		})
	}
}

func TestPostgres_RotateRefreshTokenSingleWinner(t *testing.T) {
	r := openPostgres(t, db.DriverPGX)
	ctx := context.Background()

	u := newAccount(t, r, "cas@example.com", models.RoleUser)
	old := "old-digest"
	require.NoError(t, r.SetRefreshToken(ctx, u.ID, &old))

	const workers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := r.RotateRefreshToken(ctx, u.ID, old, uuid.NewString())
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
