package httpserver_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skotchmaster/taskvault/internal/events"
	"github.com/Skotchmaster/taskvault/internal/httpserver"
	"github.com/Skotchmaster/taskvault/internal/middleware"
	"github.com/Skotchmaster/taskvault/internal/models"
	"github.com/Skotchmaster/taskvault/internal/repo"
	"github.com/Skotchmaster/taskvault/internal/service"
	"github.com/Skotchmaster/taskvault/internal/testutil"
	"github.com/Skotchmaster/taskvault/pkg/apperr"
	"github.com/Skotchmaster/taskvault/pkg/hash"
	"github.com/Skotchmaster/taskvault/pkg/logging"
	"github.com/Skotchmaster/taskvault/pkg/tokens"
)

type envelope struct {
	StatusCode int                 `json:"statusCode"`
	Data       json.RawMessage     `json:"data"`
	Message    string              `json:"message"`
	Success    bool                `json:"success"`
	Errors     []apperr.FieldError `json:"errors"`
}

type testServer struct {
	e    *echo.Echo
	repo *repo.GormRepo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	r := testutil.NewRepo(t)
	iss, err := tokens.NewIssuer(tokens.Config{
		AccessSecret:  []byte("http-access"),
		RefreshSecret: []byte("http-refresh"),
	})
	require.NoError(t, err)
	rec := events.NewRecorder()

	e := httpserver.New(&httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{
			Svc: service.NewAuthService(r, hash.NewBcrypt(bcrypt.MinCost), iss, service.WithEvents(rec)),
		},
		TaskHandler:   &httpserver.TaskHTTP{Svc: service.NewTaskService(r, rec, nil)},
		UserHandler:   &httpserver.UserHTTP{Svc: service.NewUserService(r, rec, nil)},
		HealthHandler: &httpserver.HealthHTTP{DB: r, Environment: "test", Started: time.Now()},
		Authenticator: middleware.NewAuthenticator(iss, r),
		Logger:        logging.NewWithWriter(io.Discard, "error", "json"),
	})
	return &testServer{e: e, repo: r}
}

type call struct {
	method  string
	path    string
	body    any
	token   string
	cookies []*http.Cookie
}

func (s *testServer) do(t *testing.T, c call) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var body io.Reader
	switch b := c.body.(type) {
	case nil:
	case string:
		body = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(c.method, c.path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if c.token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+c.token)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}

	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

type authData struct {
	User         models.PublicUser `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

func (s *testServer) register(t *testing.T, email string) authData {
	t.Helper()
	rec, env := s.do(t, call{method: http.MethodPost, path: "/api/v1/auth/register", body: map[string]any{
		"name": "Test User", "email": email, "password": "secret123",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var data authData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data
}

func (s *testServer) loginAdmin(t *testing.T) authData {
	t.Helper()
	testutil.CreateUser(t, s.repo, "admin@example.com", "Admin123", models.RoleAdmin)
	rec, env := s.do(t, call{method: http.MethodPost, path: "/api/v1/auth/login", body: map[string]any{
		"email": "admin@example.com", "password": "Admin123",
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var data authData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func TestRegister_EnvelopeAndCookies(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, call{method: http.MethodPost, path: "/api/v1/auth/register", body: map[string]any{
		"name": "Jane", "email": " Jane@Example.com ", "password": "secret123",
	}})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, http.StatusCreated, env.StatusCode)
	assert.Equal(t, "User registered successfully", env.Message)

	var data authData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "jane@example.com", data.User.Email)
	assert.NotEmpty(t, data.AccessToken)
	assert.NotEmpty(t, data.RefreshToken)
	assert.NotContains(t, string(env.Data), "password")

	for _, name := range []string{middleware.AccessCookie, middleware.RefreshCookie} {
		ck := cookieByName(rec, name)
		require.NotNil(t, ck, name)
		assert.True(t, ck.HttpOnly)
		assert.Equal(t, http.SameSiteStrictMode, ck.SameSite)
		assert.Equal(t, "/", ck.Path)
		assert.False(t, ck.Expires.IsZero())
	}
	assert.Equal(t, data.AccessToken, cookieByName(rec, middleware.AccessCookie).Value)
}

func TestRegister_ValidationErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name  string
		body  any
		field string
		msg   string
	}{
		{
			name:  "short name",
			body:  map[string]any{"name": "J", "email": "j@example.com", "password": "secret123"},
			field: "name", msg: "Name must be at least 2 characters long",
		},
		{
			name:  "bad email",
			body:  map[string]any{"name": "Jane", "email": "nope", "password": "secret123"},
			field: "email", msg: "Please provide a valid email address",
		},
		{
			name:  "short password",
			body:  map[string]any{"name": "Jane", "email": "j@example.com", "password": "123"},
			field: "password", msg: "Password must be at least 6 characters long",
		},
		{
			name:  "bad role",
			body:  map[string]any{"name": "Jane", "email": "j@example.com", "password": "secret123", "role": "ROOT"},
			field: "role",
		},
		{
			name:  "unknown field",
			body:  map[string]any{"name": "Jane", "email": "j@example.com", "password": "secret123", "admin": true},
			field: "admin", msg: "Unknown fields are not allowed",
		},
		{
			name:  "missing everything",
			body:  map[string]any{},
			field: "name", msg: "Name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(t, call{method: http.MethodPost, path: "/api/v1/auth/register", body: tt.body})
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.False(t, env.Success)
			assert.Equal(t, "Validation failed", env.Message)
			require.NotEmpty(t, env.Errors)
			assert.Equal(t, tt.field, env.Errors[0].Field)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, env.Errors[0].Message)
			}
		})
	}
}

func TestRegister_MalformedJSON(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, call{method: http.MethodPost, path: "/api/v1/auth/register", body: "{not json"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Invalid JSON body", env.Message)
}

func TestRegister_Duplicate(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "dup@example.com")

	rec, env := s.do(t, call{method: http.MethodPost, path: "/api/v1/auth/register", body: map[string]any{
		"name": "Other", "email": "DUP@example.com", "password": "secret123",
	}})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User with this email already exists", env.Message)
	assert.Empty(t, env.Errors)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "known@example.com")

	recA, envA := s.do(t, call{method: http.MethodPost, path: "/api/v1/auth/login", body: map[string]any{
		"email": "known@example.com", "password": "wrong-password",
	}})
	recB, envB := s.do(t, call{method: http.MethodPost, path: "/api/v1/auth/login", body: map[string]any{
		"email": "unknown@example.com", "password": "secret123",
	}})

	assert.Equal(t, http.StatusUnauthorized, recA.Code)
	assert.Equal(t, recA.Code, recB.Code)
	assert.Equal(t, "Invalid email or password", envA.Message)
	assert.Equal(t, envA, envB)
}

func TestMe_HeaderCookieAndMissing(t *testing.T) {
	s := newTestServer(t)
	data := s.register(t, "me@example.com")

	rec, env := s.do(t, call{method: http.MethodGet, path: "/api/v1/auth/me", token: data.AccessToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var me models.PublicUser
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, data.User.ID, me.ID)
	assert.Equal(t, "User profile fetched successfully", env.Message)

	rec, _ = s.do(t, call{method: http.MethodGet, path: "/api/v1/auth/me", cookies: []*http.Cookie{
		{Name: middleware.AccessCookie, Value: data.AccessToken},
	}})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(t, call{method: http.MethodGet, path: "/api/v1/auth/me"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authentication required", env.Message)

	rec, env = s.do(t, call{method: http.MethodGet, path: "/api/v1/auth/me", token: data.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authentication required", env.Message)
}

func TestRefresh_BodyThenCookieAndReplay(t *testing.T) {
	s := newTestServer(t)
	data := s.register(t, "refresh@example.com")

	rec, env := s.do(t, call{method: http.MethodPost, path: "/api/v1/auth/refresh-token", body: map[string]any{
		"refreshToken": data.RefreshToken,
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Token refreshed successfully", env.Message)
	var pair struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &pair))
	assert.NotContains(t, string(env.Data), `"user"`)
	require.NotNil(t, cookieByName(rec, middleware.RefreshCookie))
	assert.Equal(t, pair.RefreshToken, cookieByName(rec, middleware.RefreshCookie).Value)

	rec, env = s.do(t, call{method: http.MethodPost, path: "/api/v1/auth/refresh-token", body: map[string]any{
		"refreshToken": data.RefreshToken,
	}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid refresh token", env.Message)

	rec, _ = s.do(t, call{method: http.MethodPost, path: "/api/v1/auth/refresh-token", cookies: []*http.Cookie{
		{Name: middleware.RefreshCookie, Value: pair.RefreshToken},
	}})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(t, call{method: http.MethodPost, path: "/api/v1/auth/refresh-token"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Refresh token is required", env.Message)
}

func TestLogout_ClearsCookiesAndSession(t *testing.T) {
	s := newTestServer(t)
	data := s.register(t, "bye@example.com")

	rec, env := s.do(t, call{method: http.MethodPost, path: "/api/v1/auth/logout", token: data.AccessToken})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", string(env.Data))
	for _, name := range []string{middleware.AccessCookie, middleware.RefreshCookie} {
		ck := cookieByName(rec, name)
		require.NotNil(t, ck)
		assert.Empty(t, ck.Value)
		assert.Negative(t, ck.MaxAge)
	}

	rec, _ = s.do(t, call{method: http.MethodPost, path: "/api/v1/auth/refresh-token", body: map[string]any{
		"refreshToken": data.RefreshToken,
	}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(t, call{method: http.MethodPost, path: "/api/v1/auth/logout"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTasks_CRUDAndOwnership(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice@example.com")
	bob := s.register(t, "bob@example.com")
	admin := s.loginAdmin(t)

	rec, env := s.do(t, call{method: http.MethodPost, path: "/api/v1/tasks", token: alice.AccessToken, body: map[string]any{
		"title": "Write report", "description": "Quarterly numbers for finance",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var task models.Task
	require.NoError(t, json.Unmarshal(env.Data, &task))
	assert.Equal(t, models.StatusTodo, task.Status)
	require.NotNil(t, task.User)
	assert.Equal(t, "alice@example.com", task.User.Email)
	path := "/api/v1/tasks/" + task.ID

	rec, env = s.do(t, call{method: http.MethodPost, path: "/api/v1/tasks", token: alice.AccessToken, body: map[string]any{
		"title": "No", "description": "short",
	}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, env.Errors, 2)

	rec, env = s.do(t, call{method: http.MethodGet, path: path, token: bob.AccessToken})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "You are not authorized to access this task", env.Message)

	rec, _ = s.do(t, call{method: http.MethodDelete, path: path, token: bob.AccessToken})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = s.do(t, call{method: http.MethodGet, path: "/api/v1/tasks/" + uuid.NewString(), token: bob.AccessToken})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Task not found", env.Message)

	rec, env = s.do(t, call{method: http.MethodGet, path: "/api/v1/tasks/not-a-uuid", token: alice.AccessToken})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "Task ID must be a valid UUID", env.Errors[0].Message)

	rec, env = s.do(t, call{method: http.MethodPatch, path: path, token: alice.AccessToken, body: map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, env.Errors, 1)

	rec, env = s.do(t, call{method: http.MethodPatch, path: path, token: alice.AccessToken, body: map[string]any{"status": "DONE"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &task))
	assert.Equal(t, models.StatusDone, task.Status)

	rec, env = s.do(t, call{method: http.MethodGet, path: "/api/v1/tasks/stats", token: alice.AccessToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.TaskStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, models.TaskStats{Total: 1, Done: 1}, stats)

	rec, env = s.do(t, call{method: http.MethodGet, path: "/api/v1/tasks?status=TODO", token: alice.AccessToken})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", string(env.Data))

	rec, env = s.do(t, call{method: http.MethodGet, path: "/api/v1/tasks/search?q=report", token: alice.AccessToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var found models.TaskSearchResult
	require.NoError(t, json.Unmarshal(env.Data, &found))
	assert.EqualValues(t, 1, found.Total)

	rec, _ = s.do(t, call{method: http.MethodDelete, path: path, token: admin.AccessToken})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, call{method: http.MethodGet, path: path, token: alice.AccessToken})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUsers_AdminOnly(t *testing.T) {
	s := newTestServer(t)
	user := s.register(t, "plain@example.com")
	admin := s.loginAdmin(t)

	rec, env := s.do(t, call{method: http.MethodGet, path: "/api/v1/users", token: user.AccessToken})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Access denied. Only ADMIN can access this resource", env.Message)

	rec, _ = s.do(t, call{method: http.MethodGet, path: "/api/v1/users"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env = s.do(t, call{method: http.MethodGet, path: "/api/v1/users", token: admin.AccessToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.UserWithTaskCount
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 2)

	rec, env = s.do(t, call{method: http.MethodGet, path: "/api/v1/users/stats", token: admin.AccessToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.UserStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, models.UserStats{TotalUsers: 2, AdminCount: 1, UserCount: 1}, stats)

	rec, env = s.do(t, call{method: http.MethodDelete, path: "/api/v1/users/" + admin.User.ID, token: admin.AccessToken})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "You cannot delete your own account", env.Message)

	rec, _ = s.do(t, call{method: http.MethodGet, path: "/api/v1/users/" + user.User.ID, token: admin.AccessToken})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, call{method: http.MethodDelete, path: "/api/v1/users/" + user.User.ID, token: admin.AccessToken})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(t, call{method: http.MethodGet, path: "/api/v1/users/" + user.User.ID, token: admin.AccessToken})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", env.Message)

	rec, env = s.do(t, call{method: http.MethodGet, path: "/api/v1/auth/me", token: user.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authentication required", env.Message)
}

func TestHealthWelcomeAndNotFound(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, call{method: http.MethodGet, path: "/api/v1/health"})
	require.Equal(t, http.StatusOK, rec.Code)
	var health struct {
		Status      string `json:"status"`
		Database    string `json:"database"`
		Environment string `json:"environment"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "connected", health.Database)
	assert.Equal(t, "test", health.Environment)

	rec, env = s.do(t, call{method: http.MethodGet, path: "/"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	rec, env = s.do(t, call{method: http.MethodGet, path: "/nowhere"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route /nowhere not found", env.Message)
	assert.False(t, env.Success)

	rec = httptest.NewRecorder()
	s.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "taskvault_http_requests_total")
}

func TestErrorHandler_HidesInternalCauses(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	httpserver.ErrorHandler(apperr.Internalf(errors.New("pq: password authentication failed"), "find user"), c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pq:")
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "Internal Server Error", env.Message)
	assert.False(t, env.Success)
}
