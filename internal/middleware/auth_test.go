package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/taskvault/internal/middleware"
	"github.com/Skotchmaster/taskvault/internal/models"
	"github.com/Skotchmaster/taskvault/internal/testutil"
	"github.com/Skotchmaster/taskvault/pkg/apperr"
	"github.com/Skotchmaster/taskvault/pkg/tokens"
)

func newIssuer(t *testing.T, opts ...tokens.Option) *tokens.Issuer {
	t.Helper()
	iss, err := tokens.NewIssuer(tokens.Config{
		AccessSecret:  []byte("mw-access"),
		RefreshSecret: []byte("mw-refresh"),
	}, opts...)
	require.NoError(t, err)
	return iss
}

func serve(h echo.HandlerFunc, req *http.Request) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, h(c)
}

func okHandler(t *testing.T, seen *models.PublicUser) echo.HandlerFunc {
	return func(c echo.Context) error {
		u, ok := middleware.AccountFrom(c.Request().Context())
		require.True(t, ok)
		*seen = u
		return c.NoContent(http.StatusOK)
	}
}

func TestRequireAuth(t *testing.T) {
	r := testutil.NewRepo(t)
	iss := newIssuer(t)
	auth := middleware.NewAuthenticator(iss, r)

	user := testutil.CreateUser(t, r, "gate@example.com", "secret1", models.RoleUser)
	valid, err := iss.IssueAccess(user.ID, string(user.Role))
	require.NoError(t, err)
	pair, err := iss.IssuePair(user.ID, string(user.Role))
	require.NoError(t, err)
	orphan, err := iss.IssueAccess("7d3c0c5e-0000-4000-8000-000000000000", "USER")
	require.NoError(t, err)
	expired, err := newIssuer(t, tokens.WithClock(func() time.Time { return time.Now().Add(-time.Hour) })).
		IssueAccess(user.ID, "USER")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		cookie string
		ok     bool
	}{
		{name: "bearer header", header: "Bearer " + valid.Value, ok: true},
		{name: "lowercase scheme", header: "bearer " + valid.Value, ok: true},
		{name: "cookie fallback", cookie: valid.Value, ok: true},
		{name: "header wins over cookie", header: "Bearer " + valid.Value, cookie: "junk", ok: true},
		{name: "missing"},
		{name: "garbage", header: "Bearer not-a-jwt"},
		{name: "expired", header: "Bearer " + expired.Value},
		{name: "refresh token", header: "Bearer " + pair.Refresh.Value},
		{name: "deleted account", header: "Bearer " + orphan.Value},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: middleware.AccessCookie, Value: tt.cookie})
			}

			var seen models.PublicUser
			rec, err := serve(auth.RequireAuth(okHandler(t, &seen)), req)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, http.StatusOK, rec.Code)
				assert.Equal(t, user.ID, seen.ID)
				assert.Equal(t, "gate@example.com", seen.Email)
				return
			}
			require.Error(t, err)
			assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
			assert.Equal(t, "Authentication required", apperr.Message(err))
		})
	}
}

func TestRequireRole(t *testing.T) {
	next := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	gate := middleware.RequireRole(models.RoleAdmin)(next)

	t.Run("no account", func(t *testing.T) {
		_, err := serve(gate, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
	})

	t.Run("wrong role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(middleware.WithAccount(context.Background(), models.PublicUser{ID: "u", Role: models.RoleUser}))
		_, err := serve(gate, req)
		assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
		assert.Equal(t, "Access denied. Only ADMIN can access this resource", apperr.Message(err))
	})

	t.Run("admin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(middleware.WithAccount(context.Background(), models.PublicUser{ID: "a", Role: models.RoleAdmin}))
		rec, err := serve(gate, req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
