package middleware

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/taskvault/internal/models"
	"github.com/Skotchmaster/taskvault/internal/repo"
	"github.com/Skotchmaster/taskvault/pkg/apperr"
	"github.com/Skotchmaster/taskvault/pkg/logging"
	"github.com/Skotchmaster/taskvault/pkg/tokens"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"

	msgAuthRequired = "Authentication required"
	msgAdminOnly    = "Access denied. Only ADMIN can access this resource"
)

type ctxKey struct{}

func WithAccount(ctx context.Context, u models.PublicUser) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// AccountFrom returns the account attached by RequireAuth.
func AccountFrom(ctx context.Context) (models.PublicUser, bool) {
	u, ok := ctx.Value(ctxKey{}).(models.PublicUser)
	return u, ok
}

type AccessVerifier interface {
	VerifyAccess(raw string) (*tokens.AccessClaims, error)
}

type AccountLoader interface {
	FindPublicUserByID(ctx context.Context, id string) (*models.PublicUser, error)
}

type Authenticator struct {
	tokens   AccessVerifier
	accounts AccountLoader
}

func NewAuthenticator(v AccessVerifier, accounts AccountLoader) *Authenticator {
	return &Authenticator{tokens: v, accounts: accounts}
}

// RequireAuth accepts a bearer header or, failing that, the access cookie. It only reads storage.
func (a *Authenticator) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		l := logging.FromContext(ctx).With("middleware", "require_auth")

		raw, source := bearerToken(c)
		if raw == "" {
			l.Warn("auth_failed", "status", 401, "reason", "no token")
			return apperr.New(apperr.Unauthenticated, msgAuthRequired)
		}

		claims, err := a.tokens.VerifyAccess(raw)
		if err != nil {
			l.Warn("auth_failed", "status", 401, "reason", err.Error(), "source", source)
			return apperr.Wrap(apperr.Unauthenticated, err, msgAuthRequired)
		}

		account, err := a.accounts.FindPublicUserByID(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				l.Warn("auth_failed", "status", 401, "reason", "account not found", "user_id", claims.Subject)
				return apperr.New(apperr.Unauthenticated, msgAuthRequired)
			}
			return apperr.Internalf(err, "load account")
		}

		ctx = logging.IntoContext(WithAccount(ctx, *account), l.With("user_id", account.ID))
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func bearerToken(c echo.Context) (string, string) {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token, "header"
			}
		}
	}
	if ck, err := c.Cookie(AccessCookie); err == nil && ck.Value != "" {
		return ck.Value, "cookie"
	}
	return "", ""
}

// RequireRole must run after RequireAuth.
func RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			account, ok := AccountFrom(ctx)
			if !ok {
				return apperr.New(apperr.Unauthenticated, msgAuthRequired)
			}
			if !slices.Contains(roles, account.Role) {
				logging.FromContext(ctx).Warn("access_denied", "status", 403, "role", account.Role)
				return apperr.New(apperr.Forbidden, msgAdminOnly)
			}
			return next(c)
		}
	}
}
