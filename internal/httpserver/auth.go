package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/taskvault/internal/middleware"
	"github.com/Skotchmaster/taskvault/internal/service"
	"github.com/Skotchmaster/taskvault/internal/transport"
	"github.com/Skotchmaster/taskvault/pkg/apperr"
	"github.com/Skotchmaster/taskvault/pkg/logging"
)

type AuthHTTP struct {
	Svc     *service.AuthService
	Cookies CookieConfig
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req transport.RegisterRequest
	if err := bind(c, &req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return err
	}

	res, err := h.Svc.Register(ctx, service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}

	h.Cookies.SetPair(c, res.Tokens)
	return respond(c, http.StatusCreated, authResponse(res), "User registered successfully")
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req transport.LoginRequest
	if err := bind(c, &req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return err
	}

	res, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}

	h.Cookies.SetPair(c, res.Tokens)
	return respond(c, http.StatusOK, authResponse(res), "User logged in successfully")
}

// Refresh takes the token from the body first, then from the refresh cookie.
func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	var req transport.RefreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	raw := req.RefreshToken
	if raw == "" {
		if ck, err := c.Cookie(middleware.RefreshCookie); err == nil {
			raw = ck.Value
		}
	}

	pair, err := h.Svc.Refresh(ctx, raw)
	if err != nil {
		return err
	}

	h.Cookies.SetPair(c, pair)
	return respond(c, http.StatusOK, transport.TokensResponse{
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
	}, "Token refreshed successfully")
}

func (h *AuthHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()
	account, ok := middleware.AccountFrom(ctx)
	if !ok {
		return apperr.New(apperr.Unauthenticated, "Authentication required")
	}

	user, err := h.Svc.GetCurrentUser(ctx, account.ID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, user, "User profile fetched successfully")
}

func (h *AuthHTTP) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	account, ok := middleware.AccountFrom(ctx)
	if !ok {
		return apperr.New(apperr.Unauthenticated, "Authentication required")
	}

	if err := h.Svc.Logout(ctx, account.ID); err != nil {
		return err
	}

	h.Cookies.Clear(c)
	return respond(c, http.StatusOK, nil, "User logged out successfully")
}

func authResponse(res *service.AuthResult) transport.AuthResponse {
	return transport.AuthResponse{
		User:         res.User,
		AccessToken:  res.Tokens.Access.Value,
		RefreshToken: res.Tokens.Refresh.Value,
	}
}
