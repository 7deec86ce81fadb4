package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/taskvault/internal/middleware"
	"github.com/Skotchmaster/taskvault/pkg/tokens"
)

type CookieConfig struct {
	Secure bool
}

func (cc CookieConfig) create(name, value string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   cc.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (cc CookieConfig) delete(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cc.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (cc CookieConfig) SetPair(c echo.Context, p tokens.Pair) {
	c.SetCookie(cc.create(middleware.AccessCookie, p.Access.Value, p.Access.ExpiresAt))
	c.SetCookie(cc.create(middleware.RefreshCookie, p.Refresh.Value, p.Refresh.ExpiresAt))
}

func (cc CookieConfig) Clear(c echo.Context) {
	c.SetCookie(cc.delete(middleware.AccessCookie))
	c.SetCookie(cc.delete(middleware.RefreshCookie))
}
