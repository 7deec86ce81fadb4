package tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

type AccessClaims struct {
	Role string `json:"role"`
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	Role string `json:"role"`
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// Token is a signed credential together with its expiry, used as the cookie lifetime.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

type Pair struct {
	Access  Token
	Refresh Token
}
