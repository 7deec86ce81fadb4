package tokens

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type Option func(*Issuer)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// Issuer signs and verifies access and refresh tokens with independent HS256 secrets.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewIssuer(cfg Config, opts ...Option) (*Issuer, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("tokens: access and refresh secrets are required")
	}
	if bytes.Equal(cfg.AccessSecret, cfg.RefreshSecret) {
		return nil, errors.New("tokens: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}

	i := &Issuer{
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

func (i *Issuer) AccessTTL() time.Duration  { return i.accessTTL }
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

func (i *Issuer) IssueAccess(userID, role string) (Token, error) {
	now := i.now()
	exp := now.Add(i.accessTTL)
	claims := AccessClaims{
		Role: role,
		Type: typeAccess,
		RegisteredClaims: i.registered(userID, now, exp),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.accessSecret)
	if err != nil {
		return Token{}, fmt.Errorf("sign access token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

func (i *Issuer) IssueRefresh(userID, role string) (Token, error) {
	now := i.now()
	exp := now.Add(i.refreshTTL)
	claims := RefreshClaims{
		Role: role,
		Type: typeRefresh,
		RegisteredClaims: i.registered(userID, now, exp),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.refreshSecret)
	if err != nil {
		return Token{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

// IssuePair issues both tokens for the same id and role snapshot.
func (i *Issuer) IssuePair(userID, role string) (Pair, error) {
	access, err := i.IssueAccess(userID, role)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := i.IssueRefresh(userID, role)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

func (i *Issuer) VerifyAccess(raw string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := i.parse(raw, &claims, i.accessSecret); err != nil {
		return nil, err
	}
	if claims.Type != typeAccess || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return &claims, nil
}

func (i *Issuer) VerifyRefresh(raw string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := i.parse(raw, &claims, i.refreshSecret); err != nil {
		return nil, err
	}
	if claims.Type != typeRefresh || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return &claims, nil
}

func (i *Issuer) registered(userID string, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
}

func (i *Issuer) parse(raw string, claims jwt.Claims, secret []byte) error {
	if raw == "" {
		return ErrTokenInvalid
	}
	tkn, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}
	if !tkn.Valid {
		return ErrTokenInvalid
	}
	return nil
}
