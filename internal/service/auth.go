package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Skotchmaster/taskvault/internal/events"
	"github.com/Skotchmaster/taskvault/internal/models"
	"github.com/Skotchmaster/taskvault/internal/repo"
	"github.com/Skotchmaster/taskvault/pkg/apperr"
	"github.com/Skotchmaster/taskvault/pkg/hash"
	"github.com/Skotchmaster/taskvault/pkg/logging"
	"github.com/Skotchmaster/taskvault/pkg/tokens"
)

const (
	msgEmailTaken       = "User with this email already exists"
	msgBadCredentials   = "Invalid email or password"
	msgRefreshRequired  = "Refresh token is required"
	msgRefreshInvalid   = "Invalid refresh token"
	msgUserNotFound     = "User not found"
	msgPasswordTooLong  = "Password must be at most 72 bytes"
	msgInvalidRole      = "Role must be USER or ADMIN"
	dummyPasswordSource = "taskvault-timing-equalizer"
)

type UserStore interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	CreateUser(ctx context.Context, u *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindPublicUserByID(ctx context.Context, id string) (*models.PublicUser, error)
	SetRefreshToken(ctx context.Context, userID string, digest *string) error
	RotateRefreshToken(ctx context.Context, userID, oldDigest, newDigest string) (bool, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
}

type TokenIssuer interface {
	IssuePair(userID, role string) (tokens.Pair, error)
	VerifyRefresh(raw string) (*tokens.RefreshClaims, error)
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
}

type AuthResult struct {
	User   models.PublicUser
	Tokens tokens.Pair
}

type AuthService struct {
	store    UserStore
	hasher   PasswordHasher
	tokens   TokenIssuer
	events   events.Publisher
	observer Observer

	dummyOnce sync.Once
	dummyHash string
}

type AuthOption func(*AuthService)

func WithEvents(p events.Publisher) AuthOption {
	return func(s *AuthService) { s.events = p }
}

func WithObserver(o Observer) AuthOption {
	return func(s *AuthService) { s.observer = o }
}

func NewAuthService(store UserStore, hasher PasswordHasher, issuer TokenIssuer, opts ...AuthOption) *AuthService {
	s := &AuthService{
		store:    store,
		hasher:   hasher,
		tokens:   issuer,
		events:   events.Nop{},
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeEmail is applied before every lookup and write.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (res *AuthResult, err error) {
	defer func() { s.observer.Observe("register", err) }()
	l := logging.FromContext(ctx).With("svc", "auth.register")

	email := NormalizeEmail(in.Email)
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return nil, apperr.New(apperr.BadRequest, msgInvalidRole)
	}

	exists, err := s.store.EmailExists(ctx, email)
	if err != nil {
		return nil, apperr.Internalf(err, "check email")
	}
	if exists {
		l.Warn("register_failed", "status", 409, "reason", "email taken")
		return nil, apperr.New(apperr.Conflict, msgEmailTaken)
	}

	pwHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, hash.ErrPasswordTooLong) {
			return nil, apperr.Wrap(apperr.BadRequest, err, msgPasswordTooLong)
		}
		return nil, apperr.Internalf(err, "hash password")
	}

	id := uuid.NewString()
	pair, err := s.tokens.IssuePair(id, string(role))
	if err != nil {
		return nil, apperr.Internalf(err, "issue tokens")
	}
	digest := tokens.Digest(pair.Refresh.Value)

	user := &models.User{
		ID:           id,
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: pwHash,
		Role:         role,
		RefreshToken: &digest,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			l.Warn("register_failed", "status", 409, "reason", "email taken on insert")
			return nil, apperr.Wrap(apperr.Conflict, err, msgEmailTaken)
		}
		return nil, apperr.Internalf(err, "create user")
	}

	l.Info("register_successful", "user_id", user.ID, "role", user.Role)
	publish(ctx, s.events, events.TopicUsers, events.Event{
		Type:      events.UserRegistered,
		SubjectID: user.ID,
		Data:      map[string]any{"email": user.Email, "role": user.Role},
	})
	return &AuthResult{User: user.Public(), Tokens: pair}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (res *AuthResult, err error) {
	defer func() { s.observer.Observe("login", err) }()
	l := logging.FromContext(ctx).With("svc", "auth.login")

	user, err := s.store.FindUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.hasher.Verify(password, s.dummy())
			l.Warn("login_failed", "status", 401, "reason", "unknown email")
			return nil, apperr.New(apperr.Unauthenticated, msgBadCredentials)
		}
		return nil, apperr.Internalf(err, "find user by email")
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		l.Warn("login_failed", "status", 401, "reason", "wrong password", "user_id", user.ID)
		return nil, apperr.New(apperr.Unauthenticated, msgBadCredentials)
	}

	pair, err := s.tokens.IssuePair(user.ID, string(user.Role))
	if err != nil {
		return nil, apperr.Internalf(err, "issue tokens")
	}
	digest := tokens.Digest(pair.Refresh.Value)
	if err := s.store.SetRefreshToken(ctx, user.ID, &digest); err != nil {
		return nil, apperr.Internalf(err, "store refresh token")
	}

	l.Info("login_successful", "user_id", user.ID)
	publish(ctx, s.events, events.TopicUsers, events.Event{Type: events.UserLoggedIn, SubjectID: user.ID})
	return &AuthResult{User: user.Public(), Tokens: pair}, nil
}

// Refresh rotates the stored refresh token. Only one of several concurrent calls presenting
// the same token can succeed.
func (s *AuthService) Refresh(ctx context.Context, raw string) (pair tokens.Pair, err error) {
	defer func() { s.observer.Observe("refresh", err) }()
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	if raw == "" {
		return tokens.Pair{}, apperr.New(apperr.Unauthenticated, msgRefreshRequired)
	}

	claims, err := s.tokens.VerifyRefresh(raw)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", err.Error())
		return tokens.Pair{}, apperr.Wrap(apperr.Unauthenticated, err, msgRefreshInvalid)
	}

	user, err := s.store.FindUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("refresh_failed", "status", 401, "reason", "account gone", "user_id", claims.Subject)
			return tokens.Pair{}, apperr.New(apperr.Unauthenticated, msgRefreshInvalid)
		}
		return tokens.Pair{}, apperr.Internalf(err, "find user by id")
	}

	oldDigest := tokens.Digest(raw)
	if user.RefreshToken == nil || *user.RefreshToken != oldDigest {
		l.Warn("refresh_failed", "status", 401, "reason", "token not current", "user_id", user.ID)
		return tokens.Pair{}, apperr.New(apperr.Unauthenticated, msgRefreshInvalid)
	}

	pair, err = s.tokens.IssuePair(user.ID, string(user.Role))
	if err != nil {
		return tokens.Pair{}, apperr.Internalf(err, "issue tokens")
	}

	swapped, err := s.store.RotateRefreshToken(ctx, user.ID, oldDigest, tokens.Digest(pair.Refresh.Value))
	if err != nil {
		return tokens.Pair{}, apperr.Internalf(err, "rotate refresh token")
	}
	if !swapped {
		l.Warn("refresh_failed", "status", 401, "reason", "lost rotation race", "user_id", user.ID)
		return tokens.Pair{}, apperr.New(apperr.Unauthenticated, msgRefreshInvalid)
	}

	l.Info("refresh_successful", "user_id", user.ID)
	return pair, nil
}

func (s *AuthService) GetCurrentUser(ctx context.Context, id string) (*models.PublicUser, error) {
	u, err := s.store.FindPublicUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, msgUserNotFound)
		}
		return nil, apperr.Internalf(err, "find public user")
	}
	return u, nil
}

// Logout clears the stored refresh token. Calling it twice is not an error.
func (s *AuthService) Logout(ctx context.Context, id string) (err error) {
	defer func() { s.observer.Observe("logout", err) }()

	if err := s.store.SetRefreshToken(ctx, id, nil); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return apperr.Internalf(err, "clear refresh token")
	}

	logging.FromContext(ctx).Info("logout_successful", "svc", "auth.logout", "user_id", id)
	publish(ctx, s.events, events.TopicUsers, events.Event{Type: events.UserLoggedOut, SubjectID: id})
	return nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash(dummyPasswordSource)
	})
	return s.dummyHash
}
