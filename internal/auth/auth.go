// Package auth implements the session layer: bcrypt credentials, HS256
// JWTs, and request middleware. Reads stay public; auth only gates
// mutations that carry ownership.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/foodmatch/matchd/internal/config"
	"github.com/foodmatch/matchd/internal/model"
	"github.com/foodmatch/matchd/internal/store"
)

const minPasswordLen = 8

// Claims is the JWT payload.
type Claims struct {
	UserID  int64  `json:"uid"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Service issues and verifies sessions.
type Service struct {
	store store.Store
	cfg   config.AuthConfig
}

// New creates a Service.
func New(st store.Store, cfg config.AuthConfig) *Service {
	return &Service{store: st, cfg: cfg}
}

// Session is a logged-in user plus their token.
type Session struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// Register creates a user and returns a fresh session. Duplicate emails
// surface as ErrConflict.
func (s *Service) Register(ctx context.Context, email, password, name string, orgID int64) (*Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, eris.Wrap(model.ErrInvalidInput, "auth: valid email required")
	}
	if len(password) < minPasswordLen {
		return nil, eris.Wrapf(model.ErrInvalidInput, "auth: password must be at least %d characters", minPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, eris.Wrap(err, "auth: hash password")
	}

	user, err := s.store.CreateUser(ctx, &model.User{
		Email:          email,
		PasswordHash:   string(hash),
		Name:           strings.TrimSpace(name),
		OrganizationID: orgID,
	})
	if err != nil {
		return nil, eris.Wrap(err, "auth: create user")
	}

	zap.L().Info("auth: user registered",
		zap.Int64("user_id", user.ID),
		zap.String("email", user.Email),
	)
	return s.session(user)
}

// Login verifies credentials. Unknown emails and bad passwords are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if eris.Is(err, model.ErrNotFound) {
			return nil, eris.Wrap(model.ErrUnauthorized, "auth: invalid credentials")
		}
		return nil, eris.Wrap(err, "auth: look up user")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, eris.Wrap(model.ErrUnauthorized, "auth: invalid credentials")
	}
	return s.session(user)
}

// MakeAdmin promotes a user when the shared admin secret matches.
func (s *Service) MakeAdmin(ctx context.Context, userID int64, secret string) error {
	if s.cfg.AdminSecret == "" || secret != s.cfg.AdminSecret {
		return eris.Wrap(model.ErrUnauthorized, "auth: admin secret mismatch")
	}
	if err := s.store.SetUserAdmin(ctx, userID, true); err != nil {
		return eris.Wrap(err, "auth: promote user")
	}
	zap.L().Info("auth: user promoted to admin", zap.Int64("user_id", userID))
	return nil
}

// Verify parses a token and loads the current user record, so revoked or
// changed admin flags take effect immediately.
func (s *Service) Verify(ctx context.Context, token string) (*model.User, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, eris.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, eris.Wrap(model.ErrUnauthorized, "auth: invalid token")
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		if eris.Is(err, model.ErrNotFound) {
			return nil, eris.Wrap(model.ErrUnauthorized, "auth: user no longer exists")
		}
		return nil, eris.Wrap(err, "auth: load user")
	}
	return user, nil
}

func (s *Service) session(user *model.User) (*Session, error) {
	ttl := time.Duration(s.cfg.TokenTTLHrs) * time.Hour
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	now := time.Now()
	claims := Claims{
		UserID:  user.ID,
		Email:   user.Email,
		IsAdmin: user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, eris.Wrap(err, "auth: sign token")
	}
	return &Session{User: user, Token: token}, nil
}
