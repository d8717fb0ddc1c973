package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"vidpress/internal/domain"
	"vidpress/internal/port"
)

// AuthService is the yes/no gate in front of admission. Users are known by
// the id the external transport assigns them; the API credential is a bearer
// token stored only as a bcrypt hash.
type AuthService struct {
	users       port.UserStore
	requireAuth bool
	log         zerolog.Logger
}

func NewAuthService(users port.UserStore, requireAuth bool, log zerolog.Logger) *AuthService {
	return &AuthService{users: users, requireAuth: requireAuth, log: log}
}

// Bootstrap seeds pre-authorized and admin users from configuration. Existing
// users keep their token; only the flags are raised.
func (s *AuthService) Bootstrap(ctx context.Context, authorized, admins []int64) error {
	raise := func(id int64, admin bool) error {
		u, err := s.users.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			u = &domain.User{ID: id}
		} else if err != nil {
			return err
		}
		u.IsAuthorized = true
		u.IsAdmin = u.IsAdmin || admin
		return s.users.Upsert(ctx, u)
	}
	for _, id := range authorized {
		if err := raise(id, false); err != nil {
			return fmt.Errorf("bootstrap user %d: %w", id, err)
		}
	}
	for _, id := range admins {
		if err := raise(id, true); err != nil {
			return fmt.Errorf("bootstrap admin %d: %w", id, err)
		}
	}
	return nil
}

// Register creates or refreshes a user and returns a new plaintext token.
// The token is shown once and never stored.
func (s *AuthService) Register(ctx context.Context, id int64, username string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}

	existing, err := s.users.Get(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}

	u := &domain.User{ID: id, Username: username, TokenHash: string(hash)}
	if existing != nil {
		u.IsAuthorized = existing.IsAuthorized
		u.IsAdmin = existing.IsAdmin
		u.CreatedAt = existing.CreatedAt
	}
	if err := s.users.Upsert(ctx, u); err != nil {
		return "", err
	}
	s.log.Info().Int64("user", id).Msg("user registered")
	return token, nil
}

// Verify checks the bearer token and the authorization flag. With
// authentication disabled only the token check applies.
func (s *AuthService) Verify(ctx context.Context, id int64, token string) (*domain.User, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotAuthorized
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.TokenHash), []byte(token)) != nil {
		return nil, domain.ErrNotAuthorized
	}
	if s.requireAuth && !u.IsAuthorized {
		return nil, domain.ErrNotAuthorized
	}
	return u, nil
}

// SetAuthorized is the admin override: grants or revokes a user's access.
func (s *AuthService) SetAuthorized(ctx context.Context, admin *domain.User, targetID int64, authorized bool) error {
	if admin == nil || !admin.IsAdmin {
		return domain.ErrNotAuthorized
	}
	if err := s.users.SetAuthorized(ctx, targetID, authorized); err != nil {
		return err
	}
	s.log.Info().
		Int64("admin", admin.ID).
		Int64("user", targetID).
		Bool("authorized", authorized).
		Msg("authorization changed")
	return nil
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
