package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"vidpress/internal/domain"
	"vidpress/internal/port"
)

type UserStore struct {
	db *sqlx.DB
}

func NewUserStore(store *Store) *UserStore {
	return &UserStore{db: store.db}
}

func (s *UserStore) Upsert(ctx context.Context, u *domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, token_hash, is_authorized, is_admin, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			token_hash = excluded.token_hash,
			is_authorized = excluded.is_authorized,
			is_admin = excluded.is_admin`,
		u.ID, u.Username, u.TokenHash, u.IsAuthorized, u.IsAdmin, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *UserStore) Get(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := s.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) SetAuthorized(ctx context.Context, id int64, authorized bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET is_authorized = ? WHERE id = ?`, authorized, id)
	if err != nil {
		return fmt.Errorf("set authorized: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ port.UserStore = (*UserStore)(nil)
