package port

import (
	"context"

	"vidpress/internal/domain"
)

type UserStore interface {
	Upsert(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, id int64) (*domain.User, error)
	SetAuthorized(ctx context.Context, id int64, authorized bool) error
}
