package ports

import (
	"context"

	"github.com/vetralabs/vetra/internal/core/domain"
)

type UserRepository interface {
	Upsert(ctx context.Context, user domain.User) error
}
