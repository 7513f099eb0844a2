package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/vetralabs/vetra/internal/adapters/sqlite/gormsqlite"
	"github.com/vetralabs/vetra/internal/core/domain"
	"gorm.io/gorm/clause"
)

type userModel struct {
	Email     string    `gorm:"column:email;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (userModel) TableName() string {
	return "users"
}

type UserRepository struct {
	db *gormsqlite.DB
}

func NewUserRepository(db *gormsqlite.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert registers a user; re-registering an existing email is a no-op.
func (r *UserRepository) Upsert(ctx context.Context, user domain.User) error {
	model := userModel{
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt,
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}

	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoNothing: true,
		}).Create(&model).Error
	})
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}
