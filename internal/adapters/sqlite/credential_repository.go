package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vetralabs/vetra/internal/adapters/sqlite/gormsqlite"
	"github.com/vetralabs/vetra/internal/core/domain"
	"gorm.io/gorm"
)

type credentialModel struct {
	ID                 string    `gorm:"column:id;primaryKey"`
	OwnerIdentity      string    `gorm:"column:owner_identity;not null;index"`
	SecretDigest       string    `gorm:"column:secret_digest;not null"`
	Fingerprint        string    `gorm:"column:fingerprint;not null;index"`
	UsesConsumed       int       `gorm:"column:uses_consumed;not null"`
	UsesAllowed        int       `gorm:"column:uses_allowed;not null"`
	Revoked            bool      `gorm:"column:revoked;not null"`
	ExpiresAt          time.Time `gorm:"column:expires_at;not null"`
	CreatedAt          time.Time `gorm:"column:created_at;not null"`
	BoundNetworkOrigin string    `gorm:"column:bound_network_origin"`
}

func (credentialModel) TableName() string {
	return "credentials"
}

type CredentialRepository struct {
	db *gormsqlite.DB
}

func NewCredentialRepository(db *gormsqlite.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) Insert(ctx context.Context, cred domain.Credential) error {
	model := toCredentialModel(cred)
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Create(&model).Error
	})
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (r *CredentialRepository) FindActiveByFingerprint(ctx context.Context, fingerprint string) ([]domain.Credential, error) {
	var models []credentialModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("fingerprint = ? AND revoked = ?", fingerprint, false).Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("find credentials by fingerprint: %w", err)
	}

	creds := make([]domain.Credential, 0, len(models))
	for _, model := range models {
		creds = append(creds, toCredentialDomain(model))
	}
	return creds, nil
}

func (r *CredentialRepository) FindByID(ctx context.Context, id string) (domain.Credential, error) {
	var model credentialModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("id = ?", id).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Credential{}, domain.ErrNotFound
		}
		return domain.Credential{}, fmt.Errorf("find credential: %w", err)
	}
	return toCredentialDomain(model), nil
}

// ConsumeUse takes one unit of quota with a single conditional update.
// The guard and the increment execute as one statement, so two
// concurrent calls can never both pass with one unit remaining.
func (r *CredentialRepository) ConsumeUse(ctx context.Context, id string) (bool, error) {
	var affected int64
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		res := tx.Model(&credentialModel{}).
			Where("id = ? AND revoked = ? AND uses_consumed < uses_allowed", id, false).
			UpdateColumn("uses_consumed", gorm.Expr("uses_consumed + 1"))
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return false, fmt.Errorf("consume credential use: %w", err)
	}
	return affected > 0, nil
}

func (r *CredentialRepository) Revoke(ctx context.Context, id string) error {
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&credentialModel{}).
			Where("id = ?", id).
			UpdateColumn("revoked", true).Error
	})
	if err != nil {
		return fmt.Errorf("revoke credential: %w", err)
	}
	return nil
}

func toCredentialModel(cred domain.Credential) credentialModel {
	return credentialModel{
		ID:                 cred.ID,
		OwnerIdentity:      cred.OwnerIdentity,
		SecretDigest:       cred.SecretDigest,
		Fingerprint:        cred.Fingerprint,
		UsesConsumed:       cred.UsesConsumed,
		UsesAllowed:        cred.UsesAllowed,
		Revoked:            cred.Revoked,
		ExpiresAt:          cred.ExpiresAt,
		CreatedAt:          cred.CreatedAt,
		BoundNetworkOrigin: cred.BoundNetworkOrigin,
	}
}

func toCredentialDomain(model credentialModel) domain.Credential {
	return domain.Credential{
		ID:                 model.ID,
		OwnerIdentity:      model.OwnerIdentity,
		SecretDigest:       model.SecretDigest,
		Fingerprint:        model.Fingerprint,
		UsesConsumed:       model.UsesConsumed,
		UsesAllowed:        model.UsesAllowed,
		Revoked:            model.Revoked,
		ExpiresAt:          model.ExpiresAt,
		CreatedAt:          model.CreatedAt,
		BoundNetworkOrigin: model.BoundNetworkOrigin,
	}
}
