package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/vetralabs/vetra/internal/adapters/sqlite/gormsqlite"
	"github.com/vetralabs/vetra/internal/core/domain"
)

type auditModel struct {
	ID                uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	CredentialID      string    `gorm:"column:credential_id;not null;index"`
	OwnerIdentity     string    `gorm:"column:owner_identity;not null;index"`
	Endpoint          string    `gorm:"column:endpoint;not null"`
	EncryptedMetadata []byte    `gorm:"column:encrypted_metadata;not null"`
	At                time.Time `gorm:"column:at;not null;index"`
}

func (auditModel) TableName() string {
	return "audit_entries"
}

// AuditRepository appends and reads audit rows. There is deliberately
// no update or delete path.
type AuditRepository struct {
	db *gormsqlite.DB
}

func NewAuditRepository(db *gormsqlite.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, entry domain.AuditEntry) error {
	model := auditModel{
		CredentialID:      entry.CredentialID,
		OwnerIdentity:     entry.OwnerIdentity,
		Endpoint:          entry.Endpoint,
		EncryptedMetadata: entry.EncryptedMetadata,
		At:                entry.At,
	}
	if model.At.IsZero() {
		model.At = time.Now().UTC()
	}

	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Create(&model).Error
	})
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	var models []auditModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&auditModel{})
		if filter.CredentialID != "" {
			query = query.Where("credential_id = ?", filter.CredentialID)
		}
		if filter.OwnerIdentity != "" {
			query = query.Where("owner_identity = ?", filter.OwnerIdentity)
		}
		return query.Order("at DESC").Limit(filter.Limit).Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}

	entries := make([]domain.AuditEntry, 0, len(models))
	for _, model := range models {
		entries = append(entries, domain.AuditEntry{
			ID:                model.ID,
			CredentialID:      model.CredentialID,
			OwnerIdentity:     model.OwnerIdentity,
			Endpoint:          model.Endpoint,
			EncryptedMetadata: model.EncryptedMetadata,
			At:                model.At,
		})
	}
	return entries, nil
}
