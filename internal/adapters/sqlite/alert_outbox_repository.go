package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/vetralabs/vetra/internal/adapters/sqlite/gormsqlite"
	"github.com/vetralabs/vetra/internal/core/domain"
)

type alertOutboxModel struct {
	ID            uint64     `gorm:"column:id;primaryKey;autoIncrement"`
	PayloadJSON   []byte     `gorm:"column:payload_json;not null"`
	Status        string     `gorm:"column:status;not null"`
	Attempts      int        `gorm:"column:attempts;not null"`
	NextAttemptAt time.Time  `gorm:"column:next_attempt_at;not null"`
	LastError     string     `gorm:"column:last_error"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null"`
	DispatchedAt  *time.Time `gorm:"column:dispatched_at"`
}

func (alertOutboxModel) TableName() string {
	return "alert_outbox"
}

type AlertOutboxRepository struct {
	db *gormsqlite.DB
}

func NewAlertOutboxRepository(db *gormsqlite.DB) *AlertOutboxRepository {
	return &AlertOutboxRepository{db: db}
}

func (r *AlertOutboxRepository) Enqueue(ctx context.Context, payloadJSON []byte) error {
	now := time.Now().UTC()
	model := alertOutboxModel{
		PayloadJSON:   payloadJSON,
		Status:        "pending",
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Create(&model).Error
	})
	if err != nil {
		return fmt.Errorf("enqueue alert: %w", err)
	}
	return nil
}

func (r *AlertOutboxRepository) FetchPending(ctx context.Context, limit int) ([]domain.OutboxAlert, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []alertOutboxModel
	now := time.Now().UTC()
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("status = ? AND next_attempt_at <= ?", "pending", now).
			Order("id ASC").
			Limit(limit).
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("fetch pending alerts: %w", err)
	}

	result := make([]domain.OutboxAlert, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.OutboxAlert{
			ID:            row.ID,
			PayloadJSON:   row.PayloadJSON,
			Attempts:      row.Attempts,
			NextAttemptAt: row.NextAttemptAt,
			CreatedAt:     row.CreatedAt,
		})
	}
	return result, nil
}

func (r *AlertOutboxRepository) MarkDispatched(ctx context.Context, id uint64) error {
	now := time.Now().UTC()
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&alertOutboxModel{}).
			Where("id = ?", id).
			Updates(map[string]any{"status": "dispatched", "dispatched_at": &now, "last_error": ""}).Error
	})
	if err != nil {
		return fmt.Errorf("mark alert dispatched: %w", err)
	}
	return nil
}

func (r *AlertOutboxRepository) MarkFailed(ctx context.Context, id uint64, attempts int, nextAttemptAt string, errMsg string) error {
	parsed, err := time.Parse(time.RFC3339Nano, nextAttemptAt)
	if err != nil {
		return fmt.Errorf("parse next attempt: %w", err)
	}
	err = r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&alertOutboxModel{}).
			Where("id = ?", id).
			Updates(map[string]any{"attempts": attempts, "next_attempt_at": parsed, "last_error": errMsg}).Error
	})
	if err != nil {
		return fmt.Errorf("mark alert failed: %w", err)
	}
	return nil
}

func (r *AlertOutboxRepository) MarkDead(ctx context.Context, id uint64, attempts int, errMsg string) error {
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&alertOutboxModel{}).
			Where("id = ?", id).
			Updates(map[string]any{"status": "dead", "attempts": attempts, "last_error": errMsg}).Error
	})
	if err != nil {
		return fmt.Errorf("mark alert dead: %w", err)
	}
	return nil
}
