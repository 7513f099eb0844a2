package ports

import (
	"context"

	"github.com/vetralabs/vetra/internal/core/domain"
)

type AlertPublisher interface {
	Publish(ctx context.Context, event domain.AlertEvent) error
}

type AlertOutboxRepository interface {
	Enqueue(ctx context.Context, payloadJSON []byte) error
	FetchPending(ctx context.Context, limit int) ([]domain.OutboxAlert, error)
	MarkDispatched(ctx context.Context, id uint64) error
	MarkFailed(ctx context.Context, id uint64, attempts int, nextAttemptAt string, lastError string) error
	MarkDead(ctx context.Context, id uint64, attempts int, lastError string) error
}
