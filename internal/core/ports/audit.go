package ports

import (
	"context"

	"github.com/vetralabs/vetra/internal/core/domain"
)

type AuditLogRepository interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
	List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error)
}
