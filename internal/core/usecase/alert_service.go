package usecase

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/vetralabs/vetra/internal/core/domain"
	"github.com/vetralabs/vetra/internal/core/ports"
)

// AlertService enqueues security alerts for asynchronous webhook
// delivery. Enqueue failures are logged, never propagated: alerting is
// advisory and must not fail the request that raised it.
type AlertService struct {
	outbox ports.AlertOutboxRepository
	now    func() time.Time
}

func NewAlertService(outbox ports.AlertOutboxRepository) *AlertService {
	return &AlertService{outbox: outbox, now: time.Now}
}

func (s *AlertService) Raise(ctx context.Context, kind, ownerIdentity, credentialID, detail string) {
	event := domain.AlertEvent{
		AlertID:       uuid.New().String(),
		Kind:          kind,
		OwnerIdentity: ownerIdentity,
		CredentialID:  credentialID,
		Detail:        detail,
		At:            s.now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("marshal alert event: %v", err)
		return
	}
	if err := s.outbox.Enqueue(ctx, payload); err != nil {
		log.Printf("enqueue alert event: %v", err)
	}
}
