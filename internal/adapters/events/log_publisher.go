package events

import (
	"context"
	"log"

	"github.com/vetralabs/vetra/internal/core/domain"
)

// LogPublisher is the default alert sink when no webhook is configured.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(_ context.Context, event domain.AlertEvent) error {
	log.Printf("security alert kind=%s alert_id=%s credential=%s owner=%s detail=%q",
		event.Kind, event.AlertID, event.CredentialID, event.OwnerIdentity, event.Detail)
	return nil
}
