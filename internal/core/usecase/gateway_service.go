package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/vetralabs/vetra/internal/core/domain"
	"github.com/vetralabs/vetra/internal/core/ports"
)

// NamedResponder pairs a downstream capability with the name its answer
// is published under in the response body.
type NamedResponder struct {
	Name      string
	Responder ports.Responder
}

// GatewayService runs the authorized-request pipeline: credential
// verification (which consumes quota), content policy screening, the
// downstream capability, and the strict audit write.
type GatewayService struct {
	credentials *CredentialService
	filter      *PolicyFilter
	audit       *AuditService
	alerts      *AlertService
	responders  []NamedResponder
	now         func() time.Time
}

func NewGatewayService(
	credentials *CredentialService,
	filter *PolicyFilter,
	audit *AuditService,
	alerts *AlertService,
	responders []NamedResponder,
) *GatewayService {
	return &GatewayService{
		credentials: credentials,
		filter:      filter,
		audit:       audit,
		alerts:      alerts,
		responders:  responders,
		now:         time.Now,
	}
}

type AskResult struct {
	Answers       map[string]ports.Answer
	OwnerIdentity string
	Time          time.Time
}

// Ask authorizes and processes one request. Rate limiting happens in
// the transport layer before this runs. The quota increment and the
// audit append run on a context detached from the caller's, so a client
// disconnect cannot leave the increment applied but the write aborted
// mid-flight; a crash between the two still can, which trades perfect
// usage/audit symmetry for availability.
func (s *GatewayService) Ask(ctx context.Context, token, origin, prompt string) (AskResult, error) {
	writeCtx := context.WithoutCancel(ctx)

	cred, err := s.credentials.Verify(writeCtx, token)
	if err != nil {
		return AskResult{}, err
	}

	if err := s.filter.Check(prompt); err != nil {
		var violation *PolicyViolationError
		if errors.As(err, &violation) {
			s.alerts.Raise(writeCtx, domain.AlertPolicyViolation, cred.OwnerIdentity, cred.ID, violation.Reason)
		}
		return AskResult{}, err
	}

	answers := make(map[string]ports.Answer, len(s.responders))
	for _, nr := range s.responders {
		answer, err := nr.Responder.Generate(ctx, cred.OwnerIdentity, prompt)
		if err != nil {
			return AskResult{}, err
		}
		answers[nr.Name] = answer
	}

	err = s.audit.Record(writeCtx, cred.ID, cred.OwnerIdentity, "/v1/ask", domain.AuditMetadata{
		PromptLength:  len(prompt),
		NetworkOrigin: origin,
	})
	if err != nil {
		return AskResult{}, err
	}

	return AskResult{
		Answers:       answers,
		OwnerIdentity: cred.OwnerIdentity,
		Time:          s.now().UTC(),
	}, nil
}

// RevokeCredential performs the administrative revocation and raises
// the corresponding alert. Idempotent.
func (s *GatewayService) RevokeCredential(ctx context.Context, credentialID, requestedBy string) error {
	if err := s.credentials.Revoke(ctx, credentialID); err != nil {
		return err
	}
	s.alerts.Raise(ctx, domain.AlertCredentialRevoked, "", credentialID, "revoked by "+requestedBy)
	return nil
}
