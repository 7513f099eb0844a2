package domain

import "time"

// Alert kinds enqueued for webhook delivery.
const (
	AlertPolicyViolation   = "policy.violation"
	AlertCredentialRevoked = "credential.revoked"
)

// AlertEvent is the envelope published to the security-alert webhook.
type AlertEvent struct {
	AlertID       string    `json:"alert_id"`
	Kind          string    `json:"kind"`
	OwnerIdentity string    `json:"owner_identity,omitempty"`
	CredentialID  string    `json:"credential_id,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	At            time.Time `json:"at"`
}

// OutboxAlert is a pending alert row. Attempts and NextAttemptAt drive
// the dispatcher's retry/dead-letter policy.
type OutboxAlert struct {
	ID            uint64
	PayloadJSON   []byte
	Attempts      int
	NextAttemptAt time.Time
	CreatedAt     time.Time
}
