package ports

import "context"

type Answer struct {
	Answer string `json:"answer"`
	Reason string `json:"reason"`
}

// Responder is the downstream response capability. It is opaque to the
// gateway: given an owner identity and request text it produces a text
// result, with no side effects the gateway depends on.
type Responder interface {
	Generate(ctx context.Context, ownerIdentity, text string) (Answer, error)
}
