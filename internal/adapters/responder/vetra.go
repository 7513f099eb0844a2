// Package responder implements the downstream response capabilities the
// gateway fronts. The gateway treats them as opaque; any state they
// keep (Syra's conversation memory) is owned here, not by the core.
package responder

import (
	"context"

	"github.com/vetralabs/vetra/internal/core/ports"
)

const vetraEchoLimit = 200

// Vetra is the original echo brain: it acknowledges the prompt with a
// truncated reflection of it.
type Vetra struct{}

func NewVetra() *Vetra {
	return &Vetra{}
}

func (v *Vetra) Generate(_ context.Context, _ string, text string) (ports.Answer, error) {
	truncated := text
	if len(truncated) > vetraEchoLimit {
		truncated = truncated[:vetraEchoLimit]
	}
	return ports.Answer{
		Answer: "Vetra AI processed: " + truncated,
		Reason: "Original Vetra logic",
	}, nil
}
