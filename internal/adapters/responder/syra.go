package responder

import (
	"context"
	"fmt"
	"sync"

	"github.com/vetralabs/vetra/internal/core/ports"
)

const syraShortMemoryLimit = 10

// Syra is the learning brain: it answers with the reversed prompt and
// keeps per-identity conversation memory. Short memory is a bounded
// ordered window of the latest prompts; long memory accumulates.
type Syra struct {
	mu          sync.Mutex
	shortMemory map[string][]string
	longMemory  map[string][]string
}

func NewSyra() *Syra {
	return &Syra{
		shortMemory: make(map[string][]string),
		longMemory:  make(map[string][]string),
	}
}

func (s *Syra) Generate(_ context.Context, ownerIdentity, text string) (ports.Answer, error) {
	s.mu.Lock()
	short := append(s.shortMemory[ownerIdentity], text)
	if len(short) > syraShortMemoryLimit {
		short = short[len(short)-syraShortMemoryLimit:]
	}
	s.shortMemory[ownerIdentity] = short
	s.longMemory[ownerIdentity] = append(s.longMemory[ownerIdentity], text)
	s.mu.Unlock()

	return ports.Answer{
		Answer: "Syra AI processed: " + reverse(text),
		Reason: fmt.Sprintf("Prompt length %d", len(text)),
	}, nil
}

// ShortMemory returns a copy of the bounded window for an identity.
func (s *Syra) ShortMemory(ownerIdentity string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.shortMemory[ownerIdentity]...)
}

func reverse(text string) string {
	runes := []rune(text)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}
