// Package counsel generates mentor text: per-mentor counsel for a council
// debate, the synthesized verdict, and the daily mentor message. The
// Generator interface is the seam for a real language-model backend; the
// default implementation is template-backed.
package counsel

import "context"

// Responses maps mentor id to that mentor's counsel for a dilemma.
type Responses map[string]string

// Message is the structured daily message from a single mentor.
type Message struct {
	Principle string `json:"principle"`
	Analysis  string `json:"analysis"`
	Directive string `json:"directive"`
}

// Generator produces mentor text. Implementations must be safe for
// concurrent use.
type Generator interface {
	Responses(ctx context.Context, dilemma string) (Responses, error)
	Verdict(ctx context.Context, dilemma string, responses Responses) (string, error)
	Message(ctx context.Context, mentorID string) (Message, error)
}
