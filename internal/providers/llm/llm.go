package llm

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyReply is returned when the upstream answered without any text.
var ErrEmptyReply = errors.New("llm: empty reply")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Provider interface {
	// Complete sends the whole conversation and returns the assistant reply.
	Complete(ctx context.Context, messages []Message) (string, error)
	Close() error
}
