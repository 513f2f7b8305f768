// Package chat is the conversational layer: it routes messages through the intent
// parser and search orchestrator and asks an AI backend to phrase the reply.
package chat

import (
	"context"
	"fmt"

	"github.com/hyperjump/quanhday/internal/models"
)

// Roles in a conversation history.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one message in a conversation.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Prompt is what a Backend receives: system instructions, prior turns and the current message.
type Prompt struct {
	System  string
	History []Turn
	Message string
}

// Backend generates a free-form reply for a prompt.
type Backend interface {
	Generate(ctx context.Context, p *Prompt) (string, error)
}

// OfflineBackend always fails. With it the assistant answers search requests
// with the formatted results and rejects everything else.
type OfflineBackend struct{}

// Generate returns ErrAIBackend.
func (OfflineBackend) Generate(context.Context, *Prompt) (string, error) {
	return "", fmt.Errorf("%w: no chat backend configured", models.ErrAIBackend)
}
