package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/quanhday/internal/intent"
	"github.com/hyperjump/quanhday/internal/metrics"
	"github.com/hyperjump/quanhday/internal/models"
)

// Searcher runs a parsed intent around a coordinate.
type Searcher interface {
	HandleSearchIntent(ctx context.Context, intent *models.ParsedIntent, coord *models.Coordinate) *models.SearchOutcome
}

// Describer turns a coordinate into a human-readable place.
type Describer interface {
	Describe(ctx context.Context, c models.Coordinate) string
}

// Reply is the assistant's answer to one message.
type Reply struct {
	Text     string                `json:"text"`
	Intent   *models.ParsedIntent  `json:"intent,omitempty"`
	Search   *models.SearchOutcome `json:"search,omitempty"`
	Fallback bool                  `json:"fallback"`
}

// Assistant keeps per-session history and decides when a message triggers a search.
type Assistant struct {
	backend   Backend
	parser    *intent.Parser
	searcher  Searcher
	describer Describer
	system    string
	maxTurns  int
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[string][]Turn
}

// AssistantOption configures an Assistant.
type AssistantOption func(*Assistant)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) AssistantOption {
	return func(a *Assistant) {
		a.logger = l
	}
}

// WithSystemPrompt sets the system instructions sent with every prompt.
func WithSystemPrompt(s string) AssistantOption {
	return func(a *Assistant) {
		a.system = s
	}
}

// WithHistoryTurns bounds the stored history per session.
func WithHistoryTurns(n int) AssistantOption {
	return func(a *Assistant) {
		if n > 0 {
			a.maxTurns = n
		}
	}
}

// WithDescriber adds the user's place to search prompts.
func WithDescriber(d Describer) AssistantOption {
	return func(a *Assistant) {
		a.describer = d
	}
}

// NewAssistant returns an Assistant.
func NewAssistant(backend Backend, parser *intent.Parser, searcher Searcher, opts ...AssistantOption) *Assistant {
	a := &Assistant{
		backend:  backend,
		parser:   parser,
		searcher: searcher,
		maxTurns: 20,
		logger:   zap.NewNop(),
		sessions: make(map[string][]Turn),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Send answers message for sessionID. Search requests run through the orchestrator
// first; a failed search is answered with its message without calling the backend.
// When the backend fails after a successful search, the formatted results are
// returned with Fallback set. Without a search, backend errors are returned.
func (a *Assistant) Send(ctx context.Context, sessionID, message string, coord *models.Coordinate) (*Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("empty message: %w", models.ErrInvalidArgument)
	}

	reply := &Reply{}
	prompt := &Prompt{System: a.system, History: a.History(sessionID), Message: message}

	if a.parser.LooksLikeSearch(message) {
		reply.Intent = a.parser.Parse(message)
		reply.Search = a.searcher.HandleSearchIntent(ctx, reply.Intent, coord)
		if !reply.Search.Success {
			reply.Text = reply.Search.Message
			metrics.ChatReplies.WithLabelValues(metrics.Outcome(reply.Search.Err)).Inc()
			a.record(sessionID, message, reply.Text)
			return reply, nil
		}
		prompt.Message = a.augment(ctx, message, coord, reply.Search)
	}

	text, err := a.backend.Generate(ctx, prompt)
	if err != nil {
		if reply.Search == nil {
			metrics.ChatReplies.WithLabelValues(metrics.OutcomeAIError).Inc()
			if !errors.Is(err, models.ErrAIBackend) {
				err = fmt.Errorf("%w: %w", models.ErrAIBackend, err)
			}
			return nil, err
		}
		a.logger.Warn("chat backend failed, replying with search results", zap.Error(err))
		metrics.ChatReplies.WithLabelValues(metrics.OutcomeFallback).Inc()
		reply.Text = reply.Search.Message
		reply.Fallback = true
		a.record(sessionID, message, reply.Text)
		return reply, nil
	}

	metrics.ChatReplies.WithLabelValues(metrics.OutcomeOK).Inc()
	reply.Text = text
	a.record(sessionID, message, text)
	return reply, nil
}

func (a *Assistant) augment(ctx context.Context, message string, coord *models.Coordinate, outcome *models.SearchOutcome) string {
	var b strings.Builder
	b.WriteString(message)
	if a.describer != nil && coord != nil {
		fmt.Fprintf(&b, "\n\n[Vị trí người dùng]\n%s", a.describer.Describe(ctx, *coord))
	}
	fmt.Fprintf(&b, "\n\n[Kết quả tìm kiếm]\n%s", outcome.Message)
	return b.String()
}

// History returns a copy of the session's stored turns.
func (a *Assistant) History(sessionID string) []Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Turn(nil), a.sessions[sessionID]...)
}

// Reset forgets a session.
func (a *Assistant) Reset(sessionID string) {
	a.mu.Lock()
	delete(a.sessions, sessionID)
	a.mu.Unlock()
}

// record stores the raw user message and the reply, keeping the newest turns.
// The kept history always starts with a user turn.
func (a *Assistant) record(sessionID, message, reply string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	turns := append(a.sessions[sessionID], Turn{Role: RoleUser, Text: message}, Turn{Role: RoleModel, Text: reply})
	keep := a.maxTurns - a.maxTurns%2
	if keep < 2 {
		keep = 2
	}
	if len(turns) > keep {
		turns = append([]Turn(nil), turns[len(turns)-keep:]...)
	}
	a.sessions[sessionID] = turns
}
