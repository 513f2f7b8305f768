package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"

	"github.com/hyperjump/quanhday/internal/config"
	"github.com/hyperjump/quanhday/internal/models"
)

// GeminiBackend calls the Gemini generateContent REST endpoint.
type GeminiBackend struct {
	client      *fasthttp.Client
	endpoint    string
	model       string
	apiKey      string
	timeout     time.Duration
	temperature float64
}

// NewGeminiBackend returns a backend for cfg. The API key is required.
func NewGeminiBackend(cfg *config.ChatConfig) (*GeminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required: %w", models.ErrInvalidArgument)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GeminiBackend{
		client:      &fasthttp.Client{Name: "quanhday"},
		endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		timeout:     timeout,
		temperature: cfg.Temperature,
	}, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate sends the prompt and returns the first candidate's text.
func (g *GeminiBackend) Generate(ctx context.Context, p *Prompt) (string, error) {
	body := geminiRequest{}
	if p.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: p.System}}}
	}
	for _, turn := range p.History {
		body.Contents = append(body.Contents, geminiContent{Role: turn.Role, Parts: []geminiPart{{Text: turn.Text}}})
	}
	body.Contents = append(body.Contents, geminiContent{Role: RoleUser, Parts: []geminiPart{{Text: p.Message}}})
	body.GenerationConfig.Temperature = g.temperature

	payload, err := jsoniter.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %w", models.ErrAIBackend, err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	res := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(res)

	req.SetBody(payload)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)
	req.SetRequestURI(g.endpoint + "/models/" + g.model + ":generateContent")

	deadline := time.Now().Add(g.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := g.client.DoDeadline(req, res, deadline); err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrAIBackend, err)
	}

	var response geminiResponse
	if err := jsoniter.Unmarshal(res.Body(), &response); err != nil {
		return "", fmt.Errorf("%w: status %d: decode response: %w", models.ErrAIBackend, res.StatusCode(), err)
	}
	if res.StatusCode() != fasthttp.StatusOK {
		msg := string(res.Body())
		if response.Error != nil {
			msg = response.Error.Message
		}
		return "", fmt.Errorf("%w: status %d: %s", models.ErrAIBackend, res.StatusCode(), msg)
	}
	if len(response.Candidates) == 0 {
		return "", fmt.Errorf("%w: empty response", models.ErrAIBackend)
	}
	var text strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", fmt.Errorf("%w: no text in response (finish reason %s)", models.ErrAIBackend, response.Candidates[0].FinishReason)
	}
	return text.String(), nil
}

// NewBackend returns the backend named by cfg.Backend.
func NewBackend(cfg *config.ChatConfig) (Backend, error) {
	switch cfg.Backend {
	case config.BackendOffline:
		return OfflineBackend{}, nil
	case config.BackendGemini, "":
		return NewGeminiBackend(cfg)
	default:
		return nil, fmt.Errorf("unsupported chat backend %q: %w", cfg.Backend, models.ErrInvalidArgument)
	}
}
