package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/quanhday/internal/config"
	"github.com/hyperjump/quanhday/internal/models"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc) *GeminiBackend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	g, err := NewGeminiBackend(&config.ChatConfig{
		Endpoint:    srv.URL + "/v1beta/",
		Model:       "gemini-test",
		APIKey:      "secret",
		Timeout:     2 * time.Second,
		Temperature: 0.5,
	})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestGeminiBackend_Generate(t *testing.T) {
	var got geminiRequest
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v1beta/models/gemini-test:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if key := r.Header.Get("x-goog-api-key"); key != "secret" {
			t.Errorf("api key header = %q", key)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Xin "},{"text":"chào!"}]},"finishReason":"STOP"}]}`))
	})

	text, err := g.Generate(context.Background(), &Prompt{
		System:  "be brief",
		History: []Turn{{Role: RoleUser, Text: "hi"}, {Role: RoleModel, Text: "hello"}},
		Message: "tìm cafe",
	})
	if err != nil {
		t.Fatal(err)
	}
	if text != "Xin chào!" {
		t.Errorf("text = %q, want joined parts", text)
	}

	if got.SystemInstruction == nil || got.SystemInstruction.Parts[0].Text != "be brief" {
		t.Errorf("system instruction = %+v", got.SystemInstruction)
	}
	if len(got.Contents) != 3 {
		t.Fatalf("sent %d contents, want 3", len(got.Contents))
	}
	if got.Contents[1].Role != RoleModel {
		t.Errorf("second turn role = %q", got.Contents[1].Role)
	}
	if got.Contents[2].Parts[0].Text != "tìm cafe" {
		t.Errorf("last turn = %+v", got.Contents[2])
	}
	if got.GenerationConfig.Temperature != 0.5 {
		t.Errorf("temperature = %v", got.GenerationConfig.Temperature)
	}
}

func TestGeminiBackend_ErrorStatus(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
	})
	_, err := g.Generate(context.Background(), &Prompt{Message: "hi"})
	if !errors.Is(err, models.ErrAIBackend) {
		t.Fatalf("err = %v, want ErrAIBackend", err)
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("err = %v, want the upstream message", err)
	}
}

func TestGeminiBackend_EmptyCandidates(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	})
	if _, err := g.Generate(context.Background(), &Prompt{Message: "hi"}); !errors.Is(err, models.ErrAIBackend) {
		t.Errorf("err = %v, want ErrAIBackend", err)
	}
}

func TestGeminiBackend_Unreachable(t *testing.T) {
	g, err := NewGeminiBackend(&config.ChatConfig{Endpoint: "http://127.0.0.1:1", Model: "m", APIKey: "k", Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Generate(context.Background(), &Prompt{Message: "hi"}); !errors.Is(err, models.ErrAIBackend) {
		t.Errorf("err = %v, want ErrAIBackend", err)
	}
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend(&config.ChatConfig{Backend: config.BackendOffline})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Generate(context.Background(), &Prompt{Message: "hi"}); !errors.Is(err, models.ErrAIBackend) {
		t.Errorf("offline Generate err = %v, want ErrAIBackend", err)
	}

	for _, backend := range []string{config.BackendGemini, "telepathy"} {
		if _, err := NewBackend(&config.ChatConfig{Backend: backend}); !errors.Is(err, models.ErrInvalidArgument) {
			t.Errorf("NewBackend(%q) err = %v, want ErrInvalidArgument", backend, err)
		}
	}
}
