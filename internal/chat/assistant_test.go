package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hyperjump/quanhday/internal/intent"
	"github.com/hyperjump/quanhday/internal/models"
)

type fakeBackend struct {
	reply   string
	err     error
	prompts []*Prompt
}

func (f *fakeBackend) Generate(_ context.Context, p *Prompt) (string, error) {
	f.prompts = append(f.prompts, p)
	return f.reply, f.err
}

type fakeSearcher struct {
	outcome *models.SearchOutcome
	intents []*models.ParsedIntent
}

func (f *fakeSearcher) HandleSearchIntent(_ context.Context, in *models.ParsedIntent, coord *models.Coordinate) *models.SearchOutcome {
	f.intents = append(f.intents, in)
	if coord == nil {
		return &models.SearchOutcome{Message: "need location", Err: models.ErrPermissionDenied}
	}
	return f.outcome
}

type fixedDescriber string

func (d fixedDescriber) Describe(context.Context, models.Coordinate) string { return string(d) }

var saigon = &models.Coordinate{Latitude: 10.7769, Longitude: 106.7009}

func successOutcome() *models.SearchOutcome {
	return &models.SearchOutcome{Success: true, Message: "Tìm thấy 1 kết quả gần bạn:\n\n1. Cafe A - 1.2 km"}
}

func TestAssistant_SearchAugmentsPrompt(t *testing.T) {
	backend := &fakeBackend{reply: "Có một quán cafe cách bạn 1.2 km."}
	searcher := &fakeSearcher{outcome: successOutcome()}
	a := NewAssistant(backend, intent.NewParser(), searcher,
		WithSystemPrompt("sys"), WithDescriber(fixedDescriber("Quận 1, TP.HCM")))

	reply, err := a.Send(context.Background(), "s1", "Tìm quán cafe ở gần 5km", saigon)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Text != "Có một quán cafe cách bạn 1.2 km." || reply.Fallback {
		t.Errorf("reply = %+v", reply)
	}
	if reply.Intent == nil {
		t.Fatal("reply should carry the parsed intent")
	}
	if reply.Intent.Category != "Quán Cafe" || reply.Intent.RadiusKm != 5 {
		t.Errorf("intent = %+v", reply.Intent)
	}

	if len(backend.prompts) != 1 {
		t.Fatalf("backend called %d times, want 1", len(backend.prompts))
	}
	p := backend.prompts[0]
	if p.System != "sys" {
		t.Errorf("system = %q", p.System)
	}
	if !strings.HasPrefix(p.Message, "Tìm quán cafe ở gần 5km") {
		t.Errorf("prompt should start with the user message:\n%s", p.Message)
	}
	for _, want := range []string{"Quận 1, TP.HCM", "1. Cafe A - 1.2 km"} {
		if !strings.Contains(p.Message, want) {
			t.Errorf("prompt missing %q:\n%s", want, p.Message)
		}
	}
}

func TestAssistant_PlainMessageSentRaw(t *testing.T) {
	backend := &fakeBackend{reply: "Chào bạn!"}
	searcher := &fakeSearcher{}
	a := NewAssistant(backend, intent.NewParser(), searcher)

	reply, err := a.Send(context.Background(), "s1", "Xin chào", nil)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Text != "Chào bạn!" || reply.Search != nil {
		t.Errorf("reply = %+v", reply)
	}
	if len(searcher.intents) != 0 {
		t.Errorf("no search expected, got %v", searcher.intents)
	}
	if got := backend.prompts[0].Message; got != "Xin chào" {
		t.Errorf("prompt = %q, want the raw message", got)
	}
}

func TestAssistant_BackendFailureAfterSearchFallsBack(t *testing.T) {
	backend := &fakeBackend{err: errors.New("503 from upstream")}
	outcome := successOutcome()
	a := NewAssistant(backend, intent.NewParser(), &fakeSearcher{outcome: outcome})

	reply, err := a.Send(context.Background(), "s1", "quán bida nào gần đây?", saigon)
	if err != nil {
		t.Fatal(err)
	}
	if !reply.Fallback || reply.Text != outcome.Message {
		t.Errorf("reply = %+v, want fallback to the search summary", reply)
	}
}

func TestAssistant_BackendFailureWithoutSearchPropagates(t *testing.T) {
	a := NewAssistant(&fakeBackend{err: errors.New("boom")}, intent.NewParser(), &fakeSearcher{})
	reply, err := a.Send(context.Background(), "s1", "Kể chuyện cười đi", saigon)
	if reply != nil {
		t.Errorf("reply = %+v, want nil", reply)
	}
	if !errors.Is(err, models.ErrAIBackend) {
		t.Errorf("err = %v, want ErrAIBackend", err)
	}
	if h := a.History("s1"); len(h) != 0 {
		t.Errorf("failed turn should not be recorded, history = %v", h)
	}
}

func TestAssistant_MissingLocationSkipsBackend(t *testing.T) {
	backend := &fakeBackend{reply: "unused"}
	a := NewAssistant(backend, intent.NewParser(), &fakeSearcher{})

	reply, err := a.Send(context.Background(), "s1", "Sự kiện âm nhạc cuối tuần", nil)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Text != "need location" {
		t.Errorf("text = %q", reply.Text)
	}
	if len(backend.prompts) != 0 {
		t.Errorf("backend should not be called, got %d prompts", len(backend.prompts))
	}
	if !errors.Is(reply.Search.Err, models.ErrPermissionDenied) {
		t.Errorf("search err = %v, want ErrPermissionDenied", reply.Search.Err)
	}
}

func TestAssistant_EmptyMessage(t *testing.T) {
	a := NewAssistant(&fakeBackend{}, intent.NewParser(), &fakeSearcher{})
	if _, err := a.Send(context.Background(), "s1", "   ", nil); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestAssistant_HistoryBounded(t *testing.T) {
	backend := &fakeBackend{reply: "ok"}
	a := NewAssistant(backend, intent.NewParser(), &fakeSearcher{}, WithHistoryTurns(4))
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := a.Send(ctx, "s1", fmt.Sprintf("hello %d", i), nil); err != nil {
			t.Fatal(err)
		}
	}
	history := a.History("s1")
	if len(history) != 4 {
		t.Fatalf("history has %d turns, want 4", len(history))
	}
	if history[0].Role != RoleUser || history[0].Text != "hello 3" {
		t.Errorf("oldest kept turn = %+v", history[0])
	}
	if n := len(backend.prompts[4].History); n != 4 {
		t.Errorf("last prompt carried %d turns, want 4", n)
	}

	if h := a.History("other"); len(h) != 0 {
		t.Errorf("unknown session history = %v", h)
	}
	a.Reset("s1")
	if h := a.History("s1"); len(h) != 0 {
		t.Errorf("history after reset = %v", h)
	}
}
