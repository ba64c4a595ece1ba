package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"traitor/internal/models"
)

type call struct {
	model    string
	messages []models.Message
}

type scriptedCompleter struct {
	replies []string
	errs    []error
	calls   []call
}

func (s *scriptedCompleter) Complete(_ context.Context, modelName string, messages []models.Message) (string, error) {
	i := len(s.calls)
	s.calls = append(s.calls, call{model: modelName, messages: messages})
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", nil
}

func TestAskGPTPrompt(t *testing.T) {
	llm := &scriptedCompleter{replies: []string{"probably"}}
	svc := NewService(llm, "big", "small")

	got, err := svc.AskGPT(context.Background(), "some essay")
	if err != nil {
		t.Fatalf("AskGPT error: %v", err)
	}
	if got != "probably" {
		t.Fatalf("unexpected reply %q", got)
	}
	if len(llm.calls) != 1 || llm.calls[0].model != "big" {
		t.Fatalf("expected one call to primary model, got %+v", llm.calls)
	}
	msgs := llm.calls[0].messages
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != models.RoleSystem || msgs[0].Content != askGPTSystemPrompt {
		t.Fatalf("unexpected system message %+v", msgs[0])
	}
	if msgs[1].Role != models.RoleUser || msgs[1].Content != "some essay" {
		t.Fatalf("prompt must be forwarded verbatim, got %+v", msgs[1])
	}
}

func TestReversePromptPipesFirstReply(t *testing.T) {
	llm := &scriptedCompleter{replies: []string{"write a poem about rain", "Rain falls..."}}
	svc := NewService(llm, "big", "small")

	res, err := svc.ReversePrompt(context.Background(), "P")
	if err != nil {
		t.Fatalf("ReversePrompt error: %v", err)
	}
	if res.Description != "write a poem about rain" || res.ReversedPrompt != "Rain falls..." {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(llm.calls) != 2 {
		t.Fatalf("expected exactly 2 calls, got %d", len(llm.calls))
	}

	first, second := llm.calls[0], llm.calls[1]
	if first.model != "big" || second.model != "small" {
		t.Fatalf("unexpected models %q, %q", first.model, second.model)
	}
	if len(first.messages) != 1 || first.messages[0].Content != reversePromptTemplate+"P" {
		t.Fatalf("unexpected first call %+v", first.messages)
	}
	if len(second.messages) != 1 || second.messages[0].Role != models.RoleUser {
		t.Fatalf("unexpected second call %+v", second.messages)
	}
	if second.messages[0].Content != "write a poem about rain" {
		t.Fatalf("second call must only carry the first reply, got %q", second.messages[0].Content)
	}
}

func TestReversePromptStopsOnFirstError(t *testing.T) {
	llm := &scriptedCompleter{errs: []error{errors.New("quota")}}
	svc := NewService(llm, "big", "small")

	if _, err := svc.ReversePrompt(context.Background(), "P"); err == nil {
		t.Fatalf("expected error")
	}
	if len(llm.calls) != 1 {
		t.Fatalf("second call must not run after a failure, got %d calls", len(llm.calls))
	}
}

func TestReversePromptSecondCallError(t *testing.T) {
	llm := &scriptedCompleter{replies: []string{"guess"}, errs: []error{nil, errors.New("timeout")}}
	svc := NewService(llm, "big", "small")

	if _, err := svc.ReversePrompt(context.Background(), "P"); err == nil {
		t.Fatalf("expected error from second call")
	}
}

func TestAnalyzeMetadataPrompt(t *testing.T) {
	llm := &scriptedCompleter{replies: []string{"looks fine"}}
	svc := NewService(llm, "big", "small")

	got := svc.AnalyzeMetadata(context.Background(), models.Metadata{"title": "Essay", "author": "Ann"})
	if got != "looks fine" {
		t.Fatalf("unexpected analysis %q", got)
	}
	msgs := llm.calls[0].messages
	if len(msgs) != 1 || msgs[0].Role != models.RoleSystem {
		t.Fatalf("expected a single system message, got %+v", msgs)
	}
	want := metadataPromptTemplate + "{\n  \"title\": \"Essay\",\n  \"author\": \"Ann\"\n}"
	if msgs[0].Content != want {
		t.Fatalf("prompt = %q, want %q", msgs[0].Content, want)
	}
}

func TestAnalyzeMetadataSwallowsErrors(t *testing.T) {
	llm := &scriptedCompleter{errs: []error{errors.New("invalid api key")}}
	svc := NewService(llm, "big", "small")

	got := svc.AnalyzeMetadata(context.Background(), models.Metadata{})
	if !strings.HasPrefix(got, metadataErrorPrefix) || !strings.Contains(got, "invalid api key") {
		t.Fatalf("unexpected analysis %q", got)
	}
}
