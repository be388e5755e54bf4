// AngelaMos | 2026
// service_test.go

package assistant

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/trailnetzero/community-api/internal/config"
)

type mockChatClient struct {
	lastRequest openai.ChatCompletionRequest
	response    openai.ChatCompletionResponse
	err         error
}

func (m *mockChatClient) CreateChatCompletion(
	_ context.Context,
	req openai.ChatCompletionRequest,
) (openai.ChatCompletionResponse, error) {
	m.lastRequest = req
	return m.response, m.err
}

func completionWith(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func newTestService(client ChatClient) *Service {
	return NewService(client, config.AssistantConfig{
		Model: "gpt-4o-mini",
	}, slog.Default())
}

func TestChatPrependsSystemPrompt(t *testing.T) {
	client := &mockChatClient{response: completionWith("use a pinned thread")}
	svc := newTestService(client)

	answer, err := svc.Chat(context.Background(), []Message{
		{Role: "user", Content: "How should I announce the trail closure?"},
		{Role: "assistant", Content: "Pin a thread in the alerts category."},
		{Role: "user", Content: "And the newsletter?"},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if answer != "use a pinned thread" {
		t.Errorf("answer = %q", answer)
	}

	msgs := client.lastRequest.Messages
	if len(msgs) != 4 {
		t.Fatalf("sent %d messages, want 4", len(msgs))
	}
	if msgs[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("first message role = %q, want system", msgs[0].Role)
	}
	if msgs[2].Role != openai.ChatMessageRoleAssistant {
		t.Errorf("history role = %q, want assistant", msgs[2].Role)
	}
	if client.lastRequest.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", client.lastRequest.Model)
	}
}

func TestDraftBuildsPrompt(t *testing.T) {
	client := &mockChatClient{response: completionWith("draft text")}
	svc := newTestService(client)

	_, err := svc.Draft(context.Background(), DraftRequest{
		Kind:  "newsletter",
		Topic: "spring trail openings",
		Notes: "mention the volunteer day",
	})
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}

	msgs := client.lastRequest.Messages
	if len(msgs) != 2 {
		t.Fatalf("sent %d messages, want 2", len(msgs))
	}
	prompt := msgs[1].Content
	if !strings.Contains(prompt, "newsletter") ||
		!strings.Contains(prompt, "spring trail openings") {
		t.Errorf("prompt missing kind or topic: %q", prompt)
	}
	if !strings.Contains(prompt, "mention the volunteer day") {
		t.Errorf("prompt missing notes: %q", prompt)
	}
}

func TestDraftWithoutNotes(t *testing.T) {
	client := &mockChatClient{response: completionWith("draft text")}
	svc := newTestService(client)

	if _, err := svc.Draft(context.Background(), DraftRequest{
		Kind:  "update",
		Topic: "parking lot repaving",
	}); err != nil {
		t.Fatalf("Draft: %v", err)
	}

	prompt := client.lastRequest.Messages[1].Content
	if strings.Contains(prompt, "Notes to work from") {
		t.Errorf("empty notes still rendered: %q", prompt)
	}
}

func TestEmptyCompletion(t *testing.T) {
	tests := []struct {
		name     string
		response openai.ChatCompletionResponse
	}{
		{
			name:     "no choices",
			response: openai.ChatCompletionResponse{},
		},
		{
			name:     "whitespace only",
			response: completionWith("   \n  "),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockChatClient{response: tt.response}
			svc := newTestService(client)

			_, err := svc.Chat(context.Background(), []Message{
				{Role: "user", Content: "hello"},
			})
			if !errors.Is(err, ErrEmptyCompletion) {
				t.Errorf("err = %v, want ErrEmptyCompletion", err)
			}
		})
	}
}

func TestClientErrorWrapped(t *testing.T) {
	wantErr := errors.New("rate limited")
	client := &mockChatClient{err: wantErr}
	svc := newTestService(client)

	_, err := svc.Chat(context.Background(), []Message{
		{Role: "user", Content: "hello"},
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want wrapped client error", err)
	}
}
