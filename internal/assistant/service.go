// AngelaMos | 2026
// service.go

package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/trailnetzero/community-api/internal/config"
)

var ErrEmptyCompletion = errors.New("model returned no completion")

const chatSystemPrompt = `You are the staff assistant for a ` +
	`membership-based outdoor community. Answer questions about running ` +
	`the community: moderation calls, member communication, content ` +
	`planning. Be direct and practical. If you are not sure, say so ` +
	`instead of guessing.`

const writeSystemPrompt = `You draft member-facing content for a ` +
	`membership-based outdoor community: articles, newsletters, and ` +
	`site updates. Write in a warm, plain voice. No marketing filler. ` +
	`Return only the draft itself, no commentary.`

// ChatClient is the slice of the OpenAI API the assistant uses, kept as
// an interface so tests can run without a key.
type ChatClient interface {
	CreateChatCompletion(
		ctx context.Context,
		req openai.ChatCompletionRequest,
	) (openai.ChatCompletionResponse, error)
}

type Service struct {
	client ChatClient
	model  string
	logger *slog.Logger
}

func NewService(
	client ChatClient,
	cfg config.AssistantConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		client: client,
		model:  cfg.Model,
		logger: logger,
	}
}

// NewOpenAIClient builds the real client from config.
func NewOpenAIClient(cfg config.AssistantConfig) *openai.Client {
	return openai.NewClient(cfg.APIKey)
}

// Chat runs a staff Q&A exchange. The caller's message history is passed
// through so follow-up questions keep their context.
func (s *Service) Chat(
	ctx context.Context,
	messages []Message,
) (string, error) {
	chatMessages := make(
		[]openai.ChatCompletionMessage, 0, len(messages)+1,
	)
	chatMessages = append(chatMessages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: chatSystemPrompt,
	})

	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	return s.complete(ctx, chatMessages)
}

// Draft produces member-facing content from a topic and optional notes.
func (s *Service) Draft(
	ctx context.Context,
	req DraftRequest,
) (string, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Draft a %s titled or about: %s\n", req.Kind, req.Topic)
	if req.Notes != "" {
		fmt.Fprintf(&prompt, "\nNotes to work from:\n%s\n", req.Notes)
	}

	return s.complete(ctx, []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: writeSystemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt.String(),
		},
	})
}

func (s *Service) complete(
	ctx context.Context,
	messages []openai.ChatCompletionMessage,
) (string, error) {
	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:    s.model,
			Messages: messages,
		},
	)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}

	s.logger.Debug("assistant completion",
		"model", s.model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	return content, nil
}
