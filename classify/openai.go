package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultModel   = "gpt-4o-mini"
	requestTimeout = 30 * time.Second
	promptLimit    = 2000
)

var ErrUnknownLabel = errors.New("classifier answered with an unknown label")

// OpenAIBackend asks an OpenAI compatible chat endpoint to pick a label.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAIBackend creates a backend. An empty baseURL keeps the OpenAI
// default endpoint.
func NewOpenAIBackend(apiKey, baseURL, model string) *OpenAIBackend {
	if model == "" {
		model = defaultModel
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return &OpenAIBackend{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (b *OpenAIBackend) Classify(ctx context.Context, subject, content string, labels []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(labels)},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(subject, content)},
		},
		Temperature: 0.1,
		MaxTokens:   20,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	answer := strings.Trim(strings.TrimSpace(resp.Choices[0].Message.Content), "\"'“”。.")
	for _, label := range labels {
		if answer == label {
			return label, nil
		}
	}
	return "", fmt.Errorf("%q: %w", answer, ErrUnknownLabel)
}

func systemPrompt(labels []string) string {
	return fmt.Sprintf(`You sort notices received by a patent and software copyright agency.

Pick exactly one category for the message from this list:
%s

Reply with the category text only.`, "- "+strings.Join(labels, "\n- "))
}

func userPrompt(subject, content string) string {
	runes := []rune(content)
	if len(runes) > promptLimit {
		content = string(runes[:promptLimit])
	}
	return fmt.Sprintf("Subject: %s\n\n%s", subject, content)
}
