package ai

import (
	"context"
	"github.com/medcircle/medresident/internal/errors"
	"github.com/sashabaranov/go-openai"
	"log/slog"
)

const MaxTokens = 1024

var ErrEmptyCompletion = errors.NewSentinel("empty completion")

// Client submits chat completions to OpenAI.
type Client struct {
	client *openai.Client
	model  string
}

func NewClient(apiKey string, model string) *Client {
	return &Client{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Complete sends the system and user prompt and returns the text of the first choice.
func (c *Client) Complete(ctx context.Context, system string, prompt string) (string, error) {
	completion, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
			Model:     c.model,
			MaxTokens: MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		},
	)
	if err != nil {
		return "", errors.Wrap(err, "create chat completion", slog.String("model", c.model))
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", errors.Wrap(ErrEmptyCompletion, "create chat completion", slog.String("model", c.model))
	}
	return completion.Choices[0].Message.Content, nil
}
