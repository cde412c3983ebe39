package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	domain "github.com/asentrix510/codelens/internal/domain/analysis"
	"github.com/asentrix510/codelens/internal/infra/ai/prompt"
)

const defaultMaxTokens = 1024

type Client struct {
	*openai.Client
	Model       string
	MaxTokens   int
	Temperature float32
}

func NewClient(apiKey, model string, maxTokens int, temperature float32) *Client {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Client{
		Client:      openai.NewClient(apiKey),
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}

func (c *Client) Analyze(ctx context.Context, p domain.Prompt) (string, error) {
	model := c.Model
	if model == "" {
		model = openai.GPT4o
	}

	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(p.Image) > 0 {
		mime := p.ImageMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		user.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt.GetUserPrompt(p.Text)},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(p.Image)),
				},
			},
		}
	} else {
		user.Content = prompt.GetUserPrompt(p.Text)
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: c.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			user,
		},
	}
	// Reasoning models (o1/o3/o4/gpt-5*) take MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = c.MaxTokens
	} else {
		req.MaxTokens = c.MaxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &domain.HTTPError{Status: apiErr.HTTPStatusCode, Body: apiErr.Message}
		}
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
