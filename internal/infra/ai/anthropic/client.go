package anthropic

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	domain "github.com/asentrix510/codelens/internal/domain/analysis"
	"github.com/asentrix510/codelens/internal/infra/ai/prompt"
)

const (
	defaultBaseURL = "https://api.anthropic.com/v1/messages"
	apiVersion     = "2023-06-01"
)

type Client struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	BaseURL     string
	HTTPClient  *http.Client
}

func NewClient(apiKey, model string, maxTokens int, temperature float32) *Client {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Client{
		APIKey:      apiKey,
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		BaseURL:     defaultBaseURL,
		HTTPClient:  http.DefaultClient,
	}
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature"`
	System      string    `json:"system"`
	Messages    []message `json:"messages"`
}

type response struct {
	Content []contentBlock `json:"content"`
}

func (c *Client) Analyze(ctx context.Context, p domain.Prompt) (string, error) {
	blocks := []contentBlock{{Type: "text", Text: prompt.GetUserPrompt(p.Text)}}
	if len(p.Image) > 0 {
		mime := p.ImageMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		blocks = append(blocks, contentBlock{
			Type: "image",
			Source: &imageSource{
				Type:      "base64",
				MediaType: mime,
				Data:      base64.StdEncoding.EncodeToString(p.Image),
			},
		})
	}

	body, err := json.Marshal(request{
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		System:      prompt.GetSystemPrompt(),
		Messages:    []message{{Role: "user", Content: blocks}},
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &domain.HTTPError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var out response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("failed to decode anthropic response: %w", err)
	}
	if len(out.Content) == 0 {
		return "", fmt.Errorf("anthropic response contained no content")
	}
	return out.Content[0].Text, nil
}
