package gemini

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

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

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

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float32 `json:"temperature"`
}

type request struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type response struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (c *Client) Analyze(ctx context.Context, p domain.Prompt) (string, error) {
	parts := []part{{Text: prompt.GetSystemPrompt() + "\n\n" + prompt.GetUserPrompt(p.Text)}}
	if len(p.Image) > 0 {
		mime := p.ImageMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(p.Image),
		}})
	}

	body, err := json.Marshal(request{
		Contents: []content{{Parts: parts}},
		GenerationConfig: generationConfig{
			MaxOutputTokens: c.MaxTokens,
			Temperature:     c.Temperature,
		},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", c.BaseURL, c.Model, c.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

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
		return "", fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini response contained no candidates")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}
