package ai

import (
	"fmt"
	"strings"

	domain "github.com/asentrix510/codelens/internal/domain/analysis"
	"github.com/asentrix510/codelens/internal/infra/ai/anthropic"
	"github.com/asentrix510/codelens/internal/infra/ai/gemini"
	"github.com/asentrix510/codelens/internal/infra/ai/openai"
)

// Options are the provider settings shared by all families.
type Options struct {
	APIKey      string
	MaxTokens   int
	Temperature float32
}

// ForModel picks the provider family by model-name substring. Model names
// matching none of the known families fail with ErrUnsupportedProvider.
func ForModel(model string, opts Options) (domain.Provider, error) {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "gpt") || strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4"):
		return openai.NewClient(opts.APIKey, model, opts.MaxTokens, opts.Temperature), nil
	case strings.Contains(m, "claude"):
		return anthropic.NewClient(opts.APIKey, model, opts.MaxTokens, opts.Temperature), nil
	case strings.Contains(m, "gemini"):
		return gemini.NewClient(opts.APIKey, model, opts.MaxTokens, opts.Temperature), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedProvider, model)
	}
}
