package analysis

import "context"

// Prompt is the logical provider request: an instruction plus an optional
// inline image payload.
type Prompt struct {
	Text      string
	Image     []byte
	ImageMIME string
}

// Provider port (interface for one LLM provider family)
type Provider interface {
	// Analyze sends the prompt and returns the provider's raw text response,
	// normalized to a single string.
	Analyze(ctx context.Context, p Prompt) (string, error)
}

// Repository port (interface for the analysis history archive)
type Repository interface {
	Save(ctx context.Context, res *Result) error
	Latest(ctx context.Context, limit int) ([]*Result, error)
	Paginate(ctx context.Context, page, pageSize int) ([]*Result, error)
}

// SnapshotStore port (interface for region snapshot storage)
type SnapshotStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
