package analysis

import (
	"time"

	"github.com/asentrix510/codelens/internal/domain/vision"
)

// RequestID identifier type
type RequestID string

// IssueCategory enum
type IssueCategory string

const (
	IssueSyntax   IssueCategory = "syntax"
	IssueLogic    IssueCategory = "logic"
	IssueStyle    IssueCategory = "style"
	IssueSecurity IssueCategory = "security"
)

// Severity enum
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SuggestionCategory enum
type SuggestionCategory string

const (
	SuggestionImprovement  SuggestionCategory = "improvement"
	SuggestionOptimization SuggestionCategory = "optimization"
	SuggestionBestPractice SuggestionCategory = "best-practice"
)

// Issue is a single problem found in the analyzed code.
type Issue struct {
	Category    IssueCategory `json:"type"`
	Severity    Severity      `json:"severity"`
	Line        int           `json:"line,omitempty"`
	Description string        `json:"message"`
	Fix         string        `json:"fix,omitempty"`
}

// Suggestion is a non-error recommendation.
type Suggestion struct {
	Category    SuggestionCategory `json:"type"`
	Description string             `json:"message"`
	Line        int                `json:"line,omitempty"`
	Code        string             `json:"code,omitempty"`
}

// Simulation is an optional dry-run of the analyzed snippet.
type Simulation struct {
	Simulatable bool   `json:"simulatable"`
	Output      string `json:"output,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

// Request is the unit of work submitted to the provider. Owned exclusively
// by the queue until dequeued.
type Request struct {
	ID          RequestID
	Text        string
	RegionID    vision.RegionID
	Image       []byte
	ImageMIME   string
	SubmittedAt time.Time
}

// Result is the structured output for one request, correlated back to the
// originating region by RegionID only.
type Result struct {
	RegionID    vision.RegionID `json:"region_id"`
	Language    string          `json:"language"`
	Issues      []Issue         `json:"errors"`
	Suggestions []Suggestion    `json:"suggestions"`
	Simulation  *Simulation     `json:"simulation,omitempty"`
	SnapshotURL string          `json:"snapshot_url,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}
