package local

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	domain "github.com/asentrix510/codelens/internal/domain/analysis"
)

// Analyzer is a no-network provider used in debug mode when no API key is
// configured. It runs cheap regex heuristics over the extracted text and
// returns JSON in the same schema a real provider is prompted for, so the
// downstream parser treats both identically.
type Analyzer struct{}

func New() *Analyzer { return &Analyzer{} }

type issue struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Line     int    `json:"line,omitempty"`
	Message  string `json:"message"`
}

type suggestion struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

type output struct {
	Language    string       `json:"language"`
	Errors      []issue      `json:"errors"`
	Suggestions []suggestion `json:"suggestions"`
}

var languageHints = []struct {
	re   *regexp.Regexp
	name string
}{
	{regexp.MustCompile(`\bfunc\s+\w+\s*\(`), "go"},
	{regexp.MustCompile(`\bdef\s+\w+\s*\(|\bimport\s+\w+$`), "python"},
	{regexp.MustCompile(`\b(?:const|let|var)\s+\w+\s*=|=>`), "javascript"},
	{regexp.MustCompile(`\bpublic\s+(?:static\s+)?(?:void|class)\b`), "java"},
	{regexp.MustCompile(`#include\s*<`), "c"},
	{regexp.MustCompile(`\bfn\s+\w+\s*\(`), "rust"},
}

var lineChecks = []struct {
	re       *regexp.Regexp
	typ      string
	severity string
	message  string
}{
	{regexp.MustCompile(`(?i)\bpassword\s*=\s*["'][^"']+["']`), "security", "high", "Hardcoded credential literal"},
	{regexp.MustCompile(`(?i)\beval\s*\(`), "security", "high", "eval() on dynamic input is dangerous"},
	{regexp.MustCompile(`(?i)\bTODO\b|\bFIXME\b`), "style", "low", "Unresolved TODO/FIXME marker"},
	{regexp.MustCompile(`==\s*(?:null|None|nil)\b`), "logic", "medium", "Loose null comparison"},
	{regexp.MustCompile(`\bcatch\s*\([^)]*\)\s*\{\s*\}`), "logic", "medium", "Empty catch block swallows errors"},
}

// Analyze implements the provider port without any remote call.
func (a *Analyzer) Analyze(_ context.Context, p domain.Prompt) (string, error) {
	return analyze(p.Text)
}

func analyze(text string) (string, error) {
	out := output{Language: "unknown"}
	for _, h := range languageHints {
		if h.re.MatchString(text) {
			out.Language = h.name
			break
		}
	}

	for i, line := range strings.Split(text, "\n") {
		for _, c := range lineChecks {
			if c.re.MatchString(line) {
				out.Errors = append(out.Errors, issue{
					Type:     c.typ,
					Severity: c.severity,
					Line:     i + 1,
					Message:  c.message,
				})
			}
		}
		if len(strings.TrimRight(line, " \t")) > 120 {
			out.Suggestions = append(out.Suggestions, suggestion{
				Type:    "best-practice",
				Message: "Line exceeds 120 characters; consider wrapping",
				Line:    i + 1,
			})
		}
	}

	if len(out.Errors) == 0 && len(out.Suggestions) == 0 {
		out.Suggestions = append(out.Suggestions, suggestion{
			Type:    "improvement",
			Message: "No obvious problems found by offline heuristics",
		})
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
