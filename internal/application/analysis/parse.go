package analysis

import (
	"encoding/json"
	"regexp"
	"strings"

	domain "github.com/asentrix510/codelens/internal/domain/analysis"
)

const salvageEchoLimit = 200

var (
	fenceRe    = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	languageRe = regexp.MustCompile(`(?i)"?language"?\s*[:=]\s*"?([A-Za-z0-9+#]+)`)
	adviceRe   = regexp.MustCompile(`(?i)^.*?(?:suggestion|improve|consider|recommend):\s*(.+)$`)
)

type rawIssue struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Line     int    `json:"line"`
	Message  string `json:"message"`
	Fix      string `json:"fix"`
}

type rawSuggestion struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Line    int    `json:"line"`
	Code    string `json:"code"`
}

type rawResponse struct {
	Language    string             `json:"language"`
	Errors      []rawIssue         `json:"errors"`
	Suggestions []rawSuggestion    `json:"suggestions"`
	Simulation  *domain.Simulation `json:"simulation"`
}

// ParseResponse turns a provider's raw text into a Result. It never fails:
// malformed output degrades to a salvaged, best-effort result, so formatting
// problems never reject a submission.
func ParseResponse(raw string) *domain.Result {
	if payload, ok := extractJSON(raw); ok {
		var rr rawResponse
		if err := json.Unmarshal([]byte(payload), &rr); err == nil {
			return mapResponse(rr)
		}
	}
	return salvage(raw)
}

// extractJSON pulls the first fenced code block, else the first top-level
// brace-delimited object, out of the raw text.
func extractJSON(raw string) (string, bool) {
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	depth := 0
	start := -1
	for i, c := range raw {
		switch c {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					return raw[start : i+1], true
				}
			}
		}
	}
	return "", false
}

func mapResponse(rr rawResponse) *domain.Result {
	res := &domain.Result{Language: rr.Language}
	if res.Language == "" {
		res.Language = "unknown"
	}
	for _, e := range rr.Errors {
		issue := domain.Issue{
			Category:    domain.IssueCategory(e.Type),
			Severity:    domain.Severity(e.Severity),
			Line:        e.Line,
			Description: e.Message,
			Fix:         e.Fix,
		}
		if issue.Category == "" {
			issue.Category = domain.IssueLogic
		}
		if issue.Severity == "" {
			issue.Severity = domain.SeverityMedium
		}
		if issue.Description == "" {
			issue.Description = "Unknown issue"
		}
		res.Issues = append(res.Issues, issue)
	}
	for _, s := range rr.Suggestions {
		sug := domain.Suggestion{
			Category:    domain.SuggestionCategory(s.Type),
			Description: s.Message,
			Line:        s.Line,
			Code:        s.Code,
		}
		if sug.Category == "" {
			sug.Category = domain.SuggestionImprovement
		}
		if sug.Description == "" {
			sug.Description = "No description provided"
		}
		res.Suggestions = append(res.Suggestions, sug)
	}
	if rr.Simulation != nil && rr.Simulation.Simulatable {
		res.Simulation = rr.Simulation
	}
	return res
}

// salvage scrapes what it can from non-JSON output: a language hint and any
// suggestion-looking lines. When nothing matches it echoes a truncated slice
// of the response as a single improvement suggestion.
func salvage(raw string) *domain.Result {
	res := &domain.Result{Language: "unknown"}
	if m := languageRe.FindStringSubmatch(raw); m != nil {
		res.Language = strings.ToLower(m[1])
	}
	for _, line := range strings.Split(raw, "\n") {
		if m := adviceRe.FindStringSubmatch(line); m != nil {
			res.Suggestions = append(res.Suggestions, domain.Suggestion{
				Category:    domain.SuggestionImprovement,
				Description: strings.TrimSpace(m[1]),
			})
		}
	}
	if len(res.Suggestions) == 0 {
		echo := strings.TrimSpace(raw)
		if len(echo) > salvageEchoLimit {
			echo = echo[:salvageEchoLimit] + "..."
		}
		res.Suggestions = append(res.Suggestions, domain.Suggestion{
			Category:    domain.SuggestionImprovement,
			Description: echo,
		})
	}
	return res
}
