package overlay

import (
	"log/slog"

	domain "github.com/asentrix510/codelens/internal/domain/analysis"
	"github.com/asentrix510/codelens/internal/domain/vision"
)

// LogPresenter is the server-side stand-in for the overlay renderer: it logs
// what a visual overlay would draw. Browser clients get the same information
// from the SSE event stream.
type LogPresenter struct {
	log *slog.Logger
}

func NewLogPresenter(log *slog.Logger) *LogPresenter {
	if log == nil {
		log = slog.Default()
	}
	return &LogPresenter{log: log}
}

func (p *LogPresenter) ShowAnalysis(res *domain.Result) {
	p.log.Info("overlay: analysis ready",
		"region", res.RegionID,
		"language", res.Language,
		"issues", len(res.Issues),
		"suggestions", len(res.Suggestions),
	)
}

func (p *LogPresenter) ShowError(regionID vision.RegionID, err error) {
	p.log.Warn("overlay: analysis error", "region", regionID, "error", err)
}
