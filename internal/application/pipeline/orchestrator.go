package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/asentrix510/codelens/internal/application"
	domain "github.com/asentrix510/codelens/internal/domain/analysis"
	"github.com/asentrix510/codelens/internal/domain/vision"
)

// Presenter port (consumes analysis outcomes for the overlay)
type Presenter interface {
	ShowAnalysis(res *domain.Result)
	ShowError(regionID vision.RegionID, err error)
}

// Submitter port (the analysis queue, from the loop's point of view)
type Submitter interface {
	Submit(ctx context.Context, text string, regionID vision.RegionID, image []byte, imageMIME string) (*domain.Result, error)
}

// Config contains per-frame loop tuning. Zero values fall back to defaults.
type Config struct {
	TargetFPS     float64 // processed-frame rate cap (default: 30)
	MaxRegions    int     // regions kept per frame, detector order (default: 3)
	MinConfidence float64 // regions below are dropped (default: 0.7)
	MinTextLen    int     // trimmed extractions at or below are skipped (default: 10)
	HistoryCap    int     // per-region position history bound (default: 10)
	AttachFrames  bool    // send the frame image along with the text
}

func (c *Config) applyDefaults() {
	if c.TargetFPS <= 0 {
		c.TargetFPS = 30
	}
	if c.MaxRegions <= 0 {
		c.MaxRegions = 3
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = 0.7
	}
	if c.MinTextLen <= 0 {
		c.MinTextLen = 10
	}
	if c.HistoryCap <= 0 {
		c.HistoryCap = vision.DefaultHistoryCap
	}
}

// Orchestrator drives the per-frame loop: frame → detect → filter → extract →
// submit, forwarding outcomes to the presenter without ever waiting on a
// round trip or letting one region's failure halt the loop.
type Orchestrator struct {
	frames    vision.FrameSource
	detector  vision.Detector
	extractor vision.Extractor
	queue     Submitter
	presenter Presenter
	cfg       Config
	clock     application.Clock
	log       *slog.Logger
}

func NewOrchestrator(frames vision.FrameSource, detector vision.Detector, extractor vision.Extractor, queue Submitter, presenter Presenter, cfg Config, clock application.Clock, log *slog.Logger) *Orchestrator {
	cfg.applyDefaults()
	if clock == nil {
		clock = application.SystemClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		frames:    frames,
		detector:  detector,
		extractor: extractor,
		queue:     queue,
		presenter: presenter,
		cfg:       cfg,
		clock:     clock,
		log:       log,
	}
}

// Run loops until ctx is cancelled, self-throttled to the target rate: ticks
// arriving before the target interval has elapsed are skipped.
func (o *Orchestrator) Run(ctx context.Context) error {
	interval := time.Duration(float64(time.Second) / o.cfg.TargetFPS)
	ticker := time.NewTicker(interval / 4)
	defer ticker.Stop()

	var lastProcessed time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := o.clock.Now()
			if now.Sub(lastProcessed) < interval {
				continue
			}
			lastProcessed = now
			o.ProcessFrame(ctx)
		}
	}
}

// ProcessFrame runs one pipeline pass over the current frame, if any.
func (o *Orchestrator) ProcessFrame(ctx context.Context) {
	frame, ok := o.frames.Frame(ctx)
	if !ok {
		return
	}

	regions, err := o.detector.Detect(ctx, frame)
	if err != nil {
		o.log.Warn("region detection failed", "error", err)
		return
	}
	if len(regions) > o.cfg.MaxRegions {
		regions = regions[:o.cfg.MaxRegions]
	}

	for _, region := range regions {
		if region.Confidence < o.cfg.MinConfidence {
			continue
		}
		region.SetHistoryCap(o.cfg.HistoryCap)
		region.Track()

		text, err := o.extractor.Extract(ctx, frame, region)
		if err != nil {
			o.log.Warn("text extraction failed", "region", region.ID, "error", err)
			continue
		}
		region.Text = text
		if len(strings.TrimSpace(text)) <= o.cfg.MinTextLen {
			continue
		}

		var image []byte
		var mime string
		if o.cfg.AttachFrames {
			image = frame.Data
			mime = frame.MIME
		}
		go o.submit(ctx, region.ID, text, image, mime)
	}
}

// submit is the fire-and-forget continuation: the loop never waits on it.
func (o *Orchestrator) submit(ctx context.Context, regionID vision.RegionID, text string, image []byte, mime string) {
	res, err := o.queue.Submit(ctx, text, regionID, image, mime)
	if err != nil {
		o.log.Warn("analysis failed", "region", regionID, "error", err)
		if o.presenter != nil {
			o.presenter.ShowError(regionID, err)
		}
		return
	}
	if o.presenter != nil {
		o.presenter.ShowAnalysis(res)
	}
}
