package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/asentrix510/codelens/internal/application"
	"github.com/asentrix510/codelens/internal/application/events"
	domain "github.com/asentrix510/codelens/internal/domain/analysis"
	"github.com/asentrix510/codelens/internal/domain/vision"
	"github.com/asentrix510/codelens/internal/resilience"
)

// ProviderResolver picks a provider implementation for a model name.
// Unknown model names must return domain.ErrUnsupportedProvider.
type ProviderResolver func(model string) (domain.Provider, error)

// Config contains queue tuning.
type Config struct {
	Model      string
	Timeout    time.Duration // per-submission completion deadline (default: 30s)
	MaxRetries int           // handed to the retrier per provider call
}

type outcome struct {
	res *domain.Result
	err error
}

// Queue serializes analysis requests through the resilience layer to the
// configured provider, one outstanding call at a time, and correlates results
// back to regions by id. All mutable state (FIFO, drain flag, waiters, abort
// handle) is private to the instance.
type Queue struct {
	cfg     Config
	resolve ProviderResolver
	retrier *resilience.Retrier
	hub     *events.Hub
	repo    domain.Repository    // optional archive, may be nil
	snaps   domain.SnapshotStore // optional snapshot storage, may be nil
	clock   application.Clock
	log     *slog.Logger

	mu       sync.Mutex
	fifo     []*domain.Request
	draining bool
	waiters  map[vision.RegionID][]chan outcome
	abort    context.CancelFunc
}

// NewQueue creates the coordinator. repo and snaps may be nil to disable archiving.
func NewQueue(cfg Config, resolve ProviderResolver, retrier *resilience.Retrier, hub *events.Hub, repo domain.Repository, snaps domain.SnapshotStore, clock application.Clock, log *slog.Logger) *Queue {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if clock == nil {
		clock = application.SystemClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Queue{
		cfg:     cfg,
		resolve: resolve,
		retrier: retrier,
		hub:     hub,
		repo:    repo,
		snaps:   snaps,
		clock:   clock,
		log:     log,
		waiters: make(map[vision.RegionID][]chan outcome),
	}
}

func (q *Queue) newRequestID() domain.RequestID {
	return domain.RequestID(fmt.Sprintf("%d-%s", q.clock.Now().UnixMilli(), uuid.NewString()[:8]))
}

// Submit enqueues extracted text for analysis and blocks until the first
// completed/failed notification for the region arrives, the timeout elapses,
// or ctx is cancelled. The region itself is not retained; correlation is by id.
func (q *Queue) Submit(ctx context.Context, text string, regionID vision.RegionID, image []byte, imageMIME string) (*domain.Result, error) {
	req := &domain.Request{
		ID:          q.newRequestID(),
		Text:        text,
		RegionID:    regionID,
		Image:       image,
		ImageMIME:   imageMIME,
		SubmittedAt: q.clock.Now(),
	}

	ch := make(chan outcome, 1)
	q.mu.Lock()
	q.waiters[regionID] = append(q.waiters[regionID], ch)
	q.fifo = append(q.fifo, req)
	q.mu.Unlock()

	go q.drain()

	timer := time.NewTimer(q.cfg.Timeout)
	defer timer.Stop()
	select {
	case out := <-ch:
		return out.res, out.err
	case <-timer.C:
		q.removeWaiter(regionID, ch)
		return nil, domain.ErrTimeout
	case <-ctx.Done():
		q.removeWaiter(regionID, ch)
		return nil, ctx.Err()
	}
}

func (q *Queue) removeWaiter(regionID vision.RegionID, ch chan outcome) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ws := q.waiters[regionID]
	for i, w := range ws {
		if w == ch {
			q.waiters[regionID] = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(q.waiters[regionID]) == 0 {
		delete(q.waiters, regionID)
	}
}

// settle pops every waiter registered for the region id and delivers the
// outcome, so repeated submissions with a reused id never leak listeners.
func (q *Queue) settle(regionID vision.RegionID, out outcome) {
	q.mu.Lock()
	ws := q.waiters[regionID]
	delete(q.waiters, regionID)
	q.mu.Unlock()
	for _, ch := range ws {
		select {
		case ch <- out:
		default:
		}
	}
}

func (q *Queue) broadcastCompleted(res *domain.Result) {
	q.settle(res.RegionID, outcome{res: res})
	if q.hub != nil {
		q.hub.Publish(events.Event{Type: events.AnalysisCompleted, Result: res, RegionID: res.RegionID})
	}
}

func (q *Queue) broadcastFailed(regionID vision.RegionID, err error) {
	q.settle(regionID, outcome{err: err})
	if q.hub != nil {
		q.hub.Publish(events.Event{Type: events.AnalysisFailed, RegionID: regionID, Error: err.Error()})
		q.hub.Publish(events.Event{Type: events.APIError, Message: domain.UserMessage(err)})
	}
}

// drain processes the FIFO strictly in submission order, one request fully
// settled before the next. At most one drain pass runs at a time.
func (q *Queue) drain() {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	q.mu.Unlock()

	for {
		q.mu.Lock()
		if len(q.fifo) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		req := q.fifo[0]
		q.fifo = q.fifo[1:]
		callCtx, cancel := context.WithCancel(context.Background())
		q.abort = cancel
		q.mu.Unlock()

		q.process(callCtx, req)

		q.mu.Lock()
		q.abort = nil
		q.mu.Unlock()
		cancel()
	}
}

func (q *Queue) process(ctx context.Context, req *domain.Request) {
	provider, err := q.resolve(q.cfg.Model)
	if err != nil {
		q.log.Error("provider resolution failed", "model", q.cfg.Model, "error", err)
		q.broadcastFailed(req.RegionID, err)
		return
	}

	prompt := domain.Prompt{Text: req.Text, Image: req.Image, ImageMIME: req.ImageMIME}

	var raw string
	err = q.retrier.Do(ctx, string(req.ID), func() error {
		s, callErr := provider.Analyze(ctx, prompt)
		if callErr != nil {
			return callErr
		}
		raw = s
		return nil
	}, q.cfg.MaxRetries)

	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			err = domain.ErrCancelled
		}
		q.log.Warn("analysis failed", "request", req.ID, "region", req.RegionID, "error", err)
		q.broadcastFailed(req.RegionID, err)
		return
	}

	res := ParseResponse(raw)
	res.RegionID = req.RegionID
	res.CompletedAt = q.clock.Now()

	q.archive(req, res)
	q.broadcastCompleted(res)
}

// archive persists the result and its snapshot when stores are configured.
// Failures here are logged and never affect the live result.
func (q *Queue) archive(req *domain.Request, res *domain.Result) {
	if q.snaps != nil && len(req.Image) > 0 {
		key := fmt.Sprintf("snapshots/%s/%s", req.RegionID, req.ID)
		url, err := q.snaps.Put(context.Background(), key, req.Image, req.ImageMIME)
		if err != nil {
			q.log.Warn("snapshot upload failed", "request", req.ID, "error", err)
		} else {
			res.SnapshotURL = url
		}
	}
	if q.repo != nil {
		if err := q.repo.Save(context.Background(), res); err != nil {
			q.log.Warn("result archive failed", "request", req.ID, "error", err)
		}
	}
}

// CancelAll discards queued-but-not-started requests (rejecting each with a
// cancellation signal, no provider call made) and aborts the in-flight
// provider call. Requests already settled are unaffected.
func (q *Queue) CancelAll() {
	q.mu.Lock()
	queued := q.fifo
	q.fifo = nil
	abort := q.abort
	q.mu.Unlock()

	for _, req := range queued {
		q.broadcastFailed(req.RegionID, domain.ErrCancelled)
	}
	if abort != nil {
		abort()
	}
}

// QueueLen reports the number of requests waiting to be drained.
func (q *Queue) QueueLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.fifo)
}
