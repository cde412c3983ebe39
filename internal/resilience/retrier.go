package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// ErrMaxRetries indicates an operation failed on every allowed retry.
var ErrMaxRetries = errors.New("max retries exceeded")

// ErrRetryCleared indicates the pending retry set was cleared before the
// operation could complete.
var ErrRetryCleared = errors.New("retry queue cleared")

// Config contains retry/backoff tuning.
type Config struct {
	MaxRetries   int           // re-attempts per operation (default: 3)
	TickInterval time.Duration // pending-set drain period (default: 5s)
	BaseDelay    time.Duration // initial backoff delay (default: 1s)
	MaxDelay     time.Duration // backoff cap (default: 30s)
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		TickInterval: 5 * time.Second,
		BaseDelay:    1 * time.Second,
		MaxDelay:     30 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 5 * time.Second
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 1 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
}

type operation struct {
	id         string
	run        func() error
	maxRetries int
	retryCount int
	lastErr    error
	done       chan error
}

func (o *operation) settle(err error) {
	select {
	case o.done <- err:
	default:
	}
}

// Retrier shields callers from transient connectivity failures. It keeps an
// Online/Offline state driven by SetOnline, queues network-classified failures,
// and drains the pending set on a periodic tick (and immediately on the
// offline→online transition) with exponential backoff per operation.
type Retrier struct {
	cfg     Config
	log     *slog.Logger
	onState func(online bool)

	mu      sync.Mutex
	online  bool
	pending []*operation
	stopped bool

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once

	jitter func() float64 // returns [0,1); replaceable in tests
}

// NewRetrier creates a retrier whose initial state matches the given
// connectivity. onState, when non-nil, is invoked on every state transition.
func NewRetrier(cfg Config, online bool, log *slog.Logger, onState func(online bool)) *Retrier {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}
	r := &Retrier{
		cfg:     cfg,
		log:     log,
		onState: onState,
		online:  online,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		jitter:  rand.Float64,
	}
	go r.loop()
	return r
}

// Online reports the current connectivity state.
func (r *Retrier) Online() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online
}

// Pending reports the number of operations waiting for a retry.
func (r *Retrier) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// SetOnline updates the connectivity state. Going online triggers an immediate
// drain of the pending set; going offline suspends draining.
func (r *Retrier) SetOnline(online bool) {
	r.mu.Lock()
	if r.online == online || r.stopped {
		r.mu.Unlock()
		return
	}
	r.online = online
	r.mu.Unlock()

	r.log.Info("connectivity changed", "online", online)
	if r.onState != nil {
		r.onState(online)
	}
	if online {
		select {
		case r.wake <- struct{}{}:
		default:
		}
	}
}

// Do runs op with retry semantics. When online it attempts op once
// immediately; a non-network failure is returned as-is without consuming a
// retry, a network failure enqueues the operation. When offline the immediate
// attempt is skipped and the operation is enqueued directly. Do blocks until
// the operation settles terminally or ctx is cancelled.
func (r *Retrier) Do(ctx context.Context, id string, op func() error, maxRetries int) error {
	if maxRetries <= 0 {
		maxRetries = r.cfg.MaxRetries
	}

	if r.Online() {
		err := op()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		r.log.Warn("operation failed, queueing for retry", "id", id, "error", err)
		return r.enqueueAndWait(ctx, &operation{
			id:         id,
			run:        op,
			maxRetries: maxRetries,
			lastErr:    err,
			done:       make(chan error, 1),
		})
	}

	r.log.Info("offline, queueing operation", "id", id)
	return r.enqueueAndWait(ctx, &operation{
		id:         id,
		run:        op,
		maxRetries: maxRetries,
		done:       make(chan error, 1),
	})
}

func (r *Retrier) enqueueAndWait(ctx context.Context, o *operation) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return ErrRetryCleared
	}
	r.pending = append(r.pending, o)
	r.mu.Unlock()

	select {
	case err := <-o.done:
		return err
	case <-ctx.Done():
		r.remove(o)
		return ctx.Err()
	}
}

func (r *Retrier) remove(o *operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.pending {
		if p == o {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			return
		}
	}
}

// Clear settles every pending operation as a terminal "cleared" failure and
// stops the tick loop.
func (r *Retrier) Clear() {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.stopped = true
	r.mu.Unlock()

	for _, o := range batch {
		o.settle(ErrRetryCleared)
	}
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *Retrier) loop() {
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.drain()
		case <-r.wake:
			r.drain()
		}
	}
}

// drain pops the whole pending set atomically and attempts each operation
// once. The atomic pop guarantees a queued operation is dispatched at most
// once per tick or online transition even when both fire together.
func (r *Retrier) drain() {
	r.mu.Lock()
	if !r.online || len(r.pending) == 0 {
		r.mu.Unlock()
		return
	}
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	for i, o := range batch {
		if !r.Online() {
			// Went offline mid-drain: put the rest back for the next transition.
			r.requeue(batch[i:])
			return
		}
		r.attempt(o)
	}
}

func (r *Retrier) requeue(ops []*operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		for _, o := range ops {
			o.settle(ErrRetryCleared)
		}
		return
	}
	r.pending = append(r.pending, ops...)
}

func (r *Retrier) attempt(o *operation) {
	o.retryCount++
	delay := r.backoff(o.retryCount)
	r.log.Debug("retrying operation", "id", o.id, "attempt", o.retryCount, "max_retries", o.maxRetries, "delay", delay)

	select {
	case <-time.After(delay):
	case <-r.stop:
		o.settle(ErrRetryCleared)
		return
	}

	err := o.run()
	if err == nil {
		o.settle(nil)
		return
	}
	o.lastErr = err

	if !IsRetryable(err) {
		o.settle(err)
		return
	}
	if o.retryCount >= o.maxRetries {
		r.log.Warn("operation exhausted retries", "id", o.id, "attempts", o.retryCount, "error", err)
		o.settle(fmt.Errorf("%w after %d attempts: %v", ErrMaxRetries, o.retryCount, err))
		return
	}
	r.requeue([]*operation{o})
}

// backoff computes the delay before retry attempt n (1-based):
// min(base * 2^(n-1), cap) plus up to 10% jitter, added only.
func (r *Retrier) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := r.cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= r.cfg.MaxDelay {
			d = r.cfg.MaxDelay
			break
		}
	}
	if d > r.cfg.MaxDelay {
		d = r.cfg.MaxDelay
	}
	return d + time.Duration(r.jitter()*0.1*float64(d))
}
