package analysis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/asentrix510/codelens/internal/application/events"
	domain "github.com/asentrix510/codelens/internal/domain/analysis"
	"github.com/asentrix510/codelens/internal/domain/vision"
	"github.com/asentrix510/codelens/internal/resilience"
)

type providerFunc func(ctx context.Context, p domain.Prompt) (string, error)

func (f providerFunc) Analyze(ctx context.Context, p domain.Prompt) (string, error) {
	return f(ctx, p)
}

func fixedResolver(p domain.Provider) ProviderResolver {
	return func(string) (domain.Provider, error) { return p, nil }
}

func newTestQueue(t *testing.T, resolve ProviderResolver, hub *events.Hub) *Queue {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	retrier := resilience.NewRetrier(resilience.Config{
		MaxRetries:   3,
		TickInterval: 10 * time.Millisecond,
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}, true, log, nil)
	t.Cleanup(retrier.Clear)
	return NewQueue(Config{Model: "gpt-4o", Timeout: 2 * time.Second}, resolve, retrier, hub, nil, nil, nil, log)
}

const goodResponse = `{"language":"go","errors":[{"type":"logic","severity":"medium","message":"off by one"}],"suggestions":[{"type":"improvement","message":"add tests"}]}`

func TestSubmit_Success(t *testing.T) {
	provider := providerFunc(func(_ context.Context, _ domain.Prompt) (string, error) {
		return goodResponse, nil
	})
	q := newTestQueue(t, fixedResolver(provider), nil)

	res, err := q.Submit(context.Background(), "fmt.Println(x)", "region-1", nil, "")
	require.NoError(t, err)
	require.Equal(t, vision.RegionID("region-1"), res.RegionID)
	require.Equal(t, "go", res.Language)
	require.Len(t, res.Issues, 1)
	require.Len(t, res.Suggestions, 1)
	require.False(t, res.CompletedAt.IsZero())
}

func TestSubmit_CorrelatesByRegionID(t *testing.T) {
	started := make(chan string, 2)
	release := map[string]chan struct{}{
		"text-a text-a": make(chan struct{}),
		"text-b text-b": make(chan struct{}),
	}
	provider := providerFunc(func(_ context.Context, p domain.Prompt) (string, error) {
		started <- p.Text
		<-release[p.Text]
		return goodResponse, nil
	})
	q := newTestQueue(t, fixedResolver(provider), nil)

	type outcome struct {
		res *domain.Result
		err error
	}
	doneA := make(chan outcome, 1)
	doneB := make(chan outcome, 1)

	go func() {
		res, err := q.Submit(context.Background(), "text-a text-a", "region-a", nil, "")
		doneA <- outcome{res, err}
	}()
	require.Equal(t, "text-a text-a", <-started)

	go func() {
		res, err := q.Submit(context.Background(), "text-b text-b", "region-b", nil, "")
		doneB <- outcome{res, err}
	}()

	// settle A; B must stay pending until its own completion arrives
	close(release["text-a text-a"])
	select {
	case out := <-doneA:
		require.NoError(t, out.err)
		require.Equal(t, vision.RegionID("region-a"), out.res.RegionID)
	case <-time.After(time.Second):
		t.Fatal("submission A did not settle")
	}

	select {
	case <-doneB:
		t.Fatal("submission B settled before its completion event")
	case <-time.After(50 * time.Millisecond):
	}

	require.Equal(t, "text-b text-b", <-started)
	close(release["text-b text-b"])
	select {
	case out := <-doneB:
		require.NoError(t, out.err)
		require.Equal(t, vision.RegionID("region-b"), out.res.RegionID)
	case <-time.After(time.Second):
		t.Fatal("submission B did not settle")
	}
}

func TestSubmit_FIFOSingleDrain(t *testing.T) {
	var order []string
	started := make(chan struct{}, 3)
	gate := make(chan struct{})
	first := true
	provider := providerFunc(func(_ context.Context, p domain.Prompt) (string, error) {
		order = append(order, p.Text)
		started <- struct{}{}
		if first {
			first = false
			<-gate
		}
		return goodResponse, nil
	})
	q := newTestQueue(t, fixedResolver(provider), nil)

	done := make(chan struct{}, 3)
	submit := func(text string, region vision.RegionID) {
		go func() {
			_, _ = q.Submit(context.Background(), text, region, nil, "")
			done <- struct{}{}
		}()
	}

	submit("first first", "r1")
	<-started // r1 is in flight; queue the rest in a known order
	submit("second second", "r2")
	for q.QueueLen() != 1 {
		time.Sleep(time.Millisecond)
	}
	submit("third third", "r3")
	for q.QueueLen() != 2 {
		time.Sleep(time.Millisecond)
	}

	close(gate)
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("submission did not settle")
		}
	}
	require.Equal(t, []string{"first first", "second second", "third third"}, order)
}

func TestSubmit_Timeout(t *testing.T) {
	provider := providerFunc(func(_ context.Context, _ domain.Prompt) (string, error) {
		time.Sleep(300 * time.Millisecond)
		return goodResponse, nil
	})
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	retrier := resilience.NewRetrier(resilience.DefaultConfig(), true, log, nil)
	t.Cleanup(retrier.Clear)
	q := NewQueue(Config{Model: "gpt-4o", Timeout: 30 * time.Millisecond}, fixedResolver(provider), retrier, nil, nil, nil, nil, log)

	_, err := q.Submit(context.Background(), "some long enough text", "region-1", nil, "")
	require.ErrorIs(t, err, domain.ErrTimeout)
}

func TestSubmit_UnsupportedProvider(t *testing.T) {
	var calls int32
	resolve := func(model string) (domain.Provider, error) {
		return nil, domain.ErrUnsupportedProvider
	}
	q := newTestQueue(t, resolve, nil)

	_, err := q.Submit(context.Background(), "some long enough text", "region-1", nil, "")
	require.ErrorIs(t, err, domain.ErrUnsupportedProvider)
	require.Zero(t, atomic.LoadInt32(&calls))
}

func TestSubmit_MalformedResponseNeverRejects(t *testing.T) {
	provider := providerFunc(func(_ context.Context, _ domain.Prompt) (string, error) {
		return "I am not JSON at all, sorry!", nil
	})
	q := newTestQueue(t, fixedResolver(provider), nil)

	res, err := q.Submit(context.Background(), "some long enough text", "region-1", nil, "")
	require.NoError(t, err)
	require.Equal(t, "unknown", res.Language)
	require.NotEmpty(t, res.Suggestions)
}

func TestCancelAll(t *testing.T) {
	var calls int32
	started := make(chan struct{}, 1)
	provider := providerFunc(func(ctx context.Context, _ domain.Prompt) (string, error) {
		atomic.AddInt32(&calls, 1)
		started <- struct{}{}
		<-ctx.Done()
		return "", ctx.Err()
	})
	q := newTestQueue(t, fixedResolver(provider), nil)

	errs := make(chan error, 3)
	go func() {
		_, err := q.Submit(context.Background(), "in flight text", "region-1", nil, "")
		errs <- err
	}()
	<-started

	for _, region := range []vision.RegionID{"region-2", "region-3"} {
		region := region
		go func() {
			_, err := q.Submit(context.Background(), "queued request text", region, nil, "")
			errs <- err
		}()
	}
	for q.QueueLen() != 2 {
		time.Sleep(time.Millisecond)
	}

	q.CancelAll()

	for i := 0; i < 3; i++ {
		select {
		case err := <-errs:
			require.ErrorIs(t, err, domain.ErrCancelled)
		case <-time.After(time.Second):
			t.Fatal("submission did not settle after CancelAll")
		}
	}
	// the two queued requests must never reach the provider
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
	require.Zero(t, q.QueueLen())
}

func TestSubmit_SameRegionConcurrent(t *testing.T) {
	provider := providerFunc(func(_ context.Context, _ domain.Prompt) (string, error) {
		return goodResponse, nil
	})
	q := newTestQueue(t, fixedResolver(provider), nil)

	type outcome struct {
		res *domain.Result
		err error
	}
	done := make(chan outcome, 2)
	for i := 0; i < 2; i++ {
		go func() {
			res, err := q.Submit(context.Background(), "duplicated region text", "region-dup", nil, "")
			done <- outcome{res, err}
		}()
	}

	for i := 0; i < 2; i++ {
		select {
		case out := <-done:
			require.NoError(t, out.err)
			require.Equal(t, vision.RegionID("region-dup"), out.res.RegionID)
		case <-time.After(time.Second):
			t.Fatal("duplicate-region submission did not settle")
		}
	}
}

func TestSubmit_BroadcastsEvents(t *testing.T) {
	hub := events.NewHub()
	provider := providerFunc(func(_ context.Context, _ domain.Prompt) (string, error) {
		return goodResponse, nil
	})
	q := newTestQueue(t, fixedResolver(provider), hub)

	ch, cancel := hub.Subscribe()
	defer cancel()

	_, err := q.Submit(context.Background(), "some long enough text", "region-1", nil, "")
	require.NoError(t, err)

	select {
	case ev := <-ch:
		require.Equal(t, events.AnalysisCompleted, ev.Type)
		require.Equal(t, vision.RegionID("region-1"), ev.RegionID)
		require.NotNil(t, ev.Result)
	case <-time.After(time.Second):
		t.Fatal("no completed event broadcast")
	}
}

func TestSubmit_FailureBroadcastsFailedAndAPIError(t *testing.T) {
	hub := events.NewHub()
	wantErr := errors.New("response body was unusable")
	provider := providerFunc(func(_ context.Context, _ domain.Prompt) (string, error) {
		return "", wantErr
	})
	q := newTestQueue(t, fixedResolver(provider), hub)

	ch, cancel := hub.Subscribe()
	defer cancel()

	_, err := q.Submit(context.Background(), "some long enough text", "region-1", nil, "")
	require.ErrorIs(t, err, wantErr)

	var got []events.Type
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case ev := <-ch:
			got = append(got, ev.Type)
		case <-timeout:
			t.Fatalf("events = %v, want failed + api-error", got)
		}
	}
	require.Equal(t, []events.Type{events.AnalysisFailed, events.APIError}, got)
}
