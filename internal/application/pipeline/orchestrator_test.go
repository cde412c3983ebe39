package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	domain "github.com/asentrix510/codelens/internal/domain/analysis"
	"github.com/asentrix510/codelens/internal/domain/vision"
)

type fakeSource struct {
	frame *vision.Frame
}

func (s *fakeSource) Frame(context.Context) (*vision.Frame, bool) {
	if s.frame == nil {
		return nil, false
	}
	return s.frame, true
}

type fakeDetector struct {
	regions []*vision.Region
	err     error
	calls   int
}

func (d *fakeDetector) Detect(context.Context, *vision.Frame) ([]*vision.Region, error) {
	d.calls++
	return d.regions, d.err
}

type fakeExtractor struct {
	texts map[vision.RegionID]string
	err   error
}

func (e *fakeExtractor) Extract(_ context.Context, _ *vision.Frame, r *vision.Region) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return e.texts[r.ID], nil
}

type submission struct {
	text     string
	regionID vision.RegionID
	image    []byte
	mime     string
}

type fakeSubmitter struct {
	subs chan submission
	err  error
}

func newFakeSubmitter() *fakeSubmitter {
	return &fakeSubmitter{subs: make(chan submission, 8)}
}

func (s *fakeSubmitter) Submit(_ context.Context, text string, regionID vision.RegionID, image []byte, mime string) (*domain.Result, error) {
	s.subs <- submission{text, regionID, image, mime}
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Result{RegionID: regionID, Language: "go"}, nil
}

type fakePresenter struct {
	shown  chan *domain.Result
	failed chan vision.RegionID
}

func newFakePresenter() *fakePresenter {
	return &fakePresenter{
		shown:  make(chan *domain.Result, 8),
		failed: make(chan vision.RegionID, 8),
	}
}

func (p *fakePresenter) ShowAnalysis(res *domain.Result)         { p.shown <- res }
func (p *fakePresenter) ShowError(id vision.RegionID, err error) { p.failed <- id }

func region(id vision.RegionID, confidence float64) *vision.Region {
	return vision.NewRegion(id, vision.Rect{X: 10, Y: 10, W: 100, H: 50}, confidence, time.Now())
}

func testFrame() *vision.Frame {
	return &vision.Frame{Data: []byte("jpegbytes"), MIME: "image/jpeg", Width: 640, Height: 480}
}

const longText = "func main() { fmt.Println(42) }"

func newTestOrchestrator(src vision.FrameSource, det vision.Detector, ext vision.Extractor, sub Submitter, pres Presenter, cfg Config) *Orchestrator {
	return NewOrchestrator(src, det, ext, sub, pres, cfg, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func collect(t *testing.T, ch chan submission, n int) []submission {
	t.Helper()
	var got []submission
	timeout := time.After(time.Second)
	for len(got) < n {
		select {
		case s := <-ch:
			got = append(got, s)
		case <-timeout:
			t.Fatalf("got %d submissions, want %d", len(got), n)
		}
	}
	return got
}

func assertNoSubmission(t *testing.T, ch chan submission) {
	t.Helper()
	select {
	case s := <-ch:
		t.Fatalf("unexpected submission for region %q", s.regionID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestProcessFrame_SubmitsConfidentRegions(t *testing.T) {
	det := &fakeDetector{regions: []*vision.Region{
		region("r1", 0.95),
		region("r2", 0.4), // below threshold, dropped
	}}
	ext := &fakeExtractor{texts: map[vision.RegionID]string{
		"r1": longText,
		"r2": longText,
	}}
	sub := newFakeSubmitter()
	pres := newFakePresenter()
	o := newTestOrchestrator(&fakeSource{frame: testFrame()}, det, ext, sub, pres, Config{})

	o.ProcessFrame(context.Background())

	got := collect(t, sub.subs, 1)
	if got[0].regionID != "r1" {
		t.Errorf("submitted region = %q, want r1", got[0].regionID)
	}
	if got[0].text != longText {
		t.Errorf("submitted text = %q", got[0].text)
	}
	assertNoSubmission(t, sub.subs)

	select {
	case res := <-pres.shown:
		if res.RegionID != "r1" {
			t.Errorf("presented region = %q, want r1", res.RegionID)
		}
	case <-time.After(time.Second):
		t.Fatal("presenter never received the result")
	}
}

func TestProcessFrame_CapsRegionsPerFrame(t *testing.T) {
	var regions []*vision.Region
	texts := map[vision.RegionID]string{}
	for _, id := range []vision.RegionID{"r1", "r2", "r3", "r4", "r5"} {
		regions = append(regions, region(id, 0.9))
		texts[id] = longText
	}
	det := &fakeDetector{regions: regions}
	sub := newFakeSubmitter()
	o := newTestOrchestrator(&fakeSource{frame: testFrame()}, det, &fakeExtractor{texts: texts}, sub, nil, Config{MaxRegions: 3})

	o.ProcessFrame(context.Background())

	got := collect(t, sub.subs, 3)
	seen := map[vision.RegionID]bool{}
	for _, s := range got {
		seen[s.regionID] = true
	}
	// detector order wins; the overflow never reaches the queue
	for _, id := range []vision.RegionID{"r1", "r2", "r3"} {
		if !seen[id] {
			t.Errorf("region %q missing from submissions", id)
		}
	}
	assertNoSubmission(t, sub.subs)
}

func TestProcessFrame_SkipsShortText(t *testing.T) {
	det := &fakeDetector{regions: []*vision.Region{region("r1", 0.9)}}
	ext := &fakeExtractor{texts: map[vision.RegionID]string{"r1": "  x := 1  "}}
	sub := newFakeSubmitter()
	o := newTestOrchestrator(&fakeSource{frame: testFrame()}, det, ext, sub, nil, Config{})

	o.ProcessFrame(context.Background())
	assertNoSubmission(t, sub.subs)
}

func TestProcessFrame_ExtractorErrorSkipsRegionOnly(t *testing.T) {
	det := &fakeDetector{regions: []*vision.Region{region("r1", 0.9), region("r2", 0.9)}}
	ext := &failingOnceExtractor{failFor: "r1", text: longText}
	sub := newFakeSubmitter()
	o := newTestOrchestrator(&fakeSource{frame: testFrame()}, det, ext, sub, nil, Config{})

	o.ProcessFrame(context.Background())

	got := collect(t, sub.subs, 1)
	if got[0].regionID != "r2" {
		t.Errorf("submitted region = %q, want r2", got[0].regionID)
	}
	assertNoSubmission(t, sub.subs)
}

type failingOnceExtractor struct {
	failFor vision.RegionID
	text    string
}

func (e *failingOnceExtractor) Extract(_ context.Context, _ *vision.Frame, r *vision.Region) (string, error) {
	if r.ID == e.failFor {
		return "", errors.New("glyph segmentation failed")
	}
	return e.text, nil
}

func TestProcessFrame_NoFrameIsNoop(t *testing.T) {
	det := &fakeDetector{}
	o := newTestOrchestrator(&fakeSource{}, det, &fakeExtractor{}, newFakeSubmitter(), nil, Config{})

	o.ProcessFrame(context.Background())
	if det.calls != 0 {
		t.Errorf("detector called %d times with no frame, want 0", det.calls)
	}
}

func TestProcessFrame_SubmitErrorGoesToPresenter(t *testing.T) {
	det := &fakeDetector{regions: []*vision.Region{region("r1", 0.9)}}
	ext := &fakeExtractor{texts: map[vision.RegionID]string{"r1": longText}}
	sub := newFakeSubmitter()
	sub.err = domain.ErrTimeout
	pres := newFakePresenter()
	o := newTestOrchestrator(&fakeSource{frame: testFrame()}, det, ext, sub, pres, Config{})

	o.ProcessFrame(context.Background())

	select {
	case id := <-pres.failed:
		if id != "r1" {
			t.Errorf("failed region = %q, want r1", id)
		}
	case <-time.After(time.Second):
		t.Fatal("presenter never received the error")
	}
	select {
	case <-pres.shown:
		t.Fatal("result shown despite submission failure")
	default:
	}
}

func TestProcessFrame_AttachFrames(t *testing.T) {
	det := &fakeDetector{regions: []*vision.Region{region("r1", 0.9)}}
	ext := &fakeExtractor{texts: map[vision.RegionID]string{"r1": longText}}
	sub := newFakeSubmitter()
	o := newTestOrchestrator(&fakeSource{frame: testFrame()}, det, ext, sub, nil, Config{AttachFrames: true})

	o.ProcessFrame(context.Background())

	got := collect(t, sub.subs, 1)
	if string(got[0].image) != "jpegbytes" || got[0].mime != "image/jpeg" {
		t.Errorf("attached frame = (%q, %q), want original bytes and MIME", got[0].image, got[0].mime)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	det := &fakeDetector{}
	o := newTestOrchestrator(&fakeSource{}, det, &fakeExtractor{}, newFakeSubmitter(), nil, Config{TargetFPS: 100})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
