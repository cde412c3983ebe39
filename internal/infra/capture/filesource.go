package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/asentrix510/codelens/internal/domain/vision"
)

// FileSource cycles through image files in a directory, standing in for a
// live camera during development. Each call to Frame returns the next file.
type FileSource struct {
	mu    sync.Mutex
	paths []string
	next  int
}

func NewFileSource(dir string) (*FileSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no image files in %s", dir)
	}
	return &FileSource{paths: paths}, nil
}

func (s *FileSource) Frame(_ context.Context) (*vision.Frame, bool) {
	s.mu.Lock()
	path := s.paths[s.next]
	s.next = (s.next + 1) % len(s.paths)
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	mime := "image/jpeg"
	if strings.HasSuffix(strings.ToLower(path), ".png") {
		mime = "image/png"
	}
	return &vision.Frame{Data: data, MIME: mime, Source: path, CapturedAt: time.Now()}, true
}

// FullFrameDetector reports a single region covering the whole frame. It is
// the trivial detector used with FileSource when no vision backend is wired.
type FullFrameDetector struct {
	Confidence float64
}

func (d *FullFrameDetector) Detect(_ context.Context, frame *vision.Frame) ([]*vision.Region, error) {
	conf := d.Confidence
	if conf <= 0 {
		conf = 1.0
	}
	region := vision.NewRegion(
		vision.RegionID(fmt.Sprintf("frame-%d", frame.CapturedAt.UnixMilli())),
		vision.Rect{X: 0, Y: 0, W: frame.Width, H: frame.Height},
		conf,
		frame.CapturedAt,
	)
	return []*vision.Region{region}, nil
}

// SidecarExtractor reads pre-extracted text from a .txt file next to the
// image, standing in for a real OCR engine during development.
type SidecarExtractor struct{}

func (e *SidecarExtractor) Extract(_ context.Context, frame *vision.Frame, _ *vision.Region) (string, error) {
	if frame.Source == "" {
		return "", nil
	}
	sidecar := strings.TrimSuffix(frame.Source, filepath.Ext(frame.Source)) + ".txt"
	data, err := os.ReadFile(sidecar)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}
