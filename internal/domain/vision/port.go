package vision

import "context"

// FrameSource port (supplies frames at a best-effort rate)
type FrameSource interface {
	// Frame returns the most recent frame, or ok=false when none is available.
	Frame(ctx context.Context) (*Frame, bool)
}

// Detector port (finds candidate code regions in a frame)
type Detector interface {
	Detect(ctx context.Context, frame *Frame) ([]*Region, error)
}

// Extractor port (OCR: pulls text out of one region of a frame)
type Extractor interface {
	Extract(ctx context.Context, frame *Frame, region *Region) (string, error)
}
