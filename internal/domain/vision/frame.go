package vision

import "time"

// Frame is a raw image buffer handed over by the frame source.
type Frame struct {
	Data       []byte
	MIME       string
	Width      int
	Height     int
	Source     string // origin identifier (device name, file path)
	CapturedAt time.Time
}
