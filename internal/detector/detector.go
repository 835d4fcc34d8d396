// Package detector is the boundary to the external vehicle/plate
// detection and OCR engine.
package detector

import (
	"context"

	"lpr-service/internal/domain/anpr"
)

// Frame is one encoded (JPEG) camera frame handed to the detector.
type Frame struct {
	CameraID string
	Image    []byte
}

// Detector recognizes plate candidates in a frame. Implementations may
// be slow; callers must not assume bounded latency. Implementations
// must be safe for concurrent use from multiple camera streams.
type Detector interface {
	Detect(ctx context.Context, frame Frame) ([]anpr.RawCandidate, error)
}

// Accept is the detection gate: the sole filter keeping sub-threshold
// noise out of the deduplication state. A candidate accepted at
// threshold t is accepted at every threshold t' <= t.
func Accept(c *anpr.RawCandidate, minConfidence float64) bool {
	return c.Confidence >= minConfidence
}
