package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lpr-service/internal/detector"
	"lpr-service/internal/domain/anpr"
	"lpr-service/internal/plates"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// oneShotCameraID tags detections that came from a submitted still image
// rather than a camera stream.
const oneShotCameraID = "manual"

// DetectService runs recognition on a single submitted image. Unlike the
// stream pipeline it never consults the deduplication window: a candidate
// that clears the confidence gate is always reported.
type DetectService struct {
	detector      detector.Detector
	minConfidence float64
	log           zerolog.Logger
}

func NewDetectService(det detector.Detector, minConfidence float64, log zerolog.Logger) *DetectService {
	return &DetectService{
		detector:      det,
		minConfidence: minConfidence,
		log:           log,
	}
}

// Detect validates the image, runs the detector and returns the highest
// confidence candidate that clears the gate. ErrInvalidInput covers an
// empty or undecodable payload, ErrNotFound a frame with no readable
// plate.
func (s *DetectService) Detect(ctx context.Context, img []byte) (*anpr.DetectionEvent, error) {
	if len(img) == 0 {
		return nil, fmt.Errorf("%w: image is required", ErrInvalidInput)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable image: %v", ErrInvalidInput, err)
	}

	candidates, err := s.detector.Detect(ctx, detector.Frame{CameraID: oneShotCameraID, Image: img})
	if err != nil {
		s.log.Error().Err(err).Msg("detector failed on submitted image")
		return nil, fmt.Errorf("detector failed: %w", err)
	}

	var best *anpr.RawCandidate
	for i := range candidates {
		c := &candidates[i]
		if !detector.Accept(c, s.minConfidence) {
			continue
		}
		if best == nil || c.Confidence > best.Confidence {
			best = c
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no plate detected", ErrNotFound)
	}

	plate, valid := plates.Normalize(best.RawText)
	event := &anpr.DetectionEvent{
		ID:         uuid.NewString(),
		CameraID:   oneShotCameraID,
		Plate:      plate,
		RawText:    best.RawText,
		Confidence: best.Confidence,
		Valid:      valid,
		DetectedAt: time.Now(),
	}

	s.log.Info().
		Str("plate", plate).
		Str("raw_text", best.RawText).
		Float64("confidence", best.Confidence).
		Bool("valid", valid).
		Str("format", format).
		Int("width", cfg.Width).
		Int("height", cfg.Height).
		Msg("one-shot detection")

	return event, nil
}
