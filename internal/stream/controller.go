// Package stream owns the lifecycle of camera sources: it pulls frames,
// samples them for the external detector, and routes recognition
// results through the gate, normalizer, and deduplication window.
package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lpr-service/internal/broadcast"
	"lpr-service/internal/dedup"
	"lpr-service/internal/detector"
	"lpr-service/internal/domain/anpr"
	"lpr-service/internal/plates"
)

// Confirmer initiates a backend confirmation for an auto-classified
// detection.
type Confirmer interface {
	Confirm(ctx context.Context, plate string, action anpr.ConfirmAction) anpr.ConfirmationResult
}

// Options parameterize every controller identically; per-camera
// variation lives in the CameraSource.
type Options struct {
	MinConfidence   float64
	FrameSkip       int
	PreviewInterval time.Duration // 0 disables preview publication
	AutoConfirm     bool
	StopTimeout     time.Duration
}

// Controller runs one camera's read/detect/publish loop. Exactly one
// controller exists per configured camera; it is the only writer of
// that camera's state and dedup window.
type Controller struct {
	camera    anpr.CameraSource
	det       detector.Detector
	window    *dedup.Window
	hub       *broadcast.Hub
	confirmer Confirmer
	opts      Options
	open      OpenFunc
	log       zerolog.Logger

	frameCount atomic.Uint64

	mu      sync.Mutex
	state   anpr.CameraState
	lastErr string
	cancel  context.CancelFunc
	done    chan struct{}
	src     FrameSource
}

func NewController(
	camera anpr.CameraSource,
	det detector.Detector,
	hub *broadcast.Hub,
	confirmer Confirmer,
	cooldown time.Duration,
	opts Options,
	log zerolog.Logger,
) *Controller {
	if opts.FrameSkip < 1 {
		opts.FrameSkip = 1
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 5 * time.Second
	}
	return &Controller{
		camera:    camera,
		det:       det,
		window:    dedup.NewWindow(cooldown),
		hub:       hub,
		confirmer: confirmer,
		opts:      opts,
		open:      OpenSource,
		state:     anpr.StateIdle,
		log: log.With().
			Str("camera_id", camera.ID).
			Str("role", string(camera.Role)).
			Logger(),
	}
}

// Start launches the capture loop. Starting a camera that is already
// Starting or Running is a no-op.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case anpr.StateStarting, anpr.StateRunning:
		return nil
	case anpr.StateStopping:
		return errors.New("camera is stopping, retry start once it is idle")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.lastErr = ""
	c.setStateLocked(anpr.StateStarting, "")

	go c.run(ctx, c.done)
	return nil
}

// Stop cooperatively shuts the loop down. It returns once the
// controller is Idle, or forces it into Errored and releases the source
// when the stop bound elapses. Stopping an Idle camera is a no-op with
// no state-change event.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state == anpr.StateIdle || c.cancel == nil {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	cancel()

	select {
	case <-done:
		return nil
	case <-time.After(c.opts.StopTimeout):
	}

	// The source never yielded control back; force the state over and
	// release the handle so the stuck read fails out.
	c.mu.Lock()
	c.setStateLocked(anpr.StateErrored, "stop timed out")
	c.setStateLocked(anpr.StateIdle, "")
	src := c.src
	c.src = nil
	c.mu.Unlock()

	if src != nil {
		_ = src.Close()
	}
	return errors.New("stop timed out, camera forced idle")
}

// State returns the camera's current lifecycle state.
func (c *Controller) State() anpr.CameraState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Info is the synchronized snapshot accessor used by the registry and
// the listing endpoints.
func (c *Controller) Info() anpr.CameraInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return anpr.CameraInfo{
		ID:         c.camera.ID,
		Name:       c.camera.Name,
		Role:       c.camera.Role,
		State:      c.state,
		Source:     c.camera.Source,
		FrameCount: c.frameCount.Load(),
		Error:      c.lastErr,
	}
}

func (c *Controller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	src, err := c.open(ctx, c.camera.Source, c.camera.Loop)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to open camera source")
		c.fail(err)
		return
	}
	c.mu.Lock()
	c.src = src
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.src == src {
			c.src = nil
		}
		c.mu.Unlock()
		_ = src.Close()
	}()

	c.setState(anpr.StateRunning, "")
	c.log.Info().Str("source", c.camera.Source).Msg("camera stream started")

	var lastPreview time.Time
	for {
		if ctx.Err() != nil {
			c.finish()
			return
		}

		frame, err := src.Next(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			c.finish()
			return
		case errors.Is(err, ErrSourceExhausted):
			c.log.Info().Msg("camera source exhausted")
			c.finish()
			return
		default:
			c.log.Error().Err(err).Msg("camera read failed")
			c.fail(err)
			return
		}

		n := c.frameCount.Add(1)
		if n%uint64(c.opts.FrameSkip) == 0 {
			c.processFrame(ctx, frame)
		}

		if c.opts.PreviewInterval > 0 && time.Since(lastPreview) >= c.opts.PreviewInterval {
			lastPreview = time.Now()
			c.hub.Publish(broadcast.NewPreviewEvent(c.camera.ID, frame, lastPreview))
		}
	}
}

// processFrame submits one sampled frame to the detector and routes its
// candidates through gate, normalizer, and dedup window. Detector
// failures are contained to the frame; the loop continues.
func (c *Controller) processFrame(ctx context.Context, frame []byte) {
	candidates, err := c.det.Detect(ctx, detector.Frame{CameraID: c.camera.ID, Image: frame})
	if err != nil {
		if ctx.Err() == nil {
			c.log.Warn().Err(err).Msg("detector call failed, skipping frame")
		}
		return
	}

	for i := range candidates {
		cand := &candidates[i]
		if !detector.Accept(cand, c.opts.MinConfidence) {
			continue
		}

		canonical, valid := plates.Normalize(cand.RawText)
		if canonical == "" {
			continue
		}

		if c.window.Observe(canonical, time.Now()) == dedup.Repeat {
			continue
		}

		event := anpr.DetectionEvent{
			ID:         uuid.NewString(),
			CameraID:   c.camera.ID,
			CameraRole: c.camera.Role,
			Plate:      canonical,
			RawText:    cand.RawText,
			Confidence: cand.Confidence,
			Valid:      valid,
			DetectedAt: time.Now(),
		}

		c.log.Info().
			Str("plate", canonical).
			Float64("confidence", cand.Confidence).
			Bool("valid", valid).
			Msg("new plate detected")

		c.hub.Publish(broadcast.NewDetectionEvent(event))
		c.autoConfirm(ctx, event)
	}
}

// autoConfirm forwards a new detection straight to the confirmation
// workflow when auto mode is on, classified by camera role. Monitor
// cameras never auto-confirm. The call runs off the stream loop so a
// slow backend cannot stall frame reads.
func (c *Controller) autoConfirm(ctx context.Context, event anpr.DetectionEvent) {
	if !c.opts.AutoConfirm || !event.Valid {
		return
	}

	var action anpr.ConfirmAction
	switch c.camera.Role {
	case anpr.RoleEntry:
		action = anpr.ActionEntry
	case anpr.RoleExit:
		action = anpr.ActionExit
	default:
		return
	}

	confirmCtx := context.WithoutCancel(ctx)
	go func() {
		result := c.confirmer.Confirm(confirmCtx, event.Plate, action)
		c.log.Info().
			Str("plate", event.Plate).
			Str("action", string(action)).
			Bool("success", result.Success).
			Msg("auto confirmation completed")
	}()
}

// finish is the normal termination path: Stopping, then Idle. A forced
// stop may already have parked the state at Idle; the late-exiting loop
// must not republish transitions in that case.
func (c *Controller) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == anpr.StateIdle {
		return
	}
	c.setStateLocked(anpr.StateStopping, "")
	c.setStateLocked(anpr.StateIdle, "")
	c.log.Info().Msg("camera stream stopped")
}

// fail surfaces the error and auto-recovers the state to Idle. A fresh
// start command is required; there is no auto-retry.
func (c *Controller) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == anpr.StateIdle {
		return
	}
	c.setStateLocked(anpr.StateErrored, err.Error())
	c.setStateLocked(anpr.StateIdle, "")
}

func (c *Controller) setState(state anpr.CameraState, errMsg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setStateLocked(state, errMsg)
}

// setStateLocked transitions the state and publishes a state-change
// event only when the state actually changes. Errored keeps its message
// visible through the following Idle for snapshot readers.
func (c *Controller) setStateLocked(state anpr.CameraState, errMsg string) {
	if c.state == state {
		return
	}
	c.state = state
	if errMsg != "" || state == anpr.StateRunning || state == anpr.StateStarting {
		c.lastErr = errMsg
	}
	c.hub.Publish(broadcast.NewCameraStateEvent(c.camera.ID, state, errMsg))
}
