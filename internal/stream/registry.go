package stream

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"lpr-service/internal/broadcast"
	"lpr-service/internal/detector"
	"lpr-service/internal/domain/anpr"
)

// ErrNotFound marks a camera id that was never configured.
var ErrNotFound = errors.New("camera not found")

// Registry owns the fixed set of configured cameras and their
// controllers. Cameras can be stopped but never removed during the
// process lifetime.
type Registry struct {
	controllers map[string]*Controller
	order       []string
	log         zerolog.Logger
}

func NewRegistry(
	cameras []anpr.CameraSource,
	det detector.Detector,
	hub *broadcast.Hub,
	confirmer Confirmer,
	cooldown time.Duration,
	opts Options,
	log zerolog.Logger,
) *Registry {
	r := &Registry{
		controllers: make(map[string]*Controller, len(cameras)),
		order:       make([]string, 0, len(cameras)),
		log:         log,
	}
	for _, cam := range cameras {
		r.controllers[cam.ID] = NewController(cam, det, hub, confirmer, cooldown, opts, log)
		r.order = append(r.order, cam.ID)
	}
	return r
}

// OpResult reports the outcome of a start or stop for one camera.
type OpResult struct {
	CameraID string `json:"camera_id"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// Start starts one camera. Idempotent: an already Running or Starting
// camera is a no-op.
func (r *Registry) Start(id string) error {
	ctrl, ok := r.controllers[id]
	if !ok {
		return ErrNotFound
	}
	return ctrl.Start()
}

// Stop stops one camera. Idempotent on Idle cameras.
func (r *Registry) Stop(id string) error {
	ctrl, ok := r.controllers[id]
	if !ok {
		return ErrNotFound
	}
	return ctrl.Stop()
}

// StartAll starts every camera, reporting per-camera results
// independently: one camera's failure never prevents the others from
// starting.
func (r *Registry) StartAll() []OpResult {
	results := make([]OpResult, 0, len(r.order))
	for _, id := range r.order {
		err := r.controllers[id].Start()
		res := OpResult{CameraID: id, OK: err == nil}
		if err != nil {
			res.Error = err.Error()
			r.log.Error().Err(err).Str("camera_id", id).Msg("failed to start camera")
		}
		results = append(results, res)
	}
	return results
}

// StopAll stops every camera, reporting per-camera results.
func (r *Registry) StopAll() []OpResult {
	results := make([]OpResult, 0, len(r.order))
	for _, id := range r.order {
		err := r.controllers[id].Stop()
		res := OpResult{CameraID: id, OK: err == nil}
		if err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results
}

// Snapshot returns a read-only view of every camera in configuration
// order.
func (r *Registry) Snapshot() []anpr.CameraInfo {
	infos := make([]anpr.CameraInfo, 0, len(r.order))
	for _, id := range r.order {
		infos = append(infos, r.controllers[id].Info())
	}
	return infos
}

// Info returns the snapshot for one camera.
func (r *Registry) Info(id string) (anpr.CameraInfo, error) {
	ctrl, ok := r.controllers[id]
	if !ok {
		return anpr.CameraInfo{}, ErrNotFound
	}
	return ctrl.Info(), nil
}

// ActiveCount reports how many cameras are currently Running.
func (r *Registry) ActiveCount() int {
	n := 0
	for _, ctrl := range r.controllers {
		if ctrl.State() == anpr.StateRunning {
			n++
		}
	}
	return n
}
