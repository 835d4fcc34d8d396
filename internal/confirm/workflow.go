// Package confirm turns a detected plate into a committed entry or exit
// against the external parking backend.
package confirm

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"lpr-service/internal/broadcast"
	"lpr-service/internal/domain/anpr"
	"lpr-service/internal/parking"
)

// inflightTTL caps how long a (plate, action) pair can stay marked
// outstanding if a flight wedges; a stuck entry self-clears instead of
// blocking the plate forever.
const inflightTTL = 30 * time.Second

// Backend is the slice of the parking client the workflow needs.
type Backend interface {
	Entry(ctx context.Context, plate string) (parking.EntryResult, error)
	Exit(ctx context.Context, plate string) (parking.ExitResult, error)
}

// Workflow drives Pending -> Committed/Rejected for one confirmation at
// a time per (plate, action) pair. It never retries: a failed backend
// call is reported as a failed result, and retrying is the caller's
// explicit decision.
type Workflow struct {
	backend  Backend
	hub      *broadcast.Hub
	inflight *gocache.Cache
	log      zerolog.Logger
}

func NewWorkflow(backend Backend, hub *broadcast.Hub, log zerolog.Logger) *Workflow {
	return &Workflow{
		backend:  backend,
		hub:      hub,
		inflight: gocache.New(inflightTTL, inflightTTL),
		log:      log,
	}
}

// Confirm calls the backend endpoint for the action exactly once and
// broadcasts the result regardless of outcome. A second Confirm for the
// same (plate, action) while the first is outstanding resolves
// immediately as an already-in-progress rejection without touching the
// backend.
func (w *Workflow) Confirm(ctx context.Context, plate string, action anpr.ConfirmAction) anpr.ConfirmationResult {
	key := string(action) + "|" + plate

	// go-cache's Add is an atomic add-if-absent: exactly one of two
	// near-simultaneous confirmations wins the slot.
	if err := w.inflight.Add(key, struct{}{}, inflightTTL); err != nil {
		w.log.Warn().
			Str("plate", plate).
			Str("action", string(action)).
			Msg("duplicate confirmation rejected")
		result := anpr.ConfirmationResult{
			Action:  action,
			Plate:   plate,
			Success: false,
			Message: fmt.Sprintf("%s confirmation for %s already in progress", action, plate),
		}
		w.hub.Publish(broadcast.NewConfirmationEvent(result))
		return result
	}
	defer w.inflight.Delete(key)

	result := w.call(ctx, plate, action)

	w.log.Info().
		Str("plate", plate).
		Str("action", string(action)).
		Bool("success", result.Success).
		Str("message", result.Message).
		Msg("confirmation resolved")

	w.hub.Publish(broadcast.NewConfirmationEvent(result))
	return result
}

func (w *Workflow) call(ctx context.Context, plate string, action anpr.ConfirmAction) anpr.ConfirmationResult {
	result := anpr.ConfirmationResult{Action: action, Plate: plate}

	switch action {
	case anpr.ActionEntry:
		res, err := w.backend.Entry(ctx, plate)
		if err != nil {
			result.Message = fmt.Sprintf("backend unreachable: %v", err)
			return result
		}
		result.Success = res.Success
		result.Message = res.Message
		result.SpotName = res.SpotName
	case anpr.ActionExit:
		res, err := w.backend.Exit(ctx, plate)
		if err != nil {
			result.Message = fmt.Sprintf("backend unreachable: %v", err)
			return result
		}
		result.Success = res.Success
		result.Message = res.Message
		result.DurationMinutes = res.DurationMinutes
		result.AmountCharged = res.AmountCharged
	default:
		result.Message = fmt.Sprintf("unknown action %q", action)
	}
	return result
}
