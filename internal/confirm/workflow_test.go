package confirm

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpr-service/internal/broadcast"
	"lpr-service/internal/domain/anpr"
	"lpr-service/internal/parking"
)

// fakeBackend records calls and can hold a flight open until released.
type fakeBackend struct {
	mu         sync.Mutex
	entryCalls int
	exitCalls  int
	entryRes   parking.EntryResult
	exitRes    parking.ExitResult
	entryErr   error
	block      chan struct{}
}

func (f *fakeBackend) Entry(ctx context.Context, plate string) (parking.EntryResult, error) {
	f.mu.Lock()
	f.entryCalls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.entryRes, f.entryErr
}

func (f *fakeBackend) Exit(ctx context.Context, plate string) (parking.ExitResult, error) {
	f.mu.Lock()
	f.exitCalls++
	f.mu.Unlock()
	return f.exitRes, nil
}

func (f *fakeBackend) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entryCalls, f.exitCalls
}

func newWorkflow(backend Backend) (*Workflow, *broadcast.Hub) {
	hub := broadcast.NewHub(zerolog.Nop())
	hub.SetSnapshot(func() broadcast.CamerasEvent { return broadcast.NewCamerasEvent(nil) })
	return NewWorkflow(backend, hub, zerolog.Nop()), hub
}

func awaitConfirmation(t *testing.T, sub *broadcast.Subscriber) anpr.ConfirmationResult {
	t.Helper()
	for {
		select {
		case payload, ok := <-sub.C():
			require.True(t, ok)
			var probe struct {
				Type string `json:"type"`
			}
			require.NoError(t, json.Unmarshal(payload, &probe))
			if probe.Type != broadcast.TypeConfirmation {
				continue
			}
			var event broadcast.ConfirmationEvent
			require.NoError(t, json.Unmarshal(payload, &event))
			return event.ConfirmationResult
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for confirmation event")
		}
	}
}

func TestConfirmEntrySuccess(t *testing.T) {
	backend := &fakeBackend{entryRes: parking.EntryResult{Success: true, Message: "Vehicle parked", SpotName: "A-3"}}
	w, hub := newWorkflow(backend)
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	result := w.Confirm(context.Background(), "WP CA-1234", anpr.ActionEntry)
	assert.True(t, result.Success)
	assert.Equal(t, "A-3", result.SpotName)

	event := awaitConfirmation(t, sub)
	assert.True(t, event.Success)
	assert.Equal(t, "WP CA-1234", event.Plate)
	assert.Equal(t, anpr.ActionEntry, event.Action)
}

func TestConfirmBackendRejectionIsResult(t *testing.T) {
	backend := &fakeBackend{entryRes: parking.EntryResult{Success: false, Message: "No free spot"}}
	w, hub := newWorkflow(backend)
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	result := w.Confirm(context.Background(), "WP CA-1234", anpr.ActionEntry)
	assert.False(t, result.Success)
	assert.Equal(t, "No free spot", result.Message)

	event := awaitConfirmation(t, sub)
	assert.False(t, event.Success)
}

func TestConfirmTransportFailureIsResult(t *testing.T) {
	backend := &fakeBackend{entryErr: context.DeadlineExceeded}
	w, _ := newWorkflow(backend)

	result := w.Confirm(context.Background(), "WP CA-1234", anpr.ActionEntry)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "backend unreachable")
}

func TestConfirmSingleFlight(t *testing.T) {
	backend := &fakeBackend{
		entryRes: parking.EntryResult{Success: true, Message: "ok"},
		block:    make(chan struct{}),
	}
	w, _ := newWorkflow(backend)

	firstDone := make(chan anpr.ConfirmationResult, 1)
	go func() {
		firstDone <- w.Confirm(context.Background(), "WP CA-1234", anpr.ActionEntry)
	}()

	// Wait until the first flight has reached the backend.
	require.Eventually(t, func() bool {
		entries, _ := backend.calls()
		return entries == 1
	}, time.Second, 5*time.Millisecond)

	// Second confirm for the identical pair resolves immediately.
	second := w.Confirm(context.Background(), "WP CA-1234", anpr.ActionEntry)
	assert.False(t, second.Success)
	assert.Contains(t, second.Message, "already in progress")

	entries, _ := backend.calls()
	assert.Equal(t, 1, entries, "only one flight may reach the backend")

	close(backend.block)
	first := <-firstDone
	assert.True(t, first.Success)

	// After the first resolves, the pair is free again.
	backend.mu.Lock()
	backend.block = nil
	backend.mu.Unlock()
	third := w.Confirm(context.Background(), "WP CA-1234", anpr.ActionEntry)
	assert.True(t, third.Success)
}

func TestConfirmDifferentActionsIndependent(t *testing.T) {
	backend := &fakeBackend{
		entryRes: parking.EntryResult{Success: true, Message: "in"},
		exitRes:  parking.ExitResult{Success: true, Message: "out", DurationMinutes: 12},
	}
	w, _ := newWorkflow(backend)

	entry := w.Confirm(context.Background(), "WP CA-1234", anpr.ActionEntry)
	exit := w.Confirm(context.Background(), "WP CA-1234", anpr.ActionExit)
	assert.True(t, entry.Success)
	assert.True(t, exit.Success)
	assert.Equal(t, 12, exit.DurationMinutes)
}
