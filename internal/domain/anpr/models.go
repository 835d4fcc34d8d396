package anpr

import (
	"time"
)

// CameraRole classifies what a camera watches over. Entry and exit
// cameras drive the auto confirmation flow; monitor cameras only
// produce detection events.
type CameraRole string

const (
	RoleEntry   CameraRole = "entry"
	RoleExit    CameraRole = "exit"
	RoleMonitor CameraRole = "monitor"
)

// CameraState is the lifecycle state of a camera stream. Errored is
// transient: the controller surfaces the error and settles back to Idle.
type CameraState string

const (
	StateIdle     CameraState = "idle"
	StateStarting CameraState = "starting"
	StateRunning  CameraState = "running"
	StateStopping CameraState = "stopping"
	StateErrored  CameraState = "errored"
)

// CameraSource is the immutable identity of a configured camera. Run
// state is owned by the stream controller, never mutated through this
// struct.
type CameraSource struct {
	ID     string     `json:"id" mapstructure:"id"`
	Name   string     `json:"name" mapstructure:"name"`
	Role   CameraRole `json:"role" mapstructure:"role"`
	Source string     `json:"source" mapstructure:"source"`
	Loop   bool       `json:"loop" mapstructure:"loop"`
}

// BoundingBox is a pixel-coordinate region reported by the detector.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// RawCandidate is a single unfiltered recognition result for one frame.
// Consumed immediately by the detection gate; never persisted.
type RawCandidate struct {
	CameraID   string      `json:"camera_id"`
	Box        BoundingBox `json:"box"`
	RawText    string      `json:"raw_text"`
	Confidence float64     `json:"confidence"`
	CapturedAt time.Time   `json:"captured_at"`
}

// DetectionEvent is the durable unit surfaced to subscribers and the
// confirmation workflow. Immutable once created.
type DetectionEvent struct {
	ID         string     `json:"id"`
	CameraID   string     `json:"camera_id"`
	CameraRole CameraRole `json:"camera_role"`
	Plate      string     `json:"plate"`
	RawText    string     `json:"raw_text"`
	Confidence float64    `json:"confidence"`
	Valid      bool       `json:"valid"`
	DetectedAt time.Time  `json:"detected_at"`
}

// ConfirmAction selects which parking backend endpoint a confirmation
// drives.
type ConfirmAction string

const (
	ActionEntry ConfirmAction = "entry"
	ActionExit  ConfirmAction = "exit"
)

// ConfirmationRequest is an inbound request to commit a plate against
// the parking backend.
type ConfirmationRequest struct {
	Plate  string        `json:"plate_number" binding:"required"`
	Action ConfirmAction `json:"-"`
}

// ConfirmationResult is the outcome of one confirmation attempt.
// Backend rejections are normal results with Success=false, not errors.
type ConfirmationResult struct {
	Action          ConfirmAction `json:"action"`
	Plate           string        `json:"plate_number"`
	Success         bool          `json:"success"`
	Message         string        `json:"message"`
	SpotName        string        `json:"spot_name,omitempty"`
	DurationMinutes int           `json:"duration_minutes,omitempty"`
	AmountCharged   int           `json:"amount_charged,omitempty"`
}

// CameraInfo is a read-only snapshot of one camera, suitable for the
// list endpoint and the websocket connect-time catch-up.
type CameraInfo struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Role       CameraRole  `json:"role"`
	State      CameraState `json:"state"`
	Source     string      `json:"source"`
	FrameCount uint64      `json:"frame_count"`
	Error      string      `json:"error,omitempty"`
}
