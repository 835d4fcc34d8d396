package broadcast

import (
	"time"

	"lpr-service/internal/domain/anpr"
)

// Event type discriminators carried in every payload's "type" field.
const (
	TypeCameras      = "cameras"
	TypePreview      = "preview"
	TypeDetection    = "detection"
	TypeConfirmation = "confirmation"
	TypeCameraState  = "camera_state"
)

// CamerasEvent is the connect-time snapshot of all configured cameras.
type CamerasEvent struct {
	Type    string            `json:"type"`
	Cameras []anpr.CameraInfo `json:"cameras"`
}

func NewCamerasEvent(cameras []anpr.CameraInfo) CamerasEvent {
	return CamerasEvent{Type: TypeCameras, Cameras: cameras}
}

// PreviewEvent carries one encoded preview frame. Frame is base64 on
// the wire.
type PreviewEvent struct {
	Type      string    `json:"type"`
	CameraID  string    `json:"camera_id"`
	Frame     []byte    `json:"frame"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPreviewEvent(cameraID string, frame []byte, ts time.Time) PreviewEvent {
	return PreviewEvent{Type: TypePreview, CameraID: cameraID, Frame: frame, Timestamp: ts}
}

// DetectionEvent announces a newly surfaced plate detection.
type DetectionEvent struct {
	Type string `json:"type"`
	anpr.DetectionEvent
}

func NewDetectionEvent(d anpr.DetectionEvent) DetectionEvent {
	return DetectionEvent{Type: TypeDetection, DetectionEvent: d}
}

// ConfirmationEvent announces the result of a confirmation attempt,
// successful or not.
type ConfirmationEvent struct {
	Type string `json:"type"`
	anpr.ConfirmationResult
}

func NewConfirmationEvent(r anpr.ConfirmationResult) ConfirmationEvent {
	return ConfirmationEvent{Type: TypeConfirmation, ConfirmationResult: r}
}

// CameraStateEvent announces a camera lifecycle transition.
type CameraStateEvent struct {
	Type     string           `json:"type"`
	CameraID string           `json:"camera_id"`
	State    anpr.CameraState `json:"state"`
	Error    string           `json:"error,omitempty"`
}

func NewCameraStateEvent(cameraID string, state anpr.CameraState, errMsg string) CameraStateEvent {
	return CameraStateEvent{Type: TypeCameraState, CameraID: cameraID, State: state, Error: errMsg}
}
