package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	netHTTP "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpr-service/internal/broadcast"
	"lpr-service/internal/confirm"
	"lpr-service/internal/detector"
	"lpr-service/internal/domain/anpr"
	"lpr-service/internal/parking"
	"lpr-service/internal/service"
	"lpr-service/internal/stream"
)

type stubDetector struct {
	candidates []anpr.RawCandidate
}

func (d *stubDetector) Detect(_ context.Context, _ detector.Frame) ([]anpr.RawCandidate, error) {
	return d.candidates, nil
}

type stubBackend struct{}

func (stubBackend) Entry(_ context.Context, _ string) (parking.EntryResult, error) {
	return parking.EntryResult{Success: true, Message: "Vehicle entered", SpotName: "A1"}, nil
}

func (stubBackend) Exit(_ context.Context, _ string) (parking.ExitResult, error) {
	return parking.ExitResult{Success: true, Message: "Vehicle exited"}, nil
}

func newTestRouter(t *testing.T, det detector.Detector) (*gin.Engine, *broadcast.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zerolog.Nop()

	parkingSrv := httptest.NewServer(netHTTP.HandlerFunc(func(w netHTTP.ResponseWriter, r *netHTTP.Request) {
		w.WriteHeader(netHTTP.StatusOK)
	}))
	t.Cleanup(parkingSrv.Close)

	hub := broadcast.NewHub(log)
	cameras := []anpr.CameraSource{
		{ID: "cam-entry", Name: "Entry Gate", Role: anpr.RoleEntry, Source: t.TempDir()},
		{ID: "cam-exit", Name: "Exit Gate", Role: anpr.RoleExit, Source: t.TempDir()},
	}
	workflow := confirm.NewWorkflow(stubBackend{}, hub, log)
	registry := stream.NewRegistry(cameras, det, hub, workflow, 3*time.Second, stream.Options{MinConfidence: 0.6}, log)
	hub.SetSnapshot(func() broadcast.CamerasEvent {
		return broadcast.NewCamerasEvent(registry.Snapshot())
	})

	handler := NewHandler(
		registry,
		service.NewDetectService(det, 0.6, log),
		workflow,
		parking.NewClient(parkingSrv.URL, time.Second, log),
		hub,
		log,
	)
	router := gin.New()
	handler.Register(router)
	return router, hub
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestListCameras(t *testing.T) {
	router, _ := newTestRouter(t, &stubDetector{})

	rec := doJSON(t, router, netHTTP.MethodGet, "/api/v1/cameras", nil)
	require.Equal(t, netHTTP.StatusOK, rec.Code)

	body := decodeData(t, rec)
	data, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 2)
	first := data[0].(map[string]any)
	assert.Equal(t, "cam-entry", first["id"])
	assert.Equal(t, "idle", first["state"])
}

func TestGetCamera(t *testing.T) {
	router, _ := newTestRouter(t, &stubDetector{})

	rec := doJSON(t, router, netHTTP.MethodGet, "/api/v1/cameras/cam-exit", nil)
	require.Equal(t, netHTTP.StatusOK, rec.Code)
	data := decodeData(t, rec)["data"].(map[string]any)
	assert.Equal(t, "Exit Gate", data["name"])

	rec = doJSON(t, router, netHTTP.MethodGet, "/api/v1/cameras/ghost", nil)
	assert.Equal(t, netHTTP.StatusNotFound, rec.Code)
	assert.Contains(t, decodeData(t, rec), "error")
}

func TestStartStopCamera(t *testing.T) {
	router, _ := newTestRouter(t, &stubDetector{})

	rec := doJSON(t, router, netHTTP.MethodPost, "/api/v1/cameras/cam-entry/start", nil)
	assert.Equal(t, netHTTP.StatusOK, rec.Code)

	rec = doJSON(t, router, netHTTP.MethodPost, "/api/v1/cameras/cam-entry/stop", nil)
	assert.Equal(t, netHTTP.StatusOK, rec.Code)

	rec = doJSON(t, router, netHTTP.MethodPost, "/api/v1/cameras/ghost/start", nil)
	assert.Equal(t, netHTTP.StatusNotFound, rec.Code)
}

func TestStartAllReportsPerCamera(t *testing.T) {
	router, _ := newTestRouter(t, &stubDetector{})

	rec := doJSON(t, router, netHTTP.MethodPost, "/api/v1/cameras/start-all", nil)
	require.Equal(t, netHTTP.StatusOK, rec.Code)
	data := decodeData(t, rec)["data"].([]any)
	require.Len(t, data, 2)

	rec = doJSON(t, router, netHTTP.MethodPost, "/api/v1/cameras/stop-all", nil)
	assert.Equal(t, netHTTP.StatusOK, rec.Code)
}

func encodedTestImage(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDetectEndpoint(t *testing.T) {
	det := &stubDetector{candidates: []anpr.RawCandidate{
		{RawText: "WPCA1234", Confidence: 0.9},
	}}
	router, _ := newTestRouter(t, det)

	rec := doJSON(t, router, netHTTP.MethodPost, "/api/v1/detect", gin.H{"image": encodedTestImage(t)})
	require.Equal(t, netHTTP.StatusOK, rec.Code)
	data := decodeData(t, rec)["data"].(map[string]any)
	assert.Equal(t, "WP CA-1234", data["plate"])
	assert.Equal(t, true, data["valid"])
}

func TestDetectEndpointRejectsBadInput(t *testing.T) {
	router, _ := newTestRouter(t, &stubDetector{})

	rec := doJSON(t, router, netHTTP.MethodPost, "/api/v1/detect", gin.H{})
	assert.Equal(t, netHTTP.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, netHTTP.MethodPost, "/api/v1/detect", gin.H{"image": "%%%not-base64%%%"})
	assert.Equal(t, netHTTP.StatusBadRequest, rec.Code)
}

func TestDetectEndpointNoPlate(t *testing.T) {
	router, _ := newTestRouter(t, &stubDetector{})

	rec := doJSON(t, router, netHTTP.MethodPost, "/api/v1/detect", gin.H{"image": encodedTestImage(t)})
	assert.Equal(t, netHTTP.StatusNotFound, rec.Code)
}

func TestConfirmEntry(t *testing.T) {
	router, _ := newTestRouter(t, &stubDetector{})

	rec := doJSON(t, router, netHTTP.MethodPost, "/api/v1/confirm/entry", gin.H{"plate_number": "WP CA-1234"})
	require.Equal(t, netHTTP.StatusOK, rec.Code)
	data := decodeData(t, rec)["data"].(map[string]any)
	assert.Equal(t, true, data["success"])
	assert.Equal(t, "A1", data["spot_name"])

	rec = doJSON(t, router, netHTTP.MethodPost, "/api/v1/confirm/entry", gin.H{})
	assert.Equal(t, netHTTP.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t, &stubDetector{})

	rec := doJSON(t, router, netHTTP.MethodGet, "/health", nil)
	require.Equal(t, netHTTP.StatusOK, rec.Code)
	body := decodeData(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "up", body["parking_backend"])
}
