package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"lpr-service/internal/domain/anpr"
)

// Client calls a detector sidecar over HTTP. The sidecar receives the
// raw frame and responds with zero or more (box, text, confidence)
// candidates; it also handles resizing and overlay rendering, steered
// by the preview hints sent with every request.
type Client struct {
	baseURL string
	hints   PreviewHints
	http    *http.Client
	log     zerolog.Logger
}

// PreviewHints are forwarded to the detector so returned imagery fits
// the configured preview dimensions and JPEG quality.
type PreviewHints struct {
	Width   int `json:"width,omitempty"`
	Height  int `json:"height,omitempty"`
	Quality int `json:"quality,omitempty"`
}

type detectRequest struct {
	CameraID string       `json:"camera_id,omitempty"`
	Image    []byte       `json:"image"`
	Preview  PreviewHints `json:"preview"`
}

type detectResponse struct {
	Candidates []struct {
		Box        anpr.BoundingBox `json:"box"`
		Text       string           `json:"text"`
		Confidence float64          `json:"confidence"`
	} `json:"candidates"`
}

func NewClient(baseURL string, timeout time.Duration, hints PreviewHints, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		hints:   hints,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Detect submits one frame and decodes the candidates. Any transport,
// status, or decoding problem is returned as an error; the caller
// treats it as a per-frame detector failure.
func (c *Client) Detect(ctx context.Context, frame Frame) ([]anpr.RawCandidate, error) {
	body, err := json.Marshal(detectRequest{
		CameraID: frame.CameraID,
		Image:    frame.Image,
		Preview:  c.hints,
	})
	if err != nil {
		return nil, fmt.Errorf("encode detect request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build detect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detector call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detector returned status %d", resp.StatusCode)
	}

	var decoded detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode detector response: %w", err)
	}

	now := time.Now()
	candidates := make([]anpr.RawCandidate, 0, len(decoded.Candidates))
	for _, d := range decoded.Candidates {
		candidates = append(candidates, anpr.RawCandidate{
			CameraID:   frame.CameraID,
			Box:        d.Box,
			RawText:    d.Text,
			Confidence: d.Confidence,
			CapturedAt: now,
		})
	}

	c.log.Debug().
		Str("camera_id", frame.CameraID).
		Int("candidates", len(candidates)).
		Msg("detector call completed")

	return candidates, nil
}
