// Package parking is the HTTP client for the external parking system
// backend (spot assignment, fee calculation).
package parking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// EntryResult is the backend's answer to a vehicle entry request.
// Business rejections (no free spot) come back success=false without an
// error.
type EntryResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	SpotName string `json:"spot,omitempty"`
}

// ExitResult is the backend's answer to a vehicle exit request.
type ExitResult struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	AmountCharged   int    `json:"amount_charged,omitempty"`
}

type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type vehicleRequest struct {
	PlateNumber string `json:"plate_number"`
}

type vehicleResponse struct {
	Message         string `json:"message"`
	Spot            string `json:"spot"`
	DurationMinutes int    `json:"duration_minutes"`
	AmountCharged   int    `json:"amount_charged"`
}

// Entry registers a vehicle entry. A non-2xx status is a business
// rejection, not an error; only transport failures return err.
func (c *Client) Entry(ctx context.Context, plate string) (EntryResult, error) {
	resp, err := c.post(ctx, "/api/vehicle/entry", plate)
	if err != nil {
		return EntryResult{}, err
	}
	return EntryResult{
		Success:  resp.ok,
		Message:  defaultMessage(resp.body.Message, resp.ok, "Entry successful", "Entry failed"),
		SpotName: resp.body.Spot,
	}, nil
}

// Exit registers a vehicle exit and reports the computed duration and
// charge.
func (c *Client) Exit(ctx context.Context, plate string) (ExitResult, error) {
	resp, err := c.post(ctx, "/api/vehicle/exit", plate)
	if err != nil {
		return ExitResult{}, err
	}
	return ExitResult{
		Success:         resp.ok,
		Message:         defaultMessage(resp.body.Message, resp.ok, "Exit successful", "Exit failed"),
		DurationMinutes: resp.body.DurationMinutes,
		AmountCharged:   resp.body.AmountCharged,
	}, nil
}

// Health reports whether the backend answers its spots listing.
func (c *Client) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/spots", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Msg("parking backend health check failed")
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type postResult struct {
	ok   bool
	body vehicleResponse
}

func (c *Client) post(ctx context.Context, path, plate string) (postResult, error) {
	payload, err := json.Marshal(vehicleRequest{PlateNumber: plate})
	if err != nil {
		return postResult{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return postResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return postResult{}, fmt.Errorf("parking backend call failed: %w", err)
	}
	defer resp.Body.Close()

	var body vehicleResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return postResult{}, fmt.Errorf("decode parking backend response: %w", err)
	}

	return postResult{ok: resp.StatusCode == http.StatusOK, body: body}, nil
}

func defaultMessage(msg string, ok bool, okDefault, failDefault string) string {
	if msg != "" {
		return msg
	}
	if ok {
		return okDefault
	}
	return failDefault
}
