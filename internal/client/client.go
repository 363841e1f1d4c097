// Package client talks to the progress API on behalf of a playback session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aliskhannn/academy-tube/internal/domain/entities"
)

var (
	ErrNotFound     = errors.New("assignment not found")
	ErrUnauthorized = errors.New("unauthorized")
)

// StatusError is returned for unexpected response codes.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status: %d", e.Code)
	}
	return fmt.Sprintf("unexpected status: %d: %s", e.Code, e.Message)
}

// Client calls the progress API with a bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client. The token is attached to every request.
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

type assignmentResponse struct {
	ID              string          `json:"id"`
	IsCompleted     bool            `json:"is_completed"`
	ProgressPercent float64         `json:"progress_percent"`
	LastPosition    float64         `json:"last_position"`
	PreventSkip     bool            `json:"prevent_skip"`
	WatchedSeconds  float64         `json:"watched_seconds"`
	LastWatchedAt   *time.Time      `json:"last_watched_at"`
	StartedAt       *time.Time      `json:"started_at"`
	Video           json.RawMessage `json:"video"`
}

// GetAssignment reads the assignment state at the start of a session.
func (c *Client) GetAssignment(ctx context.Context, id string) (*entities.Assignment, error) {
	var resp assignmentResponse
	if err := c.do(ctx, http.MethodGet, "/v1/assignments/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}

	video, err := normalizeOne[entities.Video](resp.Video)
	if err != nil {
		return nil, fmt.Errorf("get assignment: video: %w", err)
	}

	return &entities.Assignment{
		ID:              resp.ID,
		IsCompleted:     resp.IsCompleted,
		ProgressPercent: resp.ProgressPercent,
		LastPosition:    resp.LastPosition,
		PreventSkip:     resp.PreventSkip,
		WatchedSeconds:  resp.WatchedSeconds,
		LastWatchedAt:   resp.LastWatchedAt,
		StartedAt:       resp.StartedAt,
		Video:           video,
	}, nil
}

// SaveProgress writes percent, completion and position.
func (c *Client) SaveProgress(ctx context.Context, assignmentID string, update entities.ProgressUpdate) error {
	path := "/v1/assignments/" + url.PathEscape(assignmentID) + "/progress"
	if err := c.do(ctx, http.MethodPatch, path, update, nil); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// RecordFirstWatch marks the assignment started and appends a watch start row.
func (c *Client) RecordFirstWatch(ctx context.Context, assignmentID string) error {
	body := map[string]string{"assignment_id": assignmentID}
	if err := c.do(ctx, http.MethodPost, "/v1/watch-starts", body, nil); err != nil {
		return fmt.Errorf("record first watch: %w", err)
	}
	return nil
}

// RecordSegments appends played ranges.
func (c *Client) RecordSegments(ctx context.Context, assignmentID string, segments []entities.WatchSegment) error {
	path := "/v1/assignments/" + url.PathEscape(assignmentID) + "/segments"
	body := map[string][]entities.WatchSegment{"segments": segments}
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("record segments: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &StatusError{Code: resp.StatusCode, Message: readError(resp.Body)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readError(r io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&payload); err != nil {
		return ""
	}
	return payload.Error
}
