package zonecontrol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bma-social/support-core/internal/pipeline/model"
)

// Client talks to the zone-control HTTP API. It does no retrying or
// admission control of its own; the executor's breaker and rate limiter
// own that.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) GetStatus(ctx context.Context, zoneID string) (*model.ZoneStatus, error) {
	var status model.ZoneStatus
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/zones/%s/status", zoneID), nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) SetVolume(ctx context.Context, zoneID string, level int) error {
	body := map[string]int{"volume": level}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/zones/%s/volume", zoneID), body, nil)
}

func (c *Client) SetPlaylist(ctx context.Context, zoneID, catalogID string) error {
	body := map[string]string{"playlist_id": catalogID}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/zones/%s/playlist", zoneID), body, nil)
}

func (c *Client) Play(ctx context.Context, zoneID string) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/zones/%s/play", zoneID), nil, nil)
}

func (c *Client) Pause(ctx context.Context, zoneID string) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/zones/%s/pause", zoneID), nil, nil)
}

func (c *Client) Skip(ctx context.Context, zoneID string) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/zones/%s/skip", zoneID), nil, nil)
}

func (c *Client) GetPlaylists(ctx context.Context) ([]model.Playlist, error) {
	var out struct {
		Playlists []model.Playlist `json:"playlists"`
	}
	if err := c.do(ctx, http.MethodGet, "/playlists", nil, &out); err != nil {
		return nil, err
	}
	return out.Playlists, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("zone control %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("zone control %s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response from %s: %w", path, err)
		}
	}
	return nil
}

var _ model.ZoneControl = (*Client)(nil)
