package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Connect drives playback on a remote provider device (the Connect API
// path used when the host's browser cannot embed the playback SDK). It
// leans on the auto-stop transition for clip bounding, so Play ignores the
// remaining-duration hint beyond logging it.
type Connect struct {
	baseURL  string
	token    func() string
	deviceID string
	client   *http.Client
	log      *zap.Logger
}

func NewConnect(baseURL string, token func() string, deviceID string, log *zap.Logger) *Connect {
	return &Connect{
		baseURL:  baseURL,
		token:    token,
		deviceID: deviceID,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

func (c *Connect) Play(ctx context.Context, uri string, remaining time.Duration) error {
	body, _ := json.Marshal(map[string]any{"uris": []string{uri}})
	c.log.Debug("remote play", zap.String("uri", uri), zap.Duration("remaining", remaining))
	return c.put(ctx, "/me/player/play", body)
}

func (c *Connect) Pause(ctx context.Context) error {
	return c.put(ctx, "/me/player/pause", nil)
}

func (c *Connect) Stop(ctx context.Context) error {
	// The Connect API has no stop; pause is as stopped as it gets.
	return c.Pause(ctx)
}

func (c *Connect) Ready(ctx context.Context) bool {
	return c.deviceID != "" && c.token() != ""
}

func (c *Connect) put(ctx context.Context, path string, body []byte) error {
	u := c.baseURL + path
	if c.deviceID != "" {
		u += "?device_id=" + url.QueryEscape(c.deviceID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build player request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("player request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("player returned %d: %s", resp.StatusCode, msg)
	}
	return nil
}
