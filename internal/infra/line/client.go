package line

import (
	"billnotify/internal/config"
	"billnotify/internal/domain"
	"billnotify/internal/ports"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

var _ ports.Messenger = (*Client)(nil)

// APIError is a non-2xx answer from the messaging API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("messaging API returned %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	HTTP    *http.Client
	PushURL string
	Token   string
}

func New(cfg config.Line) *Client {
	return &Client{
		HTTP:    &http.Client{Timeout: cfg.Timeout},
		PushURL: cfg.PushURL,
		Token:   cfg.AccessToken,
	}
}

type pushRequest struct {
	To       string `json:"to"`
	Messages []any  `json:"messages"`
}

func (c *Client) Push(ctx context.Context, to string, r domain.Reminder) error {
	b, err := json.Marshal(pushRequest{To: to, Messages: []any{Flex(r)}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.PushURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("push message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
