// Package push provides a client for the external push delivery gateway.
//
// It sends a rendered title/body payload to a specific device token and
// reports success or failure. Designed to be used as the delivery channel of
// the notification scheduler.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Note is the rendered content delivered to a device.
type Note struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Client represents a push gateway client.
type Client struct {
	baseURL string       // gateway base URL
	apiKey  string       // server key for authentication
	client  *http.Client // HTTP client used to make requests
}

// NewClient creates a new push gateway Client. The timeout bounds each send
// in addition to any caller-supplied context deadline.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// sendRequest represents the payload for the gateway send API.
type sendRequest struct {
	To           string            `json:"to"`   // target device token
	Notification Note              `json:"notification"`
	Data         map[string]string `json:"data,omitempty"` // opaque key/value payload
}

// Send delivers a notification to the given device token.
//
// It constructs the request payload, POSTs it to the gateway, and returns an
// error if the request fails, times out, or the gateway responds with a
// non-2xx status.
func (c *Client) Send(ctx context.Context, deviceToken string, note Note, data map[string]string) error {
	reqBody := sendRequest{
		To:           deviceToken,
		Notification: note,
		Data:         data,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push gateway error: %s: %s", resp.Status, detail)
	}

	return nil
}
