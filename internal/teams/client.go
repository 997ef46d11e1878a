package teams

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ignite/alertops/internal/pkg/httpretry"
)

// Client posts adaptive cards to channel webhooks.
type Client struct {
	http httpretry.HTTPDoer
}

// NewClient builds a webhook client. doer may be nil for a retrying
// default.
func NewClient(doer httpretry.HTTPDoer) *Client {
	if doer == nil {
		doer = httpretry.NewRetryClient(&http.Client{Timeout: 15 * time.Second}, 2)
	}
	return &Client{http: doer}
}

// Post sends the notification card to the given webhook URL.
func (c *Client) Post(ctx context.Context, webhookURL string, n Notification) error {
	if webhookURL == "" {
		return fmt.Errorf("no webhook configured")
	}

	data, err := json.Marshal(buildCard(n))
	if err != nil {
		return fmt.Errorf("marshaling card: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("posting notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("posting notification: status %d: %s", resp.StatusCode, msg)
	}
	return nil
}
