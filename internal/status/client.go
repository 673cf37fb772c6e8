package status

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/PakinWasu/WebAppNMLLM-sub004/internal/analysis"
	"github.com/PakinWasu/WebAppNMLLM-sub004/internal/config"
	"github.com/PakinWasu/WebAppNMLLM-sub004/internal/poll"
)

// Client fetches analysis result snapshots from the external job-status
// endpoint. Its Snapshot method satisfies poll.Fetcher.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(cfg config.StatusConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Snapshot fetches the current result for subject. A 404 from the endpoint
// means the job has not published anything yet and maps to poll.ErrNotFound
// so the session treats it as "not ready" rather than a hard failure.
func (c *Client) Snapshot(ctx context.Context, subject string) (*analysis.Snapshot, error) {
	u := c.baseURL + "/api/analysis/" + url.PathEscape(subject)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching analysis for %s: %w", subject, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("analysis for %s: %w", subject, poll.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("analysis for %s: status %d: %s", subject, resp.StatusCode, body)
	}

	var snap analysis.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding analysis for %s: %w", subject, err)
	}
	return &snap, nil
}
