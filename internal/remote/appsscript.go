package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxFetchBytes bounds a single collection download.
const maxFetchBytes = 16 << 20

// AppsScriptClient speaks the web-app protocol of the spreadsheet script:
// GET ?type=<collection> returns the rows, POST {"action":"saveAll",...} replaces them.
type AppsScriptClient struct {
	endpoint string
	http     *http.Client
}

type saveAllRequest struct {
	Action string          `json:"action"`
	Type   Collection      `json:"type"`
	Data   json.RawMessage `json:"data"`
}

func NewAppsScriptClient(endpoint string, timeout time.Duration) *AppsScriptClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &AppsScriptClient{
		endpoint: endpoint,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *AppsScriptClient) Fetch(ctx context.Context, col Collection) (json.RawMessage, error) {
	if !col.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, col)
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse remote url: %w", err)
	}
	q := u.Query()
	q.Set("type", string(col))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrNetworkFailure, col, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: fetch %s: status %d", ErrNetworkFailure, col, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrNetworkFailure, col, err)
	}

	return ensureArray(body)
}

// SaveAll posts the full replacement list. The script answers with a redirect
// page whose status is meaningless to us, so only transport errors are reported.
func (c *AppsScriptClient) SaveAll(ctx context.Context, col Collection, data json.RawMessage) error {
	if !col.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, col)
	}

	body, err := json.Marshal(saveAllRequest{Action: "saveAll", Type: col, Data: data})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	// a simple content type keeps the script from needing a CORS preflight
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: save %s: %v", ErrNetworkFailure, col, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	return nil
}
