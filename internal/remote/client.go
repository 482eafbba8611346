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
)

// Client is the HTTP transport to a Grove remote store. It implements
// the sync coordinator's Transport interface.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a client for the remote store at baseURL,
// authenticating with the given bearer token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Insert pushes one row. A duplicate client id on the server returns
// ErrDuplicateClientID, which callers treat as success.
func (c *Client) Insert(ctx context.Context, row Row) error {
	body, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("insert row: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/events", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("insert row: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("insert row: %w", err)
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusCreated:
		return nil
	case http.StatusConflict:
		return ErrDuplicateClientID
	default:
		return fmt.Errorf("insert row: unexpected status %d", resp.StatusCode)
	}
}

// FetchAll returns every row for the authenticated owner, ordered by
// server insertion time ascending.
func (c *Client) FetchAll(ctx context.Context) ([]Row, error) {
	return c.fetch(ctx, "")
}

// FetchSince returns rows inserted strictly after the given server
// insertion time, ordered ascending. A zero time fetches everything.
func (c *Client) FetchSince(ctx context.Context, after time.Time) ([]Row, error) {
	if after.IsZero() {
		return c.fetch(ctx, "")
	}
	return c.fetch(ctx, after.UTC().Format(time.RFC3339Nano))
}

func (c *Client) fetch(ctx context.Context, after string) ([]Row, error) {
	u := c.baseURL + "/v1/events"
	if after != "" {
		u += "?after=" + url.QueryEscape(after)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch rows: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rows: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch rows: unexpected status %d", resp.StatusCode)
	}

	var rows []Row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("fetch rows: decode: %w", err)
	}
	return rows, nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
