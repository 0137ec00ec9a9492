// Package submission forwards completed registrations to the remote supplier API.
package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/supplierhub/supplierhub/internal/suppliers"
)

const maxErrorBody = 4 << 10

// Client posts supplier records to {baseURL}/suppliers.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ suppliers.Submitter = (*Client)(nil)

// NewClient constructs a new client. A zero timeout means 10 seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Ping checks if the remote service is available.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/health", c.baseURL), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &suppliers.TransportError{Op: "ping", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return &suppliers.TransportError{Op: "ping", StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
	}
	return nil
}

// Submit sends rec and returns it with the id the remote side assigned, if any.
// Every failure is a *suppliers.TransportError.
func (c *Client) Submit(ctx context.Context, rec suppliers.Supplier) (suppliers.Supplier, error) {
	rec.PasswordHash = ""
	payload, err := json.Marshal(rec)
	if err != nil {
		return suppliers.Supplier{}, &suppliers.TransportError{Op: "encode", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/suppliers", c.baseURL), bytes.NewReader(payload))
	if err != nil {
		return suppliers.Supplier{}, &suppliers.TransportError{Op: "submit", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return suppliers.Supplier{}, &suppliers.TransportError{Op: "submit", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return suppliers.Supplier{}, &suppliers.TransportError{
			Op:         "submit",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("remote rejected submission: %s", strings.TrimSpace(string(body))),
		}
	}

	var ack struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil && err != io.EOF {
		return suppliers.Supplier{}, &suppliers.TransportError{Op: "decode", StatusCode: resp.StatusCode, Err: err}
	}
	if ack.ID != "" {
		rec.ID = ack.ID
	}
	return rec, nil
}
