// Package backend talks to the project tracker that owns bead projects.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zombor/bead-tracker/internal/colorcode"
)

// StatusError is returned for any non-2xx answer from the tracker.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}

// Bead is the part of a tracked project this service cares about.
type Bead struct {
	ID             int64                   `json:"id"`
	Name           string                  `json:"name"`
	Tags           []string                `json:"tags"`
	Status         string                  `json:"status"`
	QuantityDone   int                     `json:"quantityDone"`
	QuantityPlan   int                     `json:"quantityPlan"`
	RequiredColors []colorcode.Requirement `json:"requiredColors"`
}

// Client calls the tracker's REST API. Requests are never retried.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a Client for baseURL, e.g. http://localhost:3000/api.
// A nil httpClient gets a 30 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
	}
}

// SaveRequiredColors replaces the colour requirements of a bead project.
func (c *Client) SaveRequiredColors(ctx context.Context, beadID int64, colors []colorcode.Requirement) (*Bead, error) {
	if colors == nil {
		colors = []colorcode.Requirement{}
	}
	var bead Bead
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/beads/%d/required-colors", beadID), colors, &bead); err != nil {
		return nil, fmt.Errorf("saving required colors for bead %d: %w", beadID, err)
	}
	return &bead, nil
}

// GetBead fetches a bead project.
func (c *Client) GetBead(ctx context.Context, beadID int64) (*Bead, error) {
	var bead Bead
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/beads/%d", beadID), nil, &bead); err != nil {
		return nil, fmt.Errorf("getting bead %d: %w", beadID, err)
	}
	return &bead, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	// 204 and empty bodies leave out untouched
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
