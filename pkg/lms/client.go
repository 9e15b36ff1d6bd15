package lms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks to the external learning platform. Provisioning is opaque to
// the workflow: it sends (studentNo, email) and receives a sync token.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient constructs an LMS client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type provisionRequest struct {
	StudentNo string `json:"student_no"`
	Email     string `json:"email"`
}

type provisionResponse struct {
	SyncToken string `json:"sync_token"`
}

// Provision registers the student on the learning platform and returns the
// platform's sync token. Failures are transient; the call is retry-safe.
func (c *Client) Provision(ctx context.Context, studentNo, email string) (string, error) {
	payload, err := json.Marshal(provisionRequest{StudentNo: studentNo, Email: email})
	if err != nil {
		return "", fmt.Errorf("marshal lms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/accounts", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build lms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call lms: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("lms returned status %d", resp.StatusCode)
	}

	var out provisionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode lms response: %w", err)
	}
	if out.SyncToken == "" {
		return "", fmt.Errorf("lms response missing sync token")
	}
	return out.SyncToken, nil
}
