package newsletter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.buttondown.email"

// Client is a minimal Buttondown API client. Only email creation is
// needed; drafts and subscriber management stay in the Buttondown UI.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(apiKey string) *Client {
	return NewClientWithBaseURL(defaultBaseURL, apiKey)
}

func NewClientWithBaseURL(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type emailRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// CreateEmail publishes one email to the newsletter audience.
func (c *Client) CreateEmail(ctx context.Context, subject, body string) error {
	if c.apiKey == "" {
		return fmt.Errorf("newsletter api key is not configured")
	}

	payload, err := json.Marshal(emailRequest{Subject: subject, Body: body})
	if err != nil {
		return fmt.Errorf("failed to marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/emails", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("newsletter request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("newsletter api returned %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	return nil
}
