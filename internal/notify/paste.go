// Package notify delivers freshly created credentials out-of-band: the
// secret goes to a private one-time paste, the user gets an email with
// the link. Secrets and paste URLs are redacted from in-memory records
// the moment they are no longer needed.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Paste is the metadata of a published secret. The URL is only held long
// enough to put it into the email body; it is never serialized.
type Paste struct {
	ID        string
	URL       string
	CreatedAt time.Time
}

// Paster publishes secret content to a one-time-view paste service.
type Paster interface {
	PublishSecret(ctx context.Context, description, content string) (Paste, error)
}

// PasteConfig configures the paste service client.
type PasteConfig struct {
	// Endpoint is the paste creation URL.
	Endpoint string

	// Token is the bearer token for the service.
	Token string

	// Timeout for the HTTP request.
	Timeout time.Duration
}

// PasteClient talks to a gist-style paste API: POST a JSON document, get
// back an id and an HTML URL.
type PasteClient struct {
	config PasteConfig
	client *http.Client
}

// NewPasteClient creates a paste service client.
func NewPasteClient(config PasteConfig) *PasteClient {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &PasteClient{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

type pasteRequest struct {
	Description string `json:"description"`
	Content     string `json:"content"`
	Public      bool   `json:"public"`
}

type pasteResponse struct {
	ID        string    `json:"id"`
	HTMLURL   string    `json:"html_url"`
	CreatedAt time.Time `json:"created_at"`
}

// PublishSecret creates a private paste holding content. The response
// body is read fully so the connection can be reused, but the request
// payload is never logged anywhere.
func (c *PasteClient) PublishSecret(ctx context.Context, description, content string) (Paste, error) {
	if c.config.Endpoint == "" {
		return Paste{}, fmt.Errorf("paste service endpoint is not configured")
	}
	if c.config.Token == "" {
		return Paste{}, fmt.Errorf("paste service token is not configured")
	}

	payload, err := json.Marshal(pasteRequest{
		Description: description,
		Content:     content,
		Public:      false,
	})
	if err != nil {
		return Paste{}, fmt.Errorf("encoding paste payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return Paste{}, fmt.Errorf("building paste request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.Token)

	resp, err := c.client.Do(req)
	if err != nil {
		return Paste{}, fmt.Errorf("publishing secret: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Paste{}, fmt.Errorf("reading paste response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// The error surface deliberately omits the response body; some
		// paste services echo the submitted content on failure.
		return Paste{}, fmt.Errorf("paste service returned %d", resp.StatusCode)
	}

	var parsed pasteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Paste{}, fmt.Errorf("decoding paste response: %w", err)
	}
	if parsed.ID == "" || parsed.HTMLURL == "" {
		return Paste{}, fmt.Errorf("paste service response is missing id or url")
	}

	return Paste{
		ID:        parsed.ID,
		URL:       parsed.HTMLURL,
		CreatedAt: parsed.CreatedAt,
	}, nil
}
