package flowstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"deepscout/pkg/settings"
)

// TokenFunc supplies the bearer credential for the current session. Returning
// an empty token is legal; the request is sent unauthenticated and the remote
// store is expected to reject it.
type TokenFunc func(ctx context.Context) (string, error)

// settingsEnvelope is the wire envelope of the settings API.
type settingsEnvelope struct {
	Settings json.RawMessage `json:"settings"`
}

// Gateway bridges the in-memory store and the remote settings API. It does
// not retry; failures surface to the caller, which decides whether to retry.
type Gateway struct {
	baseURL string
	client  *http.Client
	token   TokenFunc
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) GatewayOption {
	return func(g *Gateway) { g.client = client }
}

// NewGateway creates a gateway for the settings API rooted at baseURL.
func NewGateway(baseURL string, token TokenFunc, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		token:   token,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) authorize(ctx context.Context, req *http.Request) {
	if g.token == nil {
		return
	}
	token, err := g.token(ctx)
	if err != nil || token == "" {
		// No credential available; let the remote store reject the request.
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

// Fetch retrieves and normalizes the current account's document. The second
// return reports whether normalization rewrote the stored shape.
func (g *Gateway) Fetch(ctx context.Context) (*settings.Document, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/api/settings", nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build settings request: %w", err)
	}
	g.authorize(ctx, req)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch settings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("settings fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read settings response: %w", err)
	}
	var envelope settingsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, false, fmt.Errorf("failed to parse settings response: %w", err)
	}

	doc, migrated := settings.Normalize(envelope.Settings)
	return doc, migrated, nil
}

// Push persists the full document to the remote store.
func (g *Gateway) Push(ctx context.Context, doc *settings.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/settings", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build settings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	g.authorize(ctx, req)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("settings save returned status %d", resp.StatusCode)
	}
	return nil
}
