package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/roomlink-project/roomlink-go/pkg/pairing"
)

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL is the base URL of the pairing backend
	// (e.g. "https://pairing.example.com").
	BaseURL string

	// HostID is the stable identifier of this host, presented during
	// registration. Required.
	HostID string

	// DisplayName is the human-readable host name announced during
	// registration.
	DisplayName string

	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used.
	HTTPClient *http.Client

	// Logger receives request diagnostics. Silent when nil.
	Logger *slog.Logger
}

// Client talks to the pairing backend. After a successful Register it
// caches the issued JWT and tenant for authorized calls.
type Client struct {
	baseURL     string
	hostID      string
	displayName string
	httpClient  *http.Client
	logger      *slog.Logger

	mu     sync.RWMutex
	jwt    string
	tenant string
}

// NewClient creates a pairing backend client.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("backend: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("backend: invalid BaseURL %q: %w", config.BaseURL, err)
	}
	if config.HostID == "" {
		return nil, fmt.Errorf("backend: HostID is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		hostID:      config.HostID,
		displayName: config.DisplayName,
		httpClient:  httpClient,
		logger:      logger,
	}, nil
}

// Registration is the backend's response to a successful host
// registration.
type Registration struct {
	// Token is the JWT the host presents to the relay.
	Token string `json:"token"`
	// Tenant is the namespace the host is scoped to.
	Tenant string `json:"tenantId"`
	// RoomID identifies the room assigned to the host.
	RoomID string `json:"roomId"`
	// RoomName is the display name of the assigned room.
	RoomName string `json:"roomName,omitempty"`
}

type registerRequest struct {
	PairingCode string `json:"pairingCode"`
	HostID      string `json:"hostId"`
	DisplayName string `json:"displayName,omitempty"`
}

// Register validates the pairing code with the backend and, on success,
// caches the issued JWT and tenant for subsequent authorized calls.
func (c *Client) Register(ctx context.Context, pairingCode string) (*Registration, error) {
	if pairingCode == "" {
		return nil, fmt.Errorf("backend: pairing code is required")
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/v1/hosts/register", registerRequest{
		PairingCode: pairingCode,
		HostID:      c.hostID,
		DisplayName: c.displayName,
	})
	if err != nil {
		return nil, fmt.Errorf("backend: registration failed: %w", err)
	}

	var reg Registration
	if err := json.Unmarshal(body, &reg); err != nil {
		return nil, fmt.Errorf("backend: failed to parse registration response: %w", err)
	}
	if reg.Token == "" {
		return nil, fmt.Errorf("backend: registration response carries no token")
	}

	c.mu.Lock()
	c.jwt = reg.Token
	c.tenant = reg.Tenant
	c.mu.Unlock()

	c.logger.Debug("host registered", "tenant", reg.Tenant, "room", reg.RoomID)
	return &reg, nil
}

// JWT returns the cached token issued at registration, or an empty
// string before the first successful Register.
func (c *Client) JWT() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jwt
}

// Tenant returns the cached tenant namespace, or an empty string before
// the first successful Register.
func (c *Client) Tenant() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tenant
}

// SetCredentials replaces the cached JWT and tenant. Called when the
// relay rotates the host's credential mid-session.
func (c *Client) SetCredentials(jwt, tenant string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jwt = jwt
	c.tenant = tenant
}

type issueCodeResponse struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IssueLongLivedCode requests a fresh long-lived pairing code for this
// host. Requires a prior successful Register.
func (c *Client) IssueLongLivedCode(ctx context.Context) (pairing.LongLivedCode, error) {
	if c.JWT() == "" {
		return pairing.LongLivedCode{}, ErrNotRegistered
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/v1/hosts/pairing-code", nil)
	if err != nil {
		return pairing.LongLivedCode{}, fmt.Errorf("backend: pairing code issuance failed: %w", err)
	}

	var resp issueCodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return pairing.LongLivedCode{}, fmt.Errorf("backend: failed to parse pairing code response: %w", err)
	}

	code, err := pairing.Normalize(resp.Code)
	if err != nil {
		return pairing.LongLivedCode{}, fmt.Errorf("backend: malformed pairing code in response: %w", err)
	}

	return pairing.LongLivedCode{Code: code, ExpiresAt: resp.ExpiresAt}, nil
}

// doRequest performs one JSON request against the backend. Responses
// outside 2xx are returned as *APIError.
func (c *Client) doRequest(ctx context.Context, method, path string, requestBody any) ([]byte, error) {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if jwt := c.JWT(); jwt != "" {
		request.Header.Set("Authorization", "Bearer "+jwt)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	var apiErr APIError
	if jsonErr := json.Unmarshal(responseBody, &apiErr); jsonErr != nil || apiErr.Code == "" {
		return nil, &APIError{
			Code:       "UNEXPECTED_RESPONSE",
			Message:    strings.TrimSpace(string(responseBody)),
			StatusCode: response.StatusCode,
		}
	}
	apiErr.StatusCode = response.StatusCode

	return nil, &apiErr
}

// Compile-time interface satisfaction checks.
var _ pairing.Issuer = (*Client)(nil)
