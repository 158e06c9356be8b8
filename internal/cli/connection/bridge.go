package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/ncabridge-go/internal/core/domain"
)

// DefaultTimeout covers a full signing round trip, including the user
// typing their password.
const DefaultTimeout = 3 * time.Minute

// maxResponseBody caps how much of a bridge response is read.
const maxResponseBody = 1 << 20

// BridgeOptions configures a BridgeClient.
type BridgeOptions struct {
	// URL of the bridge, e.g. http://127.0.0.1:13580. A missing scheme
	// defaults to http://.
	URL string

	// Token is sent as a bearer token when set.
	Token string

	// Timeout per request. Defaults to DefaultTimeout.
	Timeout time.Duration

	UserAgent string

	// Transport overrides the HTTP transport.
	Transport http.RoundTripper
}

// BridgeClient calls the ncabridge HTTP API.
type BridgeClient struct {
	baseURL   string
	token     string
	userAgent string
	client    *http.Client
}

// AgentStatus mirrors GET /v1/agent.
type AgentStatus struct {
	Endpoint string `json:"endpoint"`
	State    string `json:"state"`
	Pending  int    `json:"pending"`
}

type envelope struct {
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
	Details   any             `json:"details"`
}

// NewBridgeClient creates a client for the bridge at opts.URL.
func NewBridgeClient(opts BridgeOptions) (*BridgeClient, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.URL), "/")
	if base == "" {
		return nil, domain.ErrMissingArgument.WithDetails("bridge URL")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "ncasign"
	}

	return &BridgeClient{
		baseURL:   base,
		token:     opts.Token,
		userAgent: opts.UserAgent,
		client:    &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
	}, nil
}

// BaseURL returns the base URL of the client.
func (c *BridgeClient) BaseURL() string {
	return c.baseURL
}

// Sign asks the bridge to sign base64 data.
func (c *BridgeClient) Sign(ctx context.Context, data string) (string, error) {
	var out struct {
		Signature string `json:"signature"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/sign", map[string]string{"data": data}, &out); err != nil {
		return "", err
	}
	if out.Signature == "" {
		return "", domain.ErrProtocolParse.WithDetails("bridge returned an empty signature")
	}
	return out.Signature, nil
}

// AgentStatus reports the bridge's view of the agent connection.
func (c *BridgeClient) AgentStatus(ctx context.Context) (*AgentStatus, error) {
	var st AgentStatus
	if err := c.do(ctx, http.MethodGet, "/v1/agent", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Ready reports whether the bridge can reach the agent.
func (c *BridgeClient) Ready(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/ready", nil, nil)
}

func (c *BridgeClient) do(ctx context.Context, method, path string, body, target any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.ErrServiceUnavailable.WithDetails("bridge unreachable").WithCause(err)
	}
	return parseEnvelope(resp, target)
}

// parseEnvelope decodes a bridge response. Error envelopes become a
// DomainError carrying the bridge's code.
func parseEnvelope(resp *http.Response, target any) error {
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return domain.ErrRemote.WithDetails(fmt.Sprintf("bridge status %d", resp.StatusCode))
		}
		return domain.ErrProtocolParse.WithDetails("bridge response").WithCause(err)
	}

	if resp.StatusCode >= 400 {
		if env.Code == "" {
			return domain.ErrRemote.WithDetails(fmt.Sprintf("bridge status %d", resp.StatusCode))
		}
		derr := domain.NewDomainError(env.Code, env.Message)
		if s, ok := env.Details.(string); ok && s != "" {
			derr = derr.WithDetails(s)
		}
		return derr
	}

	if target != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, target); err != nil {
			return domain.ErrProtocolParse.WithDetails("bridge response data").WithCause(err)
		}
	}
	return nil
}
