package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/ncabridge-go/internal/core/domain"
	"github.com/yndnr/ncabridge-go/internal/telemetry/logger"
)

// SessionCookie is the cookie the portal uses to identify the user.
const SessionCookie = "uid"

// DefaultTimeout bounds a single portal request.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// Metrics receives one observation per portal call.
type Metrics interface {
	ObservePortal(endpoint string, err error)
}

// Options configures a Client.
type Options struct {
	// BaseURL of the portal, e.g. https://portal.example.kz. A missing
	// scheme defaults to http://.
	BaseURL string

	// Timeout per request. Defaults to DefaultTimeout.
	Timeout time.Duration

	// UserAgent header value.
	UserAgent string

	// Transport overrides the HTTP transport (tests, custom TLS).
	Transport http.RoundTripper

	Logger  logger.Logger
	Metrics Metrics
}

// Client provides HTTP communication with the portal.
type Client struct {
	baseURL   *url.URL
	client    *http.Client
	userAgent string
	log       logger.Logger
	metrics   Metrics
}

// NewClient creates a new portal client with an empty cookie jar.
func NewClient(opts Options) (*Client, error) {
	raw := strings.TrimRight(opts.BaseURL, "/")
	if raw == "" {
		return nil, domain.ErrMissingArgument.WithDetails("portal base URL")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "http://" + raw
	}
	base, err := url.Parse(raw)
	if err != nil || base.Host == "" {
		return nil, domain.ErrInvalidArgument.WithDetails("portal base URL: " + opts.BaseURL)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "ncabridge"
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &Client{
		baseURL: base,
		client: &http.Client{
			Timeout:   opts.Timeout,
			Jar:       jar,
			Transport: opts.Transport,
		},
		userAgent: opts.UserAgent,
		log:       opts.Logger.With("component", "portal", "portal", base.Host),
		metrics:   opts.Metrics,
	}, nil
}

// BaseURL returns the base URL of the client.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// UserID returns the user ID from the session cookie, if one is set.
func (c *Client) UserID() (int64, bool) {
	for _, ck := range c.client.Jar.Cookies(c.baseURL) {
		if ck.Name != SessionCookie {
			continue
		}
		id, err := strconv.ParseInt(ck.Value, 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	}
	return 0, false
}

// SetUserID restores a session cookie saved from an earlier login.
func (c *Client) SetUserID(id int64) {
	c.client.Jar.SetCookies(c.baseURL, []*http.Cookie{{
		Name:  SessionCookie,
		Value: strconv.FormatInt(id, 10),
		Path:  "/",
	}})
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	u := c.endpoint(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.addHeaders(req)
	return c.do(req)
}

// Post performs a POST request with JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	if body == nil {
		body = struct{}{}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path).String(), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.addHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.ErrRemote.WithDetails(req.Method + " " + req.URL.Path).WithCause(err)
	}
	return resp, nil
}

func (c *Client) endpoint(path string) *url.URL {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	return &u
}

// addHeaders adds common headers.
func (c *Client) addHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
}

// call runs one request, decodes the response into target and records
// the outcome.
func (c *Client) call(name string, resp *http.Response, err error, target any) error {
	if err == nil {
		err = ParseResponse(resp, target)
	}
	if c.metrics != nil {
		c.metrics.ObservePortal(name, err)
	}
	if err != nil {
		c.log.Warn("portal call failed", "endpoint", name, "error", err)
		return err
	}
	c.log.Debug("portal call succeeded", "endpoint", name)
	return nil
}

// ParseResponse parses a JSON response body into the target struct.
// Non-2xx responses become domain.ErrRemote with the server's detail.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		details := fmt.Sprintf("status %d", resp.StatusCode)
		if resp.Request != nil {
			details = fmt.Sprintf("%s %s: %s", resp.Request.Method, resp.Request.URL.Path, details)
		}
		if d := errorDetail(body); d != "" {
			details += ": " + d
		}
		return domain.ErrRemote.WithDetails(details)
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return domain.ErrRemote.WithDetails("parse response").WithCause(err)
		}
	}

	return nil
}

// errorDetail extracts the "detail" field of an error response. The
// field is a string for application errors and a list of objects with a
// "msg" for validation errors.
func errorDetail(body []byte) string {
	var errResp struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil || len(errResp.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}

	var s string
	if err := json.Unmarshal(errResp.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
		Loc []any  `json:"loc"`
	}
	if err := json.Unmarshal(errResp.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if len(it.Loc) > 0 {
				msgs = append(msgs, fmt.Sprintf("%v: %s", it.Loc[len(it.Loc)-1], it.Msg))
				continue
			}
			msgs = append(msgs, it.Msg)
		}
		return strings.Join(msgs, "; ")
	}

	return string(errResp.Detail)
}
