package signer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yndnr/ncabridge-go/internal/agent/connection"
	"github.com/yndnr/ncabridge-go/internal/agent/wire"
	"github.com/yndnr/ncabridge-go/internal/core/domain"
	"github.com/yndnr/ncabridge-go/internal/telemetry/logger"
)

// DefaultTimeout bounds how long a request waits for the agent. The user
// has to pick a certificate and enter a password within this window.
const DefaultTimeout = 2 * time.Minute

// Sign outcomes reported to Metrics.
const (
	OutcomeSuccess          = "success"
	OutcomeAgentError       = "agent_error"
	OutcomeParseError       = "parse_error"
	OutcomeTimeout          = "timeout"
	OutcomeCancelled        = "cancelled"
	OutcomeConnectionClosed = "connection_closed"
	OutcomeSendError        = "send_error"
)

// maxAbandoned bounds the abandoned requests remembered per connection.
const maxAbandoned = 32

// Transport is the connection a Client signs over.
type Transport interface {
	Send(v any) error
	OnMessage(h connection.Handler) *connection.Subscription
	Done() <-chan struct{}
}

// Metrics receives signing observations.
type Metrics interface {
	ObserveSign(outcome string, elapsed time.Duration)
	SetPending(n int)
}

// Options configures a Client.
type Options struct {
	// Timeout per request. Zero or negative means DefaultTimeout.
	Timeout time.Duration

	// SingleFlight allows at most one outstanding request; further Sign
	// calls wait for their turn. Enable it for agents that do not echo
	// request IDs.
	SingleFlight bool

	// Logger defaults to logger.Default().
	Logger logger.Logger

	// Metrics is optional.
	Metrics Metrics
}

type outcome struct {
	signature string
	err       error
}

type call struct {
	id      string
	started time.Time
	result  chan outcome

	// done is the connection the request was sent on.
	done <-chan struct{}
	// abandoned marks a request whose caller gave up before the agent
	// answered. It keeps its place in order so that a late answer without
	// an id is consumed by it instead of by the next request.
	abandoned bool
}

// Client is the signing protocol client.
type Client struct {
	transport Transport
	opts      Options
	log       logger.Logger
	sub       *connection.Subscription
	gate      chan struct{}

	mu      sync.Mutex
	pending map[string]*call
	order   []*call
	closed  bool
}

// New creates a Client and registers its dispatcher on t.
func New(t Transport, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}

	c := &Client{
		transport: t,
		opts:      opts,
		log:       opts.Logger.With("component", "signer"),
		pending:   make(map[string]*call),
	}
	if opts.SingleFlight {
		c.gate = make(chan struct{}, 1)
	}
	c.sub = t.OnMessage(c.onFrame)
	return c
}

// Sign asks the agent to sign data and returns the CMS signature.
//
// data is sent verbatim. Connection errors from the transport are
// returned unchanged; no retry is attempted. Empty data is rejected with
// domain.ErrMissingArgument before the transport is consulted, so that
// error takes precedence over domain.ErrNotConnected.
func (c *Client) Sign(ctx context.Context, data string) (string, error) {
	if data == "" {
		return "", domain.ErrMissingArgument.WithDetails("data to sign is empty")
	}

	if c.gate != nil {
		select {
		case c.gate <- struct{}{}:
			defer func() { <-c.gate }()
		case <-ctx.Done():
			return "", fmt.Errorf("wait for signing slot: %w", ctx.Err())
		}
	}

	id, err := domain.GenerateRequestID()
	if err != nil {
		return "", err
	}
	req := wire.NewSignRequest(id, data)
	if err := req.Validate(); err != nil {
		return "", err
	}

	log := c.log.With(logger.ContextAttrs(ctx)...).With("agent_request_id", id)

	done := c.transport.Done()
	cl, err := c.register(id, done)
	if err != nil {
		return "", err
	}

	if err := c.transport.Send(req); err != nil {
		c.take(cl)
		c.observe(OutcomeSendError, cl)
		return "", err
	}
	log.Debug("sign request sent", "data_len", len(data))

	timer := time.NewTimer(c.opts.Timeout)
	defer timer.Stop()

	select {
	case out := <-cl.result:
		return c.finish(log, cl, out)

	case <-ctx.Done():
		if !c.abandon(cl) {
			return c.finish(log, cl, <-cl.result)
		}
		c.observe(OutcomeCancelled, cl)
		log.Info("sign request cancelled", "error", ctx.Err())
		return "", fmt.Errorf("sign request %s: %w", id, ctx.Err())

	case <-timer.C:
		if !c.abandon(cl) {
			return c.finish(log, cl, <-cl.result)
		}
		c.observe(OutcomeTimeout, cl)
		log.Warn("sign request timed out", "timeout", c.opts.Timeout)
		return "", domain.ErrSignTimeout.WithDetails(fmt.Sprintf("request %s after %s", id, c.opts.Timeout))

	case <-done:
		if !c.take(cl) {
			return c.finish(log, cl, <-cl.result)
		}
		c.observe(OutcomeConnectionClosed, cl)
		log.Warn("agent connection closed while waiting")
		return "", domain.ErrConnectionClosed.WithDetails("request " + id)
	}
}

// Pending returns the number of outstanding requests.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveLocked()
}

// Close deregisters the dispatcher and fails outstanding requests with
// domain.ErrConnectionClosed. Close is idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	calls := c.drainLocked()
	c.mu.Unlock()

	c.sub.Cancel()
	for _, cl := range calls {
		cl.result <- outcome{err: domain.ErrConnectionClosed.WithDetails("client closed")}
	}
}

func (c *Client) finish(log logger.Logger, cl *call, out outcome) (string, error) {
	if out.err != nil {
		switch {
		case domain.IsDomainError(out.err, domain.ErrProtocolParse.Code):
			c.observe(OutcomeParseError, cl)
		case domain.IsDomainError(out.err, domain.ErrConnectionClosed.Code):
			c.observe(OutcomeConnectionClosed, cl)
		default:
			c.observe(OutcomeAgentError, cl)
		}
		log.Warn("sign request failed", "error", out.err)
		return "", out.err
	}

	c.observe(OutcomeSuccess, cl)
	log.Info("sign request completed",
		"elapsed", time.Since(cl.started),
		"signature_len", len(out.signature))
	return out.signature, nil
}

// onFrame is the single dispatcher registered on the transport.
func (c *Client) onFrame(frame []byte) {
	resp, err := wire.Decode(frame)
	if err != nil {
		// An uncorrelatable frame: every outstanding request would have
		// seen it, so every one of them fails.
		c.mu.Lock()
		calls := c.drainLocked()
		c.mu.Unlock()

		c.log.Warn("malformed frame from agent", "error", err, "failed_requests", len(calls))
		for _, cl := range calls {
			cl.result <- outcome{err: err}
		}
		return
	}

	switch r := resp.(type) {
	case *wire.SignSuccess:
		cl := c.match(r.RequestID())
		switch {
		case cl == nil:
			c.log.Debug("signature without outstanding request", "agent_request_id", r.RequestID())
		case cl.abandoned:
			c.log.Info("dropping late signature for abandoned request", "agent_request_id", cl.id)
		default:
			cl.result <- outcome{signature: r.Signature()}
		}

	case *wire.SignError:
		cl := c.match(r.RequestID())
		switch {
		case cl == nil:
			c.log.Debug("agent error without outstanding request", "agent_request_id", r.RequestID(), "code", r.Code)
		case cl.abandoned:
			c.log.Info("dropping late agent error for abandoned request", "agent_request_id", cl.id, "code", r.Code)
		default:
			cl.result <- outcome{err: r.Err()}
		}

	case *wire.Unrecognized:
		c.log.Debug("ignoring unrecognized agent message", "agent_request_id", r.RequestID())
	}
}

func (c *Client) register(id string, done <-chan struct{}) (*call, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, domain.ErrConnectionClosed.WithDetails("client closed")
	}

	cl := &call{id: id, started: time.Now(), result: make(chan outcome, 1), done: done}
	c.pending[id] = cl
	c.order = append(c.order, cl)
	c.setPendingLocked()
	return cl, nil
}

// match removes and returns the call a response belongs to. An echoed ID
// selects that call; no ID selects the oldest outstanding call, which may
// be an abandoned one.
func (c *Client) match(id string) *call {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked()

	var cl *call
	if id != "" {
		cl = c.pending[id]
	} else if len(c.order) > 0 {
		cl = c.order[0]
	}
	if cl == nil {
		return nil
	}
	c.removeLocked(cl)
	return cl
}

// abandon marks cl as given up. It returns false if a result has already
// been (or is being) delivered to cl.
func (c *Client) abandon(cl *call) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[cl.id]; !ok {
		return false
	}
	cl.abandoned = true
	c.pruneLocked()
	c.setPendingLocked()
	return true
}

// pruneLocked forgets abandoned requests whose connection has ended and,
// past maxAbandoned, the oldest of the rest.
func (c *Client) pruneLocked() {
	var abandoned []*call
	for _, cl := range c.order {
		if cl.abandoned {
			abandoned = append(abandoned, cl)
		}
	}
	excess := len(abandoned) - maxAbandoned
	for _, cl := range abandoned {
		if isClosed(cl.done) || excess > 0 {
			c.removeLocked(cl)
			excess--
		}
	}
}

// take removes cl if it is still outstanding. It returns false if a
// result has already been (or is being) delivered to cl.
func (c *Client) take(cl *call) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[cl.id]; !ok {
		return false
	}
	c.removeLocked(cl)
	return true
}

func (c *Client) removeLocked(cl *call) {
	delete(c.pending, cl.id)
	for i, cur := range c.order {
		if cur == cl {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.setPendingLocked()
}

// drainLocked empties the table and returns the calls still waiting.
func (c *Client) drainLocked() []*call {
	var calls []*call
	for _, cl := range c.order {
		if !cl.abandoned {
			calls = append(calls, cl)
		}
	}
	c.order = nil
	c.pending = make(map[string]*call)
	c.setPendingLocked()
	return calls
}

func (c *Client) liveLocked() int {
	n := 0
	for _, cl := range c.order {
		if !cl.abandoned {
			n++
		}
	}
	return n
}

func (c *Client) setPendingLocked() {
	if c.opts.Metrics != nil {
		c.opts.Metrics.SetPending(c.liveLocked())
	}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func (c *Client) observe(outcome string, cl *call) {
	if c.opts.Metrics != nil {
		c.opts.Metrics.ObserveSign(outcome, time.Since(cl.started))
	}
}
