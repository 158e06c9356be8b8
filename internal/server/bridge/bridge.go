package bridge

import (
	"context"
	"sync"

	"github.com/yndnr/ncabridge-go/internal/agent/connection"
	"github.com/yndnr/ncabridge-go/internal/agent/signer"
	"github.com/yndnr/ncabridge-go/internal/core/domain"
	"github.com/yndnr/ncabridge-go/internal/telemetry/logger"
)

// Bridge signs over a shared agent connection.
type Bridge struct {
	mgr    *connection.Manager
	client *signer.Client
	log    logger.Logger

	mu     sync.Mutex
	closed bool
}

// New creates a Bridge over mgr. The signer client is created once and
// outlives reconnects.
func New(mgr *connection.Manager, opts signer.Options) *Bridge {
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	return &Bridge{
		mgr:    mgr,
		client: signer.New(mgr, opts),
		log:    opts.Logger.With("component", "bridge"),
	}
}

// Sign connects if needed and signs data.
//
// A failed connect is reported as domain.ErrServiceUnavailable wrapping
// the connection error.
func (b *Bridge) Sign(ctx context.Context, data string) (string, error) {
	if err := b.ensureConnected(ctx); err != nil {
		return "", err
	}
	return b.client.Sign(ctx, data)
}

// Ready reports whether the agent is reachable, connecting if needed.
func (b *Bridge) Ready(ctx context.Context) error {
	return b.ensureConnected(ctx)
}

// Status returns the current connection state without connecting.
func (b *Bridge) Status() Status {
	return Status{
		Endpoint: b.mgr.Endpoint(),
		State:    b.mgr.State().String(),
		Pending:  b.client.Pending(),
	}
}

// Close fails outstanding requests and disconnects. Close is idempotent.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.client.Close()
	b.mgr.Disconnect()
}

// Status is a snapshot of the agent connection.
type Status struct {
	Endpoint string `json:"endpoint"`
	State    string `json:"state"`
	Pending  int    `json:"pending"`
}

func (b *Bridge) ensureConnected(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return domain.ErrServiceUnavailable.WithDetails("bridge is shutting down")
	}
	if b.mgr.IsConnected() {
		return nil
	}

	b.log.Debug("agent not connected, connecting")
	if err := b.mgr.Connect(ctx); err != nil {
		return domain.ErrServiceUnavailable.WithDetails("agent unreachable").WithCause(err)
	}
	return nil
}
