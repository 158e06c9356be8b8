package signer

import (
	"context"

	"github.com/yndnr/ncabridge-go/internal/agent/connection"
)

// WithSession brackets one logical signing operation: it connects mgr,
// runs fn with a fresh Client, then closes the Client and disconnects on
// every exit path.
func WithSession(ctx context.Context, mgr *connection.Manager, opts Options, fn func(*Client) error) error {
	if err := mgr.Connect(ctx); err != nil {
		mgr.Disconnect()
		return err
	}
	defer mgr.Disconnect()

	c := New(mgr, opts)
	defer c.Close()

	return fn(c)
}

// SignOnce connects, signs data and disconnects.
func SignOnce(ctx context.Context, mgr *connection.Manager, opts Options, data string) (string, error) {
	var signature string
	err := WithSession(ctx, mgr, opts, func(c *Client) error {
		var err error
		signature, err = c.Sign(ctx, data)
		return err
	})
	return signature, err
}
