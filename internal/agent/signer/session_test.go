package signer

import (
	"context"
	"errors"
	"testing"

	"github.com/yndnr/ncabridge-go/internal/agent/agenttest"
	"github.com/yndnr/ncabridge-go/internal/agent/connection"
	"github.com/yndnr/ncabridge-go/internal/core/domain"
)

func TestSignOnce(t *testing.T) {
	agent := agenttest.NewServer(t)
	agent.SetResponder(agenttest.SignWith("SIG"))
	m := connection.NewManager(connection.Options{
		Endpoint:  agent.URL(),
		TLSConfig: agent.TLSConfig(),
	})

	sig, err := SignOnce(context.Background(), m, Options{}, "QUJD")
	if err != nil {
		t.Fatalf("SignOnce() error = %v", err)
	}
	if sig != "SIG" {
		t.Errorf("SignOnce() = %q, want SIG", sig)
	}
	if m.State() != connection.StateDisconnected {
		t.Errorf("State() = %v, want disconnected", m.State())
	}
	if m.Handlers() != 0 {
		t.Errorf("Handlers() = %d, want 0", m.Handlers())
	}
}

func TestWithSession_ConnectFailure(t *testing.T) {
	agent := agenttest.NewServer(t)
	agent.RejectHandshakes(true)
	m := connection.NewManager(connection.Options{
		Endpoint:  agent.URL(),
		TLSConfig: agent.TLSConfig(),
	})

	called := false
	err := WithSession(context.Background(), m, Options{}, func(*Client) error {
		called = true
		return nil
	})
	if !errors.Is(err, domain.ErrConnection) {
		t.Fatalf("WithSession() error = %v, want ErrConnection", err)
	}
	if called {
		t.Error("fn should not run when connect fails")
	}
	if m.State() != connection.StateDisconnected {
		t.Errorf("State() = %v, want disconnected after a failed connect", m.State())
	}
}

func TestWithSession_DisconnectsOnError(t *testing.T) {
	agent := agenttest.NewServer(t)
	agent.SetResponder(func([]byte) []string {
		return []string{agenttest.Failure("", "500", "no certificate")}
	})
	m := connection.NewManager(connection.Options{
		Endpoint:  agent.URL(),
		TLSConfig: agent.TLSConfig(),
	})

	err := WithSession(context.Background(), m, Options{}, func(c *Client) error {
		_, err := c.Sign(context.Background(), "QUJD")
		return err
	})
	if !errors.Is(err, domain.ErrAgentRejected) {
		t.Fatalf("WithSession() error = %v, want ErrAgentRejected", err)
	}
	if m.IsConnected() {
		t.Error("manager should be disconnected after the session")
	}
}
