package connection

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yndnr/ncabridge-go/internal/core/domain"
	"github.com/yndnr/ncabridge-go/internal/server/bridge"
	"github.com/yndnr/ncabridge-go/internal/server/httpserver"
)

type stubBridge struct {
	signErr  error
	readyErr error
}

func (s *stubBridge) Sign(_ context.Context, data string) (string, error) {
	if s.signErr != nil {
		return "", s.signErr
	}
	return "sig:" + data, nil
}

func (s *stubBridge) Ready(context.Context) error { return s.readyErr }

func (s *stubBridge) Status() bridge.Status {
	return bridge.Status{Endpoint: "wss://127.0.0.1:13579/", State: "connected", Pending: 1}
}

func newBridgeServer(t *testing.T, b *stubBridge, token string) string {
	t.Helper()
	srv := httptest.NewServer(httpserver.NewRouter(&httpserver.RouterConfig{
		Bridge:   b,
		APIToken: token,
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestNewBridgeClient(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"http://127.0.0.1:13580", "http://127.0.0.1:13580", false},
		{"https://bridge.local/", "https://bridge.local", false},
		{"127.0.0.1:13580", "http://127.0.0.1:13580", false},
		{"  ", "", true},
	}

	for _, tt := range tests {
		c, err := NewBridgeClient(BridgeOptions{URL: tt.in})
		if (err != nil) != tt.wantErr {
			t.Errorf("NewBridgeClient(%q) error = %v", tt.in, err)
			continue
		}
		if err == nil && c.BaseURL() != tt.want {
			t.Errorf("BaseURL() = %q, want %q", c.BaseURL(), tt.want)
		}
	}
}

func TestBridgeClient_Sign(t *testing.T) {
	url := newBridgeServer(t, &stubBridge{}, "s3cret")
	c, err := NewBridgeClient(BridgeOptions{URL: url, Token: "s3cret"})
	if err != nil {
		t.Fatal(err)
	}

	got, err := c.Sign(context.Background(), "QUJD")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if got != "sig:QUJD" {
		t.Errorf("Sign() = %q", got)
	}
}

func TestBridgeClient_Unauthorized(t *testing.T) {
	url := newBridgeServer(t, &stubBridge{}, "s3cret")
	c, _ := NewBridgeClient(BridgeOptions{URL: url, Token: "wrong"})

	_, err := c.Sign(context.Background(), "QUJD")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Sign() error = %v, want ErrUnauthorized", err)
	}
}

func TestBridgeClient_ErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"timeout", domain.ErrSignTimeout, domain.ErrSignTimeout},
		{"agent rejected", domain.ErrAgentRejected.WithDetails("code=500"), domain.ErrAgentRejected},
		{"agent down", domain.ErrServiceUnavailable.WithDetails("agent unreachable"), domain.ErrServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := newBridgeServer(t, &stubBridge{signErr: tt.err}, "")
			c, _ := NewBridgeClient(BridgeOptions{URL: url})

			_, err := c.Sign(context.Background(), "QUJD")
			if !errors.Is(err, tt.want) {
				t.Errorf("Sign() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBridgeClient_DetailsPreserved(t *testing.T) {
	url := newBridgeServer(t, &stubBridge{signErr: domain.ErrAgentRejected.WithDetails("code=500")}, "")
	c, _ := NewBridgeClient(BridgeOptions{URL: url})

	_, err := c.Sign(context.Background(), "QUJD")
	var derr *domain.DomainError
	if !errors.As(err, &derr) || derr.Details != "code=500" {
		t.Errorf("Sign() error = %#v", err)
	}
}

func TestBridgeClient_AgentStatus(t *testing.T) {
	url := newBridgeServer(t, &stubBridge{}, "")
	c, _ := NewBridgeClient(BridgeOptions{URL: url})

	st, err := c.AgentStatus(context.Background())
	if err != nil {
		t.Fatalf("AgentStatus() error = %v", err)
	}
	if st.State != "connected" || st.Pending != 1 || st.Endpoint == "" {
		t.Errorf("AgentStatus() = %+v", st)
	}
}

func TestBridgeClient_Ready(t *testing.T) {
	url := newBridgeServer(t, &stubBridge{readyErr: domain.ErrServiceUnavailable}, "")
	c, _ := NewBridgeClient(BridgeOptions{URL: url})

	if err := c.Ready(context.Background()); !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("Ready() error = %v", err)
	}
}

func TestBridgeClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, _ := NewBridgeClient(BridgeOptions{URL: url})
	if _, err := c.Sign(context.Background(), "QUJD"); !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("Sign() error = %v, want ErrServiceUnavailable", err)
	}
}

func TestBridgeClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c, _ := NewBridgeClient(BridgeOptions{URL: srv.URL})
	if _, err := c.Sign(context.Background(), "QUJD"); !errors.Is(err, domain.ErrRemote) {
		t.Errorf("Sign() error = %v, want ErrRemote", err)
	}
}
