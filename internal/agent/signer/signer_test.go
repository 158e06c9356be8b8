package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/ncabridge-go/internal/agent/agenttest"
	"github.com/yndnr/ncabridge-go/internal/agent/connection"
	"github.com/yndnr/ncabridge-go/internal/agent/wire"
	"github.com/yndnr/ncabridge-go/internal/core/domain"
	"github.com/yndnr/ncabridge-go/internal/telemetry/logger"
)

const waitTimeout = 2 * time.Second

type result struct {
	signature string
	err       error
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
	pending  int
}

func (r *recordingMetrics) ObserveSign(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingMetrics) SetPending(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = n
}

func (r *recordingMetrics) snapshot() ([]string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.outcomes...), r.pending
}

func connect(t *testing.T, agent *agenttest.Server) *connection.Manager {
	t.Helper()
	m := connection.NewManager(connection.Options{
		Endpoint:  agent.URL(),
		TLSConfig: agent.TLSConfig(),
	})
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(m.Disconnect)
	return m
}

func newClient(t *testing.T, m *connection.Manager, opts Options) *Client {
	t.Helper()
	c := New(m, opts)
	t.Cleanup(c.Close)
	return c
}

func signAsync(c *Client, ctx context.Context, data string) <-chan result {
	ch := make(chan result, 1)
	go func() {
		sig, err := c.Sign(ctx, data)
		ch <- result{sig, err}
	}()
	return ch
}

func await(t *testing.T, ch <-chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(waitTimeout):
		t.Fatal("Sign() did not return")
		return result{}
	}
}

func waitPending(t *testing.T, c *Client, n int) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for c.Pending() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Pending() = %d, want %d", c.Pending(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSign_Success(t *testing.T) {
	agent := agenttest.NewServer(t)
	agent.SetResponder(agenttest.SignWith("MIIB..."))
	m := connect(t, agent)
	metrics := &recordingMetrics{}
	c := newClient(t, m, Options{Metrics: metrics})

	sig, err := c.Sign(context.Background(), "QUJD")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if sig != "MIIB..." {
		t.Errorf("Sign() = %q, want %q", sig, "MIIB...")
	}

	req := agent.NextSignRequest(t, waitTimeout)
	if req.Args.Data != "QUJD" {
		t.Errorf("request data = %q, want QUJD", req.Args.Data)
	}
	if req.Module != wire.ModuleBasics || req.Method != wire.MethodSign {
		t.Errorf("request = %s.%s", req.Module, req.Method)
	}
	if !domain.IsValidRequestID(req.ID) {
		t.Errorf("request id %q is not a valid request id", req.ID)
	}

	outcomes, pending := metrics.snapshot()
	if len(outcomes) != 1 || outcomes[0] != OutcomeSuccess {
		t.Errorf("outcomes = %v, want [success]", outcomes)
	}
	if pending != 0 {
		t.Errorf("pending gauge = %d, want 0", pending)
	}
}

func TestSign_EmptyData(t *testing.T) {
	agent := agenttest.NewServer(t)
	m := connect(t, agent)
	c := newClient(t, m, Options{})

	_, err := c.Sign(context.Background(), "")
	if !errors.Is(err, domain.ErrMissingArgument) {
		t.Fatalf("Sign(\"\") error = %v, want ErrMissingArgument", err)
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", c.Pending())
	}
}

func TestSign_NotConnected(t *testing.T) {
	m := connection.NewManager(connection.Options{Endpoint: "wss://127.0.0.1:1/"})
	metrics := &recordingMetrics{}
	c := New(m, Options{Metrics: metrics})
	defer c.Close()

	_, err := c.Sign(context.Background(), "QUJD")
	if !errors.Is(err, domain.ErrNotConnected) {
		t.Fatalf("Sign() error = %v, want ErrNotConnected", err)
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", c.Pending())
	}
	if m.Handlers() != 1 {
		t.Errorf("Handlers() = %d, want only the dispatcher", m.Handlers())
	}
	outcomes, _ := metrics.snapshot()
	if len(outcomes) != 1 || outcomes[0] != OutcomeSendError {
		t.Errorf("outcomes = %v, want [send_error]", outcomes)
	}
}

func TestSign_EmptyDataBeforeConnect(t *testing.T) {
	m := connection.NewManager(connection.Options{Endpoint: "wss://127.0.0.1:1/"})
	c := New(m, Options{})
	defer c.Close()

	_, err := c.Sign(context.Background(), "")
	if !errors.Is(err, domain.ErrMissingArgument) {
		t.Errorf("Sign(\"\") error = %v, want ErrMissingArgument ahead of ErrNotConnected", err)
	}
	if _, err := c.Sign(context.Background(), "QUJD"); !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("Sign() error = %v, want ErrNotConnected", err)
	}
}

func TestSign_AgentError(t *testing.T) {
	agent := agenttest.NewServer(t)
	agent.SetResponder(func(frame []byte) []string {
		return []string{agenttest.Failure("", "500", "user cancelled")}
	})
	m := connect(t, agent)
	c := newClient(t, m, Options{})

	_, err := c.Sign(context.Background(), "QUJD")
	if !errors.Is(err, domain.ErrAgentRejected) {
		t.Fatalf("Sign() error = %v, want ErrAgentRejected", err)
	}
	var de *domain.DomainError
	if !errors.As(err, &de) || de.Details == "" {
		t.Errorf("agent error should carry the agent message, got %v", err)
	}
}

func TestSign_MalformedFrame(t *testing.T) {
	agent := agenttest.NewServer(t)
	m := connect(t, agent)
	c := newClient(t, m, Options{})

	first := signAsync(c, context.Background(), "AAAA")
	agent.NextRequest(t, waitTimeout)
	second := signAsync(c, context.Background(), "BBBB")
	agent.NextRequest(t, waitTimeout)
	waitPending(t, c, 2)

	agent.Push(t, "not json")

	for _, ch := range []<-chan result{first, second} {
		r := await(t, ch)
		if !errors.Is(r.err, domain.ErrProtocolParse) {
			t.Errorf("Sign() error = %v, want ErrProtocolParse", r.err)
		}
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", c.Pending())
	}
}

func TestSign_IgnoresUnrecognizedFrames(t *testing.T) {
	agent := agenttest.NewServer(t)
	m := connect(t, agent)
	c := newClient(t, m, Options{})

	ch := signAsync(c, context.Background(), "QUJD")
	req := agent.NextSignRequest(t, waitTimeout)

	agent.Push(t,
		`{"status":true,"body":{}}`,
		`{"status":true,"body":{"result":[]}}`,
		`[1,2,3]`,
		`"hello"`,
	)
	agent.Push(t, agenttest.Success(req.ID, "SIG"))

	r := await(t, ch)
	if r.err != nil {
		t.Fatalf("Sign() error = %v", r.err)
	}
	if r.signature != "SIG" {
		t.Errorf("Sign() = %q, want SIG", r.signature)
	}
}

func TestSign_Timeout(t *testing.T) {
	agent := agenttest.NewServer(t)
	m := connect(t, agent)
	metrics := &recordingMetrics{}
	c := newClient(t, m, Options{Timeout: 50 * time.Millisecond, Metrics: metrics})

	start := time.Now()
	_, err := c.Sign(context.Background(), "QUJD")
	if !errors.Is(err, domain.ErrSignTimeout) {
		t.Fatalf("Sign() error = %v, want ErrSignTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > waitTimeout {
		t.Errorf("Sign() took %v", elapsed)
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0 after timeout", c.Pending())
	}
	outcomes, _ := metrics.snapshot()
	if len(outcomes) != 1 || outcomes[0] != OutcomeTimeout {
		t.Errorf("outcomes = %v, want [timeout]", outcomes)
	}
}

func TestSign_ContextCancelled(t *testing.T) {
	agent := agenttest.NewServer(t)
	m := connect(t, agent)
	c := newClient(t, m, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	ch := signAsync(c, ctx, "QUJD")
	agent.NextRequest(t, waitTimeout)
	cancel()

	r := await(t, ch)
	if !errors.Is(r.err, context.Canceled) {
		t.Fatalf("Sign() error = %v, want context.Canceled", r.err)
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", c.Pending())
	}
}

func TestSign_ConnectionDropped(t *testing.T) {
	agent := agenttest.NewServer(t)
	m := connect(t, agent)
	c := newClient(t, m, Options{})

	ch := signAsync(c, context.Background(), "QUJD")
	agent.NextRequest(t, waitTimeout)
	agent.DropConnections()

	r := await(t, ch)
	if !errors.Is(r.err, domain.ErrConnectionClosed) {
		t.Fatalf("Sign() error = %v, want ErrConnectionClosed", r.err)
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", c.Pending())
	}
}

func TestSign_OutOfOrderResponses(t *testing.T) {
	agent := agenttest.NewServer(t)
	m := connect(t, agent)
	c := newClient(t, m, Options{})

	first := signAsync(c, context.Background(), "AAAA")
	reqA := agent.NextSignRequest(t, waitTimeout)
	second := signAsync(c, context.Background(), "BBBB")
	reqB := agent.NextSignRequest(t, waitTimeout)

	agent.Push(t,
		agenttest.Success(reqB.ID, "sig-of-"+reqB.Args.Data),
		agenttest.Success(reqA.ID, "sig-of-"+reqA.Args.Data),
	)

	if r := await(t, first); r.err != nil || r.signature != "sig-of-AAAA" {
		t.Errorf("first Sign() = (%q, %v), want sig-of-AAAA", r.signature, r.err)
	}
	if r := await(t, second); r.err != nil || r.signature != "sig-of-BBBB" {
		t.Errorf("second Sign() = (%q, %v), want sig-of-BBBB", r.signature, r.err)
	}
}

// Without echoed ids, overlapping requests are resolved oldest first no
// matter which request a response was produced for.
func TestSign_OverlappingWithoutIDs(t *testing.T) {
	agent := agenttest.NewServer(t)
	m := connect(t, agent)
	c := newClient(t, m, Options{})

	first := signAsync(c, context.Background(), "AAAA")
	agent.NextRequest(t, waitTimeout)
	second := signAsync(c, context.Background(), "BBBB")
	agent.NextRequest(t, waitTimeout)
	waitPending(t, c, 2)

	agent.Push(t,
		agenttest.Success("", "sig-of-BBBB"),
		agenttest.Success("", "sig-of-AAAA"),
	)

	if r := await(t, first); r.signature != "sig-of-BBBB" {
		t.Errorf("first Sign() = %q, want sig-of-BBBB", r.signature)
	}
	if r := await(t, second); r.signature != "sig-of-AAAA" {
		t.Errorf("second Sign() = %q, want sig-of-AAAA", r.signature)
	}
}

func TestSign_SingleFlight(t *testing.T) {
	agent := agenttest.NewServer(t)
	agent.SetResponder(agenttest.SignDataNoEcho("sig-of-"))
	m := connect(t, agent)
	c := newClient(t, m, Options{SingleFlight: true})

	inputs := []string{"AAAA", "BBBB", "CCCC", "DDDD"}
	results := make([]result, len(inputs))

	var wg sync.WaitGroup
	for i, in := range inputs {
		wg.Add(1)
		go func(i int, in string) {
			defer wg.Done()
			sig, err := c.Sign(context.Background(), in)
			results[i] = result{sig, err}
		}(i, in)
	}
	wg.Wait()

	for i, in := range inputs {
		if results[i].err != nil {
			t.Errorf("Sign(%q) error = %v", in, results[i].err)
			continue
		}
		if want := "sig-of-" + in; results[i].signature != want {
			t.Errorf("Sign(%q) = %q, want %q", in, results[i].signature, want)
		}
	}
}

func TestSign_SingleFlightCancelledWhileWaiting(t *testing.T) {
	agent := agenttest.NewServer(t)
	m := connect(t, agent)
	c := newClient(t, m, Options{SingleFlight: true})

	first := signAsync(c, context.Background(), "AAAA")
	req := agent.NextSignRequest(t, waitTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Sign(ctx, "BBBB"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("queued Sign() error = %v, want context.DeadlineExceeded", err)
	}

	agent.Push(t, agenttest.Success(req.ID, "SIG"))
	if r := await(t, first); r.err != nil {
		t.Errorf("first Sign() error = %v", r.err)
	}
}

func TestSign_SequentialReuse(t *testing.T) {
	agent := agenttest.NewServer(t)
	agent.SetResponder(agenttest.SignData("sig-of-"))
	m := connect(t, agent)
	c := newClient(t, m, Options{})

	for _, in := range []string{"AAAA", "BBBB", "CCCC"} {
		sig, err := c.Sign(context.Background(), in)
		if err != nil {
			t.Fatalf("Sign(%q) error = %v", in, err)
		}
		if sig != "sig-of-"+in {
			t.Errorf("Sign(%q) = %q", in, sig)
		}
	}
	if m.Handlers() != 1 {
		t.Errorf("Handlers() = %d, want 1", m.Handlers())
	}
}

func TestSign_StaleResponseIgnored(t *testing.T) {
	agent := agenttest.NewServer(t)
	m := connect(t, agent)
	c := newClient(t, m, Options{Timeout: 50 * time.Millisecond})

	if _, err := c.Sign(context.Background(), "AAAA"); !errors.Is(err, domain.ErrSignTimeout) {
		t.Fatalf("Sign() error = %v, want ErrSignTimeout", err)
	}
	stale := agent.NextSignRequest(t, waitTimeout)

	c2 := newClient(t, m, Options{})
	ch := signAsync(c2, context.Background(), "BBBB")
	fresh := agent.NextSignRequest(t, waitTimeout)

	agent.Push(t,
		agenttest.Success(stale.ID, "stale"),
		agenttest.Success(fresh.ID, "fresh"),
	)

	if r := await(t, ch); r.signature != "fresh" {
		t.Errorf("Sign() = %q, want fresh", r.signature)
	}
}

func TestSign_LateResponseAfterAbandonWithoutIDs(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		deadline time.Duration
		wantErr  error
		late     string
	}{
		{"timeout then late signature", Options{Timeout: 300 * time.Millisecond, SingleFlight: true}, 0,
			domain.ErrSignTimeout, agenttest.Success("", "sig-of-AAAA")},
		{"cancel then late signature", Options{SingleFlight: true}, 50 * time.Millisecond,
			context.DeadlineExceeded, agenttest.Success("", "sig-of-AAAA")},
		{"cancel then late agent error", Options{SingleFlight: true}, 50 * time.Millisecond,
			context.DeadlineExceeded, agenttest.Failure("", "500", "user cancelled")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := agenttest.NewServer(t)
			m := connect(t, agent)
			metrics := &recordingMetrics{}
			tt.opts.Metrics = metrics
			c := newClient(t, m, tt.opts)

			ctx := context.Background()
			if tt.deadline > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tt.deadline)
				defer cancel()
			}
			_, err := c.Sign(ctx, "AAAA")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("first Sign() error = %v, want %v", err, tt.wantErr)
			}
			agent.NextRequest(t, waitTimeout)
			if c.Pending() != 0 {
				t.Errorf("Pending() = %d, want 0 after abandon", c.Pending())
			}

			ch := signAsync(c, context.Background(), "BBBB")
			agent.NextRequest(t, waitTimeout)
			waitPending(t, c, 1)
			agent.Push(t, tt.late, agenttest.Success("", "sig-of-BBBB"))

			r := await(t, ch)
			if r.err != nil {
				t.Fatalf("second Sign() error = %v", r.err)
			}
			if r.signature != "sig-of-BBBB" {
				t.Errorf("second Sign() = %q, want sig-of-BBBB", r.signature)
			}
			if _, pending := metrics.snapshot(); pending != 0 {
				t.Errorf("pending gauge = %d, want 0", pending)
			}
		})
	}
}

func TestSign_AbandonedForgottenAfterReconnect(t *testing.T) {
	agent := agenttest.NewServer(t)
	m := connect(t, agent)
	c := newClient(t, m, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Sign(ctx, "AAAA"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Sign() error = %v, want context.DeadlineExceeded", err)
	}
	agent.NextRequest(t, waitTimeout)

	old := m.Done()
	agent.DropConnections()
	select {
	case <-old:
	case <-time.After(waitTimeout):
		t.Fatal("connection did not end")
	}
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect error = %v", err)
	}

	agent.SetResponder(agenttest.SignDataNoEcho("sig-of-"))
	sig, err := c.Sign(context.Background(), "BBBB")
	if err != nil {
		t.Fatalf("Sign() after reconnect error = %v", err)
	}
	if sig != "sig-of-BBBB" {
		t.Errorf("Sign() = %q, want sig-of-BBBB", sig)
	}
}

func TestSign_AbandonedAreBounded(t *testing.T) {
	agent := agenttest.NewServer(t)
	m := connect(t, agent)
	c := newClient(t, m, Options{Timeout: 10 * time.Millisecond})

	for range maxAbandoned + 5 {
		if _, err := c.Sign(context.Background(), "AAAA"); !errors.Is(err, domain.ErrSignTimeout) {
			t.Fatalf("Sign() error = %v, want ErrSignTimeout", err)
		}
	}

	c.mu.Lock()
	remembered := len(c.order)
	c.mu.Unlock()
	if remembered != maxAbandoned {
		t.Errorf("abandoned requests remembered = %d, want %d", remembered, maxAbandoned)
	}
}

func TestClient_Close(t *testing.T) {
	agent := agenttest.NewServer(t)
	m := connect(t, agent)
	c := New(m, Options{})

	ch := signAsync(c, context.Background(), "QUJD")
	agent.NextRequest(t, waitTimeout)
	waitPending(t, c, 1)

	c.Close()
	c.Close()

	if r := await(t, ch); !errors.Is(r.err, domain.ErrConnectionClosed) {
		t.Errorf("Sign() error = %v, want ErrConnectionClosed", r.err)
	}
	if m.Handlers() != 0 {
		t.Errorf("Handlers() = %d, want 0 after Close", m.Handlers())
	}
	if _, err := c.Sign(context.Background(), "QUJD"); !errors.Is(err, domain.ErrConnectionClosed) {
		t.Errorf("Sign() after Close error = %v, want ErrConnectionClosed", err)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSign_LogsCarryContextAttrs(t *testing.T) {
	agent := agenttest.NewServer(t)
	agent.SetResponder(agenttest.SignWith("MIIB..."))
	m := connect(t, agent)

	var out syncBuffer
	log, err := logger.New(logger.Config{Level: "debug", Format: logger.FormatJSON, Output: &out})
	if err != nil {
		t.Fatalf("logger.New() error = %v", err)
	}
	c := newClient(t, m, Options{Logger: log})

	ctx := logger.WithRequestID(context.Background(), "http-req-1")
	ctx = logger.WithAttrs(ctx, "document_id", 7)
	if _, err := c.Sign(ctx, "QUJD"); err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	req := agent.NextSignRequest(t, waitTimeout)

	var completed map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		if entry["msg"] == "sign request completed" {
			completed = entry
		}
	}
	if completed == nil {
		t.Fatalf("no completion record in %s", out.String())
	}
	if completed["request_id"] != "http-req-1" || completed["document_id"] != float64(7) {
		t.Errorf("context attrs missing: %v", completed)
	}
	if completed["agent_request_id"] != req.ID {
		t.Errorf("agent_request_id = %v, want %s", completed["agent_request_id"], req.ID)
	}
}
