package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/yndnr/ncabridge-go/internal/telemetry/logger"
)

// Hook releases one resource during shutdown.
type Hook func(context.Context) error

// ReloadHook re-reads one piece of runtime state on SIGHUP. A failing
// hook is expected to keep the state it had.
type ReloadHook func() error

type namedHook struct {
	name string
	fn   Hook
}

type namedReload struct {
	name string
	fn   ReloadHook
}

// Handler handles graceful shutdown.
type Handler struct {
	timeout time.Duration
	log     logger.Logger

	mu          sync.Mutex
	hooks       []namedHook
	reloadHooks []namedReload

	trigger     chan struct{}
	triggerOnce sync.Once
	done        chan struct{}
}

// NewHandler creates a new shutdown handler. A nil logger means
// logger.Default().
func NewHandler(timeout time.Duration, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		timeout: timeout,
		log:     log.With("component", "shutdown"),
		trigger: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// OnShutdown registers a shutdown hook.
// Hooks are called in reverse order of registration.
func (h *Handler) OnShutdown(name string, hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, namedHook{name: name, fn: hook})
}

// OnReload registers a hook run on SIGHUP. Reload hooks run in
// registration order and a failure does not stop the others.
func (h *Handler) OnReload(name string, fn ReloadHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reloadHooks = append(h.reloadHooks, namedReload{name: name, fn: fn})
}

// Trigger starts shutdown as if a termination signal had arrived.
func (h *Handler) Trigger() {
	h.triggerOnce.Do(func() { close(h.trigger) })
}

// Wait blocks until SIGINT, SIGTERM, Trigger or ctx cancellation, then
// runs the shutdown hooks. It returns the joined hook errors.
func (h *Handler) Wait(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

wait:
	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				h.log.Info("reload requested")
				h.runReload()
				continue
			}
			h.log.Info("shutdown signal received", "signal", sig.String())
			break wait
		case <-h.trigger:
			h.log.Info("shutdown triggered")
			break wait
		case <-ctx.Done():
			h.log.Info("shutdown on context end", "error", ctx.Err())
			break wait
		}
	}

	return h.run()
}

// Done returns a channel that closes when shutdown is complete.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

func (h *Handler) run() error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	hooks := slices.Clone(h.hooks)
	h.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		hk := hooks[i]
		if err := hk.fn(ctx); err != nil {
			h.log.Error("shutdown hook failed", "hook", hk.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", hk.name, err))
			continue
		}
		h.log.Debug("shutdown hook done", "hook", hk.name)
	}

	close(h.done)
	return errors.Join(errs...)
}

func (h *Handler) runReload() {
	h.mu.Lock()
	hooks := slices.Clone(h.reloadHooks)
	h.mu.Unlock()

	for _, hk := range hooks {
		if err := hk.fn(); err != nil {
			h.log.Error("reload failed, keeping current state", "hook", hk.name, "error", err)
			continue
		}
		h.log.Info("reloaded", "hook", hk.name)
	}
}
