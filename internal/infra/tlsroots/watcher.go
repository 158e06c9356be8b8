package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yndnr/ncabridge-go/internal/telemetry/logger"
)

// DefaultDebounce is how long the watcher waits after the last change to
// the key pair before reloading it.
const DefaultDebounce = 500 * time.Millisecond

// ExpiryWarning is how close to NotAfter a loaded certificate starts
// producing warnings.
const ExpiryWarning = 14 * 24 * time.Hour

// ErrCertificateExpired is returned when a key pair on disk is outside its
// validity period.
var ErrCertificateExpired = errors.New("tlsroots: certificate is not valid now")

// Watcher serves the bridge HTTPS key pair and replaces it when the files
// change. A pair that fails to load keeps the previous one in service.
type Watcher struct {
	certFile string
	keyFile  string
	cert     atomic.Pointer[tls.Certificate]

	logger   logger.Logger
	debounce time.Duration
	now      func() time.Time

	mu       sync.Mutex
	timer    *time.Timer
	onReload []func(*x509.Certificate)

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the logger for the watcher.
func WithLogger(l logger.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = l
	}
}

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher loads the key pair and returns a watcher serving it. Call
// Start or StartAsync to follow changes on disk.
func NewWatcher(certFile, keyFile string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		certFile: certFile,
		keyFile:  keyFile,
		logger:   logger.Default(),
		debounce: DefaultDebounce,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "tls_watcher", "cert_file", certFile)

	if err := w.Reload(); err != nil {
		return nil, fmt.Errorf("tlsroots: initial load: %w", err)
	}
	return w, nil
}

// OnReload registers fn to run with the new leaf after every successful
// reload.
func (w *Watcher) OnReload(fn func(*x509.Certificate)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = append(w.onReload, fn)
}

// Start follows the cert and key files until Stop. It watches their
// directories so that renames by editors and ACME clients are seen.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tlsroots: create watcher: %w", err)
	}
	defer fw.Close()

	paths := map[string]bool{
		filepath.Clean(w.certFile): true,
		filepath.Clean(w.keyFile):  true,
	}
	dirs := map[string]bool{}
	for p := range paths {
		dirs[filepath.Dir(p)] = true
	}
	for d := range dirs {
		if err := fw.Add(d); err != nil {
			return fmt.Errorf("tlsroots: watch %s: %w", d, err)
		}
	}

	w.logger.Info("certificate watcher started", "key_file", w.keyFile)

	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !paths[filepath.Clean(ev.Name)] {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("certificate file changed", "file", ev.Name, "op", ev.Op.String())
			w.schedule()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("certificate watcher error", "error", err)

		case <-w.done:
			return nil
		}
	}
}

// StartAsync runs Start in a goroutine and logs its failure.
func (w *Watcher) StartAsync() {
	go func() {
		if err := w.Start(); err != nil {
			w.logger.Error("certificate watcher stopped", "error", err)
		}
	}()
}

// Stop stops watching. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	})
}

// GetCertificate implements tls.Config.GetCertificate.
func (w *Watcher) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return w.cert.Load(), nil
}

// Leaf returns the parsed certificate currently served.
func (w *Watcher) Leaf() *x509.Certificate {
	if c := w.cert.Load(); c != nil {
		return c.Leaf
	}
	return nil
}

// schedule (re)arms the reload timer. Cert and key are usually written
// one after the other; only the last change in a burst triggers a load.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Reset(w.debounce)
		return
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.done:
			return
		default:
		}
		if err := w.Reload(); err != nil {
			w.logger.Error("certificate reload failed, keeping previous", "error", err)
		}
	})
}

// Reload reads the key pair now. On error the served pair is unchanged.
func (w *Watcher) Reload() error {
	pair, err := tls.LoadX509KeyPair(w.certFile, w.keyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	if pair.Leaf == nil {
		if pair.Leaf, err = x509.ParseCertificate(pair.Certificate[0]); err != nil {
			return fmt.Errorf("parse certificate: %w", err)
		}
	}

	now := w.now()
	leaf := pair.Leaf
	if now.Before(leaf.NotBefore) || now.After(leaf.NotAfter) {
		return fmt.Errorf("%w: valid %s to %s", ErrCertificateExpired,
			leaf.NotBefore.Format(time.RFC3339), leaf.NotAfter.Format(time.RFC3339))
	}

	w.cert.Store(&pair)

	attrs := []any{"subject", leaf.Subject.CommonName, "not_after", leaf.NotAfter.Format(time.RFC3339)}
	if leaf.NotAfter.Sub(now) < ExpiryWarning {
		w.logger.Warn("certificate expires soon", attrs...)
	} else {
		w.logger.Info("certificate loaded", attrs...)
	}

	w.mu.Lock()
	hooks := append([]func(*x509.Certificate){}, w.onReload...)
	w.mu.Unlock()
	for _, fn := range hooks {
		fn(leaf)
	}
	return nil
}
