package tlsroots

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNoCertsFound is returned when PEM input holds no certificate.
	ErrNoCertsFound = errors.New("tlsroots: no certificates found in PEM data")

	// ErrPinMismatch is returned when the agent presents a certificate
	// whose fingerprint differs from the pinned one.
	ErrPinMismatch = errors.New("tlsroots: agent certificate does not match pin")
)

// Pool is a set of trusted roots for the agent connection.
type Pool struct {
	roots *x509.CertPool
}

// NewPool starts from the system roots, or from an empty set where the
// platform has none.
func NewPool() *Pool {
	roots, err := x509.SystemCertPool()
	if err != nil {
		roots = x509.NewCertPool()
	}
	return &Pool{roots: roots}
}

// NewEmptyPool returns a pool without system roots.
func NewEmptyPool() *Pool {
	return &Pool{roots: x509.NewCertPool()}
}

// AddCertFile adds every certificate of a PEM file.
func (p *Pool) AddCertFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("tlsroots: read %s: %w", path, err)
	}
	if err := p.AddCertPEM(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// AddCertPEM adds every CERTIFICATE block of data. Other block types
// are skipped.
func (p *Pool) AddCertPEM(data []byte) error {
	certs, err := parsePEM(data)
	if err != nil {
		return err
	}
	for _, c := range certs {
		p.roots.AddCert(c)
	}
	return nil
}

// AddCert adds one parsed certificate.
func (p *Pool) AddCert(cert *x509.Certificate) {
	p.roots.AddCert(cert)
}

// AddCertDir adds the .pem, .crt and .cer files of dir and reports how
// many contributed certificates. Files that fail to parse are skipped.
func (p *Pool) AddCertDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("tlsroots: read dir %s: %w", dir, err)
	}

	n := 0
	for _, e := range entries {
		if e.IsDir() || !isCertFile(e.Name()) {
			continue
		}
		if p.AddCertFile(filepath.Join(dir, e.Name())) == nil {
			n++
		}
	}
	return n, nil
}

// Pool returns the underlying x509.CertPool.
func (p *Pool) Pool() *x509.CertPool {
	return p.roots
}

// TLSConfig returns a client config trusting the pool.
func (p *Pool) TLSConfig() *tls.Config {
	return &tls.Config{
		RootCAs:    p.roots,
		MinVersion: tls.VersionTLS12,
	}
}

// AgentOptions describes how to trust the local agent.
type AgentOptions struct {
	// CAFiles are PEM files trusted in addition to the system roots.
	CAFiles []string

	// CADir is a directory of extra trusted certificates.
	CADir string

	// ServerName overrides the name verified against the agent certificate.
	ServerName string

	// PinSHA256 is the hex SHA-256 fingerprint of the agent's leaf
	// certificate. When set, chain verification is replaced by the pin,
	// which suits the self-signed certificate the agent ships with.
	PinSHA256 string

	// InsecureSkipVerify disables verification entirely. Development only.
	InsecureSkipVerify bool
}

// AgentTLSConfig builds the client TLS config for the agent connection.
func AgentTLSConfig(opts AgentOptions) (*tls.Config, error) {
	pool := NewPool()
	for _, f := range opts.CAFiles {
		if err := pool.AddCertFile(f); err != nil {
			return nil, err
		}
	}
	if opts.CADir != "" {
		if _, err := pool.AddCertDir(opts.CADir); err != nil {
			return nil, err
		}
	}

	cfg := pool.TLSConfig()
	cfg.ServerName = opts.ServerName

	if opts.PinSHA256 != "" {
		want, err := ParseFingerprint(opts.PinSHA256)
		if err != nil {
			return nil, err
		}
		// Chain checks are skipped; VerifyPeerCertificate enforces the pin.
		cfg.InsecureSkipVerify = true //nolint:gosec // pinned below
		cfg.VerifyPeerCertificate = pinVerifier(want)
		return cfg, nil
	}

	cfg.InsecureSkipVerify = opts.InsecureSkipVerify //nolint:gosec // opt-in for development
	return cfg, nil
}

// Fingerprint returns the lowercase hex SHA-256 of a DER certificate.
func Fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}

// ParseFingerprint normalizes a hex SHA-256 fingerprint. Colons, spaces
// and case are ignored, so the output of openssl x509 -fingerprint is
// accepted as is.
func ParseFingerprint(s string) (string, error) {
	s = strings.ToLower(strings.NewReplacer(":", "", " ", "").Replace(s))
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != sha256.Size {
		return "", fmt.Errorf("tlsroots: invalid SHA-256 fingerprint %q", s)
	}
	return s, nil
}

func pinVerifier(want string) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return ErrPinMismatch
		}
		if got := Fingerprint(rawCerts[0]); got != want {
			return fmt.Errorf("%w: got %s", ErrPinMismatch, got)
		}
		return nil
	}
}

// ServerTLSConfig returns a server config that always presents the
// watcher's current key pair.
func ServerTLSConfig(w *Watcher) *tls.Config {
	return &tls.Config{
		GetCertificate: w.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
}

func parsePEM(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		c, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("tlsroots: parse certificate: %w", err)
		}
		certs = append(certs, c)
	}
	if len(certs) == 0 {
		return nil, ErrNoCertsFound
	}
	return certs, nil
}

func isCertFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pem", ".crt", ".cer":
		return true
	}
	return false
}
