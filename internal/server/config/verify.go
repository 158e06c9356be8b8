package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"

	"github.com/yndnr/ncabridge-go/internal/core/domain"
	"github.com/yndnr/ncabridge-go/internal/infra/tlsroots"
	"github.com/yndnr/ncabridge-go/internal/telemetry/logger"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyHTTP(&cfg.Server.HTTP); err != nil {
		return err
	}
	if err := verifyAgent(&cfg.Agent); err != nil {
		return err
	}
	if err := verifySecurity(&cfg.Security); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyHTTP(cfg *HTTPConfig) error {
	if cfg.Addr == "" {
		return errors.New("server.http.addr is required")
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return fmt.Errorf("server.http.addr: %w", err)
	}

	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and tls_key_file must be set together")
	}
	for _, f := range []string{cfg.TLSCertFile, cfg.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("server.http: %w", err)
		}
	}

	if cfg.MaxBodyBytes <= 0 {
		return errors.New("server.http.max_body_bytes must be positive")
	}
	return nil
}

func verifyAgent(cfg *AgentSection) error {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("agent.endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("agent.endpoint: scheme must be ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("agent.endpoint: host is required")
	}

	if cfg.SignTimeout <= 0 {
		return errors.New("agent.sign_timeout must be positive")
	}
	if cfg.ReadLimit < 0 {
		return errors.New("agent.read_limit must not be negative")
	}
	for _, f := range cfg.CAFiles {
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("agent.ca_files: %w", err)
		}
	}
	if cfg.PinSHA256 != "" {
		if _, err := tlsroots.ParseFingerprint(cfg.PinSHA256); err != nil {
			return fmt.Errorf("agent.pin_sha256: %w", err)
		}
		if cfg.InsecureSkipVerify {
			return errors.New("agent.pin_sha256 and agent.insecure_skip_verify are exclusive")
		}
	}
	return nil
}

func verifySecurity(cfg *SecuritySection) error {
	if cfg.RateLimit < 0 {
		return errors.New("security.rate_limit must not be negative")
	}
	if cfg.RateLimit > 0 && cfg.RateBurst < 1 {
		return errors.New("security.rate_burst must be at least 1")
	}
	if cfg.APITokenHash != "" {
		if cfg.APIToken != "" {
			return errors.New("security.api_token and security.api_token_hash are exclusive")
		}
		if _, err := domain.ParseTokenHash(cfg.APITokenHash); err != nil {
			return fmt.Errorf("security.api_token_hash: %w", err)
		}
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if _, err := logger.ParseFormat(cfg.Format); err != nil {
		return fmt.Errorf("log.format: %w", err)
	}
	return nil
}
