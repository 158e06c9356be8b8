package config

import "time"

// ServerConfig is the root configuration for ncabridge.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server"`
	Agent    AgentSection    `koanf:"agent"`
	Security SecuritySection `koanf:"security"`
	Log      LogSection      `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	TLSCertFile     string        `koanf:"tls_cert_file"`
	TLSKeyFile      string        `koanf:"tls_key_file"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// MaxBodyBytes caps a POST /v1/sign body.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`

	// CORSOrigins lists browser origins allowed to call the bridge.
	// "*" allows any origin.
	CORSOrigins []string `koanf:"cors_origins"`
}

// AgentSection configures the connection to the local signing agent.
type AgentSection struct {
	Endpoint         string        `koanf:"endpoint"`
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`

	// SignTimeout bounds one signature, including the time the user
	// spends in the agent's certificate dialog.
	SignTimeout time.Duration `koanf:"sign_timeout"`

	ReadLimit    int64 `koanf:"read_limit"`
	SingleFlight bool  `koanf:"single_flight"`

	CAFiles            []string `koanf:"ca_files"`
	CADir              string   `koanf:"ca_dir"`
	ServerName         string   `koanf:"server_name"`
	PinSHA256          string   `koanf:"pin_sha256"`
	InsecureSkipVerify bool     `koanf:"insecure_skip_verify"`
}

// SecuritySection configures access to the bridge.
type SecuritySection struct {
	// APIToken, when set, must be presented as a Bearer token on
	// POST /v1/sign.
	APIToken string `koanf:"api_token"`

	// APITokenHash is an argon2id hash of the token, as printed by
	// "ncabridge -hash-token". Exclusive with APIToken.
	APITokenHash string `koanf:"api_token_hash"`

	// RateLimit is the sustained sign requests per second. Zero disables
	// rate limiting.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
