package config

import "time"

// CLIConfig is the configuration for ncasign.
type CLIConfig struct {
	// PortalURL is the document portal base URL.
	PortalURL string `yaml:"portal_url"`

	// Output is the default output format: table, json or yaml.
	Output string `yaml:"output"`

	// PortalTimeout bounds one portal request.
	PortalTimeout time.Duration `yaml:"portal_timeout"`

	// UserID is the portal user from the last login. Zero means none.
	UserID int64 `yaml:"user_id,omitempty"`

	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig describes how to reach the local signing agent.
type AgentConfig struct {
	Endpoint           string        `yaml:"endpoint"`
	SignTimeout        time.Duration `yaml:"sign_timeout"`
	HandshakeTimeout   time.Duration `yaml:"handshake_timeout"`
	CAFiles            []string      `yaml:"ca_files,omitempty"`
	ServerName         string        `yaml:"server_name,omitempty"`
	PinSHA256          string        `yaml:"pin_sha256,omitempty"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify,omitempty"`
}

// Defaults.
const (
	DefaultPortalURL        = "http://127.0.0.1:8000"
	DefaultOutput           = "table"
	DefaultPortalTimeout    = 30 * time.Second
	DefaultAgentEndpoint    = "wss://127.0.0.1:13579/"
	DefaultSignTimeout      = 2 * time.Minute
	DefaultHandshakeTimeout = 10 * time.Second
)

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		PortalURL:     DefaultPortalURL,
		Output:        DefaultOutput,
		PortalTimeout: DefaultPortalTimeout,
		Agent: AgentConfig{
			Endpoint:         DefaultAgentEndpoint,
			SignTimeout:      DefaultSignTimeout,
			HandshakeTimeout: DefaultHandshakeTimeout,
		},
	}
}
