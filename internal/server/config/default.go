package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:13580"
	DefaultReadTimeout     = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxBodyBytes    = 16 << 20

	DefaultAgentEndpoint    = "wss://127.0.0.1:13579/"
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultSignTimeout      = 2 * time.Minute
	DefaultReadLimit        = 32 << 20

	DefaultRateLimit = 2.0
	DefaultRateBurst = 4

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:            DefaultHTTPAddr,
				ReadTimeout:     DefaultReadTimeout,
				ShutdownTimeout: DefaultShutdownTimeout,
				MaxBodyBytes:    DefaultMaxBodyBytes,
			},
		},
		Agent: AgentSection{
			Endpoint:         DefaultAgentEndpoint,
			HandshakeTimeout: DefaultHandshakeTimeout,
			SignTimeout:      DefaultSignTimeout,
			ReadLimit:        DefaultReadLimit,
			SingleFlight:     true,
		},
		Security: SecuritySection{
			RateLimit: DefaultRateLimit,
			RateBurst: DefaultRateBurst,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
