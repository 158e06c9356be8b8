package httpserver

import (
	"net/http"

	"github.com/yndnr/ncabridge-go/internal/core/domain"
	"github.com/yndnr/ncabridge-go/internal/server/httpserver/handler"
	"github.com/yndnr/ncabridge-go/internal/telemetry/logger"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Bridge signs requests and probes the agent.
	Bridge handler.Bridge

	// Logger for request logging. Defaults to logger.Default().
	Logger logger.Logger

	// Metrics receives per-request observations. Optional.
	Metrics HTTPMetrics

	// MetricsHandler serves GET /metrics. Nil leaves the route out.
	MetricsHandler http.Handler

	// APIToken, when set, protects POST /v1/sign.
	APIToken string

	// APITokenHash protects POST /v1/sign with an argon2id hash instead of
	// a plaintext token. It takes precedence over APIToken.
	APITokenHash *domain.TokenHash

	// CORSAllowedOrigins lists browser origins allowed to call the bridge.
	CORSAllowedOrigins []string

	// RateLimit is the per-IP sign rate (requests/second). Zero disables it.
	RateLimit float64
	RateBurst int

	// MaxBodyBytes caps the sign request body.
	MaxBodyBytes int64
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	log = log.With("component", "httpserver")

	h := handler.New(cfg.Bridge)

	// Order: Recover -> CORS -> RequestID -> RateLimit -> Audit -> Handler
	probe := Chain(h,
		Recover(log),
		RequestID(log),
		Audit(cfg.Metrics),
	)
	sign := Chain(h,
		Recover(log),
		CORS(cfg.CORSAllowedOrigins),
		RequestID(log),
		RateLimit(cfg.RateLimit, cfg.RateBurst),
		Audit(cfg.Metrics),
		BearerAuth(cfg.APIToken, cfg.APITokenHash),
		MaxBody(cfg.MaxBodyBytes),
	)
	preflight := Chain(http.NotFoundHandler(),
		Recover(log),
		CORS(cfg.CORSAllowedOrigins),
	)

	mux := http.NewServeMux()

	mux.Handle("GET /health", probe)
	mux.Handle("GET /ready", probe)
	mux.Handle("GET /v1/agent", probe)

	mux.Handle("POST /v1/sign", sign)
	mux.Handle("OPTIONS /v1/sign", preflight)

	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", Chain(cfg.MetricsHandler, Recover(log)))
	}

	return mux
}
