// Package httpserver provides the local HTTP/HTTPS server of the bridge.
//
// Endpoints:
//
//   - POST /v1/sign: sign a base64 payload with the local agent
//   - GET /v1/agent: agent connection state
//   - GET /health, GET /ready, GET /metrics
//
// Features:
//
//   - TLS support with automatic certificate reload
//   - Middleware chain: Recover, CORS, RequestID, RateLimit, Audit
//   - Optional bearer token on the sign endpoint
//   - Graceful shutdown with configurable timeout
package httpserver
