// Package handler provides the HTTP request handlers of the bridge.
//
// This package contains handlers for all HTTP endpoints:
//
//   - sign.go: POST /v1/sign and GET /v1/agent
//   - health.go: Health and readiness checks
//
// All handlers follow a consistent pattern:
//
//   - Parse and validate request
//   - Call the bridge
//   - Format and return response
//   - Handle errors with appropriate HTTP status codes
package handler
