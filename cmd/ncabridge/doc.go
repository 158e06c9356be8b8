// Package main provides the entry point for ncabridge.
//
// ncabridge keeps one connection to the local NCALayer agent and exposes
// it over HTTP, so that browser pages and scripts can request signatures
// without speaking the agent protocol:
//
//   - POST /v1/sign signs a base64 payload
//   - GET /health, GET /ready and GET /v1/agent report liveness
//   - GET /metrics serves Prometheus metrics
//
// Usage:
//
//	ncabridge [flags]
//	ncabridge --config /etc/ncabridge/config.yaml
//	ncabridge -hash-token < token.txt
//
// -hash-token prints the argon2id hash to put in security.api_token_hash,
// so the plaintext token need not live in the config file.
//
// Configuration is read from the file, then from NCABRIDGE_* environment
// variables, where "__" separates nested keys
// (NCABRIDGE_AGENT__SIGN_TIMEOUT=90s). SIGHUP re-reads the log level.
package main
