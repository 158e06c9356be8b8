// Package logger provides structured logging for ncabridge.
//
// It wraps log/slog behind a small Logger interface:
//
//   - logger.go: handler construction, levels and the process default
//   - context.go: request ID propagation through context.Context
//   - redact.go: masking of signatures, nonces, payloads and credentials
//
// Signing payloads and CMS signatures are never logged verbatim. Attributes
// whose key names a payload (data, signature, file_base64, nonce) or a
// credential are replaced, and base64 DER blobs are partially masked
// wherever they appear.
package logger
