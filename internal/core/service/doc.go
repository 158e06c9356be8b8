// Package service composes the agent signer and the document portal into
// the two user-facing flows.
//
// This package contains:
//
//   - AuthService: sign a portal challenge and exchange it for an identity
//   - DocumentService: create a signed document and co-sign existing ones
//
// Both services depend on the Signer and Portal interfaces only, so tests
// and the bridge can plug in their own implementations.
package service
