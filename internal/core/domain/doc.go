// Package domain defines the core domain models for ncabridge.
//
// Domain models are pure value objects without any IO dependencies
// or framework coupling. This package contains:
//
//   - Request IDs: ULID-based correlation identifiers for signing requests
//   - Document: files submitted for co-signing and their participants
//   - Identity: the result of a challenge-response login
//   - Errors: coded domain errors shared by every layer
package domain
