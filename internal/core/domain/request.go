// Package domain defines the core domain models for ncabridge.
//
// Domain models are pure value objects without any IO dependencies
// or framework coupling.
package domain

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestIDPrefix is the prefix for signing request IDs.
const RequestIDPrefix = "sig-"

// GenerateRequestID generates a new signing request ID using ULID.
// Format: sig-{ulid_lowercase}, 30 characters total.
func GenerateRequestID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", ErrInternal.WithCause(err)
	}
	return RequestIDPrefix + strings.ToLower(id.String()), nil
}

// IsValidRequestID validates the request ID format.
func IsValidRequestID(id string) bool {
	id = strings.ToLower(id)
	if !strings.HasPrefix(id, RequestIDPrefix) {
		return false
	}

	// sig- (4) + ULID (26) = 30 characters
	if len(id) != len(RequestIDPrefix)+ulid.EncodedSize {
		return false
	}

	_, err := ulid.ParseStrict(strings.ToUpper(id[len(RequestIDPrefix):]))
	return err == nil
}

// RequestTime extracts the creation time embedded in a request ID.
// Returns the zero time if the ID is invalid.
func RequestTime(id string) time.Time {
	if !IsValidRequestID(id) {
		return time.Time{}
	}
	u, err := ulid.Parse(strings.ToUpper(id[len(RequestIDPrefix):]))
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(u.Time())
}
