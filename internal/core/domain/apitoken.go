package domain

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for bridge API token hashing.
const (
	// Argon2Memory is the memory parameter in KB (16 MB).
	Argon2Memory uint32 = 16384

	// Argon2Time is the iteration count.
	Argon2Time uint32 = 2

	// Argon2Parallelism is the parallelism factor.
	Argon2Parallelism uint8 = 2

	// Argon2KeyLen is the output hash length in bytes.
	Argon2KeyLen uint32 = 32

	// Argon2SaltLen is the salt length in bytes.
	Argon2SaltLen = 16
)

// ErrInvalidTokenHash is returned for a hash not in PHC argon2id form.
var ErrInvalidTokenHash = errors.New("invalid argon2id token hash")

// TokenHash is a parsed argon2id hash.
type TokenHash struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	Salt        []byte
	Key         []byte
}

// HashAPIToken computes an argon2id hash of token with a random salt.
// Returns the hash in the format: $argon2id$v=19$m=16384,t=2,p=2$<salt>$<hash>
func HashAPIToken(token string) (string, error) {
	if token == "" {
		return "", ErrMissingArgument.WithDetails("token is empty")
	}

	salt := make([]byte, Argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	h := &TokenHash{
		Memory:      Argon2Memory,
		Time:        Argon2Time,
		Parallelism: Argon2Parallelism,
		Salt:        salt,
	}
	h.Key = h.derive(token, Argon2KeyLen)
	return h.String(), nil
}

// ParseTokenHash parses a hash produced by HashAPIToken. Parameters other
// than the defaults are accepted so that older hashes keep verifying.
func ParseTokenHash(s string) (*TokenHash, error) {
	parts := strings.Split(s, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, ErrInvalidTokenHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrInvalidTokenHash, parts[2])
	}

	h := &TokenHash{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.Memory, &h.Time, &h.Parallelism); err != nil {
		return nil, fmt.Errorf("%w: parameters %q", ErrInvalidTokenHash, parts[3])
	}
	if h.Memory == 0 || h.Time == 0 || h.Parallelism == 0 {
		return nil, fmt.Errorf("%w: parameters %q", ErrInvalidTokenHash, parts[3])
	}

	var err error
	if h.Salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(h.Salt) == 0 {
		return nil, fmt.Errorf("%w: salt", ErrInvalidTokenHash)
	}
	if h.Key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(h.Key) == 0 {
		return nil, fmt.Errorf("%w: key", ErrInvalidTokenHash)
	}
	return h, nil
}

// Verify reports whether token hashes to h.
func (h *TokenHash) Verify(token string) bool {
	return subtle.ConstantTimeCompare(h.derive(token, uint32(len(h.Key))), h.Key) == 1
}

func (h *TokenHash) derive(token string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(token), h.Salt, h.Time, h.Memory, h.Parallelism, keyLen)
}

// String renders h in PHC form.
func (h *TokenHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.Memory, h.Time, h.Parallelism,
		base64.RawStdEncoding.EncodeToString(h.Salt),
		base64.RawStdEncoding.EncodeToString(h.Key))
}
