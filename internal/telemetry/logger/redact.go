package logger

import (
	"fmt"
	"log/slog"
	"strings"
)

// derBase64Prefix starts every base64-encoded DER SEQUENCE longer than
// 255 bytes: CMS signatures, certificates, PKCS#12 containers.
const derBase64Prefix = "MII"

// Key names whose string values are always redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"key",
	"credential",
	"auth",
	"bearer",
	"cookie",
	"signature",
	"nonce",
	"file_base64",
}

// Key names that hold signing payloads. Matched exactly.
var payloadKeys = map[string]bool{
	"data":    true,
	"payload": true,
	"content": true,
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive checks if an attribute contains sensitive data
// and redacts it if necessary.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		strVal := a.Value.String()
		if strVal == "" {
			return a
		}
		if IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
		if IsSensitiveValue(strVal) {
			return slog.String(a.Key, maskValue(strVal, derBase64Prefix))
		}
		return a
	}

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	return a
}

// maskValue partially masks a sensitive value, keeping the prefix, a
// three character hint at each end and the length.
func maskValue(value, prefix string) string {
	body := strings.TrimPrefix(value, prefix)
	if len(body) <= 6 {
		return prefix + "***"
	}
	return fmt.Sprintf("%s%s...%s(%d)", prefix, body[:3], body[len(body)-3:], len(value))
}

// RedactString masks value if it looks like an encoded signature or
// certificate. Other values are returned unchanged.
func RedactString(value string) string {
	if IsSensitiveValue(value) {
		return maskValue(value, derBase64Prefix)
	}
	return value
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	if payloadKeys[keyLower] {
		return true
	}
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// IsSensitiveValue reports whether value looks like a base64 DER blob.
func IsSensitiveValue(value string) bool {
	if len(value) < 16 || !strings.HasPrefix(value, derBase64Prefix) {
		return false
	}
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '+', c == '/', c == '=':
		default:
			return false
		}
	}
	return true
}
