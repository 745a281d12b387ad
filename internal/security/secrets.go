package security

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

const redacted = "***REDACTED***"

// ValidateToken rejects API tokens that cannot be sent in an Authorization
// header: empty values and values carrying whitespace, which usually come
// from pasting a token with its trailing newline.
func ValidateToken(token string) error {
	if token == "" {
		return fmt.Errorf("token is empty")
	}
	for _, r := range token {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("token contains whitespace or control characters")
		}
	}
	return nil
}

// Redact replaces every occurrence of the given secrets in s.
func Redact(s string, secrets ...string) string {
	for _, secret := range secrets {
		if secret != "" {
			s = strings.ReplaceAll(s, secret, redacted)
		}
	}
	return s
}

// RedactURL strips credentials and query parameters from a URL so it can be
// shown in errors and logs. Values that do not parse as URLs are returned
// unchanged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	if u.User != nil {
		u.User = url.User("redacted")
	}
	if u.RawQuery != "" {
		u.RawQuery = ""
	}
	u.Fragment = ""
	return u.String()
}
