package logger

import (
	"strings"
)

// SanitizedEmail masks an email address for logging (e.g., "u***@*******.com")
func SanitizedEmail(email string) string {
	email = strings.TrimSpace(email)
	username, domain, ok := strings.Cut(email, "@")
	if !ok || username == "" || domain == "" || strings.Contains(domain, "@") {
		return "[invalid-email]"
	}

	// Keep the first character of the local part
	if len(username) > 1 {
		username = username[:1] + strings.Repeat("*", len(username)-1)
	}

	// Keep only the TLD of the domain
	labels := strings.Split(domain, ".")
	for i := 0; i < len(labels)-1; i++ {
		labels[i] = strings.Repeat("*", len(labels[i]))
	}

	return username + "@" + strings.Join(labels, ".")
}

var sensitiveParams = []string{
	"code", "token", "secret", "email", "session", "auth", "api_key",
}

// SanitizeQueryString reports whether rawQuery mentions a sensitive
// parameter, in which case the whole query string should be redacted
func SanitizeQueryString(rawQuery string) bool {
	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
