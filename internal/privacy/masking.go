package privacy

import (
	"net/url"
	"strings"
)

// MaskUsername masks an account username while keeping enough to recognize it.
// Email-style usernames keep the first character and the domain.
// Example: "alice@example.com" -> "a****@example.com", "alicesmith" -> "******mith"
func MaskUsername(username string) string {
	if username == "" {
		return ""
	}

	if strings.Contains(username, "@") {
		parts := strings.Split(username, "@")
		local := parts[0]
		domain := "@" + strings.Join(parts[1:], "@")

		if len(local) <= 1 {
			return strings.Repeat("*", len(local)) + domain
		}
		return local[:1] + strings.Repeat("*", len(local)-1) + domain
	}

	return maskString(username, 4)
}

// MaskURL masks a stored URL down to its host. Paths, queries, and fragments
// can carry session tokens or account identifiers, so they are dropped.
// Example: "https://bank.example.com/accounts/42?sid=abc" -> "https://bank.example.com/***"
func MaskURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}

	u, err := url.Parse(rawURL)
	if err == nil && u.Host != "" {
		masked := u.Scheme + "://" + u.Host
		if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
			masked += "/***"
		}
		return masked
	}

	// Schemeless forms like "bank.example.com/login": keep the host segment.
	if i := strings.IndexAny(rawURL, "/?#"); i >= 0 {
		return rawURL[:i] + "/***"
	}
	return rawURL
}

// MaskSecret fully masks a password or TOTP secret. The result is a fixed
// width so the mask does not leak the secret's length.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

// maskString masks a string showing only the last n characters
func maskString(s string, keepLast int) string {
	if s == "" {
		return ""
	}

	if len(s) <= keepLast {
		return strings.Repeat("*", len(s))
	}

	return strings.Repeat("*", len(s)-keepLast) + s[len(s)-keepLast:]
}

// MaskSensitiveFields applies appropriate masking to common logging fields
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	masked := make(map[string]interface{})
	for k, v := range fields {
		switch k {
		case "password", "passphrase", "secret", "totp_secret", "new_password":
			if s, ok := v.(string); ok {
				masked[k] = MaskSecret(s)
			} else {
				masked[k] = v
			}
		case "username", "user", "login", "account":
			if s, ok := v.(string); ok {
				masked[k] = MaskUsername(s)
			} else {
				masked[k] = v
			}
		case "url", "website":
			if s, ok := v.(string); ok {
				masked[k] = MaskURL(s)
			} else {
				masked[k] = v
			}
		default:
			masked[k] = v
		}
	}

	return masked
}
