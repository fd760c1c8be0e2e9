package server

import (
	"net/url"
	"strings"
)

var credentialParams = []string{"api_key", "apikey", "token", "x-emby-token"}

// Redact masks credential query parameters in a URL for display and logs.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}

	query := u.Query()
	changed := false
	for name := range query {
		for _, p := range credentialParams {
			if strings.EqualFold(name, p) {
				query.Set(name, "REDACTED")
				changed = true
			}
		}
	}

	if !changed {
		return raw
	}
	u.RawQuery = query.Encode()
	return u.String()
}
