// Copyright (c) 2024 OData MCP Contributors
// SPDX-License-Identifier: MIT

package debug

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// SensitiveKeys contains keys that trigger automatic masking when detected
var SensitiveKeys = []string{
	"password", "passwd", "pwd", "secret",
	"token", "api_key", "apikey", "api-key",
	"authorization", "auth", "credential",
	"cookie", "mysapsso", "saml",
}

// MaskPassword completely masks a password, returning "***"
func MaskPassword(password string) string {
	if password == "" {
		return ""
	}
	return "***"
}

// MaskToken masks a token, showing only the last 8 characters.
// Tokens of 8 characters or fewer become "****".
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "****"
	}
	return "****" + token[len(token)-8:]
}

// MaskURL hides the userinfo password and sensitive query parameters
func MaskURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	if parsed.User != nil {
		if _, hasPass := parsed.User.Password(); hasPass {
			parsed.User = url.UserPassword(parsed.User.Username(), "***")
		}
	}

	query := parsed.Query()
	modified := false
	for key := range query {
		if IsSensitiveKey(key) {
			query.Set(key, "***")
			modified = true
		}
	}
	if modified {
		parsed.RawQuery = query.Encode()
	}

	return parsed.String()
}

// MaskHeader masks sensitive HTTP header values. Authorization keeps its
// scheme so traces still show which kind of auth was sent.
func MaskHeader(name, value string) string {
	if value == "" {
		return ""
	}

	if strings.EqualFold(name, "Authorization") {
		if scheme, credential, ok := strings.Cut(value, " "); ok {
			return scheme + " " + MaskToken(credential)
		}
		return MaskToken(value)
	}

	if IsSensitiveKey(name) {
		return MaskToken(value)
	}
	return value
}

// MaskHeaders renders headers as "Name: value" pairs sorted by name,
// with sensitive values masked
func MaskHeaders(headers http.Header) string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	var parts []string
	for _, name := range names {
		for _, value := range headers[name] {
			parts = append(parts, fmt.Sprintf("%s: %s", name, MaskHeader(name, value)))
		}
	}
	return strings.Join(parts, ", ")
}

// IsSensitiveKey checks if a key name indicates sensitive data
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, sensitive := range SensitiveKeys {
		if strings.Contains(keyLower, sensitive) {
			return true
		}
	}
	return false
}
