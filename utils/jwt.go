package utils

import "strings"

// ExtractTokenFromHeader pulls the bearer token out of an Authorization
// header value. Returns "" when the header is malformed.
func ExtractTokenFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
