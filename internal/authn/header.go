package authn

import "strings"

// BearerToken extracts the token from a raw "Authorization: Bearer <token>"
// header value. Returns "" if the header is absent or malformed.
func BearerToken(headerValue string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(headerValue, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(headerValue, prefix))
}
