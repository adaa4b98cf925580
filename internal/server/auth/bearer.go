package auth

import "strings"

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// value. It returns "" when the header uses another scheme or is empty.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
