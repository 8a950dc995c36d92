package rate

import (
	"net/http"
	"strings"
)

// AnonymousClient is the bucket shared by every request that carries no
// forwarding headers. All such callers draw from one budget per action.
const AnonymousClient = "anonymous"

// ClientID derives the rate-limit bucket for a request: the first entry of
// X-Forwarded-For, else X-Real-IP, else AnonymousClient. It is a bucket key,
// not an identity.
func ClientID(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return AnonymousClient
}
