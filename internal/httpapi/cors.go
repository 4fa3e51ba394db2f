package httpapi

import (
	"net/http"
	"strings"
)

// CORSPolicy decides the Access-Control-Allow-Origin value for a request
// and applies the fixed set of CORS headers every response carries,
// including errors and the OPTIONS preflight itself.
type CORSPolicy struct {
	AllowedOrigins []string
	Development    bool
}

// Apply sets CORS headers on w for the given request. It must run before
// any status code is written, including error paths.
func (p CORSPolicy) Apply(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	w.Header().Set("Access-Control-Allow-Origin", p.resolveOrigin(origin))
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")
	w.Header().Set("Access-Control-Max-Age", "86400")
}

func (p CORSPolicy) resolveOrigin(origin string) string {
	if origin != "" {
		for _, allowed := range p.AllowedOrigins {
			if strings.EqualFold(allowed, origin) {
				return origin
			}
		}
		if p.Development && isLocalhostOrigin(origin) {
			return origin
		}
	}
	if len(p.AllowedOrigins) > 0 {
		return p.AllowedOrigins[0]
	}
	return ""
}

func isLocalhostOrigin(origin string) bool {
	return strings.HasPrefix(origin, "http://localhost:") ||
		origin == "http://localhost" ||
		strings.HasPrefix(origin, "http://127.0.0.1:") ||
		origin == "http://127.0.0.1"
}
