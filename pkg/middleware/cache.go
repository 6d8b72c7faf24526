package middleware

import (
	"fmt"
	"net/http"
)

// CacheControl marks GET responses as publicly cacheable for maxAge
// seconds. Mount it only on routes whose responses carry no per-caller
// data, like the public profile projection; a non-positive maxAge turns
// the route into an explicit no-store.
func CacheControl(maxAge int) func(http.Handler) http.Handler {
	header := "no-store"
	if maxAge > 0 {
		header = fmt.Sprintf("public, max-age=%d", maxAge)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				w.Header().Set("Cache-Control", header)
			}
			next.ServeHTTP(w, r)
		})
	}
}
