package middleware

import (
	"net/http"
)

// VoteMaxBodySize bounds the body of a vote request: it only ever carries a
// one-field {"kind":"like"} payload.
const VoteMaxBodySize int64 = 4 << 10 // 4KB

// RequestSize limits the size of incoming request bodies, returning
// 413 Payload Too Large if the body exceeds maxBytes.
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// VoteRequestSize limits vote request bodies to VoteMaxBodySize.
func VoteRequestSize() func(http.Handler) http.Handler {
	return RequestSize(VoteMaxBodySize)
}
