package bind

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const maxRequestIDLen = 128

type requestIDKey struct{}

// RequestIDConfig configures the RequestID middleware. Zero fields take the
// defaults: the X-Request-ID header and a random UUID.
type RequestIDConfig struct {
	Header    string
	Generator func() string
}

// RequestID returns middleware that tags each request with an id. An
// incoming id is kept when it is short printable ASCII; otherwise a new one
// is generated. The id is echoed on the response and readable through
// RequestIDFrom.
func RequestID(cfg ...RequestIDConfig) Middleware {
	header, generate := "X-Request-ID", uuid.NewString
	if len(cfg) > 0 {
		if cfg[0].Header != "" {
			header = http.CanonicalHeaderKey(cfg[0].Header)
		}
		if cfg[0].Generator != nil {
			generate = cfg[0].Generator
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(header)
			if !validRequestID(id) {
				id = generate()
			}
			w.Header().Set(header, id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		})
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := range len(id) {
		if id[i] < '!' || id[i] > '~' {
			return false
		}
	}
	return true
}

// GetRequestID returns the id RequestID assigned to r.
func GetRequestID(r *http.Request) string {
	return RequestIDFrom(r.Context())
}

// RequestIDFrom returns the id RequestID stored in ctx, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
