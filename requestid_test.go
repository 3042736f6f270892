package bind_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/bind"
)

func TestRequestID(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cfg      []bind.RequestIDConfig
		incoming map[string]string
		header   string
		check    func(t *testing.T, id string)
	}{
		"generates a uuid": {
			header: "X-Request-ID",
			check: func(t *testing.T, id string) {
				t.Helper()
				_, err := uuid.Parse(id)
				assert.NoError(t, err)
			},
		},
		"preserves the incoming id": {
			incoming: map[string]string{"X-Request-ID": "my-custom-id-123"},
			header:   "X-Request-ID",
			check: func(t *testing.T, id string) {
				t.Helper()
				assert.Equal(t, "my-custom-id-123", id)
			},
		},
		"replaces an oversized id": {
			incoming: map[string]string{"X-Request-ID": strings.Repeat("a", 129)},
			header:   "X-Request-ID",
			check: func(t *testing.T, id string) {
				t.Helper()
				assert.Len(t, id, 36)
			},
		},
		"replaces an id with spaces": {
			incoming: map[string]string{"X-Request-ID": "not valid"},
			header:   "X-Request-ID",
			check: func(t *testing.T, id string) {
				t.Helper()
				assert.NotEqual(t, "not valid", id)
			},
		},
		"custom header and generator": {
			cfg:    []bind.RequestIDConfig{{Header: "X-Trace-ID", Generator: func() string { return "fixed" }}},
			header: "X-Trace-ID",
			check: func(t *testing.T, id string) {
				t.Helper()
				assert.Equal(t, "fixed", id)
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var seen string
			handler := bind.RequestID(tc.cfg...)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen = bind.GetRequestID(r)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.incoming {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			id := rec.Header().Get(tc.header)
			require.NotEmpty(t, id)
			assert.Equal(t, id, seen)
			tc.check(t, id)
		})
	}
}

func TestRequestIDFrom_handler_context(t *testing.T) {
	t.Parallel()

	type Resp struct {
		RequestID string `json:"request_id"`
	}

	r := bind.New()
	r.Use(bind.RequestID())
	bind.Get(r, "/whoami", func(ctx context.Context, _ *bind.Void) (*Resp, error) {
		return &Resp{RequestID: bind.RequestIDFrom(ctx)}, nil
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := serve(t, r, req)
	assert.JSONEq(t, `{"request_id":"abc"}`, rec.Body.String())

	assert.Empty(t, bind.RequestIDFrom(context.Background()))
}
