package bind_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bjaus/bind"
)

func TestRecovery(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.ErrorLevel)

	r := bind.New()
	r.Use(bind.RequestID(), bind.Recovery(zap.New(core)))
	bind.Get(r, "/panic", func(_ context.Context, _ *bind.Void) (*bind.Void, error) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := serve(t, r, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Internal Server Error", decodeJSON[bind.ProblemDetail](t, rec).Detail)

	entries := logs.FilterMessage("panic recovered").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "boom", fields["panic"])
	assert.Equal(t, "/panic", fields["path"])
	assert.Equal(t, "req-1", fields["request_id"])
}

func TestRecovery_rethrows_abort(t *testing.T) {
	t.Parallel()

	handler := bind.Recovery(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestMiddleware_ordering(t *testing.T) {
	t.Parallel()

	type Resp struct {
		Value string `json:"value"`
	}

	var order []string
	track := func(name string) bind.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				order = append(order, name)
				w.Header().Add("X-Order", name)
				next.ServeHTTP(w, req)
			})
		}
	}

	r := bind.New()
	r.Use(track("first"))
	r.Use(track("second"))
	bind.Get(r, "/test", func(_ context.Context, _ *bind.Void) (*Resp, error) {
		return &Resp{Value: "ok"}, nil
	})

	rec := serve(t, r, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, []string{"first", "second"}, rec.Header().Values("X-Order"))
}
