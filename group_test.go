package bind_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/bind"
)

func TestGroup_prefix(t *testing.T) {
	t.Parallel()

	type Req struct {
		ID int `path:"id"`
	}
	type Resp struct {
		ID      int    `json:"id"`
		Version string `json:"version"`
	}

	r := bind.New()
	v1 := r.Group("/v1")
	bind.Get(v1, "/items/{id}", func(_ context.Context, req *Req) (*Resp, error) {
		return &Resp{ID: req.ID, Version: "v1"}, nil
	})

	rec := serve(t, r, httptest.NewRequest(http.MethodGet, "/v1/items/7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":7,"version":"v1"}`, rec.Body.String())

	rec = serve(t, r, httptest.NewRequest(http.MethodGet, "/items/7", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGroup_middleware_and_guards(t *testing.T) {
	t.Parallel()

	type Resp struct {
		OK bool `json:"ok"`
	}

	var order []string
	mark := func(name string) bind.Guard {
		return func(*bind.ExecutionContext) error {
			order = append(order, name)
			return nil
		}
	}

	r := bind.New()
	admin := r.Group("/admin",
		bind.WithGroupMiddleware(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				w.Header().Set("X-Group-MW", "yes")
				next.ServeHTTP(w, req)
			})
		}),
		bind.WithGroupGuards(mark("group"), func(ec *bind.ExecutionContext) error {
			if !strings.HasPrefix(ec.Connection().Header().Get("Authorization"), "Bearer ") {
				return bind.Error(http.StatusUnauthorized, "missing token")
			}
			return nil
		}),
	)
	bind.Get(admin, "/dashboard", func(_ context.Context, _ *bind.Void) (*Resp, error) {
		return &Resp{OK: true}, nil
	}, bind.WithGuards(mark("route")))

	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.Header.Set("Authorization", "Bearer t")
	rec := serve(t, r, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "yes", rec.Header().Get("X-Group-MW"))
	assert.Equal(t, []string{"group", "route"}, order)

	rec = serve(t, r, httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "yes", rec.Header().Get("X-Group-MW"))
	assert.Equal(t, "missing token", decodeJSON[bind.ProblemDetail](t, rec).Detail)
}

func TestGroup_tags_in_spec(t *testing.T) {
	t.Parallel()

	r := bind.New(bind.WithTitle("Test"))
	v1 := r.Group("/v1", bind.WithGroupTags("v1"))

	bind.Get(v1, "/items", func(_ context.Context, _ *bind.Void) (*bind.Void, error) {
		return nil, nil
	}, bind.WithTags("items"))

	ops, ok := r.Spec().Paths["/v1/items"]
	require.True(t, ok)
	assert.Equal(t, []string{"v1", "items"}, ops["get"].Tags)
}

func TestGroup_nested(t *testing.T) {
	t.Parallel()

	var order []string
	mark := func(name string) bind.Guard {
		return func(*bind.ExecutionContext) error {
			order = append(order, name)
			return nil
		}
	}

	r := bind.New()
	api := r.Group("/api", bind.WithGroupTags("api"), bind.WithGroupGuards(mark("outer")))
	v2 := api.Group("/v2", bind.WithGroupTags("v2"), bind.WithGroupGuards(mark("inner")))
	bind.Get(v2, "/ping", func(_ context.Context, _ *bind.Void) (*bind.Void, error) {
		return nil, nil
	})
	bind.Raw(v2, http.MethodGet, "/raw", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}, bind.OperationInfo{OperationID: "rawPing", Deprecated: true})

	rec := serve(t, r, httptest.NewRequest(http.MethodGet, "/api/v2/ping", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"outer", "inner"}, order)

	rec = serve(t, r, httptest.NewRequest(http.MethodGet, "/api/v2/raw", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	spec := r.Spec()
	assert.Equal(t, []string{"api", "v2"}, spec.Paths["/api/v2/ping"]["get"].Tags)
	raw := spec.Paths["/api/v2/raw"]["get"]
	assert.Equal(t, "rawPing", raw.OperationID)
	assert.True(t, raw.Deprecated)
}
