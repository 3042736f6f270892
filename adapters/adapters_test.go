package adapters_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/bind"
	"github.com/bjaus/bind/adapters"
)

type fileReq struct {
	ID   int    `path:"id"`
	Rest string `path:"rest"`
	Tag  string `query:"tag" default:"none"`
}

type fileResp struct {
	ID   int    `json:"id"`
	Rest string `json:"rest"`
	Tag  string `json:"tag"`
}

func newRouter() *bind.Router {
	r := bind.New()
	r.Use(bind.RequestID(bind.RequestIDConfig{Generator: func() string { return "fixed" }}))
	bind.Get(r, "/files/{id:int}/{rest:path}", func(_ context.Context, req *fileReq) (*fileResp, error) {
		return &fileResp{ID: req.ID, Rest: req.Rest, Tag: req.Tag}, nil
	})
	bind.Raw(r, http.MethodGet, "/users/{name}", func(w http.ResponseWriter, r *http.Request) {
		//nolint:errcheck,gosec // test handler
		w.Write([]byte("user " + r.PathValue("name")))
	}, bind.OperationInfo{})
	return r
}

func TestPaths(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		pattern string
		gin     string
		echo    string
	}{
		"static":   {pattern: "/health", gin: "/health", echo: "/health"},
		"param":    {pattern: "/users/{id}", gin: "/users/:id", echo: "/users/:id"},
		"typed":    {pattern: "/users/{id:uuid}/posts/{n:int}", gin: "/users/:id/posts/:n", echo: "/users/:id/posts/:n"},
		"wildcard": {pattern: "/files/{rest...}", gin: "/files/*rest", echo: "/files/*"},
		"path":     {pattern: "/files/{rest:path}", gin: "/files/*rest", echo: "/files/*"},
		"exact":    {pattern: "/{$}", gin: "/", echo: "/"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			tmpl, err := bind.ParsePathTemplate(tc.pattern)
			require.NoError(t, err)
			assert.Equal(t, tc.gin, adapters.GinPath(tmpl))
			assert.Equal(t, tc.echo, adapters.EchoPath(tmpl))
		})
	}
}

func TestMount(t *testing.T) {
	t.Parallel()

	gin.SetMode(gin.TestMode)

	mount := map[string]func(r *bind.Router) http.Handler{
		"gin": func(r *bind.Router) http.Handler {
			g := gin.New()
			adapters.MountGin(g, r)
			return g
		},
		"echo": func(r *bind.Router) http.Handler {
			e := echo.New()
			adapters.MountEcho(e, r)
			return e
		},
	}

	for name, build := range mount {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h := build(newRouter())

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/12/a/b.txt?tag=x", nil))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.JSONEq(t, `{"id":12,"rest":"a/b.txt","tag":"x"}`, rec.Body.String())
			assert.Equal(t, "fixed", rec.Header().Get("X-Request-ID"))

			rec = httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/twelve/a", nil))
			assert.Equal(t, http.StatusNotFound, rec.Code)

			rec = httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/ada", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "user ada", rec.Body.String())
		})
	}
}
