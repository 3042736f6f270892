package bind_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/bind"
)

func TestServeDocs(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		opts    []bind.DocsOption
		path    string
		expects []string
	}{
		"router title": {
			path:    "/docs",
			expects: []string{"<title>My API</title>", "elements-api", "stoplight", `apiDescriptionUrl="/openapi.json"`},
		},
		"custom title": {
			opts:    []bind.DocsOption{bind.WithDocsTitle("Custom <Docs>")},
			path:    "/docs",
			expects: []string{"<title>Custom &lt;Docs&gt;</title>"},
		},
		"custom spec url": {
			opts:    []bind.DocsOption{bind.WithDocsSpecURL("/v2/openapi.yaml")},
			path:    "/api-docs",
			expects: []string{`apiDescriptionUrl="/v2/openapi.yaml"`},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := bind.New(bind.WithTitle("My API"))
			r.ServeDocs(tc.path, tc.opts...)

			rec := serve(t, r, httptest.NewRequest(http.MethodGet, tc.path, nil))
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
			for _, s := range tc.expects {
				assert.Contains(t, rec.Body.String(), s)
			}
		})
	}
}

func TestHTML_response(t *testing.T) {
	t.Parallel()

	type Req struct {
		Name string `query:"name"`
	}

	greeting := func(name string) templ.Component {
		return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
			_, err := io.WriteString(w, "<p>Hello, "+templ.EscapeString(name)+"</p>")
			return err
		})
	}

	r := bind.New()
	bind.Get(r, "/hello", func(_ context.Context, req *Req) (*bind.HTML, error) {
		return &bind.HTML{Component: greeting(req.Name)}, nil
	})
	bind.Get(r, "/static", func(_ context.Context, _ *bind.Void) (*bind.HTML, error) {
		return &bind.HTML{Content: "<h1>static</h1>"}, nil
	})
	bind.Get(r, "/broken", func(_ context.Context, _ *bind.Void) (*bind.HTML, error) {
		return &bind.HTML{Component: templ.ComponentFunc(func(context.Context, io.Writer) error {
			return errors.New("template exploded")
		})}, nil
	})

	rec := serve(t, r, httptest.NewRequest(http.MethodGet, "/hello?name=%3Cbob%3E", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<p>Hello, &lt;bob&gt;</p>", rec.Body.String())

	rec = serve(t, r, httptest.NewRequest(http.MethodGet, "/static", nil))
	assert.Equal(t, "<h1>static</h1>", rec.Body.String())

	rec = serve(t, r, httptest.NewRequest(http.MethodGet, "/broken", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "exploded")
}

func TestFile_response(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		file        *bind.File
		contentType string
		disposition string
	}{
		"attachment by extension": {
			file:        &bind.File{Filename: "report.pdf", Body: strings.NewReader("a,b\n")},
			contentType: "application/pdf",
			disposition: `attachment; filename=report.pdf`,
		},
		"inline with explicit type": {
			file:        &bind.File{Filename: "chart.bin", ContentType: "image/png", Inline: true, Body: strings.NewReader("a,b\n")},
			contentType: "image/png",
			disposition: `inline; filename=chart.bin`,
		},
		"unnamed": {
			file:        &bind.File{Body: strings.NewReader("a,b\n")},
			contentType: "application/octet-stream",
			disposition: "attachment",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := bind.New()
			bind.Get(r, "/file", func(_ context.Context, _ *bind.Void) (*bind.File, error) {
				return tc.file, nil
			})

			rec := serve(t, r, httptest.NewRequest(http.MethodGet, "/file", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tc.contentType, rec.Header().Get("Content-Type"))
			assert.Equal(t, tc.disposition, rec.Header().Get("Content-Disposition"))
			assert.Equal(t, "a,b\n", rec.Body.String())
		})
	}
}
