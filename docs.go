package bind

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// DocsOption configures the docs UI.
type DocsOption func(*docsConfig)

type docsConfig struct {
	title   string
	specURL string
}

// WithDocsTitle sets the page title for the docs UI.
func WithDocsTitle(title string) DocsOption {
	return func(c *docsConfig) {
		c.title = title
	}
}

// WithDocsSpecURL sets the URL the docs UI loads the OpenAPI document from.
// The default is /openapi.json.
func WithDocsSpecURL(url string) DocsOption {
	return func(c *docsConfig) {
		c.specURL = url
	}
}

// ServeDocs serves an interactive API documentation UI at the given path.
// It renders Stoplight Elements pointing at the router's OpenAPI spec.
func (r *Router) ServeDocs(path string, opts ...DocsOption) {
	cfg := &docsConfig{
		title:   r.title,
		specURL: "/openapi.json",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	page := docsPage(cfg)
	Get(r, path, func(context.Context, *Void) (*HTML, error) {
		return &HTML{Component: page}, nil
	}, WithSummary("API documentation"), WithOperationID("docs"))
}

func docsPage(cfg *docsConfig) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>`+templ.EscapeString(cfg.title)+`</title>
  <link rel="stylesheet" href="https://unpkg.com/@stoplight/elements/styles.min.css">
  <script src="https://unpkg.com/@stoplight/elements/web-components.min.js"></script>
</head>
<body>
  <elements-api
    apiDescriptionUrl="`+templ.EscapeString(cfg.specURL)+`"
    router="hash"
    layout="sidebar"
  />
</body>
</html>`)
		return err
	})
}
