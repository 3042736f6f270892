package bind

import (
	"bytes"
	"context"

	"github.com/a-h/templ"
	"github.com/cockroachdb/errors"
)

// HTML is an HTML response. Component, when set, is rendered with the
// request context; otherwise Content is written as is.
type HTML struct {
	Content   string
	Component templ.Component
}

// render returns the document bytes.
func (h *HTML) render(ctx context.Context) ([]byte, error) {
	if h.Component == nil {
		return []byte(h.Content), nil
	}
	var buf bytes.Buffer
	if err := h.Component.Render(ctx, &buf); err != nil {
		return nil, errors.Wrap(err, "render html component")
	}
	return buf.Bytes(), nil
}
