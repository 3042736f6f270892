package bind

import (
	"context"
	"net/http"
)

// Void is used as a type parameter when a request has no parameters/body
// or a response has no body (results in 204 No Content).
type Void struct{}

// Handler is the core typed handler signature. The framework owns
// resolution and serialization; handlers never see http.ResponseWriter.
type Handler[Req, Resp any] func(ctx context.Context, req *Req) (*Resp, error)

// RawHandler is an escape hatch for WebSocket upgrades, SSE, or anything
// that needs direct access to the underlying http primitives.
type RawHandler func(w http.ResponseWriter, r *http.Request)

// Reply is returned by handlers that choose the status per call. Its
// Status overrides every declared default, and Options, when set,
// override all other serialization settings.
type Reply struct {
	Status  int
	Body    any
	Options *SerializeOptions
}

// NewReply returns a Reply with the given status and body.
func NewReply(status int, body any) *Reply {
	return &Reply{Status: status, Body: body}
}
