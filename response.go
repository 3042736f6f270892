package bind

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
)

// CookieSetter is optionally implemented by response types to set cookies.
type CookieSetter interface {
	Cookies() []*http.Cookie
}

// HeaderSetter is optionally implemented by response types to set response headers.
type HeaderSetter interface {
	SetHeaders(h http.Header)
}

// Redirect is returned from a handler to issue an HTTP redirect.
type Redirect struct {
	URL    string
	Status int
}

// StatusCode returns the redirect status, 302 by default.
func (rd *Redirect) StatusCode() int {
	if rd.Status == 0 {
		return http.StatusFound
	}
	return rd.Status
}

// WireResponse is a rendered response, ready to be written.
type WireResponse struct {
	Status int
	Header http.Header
	Body   []byte

	// stream writes bodies that are produced while writing.
	stream func(ctx context.Context, w http.ResponseWriter, status int)
}

func newWireResponse(status int) *WireResponse {
	return &WireResponse{Status: status, Header: make(http.Header)}
}

// Write sends the response. Headers and cookies collected on the
// ExecutionContext are applied first.
func (wr *WireResponse) Write(ec *ExecutionContext, w http.ResponseWriter) {
	ec.Response().apply(w)
	for k, vs := range wr.Header {
		w.Header()[k] = vs
	}
	if wr.stream != nil {
		wr.stream(ec.Context(), w, wr.Status)
		return
	}
	if len(wr.Body) > 0 {
		w.Header().Set("Content-Length", strconv.Itoa(len(wr.Body)))
	}
	w.WriteHeader(wr.Status)
	if len(wr.Body) > 0 {
		//nolint:errcheck,gosec // best-effort after WriteHeader
		w.Write(wr.Body)
	}
}

// applySetters copies headers and cookies a response value declares.
func applySetters(wr *WireResponse, value any) {
	if cs, ok := value.(CookieSetter); ok {
		for _, c := range cs.Cookies() {
			if v := c.String(); v != "" {
				wr.Header.Add("Set-Cookie", v)
			}
		}
	}
	if hs, ok := value.(HeaderSetter); ok {
		hs.SetHeaders(wr.Header)
	}
}

// writeErrorResponse writes an error as an RFC 9457 problem details response.
func writeErrorResponse(w http.ResponseWriter, err error) {
	problem := problemFor(err)
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)
	//nolint:errcheck,errchkjson,gosec // best-effort after WriteHeader
	json.NewEncoder(w).Encode(problem)
}
