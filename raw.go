package bind

import "net/http"

// OperationInfo documents a raw route. Nothing about it can be inferred, so
// the document carries only what is declared here plus the default error
// responses.
type OperationInfo struct {
	Summary     string
	Description string
	Tags        []string
	OperationID string
	Deprecated  bool

	// Status is documented as the successful response. Zero means 200.
	Status int
}

// Raw registers h without resolution or serialization. Path values are read
// with r.PathValue; group middleware still applies, group guards do not.
func Raw(reg Registrar, method, pattern string, h RawHandler, info OperationInfo) {
	ri := &routeInfo{
		method:      method,
		pattern:     reg.routePrefix() + pattern,
		summary:     info.Summary,
		desc:        info.Description,
		tags:        append(append([]string(nil), reg.routeTags()...), info.Tags...),
		operationID: info.OperationID,
		deprecated:  info.Deprecated,
		status:      info.Status,
	}
	ri.handler = wrapMiddleware(http.HandlerFunc(h), reg.routeMiddleware())
	reg.owner().addRoute(ri, nil)
}
