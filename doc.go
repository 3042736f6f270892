// Package bind resolves typed request values from HTTP requests and
// serializes typed handler results back into responses.
//
// A request type is a struct whose fields name where their values come
// from. Untagged fields are inferred: a field named Body and any struct
// field read the payload, a field whose name matches a path placeholder
// reads the path, and everything else reads the query string.
//
//	type UpdateReq struct {
//	    OrgID   string        `path:"org_id"`
//	    Verbose bool          `query:"verbose" default:"false"`
//	    Token   string        `header:"x-token,optional"`
//	    Body    Item
//	    Log     *zap.Logger
//	}
//
// Request types are compiled once into a Plan. Compilation rejects
// malformed declarations with a *ConfigurationError; resolving a request
// collects every field failure into one *RequestValidationError.
//
//	plan := bind.MustCompile(reflect.TypeFor[UpdateReq](), "/orgs/{org_id}")
//
// Handlers take a context and a pointer to the request type:
//
//	type Handler[Req, Resp any] func(ctx context.Context, req *Req) (*Resp, error)
//
// Routes are registered with package-level generic functions:
//
//	r := bind.New(bind.WithTitle("My API"), bind.WithVersion("1.0.0"))
//	bind.Get(r, "/items", listItems)
//	bind.Post(r, "/items", createItem, bind.WithStatus(http.StatusCreated))
//
// Responses are rendered by a ResponseModel chosen from the handler's
// result type. Status-keyed schemas are declared with WithResponse, and a
// handler picks the status at runtime by returning a *Reply.
//
// Middleware uses the standard func(http.Handler) http.Handler signature,
// so the entire Go middleware ecosystem works natively.
//
// OpenAPI 3.1 documents are generated from the compiled plans:
//
//	r.ServeSpec("/openapi.json")
package bind
