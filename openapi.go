package bind

import (
	"maps"
	"net/http"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
)

// OpenAPISpec is the top-level OpenAPI 3.1 document.
type OpenAPISpec struct {
	OpenAPI    string              `json:"openapi" yaml:"openapi"`
	Info       OpenAPIInfo         `json:"info" yaml:"info"`
	Servers    []Server            `json:"servers,omitempty" yaml:"servers,omitempty"`
	Tags       []Tag               `json:"tags,omitempty" yaml:"tags,omitempty"`
	Paths      map[string]PathItem `json:"paths" yaml:"paths"`
	Components *Components         `json:"components,omitempty" yaml:"components,omitempty"`
}

// OpenAPIInfo holds API metadata.
type OpenAPIInfo struct {
	Title   string `json:"title" yaml:"title"`
	Version string `json:"version" yaml:"version"`
}

// Server is an entry of the OpenAPI servers array.
type Server struct {
	URL         string `json:"url" yaml:"url"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Tag is a described OpenAPI tag.
type Tag struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Components holds reusable schemas.
type Components struct {
	Schemas map[string]JSONSchema `json:"schemas,omitempty" yaml:"schemas,omitempty"`
}

// PathItem maps HTTP methods to operations.
type PathItem map[string]Operation

// Operation describes a single API operation on a path.
type Operation struct {
	Summary     string        `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string      `json:"tags,omitempty" yaml:"tags,omitempty"`
	OperationID string        `json:"operationId,omitempty" yaml:"operationId,omitempty"`
	Parameters  []Parameter   `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	RequestBody *RequestBody  `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Responses   OperationResp `json:"responses" yaml:"responses"`
	Deprecated  bool          `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
}

// Parameter describes a single operation parameter.
type Parameter struct {
	Name        string     `json:"name" yaml:"name"`
	In          string     `json:"in" yaml:"in"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool       `json:"required,omitempty" yaml:"required,omitempty"`
	Schema      JSONSchema `json:"schema" yaml:"schema"`
}

// RequestBody describes the request body.
type RequestBody struct {
	Required bool                `json:"required" yaml:"required"`
	Content  map[string]MediaObj `json:"content" yaml:"content"`
}

// MediaObj is a media type object with an optional schema.
type MediaObj struct {
	Schema *JSONSchema `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// OperationResp maps HTTP status codes to response objects.
type OperationResp map[string]ResponseObj

// ResponseObj describes a single response.
type ResponseObj struct {
	Description string              `json:"description" yaml:"description"`
	Content     map[string]MediaObj `json:"content,omitempty" yaml:"content,omitempty"`
}

const problemSchemaRef = "#/components/schemas/ProblemDetail"

// Spec generates the full OpenAPI 3.1 specification from registered routes.
func (r *Router) Spec() OpenAPISpec {
	r.mu.Lock()
	routes := slices.Clone(r.routes)
	r.mu.Unlock()

	spec := OpenAPISpec{
		OpenAPI: "3.1.0",
		Info: OpenAPIInfo{
			Title:   r.title,
			Version: r.version,
		},
		Servers: r.servers,
		Paths:   make(map[string]PathItem),
	}

	reg := newSchemaRegistry()
	for i := range routes {
		ri := &routes[i]
		path := openAPIPattern(ri)
		method := strings.ToLower(ri.method)

		op := buildOperation(reg, ri, r.config.ValidationStatus, r.codecs)

		if spec.Paths[path] == nil {
			spec.Paths[path] = make(PathItem)
		}
		spec.Paths[path][method] = op
	}

	reg.defs["ProblemDetail"] = errorResponseSchema(reg)
	spec.Components = &Components{Schemas: reg.defs}

	for _, name := range slices.Sorted(maps.Keys(r.tagDescs)) {
		spec.Tags = append(spec.Tags, Tag{Name: name, Description: r.tagDescs[name]})
	}

	return spec
}

// buildOperation creates an Operation from a routeInfo.
func buildOperation(reg *schemaRegistry, ri *routeInfo, validationStatus int, codecs *codecRegistry) Operation {
	op := Operation{
		Summary:     ri.summary,
		Description: ri.desc,
		Tags:        ri.tags,
		Deprecated:  ri.deprecated,
		OperationID: ri.operationID,
		Responses:   make(OperationResp),
	}
	if op.OperationID == "" {
		op.OperationID = generateOperationID(ri.method, openAPIPattern(ri))
	}

	hasPath := false
	if ri.plan != nil {
		sig := ri.plan.Signature()
		op.Parameters = extractParameters(reg, sig)
		op.RequestBody = extractRequestBody(reg, sig, ri.plan.MediaType(), codecs.decoderTypes())
		hasPath = len(sig.Template.Params()) > 0
		if len(sig.Fields) > 0 {
			addErrorResponse(op.Responses, validationStatus)
		}
	} else if tmpl, err := ParsePathTemplate(ri.pattern); err == nil {
		hasPath = len(tmpl.Params()) > 0
	}

	if ri.model != nil {
		addModelResponses(reg, op.Responses, ri, codecs.contentTypes())
	} else {
		status := ri.status
		if status == 0 {
			status = http.StatusOK
		}
		op.Responses[strconv.Itoa(status)] = ResponseObj{Description: "Successful response"}
	}

	addErrorResponse(op.Responses, http.StatusBadRequest)
	addErrorResponse(op.Responses, http.StatusInternalServerError)
	if hasPath {
		addErrorResponse(op.Responses, http.StatusNotFound)
	}
	for _, code := range ri.errors {
		addErrorResponse(op.Responses, code)
	}

	return op
}

// addModelResponses documents one response per declared status. The
// AnyStatus entry is documented as "default".
func addModelResponses(reg *schemaRegistry, resps OperationResp, ri *routeInfo, contentTypes []string) {
	for status, schema := range ri.model.Schemas() {
		key := strconv.Itoa(status)
		if status == AnyStatus {
			key = "default"
		}
		desc := ri.responseDesc[status]
		if desc == "" {
			desc = ri.model.DefaultDescription()
		}
		obj := ResponseObj{Description: desc}
		if status != http.StatusNoContent && !bodiless(schema) {
			obj.Content = responseContent(reg, ri.model.Kind(), ri.respType, schema, contentTypes)
		}
		resps[key] = obj
	}
}

// bodiless reports whether responses of schema carry no body.
func bodiless(schema reflect.Type) bool {
	if schema == nil {
		return false
	}
	base := derefType(schema)
	return base == voidType || base == redirectType
}

func responseContent(reg *schemaRegistry, kind ModelKind, respType, schema reflect.Type, contentTypes []string) map[string]MediaObj {
	switch kind {
	case ModelHTML:
		return map[string]MediaObj{"text/html": {Schema: &JSONSchema{Type: "string"}}}
	case ModelFile:
		return map[string]MediaObj{"application/octet-stream": {Schema: &JSONSchema{Type: "string", Format: "binary"}}}
	case ModelStreaming:
		if derefType(respType) == sseType {
			return map[string]MediaObj{"text/event-stream": {Schema: &JSONSchema{Type: "string"}}}
		}
		return map[string]MediaObj{"application/octet-stream": {}}
	case ModelPassthrough, ModelJSON:
	}
	content := make(map[string]MediaObj, len(contentTypes))
	var obj MediaObj
	if schema != nil {
		s := reg.typeToSchema(schema)
		obj.Schema = &s
	}
	for _, ct := range contentTypes {
		content[ct] = obj
	}
	return content
}

func addErrorResponse(resps OperationResp, code int) {
	key := strconv.Itoa(code)
	if _, ok := resps[key]; ok {
		return
	}
	resps[key] = ResponseObj{
		Description: http.StatusText(code),
		Content: map[string]MediaObj{
			"application/problem+json": {Schema: &JSONSchema{Ref: problemSchemaRef}},
		},
	}
}

// errorResponseSchema is the schema of ProblemDetail.
func errorResponseSchema(reg *schemaRegistry) JSONSchema {
	s := reg.structToSchema(reflect.TypeFor[ProblemDetail]())
	s.Required = []string{"status"}
	return s
}

// extractParameters builds OpenAPI parameters from the scalar-source
// descriptors. Composite parameters are documented one member at a time.
// Placeholders no field claims are documented from their converter.
func extractParameters(reg *schemaRegistry, sig *Signature) []Parameter {
	var params []Parameter
	for _, f := range sig.Fields {
		if !f.Source.Scalar() {
			continue
		}
		if len(f.Children) > 0 {
			for _, c := range f.Children {
				params = append(params, parameterFor(reg, c))
			}
			continue
		}
		params = append(params, parameterFor(reg, f))
	}
	for _, p := range sig.OmittedPathParams {
		conv := converters[p.Converter]
		if p.Converter == "" {
			conv = converters["str"]
		}
		params = append(params, Parameter{
			Name:     p.Name,
			In:       SourcePath.String(),
			Required: true,
			Schema:   conv.Schema,
		})
	}
	return params
}

func parameterFor(reg *schemaRegistry, f *FieldDescriptor) Parameter {
	return Parameter{
		Name:        f.Alias,
		In:          f.Source.String(),
		Description: f.Doc,
		Required:    f.Required || f.Source == SourcePath,
		Schema:      fieldSchema(reg, f),
	}
}

func fieldSchema(reg *schemaRegistry, f *FieldDescriptor) JSONSchema {
	s := reg.typeToSchema(f.Type)
	applyConstraints(&s, f.Constraints)
	if f.HasDefault && f.Default.IsValid() {
		s.Default = f.Default.Interface()
	}
	if f.Doc != "" && s.Ref == "" {
		s.Description = f.Doc
	}
	return s
}

// extractRequestBody documents the payload-borne descriptors under the
// media type the plan negotiated, or every decodable type for JSON
// payloads. A single unembedded body is its own schema; anything else is
// an object keyed by alias.
func extractRequestBody(reg *schemaRegistry, sig *Signature, mediaType string, decodable []string) *RequestBody {
	var members []*FieldDescriptor
	for _, f := range sig.Fields {
		if f.Source.BodyLike() {
			members = append(members, f)
		}
	}
	if len(members) == 0 {
		return nil
	}

	rb := &RequestBody{}
	var schema JSONSchema
	if len(members) == 1 && !members[0].Embed && len(members[0].Children) == 0 {
		schema = fieldSchema(reg, members[0])
		rb.Required = members[0].Required
	} else {
		schema = JSONSchema{Type: "object", Properties: make(map[string]JSONSchema)}
		for _, m := range members {
			for _, d := range documentedMembers(m) {
				schema.Properties[d.Alias] = fieldSchema(reg, d)
				if d.Required {
					schema.Required = append(schema.Required, d.Alias)
					rb.Required = true
				}
			}
		}
	}
	if mediaType != "" && mediaType != MediaJSON {
		rb.Content = map[string]MediaObj{mediaType: {Schema: &schema}}
		return rb
	}
	rb.Content = make(map[string]MediaObj, len(decodable))
	for _, ct := range decodable {
		rb.Content[ct] = MediaObj{Schema: &schema}
	}
	return rb
}

// documentedMembers flattens form composites into their members.
func documentedMembers(f *FieldDescriptor) []*FieldDescriptor {
	if len(f.Children) > 0 {
		return f.Children
	}
	return []*FieldDescriptor{f}
}

// generateOperationID derives an operationId from the method and path,
// e.g. GET /users/{id} becomes getUsersById.
func generateOperationID(method, pattern string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for seg := range strings.SplitSeq(strings.Trim(pattern, "/"), "/") {
		if seg == "" {
			continue
		}
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			b.WriteString("By")
			seg = strings.Trim(seg, "{}")
		}
		b.WriteString(strcase.ToCamel(seg))
	}
	return b.String()
}

// openAPIPattern returns the route pattern without converters or wildcards.
func openAPIPattern(ri *routeInfo) string {
	if ri.plan != nil {
		return ri.plan.Signature().Template.OpenAPIPath()
	}
	if tmpl, err := ParsePathTemplate(ri.pattern); err == nil {
		return tmpl.OpenAPIPath()
	}
	return ri.pattern
}
