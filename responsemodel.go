package bind

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"maps"
	"net/http"
	"reflect"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// AnyStatus keys the schema used for statuses without their own entry.
const AnyStatus = -1

// ModelKind identifies a response model variant.
type ModelKind int

// Response model kinds.
const (
	ModelPassthrough ModelKind = iota
	ModelJSON
	ModelHTML
	ModelFile
	ModelStreaming
)

var modelKindNames = [...]string{
	ModelPassthrough: "passthrough",
	ModelJSON:        "json",
	ModelHTML:        "html",
	ModelFile:        "file",
	ModelStreaming:   "streaming",
}

func (k ModelKind) String() string {
	if int(k) < len(modelKindNames) {
		return modelKindNames[k]
	}
	return "unknown"
}

// ResponseModel renders handler results. Each model owns the status to
// schema mapping declared for its handler.
type ResponseModel interface {
	Kind() ModelKind
	Schemas() map[int]reflect.Type
	DefaultDescription() string
	render(ec *ExecutionContext, status int, schema reflect.Type, value any, opts *SerializeOptions) (*WireResponse, error)
}

type schemaSet map[int]reflect.Type

func (s schemaSet) Schemas() map[int]reflect.Type { return maps.Clone(s) }

var (
	voidType     = reflect.TypeFor[Void]()
	replyType    = reflect.TypeFor[Reply]()
	redirectType = reflect.TypeFor[Redirect]()
	htmlType     = reflect.TypeFor[HTML]()
	fileType     = reflect.TypeFor[File]()
	streamType   = reflect.TypeFor[Stream]()
	sseType      = reflect.TypeFor[SSEStream]()

	statusCoderType = reflect.TypeFor[StatusCoder]()
)

// NewResponseModel picks the model variant for a handler's response type.
func NewResponseModel(respType reflect.Type, schemas map[int]reflect.Type, codecs *codecRegistry, validationStatus int) ResponseModel {
	set := schemaSet(schemas)
	switch derefType(respType) {
	case voidType, redirectType:
		return &passthroughModel{schemaSet: set, codecs: codecs}
	case htmlType:
		return &htmlModel{schemaSet: set}
	case fileType:
		return &fileModel{schemaSet: set}
	case streamType, sseType:
		return &streamModel{schemaSet: set}
	default:
		return &jsonModel{schemaSet: set, codecs: codecs, validationStatus: validationStatus}
	}
}

// ResponseSpec turns handler results into wire responses.
type ResponseSpec struct {
	Model         ResponseModel
	DefaultStatus int
	// Options apply when neither the reply nor the value carry their own.
	Options *SerializeOptions
}

// Resolve picks the status and schema for value and renders it.
//
// The status is the first of: the Reply status or the value's StatusCode,
// a status already set on ec.Response(), the only declared status, and
// DefaultStatus. The schema is the one declared for that status, else the
// AnyStatus entry; with neither the value is passed through unvalidated.
func (s *ResponseSpec) Resolve(ec *ExecutionContext, value any) (*WireResponse, error) {
	var (
		explicit int
		opts     *SerializeOptions
	)
	if r, ok := value.(*Reply); ok && r != nil {
		explicit = r.Status
		opts = r.Options
		value = r.Body
	}
	if explicit == 0 {
		if sc, ok := value.(StatusCoder); ok && !isNilValue(value) {
			explicit = sc.StatusCode()
		}
	}
	if opts == nil {
		if so, ok := value.(SerializeOptioner); ok && !isNilValue(value) {
			o := so.SerializeOptions()
			opts = &o
		}
	}
	if opts == nil {
		opts = s.Options
	}

	status := s.status(ec, explicit)
	schemas := s.Model.Schemas()
	schema, ok := schemas[status]
	if !ok {
		schema, ok = schemas[AnyStatus]
	}
	model := s.Model
	if !ok {
		ec.Logger().Warn("no response model declared for status",
			zap.Int("status", status),
			zap.String("model", s.Model.Kind().String()),
		)
		model = &passthroughModel{codecs: codecsOf(s.Model)}
	}

	wr, err := model.render(ec, status, schema, value, opts)
	if err != nil {
		return nil, err
	}
	applySetters(wr, value)
	return wr, nil
}

func (s *ResponseSpec) status(ec *ExecutionContext, explicit int) int {
	if explicit != 0 {
		return explicit
	}
	if st := ec.Response().Status(); st != 0 {
		return st
	}
	schemas := s.Model.Schemas()
	if len(schemas) == 1 {
		for st := range schemas {
			if st != AnyStatus {
				return st
			}
		}
	}
	if s.DefaultStatus != 0 {
		return s.DefaultStatus
	}
	return http.StatusOK
}

func codecsOf(m ResponseModel) *codecRegistry {
	switch m := m.(type) {
	case *jsonModel:
		return m.codecs
	case *passthroughModel:
		return m.codecs
	default:
		return newCodecRegistry(nil, nil)
	}
}

// passthroughModel writes values without validation.
type passthroughModel struct {
	schemaSet
	codecs *codecRegistry
}

func (*passthroughModel) Kind() ModelKind            { return ModelPassthrough }
func (*passthroughModel) DefaultDescription() string { return "Response" }

func (m *passthroughModel) render(ec *ExecutionContext, status int, _ reflect.Type, value any, _ *SerializeOptions) (*WireResponse, error) {
	wr := newWireResponse(status)
	switch v := value.(type) {
	case nil, *Void:
		return wr, nil
	case *Redirect:
		wr.Header.Set("Location", v.URL)
		return wr, nil
	case string:
		wr.Header.Set("Content-Type", "text/plain; charset=utf-8")
		wr.Body = []byte(v)
		return wr, nil
	case []byte:
		wr.Header.Set("Content-Type", "application/octet-stream")
		wr.Body = v
		return wr, nil
	}
	if isNilValue(value) {
		return wr, nil
	}
	return encodeBody(ec, m.codecs, wr, value)
}

// jsonModel validates values against the declared schema and encodes them
// with the negotiated codec.
type jsonModel struct {
	schemaSet
	codecs           *codecRegistry
	validationStatus int
}

func (*jsonModel) Kind() ModelKind            { return ModelJSON }
func (*jsonModel) DefaultDescription() string { return "Successful Response" }

func (m *jsonModel) render(ec *ExecutionContext, status int, schema reflect.Type, value any, opts *SerializeOptions) (*WireResponse, error) {
	wr := newWireResponse(status)
	if value == nil || isNilValue(value) {
		return wr, nil
	}

	out := value
	if schema != nil && schema != voidType {
		v, errs := conform(value, schema)
		if len(errs) > 0 {
			return nil, &RequestValidationError{Errors: errs, Status: m.validationStatus}
		}
		out = v.Interface()
	}
	if opts != nil {
		out = Serialize(out, *opts)
	}
	return encodeBody(ec, m.codecs, wr, out)
}

// encodeBody encodes v with the encoder the request accepts. An explicit
// Accept header no encoder matches fails with 406.
func encodeBody(ec *ExecutionContext, codecs *codecRegistry, wr *WireResponse, v any) (*WireResponse, error) {
	enc, ok := codecs.negotiate(ec.Connection().Header().Get("Accept"))
	if !ok {
		return nil, Error(http.StatusNotAcceptable, http.StatusText(http.StatusNotAcceptable))
	}
	var buf bytes.Buffer
	if err := enc.Encode(&buf, v); err != nil {
		return nil, errors.Wrap(err, "encode response")
	}
	wr.Header.Set("Content-Type", enc.ContentType())
	wr.Body = buf.Bytes()
	return wr, nil
}

// conform converts value into schema and validates it. Values of another
// type are converted through a JSON round trip.
func conform(value any, schema reflect.Type) (reflect.Value, []FieldError) {
	loc := Location{"response"}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer && rv.Type() != schema && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Type() != schema {
		data, err := json.Marshal(value)
		if err != nil {
			return reflect.Value{}, []FieldError{invalidError(loc, "value could not be encoded: "+err.Error(), nil)}
		}
		target := reflect.New(schema)
		if err := json.Unmarshal(data, target.Interface()); err != nil {
			fe := decodeFailure(err, nil, loc)
			fe.Kind = KindInvalid
			fe.Input = nil
			return reflect.Value{}, []FieldError{fe}
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err == nil {
			if errs := checkPresence(schema, generic, loc); len(errs) > 0 {
				return reflect.Value{}, errs
			}
		}
		rv = target.Elem()
	}

	if errs := validateValue(rv, loc); len(errs) > 0 {
		return reflect.Value{}, errs
	}
	return rv, nil
}

// htmlModel writes HTML documents and templ components.
type htmlModel struct {
	schemaSet
}

func (*htmlModel) Kind() ModelKind            { return ModelHTML }
func (*htmlModel) DefaultDescription() string { return "HTML Response" }

func (m *htmlModel) render(ec *ExecutionContext, status int, _ reflect.Type, value any, _ *SerializeOptions) (*WireResponse, error) {
	wr := newWireResponse(status)
	wr.Header.Set("Content-Type", "text/html; charset=utf-8")
	switch v := value.(type) {
	case *HTML:
		if v == nil {
			return wr, nil
		}
		body, err := v.render(ec.Context())
		if err != nil {
			return nil, err
		}
		wr.Body = body
	case string:
		wr.Body = []byte(v)
	case []byte:
		wr.Body = v
	case nil:
	default:
		return nil, errors.Newf("html response cannot render %T", value)
	}
	return wr, nil
}

// fileModel streams file downloads.
type fileModel struct {
	schemaSet
}

func (*fileModel) Kind() ModelKind            { return ModelFile }
func (*fileModel) DefaultDescription() string { return "File Response" }

func (m *fileModel) render(_ *ExecutionContext, status int, _ reflect.Type, value any, _ *SerializeOptions) (*WireResponse, error) {
	wr := newWireResponse(status)
	f, ok := value.(*File)
	if !ok {
		return nil, errors.Newf("file response cannot render %T", value)
	}
	if f == nil {
		return wr, nil
	}
	wr.Header.Set("Content-Type", f.contentType())
	wr.Header.Set("Content-Disposition", f.disposition())
	wr.stream = func(_ context.Context, w http.ResponseWriter, status int) {
		w.WriteHeader(status)
		if f.Body == nil {
			return
		}
		//nolint:errcheck,gosec // best-effort streaming copy
		io.Copy(w, f.Body)
		if c, ok := f.Body.(io.Closer); ok {
			//nolint:errcheck,gosec // best-effort close
			c.Close()
		}
	}
	return wr, nil
}

// streamModel writes raw streams and server-sent events.
type streamModel struct {
	schemaSet
}

func (*streamModel) Kind() ModelKind            { return ModelStreaming }
func (*streamModel) DefaultDescription() string { return "Streaming Response" }

func (m *streamModel) render(_ *ExecutionContext, status int, _ reflect.Type, value any, _ *SerializeOptions) (*WireResponse, error) {
	wr := newWireResponse(status)
	switch v := value.(type) {
	case *Stream:
		if v == nil {
			return wr, nil
		}
		wr.stream = func(_ context.Context, w http.ResponseWriter, status int) {
			writeStream(w, v, status)
		}
	case *SSEStream:
		if v == nil {
			return wr, nil
		}
		wr.stream = func(ctx context.Context, w http.ResponseWriter, _ int) {
			writeSSEStream(ctx, w, v)
		}
	default:
		return nil, errors.Newf("streaming response cannot render %T", value)
	}
	return wr, nil
}

// isNilValue reports whether v is a typed nil pointer, map, slice or
// interface.
func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	return isNil(reflect.ValueOf(v))
}
