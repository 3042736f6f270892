package bind

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// bodyResolver binds the whole payload to one descriptor. In form mode it
// instead decodes a JSON document carried by the form field named Alias.
type bodyResolver struct {
	field    *FieldDescriptor
	codecs   *codecRegistry
	fromForm bool
}

func newBodyResolver(f *FieldDescriptor, cfg *compileConfig) Resolver {
	return &bodyResolver{field: f, codecs: cfg.codecs}
}

func (b *bodyResolver) Field() *FieldDescriptor { return b.field }

func (b *bodyResolver) Resolve(ec *ExecutionContext) (ResolverResult, error) {
	if b.fromForm {
		return b.resolveFormValue(ec)
	}

	loc := Location{"body"}
	payload, err := ec.Connection().Body()
	if err != nil {
		return newResult(), err
	}
	if len(payload) == 0 {
		return resolveAbsent(b.field, loc), nil
	}

	res := newResult()
	res.RawData["body"] = string(payload)

	var dec Decoder
	if !isRawBody(b.field.Type) {
		dec, err = b.codecs.bodyDecoder(ec.Connection().ContentType(), b.field.MediaType)
		if err != nil {
			return res, err
		}
	}

	v, generic, errs := decodePayload(payload, dec, b.field.Type, loc)
	if generic != nil {
		res.RawData["body"] = generic
	}
	if len(errs) > 0 {
		res.Errors = errs
		return res, nil
	}

	errs = checkPresence(b.field.Type, generic, loc)
	errs = append(errs, b.field.Constraints.check(v, loc)...)
	errs = append(errs, validateValue(v, loc)...)
	if len(errs) > 0 {
		res.Errors = errs
		return res, nil
	}
	res.Data[b.field.Name] = v.Interface()
	return res, nil
}

func (b *bodyResolver) resolveFormValue(ec *ExecutionContext) (ResolverResult, error) {
	loc := b.field.loc()
	form, err := ec.Connection().Form()
	if err != nil {
		return formFailure(err)
	}
	raw, ok := form.Get(b.field.Alias)
	if !ok {
		return resolveAbsent(b.field, loc), nil
	}

	res := newResult()
	res.RawData[loc.String()] = raw
	v, generic, errs := decodePayload([]byte(raw), jsonCodec{}, b.field.Type, loc)
	if len(errs) > 0 {
		res.Errors = errs
		return res, nil
	}
	errs = checkPresence(b.field.Type, generic, loc)
	errs = append(errs, b.field.Constraints.check(v, loc)...)
	errs = append(errs, validateValue(v, loc)...)
	if len(errs) > 0 {
		res.Errors = errs
		return res, nil
	}
	res.Data[b.field.Name] = v.Interface()
	return res, nil
}

// bodyGroupResolver binds several payload members at once. Structured
// payloads are decoded into a synthetic struct holding one pointer field
// per member; form payloads are resolved member by member.
type bodyGroupResolver struct {
	field    *FieldDescriptor
	members  []*FieldDescriptor
	synth    reflect.Type
	embedded bool
	codecs   *codecRegistry

	form Resolver
}

func (g *bodyGroupResolver) Field() *FieldDescriptor { return g.field }

func (g *bodyGroupResolver) Resolve(ec *ExecutionContext) (ResolverResult, error) {
	if g.form != nil {
		if _, err := ec.Connection().Form(); err != nil {
			return formFailure(err)
		}
		return g.form.Resolve(ec)
	}

	loc := Location{"body"}
	payload, err := ec.Connection().Body()
	if err != nil {
		return newResult(), err
	}

	res := newResult()
	if len(payload) == 0 {
		for _, m := range g.members {
			res.merge(resolveAbsent(m, g.memberLoc(loc, m)))
		}
		return res, nil
	}
	res.RawData["body"] = string(payload)

	var dec Decoder
	if g.embedded || !isRawBody(g.synth) {
		dec, err = g.codecs.bodyDecoder(ec.Connection().ContentType(), g.field.MediaType)
		if err != nil {
			return res, err
		}
	}

	target, generic, errs := decodePayload(payload, dec, reflect.PointerTo(g.synth), loc)
	if generic != nil {
		res.RawData["body"] = generic
	}
	if len(errs) > 0 {
		res.Errors = errs
		return res, nil
	}

	for i, m := range g.members {
		mloc := g.memberLoc(loc, m)
		mv, mgeneric := g.member(target, generic, i, m)
		if !mv.IsValid() {
			res.merge(resolveAbsent(m, mloc))
			continue
		}
		errs := checkPresence(m.Type, mgeneric, mloc)
		errs = append(errs, m.Constraints.check(mv, mloc)...)
		errs = append(errs, validateValue(mv, mloc)...)
		if len(errs) > 0 {
			res.Errors = append(res.Errors, errs...)
			continue
		}
		res.Data[m.Name] = mv.Interface()
	}
	return res, nil
}

func (g *bodyGroupResolver) memberLoc(loc Location, m *FieldDescriptor) Location {
	if g.embedded {
		return loc.Child(m.Alias)
	}
	return loc
}

// member extracts the i-th member from the decoded synthetic value. An
// invalid Value means the member was absent from the payload.
func (g *bodyGroupResolver) member(target reflect.Value, generic any, i int, m *FieldDescriptor) (reflect.Value, any) {
	if !g.embedded {
		v := target
		if m.Type.Kind() != reflect.Pointer {
			v = v.Elem()
		}
		return v, generic
	}

	var mgeneric any
	if obj, ok := generic.(map[string]any); ok {
		mgeneric = obj[m.Alias]
	}
	fv := target.Elem().Field(i)
	if fv.IsNil() {
		return reflect.Value{}, nil
	}
	if m.Type.Kind() == reflect.Pointer {
		return fv, mgeneric
	}
	return fv.Elem(), mgeneric
}

// syntheticBody builds the struct the members of a group decode into.
func syntheticBody(members []*FieldDescriptor) reflect.Type {
	fields := make([]reflect.StructField, len(members))
	for i, m := range members {
		t := m.Type
		if t.Kind() != reflect.Pointer {
			t = reflect.PointerTo(t)
		}
		fields[i] = reflect.StructField{
			Name: fmt.Sprintf("Member%d", i),
			Type: t,
			Tag:  reflect.StructTag(fmt.Sprintf(`json:%q yaml:%q xml:%q`, m.Alias, m.Alias, m.Alias)),
		}
	}
	return reflect.StructOf(fields)
}

// decodePayload decodes payload into a new value of type t. It returns the
// value, a generic decoding used for presence checks (nil when the codec
// cannot produce one) and any decode errors. dec may be nil for raw
// payload types.
func decodePayload(payload []byte, dec Decoder, t reflect.Type, loc Location) (reflect.Value, any, []FieldError) {
	base := derefType(t)
	if isRawBody(base) {
		v := reflect.New(base).Elem()
		if base == bytesType {
			v.SetBytes(payload)
		} else {
			v.SetString(string(payload))
		}
		if t.Kind() == reflect.Pointer {
			return v.Addr(), nil, nil
		}
		return v, nil, nil
	}

	target := reflect.New(base)
	if err := dec.Decode(bytes.NewReader(payload), target.Interface()); err != nil {
		return reflect.Value{}, nil, []FieldError{decodeFailure(err, payload, loc)}
	}

	var generic any
	if err := dec.Decode(bytes.NewReader(payload), &generic); err != nil {
		generic = nil
	}

	if t.Kind() == reflect.Pointer {
		return target, generic, nil
	}
	return target.Elem(), generic, nil
}

// decodeFailure classifies a decoder error. Type mismatches are invalid
// values at the offending path; anything else means the payload could not
// be decoded at all.
func decodeFailure(err error, payload []byte, loc Location) FieldError {
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) {
		errLoc := loc
		if ute.Field != "" {
			errLoc = loc.Child(strings.Split(ute.Field, ".")...)
		}
		return invalidError(errLoc, fmt.Sprintf("expected %s, got %s", ute.Type, ute.Value), nil)
	}
	var yte *yaml.TypeError
	if errors.As(err, &yte) {
		return invalidError(loc, strings.Join(yte.Errors, "; "), nil)
	}
	return FieldError{
		Loc:   loc,
		Msg:   "payload could not be decoded: " + err.Error(),
		Kind:  KindMalformed,
		Input: string(payload),
	}
}

// isRawBody reports whether t receives the payload bytes undecoded.
func isRawBody(t reflect.Type) bool {
	base := derefType(t)
	return base == bytesType || base.Kind() == reflect.String
}

// checkPresence reports fields tagged required:"true" that are absent
// from the generic decoding of the payload.
func checkPresence(t reflect.Type, generic any, loc Location) []FieldError {
	if generic == nil {
		return nil
	}
	t = derefType(t)

	//exhaustive:ignore
	switch t.Kind() {
	case reflect.Struct:
		if isScalarType(t) {
			return nil
		}
		obj, ok := generic.(map[string]any)
		if !ok {
			return nil
		}
		var errs []FieldError
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() && !promoted(f) {
				continue
			}
			if promoted(f) {
				errs = append(errs, checkPresence(f.Type, generic, loc)...)
				continue
			}
			name := jsonFieldName(f)
			if name == "-" {
				continue
			}
			val, present := obj[name]
			if !present {
				if f.Tag.Get("required") == "true" {
					errs = append(errs, missingError(loc.Child(name)))
				}
				continue
			}
			errs = append(errs, checkPresence(f.Type, val, loc.Child(name))...)
		}
		return errs
	case reflect.Slice, reflect.Array:
		items, ok := generic.([]any)
		if !ok {
			return nil
		}
		var errs []FieldError
		for i, item := range items {
			errs = append(errs, checkPresence(t.Elem(), item, loc.Child(fmt.Sprint(i)))...)
		}
		return errs
	default:
		return nil
	}
}

// formFailure converts a form parsing error into a malformed-payload field
// error, or passes other failures through.
func formFailure(err error) (ResolverResult, error) {
	res := newResult()
	if errors.Is(err, ErrMalformedForm) {
		res.Errors = append(res.Errors, FieldError{
			Loc:  Location{"body"},
			Msg:  "form could not be parsed: " + err.Error(),
			Kind: KindMalformed,
		})
		return res, nil
	}
	return res, err
}

// errUnsupportedMediaType is returned when no decoder handles the request
// content type.
func errUnsupportedMediaType(contentType string) error {
	return Errorf(http.StatusUnsupportedMediaType, "unsupported content type %q", contentType)
}
