package bind

import (
	"encoding"
	"mime/multipart"
	"reflect"
	"time"
)

// Source is the wire location a value is read from.
type Source int

// Sources.
const (
	SourceQuery Source = iota
	SourcePath
	SourceHeader
	SourceCookie
	SourceBody
	SourceForm
	SourceFile
	SourceSystem
)

var sourceNames = [...]string{
	SourceQuery:  "query",
	SourcePath:   "path",
	SourceHeader: "header",
	SourceCookie: "cookie",
	SourceBody:   "body",
	SourceForm:   "form",
	SourceFile:   "file",
	SourceSystem: "system",
}

func (s Source) String() string {
	if int(s) < len(sourceNames) {
		return sourceNames[s]
	}
	return "unknown"
}

// Scalar reports whether the source carries only string values
// (path, query, header, cookie).
func (s Source) Scalar() bool {
	return s <= SourceCookie
}

// BodyLike reports whether the source is read from the request payload.
func (s Source) BodyLike() bool {
	return s == SourceBody || s == SourceForm || s == SourceFile
}

// locRoot is the first element of error locations for this source.
// Every payload-borne source reports under "body".
func (s Source) locRoot() string {
	if s.BodyLike() {
		return "body"
	}
	return s.String()
}

// Shape classifies a declared type.
type Shape int

// Shapes.
const (
	ShapeScalar Shape = iota
	ShapeSequence
	ShapeComposite
	shapeUnsupported
)

func (s Shape) String() string {
	switch s {
	case ShapeScalar:
		return "scalar"
	case ShapeSequence:
		return "sequence"
	case ShapeComposite:
		return "composite"
	default:
		return "unsupported"
	}
}

// FieldDescriptor is the normalized description of one bound value.
type FieldDescriptor struct {
	// Name is the Go field name and the key of the resolved values.
	Name string
	// Alias is the wire name.
	Alias string
	Type   reflect.Type
	Source Source
	Shape  Shape

	Required   bool
	HasDefault bool
	Default    reflect.Value

	Constraints Constraints

	// Embed nests a body value under Alias instead of using the whole payload.
	Embed     bool
	MediaType string

	ConvertUnderscores bool
	Doc                string

	// Index is the field index path within the request struct (or, for
	// children of a bulk descriptor, within the composite type).
	Index []int

	// Children holds the per-field descriptors of a composite value read
	// from a scalar source or a form.
	Children []*FieldDescriptor

	system systemKind
}

// loc returns the error location of the descriptor.
func (f *FieldDescriptor) loc() Location {
	return Location{f.Source.locRoot(), f.Alias}
}

// defaultValue returns a copy of the declared default, or the zero value
// when none was declared.
func (f *FieldDescriptor) defaultValue() reflect.Value {
	if !f.HasDefault {
		return reflect.Zero(f.Type)
	}
	return cloneValue(f.Default)
}

// cloneValue copies slices, maps and pointers so callers never share the
// stored default.
func cloneValue(v reflect.Value) reflect.Value {
	//exhaustive:ignore
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := range v.Len() {
			out.Index(i).Set(cloneValue(v.Index(i)))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return out
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(cloneValue(v.Elem()))
		return out
	default:
		return v
	}
}

var (
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
	timeType            = reflect.TypeFor[time.Time]()
	durationType        = reflect.TypeFor[time.Duration]()
	bytesType           = reflect.TypeFor[[]byte]()
	uploadFileType      = reflect.TypeFor[UploadFile]()
	fileHeaderType      = reflect.TypeFor[multipart.FileHeader]()
)

// shapeOf classifies t. Pointers are classified by their element.
func shapeOf(t reflect.Type) Shape {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if isScalarType(t) {
		return ShapeScalar
	}
	//exhaustive:ignore
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		if shapeOf(t.Elem()) == ShapeScalar {
			return ShapeSequence
		}
		return ShapeComposite
	case reflect.Struct, reflect.Map:
		return ShapeComposite
	default:
		return shapeUnsupported
	}
}

// isScalarType reports whether a single wire string (or file) can populate t.
func isScalarType(t reflect.Type) bool {
	switch t {
	case timeType, durationType, bytesType, uploadFileType, fileHeaderType:
		return true
	}
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return true
	}
	//exhaustive:ignore
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// derefType strips pointer indirections.
func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
