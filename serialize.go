package bind

import (
	"encoding"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// SerializeOptions shape a response value before it is encoded. Include
// and Exclude take dotted field paths ("address.zipcode") matching either
// the Go name or the json name of each field.
type SerializeOptions struct {
	Include []string
	Exclude []string
	// ByAlias keys fields by their json name instead of the Go name.
	ByAlias bool
	// ExcludeUnset drops fields the value does not report through
	// FieldsSetter, or zero fields when it does not implement it.
	ExcludeUnset bool
	// ExcludeDefaults drops fields equal to their default tag (or zero).
	ExcludeDefaults bool
	// ExcludeNone drops nil pointers, maps, slices and interfaces.
	ExcludeNone bool
}

// SerializeOptioner is implemented by response values that carry their own
// serialization defaults.
type SerializeOptioner interface {
	SerializeOptions() SerializeOptions
}

// FieldsSetter is implemented by values that track which fields were set
// explicitly. It drives ExcludeUnset.
type FieldsSetter interface {
	FieldsSet() []string
}

// pathSet is a tree of dotted field paths.
type pathSet map[string]pathSet

func newPathSet(paths []string) pathSet {
	if len(paths) == 0 {
		return nil
	}
	root := pathSet{}
	for _, p := range paths {
		node := root
		for _, part := range strings.Split(p, ".") {
			next, ok := node[part]
			if !ok {
				next = pathSet{}
				node[part] = next
			}
			node = next
		}
	}
	return root
}

// lookup returns the subtree for a field known by either name.
func (ps pathSet) lookup(names ...string) (pathSet, bool) {
	for _, n := range names {
		if sub, ok := ps[n]; ok {
			return sub, true
		}
	}
	return nil, false
}

// Serialize converts v into maps, slices and scalars according to opts.
// The result is ready for any Encoder.
func Serialize(v any, opts SerializeOptions) any {
	s := serializer{opts: opts}
	return s.value(reflect.ValueOf(v), newPathSet(opts.Include), newPathSet(opts.Exclude))
}

type serializer struct {
	opts SerializeOptions
}

func (s serializer) value(v reflect.Value, include, exclude pathSet) any {
	if !v.IsValid() {
		return nil
	}
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	t := v.Type()
	if isScalarType(t) || t.Implements(textMarshalerType) || reflect.PointerTo(t).Implements(textMarshalerType) {
		return v.Interface()
	}

	//exhaustive:ignore
	switch v.Kind() {
	case reflect.Struct:
		return s.object(v, include, exclude)
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil
		}
		out := make([]any, v.Len())
		for i := range v.Len() {
			out[i] = s.value(v.Index(i), include, exclude)
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key := mapKey(iter.Key())
			inc, exc, keep := s.filter(include, exclude, key)
			if !keep {
				continue
			}
			out[key] = s.value(iter.Value(), inc, exc)
		}
		return out
	default:
		return v.Interface()
	}
}

func (s serializer) object(v reflect.Value, include, exclude pathSet) map[string]any {
	t := v.Type()

	var set []string
	if s.opts.ExcludeUnset && v.CanInterface() {
		if fs, ok := v.Interface().(FieldsSetter); ok {
			set = fs.FieldsSet()
		} else if v.CanAddr() {
			if fs, ok := v.Addr().Interface().(FieldsSetter); ok {
				set = fs.FieldsSet()
			}
		}
	}

	out := make(map[string]any, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() && !promoted(f) {
			continue
		}
		fv := v.Field(i)

		if promoted(f) {
			if fv.Kind() == reflect.Pointer && fv.IsNil() {
				continue
			}
			for k, val := range s.object(reflect.Indirect(fv), include, exclude) {
				out[k] = val
			}
			continue
		}

		jsonName := jsonFieldName(f)
		if jsonName == "-" {
			continue
		}
		_, jsonOpts := tagOptions(f.Tag.Get("json"))

		inc, exc, keep := s.filter(include, exclude, f.Name, jsonName)
		if !keep || s.drop(f, fv, set, jsonOpts) {
			continue
		}

		key := f.Name
		if s.opts.ByAlias {
			key = jsonName
		}
		out[key] = s.value(fv, inc, exc)
	}
	return out
}

// filter applies the include and exclude trees to one key and returns the
// subtrees for its children.
func (s serializer) filter(include, exclude pathSet, names ...string) (pathSet, pathSet, bool) {
	var inc, exc pathSet
	if include != nil {
		sub, ok := include.lookup(names...)
		if !ok {
			return nil, nil, false
		}
		if len(sub) > 0 {
			inc = sub
		}
	}
	if exclude != nil {
		if sub, ok := exclude.lookup(names...); ok {
			if len(sub) == 0 {
				return nil, nil, false
			}
			exc = sub
		}
	}
	return inc, exc, true
}

func (s serializer) drop(f reflect.StructField, fv reflect.Value, set []string, jsonOpts string) bool {
	if tagContains(jsonOpts, "omitempty") && fv.IsZero() {
		return true
	}
	if s.opts.ExcludeNone && isNil(fv) {
		return true
	}
	if s.opts.ExcludeUnset {
		if set != nil {
			if !slices.Contains(set, f.Name) && !slices.Contains(set, jsonFieldName(f)) {
				return true
			}
		} else if fv.IsZero() {
			return true
		}
	}
	if s.opts.ExcludeDefaults && equalsDefault(f, fv) {
		return true
	}
	return false
}

func isNil(v reflect.Value) bool {
	//exhaustive:ignore
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

// equalsDefault reports whether fv holds its field's default tag value, or
// the zero value when the field declares none.
func equalsDefault(f reflect.StructField, fv reflect.Value) bool {
	raw, ok := f.Tag.Lookup("default")
	if !ok {
		return fv.IsZero()
	}
	dv, err := parseDefault(raw, f.Type, shapeOf(f.Type))
	if err != nil {
		return false
	}
	return reflect.DeepEqual(fv.Interface(), dv.Interface())
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	if tm, ok := k.Interface().(encoding.TextMarshaler); ok {
		if b, err := tm.MarshalText(); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(k.Interface())
}
