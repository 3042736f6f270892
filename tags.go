package bind

import (
	"reflect"
	"strings"
)

// sourceTags maps binding struct tags to their source, in lookup order.
var sourceTags = []struct {
	tag    string
	source Source
}{
	{"path", SourcePath},
	{"query", SourceQuery},
	{"header", SourceHeader},
	{"cookie", SourceCookie},
	{"body", SourceBody},
	{"form", SourceForm},
	{"file", SourceFile},
}

// fieldTag is the parsed binding tag of a struct field.
type fieldTag struct {
	source   Source
	explicit bool
	alias    string
	opts     string
}

func (ft fieldTag) has(opt string) bool { return tagContains(ft.opts, opt) }

// lookupSourceTag returns the binding tag of f. A field carrying more than
// one source tag is reported with ok=false and a non-empty conflict.
func lookupSourceTag(f reflect.StructField) (ft fieldTag, conflict string) {
	for _, st := range sourceTags {
		val, ok := f.Tag.Lookup(st.tag)
		if !ok {
			continue
		}
		if ft.explicit {
			return ft, st.tag
		}
		name, opts := tagOptions(val)
		ft = fieldTag{source: st.source, explicit: true, alias: name, opts: opts}
	}
	return ft, ""
}

// skipField reports whether f takes no part in binding.
func skipField(f reflect.StructField) bool {
	if !f.IsExported() {
		return true
	}
	return f.Tag.Get("bind") == "-"
}

// promoted reports whether f is an untagged embedded struct whose fields
// are promoted into its parent, as encoding/json treats it.
func promoted(f reflect.StructField) bool {
	return f.Anonymous && f.Tag.Get("json") == "" && derefType(f.Type).Kind() == reflect.Struct
}

// tagOptions splits a struct tag value on comma and returns
// the name and remaining options.
func tagOptions(tag string) (string, string) {
	name, opts, _ := strings.Cut(tag, ",")
	return name, opts
}

// tagContains reports whether a comma-separated list of options
// contains a particular option.
func tagContains(opts string, name string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == name {
			return true
		}
	}
	return false
}

// jsonFieldName returns the JSON field name for a struct field.
func jsonFieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}
