package bind

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/iancoleman/strcase"
)

// Default media types per payload source.
const (
	MediaJSON      = "application/json"
	MediaForm      = "application/x-www-form-urlencoded"
	MediaMultipart = "multipart/form-data"
)

// Signature is the descriptor graph of one request type.
type Signature struct {
	Type reflect.Type
	// Fields holds the wire-bound descriptors in declaration order.
	Fields []*FieldDescriptor
	// System holds descriptors filled from per-request state.
	System   []*FieldDescriptor
	Template *PathTemplate
	// OmittedPathParams lists placeholders no field claims. They are still
	// matched (and converted) by the router and documented.
	OmittedPathParams []PathParam
}

// Field returns the descriptor with the given Go name.
func (s *Signature) Field(name string) (*FieldDescriptor, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	for _, f := range s.System {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Inspect builds the signature of reqType, which must be a struct (or a
// pointer to one). tmpl may be nil for routes without placeholders.
func Inspect(reqType reflect.Type, tmpl *PathTemplate) (*Signature, error) {
	if tmpl == nil {
		tmpl = &PathTemplate{}
	}
	t := derefType(reqType)
	if t.Kind() != reflect.Struct {
		return nil, configErrorf(reqType, "", "request type must be a struct")
	}

	in := &inspector{root: t, tmpl: tmpl}
	sig := &Signature{Type: t, Template: tmpl}
	if err := in.walk(t, nil, sig); err != nil {
		return nil, err
	}
	if err := in.checkUnique(sig); err != nil {
		return nil, err
	}

	claimed := make(map[string]bool)
	for _, f := range sig.Fields {
		for _, d := range flatten(f) {
			if d.Source == SourcePath {
				claimed[d.Alias] = true
			}
		}
	}
	for _, p := range tmpl.Params() {
		if !claimed[p.Name] {
			sig.OmittedPathParams = append(sig.OmittedPathParams, p)
		}
	}
	return sig, nil
}

type inspector struct {
	root reflect.Type
	tmpl *PathTemplate
}

func (in *inspector) walk(t reflect.Type, index []int, sig *Signature) error {
	for i := range t.NumField() {
		sf := t.Field(i)
		if skipField(sf) {
			continue
		}
		idx := append(append([]int(nil), index...), i)

		if kind, ok := systemKindOf(sf); ok {
			sig.System = append(sig.System, &FieldDescriptor{
				Name:   sf.Name,
				Type:   sf.Type,
				Source: SourceSystem,
				Shape:  ShapeScalar,
				Index:  idx,
				system: kind,
			})
			continue
		}

		if in.flattens(sf) {
			if err := in.walk(sf.Type, idx, sig); err != nil {
				return err
			}
			continue
		}

		f, err := in.describe(sf, idx)
		if err != nil {
			return err
		}
		sig.Fields = append(sig.Fields, f)
	}
	return nil
}

// flattens reports whether an embedded struct contributes its fields to
// the parameter list instead of being one parameter itself.
func (in *inspector) flattens(sf reflect.StructField) bool {
	if !sf.Anonymous || sf.Type.Kind() != reflect.Struct || isScalarType(sf.Type) {
		return false
	}
	ft, _ := lookupSourceTag(sf)
	return !ft.explicit
}

func (in *inspector) describe(sf reflect.StructField, index []int) (*FieldDescriptor, error) {
	ft, conflict := lookupSourceTag(sf)
	if conflict != "" {
		return nil, configErrorf(in.root, sf.Name, "multiple source tags (%s and %s)", ft.source, conflict)
	}

	shape := shapeOf(sf.Type)
	if shape == shapeUnsupported {
		return nil, configErrorf(in.root, sf.Name, "type %s cannot be bound", sf.Type)
	}

	f := &FieldDescriptor{
		Name:  sf.Name,
		Type:  sf.Type,
		Shape: shape,
		Embed: ft.has("embed"),
		Doc:   sf.Tag.Get("doc"),
		Index: index,
	}

	alias := ft.alias
	if alias == "" {
		alias = strcase.ToSnake(sf.Name)
	}
	placeholder := in.tmpl.Has(alias)

	switch {
	case placeholder:
		f.Source = SourcePath
	case ft.explicit:
		f.Source = ft.source
		if f.Source == SourcePath {
			return nil, configErrorf(in.root, sf.Name, "path parameter %q is not in %q", alias, in.tmpl)
		}
		if f.Source == SourceForm && isUploadType(sf.Type) {
			f.Source = SourceFile
		}
	case isUploadType(sf.Type):
		f.Source = SourceFile
	case sf.Name == "Body" || shape == ShapeComposite:
		f.Source = SourceBody
	default:
		f.Source = SourceQuery
	}

	f.Alias = in.alias(sf, ft, f.Source)
	if f.Source == SourceHeader {
		f.ConvertUnderscores = !ft.has("keepunderscores")
		if ft.alias == "" && f.ConvertUnderscores {
			f.Alias = strings.ReplaceAll(f.Alias, "_", "-")
		}
	}
	f.MediaType = mediaTypeOf(sf, f.Source)

	c, err := parseConstraints(sf.Tag)
	if err != nil {
		return nil, configErrorf(in.root, sf.Name, "%v", err)
	}
	f.Constraints = c

	if err := in.checkShape(sf, f); err != nil {
		return nil, err
	}

	raw, hasDefault := sf.Tag.Lookup("default")
	if f.Source == SourcePath && (!ft.explicit || ft.source != SourcePath) {
		// The segment is always present once the route matched.
		hasDefault = false
	}
	if hasDefault {
		dv, err := parseFieldDefault(raw, sf.Type, shape)
		if err != nil {
			return nil, configErrorf(in.root, sf.Name, "invalid default %q: %v", raw, err)
		}
		f.HasDefault = true
		f.Default = dv
	}
	f.Required = !f.HasDefault && sf.Type.Kind() != reflect.Pointer && !ft.has("optional")

	if shape == ShapeComposite && (f.Source.Scalar() || f.Source == SourceForm) {
		children, err := in.children(sf, f)
		if err != nil {
			return nil, err
		}
		f.Children = children
	}
	return f, nil
}

// alias returns the wire name of a field: the tag name, the json name of
// payload fields, else the snake_case Go name.
func (in *inspector) alias(sf reflect.StructField, ft fieldTag, src Source) string {
	if ft.alias != "" {
		return ft.alias
	}
	if src == SourceBody {
		if name := jsonFieldName(sf); name != sf.Name && name != "-" {
			return name
		}
	}
	return strcase.ToSnake(sf.Name)
}

func mediaTypeOf(sf reflect.StructField, src Source) string {
	if m := sf.Tag.Get("media"); m != "" {
		return m
	}
	//exhaustive:ignore
	switch src {
	case SourceBody:
		return MediaJSON
	case SourceForm:
		return MediaForm
	case SourceFile:
		return MediaMultipart
	default:
		return ""
	}
}

// checkShape rejects types a source cannot carry.
func (in *inspector) checkShape(sf reflect.StructField, f *FieldDescriptor) error {
	base := derefType(f.Type)

	//exhaustive:ignore
	switch f.Source {
	case SourcePath:
		if f.Shape == ShapeSequence {
			return configErrorf(in.root, sf.Name, "path parameter %q cannot be a sequence", f.Alias)
		}
	case SourceFile:
		if !isFileType(f.Type) {
			return configErrorf(in.root, sf.Name, "type %s cannot hold uploaded files", f.Type)
		}
		return nil
	}

	if f.Shape != ShapeComposite || !(f.Source.Scalar() || f.Source == SourceForm) {
		return nil
	}
	if base.Kind() != reflect.Struct {
		return configErrorf(in.root, sf.Name, "type %s cannot be read from %s", f.Type, f.Source)
	}
	return nil
}

// children describes the sub-fields of a composite read from a scalar
// source or a form. Sub-field indexes are relative to the composite.
func (in *inspector) children(sf reflect.StructField, parent *FieldDescriptor) ([]*FieldDescriptor, error) {
	t := derefType(parent.Type)
	var out []*FieldDescriptor
	for i := range t.NumField() {
		sub := t.Field(i)
		if skipField(sub) {
			continue
		}
		name := sf.Name + "." + sub.Name
		shape := shapeOf(sub.Type)

		src := parent.Source
		if src == SourceForm && isUploadType(sub.Type) {
			src = SourceFile
		}
		if shape != ShapeScalar && shape != ShapeSequence {
			return nil, configErrorf(in.root, name, "field of type %s cannot be read from %s", sub.Type, parent.Source)
		}
		if src == SourcePath && shape == ShapeSequence {
			return nil, configErrorf(in.root, name, "path parameter cannot be a sequence")
		}

		child := &FieldDescriptor{
			Name:               sub.Name,
			Type:               sub.Type,
			Source:             src,
			Shape:              shape,
			Doc:                sub.Tag.Get("doc"),
			Index:              []int{i},
			ConvertUnderscores: parent.ConvertUnderscores,
			MediaType:          parent.MediaType,
		}

		tagName, opts := tagOptions(sub.Tag.Get(parent.Source.String()))
		switch {
		case tagName != "":
			child.Alias = tagName
		case jsonFieldName(sub) != sub.Name && jsonFieldName(sub) != "-":
			child.Alias = jsonFieldName(sub)
		default:
			child.Alias = strcase.ToSnake(sub.Name)
			if src == SourceHeader && child.ConvertUnderscores {
				child.Alias = strings.ReplaceAll(child.Alias, "_", "-")
			}
		}
		if src == SourcePath && !in.tmpl.Has(child.Alias) {
			return nil, configErrorf(in.root, name, "path parameter %q is not in %q", child.Alias, in.tmpl)
		}

		c, err := parseConstraints(sub.Tag)
		if err != nil {
			return nil, configErrorf(in.root, name, "%v", err)
		}
		// validate tags run once on the assembled composite.
		c.Validate = ""
		child.Constraints = c

		if raw, ok := sub.Tag.Lookup("default"); ok {
			dv, err := parseFieldDefault(raw, sub.Type, shape)
			if err != nil {
				return nil, configErrorf(in.root, name, "invalid default %q: %v", raw, err)
			}
			child.HasDefault = true
			child.Default = dv
		}
		child.Required = !child.HasDefault && sub.Type.Kind() != reflect.Pointer && !tagContains(opts, "optional")
		out = append(out, child)
	}
	return out, nil
}

// checkUnique enforces unique names per request type and unique aliases
// per source. Payload sources share one namespace.
func (in *inspector) checkUnique(sig *Signature) error {
	names := make(map[string]bool)
	aliases := make(map[string]string)
	for _, f := range append(append([]*FieldDescriptor(nil), sig.Fields...), sig.System...) {
		if names[f.Name] {
			return configErrorf(in.root, f.Name, "duplicate field name")
		}
		names[f.Name] = true
	}
	for _, f := range sig.Fields {
		for _, d := range flatten(f) {
			ns := d.Source.locRoot() + ":" + d.Alias
			if d.Source == SourceHeader {
				ns = strings.ToLower(ns)
			}
			if prev, ok := aliases[ns]; ok {
				return configErrorf(in.root, d.Name, "alias %q of source %s already used by %s", d.Alias, d.Source, prev)
			}
			aliases[ns] = d.Name
		}
	}
	return nil
}

// flatten returns the leaf descriptors of f.
func flatten(f *FieldDescriptor) []*FieldDescriptor {
	if len(f.Children) == 0 {
		return []*FieldDescriptor{f}
	}
	var out []*FieldDescriptor
	for _, c := range f.Children {
		out = append(out, flatten(c)...)
	}
	return out
}

// isFileType reports whether t can receive uploaded files.
func isFileType(t reflect.Type) bool {
	base := derefType(t)
	switch base {
	case uploadFileType, fileHeaderType, bytesType:
		return true
	}
	if base.Kind() == reflect.String {
		return true
	}
	if base.Kind() == reflect.Slice || base.Kind() == reflect.Array {
		elem := derefType(base.Elem())
		return elem == uploadFileType || elem == fileHeaderType || elem == bytesType || elem.Kind() == reflect.String
	}
	return false
}

// isUploadType reports whether t holds file handles rather than values.
func isUploadType(t reflect.Type) bool {
	base := derefType(t)
	if base.Kind() == reflect.Slice || base.Kind() == reflect.Array {
		base = derefType(base.Elem())
	}
	return base == uploadFileType || base == fileHeaderType
}

// parseFieldDefault converts a default tag. Composite defaults are JSON.
func parseFieldDefault(raw string, t reflect.Type, shape Shape) (reflect.Value, error) {
	if shape != ShapeComposite {
		return parseDefault(raw, t, shape)
	}
	v := reflect.New(t)
	if err := json.Unmarshal([]byte(raw), v.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return v.Elem(), nil
}
