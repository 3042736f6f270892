package bind

import (
	"encoding"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JSONSchema represents a JSON Schema object (subset for OpenAPI 3.1).
type JSONSchema struct {
	Type        string                `json:"type,omitempty" yaml:"type,omitempty"`
	Format      string                `json:"format,omitempty" yaml:"format,omitempty"`
	Properties  map[string]JSONSchema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Items       *JSONSchema           `json:"items,omitempty" yaml:"items,omitempty"`
	Required    []string              `json:"required,omitempty" yaml:"required,omitempty"`
	Description string                `json:"description,omitempty" yaml:"description,omitempty"`
	Enum        []string              `json:"enum,omitempty" yaml:"enum,omitempty"`
	Default     any                   `json:"default,omitempty" yaml:"default,omitempty"`
	Ref         string                `json:"$ref,omitempty" yaml:"$ref,omitempty"`

	MinLength *int     `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Pattern   string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Minimum   *float64 `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum   *float64 `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	MinItems  *int     `json:"minItems,omitempty" yaml:"minItems,omitempty"`
	MaxItems  *int     `json:"maxItems,omitempty" yaml:"maxItems,omitempty"`

	// AdditionalProperties can be true (any) or a schema.
	AdditionalProperties *JSONSchema `json:"additionalProperties,omitempty" yaml:"additionalProperties,omitempty"`
}

// schemaRegistry collects named struct schemas into components and
// hands out references to them. Recursive types resolve to a reference.
type schemaRegistry struct {
	defs  map[string]JSONSchema
	names map[reflect.Type]string
}

func newSchemaRegistry() *schemaRegistry {
	return &schemaRegistry{
		defs:  make(map[string]JSONSchema),
		names: make(map[reflect.Type]string),
	}
}

var textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()

// typeToSchema converts a reflect.Type to a JSONSchema.
func (sr *schemaRegistry) typeToSchema(t reflect.Type) JSONSchema {
	if t == nil {
		return JSONSchema{}
	}
	// Unwrap pointer.
	if t.Kind() == reflect.Pointer {
		return sr.typeToSchema(t.Elem())
	}

	// Handle well-known types.
	switch t {
	case reflect.TypeFor[time.Time]():
		return JSONSchema{Type: "string", Format: "date-time"}
	case reflect.TypeFor[time.Duration]():
		return JSONSchema{Type: "string", Format: "duration"}
	case reflect.TypeFor[uuid.UUID]():
		return JSONSchema{Type: "string", Format: "uuid"}
	case voidType:
		return JSONSchema{}
	case reflect.TypeFor[UploadFile]():
		return JSONSchema{Type: "string", Format: "binary"}
	}
	if reflect.PointerTo(t).Implements(textMarshalerType) {
		return JSONSchema{Type: "string"}
	}

	//exhaustive:ignore
	switch t.Kind() {
	case reflect.String:
		return JSONSchema{Type: "string"}
	case reflect.Bool:
		return JSONSchema{Type: "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return JSONSchema{Type: "integer"}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return JSONSchema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return JSONSchema{Type: "number"}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return JSONSchema{Type: "string", Format: "byte"}
		}
		items := sr.typeToSchema(t.Elem())
		return JSONSchema{Type: "array", Items: &items}
	case reflect.Array:
		items := sr.typeToSchema(t.Elem())
		return JSONSchema{Type: "array", Items: &items}
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return JSONSchema{Type: "object"}
		}
		valSchema := sr.typeToSchema(t.Elem())
		return JSONSchema{Type: "object", AdditionalProperties: &valSchema}
	case reflect.Struct:
		return sr.structRef(t)
	default:
		return JSONSchema{}
	}
}

// structRef returns a reference for named structs and an inline schema
// for anonymous ones.
func (sr *schemaRegistry) structRef(t reflect.Type) JSONSchema {
	if t.Name() == "" {
		return sr.structToSchema(t)
	}
	name, ok := sr.names[t]
	if !ok {
		name = sr.uniqueName(t)
		sr.names[t] = name
		sr.defs[name] = JSONSchema{}
		sr.defs[name] = sr.structToSchema(t)
	}
	return JSONSchema{Ref: "#/components/schemas/" + name}
}

func (sr *schemaRegistry) uniqueName(t reflect.Type) string {
	name := schemaName(t)
	if _, taken := sr.defs[name]; !taken {
		return name
	}
	pkg := t.PkgPath()
	if i := strings.LastIndexByte(pkg, '/'); i >= 0 {
		pkg = pkg[i+1:]
	}
	return pkg + "." + name
}

// schemaName strips generic instantiation brackets from a type name.
func schemaName(t reflect.Type) string {
	name := t.Name()
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return name
}

// structToSchema converts a struct type to a JSONSchema with properties.
func (sr *schemaRegistry) structToSchema(t reflect.Type) JSONSchema {
	schema := JSONSchema{
		Type:       "object",
		Properties: make(map[string]JSONSchema),
	}

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() && !promoted(f) {
			continue
		}

		name := jsonFieldName(f)
		if name == "-" {
			continue
		}

		if promoted(f) {
			embedded := sr.structToSchema(derefType(f.Type))
			for k, v := range embedded.Properties {
				schema.Properties[k] = v
			}
			schema.Required = append(schema.Required, embedded.Required...)
			continue
		}

		prop := sr.typeToSchema(f.Type)
		if doc := f.Tag.Get("doc"); doc != "" {
			prop.Description = doc
		}
		if c, err := parseConstraints(f.Tag); err == nil {
			applyConstraints(&prop, c)
		}
		if raw, ok := f.Tag.Lookup("default"); ok {
			if v, err := parseFieldDefault(raw, f.Type, shapeOf(f.Type)); err == nil {
				prop.Default = v.Interface()
			}
		}

		schema.Properties[name] = prop

		if f.Tag.Get("required") == "true" {
			schema.Required = append(schema.Required, name)
		}
	}
	slices.Sort(schema.Required)

	return schema
}

// applyConstraints copies declared constraint rules onto a schema. Item
// rules apply to the items of array schemas.
func applyConstraints(s *JSONSchema, c Constraints) {
	target := s
	if s.Type == "array" && s.Items != nil {
		s.MinItems = c.MinItems
		s.MaxItems = c.MaxItems
		items := *s.Items
		target = &items
		defer func() { s.Items = target }()
	}
	target.MinLength = c.MinLength
	target.MaxLength = c.MaxLength
	target.Minimum = c.Minimum
	target.Maximum = c.Maximum
	if c.Pattern != nil {
		target.Pattern = c.Pattern.String()
	}
	if len(c.Enum) > 0 {
		target.Enum = c.Enum
	}
}
