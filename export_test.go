package bind

import (
	"context"
	"reflect"
)

// Test-only exports for internal functions.
var (
	JSONFieldName       = jsonFieldName
	GenerateOperationID = generateOperationID
	IsRawBody           = isRawBody
)

// ForceBodyGroup compiles a lone payload field through the grouped resolver.
func ForceBodyGroup() CompileOption {
	return func(c *compileConfig) {
		c.forceBodyGroup = true
	}
}

// WithFileReader replaces the upload reader used by multi-file fields.
func WithFileReader(read func(ctx context.Context, f *UploadFile) ([]byte, error)) CompileOption {
	return func(c *compileConfig) {
		c.readFile = read
	}
}

// TestSchemaRegistry wraps schemaRegistry for external tests.
type TestSchemaRegistry struct {
	reg  *schemaRegistry
	Defs map[string]JSONSchema
}

// NewSchemaRegistry creates a TestSchemaRegistry for testing.
func NewSchemaRegistry() *TestSchemaRegistry {
	r := newSchemaRegistry()
	return &TestSchemaRegistry{reg: r, Defs: r.defs}
}

// TypeToSchema delegates to the internal registry.
func (t *TestSchemaRegistry) TypeToSchema(typ reflect.Type) JSONSchema {
	return t.reg.typeToSchema(typ)
}
