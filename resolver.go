package bind

import (
	"reflect"

	"github.com/cockroachdb/errors"
)

// Values maps field names to resolved values.
type Values map[string]any

// Resolver fetches and validates one descriptor (or a group of them) from a
// request. Resolvers are built once per handler and hold no per-request
// state, so one instance serves concurrent requests.
type Resolver interface {
	Field() *FieldDescriptor
	// Resolve returns field errors inside the result. A non-nil error means
	// resolution could not run at all (ambient state missing, payload too
	// large, unsupported media type).
	Resolve(ec *ExecutionContext) (ResolverResult, error)
}

// ResolverResult is the outcome of one resolution attempt. RawData keeps
// what was received, keyed by location, even when validation failed.
type ResolverResult struct {
	Data    Values
	Errors  []FieldError
	RawData map[string]any
}

func newResult() ResolverResult {
	return ResolverResult{Data: Values{}, RawData: map[string]any{}}
}

// merge folds o into r: data is deep-merged, errors appended and raw data
// recorded.
func (r *ResolverResult) merge(o ResolverResult) {
	deepMerge(r.Data, o.Data)
	r.Errors = append(r.Errors, o.Errors...)
	for k, v := range o.RawData {
		r.RawData[k] = v
	}
}

func deepMerge(dst, src Values) {
	for k, v := range src {
		if sv, ok := v.(Values); ok {
			if dv, ok := dst[k].(Values); ok {
				deepMerge(dv, sv)
				continue
			}
		}
		dst[k] = v
	}
}

// resolverFactory builds the resolver of a non-composite descriptor.
type resolverFactory func(f *FieldDescriptor, cfg *compileConfig) Resolver

// resolverFactories is the dispatch table from source to resolver.
var resolverFactories = [...]resolverFactory{
	SourceQuery:  newParamResolver,
	SourcePath:   newParamResolver,
	SourceHeader: newParamResolver,
	SourceCookie: newParamResolver,
	SourceBody:   newBodyResolver,
	SourceForm:   newFormResolver,
	SourceFile:   newFileResolver,
	SourceSystem: newSystemResolver,
}

// resolverFor returns the resolver of f, wrapping composite values read
// from scalar sources or forms in a grouped bulk resolver.
func resolverFor(f *FieldDescriptor, cfg *compileConfig) Resolver {
	if len(f.Children) > 0 {
		children := make([]Resolver, len(f.Children))
		for i, child := range f.Children {
			children[i] = resolverFor(child, cfg)
		}
		return &bulkResolver{field: f, children: children, grouped: true}
	}
	return resolverFactories[f.Source](f, cfg)
}

// bulkResolver fans out to child resolvers. Grouped, it assembles the
// children into the combining descriptor's composite type and validates
// it as one value; ungrouped, it flattens each child's value into the
// top-level values.
type bulkResolver struct {
	field    *FieldDescriptor
	children []Resolver
	grouped  bool
}

func (b *bulkResolver) Field() *FieldDescriptor { return b.field }

func (b *bulkResolver) Resolve(ec *ExecutionContext) (ResolverResult, error) {
	res := newResult()
	childData := Values{}
	for _, child := range b.children {
		cr, err := child.Resolve(ec)
		if err != nil {
			return res, err
		}
		res.Errors = append(res.Errors, cr.Errors...)
		for k, v := range cr.RawData {
			res.RawData[k] = v
		}
		deepMerge(childData, cr.Data)
	}

	if !b.grouped {
		deepMerge(res.Data, childData)
		return res, nil
	}

	if len(res.RawData) == 0 && !b.field.Required {
		res.Errors = nil
		res.Data[b.field.Name] = b.field.defaultValue().Interface()
		return res, nil
	}
	if len(res.Errors) > 0 {
		return res, nil
	}

	composite := reflect.New(derefType(b.field.Type))
	for _, child := range b.children {
		cf := child.Field()
		if err := assign(composite.Elem().FieldByIndex(cf.Index), childData[cf.Name]); err != nil {
			return res, errors.Wrapf(err, "assemble %s", b.field.Name)
		}
	}

	loc := Location{b.field.Source.locRoot()}
	aliases := make(map[string]string, len(b.children))
	for _, child := range b.children {
		cf := child.Field()
		if len(cf.Index) == 1 {
			aliases[cf.Name] = cf.Alias
		}
	}
	res.Errors = append(res.Errors, validateStructAliased(composite, loc, aliases)...)
	if len(res.Errors) == 0 {
		res.Errors = append(res.Errors, validateSelf(composite.Elem(), loc)...)
	}

	if b.field.Type.Kind() == reflect.Pointer {
		res.Data[b.field.Name] = composite.Interface()
	} else {
		res.Data[b.field.Name] = composite.Elem().Interface()
	}
	return res, nil
}

// resolveAbsent handles a descriptor whose source carried no value.
func resolveAbsent(f *FieldDescriptor, loc Location) ResolverResult {
	res := newResult()
	if f.Required {
		res.Errors = append(res.Errors, missingError(loc))
		return res
	}
	res.Data[f.Name] = f.defaultValue().Interface()
	return res
}

// assign stores v into dst, converting between compatible types.
func assign(dst reflect.Value, v any) error {
	if v == nil {
		dst.SetZero()
		return nil
	}
	rv := reflect.ValueOf(v)
	dt := dst.Type()
	switch {
	case rv.Type().AssignableTo(dt):
		dst.Set(rv)
	case dt.Kind() == reflect.Pointer && rv.Type().AssignableTo(dt.Elem()):
		ptr := reflect.New(dt.Elem())
		ptr.Elem().Set(rv)
		dst.Set(ptr)
	case rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Type().AssignableTo(dt):
		dst.Set(rv.Elem())
	case rv.Kind() == dt.Kind() && rv.Type().ConvertibleTo(dt):
		dst.Set(rv.Convert(dt))
	default:
		return errors.Newf("cannot assign %s to %s", rv.Type(), dt)
	}
	return nil
}
