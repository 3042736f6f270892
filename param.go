package bind

import "strconv"

// paramResolver reads path, query, header and cookie values.
type paramResolver struct {
	field *FieldDescriptor
}

func newParamResolver(f *FieldDescriptor, _ *compileConfig) Resolver {
	return &paramResolver{field: f}
}

func (p *paramResolver) Field() *FieldDescriptor { return p.field }

func (p *paramResolver) Resolve(ec *ExecutionContext) (ResolverResult, error) {
	raw, ok := lookupParam(ec.Connection(), p.field)
	return resolveStrings(p.field, raw, ok), nil
}

// lookupParam returns every value the source holds for the alias. Only
// header and query sources can hold more than one.
func lookupParam(conn Connection, f *FieldDescriptor) ([]string, bool) {
	//exhaustive:ignore
	switch f.Source {
	case SourcePath:
		v, ok := conn.PathParam(f.Alias)
		return []string{v}, ok
	case SourceQuery:
		vs := conn.Query()[f.Alias]
		return vs, len(vs) > 0
	case SourceHeader:
		vs := conn.Header().Values(f.Alias)
		return vs, len(vs) > 0
	case SourceCookie:
		v, ok := conn.Cookie(f.Alias)
		return []string{v}, ok
	default:
		return nil, false
	}
}

// resolveStrings converts the raw wire strings of f. Sequences take every
// value in source order; scalars take the first.
func resolveStrings(f *FieldDescriptor, raw []string, present bool) ResolverResult {
	loc := f.loc()
	if !present {
		return resolveAbsent(f, loc)
	}

	res := newResult()
	if f.Shape == ShapeSequence {
		res.RawData[loc.String()] = raw
		v, errs := convertStrings(raw, f.Type)
		if len(errs) > 0 {
			for _, ie := range errs {
				if ie.index < 0 {
					res.Errors = append(res.Errors, invalidError(loc, messageOf(ie.err), raw))
					continue
				}
				res.Errors = append(res.Errors, invalidError(loc.Child(strconv.Itoa(ie.index)), messageOf(ie.err), raw[ie.index]))
			}
			return res
		}
		if errs := f.Constraints.check(v, loc); len(errs) > 0 {
			res.Errors = append(res.Errors, errs...)
			return res
		}
		res.Data[f.Name] = v.Interface()
		return res
	}

	res.RawData[loc.String()] = raw[0]
	v, err := convertString(raw[0], f.Type)
	if err != nil {
		res.Errors = append(res.Errors, invalidError(loc, messageOf(err), raw[0]))
		return res
	}
	if errs := f.Constraints.check(v, loc); len(errs) > 0 {
		res.Errors = append(res.Errors, errs...)
		return res
	}
	res.Data[f.Name] = v.Interface()
	return res
}
