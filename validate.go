package bind

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// SelfValidator is implemented by request types that validate themselves.
type SelfValidator interface {
	Validate() error
}

// Validator validates any request after it has been bound.
type Validator interface {
	Validate(req any) error
}

// validate is shared by every plan; validator.Validate caches struct
// metadata and is safe for concurrent use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := jsonFieldName(f)
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateVar evaluates a validator expression against a single value.
func validateVar(v reflect.Value, tag string, loc Location) []FieldError {
	err := validate.Var(v.Interface(), tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{invalidError(loc, err.Error(), v.Interface())}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fieldErrorFrom(fe, loc))
	}
	return out
}

// validateStruct runs the `validate` tags of a composite value.
func validateStruct(v reflect.Value, loc Location) []FieldError {
	return validateStructAliased(v, loc, nil)
}

// validateStructAliased is validateStruct with the top-level field of each
// error location renamed through aliases, keyed by Go field name.
func validateStructAliased(v reflect.Value, loc Location, aliases map[string]string) []FieldError {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct || isScalarType(v.Type()) {
		return nil
	}

	err := validate.Struct(v.Interface())
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{invalidError(loc, err.Error(), nil)}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		path := namespacePath(fe.Namespace())
		if goPath := namespacePath(fe.StructNamespace()); len(path) > 0 && len(goPath) > 0 {
			if alias, ok := aliases[goPath[0]]; ok {
				path[0] = alias
			}
		}
		out = append(out, fieldErrorFrom(fe, loc.Child(path...)))
	}
	return out
}

// validateSelf runs SelfValidator on v (or its address) when implemented.
func validateSelf(v reflect.Value, loc Location) []FieldError {
	if !v.IsValid() {
		return nil
	}
	var target any
	if v.CanAddr() {
		target = v.Addr().Interface()
	} else {
		ptr := reflect.New(v.Type())
		ptr.Elem().Set(v)
		target = ptr.Interface()
	}
	sv, ok := target.(SelfValidator)
	if !ok {
		if sv, ok = v.Interface().(SelfValidator); !ok {
			return nil
		}
	}
	if err := sv.Validate(); err != nil {
		var fe FieldError
		if errors.As(err, &fe) {
			fe.Loc = loc.Child(fe.Loc...)
			return []FieldError{fe}
		}
		return []FieldError{invalidError(loc, err.Error(), nil)}
	}
	return nil
}

// validateValue applies every rule known for a decoded composite value:
// nested constraint tags, validator tags and SelfValidator.
func validateValue(v reflect.Value, loc Location) []FieldError {
	errs := checkTree(v, loc)
	errs = append(errs, validateStruct(v, loc)...)
	if len(errs) > 0 {
		return errs
	}
	return validateSelf(v, loc)
}

// namespacePath turns "Item.address.tags[1]" into ["address", "tags", "1"].
func namespacePath(ns string) []string {
	parts := strings.Split(ns, ".")
	if len(parts) > 0 {
		parts = parts[1:]
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		for p != "" {
			name, rest, found := strings.Cut(p, "[")
			if name != "" {
				out = append(out, name)
			}
			if !found {
				break
			}
			idx, after, _ := strings.Cut(rest, "]")
			out = append(out, idx)
			p = after
		}
	}
	return out
}

func fieldErrorFrom(fe validator.FieldError, loc Location) FieldError {
	if fe.Tag() == "required" {
		return FieldError{Loc: loc, Msg: "field required", Kind: KindMissing, Constraint: "required"}
	}
	return FieldError{
		Loc:        loc,
		Msg:        formatValidationError(fe),
		Kind:       KindInvalid,
		Constraint: fe.Tag(),
		Input:      fe.Value(),
	}
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", fe.Param())
	case "len":
		return fmt.Sprintf("must have length %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", strings.ReplaceAll(fe.Param(), " ", ","))
	case "email":
		return "must be a valid email address"
	case "url", "uri":
		return "must be a valid URL"
	case "uuid", "uuid4":
		return "must be a valid UUID"
	default:
		return fmt.Sprintf("failed validation %q", fe.Tag())
	}
}
