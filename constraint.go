package bind

import (
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

// Constraints are the declarative validation rules attached to a field.
type Constraints struct {
	MinLength *int
	MaxLength *int
	Pattern   *regexp.Regexp
	Minimum   *float64
	Maximum   *float64
	Enum      []string
	MinItems  *int
	MaxItems  *int

	// Validate is a go-playground/validator expression evaluated against
	// the converted value.
	Validate string
}

// IsZero reports whether no rule is declared.
func (c Constraints) IsZero() bool {
	return c.MinLength == nil && c.MaxLength == nil && c.Pattern == nil &&
		c.Minimum == nil && c.Maximum == nil && len(c.Enum) == 0 &&
		c.MinItems == nil && c.MaxItems == nil && c.Validate == ""
}

// parseConstraints reads the constraint tags of a struct field.
func parseConstraints(tag reflect.StructTag) (Constraints, error) {
	var c Constraints

	ints := []struct {
		name string
		dst  **int
	}{
		{"minLength", &c.MinLength},
		{"maxLength", &c.MaxLength},
		{"minItems", &c.MinItems},
		{"maxItems", &c.MaxItems},
	}
	for _, it := range ints {
		raw := tag.Get(it.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return c, errors.Wrapf(err, "%s tag", it.name)
		}
		*it.dst = &n
	}

	floats := []struct {
		name string
		dst  **float64
	}{
		{"minimum", &c.Minimum},
		{"maximum", &c.Maximum},
	}
	for _, ft := range floats {
		raw := tag.Get(ft.name)
		if raw == "" {
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return c, errors.Wrapf(err, "%s tag", ft.name)
		}
		*ft.dst = &f
	}

	if raw := tag.Get("pattern"); raw != "" {
		re, err := regexp.Compile(raw)
		if err != nil {
			return c, errors.Wrap(err, "pattern tag")
		}
		c.Pattern = re
	}

	if raw := tag.Get("enum"); raw != "" {
		c.Enum = strings.Split(raw, ",")
	}

	c.Validate = tag.Get("validate")
	return c, nil
}

// check validates v against the rules and returns one FieldError per
// violation. Sequence elements are checked individually under their index.
func (c Constraints) check(v reflect.Value, loc Location) []FieldError {
	if c.IsZero() {
		return nil
	}
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	var errs []FieldError
	switch {
	case shapeOf(v.Type()) == ShapeSequence:
		errs = append(errs, c.checkItems(v, loc)...)
		for i := range v.Len() {
			errs = append(errs, c.checkScalar(v.Index(i), loc.Child(strconv.Itoa(i)))...)
		}
	case v.Kind() == reflect.Slice || v.Kind() == reflect.Array:
		errs = append(errs, c.checkItems(v, loc)...)
	default:
		errs = append(errs, c.checkScalar(v, loc)...)
	}

	if c.Validate != "" {
		errs = append(errs, validateVar(v, c.Validate, loc)...)
	}
	return errs
}

func (c Constraints) checkItems(v reflect.Value, loc Location) []FieldError {
	var errs []FieldError
	n := v.Len()
	if c.MinItems != nil && n < *c.MinItems {
		errs = append(errs, constraintError(loc, "minItems", fmt.Sprintf("must have at least %d items", *c.MinItems), n))
	}
	if c.MaxItems != nil && n > *c.MaxItems {
		errs = append(errs, constraintError(loc, "maxItems", fmt.Sprintf("must have at most %d items", *c.MaxItems), n))
	}
	return errs
}

func (c Constraints) checkScalar(v reflect.Value, loc Location) []FieldError {
	var errs []FieldError

	if v.Kind() == reflect.String {
		val := v.String()
		n := len([]rune(val))
		if c.MinLength != nil && n < *c.MinLength {
			errs = append(errs, constraintError(loc, "minLength", fmt.Sprintf("must be at least %d characters", *c.MinLength), val))
		}
		if c.MaxLength != nil && n > *c.MaxLength {
			errs = append(errs, constraintError(loc, "maxLength", fmt.Sprintf("must be at most %d characters", *c.MaxLength), val))
		}
		if c.Pattern != nil && !c.Pattern.MatchString(val) {
			errs = append(errs, constraintError(loc, "pattern", fmt.Sprintf("must match pattern %s", c.Pattern), val))
		}
		if len(c.Enum) > 0 && !slices.Contains(c.Enum, val) {
			errs = append(errs, constraintError(loc, "enum", fmt.Sprintf("must be one of [%s]", strings.Join(c.Enum, ",")), val))
		}
	}

	if isNumericKind(v.Kind()) {
		f := toFloat64(v)
		if c.Minimum != nil && f < *c.Minimum {
			errs = append(errs, constraintError(loc, "minimum", "must be at least "+formatFloat(*c.Minimum), v.Interface()))
		}
		if c.Maximum != nil && f > *c.Maximum {
			errs = append(errs, constraintError(loc, "maximum", "must be at most "+formatFloat(*c.Maximum), v.Interface()))
		}
	}

	return errs
}

func constraintError(loc Location, constraint, msg string, input any) FieldError {
	return FieldError{Loc: loc, Msg: msg, Kind: KindInvalid, Constraint: constraint, Input: input}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// structConstraints caches the parsed constraints of each struct type.
var structConstraints sync.Map // reflect.Type -> []Constraints

func constraintsOf(t reflect.Type) []Constraints {
	if cached, ok := structConstraints.Load(t); ok {
		cs, _ := cached.([]Constraints)
		return cs
	}
	cs := make([]Constraints, t.NumField())
	for i := range t.NumField() {
		// Malformed tags on nested types are caught when the field's own
		// descriptor is compiled; here they simply carry no rules.
		c, err := parseConstraints(t.Field(i).Tag)
		if err == nil {
			c.Validate = ""
			cs[i] = c
		}
	}
	structConstraints.Store(t, cs)
	return cs
}

// checkTree walks a decoded composite value and applies the constraint tags
// of every nested struct field.
func checkTree(v reflect.Value, loc Location) []FieldError {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	//exhaustive:ignore
	switch v.Kind() {
	case reflect.Struct:
		if isScalarType(v.Type()) {
			return nil
		}
		var errs []FieldError
		cs := constraintsOf(v.Type())
		for i := range v.NumField() {
			f := v.Type().Field(i)
			if !f.IsExported() && !promoted(f) {
				continue
			}
			fv := v.Field(i)
			fieldLoc := loc
			if !f.Anonymous {
				name := jsonFieldName(f)
				if name == "-" {
					continue
				}
				fieldLoc = loc.Child(name)
			}
			errs = append(errs, cs[i].check(fv, fieldLoc)...)
			errs = append(errs, checkTree(fv, fieldLoc)...)
		}
		return errs
	case reflect.Slice, reflect.Array:
		if isScalarType(v.Type()) || shapeOf(v.Type()) == ShapeSequence {
			return nil
		}
		var errs []FieldError
		for i := range v.Len() {
			errs = append(errs, checkTree(v.Index(i), loc.Child(strconv.Itoa(i)))...)
		}
		return errs
	case reflect.Map:
		var errs []FieldError
		iter := v.MapRange()
		for iter.Next() {
			errs = append(errs, checkTree(iter.Value(), loc.Child(fmt.Sprint(iter.Key().Interface())))...)
		}
		return errs
	default:
		return nil
	}
}

func isNumericKind(k reflect.Kind) bool {
	//exhaustive:ignore
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func toFloat64(v reflect.Value) float64 {
	//exhaustive:ignore
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	default: // float32, float64
		return v.Float()
	}
}
