package bind

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// convertError carries a client-facing message for a value that does not
// parse as the declared type.
type convertError struct {
	msg string
}

func (e *convertError) Error() string { return e.msg }

func convErr(format string, args ...any) error {
	return &convertError{msg: fmt.Sprintf(format, args...)}
}

// convertString parses s as a value of type t.
func convertString(s string, t reflect.Type) (reflect.Value, error) {
	if t.Kind() == reflect.Pointer {
		elem, err := convertString(s, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(elem)
		return ptr, nil
	}

	switch t {
	case durationType:
		d, err := time.ParseDuration(s)
		if err != nil {
			return reflect.Value{}, convErr("value is not a valid duration")
		}
		return reflect.ValueOf(d), nil
	case timeType:
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return reflect.Value{}, convErr("value is not a valid RFC 3339 datetime")
		}
		return reflect.ValueOf(ts), nil
	case bytesType:
		return reflect.ValueOf([]byte(s)), nil
	}

	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		v := reflect.New(t)
		tu, _ := v.Interface().(encoding.TextUnmarshaler)
		if err := tu.UnmarshalText([]byte(s)); err != nil {
			return reflect.Value{}, convErr("value is not a valid %s", t.Name())
		}
		return v.Elem(), nil
	}

	v := reflect.New(t).Elem()

	//exhaustive:ignore
	switch t.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Bool:
		b, ok := parseBool(s)
		if !ok {
			return reflect.Value{}, convErr("value is not a valid boolean")
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, t.Bits())
		if err != nil {
			return reflect.Value{}, intError(err)
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(strings.TrimSpace(s), 10, t.Bits())
		if err != nil {
			return reflect.Value{}, intError(err)
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), t.Bits())
		if err != nil {
			return reflect.Value{}, convErr("value is not a valid number")
		}
		v.SetFloat(f)
	default:
		return reflect.Value{}, errors.Newf("unsupported type %s", t)
	}
	return v, nil
}

// convertStrings parses every element of ss into the sequence type t,
// keeping the order reported by the source.
func convertStrings(ss []string, t reflect.Type) (reflect.Value, []indexedError) {
	if t.Kind() == reflect.Pointer {
		elem, errs := convertStrings(ss, t.Elem())
		if len(errs) > 0 {
			return reflect.Value{}, errs
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(elem)
		return ptr, nil
	}

	var out reflect.Value
	if t.Kind() == reflect.Array {
		if len(ss) > t.Len() {
			return reflect.Value{}, []indexedError{{index: -1, err: convErr("expected at most %d items", t.Len())}}
		}
		out = reflect.New(t).Elem()
	} else {
		out = reflect.MakeSlice(t, len(ss), len(ss))
	}

	var errs []indexedError
	for i, s := range ss {
		v, err := convertString(s, t.Elem())
		if err != nil {
			errs = append(errs, indexedError{index: i, err: err})
			continue
		}
		out.Index(i).Set(v)
	}
	if len(errs) > 0 {
		return reflect.Value{}, errs
	}
	return out, nil
}

type indexedError struct {
	index int
	err   error
}

func intError(err error) error {
	if errors.Is(err, strconv.ErrRange) {
		return convErr("value is out of range")
	}
	return convErr("value is not a valid integer")
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "on", "yes", "y":
		return true, true
	case "0", "f", "false", "off", "no", "n":
		return false, true
	default:
		return false, false
	}
}

// parseDefault converts a `default` tag into a value of type t. Sequence
// defaults are comma separated.
func parseDefault(raw string, t reflect.Type, shape Shape) (reflect.Value, error) {
	if shape == ShapeSequence {
		if raw == "" {
			return reflect.Zero(t), nil
		}
		v, errs := convertStrings(strings.Split(raw, ","), t)
		if len(errs) > 0 {
			return reflect.Value{}, errs[0].err
		}
		return v, nil
	}
	return convertString(raw, t)
}

// messageOf returns the client message for a conversion failure.
func messageOf(err error) string {
	var ce *convertError
	if errors.As(err, &ce) {
		return ce.msg
	}
	return err.Error()
}
