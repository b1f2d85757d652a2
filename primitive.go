package objcodec

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"

	"github.com/cockroachdb/errors"
)

// numberName is the primitive name of JSON numbers whose Go width is decided
// by the destination.
const numberName = "number"

var primitiveTypes = map[string]reflect.Type{
	"bool":    reflect.TypeFor[bool](),
	"int":     reflect.TypeFor[int](),
	"int8":    reflect.TypeFor[int8](),
	"int16":   reflect.TypeFor[int16](),
	"int32":   reflect.TypeFor[int32](),
	"int64":   reflect.TypeFor[int64](),
	"uint":    reflect.TypeFor[uint](),
	"uint8":   reflect.TypeFor[uint8](),
	"uint16":  reflect.TypeFor[uint16](),
	"uint32":  reflect.TypeFor[uint32](),
	"uint64":  reflect.TypeFor[uint64](),
	"float32": reflect.TypeFor[float32](),
	"float64": reflect.TypeFor[float64](),
	"string":  reflect.TypeFor[string](),

	numberName: reflect.TypeFor[float64](),
}

// primitiveType resolves a primitive wire name to the Go type an interface receives.
func primitiveType(name string) (reflect.Type, bool) {
	t, ok := primitiveTypes[name]
	return t, ok
}

// encodePrimitive returns the wire name and canonical scalar of v: bool,
// int64 for signed kinds, uint64 for unsigned kinds, float32, float64 or string.
func encodePrimitive(v reflect.Value) (string, any, error) {
	switch k := v.Kind(); k {
	case reflect.Bool:
		return "bool", v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return k.String(), v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return k.String(), v.Uint(), nil
	case reflect.Float32:
		return "float32", float32(v.Float()), nil
	case reflect.Float64:
		return "float64", v.Float(), nil
	case reflect.String:
		return "string", v.String(), nil
	}
	return "", nil, errors.Wrapf(ErrUnknownPrimitive, "%s", v.Type())
}

// enumValue returns the underlying integer of an enum as int64.
// Unsigned enums are carried bit for bit.
func enumValue(v reflect.Value) int64 {
	if v.CanInt() {
		return v.Int()
	}
	return int64(v.Uint())
}

func unassignable(val any, dst reflect.Value) error {
	return errors.Wrapf(ErrUnassignable, "%T into %s", val, dst.Type())
}

// assignEnum stores an enum scalar; unsigned destinations take the int64 bit pattern.
func assignEnum(dst reflect.Value, val any) error {
	if n, ok := val.(json.Number); ok && dst.CanUint() {
		if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
			val = i
		}
	}
	if i, ok := val.(int64); ok && dst.CanUint() {
		if dst.OverflowUint(uint64(i)) {
			return errors.Wrapf(ErrUnassignable, "%d overflows %s", i, dst.Type())
		}
		dst.SetUint(uint64(i))
		return nil
	}
	return assignPrimitive(dst, val)
}

// assignPrimitive converts a wire scalar to dst's kind, rejecting lossy conversions.
func assignPrimitive(dst reflect.Value, val any) error {
	switch dst.Kind() {
	case reflect.Bool:
		b, ok := val.(bool)
		if !ok {
			return unassignable(val, dst)
		}
		dst.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := toInt64(val)
		if err != nil {
			return errors.Wrapf(err, "into %s", dst.Type())
		}
		if dst.OverflowInt(i) {
			return errors.Wrapf(ErrUnassignable, "%d overflows %s", i, dst.Type())
		}
		dst.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := toUint64(val)
		if err != nil {
			return errors.Wrapf(err, "into %s", dst.Type())
		}
		if dst.OverflowUint(u) {
			return errors.Wrapf(ErrUnassignable, "%d overflows %s", u, dst.Type())
		}
		dst.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := toFloat64(val)
		if err != nil {
			return errors.Wrapf(err, "into %s", dst.Type())
		}
		if dst.OverflowFloat(f) {
			return errors.Wrapf(ErrUnassignable, "%g overflows %s", f, dst.Type())
		}
		dst.SetFloat(f)
	case reflect.String:
		s, ok := val.(string)
		if !ok {
			return unassignable(val, dst)
		}
		dst.SetString(s)
	default:
		return errors.Wrapf(ErrUnknownPrimitive, "%s", dst.Type())
	}
	return nil
}

func toInt64(val any) (int64, error) {
	switch v := val.(type) {
	case int64:
		return v, nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, errors.Wrapf(ErrUnassignable, "%d overflows int64", v)
		}
		return int64(v), nil
	case json.Number:
		i, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0, errors.Mark(err, ErrUnassignable)
		}
		return i, nil
	}
	return 0, errors.Wrapf(ErrUnassignable, "%T is not an integer", val)
}

func toUint64(val any) (uint64, error) {
	switch v := val.(type) {
	case uint64:
		return v, nil
	case int64:
		if v < 0 {
			return 0, errors.Wrapf(ErrUnassignable, "%d is negative", v)
		}
		return uint64(v), nil
	case json.Number:
		u, err := strconv.ParseUint(string(v), 10, 64)
		if err != nil {
			return 0, errors.Mark(err, ErrUnassignable)
		}
		return u, nil
	}
	return 0, errors.Wrapf(ErrUnassignable, "%T is not an unsigned integer", val)
}

func toFloat64(val any) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case json.Number:
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return 0, errors.Mark(err, ErrUnassignable)
		}
		return f, nil
	case string:
		// non-finite floats travel as "NaN", "+Inf" and "-Inf" in JSON.
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || !(math.IsNaN(f) || math.IsInf(f, 0)) {
			return 0, errors.Wrapf(ErrUnassignable, "%q is not a float", v)
		}
		return f, nil
	}
	return 0, errors.Wrapf(ErrUnassignable, "%T is not a float", val)
}

// nonFiniteName returns the JSON spelling of NaN and the infinities.
func nonFiniteName(f float64) (string, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64), true
	}
	return "", false
}
