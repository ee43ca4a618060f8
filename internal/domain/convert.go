package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// FromAny converts plain Go data (as produced by encoding/json, yaml.v3 or the
// fact parsers) into a Value. Unsigned integers above MaxInt64 are rejected with
// DecodeError; Go types outside the closed set fail with UnsupportedType.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return NewNull(), nil
	case Value:
		return t, nil
	case bool:
		return NewBool(t), nil
	case int:
		return NewInt(int64(t)), nil
	case int8:
		return NewInt(int64(t)), nil
	case int16:
		return NewInt(int64(t)), nil
	case int32:
		return NewInt(int64(t)), nil
	case int64:
		return NewInt(t), nil
	case uint:
		return fromUint(uint64(t))
	case uint8:
		return NewInt(int64(t)), nil
	case uint16:
		return NewInt(int64(t)), nil
	case uint32:
		return NewInt(int64(t)), nil
	case uint64:
		return fromUint(t)
	case float32:
		return NewFloat(float64(t)), nil
	case float64:
		return NewFloat(t), nil
	case string:
		return NewString(t), nil
	case json.Number:
		return fromNumber(t)
	case []any:
		items := make([]Value, 0, len(t))
		for i, e := range t {
			v, err := FromAny(e)
			if err != nil {
				return Value{}, prefixError(err, "["+strconv.Itoa(i)+"]")
			}
			items = append(items, v)
		}
		return Value{kind: KindArray, arr: items}, nil
	case []string:
		items := make([]Value, len(t))
		for i, s := range t {
			items[i] = NewString(s)
		}
		return Value{kind: KindArray, arr: items}, nil
	case []int:
		items := make([]Value, len(t))
		for i, n := range t {
			items[i] = NewInt(int64(n))
		}
		return Value{kind: KindArray, arr: items}, nil
	case []Value:
		return NewArray(t...), nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			v, err := FromAny(e)
			if err != nil {
				return Value{}, prefixError(err, "."+k)
			}
			m[k] = v
		}
		return Value{kind: KindMap, m: m}, nil
	case map[string]string:
		m := make(map[string]Value, len(t))
		for k, s := range t {
			m[k] = NewString(s)
		}
		return Value{kind: KindMap, m: m}, nil
	case map[string]Value:
		return NewMap(t), nil
	case map[any]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			ks, ok := k.(string)
			if !ok {
				return Value{}, Errorf(UnsupportedType, "map key %v has type %T, want string", k, k)
			}
			v, err := FromAny(e)
			if err != nil {
				return Value{}, prefixError(err, "."+ks)
			}
			m[ks] = v
		}
		return Value{kind: KindMap, m: m}, nil
	}
	return Value{}, Errorf(UnsupportedType, "cannot represent %T as a typed value", x)
}

// MustFromAny is FromAny for literals known to be representable
func MustFromAny(x any) Value {
	v, err := FromAny(x)
	if err != nil {
		panic(err)
	}
	return v
}

func fromUint(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return Value{}, Errorf(DecodeError, "unsigned integer %d overflows int64", u)
	}
	return NewInt(int64(u)), nil
}

func fromNumber(n json.Number) (Value, error) {
	if i, err := n.Int64(); err == nil {
		return NewInt(i), nil
	}
	if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
		return fromUint(u)
	}
	f, err := n.Float64()
	if err != nil {
		return Value{}, Errorf(DecodeError, "invalid number %q", n.String())
	}
	return NewFloat(f), nil
}

func prefixError(err error, path string) error {
	if e, ok := err.(*Error); ok {
		return &Error{Kind: e.Kind, Message: fmt.Sprintf("%s: %s", path, e.Message), cause: e.cause}
	}
	return err
}

// ToAny converts v into plain Go data: nil, bool, int64, float64, string,
// []any and map[string]any. Suitable for encoding/json and yaml.v3.
func (v Value) ToAny() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInteger:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.ToAny()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, e := range v.m {
			out[k] = e.ToAny()
		}
		return out
	}
	return nil
}
