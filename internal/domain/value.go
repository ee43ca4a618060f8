package domain

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind is the discriminant of a Value and its wire type tag
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInteger
	KindFloat
	KindString
	KindArray
	KindMap
)

var kindNames = map[Kind]string{
	KindNull:    "null",
	KindBool:    "bool",
	KindInteger: "integer",
	KindFloat:   "float",
	KindString:  "string",
	KindArray:   "array",
	KindMap:     "map",
}

// Valid reports whether k is one of the known kinds
func (k Kind) Valid() bool {
	return k <= KindMap
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind converts a kind name back to a Kind
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// Value is an immutable tagged union used for fact and configuration data.
// The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	arr  []Value
	m    map[string]Value
}

// NewNull returns the Null value
func NewNull() Value {
	return Value{}
}

// NewBool wraps a boolean
func NewBool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// NewInt wraps a signed integer
func NewInt(i int64) Value {
	return Value{kind: KindInteger, i: i}
}

// NewFloat wraps a float
func NewFloat(f float64) Value {
	return Value{kind: KindFloat, f: f}
}

// NewString wraps a string
func NewString(s string) Value {
	return Value{kind: KindString, s: s}
}

// NewArray builds an Array from items. The slice is copied.
func NewArray(items ...Value) Value {
	arr := make([]Value, len(items))
	copy(arr, items)
	return Value{kind: KindArray, arr: arr}
}

// NewMap builds a Map from entries. The map is copied.
func NewMap(entries map[string]Value) Value {
	m := make(map[string]Value, len(entries))
	for k, v := range entries {
		m[k] = v
	}
	return Value{kind: KindMap, m: m}
}

// Kind returns the discriminant
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether v is Null
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Bool returns the boolean payload
func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Int returns the integer payload
func (v Value) Int() (int64, bool) {
	return v.i, v.kind == KindInteger
}

// Float returns the float payload
func (v Value) Float() (float64, bool) {
	return v.f, v.kind == KindFloat
}

// Str returns the string payload
func (v Value) Str() (string, bool) {
	return v.s, v.kind == KindString
}

// Items returns a copy of the Array elements
func (v Value) Items() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	out := make([]Value, len(v.arr))
	copy(out, v.arr)
	return out, true
}

// Entries returns a copy of the Map entries
func (v Value) Entries() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	out := make(map[string]Value, len(v.m))
	for k, e := range v.m {
		out[k] = e
	}
	return out, true
}

// Len returns the number of elements of an Array or Map, 0 otherwise
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindMap:
		return len(v.m)
	}
	return 0
}

// Index returns the i-th element of an Array
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindArray || i < 0 || i >= len(v.arr) {
		return Value{}, false
	}
	return v.arr[i], true
}

// Get returns the entry for key in a Map
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	e, ok := v.m[key]
	return e, ok
}

// Keys returns the Map keys in alphabetical order
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Expect returns a DecodeError unless v has kind k
func (v Value) Expect(k Kind) error {
	if v.kind != k {
		return Errorf(DecodeError, "expected %s value, got %s", k, v.kind)
	}
	return nil
}

// Equal compares two values structurally. Map comparison ignores entry order,
// Array comparison is positional. NaN floats compare equal to each other.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInteger:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case KindString:
		return v.s == o.s
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, e := range v.m {
			oe, ok := o.m[k]
			if !ok || !e.Equal(oe) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders v in a compact JSON-like form for logs and debugging
func (v Value) String() string {
	var sb strings.Builder
	v.writeTo(&sb)
	return sb.String()
}

func (v Value) writeTo(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.b))
	case KindInteger:
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		sb.WriteString(strconv.FormatFloat(v.f, 'g', -1, 64))
	case KindString:
		sb.WriteString(strconv.Quote(v.s))
	case KindArray:
		sb.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				sb.WriteByte(',')
			}
			e.writeTo(sb)
		}
		sb.WriteByte(']')
	case KindMap:
		sb.WriteByte('{')
		for i, k := range v.Keys() {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteByte(':')
			v.m[k].writeTo(sb)
		}
		sb.WriteByte('}')
	default:
		fmt.Fprintf(sb, "<%s>", v.kind)
	}
}
