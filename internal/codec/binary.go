package codec

import (
	"encoding/binary"
	"math"
	"sort"
	"unicode/utf8"

	"hostlink/internal/domain"
)

// Binary layout, all integers big-endian:
//
//	Null     empty payload
//	Bool     1 byte, 0 or 1
//	Integer  8 bytes, two's complement
//	Float    8 bytes, IEEE 754 bits
//	String   UTF-8 bytes
//	Array    u32 count, then per element: tag u8 | len u32 | payload
//	Map      u32 count, then per entry: keylen u32 | key | tag u8 | len u32 | payload
//
// Map entries are written in key order so encoding is deterministic.
const (
	countLen      = 4
	elemHeaderLen = 5 // tag + length
	// MaxDepth bounds container nesting on decode
	MaxDepth = 64
)

// Encode returns the type tag and payload for v
func Encode(v domain.Value) (domain.Kind, []byte) {
	return v.Kind(), appendPayload(nil, v)
}

// EncodeTagged prefixes the payload with its one-byte tag
func EncodeTagged(v domain.Value) []byte {
	out := []byte{byte(v.Kind())}
	return appendPayload(out, v)
}

func appendPayload(buf []byte, v domain.Value) []byte {
	switch v.Kind() {
	case domain.KindBool:
		b, _ := v.Bool()
		if b {
			return append(buf, 1)
		}
		return append(buf, 0)
	case domain.KindInteger:
		i, _ := v.Int()
		return binary.BigEndian.AppendUint64(buf, uint64(i))
	case domain.KindFloat:
		f, _ := v.Float()
		return binary.BigEndian.AppendUint64(buf, math.Float64bits(f))
	case domain.KindString:
		s, _ := v.Str()
		return append(buf, s...)
	case domain.KindArray:
		items, _ := v.Items()
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(items)))
		for _, e := range items {
			buf = appendElement(buf, e)
		}
		return buf
	case domain.KindMap:
		entries, _ := v.Entries()
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(keys)))
		for _, k := range keys {
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(k)))
			buf = append(buf, k...)
			buf = appendElement(buf, entries[k])
		}
		return buf
	}
	return buf
}

func appendElement(buf []byte, v domain.Value) []byte {
	payload := appendPayload(nil, v)
	buf = append(buf, byte(v.Kind()))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(payload)))
	return append(buf, payload...)
}

// Decode decodes payload according to the declared tag. The tag alone picks
// the decode path. Unknown tags fail with UnsupportedType, malformed payloads
// with DecodeError. Containers are decoded element by element and the first
// failing element aborts the whole decode.
func Decode(payload []byte, tag domain.Kind) (domain.Value, error) {
	v, err := decodeValue(payload, tag, 0)
	if err != nil {
		return domain.Value{}, err
	}
	return v, nil
}

// DecodeTagged decodes a buffer produced by EncodeTagged
func DecodeTagged(b []byte) (domain.Value, error) {
	if len(b) == 0 {
		return domain.Value{}, domain.NewError(domain.DecodeError, "missing type tag")
	}
	return Decode(b[1:], domain.Kind(b[0]))
}

func decodeValue(p []byte, tag domain.Kind, depth int) (domain.Value, error) {
	switch tag {
	case domain.KindNull:
		if len(p) != 0 {
			return domain.Value{}, domain.Errorf(domain.DecodeError, "null payload has %d bytes", len(p))
		}
		return domain.NewNull(), nil
	case domain.KindBool:
		if len(p) != 1 || p[0] > 1 {
			return domain.Value{}, domain.Errorf(domain.DecodeError, "invalid bool payload % x", p)
		}
		return domain.NewBool(p[0] == 1), nil
	case domain.KindInteger:
		if len(p) != 8 {
			return domain.Value{}, domain.Errorf(domain.DecodeError, "integer payload has %d bytes, want 8", len(p))
		}
		return domain.NewInt(int64(binary.BigEndian.Uint64(p))), nil
	case domain.KindFloat:
		if len(p) != 8 {
			return domain.Value{}, domain.Errorf(domain.DecodeError, "float payload has %d bytes, want 8", len(p))
		}
		return domain.NewFloat(math.Float64frombits(binary.BigEndian.Uint64(p))), nil
	case domain.KindString:
		if !utf8.Valid(p) {
			return domain.Value{}, domain.NewError(domain.DecodeError, "string payload is not valid UTF-8")
		}
		return domain.NewString(string(p)), nil
	case domain.KindArray:
		return decodeArray(p, depth+1)
	case domain.KindMap:
		return decodeMap(p, depth+1)
	}
	return domain.Value{}, domain.Errorf(domain.UnsupportedType, "unsupported type tag %d", uint8(tag))
}

func decodeArray(p []byte, depth int) (domain.Value, error) {
	if depth > MaxDepth {
		return domain.Value{}, domain.Errorf(domain.DecodeError, "nesting deeper than %d", MaxDepth)
	}
	r := reader{buf: p}
	n, err := r.count(elemHeaderLen)
	if err != nil {
		return domain.Value{}, err
	}

	items := make([]domain.Value, 0, n)
	for i := 0; i < n; i++ {
		v, err := r.element(depth)
		if err != nil {
			return domain.Value{}, prefix(err, "array element %d", i)
		}
		items = append(items, v)
	}
	if err := r.done(); err != nil {
		return domain.Value{}, err
	}
	return domain.NewArray(items...), nil
}

func decodeMap(p []byte, depth int) (domain.Value, error) {
	if depth > MaxDepth {
		return domain.Value{}, domain.Errorf(domain.DecodeError, "nesting deeper than %d", MaxDepth)
	}
	r := reader{buf: p}
	n, err := r.count(countLen + elemHeaderLen)
	if err != nil {
		return domain.Value{}, err
	}

	entries := make(map[string]domain.Value, n)
	for i := 0; i < n; i++ {
		key, err := r.key()
		if err != nil {
			return domain.Value{}, prefix(err, "map entry %d", i)
		}
		if _, dup := entries[key]; dup {
			return domain.Value{}, domain.Errorf(domain.DecodeError, "duplicate map key %q", key)
		}
		v, err := r.element(depth)
		if err != nil {
			return domain.Value{}, prefix(err, "map entry %q", key)
		}
		entries[key] = v
	}
	if err := r.done(); err != nil {
		return domain.Value{}, err
	}
	return domain.NewMap(entries), nil
}

// reader walks a container payload
type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

func (r *reader) u32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, domain.Errorf(domain.DecodeError, "truncated length at offset %d", r.off)
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

// count reads an element count and rejects counts the remaining bytes cannot
// possibly hold, so a corrupt count cannot force a huge allocation
func (r *reader) count(minElem int) (int, error) {
	n, err := r.u32()
	if err != nil {
		return 0, err
	}
	if uint64(n)*uint64(minElem) > uint64(r.remaining()) {
		return 0, domain.Errorf(domain.DecodeError, "count %d exceeds payload size", n)
	}
	return int(n), nil
}

func (r *reader) bytes(n uint32) ([]byte, error) {
	if uint64(n) > uint64(r.remaining()) {
		return nil, domain.Errorf(domain.DecodeError, "truncated payload: need %d bytes, have %d", n, r.remaining())
	}
	b := r.buf[r.off : r.off+int(n)]
	r.off += int(n)
	return b, nil
}

func (r *reader) key() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", domain.NewError(domain.DecodeError, "map key is not valid UTF-8")
	}
	return string(b), nil
}

func (r *reader) element(depth int) (domain.Value, error) {
	if r.remaining() < 1 {
		return domain.Value{}, domain.NewError(domain.DecodeError, "truncated element tag")
	}
	tag := domain.Kind(r.buf[r.off])
	r.off++
	n, err := r.u32()
	if err != nil {
		return domain.Value{}, err
	}
	payload, err := r.bytes(n)
	if err != nil {
		return domain.Value{}, err
	}
	return decodeValue(payload, tag, depth)
}

func (r *reader) done() error {
	if r.remaining() != 0 {
		return domain.Errorf(domain.DecodeError, "%d trailing bytes after container", r.remaining())
	}
	return nil
}

func prefix(err error, format string, args ...any) error {
	e := domain.Classify(err)
	return domain.Errorf(e.Kind, format+": %s", append(args, e.Message)...)
}
