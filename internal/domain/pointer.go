package domain

import (
	"strconv"
	"strings"
)

// Pointer resolves an RFC 6901 JSON Pointer against v. The empty pointer
// refers to v itself. Tokens are separated by "/" with "~1" standing for "/"
// and "~0" for "~". Array elements are addressed by decimal index.
func (v Value) Pointer(ptr string) (Value, bool) {
	if ptr == "" {
		return v, true
	}
	if !strings.HasPrefix(ptr, "/") {
		return Value{}, false
	}

	cur := v
	for _, raw := range strings.Split(ptr[1:], "/") {
		token := unescapePointerToken(raw)
		switch cur.kind {
		case KindMap:
			next, ok := cur.m[token]
			if !ok {
				return Value{}, false
			}
			cur = next
		case KindArray:
			idx, ok := parseArrayIndex(token)
			if !ok || idx >= len(cur.arr) {
				return Value{}, false
			}
			cur = cur.arr[idx]
		default:
			return Value{}, false
		}
	}
	return cur, true
}

// Lookup is Pointer with an error describing the missing path
func (v Value) Lookup(ptr string) (Value, error) {
	found, ok := v.Pointer(ptr)
	if !ok {
		return Value{}, Errorf(DecodeError, "could not find %s in data", ptr)
	}
	return found, nil
}

func unescapePointerToken(s string) string {
	if !strings.Contains(s, "~") {
		return s
	}
	s = strings.ReplaceAll(s, "~1", "/")
	return strings.ReplaceAll(s, "~0", "~")
}

// parseArrayIndex accepts "0" or a decimal without leading zeros
func parseArrayIndex(token string) (int, bool) {
	if token == "" || (len(token) > 1 && token[0] == '0') {
		return 0, false
	}
	for _, c := range token {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(token)
	if err != nil {
		return 0, false
	}
	return idx, true
}
