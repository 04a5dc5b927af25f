// Copyright 2025 Signia Protocol
//
// Canonical JSON Encoder
// Deterministic byte serialization for hashed domains: object keys sorted by
// Unicode code point, no whitespace, mandatory escapes only, integers in
// plain base 10, raw UTF-8 for non-ASCII. Floats are rejected; callers must
// pre-convert numeric values to integers or canonical decimal strings.

package canonical

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/fault"
)

// Reasons carried by CanonicalizationFailed faults.
const (
	ReasonDuplicateKey   = "duplicate_key"
	ReasonFloat          = "float_in_hashed_domain"
	ReasonNonUTF8        = "non_utf8_string"
	ReasonUnsupported    = "unsupported_value"
)

// Encode serializes a JSON-shaped value tree to canonical bytes. Accepted
// leaves: nil, bool, int, int64, uint64, string; containers: []interface{}
// and map[string]interface{}.
func Encode(v interface{}) ([]byte, error) {
	var b strings.Builder
	if err := encodeValue(&b, v); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func encodeValue(b *strings.Builder, v interface{}) error {
	switch vv := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if vv {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case int:
		b.WriteString(strconv.FormatInt(int64(vv), 10))
	case int64:
		b.WriteString(strconv.FormatInt(vv, 10))
	case uint64:
		b.WriteString(strconv.FormatUint(vv, 10))
	case float32, float64:
		return fault.New(fault.CanonicalizationFailed, "float value in hashed domain").
			With("reason", ReasonFloat)
	case string:
		if !utf8.ValidString(vv) {
			return fault.New(fault.CanonicalizationFailed, "string is not valid UTF-8").
				With("reason", ReasonNonUTF8)
		}
		encodeString(b, vv)
	case []interface{}:
		b.WriteByte('[')
		for i, item := range vv {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := encodeValue(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			if !utf8.ValidString(k) {
				return fault.New(fault.CanonicalizationFailed, "object key is not valid UTF-8").
					With("reason", ReasonNonUTF8)
			}
			encodeString(b, k)
			b.WriteByte(':')
			if err := encodeValue(b, vv[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	default:
		return fault.Newf(fault.CanonicalizationFailed, "unsupported value of type %T", v).
			With("reason", ReasonUnsupported)
	}
	return nil
}

const hexDigits = "0123456789abcdef"

// encodeString emits a JSON string with only the mandatory escapes: quote,
// backslash, and control characters below U+0020. Everything else is raw
// UTF-8.
func encodeString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			b.WriteString(`\"`)
		case c == '\\':
			b.WriteString(`\\`)
		case c == '\b':
			b.WriteString(`\b`)
		case c == '\f':
			b.WriteString(`\f`)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20:
			b.WriteString(`\u00`)
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0xf])
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
}
