// Copyright 2025 Signia Protocol
//
// Canonical JSON Decoder
// Token-level parser for documents that participate in hashed domains. It
// rejects duplicate object keys and non-integer numbers at parse time, and
// optionally enforces strictly ascending key order for strict verification.

package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/fault"
)

// Decode parses JSON bytes into the canonical value model: nil, bool, int64,
// string, []interface{}, map[string]interface{}. Duplicate keys and floats
// are rejected.
func Decode(data []byte) (interface{}, error) {
	return decode(data, false)
}

// DecodeStrict is Decode plus a check that every object's keys appear in
// strictly ascending code-point order in the stored bytes.
func DecodeStrict(data []byte) (interface{}, error) {
	return decode(data, true)
}

func decode(data []byte, strict bool) (interface{}, error) {
	if !utf8.Valid(data) {
		return nil, fault.New(fault.CanonicalizationFailed, "document is not valid UTF-8").
			With("reason", ReasonNonUTF8)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeNext(dec, strict)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fault.New(fault.CanonicalizationFailed, "trailing content after document").
			With("reason", ReasonUnsupported)
	}
	return v, nil
}

func decodeNext(dec *json.Decoder, strict bool) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fault.Newf(fault.CanonicalizationFailed, "invalid JSON: %v", err).
			With("reason", ReasonUnsupported)
	}
	return decodeToken(dec, tok, strict)
}

func decodeToken(dec *json.Decoder, tok json.Token, strict bool) (interface{}, error) {
	switch t := tok.(type) {
	case nil:
		return nil, nil
	case bool:
		return t, nil
	case string:
		return t, nil
	case json.Number:
		return decodeNumber(t)
	case json.Delim:
		switch t {
		case '[':
			arr := make([]interface{}, 0)
			for dec.More() {
				item, err := decodeNext(dec, strict)
				if err != nil {
					return nil, err
				}
				arr = append(arr, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, fault.Newf(fault.CanonicalizationFailed, "unterminated array: %v", err).
					With("reason", ReasonUnsupported)
			}
			return arr, nil
		case '{':
			obj := make(map[string]interface{})
			prevKey := ""
			first := true
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, fault.Newf(fault.CanonicalizationFailed, "invalid object key: %v", err).
						With("reason", ReasonUnsupported)
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fault.New(fault.CanonicalizationFailed, "object key is not a string").
						With("reason", ReasonUnsupported)
				}
				if _, dup := obj[key]; dup {
					return nil, fault.Newf(fault.CanonicalizationFailed, "duplicate object key %q", key).
						With("reason", ReasonDuplicateKey)
				}
				if strict && !first && strings.Compare(prevKey, key) >= 0 {
					return nil, fault.Newf(fault.CanonicalizationFailed,
						"object keys not in canonical order: %q before %q", prevKey, key).
						With("reason", "non_canonical_key_order")
				}
				val, err := decodeNext(dec, strict)
				if err != nil {
					return nil, err
				}
				obj[key] = val
				prevKey = key
				first = false
			}
			if _, err := dec.Token(); err != nil {
				return nil, fault.Newf(fault.CanonicalizationFailed, "unterminated object: %v", err).
					With("reason", ReasonUnsupported)
			}
			return obj, nil
		}
	}
	return nil, fault.Newf(fault.CanonicalizationFailed, "unexpected token %v", tok).
		With("reason", ReasonUnsupported)
}

func decodeNumber(n json.Number) (interface{}, error) {
	s := n.String()
	if strings.ContainsAny(s, ".eE") {
		return nil, fault.Newf(fault.CanonicalizationFailed, "non-integer number %s in hashed domain", s).
			With("reason", ReasonFloat)
	}
	i, err := n.Int64()
	if err != nil {
		return nil, fault.Newf(fault.CanonicalizationFailed, "integer %s out of range", s).
			With("reason", ReasonUnsupported)
	}
	// Reject non-canonical integer spellings such as leading zeros or "-0".
	if fmt.Sprintf("%d", i) != s {
		return nil, fault.Newf(fault.CanonicalizationFailed, "non-canonical integer %s", s).
			With("reason", ReasonUnsupported)
	}
	return i, nil
}
