package nested

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
)

// Non-finite floats are written as the bare NaN, Infinity and -Infinity
// tokens Python's json module emits and accepts. encoding/json rejects
// them, so stores holding such values must go through Marshal and Parse
// rather than json.Marshal and json.Unmarshal.
const (
	tokenNaN    = "NaN"
	tokenPosInf = "Infinity"
	tokenNegInf = "-Infinity"
)

// Placeholders substituted for the bare tokens before decoding. The NUL
// prefix keeps them apart from any string a store can legitimately hold.
const (
	markerNaN    = "\x00NaN"
	markerPosInf = "\x00Infinity"
	markerNegInf = "\x00-Infinity"
)

var (
	quotedNaN    = []byte(`"\u0000NaN"`)
	quotedPosInf = []byte(`"\u0000Infinity"`)
	quotedNegInf = []byte(`"\u0000-Infinity"`)
)

// Marshal encodes s, writing non-finite floats as bare tokens.
func Marshal(s *Store) ([]byte, error) {
	return s.MarshalJSON()
}

// Parse decodes a JSON object written by Marshal or by Python's json.dump.
func Parse(data []byte) (*Store, error) {
	s := New()
	if err := s.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return s, nil
}

// MarshalJSON encodes the store as a JSON object, keeping insertion order.
func (s *Store) MarshalJSON() ([]byte, error) {
	return s.appendJSON(nil)
}

func (s *Store) appendJSON(buf []byte) ([]byte, error) {
	buf = append(buf, '{')
	if s != nil {
		for i, k := range s.keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			var err error
			if buf, err = appendKey(buf, k); err != nil {
				return nil, err
			}
			buf, err = appendValue(buf, reflect.ValueOf(s.values[k]))
			if err != nil {
				return nil, fmt.Errorf("encoding key %q: %w", k, err)
			}
		}
	}
	return append(buf, '}'), nil
}

func appendKey(buf []byte, k string) ([]byte, error) {
	kb, err := json.Marshal(k)
	if err != nil {
		return nil, err
	}
	return append(append(buf, kb...), ':'), nil
}

var storeType = reflect.TypeOf((*Store)(nil))

func appendValue(buf []byte, v reflect.Value) ([]byte, error) {
	if !v.IsValid() {
		return append(buf, "null"...), nil
	}
	if v.Type() == storeType {
		return v.Interface().(*Store).appendJSON(buf)
	}
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return append(buf, "null"...), nil
		}
		return appendValue(buf, v.Elem())
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		switch {
		case math.IsNaN(f):
			return append(buf, tokenNaN...), nil
		case math.IsInf(f, 1):
			return append(buf, tokenPosInf...), nil
		case math.IsInf(f, -1):
			return append(buf, tokenNegInf...), nil
		}
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return append(buf, "null"...), nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			break
		}
		buf = append(buf, '[')
		for i := range v.Len() {
			if i > 0 {
				buf = append(buf, ',')
			}
			var err error
			if buf, err = appendValue(buf, v.Index(i)); err != nil {
				return nil, err
			}
		}
		return append(buf, ']'), nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			break
		}
		if v.IsNil() {
			return append(buf, "null"...), nil
		}
		keys := make([]string, 0, v.Len())
		for _, k := range v.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		buf = append(buf, '{')
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			var err error
			if buf, err = appendKey(buf, k); err != nil {
				return nil, err
			}
			kv := reflect.ValueOf(k).Convert(v.Type().Key())
			if buf, err = appendValue(buf, v.MapIndex(kv)); err != nil {
				return nil, err
			}
		}
		return append(buf, '}'), nil
	}
	b, err := json.Marshal(v.Interface())
	if err != nil {
		return nil, err
	}
	return append(buf, b...), nil
}

// UnmarshalJSON decodes a JSON object into the store. Nested objects become
// child stores, numbers float64 and arrays []any. Object key order is kept.
// The bare NaN, Infinity and -Infinity tokens decode to non-finite floats.
func (s *Store) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(replaceNonFinite(data)))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("nested: expected JSON object, got %v", tok)
	}
	decoded, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*s = *decoded
	return nil
}

// replaceNonFinite rewrites bare non-finite tokens outside string literals
// into quoted markers. Input without them is returned unchanged.
func replaceNonFinite(data []byte) []byte {
	if !bytes.Contains(data, []byte(tokenNaN)) && !bytes.Contains(data, []byte(tokenPosInf)) {
		return data
	}
	out := make([]byte, 0, len(data)+16)
	inString, escaped := false, false
	for i := 0; i < len(data); i++ {
		c := data[i]
		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch {
		case c == '"':
			inString = true
		case bytes.HasPrefix(data[i:], []byte(tokenNegInf)):
			out = append(out, quotedNegInf...)
			i += len(tokenNegInf) - 1
			continue
		case bytes.HasPrefix(data[i:], []byte(tokenPosInf)):
			out = append(out, quotedPosInf...)
			i += len(tokenPosInf) - 1
			continue
		case bytes.HasPrefix(data[i:], []byte(tokenNaN)):
			out = append(out, quotedNaN...)
			i += len(tokenNaN) - 1
			continue
		}
		out = append(out, c)
	}
	return out
}

func decodeObject(dec *json.Decoder) (*Store, error) {
	s := New()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("nested: expected object key, got %v", tok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		s.put(key, v)
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			arr := []any{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				// arrays hold plain values, not stores
				if child, ok := v.(*Store); ok {
					v = child.ToMap()
				}
				arr = append(arr, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("nested: unexpected delimiter %v", t)
	case string:
		switch t {
		case markerNaN:
			return math.NaN(), nil
		case markerPosInf:
			return math.Inf(1), nil
		case markerNegInf:
			return math.Inf(-1), nil
		}
		return t, nil
	default:
		return t, nil
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
