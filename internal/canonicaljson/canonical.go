// Package canonicaljson produces a deterministic byte encoding of JSON-able
// values: map keys sorted, no HTML escaping, no insignificant whitespace,
// and numeric literals preserved exactly as they were written rather than
// round-tripped through float64. It backs every hash computed over a quote
// snapshot, policy decision, or pricing trace, so that two equal logical
// values always canonicalize to identical bytes regardless of map iteration
// order or platform float formatting.
package canonicaljson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Canonicalize returns the canonical encoding of v. v is first marshaled
// with the standard encoding/json package (so that custom MarshalJSON
// implementations, such as model.Money's fixed-scale string form, are
// respected), then re-encoded with sorted object keys and exact number
// preservation.
func Canonicalize(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicaljson: marshal: %w", err)
	}
	decoded, err := decodeNumberPreserving(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicaljson: decode: %w", err)
	}
	var buf bytes.Buffer
	if err := encodeCanonical(&buf, decoded); err != nil {
		return nil, fmt.Errorf("canonicaljson: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeNumberPreserving decodes raw JSON using json.Number so that numeric
// literals retain their original textual representation instead of being
// rounded through float64.
func decodeNumberPreserving(raw []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func encodeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case json.Number:
		buf.WriteString(val.String())
		return nil
	case string:
		return encodeString(buf, val)
	case []interface{}:
		return encodeArray(buf, val)
	case map[string]interface{}:
		return encodeObject(buf, val)
	default:
		return fmt.Errorf("canonicaljson: unsupported decoded type %T", v)
	}
}

func encodeArray(buf *bytes.Buffer, arr []interface{}) error {
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeCanonical(buf, elem); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func encodeObject(buf *bytes.Buffer, obj map[string]interface{}) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := encodeCanonical(buf, obj[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// encodeString writes s as a JSON string literal without HTML escaping,
// matching the canonical form expected across language implementations.
func encodeString(buf *bytes.Buffer, s string) error {
	// json.Encoder always appends a trailing newline; encode into a scratch
	// buffer and trim it before appending to buf.
	var scratch bytes.Buffer
	encoder := json.NewEncoder(&scratch)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(scratch.Bytes(), "\n"))
	return nil
}
