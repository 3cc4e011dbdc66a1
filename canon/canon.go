// Package canon computes the deterministic signing form of event
// plaintext (§4.1): sorted-key, whitespace-free JSON, NUL-padded to
// exactly 512 bytes; an encoding longer than that is rejected with
// ErrTooLarge, never truncated. Two plaintexts canonicalize to the
// same bytes only if they are the same JSON value, which is what makes
// sign/verify over the canonical form meaningful.
package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Size is the fixed width of a canonical form in bytes.
const Size = 512

// Canonicalize renders v (anything JSON-marshalable) as sorted-key,
// whitespace-free JSON and pads it with NUL bytes to exactly Size
// bytes. It returns ErrTooLarge if the unpadded encoding already
// exceeds Size — the caller (the sign handler) must reject the event
// rather than silently truncate it, since truncation could make two
// distinct plaintexts sign identically.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canon: marshal: %w", err)
	}

	sorted, err := sortKeys(raw)
	if err != nil {
		return nil, fmt.Errorf("canon: sort keys: %w", err)
	}

	if len(sorted) > Size {
		return nil, fmt.Errorf("canon: %w: canonical form is %d bytes, budget is %d", ErrTooLarge, len(sorted), Size)
	}

	out := make([]byte, Size)
	copy(out, sorted)
	return out, nil
}

// sortKeys re-marshals raw JSON with every object's keys sorted
// lexicographically at every nesting level, and without insignificant
// whitespace (json.Marshal already omits whitespace and sorts map
// keys; the key order is normalized here explicitly so that it does
// not rest on that encoder behavior).
func sortKeys(raw []byte) ([]byte, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	normalized := normalize(v)
	return json.Marshal(normalized)
}

func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(orderedMap, 0, len(keys))
		for _, k := range keys {
			out = append(out, orderedPair{k, normalize(val[k])})
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalize(e)
		}
		return out
	default:
		return val
	}
}

// orderedPair and orderedMap implement json.Marshaler to emit object
// keys in a fixed order, since Go's encoding/json always sorts
// map[string]any keys itself — but we build this type explicitly so
// the ordering is an explicit invariant of this package rather than an
// incidental behavior of the standard encoder.
type orderedPair struct {
	key   string
	value any
}

type orderedMap []orderedPair

func (m orderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(p.key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valBytes, err := json.Marshal(p.value)
		if err != nil {
			return nil, err
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Unpad trims the trailing NUL padding from a canonical form that was
// produced by Canonicalize, returning the original JSON bytes.
func Unpad(canonical []byte) []byte {
	return bytes.TrimRight(canonical, "\x00")
}
