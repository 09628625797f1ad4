package chain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"
)

// Kind identifies the type held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Value is a single payload value: a string, a number or a boolean.
// The zero Value is invalid and makes the enclosing payload malformed.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
}

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric Value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Int returns a numeric Value. Integers are stored as float64, so magnitudes
// above 2^53 lose precision.
func Int(i int64) Value { return Value{kind: KindNumber, num: float64(i)} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind reports the type held by v.
func (v Value) Kind() Kind { return v.kind }

// Str returns the string held by v and whether v is a string.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Num returns the number held by v and whether v is a number.
func (v Value) Num() (float64, bool) { return v.num, v.kind == KindNumber }

// Boolean returns the boolean held by v and whether v is a boolean.
func (v Value) Boolean() (bool, bool) { return v.b, v.kind == KindBool }

// Interface returns v as a plain Go value (string, float64 or bool).
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if err := v.check(); err != nil {
		return nil, err
	}
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements json.Unmarshaler. Only strings, numbers and
// booleans are accepted.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case string:
		*v = String(x)
	case float64:
		*v = Number(x)
	case bool:
		*v = Bool(x)
	default:
		return fmt.Errorf("%w: unsupported value %s", ErrMalformedPayload, string(data))
	}
	return nil
}

func (v Value) check() error {
	switch v.kind {
	case KindString:
		if !utf8.ValidString(v.str) {
			return fmt.Errorf("%w: string value is not valid UTF-8", ErrMalformedPayload)
		}
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return fmt.Errorf("%w: number %v has no canonical form", ErrMalformedPayload, v.num)
		}
	case KindBool:
	default:
		return fmt.Errorf("%w: value has no type", ErrMalformedPayload)
	}
	return nil
}

// Payload is the record notarized by a block.
type Payload map[string]Value

// Canonical returns the deterministic encoding of p: compact JSON with keys
// in byte order. Logically equal payloads always produce identical bytes.
func (p Payload) Canonical() ([]byte, error) {
	keys := make([]string, 0, len(p))
	for k := range p {
		if !utf8.ValidString(k) {
			return nil, fmt.Errorf("%w: key %q is not valid UTF-8", ErrMalformedPayload, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrMalformedPayload, k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')

		vb, err := p[k].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Validate reports whether p can be canonically serialized.
func (p Payload) Validate() error {
	_, err := p.Canonical()
	return err
}

// Clone returns a copy of p that shares no state with it.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Get returns the string form of the value stored under key, or "" when the
// key is absent or not a string.
func (p Payload) Get(key string) string {
	s, _ := p[key].Str()
	return s
}

// PayloadFromMap converts plain Go values into a Payload. Supported types are
// string, bool, float32/float64 and the built-in integer types.
func PayloadFromMap(m map[string]any) (Payload, error) {
	p := make(Payload, len(m))
	for k, raw := range m {
		var v Value
		switch x := raw.(type) {
		case string:
			v = String(x)
		case bool:
			v = Bool(x)
		case float64:
			v = Number(x)
		case float32:
			v = Number(float64(x))
		case int:
			v = Int(int64(x))
		case int32:
			v = Int(int64(x))
		case int64:
			v = Int(x)
		case uint:
			v = Number(float64(x))
		case uint32:
			v = Number(float64(x))
		case uint64:
			v = Number(float64(x))
		case Value:
			v = x
		default:
			return nil, fmt.Errorf("%w: key %q has unsupported type %T", ErrMalformedPayload, k, raw)
		}
		p[k] = v
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
