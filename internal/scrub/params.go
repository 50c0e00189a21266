package scrub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"reflect"
	"slices"

	"github.com/mdobak/go-xerrors"
	"github.com/songify/reporter/internal/encoding"
)

// Params is an ordered string-keyed mapping. Insertion order is kept through
// scrubbing and JSON encoding. A nil *Params behaves as an empty mapping.
type Params struct {
	keys   []string
	values map[string]any
}

// Mapper is implemented by values that can present themselves as Params.
type Mapper interface {
	ToParams() *Params
}

// NewParams returns an empty Params with room for size entries.
func NewParams(size ...int) *Params {
	n := 0
	if len(size) > 0 {
		n = size[0]
	}
	return &Params{
		keys:   make([]string, 0, n),
		values: make(map[string]any, n),
	}
}

// Set stores value under key. Overwriting a key keeps its original position.
func (p *Params) Set(key string, value any) {
	if p.values == nil {
		p.values = make(map[string]any)
	}
	if _, exists := p.values[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Get returns the value stored under key.
func (p *Params) Get(key string) (any, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (p *Params) Keys() []string {
	if p == nil {
		return nil
	}
	return slices.Clone(p.keys)
}

// Len returns the number of entries.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Range calls fn for every entry in order until fn returns false.
func (p *Params) Range(fn func(key string, value any) bool) {
	if p == nil {
		return
	}
	for _, k := range p.keys {
		if !fn(k, p.values[k]) {
			return
		}
	}
}

// Map converts p into plain Go maps, recursively. Order is lost.
func (p *Params) Map() map[string]any {
	out := make(map[string]any, p.Len())
	p.Range(func(key string, value any) bool {
		out[key] = plain(value)
		return true
	})
	return out
}

func plain(v any) any {
	switch t := v.(type) {
	case *Params:
		return t.Map()
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = plain(t[i])
		}
		return out
	default:
		return v
	}
}

// MarshalJSON encodes p as a JSON object in key order.
func (p *Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(p.values[k])
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping key order. Nested objects
// become *Params, arrays become []any and numbers json.Number.
func (p *Params) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return xerrors.WithStackTrace(fmt.Errorf("%w: JSON value is not an object", ErrInvalidInputKind), 0)
	}

	decoded, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*p = *decoded
	return nil
}

// ParseJSON decodes data into a new Params.
func ParseJSON(data []byte) (*Params, error) {
	p := NewParams()
	if err := p.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeObject(dec *json.Decoder) (*Params, error) {
	p := NewParams()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		p.Set(key, value)
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		return decodeObject(dec)
	case '[':
		arr := []any{}
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %v", delim)
	}
}

// ToParams views v as Params without scrubbing it. Nil yields an empty Params.
func ToParams(v any) (*Params, error) {
	if v == nil {
		return NewParams(), nil
	}
	p, ok := asParams(v)
	if !ok {
		return nil, xerrors.WithStackTrace(fmt.Errorf("%w: got %T", ErrInvalidInputKind, v), 1)
	}
	return p, nil
}

// asParams views v as a mapping. Unordered Go maps are read in sorted key order.
func asParams(v any) (*Params, bool) {
	switch m := v.(type) {
	case *Params:
		if m == nil {
			return NewParams(), true
		}
		return m, true
	case Params:
		return &m, true
	case map[string]any:
		return fromMap(m), true
	case map[string]string:
		return fromMap(m), true
	case url.Values:
		return fromMap(m), true
	case http.Header:
		return fromMap(m), true
	case map[string][]string:
		return fromMap(m), true
	case Mapper:
		return m.ToParams(), true
	}

	// Remaining maps, named or with non-string keys, via their encoded keys.
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil, false
	}
	entries := make(map[string]any, rv.Len())
	origins := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		raw := iter.Key().Interface()
		key := encoding.EncodeKey(raw)
		if prev, dup := origins[key]; dup {
			keep := preferredKey(prev, raw, key)
			slog.Debug("map keys share an encoded form",
				slog.String("key", key),
				slog.String("kept_type", fmt.Sprintf("%T", keep)))
			if keep == prev {
				continue
			}
		}
		origins[key] = raw
		entries[key] = iter.Value().Interface()
	}
	return fromMap(entries), true
}

// preferredKey picks which of two keys with the same encoded form keeps its
// value: the key already equal to that form wins, then a string key, then the
// key whose type and printed form sort first.
func preferredKey(a, b any, encoded string) any {
	if a == encoded {
		return a
	}
	if b == encoded {
		return b
	}
	_, aStr := a.(string)
	_, bStr := b.(string)
	switch {
	case aStr && !bStr:
		return a
	case bStr && !aStr:
		return b
	}
	if fmt.Sprintf("%T %#v", b, b) < fmt.Sprintf("%T %#v", a, a) {
		return b
	}
	return a
}
