package row

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row is an insertion-ordered map of field name to Value
type Row struct {
	keys []string
	vals map[string]Value
}

// New creates an empty row
func New() *Row {
	return &Row{vals: make(map[string]Value)}
}

// FromPairs builds a row from alternating key/value arguments
func FromPairs(pairs ...interface{}) *Row {
	r := New()
	for i := 0; i+1 < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("row.FromPairs: key at %d is %T", i, pairs[i]))
		}
		switch v := pairs[i+1].(type) {
		case Value:
			r.Set(key, v)
		default:
			val, err := FromAny(v)
			if err != nil {
				panic(err)
			}
			r.Set(key, val)
		}
	}
	return r
}

// Set assigns key, keeping its original position if it already exists
func (r *Row) Set(key string, v Value) {
	if r.vals == nil {
		r.vals = make(map[string]Value)
	}
	if _, ok := r.vals[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.vals[key] = v
}

// Get returns the value stored under key
func (r *Row) Get(key string) (Value, bool) {
	if r == nil {
		return Value{}, false
	}
	v, ok := r.vals[key]
	return v, ok
}

// Has reports whether key is present (null values count as present)
func (r *Row) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Delete removes key
func (r *Row) Delete(key string) {
	if _, ok := r.vals[key]; !ok {
		return
	}
	delete(r.vals, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order
func (r *Row) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of keys
func (r *Row) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Clone returns an independent copy
func (r *Row) Clone() *Row {
	c := &Row{
		keys: make([]string, len(r.keys)),
		vals: make(map[string]Value, len(r.vals)),
	}
	copy(c.keys, r.keys)
	for k, v := range r.vals {
		c.vals[k] = v
	}
	return c
}

// IsBlank reports whether every value in the row is empty
func (r *Row) IsBlank() bool {
	for _, k := range r.keys {
		v := r.vals[k]
		if s, ok := v.Str(); ok {
			if len(bytes.TrimSpace([]byte(s))) > 0 {
				return false
			}
			continue
		}
		if !v.IsNull() {
			return false
		}
	}
	return true
}

// MarshalJSON writes the row as a JSON object in key order
func (r *Row) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := r.vals[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a flat JSON object, preserving key order
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("row: expected object, got %v", tok)
	}

	*r = Row{vals: make(map[string]Value)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("row: expected key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("row: key %q: %w", key, err)
		}
		var v Value
		if err := v.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("row: key %q: %w", key, err)
		}
		r.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
