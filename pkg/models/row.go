package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ValueKind identifies the type of a cell value. The set is closed so
// presentation logic can switch exhaustively.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindObject
	KindArray
)

// Value is a single cell value with a closed type union.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
	Obj  Row
	Arr  []Value
}

// Null returns the null value.
func Null() Value { return Value{Kind: KindNull} }

// String wraps a string value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Number wraps a numeric value.
func Number(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// Boolean wraps a bool value.
func Boolean(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Object wraps a nested row.
func Object(r Row) Value { return Value{Kind: KindObject, Obj: r} }

// Array wraps a list of values.
func Array(vs []Value) Value { return Value{Kind: KindArray, Arr: vs} }

// FromAny converts an arbitrary driver/JSON value into a Value.
// Unrecognized types are stringified with %v rather than rejected, since
// executor results may carry driver-specific types.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case string:
		return String(t)
	case []byte:
		return String(string(t))
	case bool:
		return Boolean(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case time.Time:
		return String(t.Format(time.RFC3339))
	case map[string]any:
		row := Row{}
		for k, mv := range t {
			row = row.Set(k, FromAny(mv))
		}
		return Object(row)
	case []any:
		arr := make([]Value, len(t))
		for i, av := range t {
			arr[i] = FromAny(av)
		}
		return Array(arr)
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// IsNumeric reports whether the value is a number.
func (v Value) IsNumeric() bool { return v.Kind == KindNumber }

// Text renders the value for narrative output.
func (v Value) Text() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindObject, KindArray:
		b, _ := json.Marshal(v)
		return string(b)
	}
	return ""
}

// MarshalJSON renders the underlying value, not the union wrapper.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		return json.Marshal(v.Num)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindObject:
		return json.Marshal(v.Obj)
	case KindArray:
		return json.Marshal(v.Arr)
	}
	return []byte("null"), nil
}

// Field is one (column, value) pair in a result row.
type Field struct {
	Name  string
	Value Value
}

// Row is an ordered list of fields. Column order is preserved from the
// executed query; lookups are linear since rows are small.
type Row []Field

// Get returns the value for a column and whether it exists.
func (r Row) Get(name string) (Value, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Has reports whether the column exists on the row.
func (r Row) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Set replaces an existing column value or appends a new field, returning
// the updated row.
func (r Row) Set(name string, v Value) Row {
	for i, f := range r {
		if f.Name == name {
			r[i].Value = v
			return r
		}
	}
	return append(r, Field{Name: name, Value: v})
}

// Without returns a copy of the row with the named column removed.
func (r Row) Without(name string) Row {
	out := make(Row, 0, len(r))
	for _, f := range r {
		if f.Name != name {
			out = append(out, f)
		}
	}
	return out
}

// Clone returns a shallow copy safe for independent Set calls.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Columns returns the column names in order.
func (r Row) Columns() []string {
	names := make([]string, len(r))
	for i, f := range r {
		names[i] = f.Name
	}
	return names
}

// MarshalJSON renders the row as a JSON object preserving field order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON parses a JSON object into a row. Go maps do not preserve
// key order, so this decodes a token stream to keep column order.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("row: expected JSON object")
	}

	out := Row{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("row: expected string key")
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		out = append(out, Field{Name: key, Value: FromAny(normalizeJSON(raw))})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}

// normalizeJSON converts json.Number values left by UseNumber back to float64.
func normalizeJSON(v any) any {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return f
	case map[string]any:
		for k, mv := range t {
			t[k] = normalizeJSON(mv)
		}
		return t
	case []any:
		for i, av := range t {
			t[i] = normalizeJSON(av)
		}
		return t
	default:
		return v
	}
}
