package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ValueKind tags which member of a FieldValue is populated.
type ValueKind int

const (
	ValueText ValueKind = iota + 1
	ValueList
	ValueInt
)

// FieldValue is a single extracted value with its provenance.
// Exactly one of Text, List or Int is meaningful, selected by Kind.
type FieldValue struct {
	Kind   ValueKind `json:"-"`
	Text   string    `json:"-"`
	List   []string  `json:"-"`
	Int    int64     `json:"-"`
	Key    string    `json:"-"` // raw key the value was found under
	Method Method    `json:"-"`
	Source string    `json:"-"`
}

// Text builds a text value.
func Text(s string) FieldValue { return FieldValue{Kind: ValueText, Text: s} }

// List builds a list value.
func List(items ...string) FieldValue { return FieldValue{Kind: ValueList, List: items} }

// Int builds an integer value.
func Int(n int64) FieldValue { return FieldValue{Kind: ValueInt, Int: n} }

// IsZero reports whether v holds nothing.
func (v FieldValue) IsZero() bool {
	switch v.Kind {
	case ValueText:
		return strings.TrimSpace(v.Text) == ""
	case ValueList:
		return len(v.List) == 0
	case ValueInt:
		return false
	default:
		return true
	}
}

// Value returns the populated member as an untyped value.
func (v FieldValue) Value() any {
	switch v.Kind {
	case ValueText:
		return v.Text
	case ValueList:
		return v.List
	case ValueInt:
		return v.Int
	default:
		return nil
	}
}

// String renders the value for logs and CSV output.
func (v FieldValue) String() string {
	switch v.Kind {
	case ValueList:
		return strings.Join(v.List, "; ")
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	default:
		return v.Text
	}
}

// Equal compares the payloads of two values, ignoring provenance.
func (v FieldValue) Equal(o FieldValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ValueList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if v.List[i] != o.List[i] {
				return false
			}
		}
		return true
	case ValueInt:
		return v.Int == o.Int
	default:
		return v.Text == o.Text
	}
}

type fieldValueJSON struct {
	Value  any    `json:"value"`
	Method Method `json:"method,omitempty"`
	Source string `json:"source,omitempty"`
}

// MarshalJSON emits {"value", "method", "source"}.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(fieldValueJSON{Value: v.Value(), Method: v.Method, Source: v.Source})
}

// UnmarshalJSON restores the kind from the JSON shape of value.
func (v *FieldValue) UnmarshalJSON(b []byte) error {
	var raw struct {
		Value  json.RawMessage `json:"value"`
		Method Method          `json:"method"`
		Source string          `json:"source"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*v = FieldValue{Method: raw.Method, Source: raw.Source}

	var s string
	if err := json.Unmarshal(raw.Value, &s); err == nil {
		v.Kind, v.Text = ValueText, s
		return nil
	}
	var n int64
	if err := json.Unmarshal(raw.Value, &n); err == nil {
		v.Kind, v.Int = ValueInt, n
		return nil
	}
	var l []string
	if err := json.Unmarshal(raw.Value, &l); err != nil {
		return err
	}
	v.Kind, v.List = ValueList, l
	return nil
}
