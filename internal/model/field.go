package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Field names a regulated label declaration.
type Field string

const (
	FieldMRP          Field = "mrp"
	FieldQuantity     Field = "quantity"
	FieldManufacturer Field = "manufacturer"
	FieldOrigin       Field = "origin"
	FieldSupport      Field = "support"
	FieldDates        Field = "dates"
	FieldBatch        Field = "batch"
	FieldLicense      Field = "license"
	FieldBarcode      Field = "barcode"
)

// AllFields returns every known field in schema declaration order.
func AllFields() []Field {
	return []Field{
		FieldMRP,
		FieldQuantity,
		FieldManufacturer,
		FieldOrigin,
		FieldSupport,
		FieldDates,
		FieldBatch,
		FieldLicense,
		FieldBarcode,
	}
}

// IsKnown reports whether f is one of the declared label fields.
func (f Field) IsKnown() bool {
	for _, k := range AllFields() {
		if k == f {
			return true
		}
	}
	return false
}

// DateValue is a labelled date declaration such as {"Best Before", "12/2025"}.
type DateValue struct {
	Label string `json:"label" yaml:"label"`
	Date  string `json:"date" yaml:"date"`
}

// String renders the date as "label: date".
func (d DateValue) String() string {
	switch {
	case d.Label == "":
		return d.Date
	case d.Date == "":
		return d.Label
	}
	return d.Label + ": " + d.Date
}

// FieldSet is an immutable mapping from field to value. A value is either a
// string or a DateValue. Empty values are never stored: absence is key absence.
type FieldSet struct {
	values map[Field]any
}

// NewFieldSet builds a FieldSet from raw values, normalizing each with
// NormalizeValue and dropping anything empty.
func NewFieldSet(values map[Field]any) FieldSet {
	out := make(map[Field]any, len(values))
	for k, v := range values {
		if nv, ok := NormalizeValue(v); ok {
			out[k] = nv
		}
	}
	return FieldSet{values: out}
}

// FieldSetFromStrings is a convenience constructor for string-only sets.
func FieldSetFromStrings(values map[Field]string) FieldSet {
	raw := make(map[Field]any, len(values))
	for k, v := range values {
		raw[k] = v
	}
	return NewFieldSet(raw)
}

// NormalizeValue converts v to a storable value. It returns false when the
// value is empty (nil, blank string, empty date) and must not be stored.
func NormalizeValue(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, false
		}
		return s, true
	case *string:
		if t == nil {
			return nil, false
		}
		return NormalizeValue(*t)
	case DateValue:
		d := DateValue{Label: strings.TrimSpace(t.Label), Date: strings.TrimSpace(t.Date)}
		if d.Label == "" && d.Date == "" {
			return nil, false
		}
		return d, true
	case *DateValue:
		if t == nil {
			return nil, false
		}
		return NormalizeValue(*t)
	case map[string]any:
		label, _ := t["label"].(string)
		date, _ := t["date"].(string)
		if label == "" && date == "" {
			// Arbitrary objects are flattened to their JSON text.
			if len(t) == 0 {
				return nil, false
			}
			b, err := json.Marshal(t)
			if err != nil {
				return nil, false
			}
			return string(b), true
		}
		return NormalizeValue(DateValue{Label: label, Date: date})
	default:
		return NormalizeValue(fmt.Sprintf("%v", t))
	}
}

// Get returns the value stored for f.
func (s FieldSet) Get(f Field) (any, bool) {
	v, ok := s.values[f]
	return v, ok
}

// Has reports whether f carries evidence.
func (s FieldSet) Has(f Field) bool {
	_, ok := s.values[f]
	return ok
}

// String returns the textual form of f, or "" when absent.
func (s FieldSet) String(f Field) string {
	v, ok := s.values[f]
	if !ok {
		return ""
	}
	return ValueString(v)
}

// ValueString renders a stored value as text.
func ValueString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case DateValue:
		return t.String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Len returns the number of present fields.
func (s FieldSet) Len() int {
	return len(s.values)
}

// With returns a copy of s with f set to v. An empty v removes f.
func (s FieldSet) With(f Field, v any) FieldSet {
	out := make(map[Field]any, len(s.values)+1)
	for k, val := range s.values {
		out[k] = val
	}
	if nv, ok := NormalizeValue(v); ok {
		out[f] = nv
	} else {
		delete(out, f)
	}
	return FieldSet{values: out}
}

// Keys returns present fields: known fields in schema order, then any
// unknown fields sorted lexically.
func (s FieldSet) Keys() []Field {
	keys := make([]Field, 0, len(s.values))
	for _, f := range AllFields() {
		if s.Has(f) {
			keys = append(keys, f)
		}
	}
	var extra []Field
	for f := range s.values {
		if !f.IsKnown() {
			extra = append(extra, f)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(keys, extra...)
}

// Map returns a copy of the underlying values.
func (s FieldSet) Map() map[Field]any {
	out := make(map[Field]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Equal reports whether both sets hold the same fields and values.
func (s FieldSet) Equal(o FieldSet) bool {
	if len(s.values) != len(o.values) {
		return false
	}
	for k, v := range s.values {
		ov, ok := o.values[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the set as a flat object keyed by field name.
func (s FieldSet) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[string(k)] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a flat object, dropping empty values.
func (s *FieldSet) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	values := make(map[Field]any, len(raw))
	for k, v := range raw {
		values[Field(k)] = v
	}
	*s = NewFieldSet(values)
	return nil
}
