// Package models defines the record data model flowing through pipelines.
//
// A Record is a named-field container. Access is dynamic (by field name) but
// conversion is explicit: typed getters return an error on a missing field or
// a failed conversion rather than silently coercing. Records are built to be
// pooled; Reset clears a record for reuse and CopyTo duplicates one pooled
// instance into another.
package models

import (
	"sort"
	"time"

	"github.com/spf13/cast"

	"github.com/prathamsinghrao/Etl-Lib/pkg/errors"
)

// Record is a named-field data container. A record is owned transiently by
// whichever node or operation currently holds it, so it carries no internal
// locking; the pool guarantees at most one borrower at a time.
type Record struct {
	fields map[string]interface{}
}

// NewRecord creates an empty record
func NewRecord() *Record {
	return &Record{fields: make(map[string]interface{})}
}

// NewRecordFrom creates a record seeded with a deep copy of the given fields
func NewRecordFrom(fields map[string]interface{}) *Record {
	r := &Record{fields: make(map[string]interface{}, len(fields))}
	for k, v := range fields {
		r.fields[k] = deepCopyValue(v)
	}
	return r
}

// Set stores a field value, replacing any previous value. It returns the
// record for chaining.
func (r *Record) Set(name string, value interface{}) *Record {
	if r.fields == nil {
		r.fields = make(map[string]interface{})
	}
	r.fields[name] = value
	return r
}

// Get returns the raw value of a field and whether it is present
func (r *Record) Get(name string) (interface{}, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// Has reports whether the field is present
func (r *Record) Has(name string) bool {
	_, ok := r.fields[name]
	return ok
}

// Delete removes a field if present
func (r *Record) Delete(name string) {
	delete(r.fields, name)
}

// GetString returns the field converted to a string. Conversion failures and
// missing fields are explicit errors, never silent coercions.
func (r *Record) GetString(name string) (string, error) {
	v, ok := r.fields[name]
	if !ok {
		return "", missingField(name)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", conversionFailed(name, "string", err)
	}
	return s, nil
}

// GetInt returns the field converted to an int64
func (r *Record) GetInt(name string) (int64, error) {
	v, ok := r.fields[name]
	if !ok {
		return 0, missingField(name)
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return 0, conversionFailed(name, "int64", err)
	}
	return n, nil
}

// GetFloat returns the field converted to a float64
func (r *Record) GetFloat(name string) (float64, error) {
	v, ok := r.fields[name]
	if !ok {
		return 0, missingField(name)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, conversionFailed(name, "float64", err)
	}
	return f, nil
}

// GetBool returns the field converted to a bool
func (r *Record) GetBool(name string) (bool, error) {
	v, ok := r.fields[name]
	if !ok {
		return false, missingField(name)
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, conversionFailed(name, "bool", err)
	}
	return b, nil
}

// GetTime returns the field converted to a time.Time
func (r *Record) GetTime(name string) (time.Time, error) {
	v, ok := r.fields[name]
	if !ok {
		return time.Time{}, missingField(name)
	}
	ts, err := cast.ToTimeE(v)
	if err != nil {
		return time.Time{}, conversionFailed(name, "time", err)
	}
	return ts, nil
}

// Fields returns the field names in sorted order
func (r *Record) Fields() []string {
	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of fields
func (r *Record) Len() int {
	return len(r.fields)
}

// ToMap returns a shallow copy of the fields, for marshaling
func (r *Record) ToMap() map[string]interface{} {
	out := make(map[string]interface{}, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

// CopyTo deep-copies all fields into dst, replacing dst's contents. Both
// records stay independently mutable afterwards, which is what makes the
// copy pool-safe.
func (r *Record) CopyTo(dst *Record) {
	dst.Reset()
	if dst.fields == nil {
		dst.fields = make(map[string]interface{}, len(r.fields))
	}
	for k, v := range r.fields {
		dst.fields[k] = deepCopyValue(v)
	}
}

// Clone allocates a new record with a deep copy of all fields
func (r *Record) Clone() *Record {
	dst := &Record{fields: make(map[string]interface{}, len(r.fields))}
	for k, v := range r.fields {
		dst.fields[k] = deepCopyValue(v)
	}
	return dst
}

// Reset clears all fields so the record can go back to the pool
func (r *Record) Reset() {
	for k := range r.fields {
		delete(r.fields, k)
	}
}

func missingField(name string) error {
	return errors.Newf(errors.ErrorTypeData, "field %q not present", name)
}

func conversionFailed(name, target string, err error) error {
	return errors.Wrap(err, errors.ErrorTypeData, "field "+name+" is not convertible to "+target).
		WithDetail("field", name).
		WithDetail("target_type", target)
}

// deepCopyValue copies nested maps and slices; scalars are returned as-is
func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[k] = deepCopyValue(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = deepCopyValue(inner)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	case []byte:
		out := make([]byte, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}
