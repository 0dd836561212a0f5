// Package resources models resolved compute-resource values.
package resources

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
)

// Well-known resource names.
const (
	Cores   = "_cores"
	Nodes   = "_nodes"
	MemMB   = "mem_mb"
	MemMiB  = "mem_mib"
	DiskMB  = "disk_mb"
	DiskMiB = "disk_mib"
)

// Derived maps a base resource onto the resource derived from it.
var Derived = map[string]string{MemMB: MemMiB, DiskMB: DiskMiB}

// Kind discriminates Value.
type Kind uint8

const (
	KindNone Kind = iota
	KindInt
	KindString
	KindTBD
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindTBD:
		return "tbd"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a resolved resource: none, an integer, a string or a placeholder
// for a value that is not known yet.
type Value struct {
	kind Kind
	i    int64
	s    string
}

func None() Value { return Value{kind: KindNone} }
func Int(i int64) Value { return Value{kind: KindInt, i: i} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func TBD() Value { return Value{kind: KindTBD} }
func (v Value) Kind() Kind { return v.kind }
func (v Value) IsInt() bool { return v.kind == KindInt }
func (v Value) IsTBD() bool { return v.kind == KindTBD }
func (v Value) IsNone() bool { return v.kind == KindNone }

// Int returns the integer value; ok is false for other kinds.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Str returns the string value; ok is false for other kinds.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindString:
		return v.s
	case KindTBD:
		return "<TBD>"
	}
	return "None"
}

// Any returns the value as a plain Go value: nil, int, string or "<TBD>".
func (v Value) Any() any {
	switch v.kind {
	case KindInt:
		return int(v.i)
	case KindString:
		return v.s
	case KindTBD:
		return "<TBD>"
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// RoundHalfUp rounds to the nearest integer, halves away from negative
// infinity. Values that are not finite or fall outside the int64 range are
// rejected.
func RoundHalfUp(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("resource value %v is not finite", f)
	}
	r := math.Floor(f + 0.5)
	// float64(math.MaxInt64) is 2^63, one past the largest int64
	if r >= math.MaxInt64 || r < math.MinInt64 {
		return 0, fmt.Errorf("resource value %v overflows int64", f)
	}
	return int64(r), nil
}

// FromAny converts a raw evaluation result. Floats are rounded half-up.
// Other types are rejected.
func FromAny(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return None(), nil
	case Value:
		return t, nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return Int(int64(t)), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Value{}, fmt.Errorf("resource value %d overflows int64", t)
		}
		return Int(int64(t)), nil
	case float32:
		return fromFloat(float64(t))
	case float64:
		return fromFloat(t)
	case string:
		if t == "<TBD>" {
			return TBD(), nil
		}
		return String(t), nil
	case fmt.Stringer:
		if t.String() == "<TBD>" {
			return TBD(), nil
		}
	}
	return Value{}, fmt.Errorf("resources must be int, str or None, got %T (%v)", v, v)
}

func fromFloat(f float64) (Value, error) {
	n, err := RoundHalfUp(f)
	if err != nil {
		return Value{}, err
	}
	return Int(n), nil
}

// MBToMiB converts megabytes to mebibytes, rounding to the nearest integer.
// 10^6 / 2^20 reduces to 15625 / 16384; dividing before multiplying keeps
// every int64 input in range.
func MBToMiB(mb int64) int64 {
	neg := mb < 0
	u := uint64(mb)
	if neg {
		u = uint64(-(mb + 1)) + 1
	}
	q, r := u/16384, u%16384
	mib := int64(q*15625 + (r*15625+8192)/16384)
	if neg {
		return -mib
	}
	return mib
}

// Set is an insertion-ordered mapping of resource names to values.
type Set struct {
	names  []string
	values map[string]Value
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{values: map[string]Value{}}
}

// Put sets name, keeping its original position when already present.
func (s *Set) Put(name string, v Value) {
	if s.values == nil {
		s.values = map[string]Value{}
	}
	if _, ok := s.values[name]; !ok {
		s.names = append(s.names, name)
	}
	s.values[name] = v
}

// Get returns the value of name.
func (s *Set) Get(name string) (Value, bool) {
	if s == nil {
		return Value{}, false
	}
	v, ok := s.values[name]
	return v, ok
}

// Has reports whether name is set.
func (s *Set) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Names returns resource names in insertion order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.names)
}

// Len returns the number of resources.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Map returns the set as plain Go values.
func (s *Set) Map() map[string]any {
	out := make(map[string]any, s.Len())
	if s == nil {
		return out
	}
	for _, n := range s.names {
		out[n] = s.values[n].Any()
	}
	return out
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	c := NewSet()
	if s == nil {
		return c
	}
	for _, n := range s.names {
		c.Put(n, s.values[n])
	}
	return c
}

// MarshalJSON encodes the set as an object in insertion order.
func (s *Set) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, n := range s.Names() {
		if i > 0 {
			buf = append(buf, ',')
		}
		k, err := json.Marshal(n)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(s.values[n])
		if err != nil {
			return nil, err
		}
		buf = append(buf, k...)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}
	return append(buf, '}'), nil
}
