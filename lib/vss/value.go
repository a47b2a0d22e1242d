// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vss

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// DataType is the declared type of a signal. The zero value is
// invalid so an unset descriptor type is caught at registration.
type DataType uint8

const (
	TypeUnspecified DataType = iota
	TypeString
	TypeBool
	TypeUint8
	TypeUint32
	TypeInt32
	TypeFloat
	TypeDouble
)

var dataTypeNames = map[DataType]string{
	TypeString: "string",
	TypeBool:   "bool",
	TypeUint8:  "uint8",
	TypeUint32: "uint32",
	TypeInt32:  "int32",
	TypeFloat:  "float",
	TypeDouble: "double",
}

func (t DataType) String() string {
	if name, ok := dataTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unspecified(%d)", uint8(t))
}

// Valid reports whether t is a concrete type.
func (t DataType) Valid() bool {
	_, ok := dataTypeNames[t]
	return ok
}

// MarshalText encodes the type by name.
func (t DataType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a type name.
func (t *DataType) UnmarshalText(text []byte) error {
	for candidate, name := range dataTypeNames {
		if name == string(text) {
			*t = candidate
			return nil
		}
	}
	return fmt.Errorf("vss: unknown data type %q", text)
}

// ChangeType is the notification policy consumers apply to a signal.
type ChangeType uint8

const (
	// OnChange signals notify subscribers only when the value changes.
	OnChange ChangeType = iota
	// Continuous signals notify on every update.
	Continuous
	// Static signals are set once.
	Static
)

var changeTypeNames = map[ChangeType]string{
	OnChange:   "on_change",
	Continuous: "continuous",
	Static:     "static",
}

func (c ChangeType) String() string {
	if name, ok := changeTypeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(c))
}

// MarshalText encodes the change type by name.
func (c ChangeType) MarshalText() ([]byte, error) {
	name, ok := changeTypeNames[c]
	if !ok {
		return nil, fmt.Errorf("vss: cannot encode change type %d", uint8(c))
	}
	return []byte(name), nil
}

// UnmarshalText parses a change type name.
func (c *ChangeType) UnmarshalText(text []byte) error {
	for candidate, name := range changeTypeNames {
		if name == string(text) {
			*c = candidate
			return nil
		}
	}
	return fmt.Errorf("vss: unknown change type %q", text)
}

// ErrTypeMismatch is returned by Convert when a Go value cannot be
// represented as the requested DataType.
var ErrTypeMismatch = errors.New("vss: type mismatch")

// Value is one typed signal value. Exactly one payload field is
// meaningful, selected by Type; NotAvailable marks the "no value yet"
// sentinel every signal starts with.
type Value struct {
	Type         DataType `cbor:"type"`
	NotAvailable bool     `cbor:"na,omitempty"`
	Text         string   `cbor:"s,omitempty"`
	Uint         uint64   `cbor:"u,omitempty"`
	Int          int64    `cbor:"i,omitempty"`
	Float        float64  `cbor:"f,omitempty"`
	Bool         bool     `cbor:"b,omitempty"`
}

// NotAvailable returns the sentinel value of type t.
func NotAvailable(t DataType) Value { return Value{Type: t, NotAvailable: true} }

func StringValue(v string) Value  { return Value{Type: TypeString, Text: v} }
func BoolValue(v bool) Value      { return Value{Type: TypeBool, Bool: v} }
func Uint8Value(v uint8) Value    { return Value{Type: TypeUint8, Uint: uint64(v)} }
func Uint32Value(v uint32) Value  { return Value{Type: TypeUint32, Uint: uint64(v)} }
func Int32Value(v int32) Value    { return Value{Type: TypeInt32, Int: int64(v)} }
func FloatValue(v float32) Value  { return Value{Type: TypeFloat, Float: float64(v)} }
func DoubleValue(v float64) Value { return Value{Type: TypeDouble, Float: v} }

// String renders the value for logs.
func (v Value) String() string {
	if v.NotAvailable {
		return "N/A"
	}
	switch v.Type {
	case TypeString:
		return strconv.Quote(v.Text)
	case TypeBool:
		return strconv.FormatBool(v.Bool)
	case TypeUint8, TypeUint32:
		return strconv.FormatUint(v.Uint, 10)
	case TypeInt32:
		return strconv.FormatInt(v.Int, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 32)
	case TypeDouble:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	default:
		return "invalid"
	}
}

// Convert builds a Value of type target from a Go scalar. Numeric
// conversions are accepted only when lossless for integer targets;
// floating-point targets accept either float width.
func Convert(raw any, target DataType) (Value, error) {
	mismatch := func() (Value, error) {
		return Value{}, fmt.Errorf("%w: %T cannot be stored as %v", ErrTypeMismatch, raw, target)
	}

	switch target {
	case TypeString:
		if v, ok := raw.(string); ok {
			return StringValue(v), nil
		}
	case TypeBool:
		if v, ok := raw.(bool); ok {
			return BoolValue(v), nil
		}
	case TypeFloat:
		switch v := raw.(type) {
		case float32:
			return FloatValue(v), nil
		case float64:
			return FloatValue(float32(v)), nil
		}
	case TypeDouble:
		switch v := raw.(type) {
		case float32:
			return DoubleValue(float64(v)), nil
		case float64:
			return DoubleValue(v), nil
		}
	case TypeUint8, TypeUint32:
		limit := uint64(math.MaxUint8)
		if target == TypeUint32 {
			limit = math.MaxUint32
		}
		unsigned, ok := asUnsigned(raw)
		if ok && unsigned <= limit {
			return Value{Type: target, Uint: unsigned}, nil
		}
	case TypeInt32:
		signed, ok := asSigned(raw)
		if ok && signed >= math.MinInt32 && signed <= math.MaxInt32 {
			return Int32Value(int32(signed)), nil
		}
	}
	return mismatch()
}

func asUnsigned(raw any) (uint64, bool) {
	switch v := raw.(type) {
	case uint8:
		return uint64(v), true
	case uint16:
		return uint64(v), true
	case uint32:
		return uint64(v), true
	case uint64:
		return v, true
	case uint:
		return uint64(v), true
	}
	return 0, false
}

func asSigned(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}
