/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package data contains the data types of the graph kernel.

# Value

Property values are immutable and have a type (bool, int, float or string).
Each type belongs to a value group: int and float values form the number
group and compare by their numeric value, so IntValue(12) equals
FloatValue(12.0). Values of different groups are never comparable. Each value
has an order preserving binary key encoding which is used by value indexes:
the byte-wise order of two encoded keys is the same as the order of the
values and equal numbers have equal keys. Encoded keys are prefix free so
several values can be concatenated into a composite key.

# Selection

A selection describes which relationships of a node should be visited: a set
of relationship types (or all types) and a set of directions. A direction is
one of Outgoing, Incoming or Loop.

# IndexDescriptor

Describes a value index over one token (label or relationship type) and one
or more property keys.
*/
package data

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

/*
ValueType is the type or the value group of a value
*/
type ValueType byte

/*
Known value types. The group constants are also the tags of the key encoding.
NumberType is the group of IntType and FloatType.
*/
const (
	NoValueType ValueType = 0x00
	BoolType    ValueType = 0x10
	NumberType  ValueType = 0x20
	IntType     ValueType = 0x21
	FloatType   ValueType = 0x22
	StringType  ValueType = 0x40
)

func (vt ValueType) String() string {
	switch vt {
	case BoolType:
		return "bool"
	case NumberType:
		return "number"
	case IntType:
		return "int"
	case FloatType:
		return "float"
	case StringType:
		return "string"
	}
	return "novalue"
}

/*
Group returns the value group of a value type.
*/
func (vt ValueType) Group() ValueType {
	if vt == IntType || vt == FloatType {
		return NumberType
	}
	return vt
}

/*
Value is a property value.
*/
type Value struct {
	vtype ValueType
	i     int64
	f     float64
	s     string
}

/*
NoValue represents the absence of a value.
*/
var NoValue = Value{}

/*
BoolValue creates a new bool value.
*/
func BoolValue(b bool) Value {
	if b {
		return Value{vtype: BoolType, i: 1}
	}
	return Value{vtype: BoolType}
}

/*
IntValue creates a new int value.
*/
func IntValue(i int64) Value {
	return Value{vtype: IntType, i: i}
}

/*
FloatValue creates a new float value. Negative zero is stored as zero.
*/
func FloatValue(f float64) Value {
	if f == 0 {
		f = 0
	}
	return Value{vtype: FloatType, f: f}
}

/*
StringValue creates a new string value.
*/
func StringValue(s string) Value {
	return Value{vtype: StringType, s: s}
}

/*
NewValue converts a Go value into a property value.
*/
func NewValue(v interface{}) (Value, error) {
	switch t := v.(type) {
	case Value:
		return t, nil
	case bool:
		return BoolValue(t), nil
	case int:
		return IntValue(int64(t)), nil
	case int32:
		return IntValue(int64(t)), nil
	case int64:
		return IntValue(t), nil
	case uint32:
		return IntValue(int64(t)), nil
	case float32:
		return FloatValue(float64(t)), nil
	case float64:
		return FloatValue(t), nil
	case string:
		return StringValue(t), nil
	}

	return NoValue, fmt.Errorf("Unsupported property value type %T", v)
}

/*
Type returns the type of this value.
*/
func (v Value) Type() ValueType {
	return v.vtype
}

/*
Group returns the value group of this value.
*/
func (v Value) Group() ValueType {
	return v.vtype.Group()
}

/*
IsNoValue returns true if this value represents the absence of a value.
*/
func (v Value) IsNoValue() bool {
	return v.vtype == NoValueType
}

/*
Interface returns this value as a Go value.
*/
func (v Value) Interface() interface{} {
	switch v.vtype {
	case BoolType:
		return v.i == 1
	case IntType:
		return v.i
	case FloatType:
		return v.f
	case StringType:
		return v.s
	}
	return nil
}

/*
String returns a string representation of this value.
*/
func (v Value) String() string {
	if v.vtype == StringType {
		return fmt.Sprintf("%q", v.s)
	}
	if v.vtype == NoValueType {
		return "NO_VALUE"
	}
	return fmt.Sprint(v.Interface())
}

/*
Equals checks if two values are equal. Numbers are equal if they have the
same numeric value.
*/
func (v Value) Equals(o Value) bool {
	c, ok := v.Compare(o)
	return ok && c == 0
}

/*
Compare compares two values. Returns false as second result if the values
belong to different value groups.
*/
func (v Value) Compare(o Value) (int, bool) {
	if v.Group() != o.Group() {
		return 0, false
	}

	return bytes.Compare(v.Encode(nil), o.Encode(nil)), true
}

/*
Encode appends the order preserving key encoding of this value to a given buffer.
*/
func (v Value) Encode(buf []byte) []byte {
	var num [8]byte

	buf = append(buf, byte(v.Group()))

	switch v.vtype {
	case BoolType:
		buf = append(buf, byte(v.i))

	case IntType, FloatType:

		// Numbers are ordered by their float64 approximation, then by the
		// exact integer value and finally by the distance beyond the int64
		// range

		f, exact, beyond := v.numberKey()

		bits := math.Float64bits(f)
		if bits&(1<<63) != 0 {
			bits = ^bits
		} else {
			bits |= 1 << 63
		}
		binary.BigEndian.PutUint64(num[:], bits)
		buf = append(buf, num[:]...)

		binary.BigEndian.PutUint64(num[:], uint64(exact)^(1<<63))
		buf = append(buf, num[:]...)

		buf = append(buf, beyond)

	case StringType:
		buf = AppendEscapedString(buf, v.s)
		buf = append(buf, 0x00, 0x01)
	}

	return buf
}

/*
twoTo63 is the smallest float which is above the int64 range.
*/
const twoTo63 = float64(1 << 63)

/*
numberKey returns the key parts of a number. Two numbers are equal if all
parts are equal. An int can only share its float64 approximation with
integral numbers, so the exact part orders them.
*/
func (v Value) numberKey() (float64, int64, byte) {
	if v.vtype == IntType {
		return float64(v.i), v.i, 0
	}

	f := v.f

	if f == 0 {
		f = 0 // Negative zero
	}

	switch {
	case f >= twoTo63:
		return f, math.MaxInt64, 1
	case f < -twoTo63:
		return f, math.MinInt64, 0
	case f == math.Trunc(f):
		return f, int64(f), 0
	}

	return f, 0, 0
}

/*
AppendEscapedString appends a string to a buffer escaping all zero bytes. The
result has no terminator.
*/
func AppendEscapedString(buf []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		if s[i] == 0x00 {
			buf = append(buf, 0x00, 0xFF)
		} else {
			buf = append(buf, s[i])
		}
	}
	return buf
}

/*
DecodeValue decodes a single value from a given key. Returns the value and the
remaining bytes. Integral numbers within the int64 range are decoded as int
values, all other numbers as float values.
*/
func DecodeValue(key []byte) (Value, []byte, error) {

	if len(key) == 0 {
		return NoValue, nil, fmt.Errorf("Cannot decode value from empty key")
	}

	vtype, rest := ValueType(key[0]), key[1:]

	switch vtype {
	case NoValueType:
		return NoValue, rest, nil

	case BoolType:
		if len(rest) < 1 {
			break
		}
		return BoolValue(rest[0] == 1), rest[1:], nil

	case NumberType:
		if len(rest) < 17 {
			break
		}

		bits := binary.BigEndian.Uint64(rest)
		if bits&(1<<63) != 0 {
			bits &^= 1 << 63
		} else {
			bits = ^bits
		}

		f := math.Float64frombits(bits)
		exact := int64(binary.BigEndian.Uint64(rest[8:]) ^ (1 << 63))

		if rest[16] == 0 && f == math.Trunc(f) && float64(exact) == f {
			return IntValue(exact), rest[17:], nil
		}

		return FloatValue(f), rest[17:], nil

	case StringType:
		var s []byte

		for i := 0; i < len(rest)-1; i++ {
			if rest[i] != 0x00 {
				s = append(s, rest[i])
				continue
			}

			if rest[i+1] == 0x01 {
				return StringValue(string(s)), rest[i+2:], nil
			}

			s = append(s, 0x00)
			i++
		}
	}

	return NoValue, nil, fmt.Errorf("Cannot decode %v value from key", vtype)
}

/*
EncodeValues encodes a list of values into a composite key.
*/
func EncodeValues(values []Value) []byte {
	var buf []byte
	for _, v := range values {
		buf = v.Encode(buf)
	}
	return buf
}

/*
DecodeValues decodes a composite key into a list of values.
*/
func DecodeValues(key []byte) ([]Value, error) {
	var res []Value

	for len(key) > 0 {
		v, rest, err := DecodeValue(key)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
		key = rest
	}

	return res, nil
}

/*
GobEncode encodes this value for gob serialization. The key encoding is
prefixed with the value type.
*/
func (v Value) GobEncode() ([]byte, error) {
	return v.Encode([]byte{byte(v.vtype)}), nil
}

/*
GobDecode decodes a gob serialized value.
*/
func (v *Value) GobDecode(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("Cannot decode value from empty data")
	}

	res, _, err := DecodeValue(b[1:])
	if err != nil {
		return err
	}

	switch ValueType(b[0]) {
	case IntType:
		res = IntValue(res.asInt())
	case FloatType:
		res = FloatValue(res.asFloat())
	}

	*v = res

	return nil
}

/*
asInt returns the integer value of a number.
*/
func (v Value) asInt() int64 {
	if v.vtype == FloatType {
		return int64(v.f)
	}
	return v.i
}

/*
asFloat returns the float value of a number.
*/
func (v Value) asFloat() float64 {
	if v.vtype == IntType {
		return float64(v.i)
	}
	return v.f
}
