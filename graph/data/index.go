/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package data

import (
	"bytes"
	"fmt"
	"strings"
)

/*
EntityType is the class of a graph entity.
*/
type EntityType int

/*
Entity classes
*/
const (
	NodeEntity EntityType = iota
	RelationshipEntity
)

func (et EntityType) String() string {
	if et == NodeEntity {
		return "node"
	}
	return "relationship"
}

/*
IndexOrder is the requested result order of an index scan or seek.
*/
type IndexOrder int

/*
Index result orders
*/
const (
	Unordered IndexOrder = iota
	Ascending
	Descending
)

func (o IndexOrder) String() string {
	switch o {
	case Ascending:
		return "ASCENDING"
	case Descending:
		return "DESCENDING"
	}
	return "UNORDERED"
}

/*
IndexDescriptor describes a value index.
*/
type IndexDescriptor struct {
	ID           int        // Unique id of the index
	Name         string     // Unique name of the index
	Entity       EntityType // Indexed entity class
	Token        int        // Label or relationship type of indexed entities
	PropertyKeys []int      // Indexed property keys (in key order)
}

/*
IsComposite returns true if the index covers more than one property key.
*/
func (d IndexDescriptor) IsComposite() bool {
	return len(d.PropertyKeys) > 1
}

func (d IndexDescriptor) String() string {
	return fmt.Sprintf("Index %v (%v) on %v:%v %v", d.ID, d.Name, d.Entity, d.Token, d.PropertyKeys)
}

/*
IndexQueryConstraints are the constraints of an index scan or seek.
*/
type IndexQueryConstraints struct {
	Order       IndexOrder // Requested result order
	NeedsValues bool       // Flag if the indexed values should be returned
}

/*
Unconstrained returns constraints without order and values.
*/
func Unconstrained() IndexQueryConstraints {
	return IndexQueryConstraints{Unordered, false}
}

/*
QueryType is the type of an index predicate.
*/
type QueryType int

/*
Index predicate types
*/
const (
	ExactQuery QueryType = iota
	RangeQuery
	ExistsQuery
	StringPrefixQuery
)

/*
PropertyIndexQuery is a predicate over one indexed property.
*/
type PropertyIndexQuery struct {
	Type          QueryType
	PropertyKey   int
	Value         Value  // Value for exact queries
	From          Value  // Lower bound of range queries (NoValue for none)
	FromInclusive bool   // Flag if the lower bound is included
	To            Value  // Upper bound of range queries (NoValue for none)
	ToInclusive   bool   // Flag if the upper bound is included
	Prefix        string // Prefix of string prefix queries
}

/*
Exact creates an equality predicate.
*/
func Exact(key int, v Value) PropertyIndexQuery {
	return PropertyIndexQuery{Type: ExactQuery, PropertyKey: key, Value: v}
}

/*
Range creates a range predicate. At least one bound must be given and both
bounds must belong to the same value group.
*/
func Range(key int, from Value, fromInclusive bool, to Value, toInclusive bool) PropertyIndexQuery {
	return PropertyIndexQuery{Type: RangeQuery, PropertyKey: key, From: from,
		FromInclusive: fromInclusive, To: to, ToInclusive: toInclusive}
}

/*
Exists creates a predicate which accepts any value.
*/
func Exists(key int) PropertyIndexQuery {
	return PropertyIndexQuery{Type: ExistsQuery, PropertyKey: key}
}

/*
StringPrefix creates a predicate which accepts strings with a given prefix.
*/
func StringPrefix(key int, prefix string) PropertyIndexQuery {
	return PropertyIndexQuery{Type: StringPrefixQuery, PropertyKey: key, Prefix: prefix}
}

/*
Validate checks that this predicate is well formed.
*/
func (q PropertyIndexQuery) Validate() error {
	switch q.Type {
	case ExactQuery:
		if q.Value.IsNoValue() {
			return fmt.Errorf("Exact predicate on key %v requires a value", q.PropertyKey)
		}
	case RangeQuery:
		if q.From.IsNoValue() && q.To.IsNoValue() {
			return fmt.Errorf("Range predicate on key %v requires at least one bound", q.PropertyKey)
		}
		if !q.From.IsNoValue() && !q.To.IsNoValue() && q.From.Group() != q.To.Group() {
			return fmt.Errorf("Range predicate on key %v mixes value groups %v and %v",
				q.PropertyKey, q.From.Group(), q.To.Group())
		}
	case ExistsQuery, StringPrefixQuery:
	default:
		return fmt.Errorf("Unknown predicate type %v", q.Type)
	}
	return nil
}

/*
rangeGroup returns the value group of a range predicate.
*/
func (q PropertyIndexQuery) rangeGroup() ValueType {
	if !q.From.IsNoValue() {
		return q.From.Group()
	}
	return q.To.Group()
}

/*
Accepts checks if a given value satisfies this predicate.
*/
func (q PropertyIndexQuery) Accepts(v Value) bool {

	if v.IsNoValue() {
		return false
	}

	switch q.Type {
	case ExactQuery:
		return q.Value.Equals(v)

	case ExistsQuery:
		return true

	case StringPrefixQuery:
		return v.Type() == StringType && strings.HasPrefix(v.s, q.Prefix)

	case RangeQuery:
		if v.Group() != q.rangeGroup() {
			return false
		}

		if !q.From.IsNoValue() {
			c, _ := v.Compare(q.From)
			if c < 0 || (c == 0 && !q.FromInclusive) {
				return false
			}
		}

		if !q.To.IsNoValue() {
			c, _ := v.Compare(q.To)
			if c > 0 || (c == 0 && !q.ToInclusive) {
				return false
			}
		}

		return true
	}

	return false
}

func (q PropertyIndexQuery) String() string {
	switch q.Type {
	case ExactQuery:
		return fmt.Sprintf("%v = %v", q.PropertyKey, q.Value)
	case RangeQuery:
		lb, ub := "(", ")"
		if q.FromInclusive {
			lb = "["
		}
		if q.ToInclusive {
			ub = "]"
		}
		return fmt.Sprintf("%v in %v%v, %v%v", q.PropertyKey, lb, q.From, q.To, ub)
	case StringPrefixQuery:
		return fmt.Sprintf("%v starts with %q", q.PropertyKey, q.Prefix)
	}
	return fmt.Sprintf("%v exists", q.PropertyKey)
}

/*
AcceptsAll checks if a list of values satisfies a list of predicates. The
values must be in predicate order.
*/
func AcceptsAll(queries []PropertyIndexQuery, values []Value) bool {
	for i, q := range queries {
		if i >= len(values) || !q.Accepts(values[i]) {
			return false
		}
	}
	return true
}

/*
SeekRange is the key range of an index seek. All keys which satisfy a list of
predicates start with Prefix and lie in [Lower, Upper). A nil Upper means the
end of the Prefix range.
*/
type SeekRange struct {
	Prefix []byte
	Lower  []byte
	Upper  []byte
}

/*
NewSeekRange calculates the key range for a list of predicates. The leading
exact predicates form the prefix; the first non exact predicate narrows the
range further. All following predicates must be checked on the found entries.
*/
func NewSeekRange(queries []PropertyIndexQuery) SeekRange {
	var prefix []byte

	i := 0
	for ; i < len(queries) && queries[i].Type == ExactQuery; i++ {
		prefix = queries[i].Value.Encode(prefix)
	}

	sr := SeekRange{Prefix: prefix, Lower: prefix, Upper: PrefixSuccessor(prefix)}

	if i == len(queries) {
		return sr
	}

	q := queries[i]
	concat := func(b ...byte) []byte {
		return append(append([]byte(nil), prefix...), b...)
	}

	switch q.Type {
	case RangeQuery:
		group := byte(q.rangeGroup())

		if !q.From.IsNoValue() {
			sr.Lower = q.From.Encode(concat())
		} else {
			sr.Lower = concat(group)
		}

		if !q.To.IsNoValue() {
			sr.Upper = PrefixSuccessor(q.To.Encode(concat()))
		} else {
			sr.Upper = concat(group + 1)
		}

	case StringPrefixQuery:
		sr.Lower = AppendEscapedString(concat(byte(StringType)), q.Prefix)
		sr.Upper = concat(byte(StringType) + 1)
	}

	return sr
}

/*
Contains checks if a key lies within this range.
*/
func (sr SeekRange) Contains(key []byte) bool {
	return bytes.HasPrefix(key, sr.Prefix) && bytes.Compare(key, sr.Lower) >= 0 &&
		(sr.Upper == nil || bytes.Compare(key, sr.Upper) < 0)
}

/*
PrefixSuccessor returns the smallest key which is greater than all keys with
a given prefix. Returns nil if there is no such key.
*/
func PrefixSuccessor(prefix []byte) []byte {
	res := append([]byte(nil), prefix...)

	for i := len(res) - 1; i >= 0; i-- {
		if res[i] < 0xFF {
			res[i]++
			return res[:i+1]
		}
	}

	return nil
}
