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
	"encoding/gob"
	"fmt"
	"math"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestValues(t *testing.T) {

	if res := fmt.Sprint(IntValue(5), " ", StringValue("a"), " ", BoolValue(true), " ",
		FloatValue(1.5), " ", NoValue); res != `5 "a" true 1.5 NO_VALUE` {
		t.Error("Unexpected result:", res)
		return
	}

	if c, ok := IntValue(1).Compare(FloatValue(1)); !ok || c != 0 || !FloatValue(30).Equals(IntValue(30)) {
		t.Error("Int and float values should be comparable numbers:", c, ok)
		return
	}

	if _, ok := IntValue(1).Compare(StringValue("1")); ok {
		t.Error("Numbers and strings should not be comparable")
		return
	}

	if IntValue(1).Group() != NumberType || FloatValue(1).Group() != NumberType ||
		FloatValue(1).Type() != FloatType || StringValue("").Group() != StringType {
		t.Error("Unexpected value groups")
		return
	}

	if IntValue(1).Equals(StringValue("1")) || !StringValue("x").Equals(StringValue("x")) {
		t.Error("Unexpected equality result")
		return
	}

	if !FloatValue(0).Equals(FloatValue(math.Copysign(0, -1))) || !IntValue(0).Equals(FloatValue(math.Copysign(0, -1))) {
		t.Error("Negative zero should equal zero")
		return
	}

	v, err := NewValue(int32(7))
	if err != nil || !v.Equals(IntValue(7)) {
		t.Error("Unexpected result:", v, err)
		return
	}

	if _, err := NewValue([]string{}); err == nil || err.Error() != "Unsupported property value type []string" {
		t.Error("Unexpected result:", err)
		return
	}

	if res := StringValue("foo").Interface(); res != "foo" {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestValueEncoding(t *testing.T) {

	// Values of different groups are ordered by group, numbers by their value

	ordered := []Value{BoolValue(false), BoolValue(true), FloatValue(-1e300),
		IntValue(math.MinInt64), IntValue(-5), FloatValue(-2.5), IntValue(0), FloatValue(0.1),
		IntValue(3), FloatValue(3.5), FloatValue(1 << 53), IntValue(1<<53 + 1),
		IntValue(math.MaxInt64), FloatValue(1 << 63), FloatValue(1e300), StringValue(""),
		StringValue("a"), StringValue("a\x00"), StringValue("a\x01"), StringValue("ab")}

	for i := 1; i < len(ordered); i++ {
		if bytes.Compare(ordered[i-1].Encode(nil), ordered[i].Encode(nil)) >= 0 {
			t.Error("Unexpected order:", ordered[i-1], ordered[i])
			return
		}
	}

	key := EncodeValues(ordered)

	res, err := DecodeValues(key)
	if err != nil || len(res) != len(ordered) {
		t.Error("Unexpected result:", res, err)
		return
	}

	for i, v := range res {
		if !v.Equals(ordered[i]) {
			t.Error("Unexpected result:", v, ordered[i])
			return
		}
	}

	// Equal numbers have equal keys

	if !bytes.Equal(IntValue(30).Encode(nil), FloatValue(30).Encode(nil)) ||
		!bytes.Equal(IntValue(math.MinInt64).Encode(nil), FloatValue(-(1 << 63)).Encode(nil)) {
		t.Error("Equal numbers should have equal keys")
		return
	}

	// Integral numbers decode as ints

	if res, _, err := DecodeValue(FloatValue(30).Encode(nil)); err != nil || res.Type() != IntType ||
		res.String() != "30" {
		t.Error("Unexpected result:", res, err)
		return
	}

	if res, _, err := DecodeValue(FloatValue(1 << 63).Encode(nil)); err != nil || res.Type() != FloatType {
		t.Error("Unexpected result:", res, err)
		return
	}

	if _, _, err := DecodeValue(nil); err == nil {
		t.Error("Empty keys should not decode")
		return
	}

	if _, _, err := DecodeValue([]byte{byte(StringType), 'a'}); err == nil ||
		err.Error() != "Cannot decode string value from key" {
		t.Error("Unexpected result:", err)
		return
	}
}

func TestValueGob(t *testing.T) {

	for _, v := range []Value{IntValue(30), FloatValue(30), FloatValue(-2.5),
		IntValue(math.MaxInt64), FloatValue(1e300), StringValue("a"), BoolValue(true), NoValue} {

		var buf bytes.Buffer
		var res Value

		if err := gob.NewEncoder(&buf).Encode(v); err != nil {
			t.Error(err)
			return
		}

		if err := gob.NewDecoder(&buf).Decode(&res); err != nil {
			t.Error(err)
			return
		}

		if res.Type() != v.Type() || !res.Equals(v) {
			t.Error("Unexpected result:", res, v)
			return
		}
	}

	var res Value

	if err := res.GobDecode(nil); err == nil {
		t.Error("Empty data should not decode")
		return
	}
}

func TestValueEncodingOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Int64().Draw(t, "a")
		b := rapid.Int64().Draw(t, "b")

		c, _ := IntValue(a).Compare(IntValue(b))
		if (a < b) != (c < 0) || (a == b) != (c == 0) {
			t.Fatalf("int order broken for %v and %v", a, b)
		}

		f := rapid.Float64Range(-1e12, 1e12).Draw(t, "f")
		g := rapid.Float64Range(-1e12, 1e12).Draw(t, "g")

		c, _ = FloatValue(f).Compare(FloatValue(g))
		if (f < g) != (c < 0) || (f == g) != (c == 0) {
			t.Fatalf("float order broken for %v and %v", f, g)
		}

		s := rapid.String().Draw(t, "s")
		r := rapid.String().Draw(t, "r")

		c, _ = IntValue(a/1e7).Compare(FloatValue(f))
		if (float64(a/1e7) < f) != (c < 0) || (float64(a/1e7) == f) != (c == 0) {
			t.Fatalf("number order broken for %v and %v", a/1e7, f)
		}

		if c, ok := IntValue(a / 1e7).Compare(FloatValue(float64(a / 1e7))); !ok || c != 0 {
			t.Fatalf("number equality broken for %v", a/1e7)
		}

		c, _ = StringValue(s).Compare(StringValue(r))
		if c != strings.Compare(s, r) {
			t.Fatalf("string order broken for %q and %q", s, r)
		}

		res, err := DecodeValues(EncodeValues([]Value{StringValue(s), IntValue(a)}))
		if err != nil || !res[0].Equals(StringValue(s)) || !res[1].Equals(IntValue(a)) {
			t.Fatalf("composite key broken for %q and %v: %v", s, a, err)
		}
	})
}

func TestPredicates(t *testing.T) {

	if err := Exact(1, NoValue).Validate(); err == nil {
		t.Error("Exact predicates need a value")
		return
	}

	if err := Range(1, NoValue, false, NoValue, false).Validate(); err == nil {
		t.Error("Range predicates need a bound")
		return
	}

	if err := Range(1, IntValue(1), false, FloatValue(2), false).Validate(); err != nil {
		t.Error("Unexpected result:", err)
		return
	}

	if err := Range(1, IntValue(1), false, StringValue("2"), false).Validate(); err == nil ||
		err.Error() != "Range predicate on key 1 mixes value groups number and string" {
		t.Error("Unexpected result:", err)
		return
	}

	r := Range(1, IntValue(1), true, IntValue(5), false)

	if res := r.String(); res != "1 in [1, 5)" {
		t.Error("Unexpected result:", res)
		return
	}

	if !r.Accepts(IntValue(1)) || r.Accepts(IntValue(5)) || !r.Accepts(FloatValue(2)) ||
		!r.Accepts(FloatValue(4.999)) || r.Accepts(FloatValue(5)) || r.Accepts(FloatValue(0.5)) ||
		r.Accepts(StringValue("2")) || r.Accepts(NoValue) {
		t.Error("Unexpected range result")
		return
	}

	open := Range(1, NoValue, false, StringValue("m"), true)

	if !open.Accepts(StringValue("a")) || !open.Accepts(StringValue("m")) || open.Accepts(StringValue("n")) {
		t.Error("Unexpected open range result")
		return
	}

	p := StringPrefix(2, "ab")

	if !p.Accepts(StringValue("abc")) || p.Accepts(StringValue("b")) || p.Accepts(IntValue(1)) {
		t.Error("Unexpected prefix result")
		return
	}

	if !Exists(3).Accepts(BoolValue(false)) || Exists(3).Accepts(NoValue) {
		t.Error("Unexpected exists result")
		return
	}

	if !AcceptsAll([]PropertyIndexQuery{Exact(1, IntValue(1)), p},
		[]Value{IntValue(1), StringValue("abx")}) {
		t.Error("Unexpected result")
		return
	}

	if AcceptsAll([]PropertyIndexQuery{Exact(1, IntValue(1)), p}, []Value{IntValue(1)}) {
		t.Error("Missing values should not be accepted")
		return
	}
}

func TestSeekRange(t *testing.T) {

	keyOf := func(values ...Value) []byte {
		return EncodeValues(values)
	}

	sr := NewSeekRange([]PropertyIndexQuery{Exact(1, StringValue("x")),
		Range(2, IntValue(10), true, IntValue(20), true)})

	for _, k := range [][]byte{keyOf(StringValue("x"), IntValue(10)),
		keyOf(StringValue("x"), IntValue(20)), keyOf(StringValue("x"), IntValue(15)),
		keyOf(StringValue("x"), FloatValue(15)), keyOf(StringValue("x"), FloatValue(20))} {

		if !sr.Contains(k) {
			t.Error("Key should be in range:", k)
			return
		}
	}

	for _, k := range [][]byte{keyOf(StringValue("x"), IntValue(9)),
		keyOf(StringValue("x"), IntValue(21)), keyOf(StringValue("y"), IntValue(15)),
		keyOf(StringValue("x"), FloatValue(9.5)), keyOf(StringValue("x"), FloatValue(20.5)),
		keyOf(StringValue("x"), StringValue("15"))} {

		if sr.Contains(k) {
			t.Error("Key should not be in range:", k)
			return
		}
	}

	sr = NewSeekRange([]PropertyIndexQuery{StringPrefix(1, "ab")})

	if !sr.Contains(keyOf(StringValue("ab"))) || !sr.Contains(keyOf(StringValue("abz"))) ||
		sr.Contains(keyOf(StringValue("aa"))) {
		t.Error("Unexpected prefix range:", sr)
		return
	}

	sr = NewSeekRange([]PropertyIndexQuery{Range(1, NoValue, false, IntValue(0), false)})

	if !sr.Contains(keyOf(IntValue(-100))) || sr.Contains(keyOf(BoolValue(true))) {
		t.Error("Unexpected open range:", sr)
		return
	}

	if res := PrefixSuccessor([]byte{1, 0xFF}); !bytes.Equal(res, []byte{2}) {
		t.Error("Unexpected result:", res)
		return
	}

	if res := PrefixSuccessor([]byte{0xFF}); res != nil {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestSelection(t *testing.T) {

	if res := DirectionOf(1, 1, 2); res != Outgoing {
		t.Error("Unexpected result:", res)
		return
	}

	if res := DirectionOf(2, 1, 2); res != Incoming {
		t.Error("Unexpected result:", res)
		return
	}

	if res := DirectionOf(1, 1, 1); res != Loop {
		t.Error("Unexpected result:", res)
		return
	}

	sel := SelectOutgoing(5, 2)

	if res := sel.String(); res != "Selection(OUTGOING [2 5])" {
		t.Error("Unexpected result:", res)
		return
	}

	if !sel.IncludesType(5) || sel.IncludesType(3) || sel.IncludesDirection(Loop) || sel.AllTypes() {
		t.Error("Unexpected selection result")
		return
	}

	if res := SelectAll().String(); res != "Selection(OUTGOING|INCOMING|LOOP *)" {
		t.Error("Unexpected result:", res)
		return
	}

	if !SelectAll().IncludesType(42) || SelectAll().Types() != nil {
		t.Error("Unexpected selection result")
		return
	}

	if res := Direction(7).String(); res != "DIRECTION(7)" {
		t.Error("Unexpected result:", res)
		return
	}
}
