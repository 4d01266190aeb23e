/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package graph

import (
	"devt.de/krotik/graphcursor/graph/graphstorage"
)

/*
overlay merges a committed store iteration with the results which were added
by a transaction. Store results are dropped if skip returns true for them.
Without a compare function all store results are returned before the added
results. With a compare function both sequences must be sorted (descending if
desc is set) and are merged into one sorted sequence.

The added results and the skip function must not change once the overlay
returns results.
*/
type overlay[T any] struct {
	store   graphstorage.Iterator[T] // Committed results (may be nil)
	added   []T                      // Added results
	skip    func(T) bool             // Filter for committed results
	compare func(a, b T) int         // Result order (nil for unordered)
	desc    bool                     // Flag for descending order
	head    T                        // Next committed result
	hasHead bool                     // Flag if head is valid
}

func newOverlay[T any](store graphstorage.Iterator[T], added []T, skip func(T) bool,
	compare func(a, b T) int, desc bool) *overlay[T] {

	return &overlay[T]{store: store, added: added, skip: skip, compare: compare, desc: desc}
}

/*
next returns the next merged result.
*/
func (o *overlay[T]) next() (T, bool, error) {
	var zero T

	if !o.hasHead && o.store != nil {
		if err := o.pull(); err != nil {
			return zero, false, err
		}
	}

	if o.hasHead {
		if len(o.added) == 0 || o.compare == nil {
			o.hasHead = false
			return o.head, true, nil
		}

		c := o.compare(o.head, o.added[0])
		if o.desc {
			c = -c
		}

		if c < 0 {
			o.hasHead = false
			return o.head, true, nil
		} else if c == 0 {

			// The same result in both sequences is only returned once

			o.hasHead = false
		}
	}

	if len(o.added) == 0 {
		return zero, false, nil
	}

	res := o.added[0]
	o.added = o.added[1:]

	return res, true, nil
}

/*
pull reads the next committed result which is not skipped.
*/
func (o *overlay[T]) pull() error {
	for v, ok := o.store.Next(); ok; v, ok = o.store.Next() {
		if o.skip == nil || !o.skip(v) {
			o.head, o.hasHead = v, true
			return nil
		}
	}

	err := o.store.Err()
	o.store = nil

	return err
}

/*
advanceWith returns an advance function which moves an overlay and hands
each result to a setter.
*/
func advanceWith[T any](o *overlay[T], set func(T)) func() (bool, error) {
	return func() (bool, error) {
		v, ok, err := o.next()
		if ok {
			set(v)
		}
		return ok, err
	}
}

/*
mappedIterator converts the results of a store iterator.
*/
type mappedIterator[S, T any] struct {
	it   graphstorage.Iterator[S]
	conv func(S) T
}

func mapIterator[S, T any](it graphstorage.Iterator[S], conv func(S) T) graphstorage.Iterator[T] {
	return &mappedIterator[S, T]{it, conv}
}

func (mi *mappedIterator[S, T]) Next() (T, bool) {
	v, ok := mi.it.Next()
	if !ok {
		var zero T
		return zero, false
	}
	return mi.conv(v), true
}

func (mi *mappedIterator[S, T]) Err() error {
	return mi.it.Err()
}

/*
sliceIterator iterates over a slice of results.
*/
type sliceIterator[T any] struct {
	items []T
}

func (si *sliceIterator[T]) Next() (T, bool) {
	if len(si.items) == 0 {
		var zero T
		return zero, false
	}
	v := si.items[0]
	si.items = si.items[1:]
	return v, true
}

func (si *sliceIterator[T]) Err() error {
	return nil
}

/*
reversed returns a reversed copy of a slice.
*/
func reversed[T any](s []T) []T {
	res := make([]T, len(s))
	for i, v := range s {
		res[len(s)-1-i] = v
	}
	return res
}

/*
compareIDs orders entity ids.
*/
func compareIDs(a, b uint64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}
