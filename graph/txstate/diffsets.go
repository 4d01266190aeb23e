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
Package txstate contains the in-memory change set of a transaction.

The change set records created and deleted entities, label changes,
property changes and relationship changes per node. Cursors never read the
change set while they produce results: each positioning takes frozen copies
(Snapshot) of the parts it needs.

Entity id sets are roaring bitmaps so frozen copies stay cheap.
*/
package txstate

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

/*
LongDiffSets records added and removed entity ids. An id is never in both sets.
*/
type LongDiffSets struct {
	added   *roaring64.Bitmap
	removed *roaring64.Bitmap
}

/*
NewLongDiffSets creates a new empty diff set.
*/
func NewLongDiffSets() *LongDiffSets {
	return &LongDiffSets{roaring64.New(), roaring64.New()}
}

/*
Add records an id as added. An id which was removed before is only taken
out of the removed set.
*/
func (ds *LongDiffSets) Add(id uint64) {
	if !ds.removed.CheckedRemove(id) {
		ds.added.Add(id)
	}
}

/*
Remove records an id as removed. An id which was added before is only taken
out of the added set.
*/
func (ds *LongDiffSets) Remove(id uint64) {
	if !ds.added.CheckedRemove(id) {
		ds.removed.Add(id)
	}
}

/*
RemoveFromAdded takes an id out of the added set without recording a removal.
Returns true if the id was in the added set.
*/
func (ds *LongDiffSets) RemoveFromAdded(id uint64) bool {
	return ds.added.CheckedRemove(id)
}

/*
IsAdded checks if an id was added.
*/
func (ds *LongDiffSets) IsAdded(id uint64) bool {
	return ds.added.Contains(id)
}

/*
IsRemoved checks if an id was removed.
*/
func (ds *LongDiffSets) IsRemoved(id uint64) bool {
	return ds.removed.Contains(id)
}

/*
IsEmpty returns true if nothing was added or removed.
*/
func (ds *LongDiffSets) IsEmpty() bool {
	return ds.added.IsEmpty() && ds.removed.IsEmpty()
}

/*
Delta returns the number of added ids minus the number of removed ids.
*/
func (ds *LongDiffSets) Delta() int64 {
	return int64(ds.added.GetCardinality()) - int64(ds.removed.GetCardinality())
}

/*
Added returns all added ids in ascending order.
*/
func (ds *LongDiffSets) Added() []uint64 {
	return ds.added.ToArray()
}

/*
Removed returns all removed ids in ascending order.
*/
func (ds *LongDiffSets) Removed() []uint64 {
	return ds.removed.ToArray()
}

/*
Snapshot returns a frozen copy of this diff set.
*/
func (ds *LongDiffSets) Snapshot() *LongDiffSets {
	return &LongDiffSets{ds.added.Clone(), ds.removed.Clone()}
}

/*
IntDiffSets records added and removed token ids.
*/
type IntDiffSets struct {
	added   *roaring.Bitmap
	removed *roaring.Bitmap
}

/*
NewIntDiffSets creates a new empty diff set.
*/
func NewIntDiffSets() *IntDiffSets {
	return &IntDiffSets{roaring.New(), roaring.New()}
}

/*
Add records a token as added.
*/
func (ds *IntDiffSets) Add(token int) {
	if !ds.removed.CheckedRemove(uint32(token)) {
		ds.added.Add(uint32(token))
	}
}

/*
Remove records a token as removed.
*/
func (ds *IntDiffSets) Remove(token int) {
	if !ds.added.CheckedRemove(uint32(token)) {
		ds.removed.Add(uint32(token))
	}
}

/*
IsAdded checks if a token was added.
*/
func (ds *IntDiffSets) IsAdded(token int) bool {
	return ds.added.Contains(uint32(token))
}

/*
IsRemoved checks if a token was removed.
*/
func (ds *IntDiffSets) IsRemoved(token int) bool {
	return ds.removed.Contains(uint32(token))
}

/*
IsEmpty returns true if nothing was added or removed.
*/
func (ds *IntDiffSets) IsEmpty() bool {
	return ds.added.IsEmpty() && ds.removed.IsEmpty()
}

/*
Added returns all added tokens in ascending order.
*/
func (ds *IntDiffSets) Added() []int {
	return toInts(ds.added.ToArray())
}

/*
Removed returns all removed tokens in ascending order.
*/
func (ds *IntDiffSets) Removed() []int {
	return toInts(ds.removed.ToArray())
}

/*
Apply applies this diff set to a sorted list of tokens. The result is sorted.
*/
func (ds *IntDiffSets) Apply(tokens []int) []int {
	res := roaring.New()

	for _, t := range tokens {
		res.Add(uint32(t))
	}

	res.Or(ds.added)
	res.AndNot(ds.removed)

	return toInts(res.ToArray())
}

func toInts(a []uint32) []int {
	res := make([]int, len(a))
	for i, v := range a {
		res[i] = int(v)
	}
	return res
}
