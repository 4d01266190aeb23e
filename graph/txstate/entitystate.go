/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package txstate

import (
	"sort"

	"devt.de/krotik/graphcursor/graph/data"
	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

/*
PropertyChanges records changed and removed properties of one entity.
*/
type PropertyChanges struct {
	changed map[int]data.Value // Added or changed properties
	removed map[int]bool       // Removed properties
}

func newPropertyChanges() *PropertyChanges {
	return &PropertyChanges{make(map[int]data.Value), make(map[int]bool)}
}

/*
Set records a new value for a property.
*/
func (pc *PropertyChanges) Set(key int, v data.Value) {
	delete(pc.removed, key)
	pc.changed[key] = v
}

/*
Remove records the removal of a property.
*/
func (pc *PropertyChanges) Remove(key int) {
	delete(pc.changed, key)
	pc.removed[key] = true
}

/*
Get returns the changed value of a property. The second result is false if
the property was not touched. A removed property returns NoValue and true.
*/
func (pc *PropertyChanges) Get(key int) (data.Value, bool) {
	if pc == nil {
		return data.NoValue, false
	}
	if v, ok := pc.changed[key]; ok {
		return v, true
	}
	return data.NoValue, pc.removed[key]
}

/*
IsTouched checks if a property was changed or removed.
*/
func (pc *PropertyChanges) IsTouched(key int) bool {
	_, ok := pc.Get(key)
	return ok
}

/*
IsEmpty returns true if no property was touched.
*/
func (pc *PropertyChanges) IsEmpty() bool {
	return pc == nil || (len(pc.changed) == 0 && len(pc.removed) == 0)
}

/*
Apply applies the changes to a map of committed properties. The given map
is not modified.
*/
func (pc *PropertyChanges) Apply(props map[int]data.Value) map[int]data.Value {
	res := make(map[int]data.Value, len(props))

	for k, v := range props {
		if pc == nil || !pc.removed[k] {
			res[k] = v
		}
	}

	if pc != nil {
		for k, v := range pc.changed {
			res[k] = v
		}
	}

	return res
}

/*
TouchedKeys returns all changed or removed keys in ascending order.
*/
func (pc *PropertyChanges) TouchedKeys() []int {
	var res []int

	if pc != nil {
		for k := range pc.changed {
			res = append(res, k)
		}
		for k := range pc.removed {
			res = append(res, k)
		}
	}

	sort.Ints(res)

	return res
}

/*
TypedRelationships records relationship changes of one node for one
relationship type, split by direction.
*/
type TypedRelationships struct {
	added   [3]*roaring64.Bitmap
	removed [3]*roaring64.Bitmap
}

func newTypedRelationships() *TypedRelationships {
	tr := &TypedRelationships{}
	for _, d := range data.Directions {
		tr.added[d] = roaring64.New()
		tr.removed[d] = roaring64.New()
	}
	return tr
}

/*
Delta returns the degree change for a given direction.
*/
func (tr *TypedRelationships) Delta(dir data.Direction) int64 {
	return int64(tr.added[dir].GetCardinality()) - int64(tr.removed[dir].GetCardinality())
}

/*
Added returns the ids of relationships created in a given direction in
ascending order.
*/
func (tr *TypedRelationships) Added(dir data.Direction) []uint64 {
	return tr.added[dir].ToArray()
}

/*
IsRemoved checks if a relationship of a given direction was deleted.
*/
func (tr *TypedRelationships) IsRemoved(dir data.Direction, id uint64) bool {
	return tr.removed[dir].Contains(id)
}

/*
IsEmpty returns true if there are no changes for any direction.
*/
func (tr *TypedRelationships) IsEmpty() bool {
	for _, d := range data.Directions {
		if !tr.added[d].IsEmpty() || !tr.removed[d].IsEmpty() {
			return false
		}
	}
	return true
}

/*
snapshot returns a frozen copy.
*/
func (tr *TypedRelationships) snapshot() *TypedRelationships {
	res := &TypedRelationships{}
	for _, d := range data.Directions {
		res.added[d] = tr.added[d].Clone()
		res.removed[d] = tr.removed[d].Clone()
	}
	return res
}

/*
NodeState records the changes of a single node.
*/
type NodeState struct {
	ID     uint64
	Labels *IntDiffSets
	Props  *PropertyChanges
	rels   map[int]*TypedRelationships
}

func newNodeState(id uint64) *NodeState {
	return &NodeState{id, NewIntDiffSets(), newPropertyChanges(),
		make(map[int]*TypedRelationships)}
}

/*
typed returns the relationship changes of a type, creating them if needed.
*/
func (ns *NodeState) typed(typ int) *TypedRelationships {
	tr, ok := ns.rels[typ]
	if !ok {
		tr = newTypedRelationships()
		ns.rels[typ] = tr
	}
	return tr
}

/*
RelationshipTypes returns all relationship types with changes in ascending order.
*/
func (ns *NodeState) RelationshipTypes() []int {
	var res []int

	if ns != nil {
		for t, tr := range ns.rels {
			if !tr.IsEmpty() {
				res = append(res, t)
			}
		}
	}

	sort.Ints(res)

	return res
}

/*
Relationships returns the relationship changes of a given type or nil.
*/
func (ns *NodeState) Relationships(typ int) *TypedRelationships {
	if ns == nil {
		return nil
	}
	return ns.rels[typ]
}

/*
RelationshipSnapshot returns frozen copies of the relationship changes of all
types.
*/
func (ns *NodeState) RelationshipSnapshot() map[int]*TypedRelationships {
	res := make(map[int]*TypedRelationships)

	if ns != nil {
		for t, tr := range ns.rels {
			if !tr.IsEmpty() {
				res[t] = tr.snapshot()
			}
		}
	}

	return res
}

/*
RelationshipState records a relationship created in a transaction or the
property changes of a committed relationship.
*/
type RelationshipState struct {
	ID    uint64
	Type  int
	Start uint64
	End   uint64
	Props *PropertyChanges
}
