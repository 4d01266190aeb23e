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
	"sync/atomic"

	"devt.de/krotik/common/errorutil"
	"devt.de/krotik/common/sortutil"
	"devt.de/krotik/graphcursor/graph/data"
	"devt.de/krotik/graphcursor/graph/util"
)

/*
State is the change set of a single transaction. Changes must only be made by
the goroutine owning the transaction. The revision counter may be read by
other goroutines.
*/
type State struct {
	nodes         *LongDiffSets                 // Created and deleted nodes
	relationships *LongDiffSets                 // Created and deleted relationships
	nodeStates    map[uint64]*NodeState         // Changes per node
	relStates     map[uint64]*RelationshipState // Changes per relationship
	labelChanges  map[int]*LongDiffSets         // Nodes which gained or lost a label
	typeChanges   map[int]*LongDiffSets         // Relationships created or deleted per type
	revision      *atomic.Uint64                // Counter of all changes
}

/*
NewState creates a new empty change set.
*/
func NewState() *State {
	return &State{NewLongDiffSets(), NewLongDiffSets(), make(map[uint64]*NodeState),
		make(map[uint64]*RelationshipState), make(map[int]*LongDiffSets),
		make(map[int]*LongDiffSets), &atomic.Uint64{}}
}

/*
HasChanges returns true if any change was recorded.
*/
func (s *State) HasChanges() bool {
	return s.revision.Load() > 0
}

/*
Revision returns a counter which changes with every recorded change.
*/
func (s *State) Revision() uint64 {
	return s.revision.Load()
}

// Node changes
// ============

/*
NodeDoCreate records the creation of a node.
*/
func (s *State) NodeDoCreate(id uint64) {
	s.revision.Add(1)
	s.nodes.Add(id)
}

/*
NodeDoDelete records the deletion of a node. All other changes of the node
are discarded. A node created in this transaction disappears completely.
*/
func (s *State) NodeDoDelete(id uint64) {
	s.revision.Add(1)

	if ns, ok := s.nodeStates[id]; ok {
		for _, l := range ns.Labels.Added() {
			s.labelChanges[l].RemoveFromAdded(id)
		}
		delete(s.nodeStates, id)
	}

	s.nodes.Remove(id)
}

/*
NodeDoAddLabel records a label added to a node.
*/
func (s *State) NodeDoAddLabel(id uint64, label int) {
	s.revision.Add(1)
	s.nodeState(id).Labels.Add(label)
	s.labelDiff(label).Add(id)
}

/*
NodeDoRemoveLabel records a label removed from a node.
*/
func (s *State) NodeDoRemoveLabel(id uint64, label int) {
	s.revision.Add(1)
	s.nodeState(id).Labels.Remove(label)
	s.labelDiff(label).Remove(id)
}

/*
NodeDoSetProperty records a new property value of a node.
*/
func (s *State) NodeDoSetProperty(id uint64, key int, v data.Value) {
	s.revision.Add(1)
	s.nodeState(id).Props.Set(key, v)
}

/*
NodeDoRemoveProperty records the removal of a node property.
*/
func (s *State) NodeDoRemoveProperty(id uint64, key int) {
	s.revision.Add(1)
	s.nodeState(id).Props.Remove(key)
}

/*
NodeIsAddedInThisTx checks if a node was created in this transaction.
*/
func (s *State) NodeIsAddedInThisTx(id uint64) bool {
	return s.nodes.IsAdded(id)
}

/*
NodeIsDeletedInThisTx checks if a committed node was deleted in this transaction.
*/
func (s *State) NodeIsDeletedInThisTx(id uint64) bool {
	return s.nodes.IsRemoved(id)
}

/*
AddedAndRemovedNodes returns the live diff set of created and deleted nodes.
*/
func (s *State) AddedAndRemovedNodes() *LongDiffSets {
	return s.nodes
}

/*
NodesWithLabelChanged returns the live diff set of nodes which gained or lost
a given label (nil if there are none).
*/
func (s *State) NodesWithLabelChanged(label int) *LongDiffSets {
	return s.labelChanges[label]
}

/*
GetNodeState returns the changes of a node (nil if there are none).
*/
func (s *State) GetNodeState(id uint64) *NodeState {
	return s.nodeStates[id]
}

/*
ModifiedNodes returns the ids of all nodes with label, property or
relationship changes in ascending order.
*/
func (s *State) ModifiedNodes() []uint64 {
	res := make([]uint64, 0, len(s.nodeStates))
	for id := range s.nodeStates {
		res = append(res, id)
	}
	sortutil.UInt64s(res)
	return res
}

// Relationship changes
// ====================

/*
RelationshipDoCreate records the creation of a relationship.
*/
func (s *State) RelationshipDoCreate(id uint64, typ int, start, end uint64) {
	s.revision.Add(1)

	s.relationships.Add(id)
	s.relStates[id] = &RelationshipState{id, typ, start, end, newPropertyChanges()}
	s.typeDiff(typ).Add(id)

	dir := data.DirectionOf(start, start, end)
	s.nodeState(start).typed(typ).added[dir].Add(id)

	if dir != data.Loop {
		s.nodeState(end).typed(typ).added[data.Incoming].Add(id)
	}
}

/*
RelationshipDoDelete records the deletion of a relationship.
*/
func (s *State) RelationshipDoDelete(id uint64, typ int, start, end uint64) {
	s.revision.Add(1)

	dir := data.DirectionOf(start, start, end)

	if s.relationships.RemoveFromAdded(id) {
		rs, ok := s.relStates[id]

		errorutil.AssertTrue(ok && rs.Type == typ && rs.Start == start && rs.End == end,
			util.ConsistencyMessage("created relationship %v has no matching state", id))

		delete(s.relStates, id)
		s.typeDiff(typ).RemoveFromAdded(id)

		s.nodeState(start).typed(typ).added[dir].Remove(id)
		if dir != data.Loop {
			s.nodeState(end).typed(typ).added[data.Incoming].Remove(id)
		}

		return
	}

	delete(s.relStates, id)
	s.relationships.Remove(id)
	s.typeDiff(typ).Remove(id)

	s.nodeState(start).typed(typ).removed[dir].Add(id)
	if dir != data.Loop {
		s.nodeState(end).typed(typ).removed[data.Incoming].Add(id)
	}
}

/*
RelationshipDoSetProperty records a new property value of a relationship.
*/
func (s *State) RelationshipDoSetProperty(id uint64, typ int, start, end uint64, key int, v data.Value) {
	s.revision.Add(1)
	s.relState(id, typ, start, end).Props.Set(key, v)
}

/*
RelationshipDoRemoveProperty records the removal of a relationship property.
*/
func (s *State) RelationshipDoRemoveProperty(id uint64, typ int, start, end uint64, key int) {
	s.revision.Add(1)
	s.relState(id, typ, start, end).Props.Remove(key)
}

/*
RelationshipIsAddedInThisTx checks if a relationship was created in this transaction.
*/
func (s *State) RelationshipIsAddedInThisTx(id uint64) bool {
	return s.relationships.IsAdded(id)
}

/*
RelationshipIsDeletedInThisTx checks if a committed relationship was deleted
in this transaction.
*/
func (s *State) RelationshipIsDeletedInThisTx(id uint64) bool {
	return s.relationships.IsRemoved(id)
}

/*
AddedAndRemovedRelationships returns the live diff set of created and deleted
relationships.
*/
func (s *State) AddedAndRemovedRelationships() *LongDiffSets {
	return s.relationships
}

/*
RelationshipsWithTypeChanged returns the live diff set of relationships of a
given type which were created or deleted (nil if there are none).
*/
func (s *State) RelationshipsWithTypeChanged(typ int) *LongDiffSets {
	return s.typeChanges[typ]
}

/*
GetRelationshipState returns the changes of a relationship (nil if there are none).
*/
func (s *State) GetRelationshipState(id uint64) *RelationshipState {
	return s.relStates[id]
}

/*
ModifiedRelationships returns the ids of all created relationships and all
relationships with property changes in ascending order.
*/
func (s *State) ModifiedRelationships() []uint64 {
	res := make([]uint64, 0, len(s.relStates))
	for id := range s.relStates {
		res = append(res, id)
	}
	sortutil.UInt64s(res)
	return res
}

// Helper functions
// ================

func (s *State) nodeState(id uint64) *NodeState {
	ns, ok := s.nodeStates[id]
	if !ok {
		ns = newNodeState(id)
		s.nodeStates[id] = ns
	}
	return ns
}

func (s *State) relState(id uint64, typ int, start, end uint64) *RelationshipState {
	rs, ok := s.relStates[id]
	if !ok {
		rs = &RelationshipState{id, typ, start, end, newPropertyChanges()}
		s.relStates[id] = rs
	}
	return rs
}

func (s *State) labelDiff(label int) *LongDiffSets {
	ds, ok := s.labelChanges[label]
	if !ok {
		ds = NewLongDiffSets()
		s.labelChanges[label] = ds
	}
	return ds
}

func (s *State) typeDiff(typ int) *LongDiffSets {
	ds, ok := s.typeChanges[typ]
	if !ok {
		ds = NewLongDiffSets()
		s.typeChanges[typ] = ds
	}
	return ds
}
