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
	"fmt"
	"strings"
	"sync"
	"testing"

	"devt.de/krotik/graphcursor/graph/data"
	"pgregory.net/rapid"
)

func TestLongDiffSets(t *testing.T) {
	ds := NewLongDiffSets()

	if !ds.IsEmpty() {
		t.Error("New diff set should be empty")
		return
	}

	ds.Add(5)
	ds.Add(3)
	ds.Remove(10)

	if res := fmt.Sprint(ds.Added(), ds.Removed(), ds.Delta()); res != "[3 5] [10] 1" {
		t.Error("Unexpected result:", res)
		return
	}

	snap := ds.Snapshot()

	// Removing an added id and adding a removed id cancel out

	ds.Remove(5)
	ds.Add(10)

	if res := fmt.Sprint(ds.Added(), ds.Removed(), ds.Delta()); res != "[3] [] 1" {
		t.Error("Unexpected result:", res)
		return
	}

	if res := fmt.Sprint(snap.Added(), snap.Removed()); res != "[3 5] [10]" {
		t.Error("Snapshot should not change:", res)
		return
	}

	if !ds.RemoveFromAdded(3) || ds.RemoveFromAdded(3) || ds.IsRemoved(3) || !ds.IsEmpty() {
		t.Error("Unexpected result:", ds.Added(), ds.Removed())
		return
	}
}

func TestLongDiffSetsDisjoint(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ds := NewLongDiffSets()
		model := make(map[uint64]int) // 1 added, -1 removed, 0 unchanged

		ops := rapid.SliceOf(rapid.IntRange(-20, 20)).Draw(t, "ops")

		for _, op := range ops {
			if op >= 0 {
				ds.Add(uint64(op))
				if model[uint64(op)] < 1 {
					model[uint64(op)]++
				}
			} else {
				ds.Remove(uint64(-op))
				if model[uint64(-op)] > -1 {
					model[uint64(-op)]--
				}
			}
		}

		var delta int64

		for id, c := range model {
			delta += int64(c)

			if ds.IsAdded(id) && ds.IsRemoved(id) {
				t.Fatalf("id %v is added and removed", id)
			}

			if (c == 1) != ds.IsAdded(id) || (c == -1) != ds.IsRemoved(id) {
				t.Fatalf("unexpected state of id %v: %v", id, c)
			}
		}

		if ds.Delta() != delta {
			t.Fatalf("unexpected delta %v (expected %v)", ds.Delta(), delta)
		}
	})
}

func TestIntDiffSets(t *testing.T) {
	ds := NewIntDiffSets()

	ds.Add(4)
	ds.Remove(1)
	ds.Add(7)
	ds.Remove(7)

	if res := fmt.Sprint(ds.Added(), ds.Removed()); res != "[4] [1]" {
		t.Error("Unexpected result:", res)
		return
	}

	if res := ds.Apply([]int{1, 2, 3}); fmt.Sprint(res) != "[2 3 4]" {
		t.Error("Unexpected result:", res)
		return
	}

	if !ds.IsAdded(4) || !ds.IsRemoved(1) || ds.IsEmpty() {
		t.Error("Unexpected state")
		return
	}
}

func TestPropertyChanges(t *testing.T) {
	var nilChanges *PropertyChanges

	if v, ok := nilChanges.Get(1); ok || !v.IsNoValue() || !nilChanges.IsEmpty() {
		t.Error("Unexpected result:", v, ok)
		return
	}

	if res := nilChanges.Apply(map[int]data.Value{1: data.IntValue(1)}); len(res) != 1 {
		t.Error("Unexpected result:", res)
		return
	}

	pc := newPropertyChanges()

	pc.Set(1, data.IntValue(5))
	pc.Remove(2)
	pc.Set(3, data.StringValue("x"))
	pc.Remove(3)

	if v, ok := pc.Get(2); !ok || !v.IsNoValue() {
		t.Error("Unexpected result:", v, ok)
		return
	}

	if res := pc.TouchedKeys(); fmt.Sprint(res) != "[1 2 3]" {
		t.Error("Unexpected result:", res)
		return
	}

	committed := map[int]data.Value{1: data.IntValue(1), 2: data.IntValue(2), 4: data.IntValue(4)}
	res := pc.Apply(committed)

	if len(res) != 2 || !res[1].Equals(data.IntValue(5)) || !res[4].Equals(data.IntValue(4)) {
		t.Error("Unexpected result:", res)
		return
	}

	if len(committed) != 3 || !committed[1].Equals(data.IntValue(1)) {
		t.Error("Committed properties should not change:", committed)
		return
	}
}

func TestStateRevisionConcurrentReads(t *testing.T) {
	s := NewState()

	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			last := uint64(0)

			for last < 100 {
				rev := s.Revision()

				if rev < last || (rev > 0 && !s.HasChanges()) {
					t.Error("Unexpected revision:", rev, last)
					return
				}

				last = rev
			}
		}()
	}

	for i := uint64(0); i < 100; i++ {
		s.NodeDoCreate(i)
	}

	wg.Wait()

	if res := s.Revision(); res != 100 {
		t.Error("Unexpected revision:", res)
		return
	}
}

func TestStateNodes(t *testing.T) {
	s := NewState()

	if s.HasChanges() || s.GetNodeState(1) != nil {
		t.Error("Unexpected state")
		return
	}

	s.NodeDoCreate(10)
	s.NodeDoAddLabel(10, 1)
	s.NodeDoAddLabel(2, 1)
	s.NodeDoRemoveLabel(3, 1)
	s.NodeDoSetProperty(2, 5, data.BoolValue(true))
	s.NodeDoDelete(4)

	if !s.HasChanges() || s.Revision() != 6 {
		t.Error("Unexpected revision:", s.Revision())
		return
	}

	if !s.NodeIsAddedInThisTx(10) || !s.NodeIsDeletedInThisTx(4) || s.NodeIsDeletedInThisTx(10) {
		t.Error("Unexpected node state")
		return
	}

	labels := s.NodesWithLabelChanged(1)

	if res := fmt.Sprint(labels.Added(), labels.Removed()); res != "[2 10] [3]" {
		t.Error("Unexpected result:", res)
		return
	}

	if res := s.ModifiedNodes(); fmt.Sprint(res) != "[2 3 10]" {
		t.Error("Unexpected result:", res)
		return
	}

	// Deleting a created node removes all its traces

	s.NodeDoDelete(10)

	if res := fmt.Sprint(labels.Added(), s.AddedAndRemovedNodes().Added(),
		s.AddedAndRemovedNodes().Removed()); res != "[2] [] [4]" {
		t.Error("Unexpected result:", res)
		return
	}

	if s.GetNodeState(10) != nil || s.NodesWithLabelChanged(7) != nil {
		t.Error("Unexpected node state")
		return
	}
}

func TestStateRelationships(t *testing.T) {
	s := NewState()

	s.RelationshipDoCreate(1, 7, 10, 11)
	s.RelationshipDoCreate(2, 7, 10, 10)
	s.RelationshipDoDelete(3, 7, 12, 10)
	s.RelationshipDoSetProperty(4, 8, 10, 12, 1, data.IntValue(1))

	ns := s.GetNodeState(10)
	tr := ns.Relationships(7)

	if res := fmt.Sprint(tr.Added(data.Outgoing), tr.Added(data.Loop), tr.Delta(data.Incoming)); res != "[1] [2] -1" {
		t.Error("Unexpected result:", res)
		return
	}

	if !tr.IsRemoved(data.Incoming, 3) || tr.IsRemoved(data.Outgoing, 3) {
		t.Error("Unexpected removal state")
		return
	}

	if res := s.GetNodeState(11).Relationships(7).Added(data.Incoming); fmt.Sprint(res) != "[1]" {
		t.Error("Unexpected result:", res)
		return
	}

	// Property changes do not count as relationship changes of a node

	if res := ns.RelationshipTypes(); fmt.Sprint(res) != "[7]" {
		t.Error("Unexpected result:", res)
		return
	}

	snap := ns.RelationshipSnapshot()

	s.RelationshipDoDelete(1, 7, 10, 11)
	s.RelationshipDoDelete(2, 7, 10, 10)

	if res := fmt.Sprint(tr.Added(data.Outgoing), tr.Added(data.Loop)); res != "[] []" {
		t.Error("Unexpected result:", res)
		return
	}

	if res := fmt.Sprint(snap[7].Added(data.Outgoing), snap[7].Added(data.Loop)); res != "[1] [2]" {
		t.Error("Snapshot should not change:", res)
		return
	}

	types := s.RelationshipsWithTypeChanged(7)

	if res := fmt.Sprint(types.Added(), types.Removed()); res != "[] [3]" {
		t.Error("Unexpected result:", res)
		return
	}

	if res := s.ModifiedRelationships(); fmt.Sprint(res) != "[4]" {
		t.Error("Unexpected result:", res)
		return
	}

	if !s.RelationshipIsDeletedInThisTx(3) || s.RelationshipIsAddedInThisTx(1) {
		t.Error("Unexpected relationship state")
		return
	}

	var nilState *NodeState

	if nilState.Relationships(1) != nil || nilState.RelationshipTypes() != nil ||
		len(nilState.RelationshipSnapshot()) != 0 {
		t.Error("Unexpected nil state result")
		return
	}
}

func TestStateConsistencyDefect(t *testing.T) {
	s := NewState()

	s.RelationshipDoCreate(1, 7, 10, 11)

	defer func() {
		r := recover()
		if r == nil || !strings.Contains(fmt.Sprint(r), "Consistency defect") {
			t.Error("Unexpected result:", r)
		}
	}()

	// Deleting a created relationship with the wrong end nodes is impossible

	s.RelationshipDoDelete(1, 7, 10, 12)
}
