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
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	ecalutil "devt.de/krotik/ecal/util"
	"devt.de/krotik/graphcursor/graph/data"
	"devt.de/krotik/graphcursor/graph/graphstorage"
	"devt.de/krotik/graphcursor/graph/util"
)

func TestTransactionLifecycle(t *testing.T) {
	k := newTestKernel()
	createTestGraph(k)

	tx := k.BeginTransaction(nil)

	if !tx.IsOpen() || tx.HasChanges() {
		t.Error("Unexpected transaction state:", tx)
		return
	}

	id, err := tx.NodeCreate()
	if err != nil || id != 4 || !tx.HasChanges() {
		t.Error("Unexpected result:", id, err)
		return
	}

	// Changes are not visible to other transactions before the commit

	tx2 := k.BeginTransaction(nil)

	if ok, _ := tx2.NodeExists(4); ok {
		t.Error("Uncommitted node should not be visible")
		return
	}

	if ok, _ := tx.NodeExists(4); !ok {
		t.Error("Created node should be visible in its transaction")
		return
	}

	if err := tx.Commit(); err != nil {
		t.Error(err)
		return
	}

	if tx.IsOpen() {
		t.Error("Transaction should be closed")
		return
	}

	tx2.Rollback()

	tx3 := k.BeginTransaction(nil)

	if ok, _ := tx3.NodeExists(4); !ok {
		t.Error("Committed node should be visible")
		return
	}

	// Rolled back changes are never written and ids are not reused

	id, _ = tx3.NodeCreate()

	if err := tx3.Rollback(); err != nil || id != 5 {
		t.Error("Unexpected result:", id, err)
		return
	}

	tx4 := k.BeginTransaction(nil)
	defer tx4.Rollback()

	if ok, _ := tx4.NodeExists(5); ok {
		t.Error("Rolled back node should not be visible")
		return
	}

	if id, _ := tx4.NodeCreate(); id != 6 {
		t.Error("Unexpected id:", id)
		return
	}

	if res, _ := tx4.NodesGetCount(); res != 6 {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestTransactionClosed(t *testing.T) {
	k := newTestKernel()
	createTestGraph(k)

	tx := k.BeginTransaction(nil)

	if err := tx.Rollback(); err != nil {
		t.Error(err)
		return
	}

	if err := tx.Commit(); !errors.Is(err, util.ErrTransactionClosed) {
		t.Error("Unexpected result:", err)
		return
	}

	if err := tx.Rollback(); !errors.Is(err, util.ErrTransactionClosed) {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := tx.NodeCreate(); !errors.Is(err, util.ErrTransactionClosed) {
		t.Error("Unexpected result:", err)
		return
	}

	if id, err := tx.NodeCreateWithLabels(labelPerson, labelCity); id != 0 || !errors.Is(err, util.ErrTransactionClosed) {
		t.Error("Unexpected result:", id, err)
		return
	}

	if tx.HasChanges() || tx.state.GetNodeState(0) != nil || tx.state.NodesWithLabelChanged(labelPerson) != nil {
		t.Error("Failed creation should not record changes")
		return
	}

	if _, err := tx.LabelGetOrCreateForName("Country"); !errors.Is(err, util.ErrTransactionClosed) {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := tx.NodeExists(0); !errors.Is(err, util.ErrTransactionClosed) {
		t.Error("Unexpected result:", err)
		return
	}

	nc := tx.Cursors().AllocateNodeCursor(nil)

	if err := tx.AllNodesScan(nc); !errors.Is(err, util.ErrTransactionClosed) {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := tx.AllNodesScanPartitioned(4); !errors.Is(err, util.ErrTransactionClosed) {
		t.Error("Unexpected result:", err)
		return
	}

	if err := ParallelScan[*NodeCursor](context.Background(), tx, nil, 1, 1, nil, nil); !errors.Is(err, util.ErrTransactionClosed) {
		t.Error("Unexpected result:", err)
		return
	}

	if err := tx.Commit(); !util.IsUsageError(err) || util.IsStoreIOError(err) {
		t.Error("Closed transaction errors should be usage errors")
		return
	}
}

func TestTransactionWriteErrors(t *testing.T) {
	k := newTestKernel()
	createTestGraph(k)

	tx := k.BeginTransaction(nil)
	defer tx.Rollback()

	if _, err := tx.LabelGetOrCreateForName(" "); !errors.Is(err, util.ErrInvalidTokenName) {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := tx.NodeCreateWithLabels(labelCity, 99); !errors.Is(err, util.ErrUnknownToken) {
		t.Error("Unexpected result:", err)
		return
	}

	if tx.HasChanges() {
		t.Error("Failed writes should not change the transaction")
		return
	}

	if _, err := tx.NodeSetProperty(0, 99, data.IntValue(1)); !errors.Is(err, util.ErrUnknownToken) {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := tx.RelationshipCreate(0, 99, 1); !errors.Is(err, util.ErrUnknownToken) {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := tx.NodeAddLabel(99, labelCity); !errors.Is(err, util.ErrEntityNotFound) {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := tx.RelationshipCreate(0, typeKnows, 99); !errors.Is(err, util.ErrEntityNotFound) {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := tx.RelationshipSetProperty(99, keyAge, data.IntValue(1)); !errors.Is(err, util.ErrEntityNotFound) {
		t.Error("Unexpected result:", err)
		return
	}

	if ok, err := tx.NodeDelete(99); ok || err != nil {
		t.Error("Unexpected result:", ok, err)
		return
	}

	if ok, err := tx.RelationshipDelete(99); ok || err != nil {
		t.Error("Unexpected result:", ok, err)
		return
	}

	if ok, err := tx.NodeDelete(1); ok || !errors.Is(err, util.ErrNodeHasRelationships) {
		t.Error("Unexpected result:", ok, err)
		return
	}

	if tx.HasChanges() {
		t.Error("Failed writes should not change the transaction")
		return
	}
}

func TestTransactionWrites(t *testing.T) {
	k := newTestKernel()
	createTestGraph(k)

	tx := k.BeginTransaction(nil)

	// Labels

	if ok, err := tx.NodeAddLabel(0, labelPerson); ok || err != nil {
		t.Error("Unexpected result:", ok, err)
		return
	}

	if ok, err := tx.NodeAddLabel(0, labelCity); !ok || err != nil {
		t.Error("Unexpected result:", ok, err)
		return
	}

	if ok, err := tx.NodeRemoveLabel(3, labelPerson); ok || err != nil {
		t.Error("Unexpected result:", ok, err)
		return
	}

	if ok, err := tx.NodeRemoveLabel(1, labelPerson); !ok || err != nil {
		t.Error("Unexpected result:", ok, err)
		return
	}

	// Properties

	old, err := tx.NodeSetProperty(0, keyAge, data.IntValue(31))
	if err != nil || !old.Equals(data.IntValue(30)) {
		t.Error("Unexpected result:", old, err)
		return
	}

	if old, _ = tx.NodeSetProperty(0, keyAge, data.IntValue(32)); !old.Equals(data.IntValue(31)) {
		t.Error("Unexpected result:", old)
		return
	}

	if old, _ = tx.NodeRemoveProperty(1, keyAge); !old.Equals(data.IntValue(25)) {
		t.Error("Unexpected result:", old)
		return
	}

	if old, _ = tx.NodeRemoveProperty(1, keyAge); !old.IsNoValue() {
		t.Error("Unexpected result:", old)
		return
	}

	if old, _ = tx.NodeSetProperty(2, keyName, data.NoValue); !old.Equals(data.StringValue("carol")) {
		t.Error("Unexpected result:", old)
		return
	}

	if old, _ = tx.RelationshipSetProperty(0, keyAge, data.IntValue(2021)); !old.Equals(data.IntValue(2020)) {
		t.Error("Unexpected result:", old)
		return
	}

	if old, _ = tx.RelationshipRemoveProperty(1, keyAge); !old.IsNoValue() {
		t.Error("Unexpected result:", old)
		return
	}

	// Relationships

	r4, err := tx.RelationshipCreate(3, typeLives, 2)
	if err != nil || r4 != 4 {
		t.Error("Unexpected result:", r4, err)
		return
	}

	if _, err := tx.RelationshipSetProperty(r4, keyName, data.StringValue("new")); err != nil {
		t.Error(err)
		return
	}

	if ok, _ := tx.RelationshipDelete(1); !ok || !tx.RelationshipDeletedInTransaction(1) {
		t.Error("Relationship should be deleted")
		return
	}

	if ok, _ := tx.RelationshipExists(1); ok {
		t.Error("Deleted relationship should not be visible")
		return
	}

	// Detach delete removes all relationships of a node

	if res, err := tx.NodeDetachDelete(1); res != 1 || err != nil {
		t.Error("Unexpected result:", res, err)
		return
	}

	if !tx.NodeDeletedInTransaction(1) || tx.NodeDeletedInTransaction(2) {
		t.Error("Unexpected deletion state")
		return
	}

	if _, err := tx.NodeSetProperty(1, keyName, data.StringValue("x")); !errors.Is(err, util.ErrEntityNotFound) {
		t.Error("Unexpected result:", err)
		return
	}

	if err := tx.Commit(); err != nil {
		t.Error(err)
		return
	}

	// Check the committed state

	r, _ := k.Storage().Snapshot()

	n0, _ := r.Node(0)
	n1, _ := r.Node(1)
	n2, _ := r.Node(2)

	if res := fmt.Sprint(n0.Labels, n0.Props[keyAge], n1, len(n2.Props)); res != "[0 1] 32 <nil> 1" {
		t.Error("Unexpected result:", res)
		return
	}

	rel0, _ := r.Relationship(0)
	rel4, _ := r.Relationship(r4)

	if res := fmt.Sprint(rel0, rel4.Props[keyName], rel4.Start, rel4.End); res != `<nil> "new" 3 2` {
		t.Error("Unexpected result:", res)
		return
	}

	if res, _ := r.Count(data.RelationshipEntity, graphstorage.AnyToken); res != 3 {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestTransactionConflicts(t *testing.T) {
	k := newTestKernel()
	createTestGraph(k)

	logger := ecalutil.NewMemoryLogger(10)
	k.SetLogger(logger)

	txA := k.BeginTransaction(nil)
	txB := k.BeginTransaction(nil)

	txA.NodeCreate()

	if _, err := txA.NodeSetProperty(3, keyName, data.StringValue("paris")); err != nil {
		t.Error(err)
		return
	}

	if res, err := txB.NodeDetachDelete(3); res != 1 || err != nil {
		t.Error("Unexpected result:", res, err)
		return
	}

	if err := txB.Commit(); err != nil {
		t.Error(err)
		return
	}

	err := txA.Commit()

	if !errors.Is(err, util.ErrConflict) || !util.IsStoreIOError(err) {
		t.Error("Unexpected result:", err)
		return
	}

	if !strings.Contains(logger.String(), "failed to commit") {
		t.Error("Unexpected log output:", logger.String())
		return
	}

	// Nothing of the failed transaction was written

	tx := k.BeginTransaction(nil)

	if res, _ := tx.NodesGetCount(); res != 3 {
		t.Error("Unexpected result:", res)
		return
	}

	// Relationships to nodes which were deleted meanwhile conflict as well

	txA = k.BeginTransaction(nil)
	txA.RelationshipCreate(0, typeKnows, 2)

	tx.NodeDetachDelete(2)
	tx.Commit()

	if err := txA.Commit(); !errors.Is(err, util.ErrConflict) {
		t.Error("Unexpected result:", err)
		return
	}

	tx = k.BeginTransaction(nil)
	defer tx.Rollback()

	if res, _ := tx.RelationshipsGetCount(); res != 2 {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestTransactionSnapshotIsolation(t *testing.T) {
	k := newTestKernel()
	createTestGraph(k)

	txA := k.BeginTransaction(nil)
	txB := k.BeginTransaction(nil)

	if res, _ := txA.Degree(1, data.SelectAll()); res != 2 {
		t.Error("Unexpected result:", res)
		return
	}

	txA.RelationshipDelete(0)
	txA.RelationshipDelete(1)

	// Another transaction commits the same deletes and more

	txB.RelationshipDelete(0)
	txB.RelationshipDelete(1)
	txB.NodeDetachDelete(3)

	if err := txB.Commit(); err != nil {
		t.Error(err)
		return
	}

	// The reads of the first transaction still see the state at its start

	deg, err := txA.Degree(1, data.SelectAll())
	capped, _ := txA.DegreeWithMax(1, 1, data.SelectAll())

	if res := fmt.Sprint(deg, " ", err, " ", capped); res != "0 <nil> 0" {
		t.Error("Unexpected result:", res)
		return
	}

	nodes, _ := txA.NodesGetCount()
	rels, _ := txA.RelationshipsGetCount()
	lives, _ := txA.CountsForRelationship(typeLives)
	persons, _ := txA.CountsForNode(labelPerson)

	if res := fmt.Sprint(nodes, rels, lives, persons); res != "4 2 1 3" {
		t.Error("Unexpected result:", res)
		return
	}

	if ok, _ := txA.NodeExists(3); !ok {
		t.Error("Node should be visible in the older transaction")
		return
	}

	tc := txA.Cursors().AllocateRelationshipTraversalCursor(nil)

	if err := txA.Relationships(0, data.SelectAll(), tc); err != nil {
		t.Error(err)
		return
	}

	if res := collectTraversal(tc); res != "[3:LOOP:0 2:OUTGOING:3]" {
		t.Error("Unexpected result:", res)
		return
	}

	tc.Close()

	// Committing deletes of relationships which are already gone conflicts

	if err := txA.Commit(); !errors.Is(err, util.ErrConflict) {
		t.Error("Unexpected result:", err)
		return
	}

	tx := k.BeginTransaction(nil)
	defer tx.Rollback()

	deg, _ = tx.Degree(0, data.SelectAll())
	nodes, _ = tx.NodesGetCount()

	if res := fmt.Sprint(deg, nodes); res != "1 3" {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestTransactionCursorLeaks(t *testing.T) {
	k := newTestKernel()
	createTestGraph(k)

	logger := ecalutil.NewMemoryLogger(10)
	k.SetLogger(logger)

	tx := k.BeginTransaction(nil)

	nc := tx.Cursors().AllocateNodeCursor(nil)
	pc := tx.NewExecutionContext().AllocatePropertyCursor(nil)
	closed := tx.Cursors().AllocateRelationshipScanCursor(nil)
	closed.Close()

	tx.NodeCreate()

	err := tx.Commit()

	if !errors.Is(err, util.ErrCursorLeak) || !util.IsUsageError(err) {
		t.Error("Unexpected result:", err)
		return
	}

	if !nc.IsClosed() || !pc.IsClosed() {
		t.Error("Leaked cursors should be closed")
		return
	}

	if res := logger.String(); !strings.Contains(res, "leaked 2 cursor(s)") ||
		!strings.Contains(res, "NodeCursor") || !strings.Contains(res, "PropertyCursor") {
		t.Error("Unexpected log output:", res)
		return
	}

	// The changes were still written

	tx = k.BeginTransaction(nil)

	if ok, _ := tx.NodeExists(4); !ok {
		t.Error("Committed node should be visible")
		return
	}

	// Leaks are only logged if the check is disabled

	k.SetLeakCheck(false)
	logger.Reset()

	tx.Cursors().AllocateNodeLabelIndexCursor(nil)

	if err := tx.Rollback(); err != nil {
		t.Error(err)
		return
	}

	if res := logger.String(); !strings.Contains(res, "leaked 1 cursor(s)") {
		t.Error("Unexpected log output:", res)
		return
	}
}

func TestTransactionForeignCursor(t *testing.T) {
	k := newTestKernel()
	createTestGraph(k)

	tx1 := k.BeginTransaction(nil)
	tx2 := k.BeginTransaction(nil)
	defer tx2.Rollback()

	nc := tx1.Cursors().AllocateNodeCursor(nil)

	if err := tx2.AllNodesScan(nc); !errors.Is(err, util.ErrInvalidArgument) {
		t.Error("Unexpected result:", err)
		return
	}

	if nc.State() != Unpositioned {
		t.Error("Unexpected state:", nc.State())
		return
	}

	nc.Close()

	if err := tx1.Rollback(); err != nil {
		t.Error(err)
		return
	}
}

func TestTransactionConsistencyDefect(t *testing.T) {
	k := newTestKernel()
	createTestGraph(k)

	tx := k.BeginTransaction(nil)

	rc := tx.Cursors().AllocateRelationshipScanCursor(nil)
	defer rc.Close()

	// A created relationship without state is impossible

	tx.state.AddedAndRemovedRelationships().Add(99)

	defer func() {
		r := recover()
		if r == nil || !strings.Contains(fmt.Sprint(r), util.ConsistencyDefect) {
			t.Error("Unexpected result:", r)
		}
	}()

	tx.AllRelationshipsScan(rc)
}

/*
faultyStorage is a store whose readers fail after a number of results.
*/
type faultyStorage struct {
	graphstorage.Storage
	failAfter    int
	failSnapshot bool
}

func (fs *faultyStorage) Snapshot() (graphstorage.Reader, error) {
	if fs.failSnapshot {
		return nil, errors.New("Disk is on fire")
	}

	r, err := fs.Storage.Snapshot()

	return &faultyReader{r, fs.failAfter}, err
}

type faultyReader struct {
	graphstorage.Reader
	failAfter int
}

func (fr *faultyReader) Nodes(desc bool) (graphstorage.Iterator[*graphstorage.NodeRecord], error) {
	it, err := fr.Reader.Nodes(desc)
	return &faultyIterator[*graphstorage.NodeRecord]{it, fr.failAfter, nil}, err
}

type faultyIterator[T any] struct {
	it   graphstorage.Iterator[T]
	left int
	err  error
}

func (fi *faultyIterator[T]) Next() (T, bool) {
	if fi.left == 0 {
		var zero T
		fi.err = errors.New("Disk is on fire")
		return zero, false
	}

	fi.left--

	return fi.it.Next()
}

func (fi *faultyIterator[T]) Err() error {
	if fi.err != nil {
		return fi.err
	}
	return fi.it.Err()
}

func TestTransactionStoreErrors(t *testing.T) {
	mgs, _ := graphstorage.NewMemoryGraphStorage("faulty")
	fs := &faultyStorage{mgs, 2, false}

	k := NewKernel(fs)
	createTestGraph(k)

	tx := k.BeginTransaction(nil)

	nc := tx.Cursors().AllocateNodeCursor(nil)

	if err := tx.AllNodesScan(nc); err != nil {
		t.Error(err)
		return
	}

	if res := collect(nc, (*NodeCursor).NodeReference); !strings.Contains(res, "Disk is on fire") {
		t.Error("Unexpected result:", res)
		return
	}

	// A failed cursor is closed but keeps its error

	if !nc.IsClosed() || !errors.Is(nc.Err(), util.ErrReading) || !util.IsStoreIOError(nc.Err()) {
		t.Error("Unexpected cursor state:", nc, nc.Err())
		return
	}

	nc2 := tx.Cursors().AllocateNodeCursor(nil)
	nc2.Close()

	if nc2 == nc {
		t.Error("Failed cursors should not be handed out again")
		return
	}

	if err := tx.Rollback(); err != nil {
		t.Error(err)
		return
	}

	// Snapshot errors fail every read of the transaction

	fs.failSnapshot = true

	tx = k.BeginTransaction(nil)

	fs.failSnapshot = false

	nc = tx.Cursors().AllocateNodeCursor(nil)

	if err := tx.AllNodesScan(nc); !errors.Is(err, util.ErrReading) || !nc.IsClosed() {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := tx.NodesGetCount(); err == nil {
		t.Error("Count should fail")
		return
	}

	if err := tx.Rollback(); err != nil {
		t.Error(err)
		return
	}
}
