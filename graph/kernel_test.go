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
	"flag"
	"fmt"
	"os"
	"strings"
	"testing"

	"devt.de/krotik/common/errorutil"
	"devt.de/krotik/common/fileutil"
	ecalutil "devt.de/krotik/ecal/util"
	"devt.de/krotik/graphcursor/graph/data"
	"devt.de/krotik/graphcursor/graph/graphstorage"
	"devt.de/krotik/graphcursor/graph/util"
)

const KernelTestDBDir1 = "kerneltest1"
const KernelTestDBDir2 = "kerneltest2"

var DBDIRS = []string{KernelTestDBDir1, KernelTestDBDir2}

// Main function for all tests in this package

func TestMain(m *testing.M) {
	flag.Parse()

	for _, dbdir := range DBDIRS {
		if res, _ := fileutil.PathExists(dbdir); res {
			if err := os.RemoveAll(dbdir); err != nil {
				fmt.Print("Could not remove test directory:", err.Error())
			}
		}
	}

	// Run the tests

	res := m.Run()

	// Teardown

	for _, dbdir := range DBDIRS {
		if res, _ := fileutil.PathExists(dbdir); res {
			if err := os.RemoveAll(dbdir); err != nil {
				fmt.Print("Could not remove test directory:", err.Error())
			}
		}
	}

	os.Exit(res)
}

/*
Token ids of the test graph
*/
const (
	labelPerson = 0
	labelCity   = 1
	typeKnows   = 0
	typeLives   = 1
	keyName     = 0
	keyAge      = 1
)

/*
newTestKernel creates a kernel on a new memory storage.
*/
func newTestKernel() *Kernel {
	mgs, err := graphstorage.NewMemoryGraphStorage("testgraph")
	errorutil.AssertOk(err)
	return NewKernel(mgs)
}

/*
createTestGraph commits the test graph:

	(0:Person alice 30) -KNOWS-> (1:Person bob 25) -KNOWS-> (2:Person carol 35)
	(0) -LIVES_IN-> (3:City berlin)
	(0) -KNOWS-> (0)

The first KNOWS relationship has the property age = 2020.
*/
func createTestGraph(k *Kernel) {
	tx := k.BeginTransaction(context.Background())

	for i, name := range []string{"Person", "City"} {
		id, err := tx.LabelGetOrCreateForName(name)
		errorutil.AssertTrue(err == nil && id == i, fmt.Sprint("Unexpected label: ", id, err))
	}

	for i, name := range []string{"KNOWS", "LIVES_IN"} {
		id, err := tx.RelationshipTypeGetOrCreateForName(name)
		errorutil.AssertTrue(err == nil && id == i, fmt.Sprint("Unexpected type: ", id, err))
	}

	for i, name := range []string{"name", "age"} {
		id, err := tx.PropertyKeyGetOrCreateForName(name)
		errorutil.AssertTrue(err == nil && id == i, fmt.Sprint("Unexpected key: ", id, err))
	}

	createNode := func(label int, name string, age int64) {
		id, err := tx.NodeCreateWithLabels(label)
		errorutil.AssertOk(err)

		_, err = tx.NodeSetProperty(id, keyName, data.StringValue(name))
		errorutil.AssertOk(err)

		if age > 0 {
			_, err = tx.NodeSetProperty(id, keyAge, data.IntValue(age))
			errorutil.AssertOk(err)
		}
	}

	createNode(labelPerson, "alice", 30)
	createNode(labelPerson, "bob", 25)
	createNode(labelPerson, "carol", 35)
	createNode(labelCity, "berlin", 0)

	createRel := func(start uint64, typ int, end uint64) uint64 {
		id, err := tx.RelationshipCreate(start, typ, end)
		errorutil.AssertOk(err)
		return id
	}

	r0 := createRel(0, typeKnows, 1)
	createRel(1, typeKnows, 2)
	createRel(0, typeLives, 3)
	createRel(0, typeKnows, 0)

	_, err := tx.RelationshipSetProperty(r0, keyAge, data.IntValue(2020))
	errorutil.AssertOk(err)

	errorutil.AssertOk(tx.Commit())
}

/*
collect reads all remaining results of a cursor and closes it.
*/
func collect[C Cursor](c C, ref func(C) uint64) string {
	var res []uint64

	for c.Next() {
		res = append(res, ref(c))
	}

	if err := c.Err(); err != nil {
		return err.Error()
	}

	return fmt.Sprint(res)
}

func TestKernel(t *testing.T) {
	k := newTestKernel()

	logger := ecalutil.NewMemoryLogger(10)
	k.SetLogger(logger)

	if k.Logger() != logger || k.ReadTracer() != nil || k.Storage().Name() != "testgraph" {
		t.Error("Unexpected kernel state")
		return
	}

	createTestGraph(k)

	if res := fmt.Sprint(k.Tokens().Holder(util.LabelToken).ID("City"),
		k.Tokens().Holder(util.RelationshipTypeToken).ID("LIVES_IN"),
		k.Tokens().Holder(util.PropertyKeyToken).ID("foo")); res != "1 1 -1" {
		t.Error("Unexpected result:", res)
		return
	}

	tx1 := k.BeginTransaction(nil)
	tx2 := k.BeginTransaction(context.Background())

	if tx1.ID() == tx2.ID() || tx1.Context() == nil {
		t.Error("Unexpected transactions:", tx1, tx2)
		return
	}

	if res := tx1.String(); res != fmt.Sprintf("Transaction %v (open: true changes: false)", tx1.ID()) {
		t.Error("Unexpected result:", res)
		return
	}

	tx1.Rollback()
	tx2.Rollback()

	if err := k.Close(); err != nil {
		t.Error(err)
		return
	}

	if !strings.Contains(logger.String(), "Closing graph storage testgraph") {
		t.Error("Unexpected log output:", logger.String())
		return
	}

	tx := k.BeginTransaction(nil)

	if _, err := tx.NodeExists(0); !errors.Is(err, util.ErrReading) {
		t.Error("Unexpected result:", err)
		return
	}
}

func TestKernelIndexes(t *testing.T) {
	k := newTestKernel()
	createTestGraph(k)

	if _, err := k.Index("personAge"); !errors.Is(err, util.ErrIndexNotFound) {
		t.Error("Unexpected result:", err)
		return
	}

	desc, err := k.CreateIndex("personAge", data.NodeEntity, labelPerson, keyAge)
	if err != nil {
		t.Error(err)
		return
	}

	if _, err := k.CreateIndex("personAge", data.NodeEntity, labelCity, keyName); !errors.Is(err, util.ErrInvalidArgument) {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := k.CreateIndex("empty", data.NodeEntity, labelCity); !errors.Is(err, util.ErrInvalidArgument) {
		t.Error("Unexpected result:", err)
		return
	}

	if res, err := k.Index("personAge"); err != nil || res.ID != desc.ID || fmt.Sprint(res.PropertyKeys) != "[1]" {
		t.Error("Unexpected result:", res, err)
		return
	}

	if _, err := k.CreateIndex("cityName", data.NodeEntity, labelCity, keyName); err != nil {
		t.Error(err)
		return
	}

	if indexes, err := k.Indexes(); err != nil || len(indexes) != 2 || indexes[1].Name != "cityName" {
		t.Error("Unexpected result:", indexes, err)
		return
	}
}

func TestKernelDiskStorage(t *testing.T) {
	dgs, err := graphstorage.NewDiskGraphStorage(KernelTestDBDir1, false)
	if err != nil {
		t.Error(err)
		return
	}

	k := NewKernel(dgs)
	createTestGraph(k)

	if _, err := k.CreateIndex("personAge", data.NodeEntity, labelPerson, keyAge); err != nil {
		t.Error(err)
		return
	}

	if err := k.Close(); err != nil {
		t.Error(err)
		return
	}

	dgs, err = graphstorage.NewDiskGraphStorage(KernelTestDBDir1, false)
	if err != nil {
		t.Error(err)
		return
	}

	k = NewKernel(dgs)
	defer k.Close()

	tx := k.BeginTransaction(nil)
	nc := tx.Cursors().AllocateNodeCursor(nil)

	if err := tx.AllNodesScan(nc); err != nil {
		t.Error(err)
		return
	}

	if res := collect(nc, (*NodeCursor).NodeReference); res != "[0 1 2 3]" {
		t.Error("Unexpected result:", res)
		return
	}

	if res := k.Tokens().Holder(util.LabelToken).ID("City"); res != labelCity {
		t.Error("Unexpected result:", res)
		return
	}

	// New ids continue after the restored ones

	id, _ := tx.NodeCreate()
	if id != 4 {
		t.Error("Unexpected id:", id)
		return
	}

	if _, err := tx.RelationshipCreate(id, typeKnows, 2); err != nil {
		t.Error(err)
		return
	}

	nc.Close()

	if err := tx.Commit(); err != nil {
		t.Error(err)
		return
	}

	// The value index was restored

	desc, err := k.Index("personAge")
	if err != nil {
		t.Error(err)
		return
	}

	tx = k.BeginTransaction(nil)
	defer tx.Rollback()

	session, err := tx.IndexReadSession(desc)
	if err != nil {
		t.Error(err)
		return
	}

	vc := tx.Cursors().AllocateNodeValueIndexCursor(nil)
	defer vc.Close()

	if err := tx.NodeIndexScan(session, vc, data.IndexQueryConstraints{Order: data.Ascending}); err != nil {
		t.Error(err)
		return
	}

	if res := collect(vc, (*NodeValueIndexCursor).NodeReference); res != "[1 0 2]" {
		t.Error("Unexpected result:", res)
		return
	}

	if res, _ := tx.Degree(2, data.SelectIncoming()); res != 2 {
		t.Error("Unexpected result:", res)
		return
	}
}
