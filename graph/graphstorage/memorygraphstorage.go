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
Package graphstorage contains the committed store of the graph kernel.

There are two storage objects: MemoryGraphStorage which keeps all data in an
in-memory database with MVCC snapshots and DiskGraphStorage which additionally
writes all committed changes through to a bolt database file and loads them
again on startup.

The in-memory database holds nodes, relationships, label entries, degree
counters, entity counts and value index entries. All lookup indexes are
ordered compound keys so scans return entities in id order and index seeks
return entries in value order.
*/
package graphstorage

import (
	"fmt"
	"strings"
	"sync/atomic"

	"devt.de/krotik/graphcursor/graph/data"
	"devt.de/krotik/graphcursor/graph/util"
	"github.com/hashicorp/go-memdb"
)

/*
MemoryGraphStorage data structure
*/
type MemoryGraphStorage struct {
	name     string                      // Name of the graph storage
	db       *memdb.MemDB                // In-memory database
	tokens   *util.TokenRegistry         // Token registry
	nextNode *atomic.Uint64              // Node id counter
	nextRel  *atomic.Uint64              // Relationship id counter
	closed   *atomic.Bool                // Flag if the storage was closed
	persist  func(w *memWriter) error // Hook which runs before a write is committed
}

/*
NewMemoryGraphStorage creates a new MemoryGraphStorage instance.
*/
func NewMemoryGraphStorage(name string) (*MemoryGraphStorage, error) {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, &util.KernelError{Type: util.ErrOpening, Detail: err.Error()}
	}

	return &MemoryGraphStorage{name, db, util.NewTokenRegistry(),
		&atomic.Uint64{}, &atomic.Uint64{}, &atomic.Bool{}, nil}, nil
}

/*
Name returns the name of the MemoryGraphStorage instance.
*/
func (mgs *MemoryGraphStorage) Name() string {
	return mgs.name
}

/*
Tokens returns the token registry of the store.
*/
func (mgs *MemoryGraphStorage) Tokens() *util.TokenRegistry {
	return mgs.tokens
}

/*
NewNodeID allocates a new node id.
*/
func (mgs *MemoryGraphStorage) NewNodeID() uint64 {
	return mgs.nextNode.Add(1) - 1
}

/*
NewRelationshipID allocates a new relationship id.
*/
func (mgs *MemoryGraphStorage) NewRelationshipID() uint64 {
	return mgs.nextRel.Add(1) - 1
}

/*
Snapshot returns a reader on the latest committed state.
*/
func (mgs *MemoryGraphStorage) Snapshot() (Reader, error) {
	if mgs.closed.Load() {
		return nil, &util.KernelError{Type: util.ErrReading, Detail: "Storage is closed"}
	}

	return &memReader{mgs.db.Txn(false)}, nil
}

/*
Update runs a function in a write transaction. Write transactions are
serialized.
*/
func (mgs *MemoryGraphStorage) Update(fn func(w Writer) error) error {
	return mgs.update(func(w *memWriter) error {
		return fn(w)
	})
}

func (mgs *MemoryGraphStorage) update(fn func(w *memWriter) error) error {

	if mgs.closed.Load() {
		return &util.KernelError{Type: util.ErrWriting, Detail: "Storage is closed"}
	}

	txn := mgs.db.Txn(true)
	w := newMemWriter(txn)

	err := fn(w)

	if err == nil && mgs.persist != nil {
		err = mgs.persist(w)
	}

	if err != nil {
		txn.Abort()
		return err
	}

	txn.Commit()

	return nil
}

/*
CreateIndex creates and populates a new value index.
*/
func (mgs *MemoryGraphStorage) CreateIndex(name string, entity data.EntityType,
	token int, keys []int) (data.IndexDescriptor, error) {

	var desc data.IndexDescriptor

	if strings.TrimSpace(name) == "" || len(keys) == 0 || token < 0 {
		return desc, &util.KernelError{Type: util.ErrInvalidArgument,
			Detail: fmt.Sprintf("Invalid index definition %v on %v %v %v", name, entity, token, keys)}
	}

	err := mgs.update(func(w *memWriter) error {
		var err error

		if existing, _ := w.txn.First(tableIndex, indexName, name); existing != nil {
			return &util.KernelError{Type: util.ErrInvalidArgument,
				Detail: fmt.Sprintf("Index %v exists already", name)}
		}

		desc = data.IndexDescriptor{Name: name, Entity: entity, Token: token,
			PropertyKeys: append([]int(nil), keys...)}

		if last, _ := w.txn.Last(tableIndex, indexID); last != nil {
			desc.ID = last.(*data.IndexDescriptor).ID + 1
		}

		err = w.addIndex(desc)

		return err
	})

	return desc, err
}

/*
Close closes the storage.
*/
func (mgs *MemoryGraphStorage) Close() error {
	mgs.closed.Store(true)
	return nil
}
