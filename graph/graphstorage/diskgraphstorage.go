/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package graphstorage

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"os"
	"path/filepath"
	"time"

	"devt.de/krotik/common/fileutil"
	"devt.de/krotik/graphcursor/graph/data"
	"devt.de/krotik/graphcursor/graph/util"
	"go.etcd.io/bbolt"
)

/*
FilenameGraphDB is the filename of the graph database file
*/
var FilenameGraphDB = "graph.db"

/*
Bucket names of the graph database file
*/
var (
	bucketNodes   = []byte("nodes")
	bucketRels    = []byte("relationships")
	bucketTokens  = []byte("tokens")
	bucketIndexes = []byte("indexes")
	bucketMeta    = []byte("meta")
)

/*
Keys of the meta bucket
*/
var (
	metaNextNode = []byte("nextNode")
	metaNextRel  = []byte("nextRelationship")
)

/*
DiskGraphStorage data structure
*/
type DiskGraphStorage struct {
	*MemoryGraphStorage
	readonly bool      // Flag for readonly mode
	boltDB   *bbolt.DB // Database file
}

/*
NewDiskGraphStorage creates a new DiskGraphStorage instance. All data of an
existing storage directory is loaded into memory. Every committed change is
written to disk before it becomes visible.
*/
func NewDiskGraphStorage(name string, readonly bool) (*DiskGraphStorage, error) {

	mgs, err := NewMemoryGraphStorage(name)
	if err != nil {
		return nil, err
	}

	// Create the storage directory if it does not exist yet

	if res, _ := fileutil.PathExists(name); !res {
		if readonly {
			return nil, &util.KernelError{Type: util.ErrOpening, Detail: "Storage does not exist: " + name}
		}

		if err := os.Mkdir(name, 0770); err != nil {
			return nil, &util.KernelError{Type: util.ErrOpening, Detail: err.Error()}
		}
	}

	boltDB, err := bbolt.Open(filepath.Join(name, FilenameGraphDB), 0600,
		&bbolt.Options{Timeout: time.Second, ReadOnly: readonly})
	if err != nil {
		return nil, &util.KernelError{Type: util.ErrOpening, Detail: err.Error()}
	}

	dgs := &DiskGraphStorage{mgs, readonly, boltDB}

	if !readonly {
		err = boltDB.Update(func(tx *bbolt.Tx) error {
			for _, b := range [][]byte{bucketNodes, bucketRels, bucketTokens, bucketIndexes, bucketMeta} {
				if _, err := tx.CreateBucketIfNotExists(b); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err == nil {
		err = dgs.load()
	}

	if err != nil {
		boltDB.Close()
		return nil, &util.KernelError{Type: util.ErrOpening, Detail: err.Error()}
	}

	mgs.tokens.SetPersister(dgs.persistToken)
	mgs.persist = dgs.persistChanges

	return dgs, nil
}

/*
load reads all data from the database file into memory.
*/
func (dgs *DiskGraphStorage) load() error {
	var indexes []data.IndexDescriptor

	return dgs.boltDB.View(func(tx *bbolt.Tx) error {

		// Tokens are stored by kind and id so they are restored in id order

		err := forEach(tx, bucketTokens, func(k, v []byte) error {
			return dgs.tokens.Holder(util.TokenKind(k[0])).Restore(string(v),
				int(binary.BigEndian.Uint32(k[1:])))
		})

		if err == nil {
			if b := tx.Bucket(bucketMeta); b != nil {
				if v := b.Get(metaNextNode); v != nil {
					dgs.nextNode.Store(binary.BigEndian.Uint64(v))
				}
				if v := b.Get(metaNextRel); v != nil {
					dgs.nextRel.Store(binary.BigEndian.Uint64(v))
				}
			}

			err = forEach(tx, bucketIndexes, func(k, v []byte) error {
				var desc data.IndexDescriptor
				err := gob.NewDecoder(bytes.NewReader(v)).Decode(&desc)
				indexes = append(indexes, desc)
				return err
			})
		}

		if err != nil {
			return err
		}

		// Replay nodes, relationships and indexes into memory

		return dgs.MemoryGraphStorage.update(func(w *memWriter) error {

			err := forEach(tx, bucketNodes, func(k, v []byte) error {
				var rec NodeRecord
				err := gob.NewDecoder(bytes.NewReader(v)).Decode(&rec)
				if err == nil {
					err = w.PutNode(&rec)
				}
				return err
			})

			if err == nil {
				err = forEach(tx, bucketRels, func(k, v []byte) error {
					var rec RelationshipRecord
					err := gob.NewDecoder(bytes.NewReader(v)).Decode(&rec)
					if err == nil {
						err = w.PutRelationship(&rec)
					}
					return err
				})
			}

			for _, desc := range indexes {
				if err == nil {
					err = w.addIndex(desc)
				}
			}

			return err
		})
	})
}

/*
persistToken writes a new token to disk.
*/
func (dgs *DiskGraphStorage) persistToken(kind util.TokenKind, name string, id int) error {

	if dgs.readonly {
		return &util.KernelError{Type: util.ErrReadOnly, Detail: "Cannot create token " + name}
	}

	return dgs.boltDB.Update(func(tx *bbolt.Tx) error {
		key := binary.BigEndian.AppendUint32([]byte{byte(kind)}, uint32(id))
		return tx.Bucket(bucketTokens).Put(key, []byte(name))
	})
}

/*
persistChanges writes all changes of a write transaction to disk.
*/
func (dgs *DiskGraphStorage) persistChanges(w *memWriter) error {

	if dgs.readonly {
		return &util.KernelError{Type: util.ErrReadOnly, Detail: "Cannot write changes"}
	}

	err := dgs.boltDB.Update(func(tx *bbolt.Tx) error {
		var err error

		nodes, rels := tx.Bucket(bucketNodes), tx.Bucket(bucketRels)

		for id := range w.dirtyNodes {
			var rec *NodeRecord

			if rec, err = w.Node(id); err == nil {
				err = putOrDelete(nodes, id, rec, rec == nil)
			}

			if err != nil {
				return err
			}
		}

		for id := range w.dirtyRels {
			var rec *RelationshipRecord

			if rec, err = w.Relationship(id); err == nil {
				err = putOrDelete(rels, id, rec, rec == nil)
			}

			if err != nil {
				return err
			}
		}

		for _, desc := range w.newIndexes {
			if err = putOrDelete(tx.Bucket(bucketIndexes), uint64(desc.ID), desc, false); err != nil {
				return err
			}
		}

		meta := tx.Bucket(bucketMeta)

		if err = meta.Put(metaNextNode, binary.BigEndian.AppendUint64(nil, dgs.nextNode.Load())); err == nil {
			err = meta.Put(metaNextRel, binary.BigEndian.AppendUint64(nil, dgs.nextRel.Load()))
		}

		return err
	})

	if err != nil {
		return &util.KernelError{Type: util.ErrWriting, Detail: err.Error()}
	}

	return nil
}

/*
Close closes the storage.
*/
func (dgs *DiskGraphStorage) Close() error {
	dgs.MemoryGraphStorage.Close()

	if err := dgs.boltDB.Close(); err != nil {
		return &util.KernelError{Type: util.ErrClosing, Detail: err.Error()}
	}

	return nil
}

// Helper functions
// ================

func forEach(tx *bbolt.Tx, bucket []byte, fn func(k, v []byte) error) error {
	b := tx.Bucket(bucket)
	if b == nil {
		return nil
	}
	return b.ForEach(fn)
}

func putOrDelete(b *bbolt.Bucket, id uint64, obj interface{}, remove bool) error {
	key := binary.BigEndian.AppendUint64(nil, id)

	if remove {
		return b.Delete(key)
	}

	var buf bytes.Buffer

	if err := gob.NewEncoder(&buf).Encode(obj); err != nil {
		return err
	}

	return b.Put(key, buf.Bytes())
}
