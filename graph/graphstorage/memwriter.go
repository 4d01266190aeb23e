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
	"fmt"
	"sort"

	"devt.de/krotik/graphcursor/graph/data"
	"devt.de/krotik/graphcursor/graph/util"
	"github.com/hashicorp/go-memdb"
)

/*
memWriter modifies the memory store within a write transaction. It keeps
track of all modified entities so they can be written through to disk.
*/
type memWriter struct {
	*memReader
	dirtyNodes map[uint64]bool        // Modified nodes
	dirtyRels  map[uint64]bool        // Modified relationships
	newIndexes []data.IndexDescriptor // Created indexes
}

func newMemWriter(txn *memdb.Txn) *memWriter {
	return &memWriter{&memReader{txn}, make(map[uint64]bool), make(map[uint64]bool), nil}
}

/*
PutNode inserts or replaces a node.
*/
func (w *memWriter) PutNode(rec *NodeRecord) error {

	old, err := w.Node(rec.ID)
	if err != nil {
		return err
	}

	rec = rec.Copy()
	sort.Ints(rec.Labels)

	if old == nil {
		if err = w.count(data.NodeEntity, AnyToken, 1); err != nil {
			return err
		}
	}

	// Maintain label entries

	for _, l := range rec.Labels {
		if err == nil && (old == nil || !old.HasLabel(l)) {
			if err = w.insert(tableLabel, &labelEntry{l, rec.ID}); err == nil {
				err = w.count(data.NodeEntity, l, 1)
			}
		}
	}

	if old != nil {
		for _, l := range old.Labels {
			if err == nil && !rec.HasLabel(l) {
				if err = w.delete(tableLabel, &labelEntry{l, rec.ID}); err == nil {
					err = w.count(data.NodeEntity, l, -1)
				}
			}
		}
	}

	if err == nil {
		err = w.updateEntries(data.NodeEntity, rec.ID, nodeEntity(old), nodeEntity(rec))
	}

	if err == nil {
		err = w.insert(tableNode, rec)
		w.dirtyNodes[rec.ID] = true
	}

	return err
}

/*
DeleteNode removes a node. The node must not have relationships.
*/
func (w *memWriter) DeleteNode(id uint64) error {

	old, err := w.Node(id)
	if err != nil {
		return err
	} else if old == nil {
		return &util.KernelError{Type: util.ErrEntityNotFound, Detail: fmt.Sprintf("Node %v", id)}
	}

	if degrees, _ := w.Degrees(id); len(degrees) > 0 {
		return &util.KernelError{Type: util.ErrNodeHasRelationships, Detail: fmt.Sprintf("Node %v", id)}
	}

	err = w.count(data.NodeEntity, AnyToken, -1)

	for _, l := range old.Labels {
		if err == nil {
			if err = w.delete(tableLabel, &labelEntry{l, id}); err == nil {
				err = w.count(data.NodeEntity, l, -1)
			}
		}
	}

	if err == nil {
		err = w.updateEntries(data.NodeEntity, id, nodeEntity(old), nil)
	}

	if err == nil {
		err = w.delete(tableNode, old)
		w.dirtyNodes[id] = true
	}

	return err
}

/*
PutRelationship inserts a relationship or replaces its properties.
*/
func (w *memWriter) PutRelationship(rec *RelationshipRecord) error {

	old, err := w.Relationship(rec.ID)
	if err != nil {
		return err
	}

	rec = rec.Copy()

	if old == nil {

		// Both nodes must exist

		for _, n := range []uint64{rec.Start, rec.End} {
			if node, err := w.Node(n); err != nil {
				return err
			} else if node == nil {
				return &util.KernelError{Type: util.ErrEntityNotFound,
					Detail: fmt.Sprintf("Node %v of relationship %v", n, rec.ID)}
			}
		}

		err = w.updateDegrees(rec, 1)

		if err == nil {
			if err = w.count(data.RelationshipEntity, AnyToken, 1); err == nil {
				err = w.count(data.RelationshipEntity, rec.Type, 1)
			}
		}

	} else if old.Type != rec.Type || old.Start != rec.Start || old.End != rec.End {

		return &util.KernelError{Type: util.ErrInvalidArgument,
			Detail: fmt.Sprintf("Cannot change type or nodes of relationship %v", rec.ID)}
	}

	if err == nil {
		err = w.updateEntries(data.RelationshipEntity, rec.ID, relEntity(old), relEntity(rec))
	}

	if err == nil {
		err = w.insert(tableRel, rec)
		w.dirtyRels[rec.ID] = true
	}

	return err
}

/*
DeleteRelationship removes a relationship.
*/
func (w *memWriter) DeleteRelationship(id uint64) error {

	old, err := w.Relationship(id)
	if err != nil {
		return err
	} else if old == nil {
		return &util.KernelError{Type: util.ErrEntityNotFound, Detail: fmt.Sprintf("Relationship %v", id)}
	}

	err = w.updateDegrees(old, -1)

	if err == nil {
		if err = w.count(data.RelationshipEntity, AnyToken, -1); err == nil {
			err = w.count(data.RelationshipEntity, old.Type, -1)
		}
	}

	if err == nil {
		err = w.updateEntries(data.RelationshipEntity, id, relEntity(old), nil)
	}

	if err == nil {
		err = w.delete(tableRel, old)
		w.dirtyRels[id] = true
	}

	return err
}

/*
addIndex stores a new index descriptor and creates the entries for all
existing entities.
*/
func (w *memWriter) addIndex(desc data.IndexDescriptor) error {

	if err := w.insert(tableIndex, &desc); err != nil {
		return err
	}

	w.newIndexes = append(w.newIndexes, desc)

	if desc.Entity == data.NodeEntity {
		it, err := w.NodesWithLabel(desc.Token, false)

		for id, ok := it.Next(); ok && err == nil; id, ok = it.Next() {
			var n *NodeRecord

			if n, err = w.Node(id); err == nil {
				if e := indexEntry(desc, nodeEntity(n)); e != nil {
					err = w.insert(tableEntry, e)
				}
			}
		}

		return err
	}

	it, err := w.RelationshipsWithType(desc.Token, false)

	for id, ok := it.Next(); ok && err == nil; id, ok = it.Next() {
		var r *RelationshipRecord

		if r, err = w.Relationship(id); err == nil {
			if e := indexEntry(desc, relEntity(r)); e != nil {
				err = w.insert(tableEntry, e)
			}
		}
	}

	return err
}

// Helper functions
// ================

/*
indexedEntity is the view of an entity which is relevant for value indexes.
*/
type indexedEntity struct {
	id       uint64
	hasToken func(token int) bool
	props    map[int]data.Value
}

func nodeEntity(n *NodeRecord) *indexedEntity {
	if n == nil {
		return nil
	}
	return &indexedEntity{n.ID, n.HasLabel, n.Props}
}

func relEntity(r *RelationshipRecord) *indexedEntity {
	if r == nil {
		return nil
	}
	return &indexedEntity{r.ID, func(token int) bool { return token == r.Type }, r.Props}
}

/*
indexEntry builds the index entry of an entity. Returns nil if the entity is
not covered by the index.
*/
func indexEntry(desc data.IndexDescriptor, e *indexedEntity) *IndexEntry {
	if e == nil || !e.hasToken(desc.Token) {
		return nil
	}

	values := make([]data.Value, len(desc.PropertyKeys))

	for i, k := range desc.PropertyKeys {
		v, ok := e.props[k]
		if !ok {
			return nil
		}
		values[i] = v
	}

	return &IndexEntry{desc.ID, data.EncodeValues(values), e.id, values}
}

/*
updateEntries replaces the index entries of an entity.
*/
func (w *memWriter) updateEntries(entity data.EntityType, id uint64, old, updated *indexedEntity) error {
	indexes, err := w.Indexes()

	for _, desc := range indexes {
		if err != nil || desc.Entity != entity {
			continue
		}

		oldEntry, newEntry := indexEntry(desc, old), indexEntry(desc, updated)

		if oldEntry != nil && (newEntry == nil || !bytes.Equal(oldEntry.Key, newEntry.Key)) {
			err = w.delete(tableEntry, oldEntry)
		}

		if err == nil && newEntry != nil {
			err = w.insert(tableEntry, newEntry)
		}
	}

	return err
}

/*
updateDegrees changes the degree counters of both nodes of a relationship.
*/
func (w *memWriter) updateDegrees(r *RelationshipRecord, delta int64) error {
	dir := data.DirectionOf(r.Start, r.Start, r.End)

	err := w.degree(r.Start, r.Type, dir, delta)

	if err == nil && dir != data.Loop {
		err = w.degree(r.End, r.Type, data.Incoming, delta)
	}

	return err
}

func (w *memWriter) degree(node uint64, typ int, dir data.Direction, delta int64) error {
	rec := &DegreeRecord{Node: node, Type: typ}

	obj, err := w.txn.First(tableDegree, indexID, node, typ)
	if err != nil {
		return wrapWriteError(err)
	} else if obj != nil {
		rec.Counts = obj.(*DegreeRecord).Counts
	}

	rec.Counts[dir] += delta

	if rec.Total() == 0 {
		if obj != nil {
			return w.delete(tableDegree, obj)
		}
		return nil
	}

	return w.insert(tableDegree, rec)
}

func (w *memWriter) count(entity data.EntityType, token int, delta int64) error {
	rec := &countRecord{entity, token, delta}

	obj, err := w.txn.First(tableCount, indexID, entity, token)
	if err != nil {
		return wrapWriteError(err)
	} else if obj != nil {
		rec.Count += obj.(*countRecord).Count
	}

	if rec.Count == 0 {
		if obj != nil {
			return w.delete(tableCount, obj)
		}
		return nil
	}

	return w.insert(tableCount, rec)
}

func (w *memWriter) insert(table string, obj interface{}) error {
	return wrapWriteError(w.txn.Insert(table, obj))
}

func (w *memWriter) delete(table string, obj interface{}) error {
	return wrapWriteError(w.txn.Delete(table, obj))
}

func wrapWriteError(err error) error {
	if err != nil {
		return &util.KernelError{Type: util.ErrWriting, Detail: err.Error()}
	}
	return nil
}
