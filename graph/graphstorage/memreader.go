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

	"devt.de/krotik/graphcursor/graph/data"
	"devt.de/krotik/graphcursor/graph/util"
	"github.com/hashicorp/go-memdb"
)

/*
memReader reads from a memdb transaction. A read transaction sees the state
of the database at the time it was opened.
*/
type memReader struct {
	txn *memdb.Txn
}

/*
Node looks up a single node.
*/
func (mr *memReader) Node(id uint64) (*NodeRecord, error) {
	obj, err := mr.txn.First(tableNode, indexID, id)
	if err != nil || obj == nil {
		return nil, wrapReadError(err)
	}
	return obj.(*NodeRecord), nil
}

/*
Relationship looks up a single relationship.
*/
func (mr *memReader) Relationship(id uint64) (*RelationshipRecord, error) {
	obj, err := mr.txn.First(tableRel, indexID, id)
	if err != nil || obj == nil {
		return nil, wrapReadError(err)
	}
	return obj.(*RelationshipRecord), nil
}

/*
Nodes iterates over all nodes in id order.
*/
func (mr *memReader) Nodes(desc bool) (Iterator[*NodeRecord], error) {
	it, err := mr.get(desc, tableNode, indexID)
	return newResultIterator(it, func(obj interface{}) (*NodeRecord, bool, bool) {
		return obj.(*NodeRecord), true, true
	}), err
}

/*
Relationships iterates over all relationships in id order.
*/
func (mr *memReader) Relationships(desc bool) (Iterator[*RelationshipRecord], error) {
	it, err := mr.get(desc, tableRel, indexID)
	return newResultIterator(it, func(obj interface{}) (*RelationshipRecord, bool, bool) {
		return obj.(*RelationshipRecord), true, true
	}), err
}

/*
NodesWithLabel iterates over the ids of all nodes with a label in id order.
*/
func (mr *memReader) NodesWithLabel(label int, desc bool) (Iterator[uint64], error) {
	it, err := mr.get(desc, tableLabel, indexID, label)
	return newResultIterator(it, func(obj interface{}) (uint64, bool, bool) {
		return obj.(*labelEntry).Node, true, true
	}), err
}

/*
RelationshipsWithType iterates over the ids of all relationships of a type
in id order.
*/
func (mr *memReader) RelationshipsWithType(typ int, desc bool) (Iterator[uint64], error) {
	it, err := mr.get(desc, tableRel, indexType, typ)
	return newResultIterator(it, func(obj interface{}) (uint64, bool, bool) {
		return obj.(*RelationshipRecord).ID, true, true
	}), err
}

/*
NodeRelationships iterates over the relationships of a node with a given type
(or AnyToken) and direction.
*/
func (mr *memReader) NodeRelationships(node uint64, typ int, dir data.Direction) (Iterator[*RelationshipRecord], error) {
	index := indexStart
	if dir == data.Incoming {
		index = indexEnd
	}

	args := []interface{}{node}
	if typ != AnyToken {
		args = append(args, typ)
	}

	it, err := mr.get(false, tableRel, index, args...)

	return newResultIterator(it, func(obj interface{}) (*RelationshipRecord, bool, bool) {
		r := obj.(*RelationshipRecord)
		return r, data.DirectionOf(node, r.Start, r.End) == dir, true
	}), err
}

/*
Degrees returns the degree counters of a node ordered by type.
*/
func (mr *memReader) Degrees(node uint64) ([]*DegreeRecord, error) {
	var res []*DegreeRecord

	it, err := mr.txn.Get(tableDegree, indexID, node)
	if err != nil {
		return nil, wrapReadError(err)
	}

	for obj := it.Next(); obj != nil; obj = it.Next() {
		res = append(res, obj.(*DegreeRecord))
	}

	return res, nil
}

/*
IndexSeek iterates over the entries of a value index within a key range.
*/
func (mr *memReader) IndexSeek(index int, sr data.SeekRange, desc bool) (Iterator[*IndexEntry], error) {
	var it memdb.ResultIterator
	var err error

	if !desc {
		it, err = mr.txn.LowerBound(tableEntry, indexID, index, sr.Lower)

	} else if sr.Upper != nil {
		it, err = mr.txn.ReverseLowerBound(tableEntry, indexID, index, sr.Upper)

	} else {
		it, err = mr.txn.ReverseLowerBound(tableEntry, indexID, index+1)
	}

	if err != nil {
		return nil, wrapReadError(err)
	}

	return newResultIterator(it, func(obj interface{}) (*IndexEntry, bool, bool) {
		e := obj.(*IndexEntry)

		if e.Index != index || !bytes.HasPrefix(e.Key, sr.Prefix) {
			return nil, false, false
		}

		if desc {
			return e, true, bytes.Compare(e.Key, sr.Lower) >= 0
		}

		return e, true, sr.Upper == nil || bytes.Compare(e.Key, sr.Upper) < 0

	}), nil
}

/*
Indexes returns all value index descriptors ordered by id.
*/
func (mr *memReader) Indexes() ([]data.IndexDescriptor, error) {
	var res []data.IndexDescriptor

	it, err := mr.txn.Get(tableIndex, indexID)
	if err != nil {
		return nil, wrapReadError(err)
	}

	for obj := it.Next(); obj != nil; obj = it.Next() {
		res = append(res, *obj.(*data.IndexDescriptor))
	}

	return res, nil
}

/*
Count returns the number of nodes or relationships with a token.
*/
func (mr *memReader) Count(entity data.EntityType, token int) (int64, error) {
	obj, err := mr.txn.First(tableCount, indexID, entity, token)
	if err != nil || obj == nil {
		return 0, wrapReadError(err)
	}
	return obj.(*countRecord).Count, nil
}

/*
get runs a prefix lookup in ascending or descending order.
*/
func (mr *memReader) get(desc bool, table, index string, args ...interface{}) (memdb.ResultIterator, error) {
	var it memdb.ResultIterator
	var err error

	if desc {
		it, err = mr.txn.GetReverse(table, index, args...)
	} else {
		it, err = mr.txn.Get(table, index, args...)
	}

	return it, wrapReadError(err)
}

func wrapReadError(err error) error {
	if err != nil {
		return &util.KernelError{Type: util.ErrReading, Detail: err.Error()}
	}
	return nil
}

/*
resultIterator converts memdb results. The conversion function returns the
converted value, a flag if the value should be returned and a flag if the
iteration should continue.
*/
type resultIterator[T any] struct {
	it   memdb.ResultIterator
	conv func(obj interface{}) (T, bool, bool)
	done bool
}

func newResultIterator[T any](it memdb.ResultIterator, conv func(obj interface{}) (T, bool, bool)) *resultIterator[T] {
	return &resultIterator[T]{it, conv, it == nil}
}

/*
Next returns the next result.
*/
func (ri *resultIterator[T]) Next() (T, bool) {
	var zero T

	for !ri.done {
		obj := ri.it.Next()
		if obj == nil {
			break
		}

		v, ok, cont := ri.conv(obj)
		if !cont {
			break
		}

		if ok {
			return v, true
		}
	}

	ri.done = true

	return zero, false
}

/*
Err returns nil. Memory lookups cannot fail once started.
*/
func (ri *resultIterator[T]) Err() error {
	return nil
}
