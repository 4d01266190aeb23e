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
	"devt.de/krotik/graphcursor/graph/data"
	"devt.de/krotik/graphcursor/graph/graphstorage"
	"devt.de/krotik/graphcursor/graph/txstate"
)

/*
tokenIndexCursor iterates over the ids of entities which carry a token.
*/
type tokenIndexCursor struct {
	*cursorBase
	id    uint64
	valid bool
}

func (c *tokenIndexCursor) release() {
	c.id, c.valid = 0, false
}

/*
positionOn positions the cursor on the merged result of a token lookup.
Committed entities are dropped if they were removed from the token or deleted
in the transaction. Added entities must be sorted in ascending order.
*/
func (c *tokenIndexCursor) positionOn(store graphstorage.Iterator[uint64], added []uint64,
	skip func(uint64) bool, order data.IndexOrder, set func(uint64)) {

	var compare func(a, b uint64) int

	if order != data.Unordered {
		compare = compareIDs
	}

	desc := order == data.Descending
	if desc {
		added = reversed(added)
	}

	c.position(advanceWith(newOverlay(store, added, skip, compare, desc), set))
}

/*
positionBatch positions the cursor on the ids of a partition batch.
*/
func (c *tokenIndexCursor) positionBatch(tx *Transaction, r graphstorage.Reader, b *scanBatch,
	set func(uint64)) error {

	if err := c.checkPosition(tx); err != nil {
		return err
	}

	c.position(advanceWith(newOverlay[uint64](&sliceIterator[uint64]{b.ids}, nil, nil, nil, false), set))

	return nil
}

/*
NodeLabelIndexCursor iterates over the nodes with a label.
*/
type NodeLabelIndexCursor struct {
	tokenIndexCursor
}

func (c *NodeLabelIndexCursor) set(id uint64) {
	c.id, c.valid = id, true

	if c.tracer != nil {
		c.tracer.OnNode(id)
	}
}

/*
NodeReference returns the id of the current node.
*/
func (c *NodeLabelIndexCursor) NodeReference() uint64 {
	return c.id
}

/*
Node positions a node cursor on the current node.
*/
func (c *NodeLabelIndexCursor) Node(nc *NodeCursor) error {
	tx := c.factory.tx

	if !c.valid {
		if err := nc.checkPosition(tx); err != nil {
			return err
		}
		nc.empty()
		return nil
	}

	return tx.SingleNode(c.id, nc)
}

func (c *NodeLabelIndexCursor) positionBatch(tx *Transaction, r graphstorage.Reader, b *scanBatch) error {
	return c.tokenIndexCursor.positionBatch(tx, r, b, c.set)
}

/*
RelationshipTypeIndexCursor iterates over the relationships of a type.
*/
type RelationshipTypeIndexCursor struct {
	tokenIndexCursor
}

func (c *RelationshipTypeIndexCursor) set(id uint64) {
	c.id, c.valid = id, true

	if c.tracer != nil {
		c.tracer.OnRelationship(id)
	}
}

/*
RelationshipReference returns the id of the current relationship.
*/
func (c *RelationshipTypeIndexCursor) RelationshipReference() uint64 {
	return c.id
}

/*
Relationship positions a relationship scan cursor on the current relationship.
*/
func (c *RelationshipTypeIndexCursor) Relationship(rc *RelationshipScanCursor) error {
	tx := c.factory.tx

	if !c.valid {
		if err := rc.checkPosition(tx); err != nil {
			return err
		}
		rc.empty()
		return nil
	}

	return tx.SingleRelationship(c.id, rc)
}

func (c *RelationshipTypeIndexCursor) positionBatch(tx *Transaction, r graphstorage.Reader, b *scanBatch) error {
	return c.tokenIndexCursor.positionBatch(tx, r, b, c.set)
}

// Token scan operations
// =====================

/*
NodeLabelScan positions a label index cursor on all nodes with a label. The
result reflects the label changes of this transaction at the time of the
call. Ordered results are sorted by node id.
*/
func (tx *Transaction) NodeLabelScan(label int, order data.IndexOrder, c *NodeLabelIndexCursor) error {

	if err := c.checkPosition(tx); err != nil {
		return err
	}

	r, err := tx.snapshot()

	var it graphstorage.Iterator[uint64]

	if err == nil {
		it, err = r.NodesWithLabel(label, order == data.Descending)
	}

	if err != nil {
		c.fail(err)
		return c.err
	}

	if c.tracer != nil {
		c.tracer.OnLabelScan(label)
	}

	nodes := tx.state.AddedAndRemovedNodes().Snapshot()
	changes := frozen(tx.state.NodesWithLabelChanged(label))

	var added []uint64
	for _, id := range changes.Added() {
		if !nodes.IsRemoved(id) {
			added = append(added, id)
		}
	}

	c.positionOn(it, added, func(id uint64) bool {
		return nodes.IsRemoved(id) || changes.IsRemoved(id) || changes.IsAdded(id)
	}, order, c.set)

	return nil
}

/*
RelationshipTypeScan positions a type index cursor on all relationships of a
type. The result reflects the relationships created and deleted in this
transaction at the time of the call. Ordered results are sorted by
relationship id.
*/
func (tx *Transaction) RelationshipTypeScan(typ int, order data.IndexOrder, c *RelationshipTypeIndexCursor) error {

	if err := c.checkPosition(tx); err != nil {
		return err
	}

	r, err := tx.snapshot()

	var it graphstorage.Iterator[uint64]

	if err == nil {
		it, err = r.RelationshipsWithType(typ, order == data.Descending)
	}

	if err != nil {
		c.fail(err)
		return c.err
	}

	if c.tracer != nil {
		c.tracer.OnRelationshipTypeScan(typ)
	}

	changes := frozen(tx.state.RelationshipsWithTypeChanged(typ))

	c.positionOn(it, changes.Added(), func(id uint64) bool {
		return changes.IsRemoved(id) || changes.IsAdded(id)
	}, order, c.set)

	return nil
}

/*
frozen returns a frozen copy of a diff set (an empty one for nil).
*/
func frozen(ds *txstate.LongDiffSets) *txstate.LongDiffSets {
	if ds == nil {
		return txstate.NewLongDiffSets()
	}
	return ds.Snapshot()
}
