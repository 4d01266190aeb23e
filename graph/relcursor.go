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
	"devt.de/krotik/common/errorutil"
	"devt.de/krotik/graphcursor/graph/data"
	"devt.de/krotik/graphcursor/graph/graphstorage"
	"devt.de/krotik/graphcursor/graph/txstate"
	"devt.de/krotik/graphcursor/graph/util"
)

/*
relItem is a relationship result. The record is nil for relationships which
were created in the transaction.
*/
type relItem struct {
	id    uint64
	typ   int
	start uint64
	end   uint64
	rec   *graphstorage.RelationshipRecord
}

func relItemOf(rec *graphstorage.RelationshipRecord) relItem {
	return relItem{rec.ID, rec.Type, rec.Start, rec.End, rec}
}

/*
relationshipView gives access to the current relationship of a cursor.
*/
type relationshipView struct {
	tx    *Transaction
	item  relItem
	valid bool
}

func (v *relationshipView) clear() {
	v.item, v.valid = relItem{}, false
}

/*
RelationshipReference returns the id of the current relationship.
*/
func (v *relationshipView) RelationshipReference() uint64 {
	return v.item.id
}

/*
Type returns the type of the current relationship.
*/
func (v *relationshipView) Type() int {
	if !v.valid {
		return util.NoToken
	}
	return v.item.typ
}

/*
SourceNodeReference returns the start node of the current relationship.
*/
func (v *relationshipView) SourceNodeReference() uint64 {
	return v.item.start
}

/*
TargetNodeReference returns the end node of the current relationship.
*/
func (v *relationshipView) TargetNodeReference() uint64 {
	return v.item.end
}

/*
Properties positions a property cursor on the properties of the current
relationship.
*/
func (v *relationshipView) Properties(pc *PropertyCursor) error {
	if err := pc.checkPosition(v.tx); err != nil {
		return err
	}

	if !v.valid {
		pc.empty()
		return nil
	}

	var props map[int]data.Value
	if v.item.rec != nil {
		props = v.item.rec.Props
	}

	pc.positionOn(v.tx.relationshipChanges(v.item.id).Apply(props))

	return nil
}

/*
Source positions a node cursor on the start node of the current relationship.
*/
func (v *relationshipView) Source(nc *NodeCursor) error {
	return v.tx.SingleNode(v.item.start, nc)
}

/*
Target positions a node cursor on the end node of the current relationship.
*/
func (v *relationshipView) Target(nc *NodeCursor) error {
	return v.tx.SingleNode(v.item.end, nc)
}

/*
RelationshipScanCursor iterates over relationships by id.
*/
type RelationshipScanCursor struct {
	*cursorBase
	relationshipView
}

func (c *RelationshipScanCursor) release() {
	c.clear()
}

func (c *RelationshipScanCursor) set(item relItem) {
	c.item, c.valid = item, true

	if c.tracer != nil {
		c.tracer.OnRelationship(item.id)
	}
}

/*
positionBatch positions the cursor on the relationships of a partition batch.
*/
func (c *RelationshipScanCursor) positionBatch(tx *Transaction, r graphstorage.Reader, b *scanBatch) error {
	if err := c.checkPosition(tx); err != nil {
		return err
	}

	ids := b.ids

	c.position(func() (bool, error) {
		for len(ids) > 0 {
			id := ids[0]
			ids = ids[1:]

			rec, err := r.Relationship(id)
			if err != nil {
				return false, err
			} else if rec != nil {
				c.set(relItemOf(rec))
				return true, nil
			}
		}
		return false, nil
	})

	return nil
}

// Relationship read operations
// ============================

/*
SingleRelationship positions a relationship scan cursor on a single
relationship. The cursor has no result if the relationship does not exist or
was deleted in this transaction.
*/
func (tx *Transaction) SingleRelationship(id uint64, c *RelationshipScanCursor) error {

	if err := c.checkPosition(tx); err != nil {
		return err
	}

	r, err := tx.snapshot()

	var item relItem
	var visible bool

	if err == nil {
		item, visible, err = tx.relationshipVisible(r, id)
	}

	if err != nil {
		c.fail(err)
		return c.err
	}

	c.position(func() (bool, error) {
		if !visible {
			return false, nil
		}
		visible = false
		c.set(item)
		return true, nil
	})

	return nil
}

/*
AllRelationshipsScan positions a relationship scan cursor on all
relationships. Relationships created in this transaction follow the
committed relationships.
*/
func (tx *Transaction) AllRelationshipsScan(c *RelationshipScanCursor) error {

	if err := c.checkPosition(tx); err != nil {
		return err
	}

	r, err := tx.snapshot()

	var it graphstorage.Iterator[*graphstorage.RelationshipRecord]

	if err == nil {
		it, err = r.Relationships(false)
	}

	if err != nil {
		c.fail(err)
		return c.err
	}

	if c.tracer != nil {
		c.tracer.OnAllRelationshipsScan()
	}

	rels := tx.state.AddedAndRemovedRelationships().Snapshot()

	var added []relItem
	for _, id := range rels.Added() {
		added = append(added, tx.addedRelationship(id))
	}

	o := newOverlay(mapIterator(it, relItemOf), added, func(item relItem) bool {
		return rels.IsRemoved(item.id)
	}, nil, false)

	c.position(advanceWith(o, c.set))

	return nil
}

/*
RelationshipProperties positions a property cursor on the properties of a
relationship.
*/
func (tx *Transaction) RelationshipProperties(id uint64, pc *PropertyCursor) error {

	if err := pc.checkPosition(tx); err != nil {
		return err
	}

	r, err := tx.snapshot()

	var item relItem
	var visible bool

	if err == nil {
		item, visible, err = tx.relationshipVisible(r, id)
	}

	if err != nil {
		pc.fail(err)
		return pc.err
	}

	if !visible {
		pc.empty()
		return nil
	}

	var props map[int]data.Value
	if item.rec != nil {
		props = item.rec.Props
	}

	pc.positionOn(tx.relationshipChanges(id).Apply(props))

	return nil
}

/*
RelationshipExists checks if a relationship is visible in this transaction.
*/
func (tx *Transaction) RelationshipExists(id uint64) (bool, error) {
	r, err := tx.snapshot()
	if err != nil {
		return false, err
	}

	_, visible, err := tx.relationshipVisible(r, id)

	return visible, err
}

/*
RelationshipDeletedInTransaction checks if a committed relationship was
deleted in this transaction.
*/
func (tx *Transaction) RelationshipDeletedInTransaction(id uint64) bool {
	return tx.state.RelationshipIsDeletedInThisTx(id)
}

/*
relationshipVisible looks up a relationship as this transaction sees it.
*/
func (tx *Transaction) relationshipVisible(r graphstorage.Reader, id uint64) (relItem, bool, error) {

	if tx.state.RelationshipIsDeletedInThisTx(id) {
		return relItem{}, false, nil
	} else if tx.state.RelationshipIsAddedInThisTx(id) {
		return tx.addedRelationship(id), true, nil
	}

	rec, err := r.Relationship(id)
	if err != nil || rec == nil {
		return relItem{}, false, err
	}

	return relItemOf(rec), true, nil
}

/*
addedRelationship returns a relationship which was created in this
transaction.
*/
func (tx *Transaction) addedRelationship(id uint64) relItem {
	rs := tx.state.GetRelationshipState(id)

	errorutil.AssertTrue(rs != nil,
		util.ConsistencyMessage("created relationship %v has no state", id))

	return relItem{rs.ID, rs.Type, rs.Start, rs.End, nil}
}

/*
relationshipChanges returns the property changes of a relationship (nil if
there are none).
*/
func (tx *Transaction) relationshipChanges(id uint64) *txstate.PropertyChanges {
	if rs := tx.state.GetRelationshipState(id); rs != nil {
		return rs.Props
	}
	return nil
}
