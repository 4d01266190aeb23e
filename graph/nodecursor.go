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
	"sort"

	"devt.de/krotik/graphcursor/graph/data"
	"devt.de/krotik/graphcursor/graph/graphstorage"
	"devt.de/krotik/graphcursor/graph/txstate"
)

/*
nodeItem is a node result. The record is nil for nodes which were created in
the transaction.
*/
type nodeItem struct {
	id  uint64
	rec *graphstorage.NodeRecord
}

/*
NodeCursor iterates over nodes. Labels and properties of the current node
are read with the changes of the transaction applied.
*/
type NodeCursor struct {
	*cursorBase
	item  nodeItem
	valid bool
}

func (c *NodeCursor) release() {
	c.item, c.valid = nodeItem{}, false
}

func (c *NodeCursor) set(item nodeItem) {
	c.item, c.valid = item, true

	if c.tracer != nil {
		c.tracer.OnNode(item.id)
	}
}

/*
NodeReference returns the id of the current node.
*/
func (c *NodeCursor) NodeReference() uint64 {
	return c.item.id
}

/*
Labels returns the labels of the current node in ascending order.
*/
func (c *NodeCursor) Labels() []int {
	if !c.valid {
		return nil
	}

	var labels []int
	if c.item.rec != nil {
		labels = c.item.rec.Labels
	}

	if ns := c.factory.tx.state.GetNodeState(c.item.id); ns != nil {
		return ns.Labels.Apply(labels)
	}

	return append([]int(nil), labels...)
}

/*
HasLabel checks if the current node has a given label.
*/
func (c *NodeCursor) HasLabel(label int) bool {
	labels := c.Labels()
	i := sort.SearchInts(labels, label)
	return i < len(labels) && labels[i] == label
}

/*
Properties positions a property cursor on the properties of the current node.
*/
func (c *NodeCursor) Properties(pc *PropertyCursor) error {
	tx := c.factory.tx

	if err := pc.checkPosition(tx); err != nil {
		return err
	}

	if !c.valid {
		pc.empty()
		return nil
	}

	var props map[int]data.Value
	if c.item.rec != nil {
		props = c.item.rec.Props
	}

	pc.positionOn(tx.nodeChanges(c.item.id).Apply(props))

	return nil
}

/*
Relationships positions a traversal cursor on the relationships of the
current node.
*/
func (c *NodeCursor) Relationships(tc *RelationshipTraversalCursor, sel data.Selection) error {
	if !c.valid {
		if err := tc.checkPosition(c.factory.tx); err != nil {
			return err
		}
		tc.empty()
		return nil
	}
	return c.factory.tx.Relationships(c.item.id, sel, tc)
}

/*
RelationshipGroups positions a group cursor on the relationship groups of the
current node.
*/
func (c *NodeCursor) RelationshipGroups(gc *RelationshipGroupCursor) error {
	if !c.valid {
		if err := gc.checkPosition(c.factory.tx); err != nil {
			return err
		}
		gc.empty()
		return nil
	}
	return c.factory.tx.RelationshipGroups(c.item.id, gc)
}

/*
Degree returns the number of relationships of the current node in a selection.
*/
func (c *NodeCursor) Degree(sel data.Selection) (int64, error) {
	if !c.valid {
		return 0, nil
	}
	return c.factory.tx.Degree(c.item.id, sel)
}

/*
DegreeWithMax returns the number of relationships of the current node in a
selection but at most max.
*/
func (c *NodeCursor) DegreeWithMax(max int64, sel data.Selection) (int64, error) {
	if !c.valid {
		return 0, nil
	}
	return c.factory.tx.DegreeWithMax(max, c.item.id, sel)
}

/*
positionBatch positions the cursor on the nodes of a partition batch.
*/
func (c *NodeCursor) positionBatch(tx *Transaction, r graphstorage.Reader, b *scanBatch) error {
	if err := c.checkPosition(tx); err != nil {
		return err
	}

	ids := b.ids

	c.position(func() (bool, error) {
		for len(ids) > 0 {
			id := ids[0]
			ids = ids[1:]

			rec, err := r.Node(id)
			if err != nil {
				return false, err
			} else if rec != nil {
				c.set(nodeItem{id, rec})
				return true, nil
			}
		}
		return false, nil
	})

	return nil
}

// Node read operations
// ====================

/*
SingleNode positions a node cursor on a single node. The cursor has no
result if the node does not exist or was deleted in this transaction.
*/
func (tx *Transaction) SingleNode(id uint64, c *NodeCursor) error {

	if err := c.checkPosition(tx); err != nil {
		return err
	}

	r, err := tx.snapshot()

	var rec *graphstorage.NodeRecord
	var visible bool

	if err == nil {
		rec, visible, err = tx.nodeVisible(r, id)
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
		c.set(nodeItem{id, rec})
		return true, nil
	})

	return nil
}

/*
AllNodesScan positions a node cursor on all nodes. Nodes created in this
transaction follow the committed nodes.
*/
func (tx *Transaction) AllNodesScan(c *NodeCursor) error {

	if err := c.checkPosition(tx); err != nil {
		return err
	}

	r, err := tx.snapshot()

	var it graphstorage.Iterator[*graphstorage.NodeRecord]

	if err == nil {
		it, err = r.Nodes(false)
	}

	if err != nil {
		c.fail(err)
		return c.err
	}

	if c.tracer != nil {
		c.tracer.OnAllNodesScan()
	}

	nodes := tx.state.AddedAndRemovedNodes().Snapshot()

	var added []nodeItem
	for _, id := range nodes.Added() {
		added = append(added, nodeItem{id, nil})
	}

	o := newOverlay(mapIterator(it, func(rec *graphstorage.NodeRecord) nodeItem {
		return nodeItem{rec.ID, rec}
	}), added, func(item nodeItem) bool {
		return nodes.IsRemoved(item.id)
	}, nil, false)

	c.position(advanceWith(o, c.set))

	return nil
}

/*
NodeProperties positions a property cursor on the properties of a node.
*/
func (tx *Transaction) NodeProperties(id uint64, pc *PropertyCursor) error {

	if err := pc.checkPosition(tx); err != nil {
		return err
	}

	r, err := tx.snapshot()

	var rec *graphstorage.NodeRecord
	var visible bool

	if err == nil {
		rec, visible, err = tx.nodeVisible(r, id)
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
	if rec != nil {
		props = rec.Props
	}

	pc.positionOn(tx.nodeChanges(id).Apply(props))

	return nil
}

/*
NodeExists checks if a node is visible in this transaction.
*/
func (tx *Transaction) NodeExists(id uint64) (bool, error) {
	r, err := tx.snapshot()
	if err != nil {
		return false, err
	}

	_, visible, err := tx.nodeVisible(r, id)

	return visible, err
}

/*
NodeDeletedInTransaction checks if a committed node was deleted in this
transaction.
*/
func (tx *Transaction) NodeDeletedInTransaction(id uint64) bool {
	return tx.state.NodeIsDeletedInThisTx(id)
}

/*
nodeVisible looks up a node as this transaction sees it. The record is nil
for nodes created in this transaction.
*/
func (tx *Transaction) nodeVisible(r graphstorage.Reader, id uint64) (*graphstorage.NodeRecord, bool, error) {

	if tx.state.NodeIsDeletedInThisTx(id) {
		return nil, false, nil
	} else if tx.state.NodeIsAddedInThisTx(id) {
		return nil, true, nil
	}

	rec, err := r.Node(id)

	return rec, rec != nil, err
}

/*
nodeChanges returns the property changes of a node (nil if there are none).
*/
func (tx *Transaction) nodeChanges(id uint64) *txstate.PropertyChanges {
	if ns := tx.state.GetNodeState(id); ns != nil {
		return ns.Props
	}
	return nil
}
