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
RelationshipTraversalCursor iterates over the relationships of one node. The
node from which the cursor was positioned is the origin of all results.
*/
type RelationshipTraversalCursor struct {
	*cursorBase
	relationshipView
	origin uint64
	dir    data.Direction
}

func (c *RelationshipTraversalCursor) release() {
	c.clear()
}

func (c *RelationshipTraversalCursor) set(item relItem, dir data.Direction) {
	c.item, c.valid, c.dir = item, true, dir

	if c.tracer != nil {
		c.tracer.OnRelationship(item.id)
	}
}

/*
OriginNodeReference returns the node from which the cursor was positioned.
*/
func (c *RelationshipTraversalCursor) OriginNodeReference() uint64 {
	return c.origin
}

/*
OtherNodeReference returns the node at the other end of the current
relationship. This is the origin for loops.
*/
func (c *RelationshipTraversalCursor) OtherNodeReference() uint64 {
	if c.item.start == c.origin {
		return c.item.end
	}
	return c.item.start
}

/*
Direction returns the direction of the current relationship as seen from the
origin.
*/
func (c *RelationshipTraversalCursor) Direction() data.Direction {
	return c.dir
}

/*
Other positions a node cursor on the other node of the current relationship.
*/
func (c *RelationshipTraversalCursor) Other(nc *NodeCursor) error {
	return c.tx.SingleNode(c.OtherNodeReference(), nc)
}

/*
segment is the part of a traversal for one type and direction.
*/
type segment struct {
	typ   int
	dir   data.Direction
	added []relItem                    // Relationships created in the transaction
	tr    *txstate.TypedRelationships // Frozen changes (may be nil)
}

/*
Relationships positions a traversal cursor on the relationships of a node in
a selection. Results are ordered by type and direction (OUTGOING, INCOMING,
LOOP). Committed relationships come before the relationships created in this
transaction. The cursor has no results if the node is not visible.
*/
func (tx *Transaction) Relationships(node uint64, sel data.Selection, c *RelationshipTraversalCursor) error {

	if err := c.checkPosition(tx); err != nil {
		return err
	}

	r, err := tx.snapshot()

	var visible bool
	var degrees []*graphstorage.DegreeRecord

	if err == nil {
		if _, visible, err = tx.nodeVisible(r, node); visible && err == nil {
			degrees, err = r.Degrees(node)
		}
	}

	if err != nil {
		c.fail(err)
		return c.err
	}

	c.origin = node

	if !visible {
		c.empty()
		return nil
	}

	changes := tx.state.GetNodeState(node).RelationshipSnapshot()

	types := sel.Types()
	if sel.AllTypes() {
		types = mergedTypes(degrees, changes)
	}

	var segments []*segment

	for _, t := range types {
		for _, d := range data.Directions {
			if !sel.IncludesDirection(d) {
				continue
			}

			seg := &segment{typ: t, dir: d, tr: changes[t]}

			if seg.tr != nil {
				for _, id := range seg.tr.Added(d) {
					seg.added = append(seg.added, tx.addedRelationship(id))
				}
			}

			segments = append(segments, seg)
		}
	}

	var cur *overlay[relItem]
	var seg *segment

	c.position(func() (bool, error) {
		for {
			if cur == nil {
				if len(segments) == 0 {
					return false, nil
				}

				seg, segments = segments[0], segments[1:]

				it, err := r.NodeRelationships(node, seg.typ, seg.dir)
				if err != nil {
					return false, err
				}

				var skip func(relItem) bool
				if tr, dir := seg.tr, seg.dir; tr != nil {
					skip = func(item relItem) bool {
						return tr.IsRemoved(dir, item.id)
					}
				}

				cur = newOverlay(mapIterator(it, relItemOf), seg.added, skip, nil, false)
			}

			item, ok, err := cur.next()
			if err != nil {
				return false, err
			} else if ok {
				c.set(item, seg.dir)
				return true, nil
			}

			cur = nil
		}
	})

	return nil
}

/*
RelationshipGroupCursor iterates over the relationship groups of a node. A
group holds the relationships of one type split by direction. Groups are
ordered by type; types without relationships are omitted.
*/
type RelationshipGroupCursor struct {
	*cursorBase
	node   uint64
	typ    int
	counts [3]int64
	valid  bool
}

/*
relGroup is a single relationship group.
*/
type relGroup struct {
	typ    int
	counts [3]int64
}

func (c *RelationshipGroupCursor) release() {
	c.typ, c.counts, c.valid = 0, [3]int64{}, false
}

/*
Type returns the relationship type of the current group.
*/
func (c *RelationshipGroupCursor) Type() int {
	return c.typ
}

/*
OutgoingCount returns the number of outgoing relationships of the current group.
*/
func (c *RelationshipGroupCursor) OutgoingCount() int64 {
	return c.counts[data.Outgoing]
}

/*
IncomingCount returns the number of incoming relationships of the current group.
*/
func (c *RelationshipGroupCursor) IncomingCount() int64 {
	return c.counts[data.Incoming]
}

/*
LoopCount returns the number of loops of the current group.
*/
func (c *RelationshipGroupCursor) LoopCount() int64 {
	return c.counts[data.Loop]
}

/*
TotalCount returns the number of all relationships of the current group.
*/
func (c *RelationshipGroupCursor) TotalCount() int64 {
	return c.counts[data.Outgoing] + c.counts[data.Incoming] + c.counts[data.Loop]
}

/*
Outgoing positions a traversal cursor on the outgoing relationships of the
current group.
*/
func (c *RelationshipGroupCursor) Outgoing(tc *RelationshipTraversalCursor) error {
	return c.traverse(data.Outgoing, tc)
}

/*
Incoming positions a traversal cursor on the incoming relationships of the
current group.
*/
func (c *RelationshipGroupCursor) Incoming(tc *RelationshipTraversalCursor) error {
	return c.traverse(data.Incoming, tc)
}

/*
Loops positions a traversal cursor on the loops of the current group.
*/
func (c *RelationshipGroupCursor) Loops(tc *RelationshipTraversalCursor) error {
	return c.traverse(data.Loop, tc)
}

func (c *RelationshipGroupCursor) traverse(dir data.Direction, tc *RelationshipTraversalCursor) error {
	tx := c.factory.tx

	if !c.valid {
		if err := tc.checkPosition(tx); err != nil {
			return err
		}
		tc.empty()
		return nil
	}

	return tx.Relationships(c.node, data.NewSelection([]data.Direction{dir}, c.typ), tc)
}

/*
RelationshipGroups positions a group cursor on the relationship groups of a
node. The cursor has no results if the node is not visible.
*/
func (tx *Transaction) RelationshipGroups(node uint64, c *RelationshipGroupCursor) error {

	if err := c.checkPosition(tx); err != nil {
		return err
	}

	r, err := tx.snapshot()

	var visible bool
	var degrees []*graphstorage.DegreeRecord

	if err == nil {
		if _, visible, err = tx.nodeVisible(r, node); visible && err == nil {
			degrees, err = r.Degrees(node)
		}
	}

	if err != nil {
		c.fail(err)
		return c.err
	}

	c.node = node

	if !visible {
		c.empty()
		return nil
	}

	changes := tx.state.GetNodeState(node).RelationshipSnapshot()
	stored := make(map[int]*graphstorage.DegreeRecord)

	for _, d := range degrees {
		stored[d.Type] = d
	}

	var groups []relGroup

	for _, t := range mergedTypes(degrees, changes) {
		g := relGroup{typ: t}

		for _, d := range data.Directions {
			var count int64
			if rec, ok := stored[t]; ok {
				count = rec.Counts[d]
			}
			g.counts[d] = effectiveDegree(count, delta(changes[t], d))
		}

		if g.counts[data.Outgoing]+g.counts[data.Incoming]+g.counts[data.Loop] > 0 {
			groups = append(groups, g)
		}
	}

	c.position(func() (bool, error) {
		if len(groups) == 0 {
			return false, nil
		}

		g := groups[0]
		groups = groups[1:]

		c.typ, c.counts, c.valid = g.typ, g.counts, true

		if c.tracer != nil {
			c.tracer.OnRelationshipGroup(g.typ)
		}

		return true, nil
	})

	return nil
}

// Degrees
// =======

/*
Degree returns the number of relationships of a node in a selection. The
count is taken from the committed degree counters plus the changes of this
transaction. Returns 0 if the node is not visible.
*/
func (tx *Transaction) Degree(node uint64, sel data.Selection) (int64, error) {

	r, err := tx.snapshot()
	if err != nil {
		return 0, err
	}

	_, visible, err := tx.nodeVisible(r, node)
	if err != nil || !visible {
		return 0, err
	}

	degrees, err := r.Degrees(node)
	if err != nil {
		return 0, err
	}

	ns := tx.state.GetNodeState(node)
	seen := make(map[int]bool)

	var total int64

	count := func(typ int, counts [3]int64) {
		tr := ns.Relationships(typ)
		for _, d := range data.Directions {
			if sel.IncludesDirection(d) {
				total += effectiveDegree(counts[d], delta(tr, d))
			}
		}
	}

	for _, d := range degrees {
		if sel.IncludesType(d.Type) {
			seen[d.Type] = true
			count(d.Type, d.Counts)
		}
	}

	for _, t := range ns.RelationshipTypes() {
		if !seen[t] && sel.IncludesType(t) {
			count(t, [3]int64{})
		}
	}

	return total, nil
}

/*
DegreeWithMax returns the number of relationships of a node in a selection
but at most max. The changes of this transaction are applied before the
count is capped.
*/
func (tx *Transaction) DegreeWithMax(max int64, node uint64, sel data.Selection) (int64, error) {
	degree, err := tx.Degree(node, sel)

	if degree > max {
		degree = max
	}

	return degree, err
}

/*
effectiveDegree combines a committed count with the change of a transaction.
*/
func effectiveDegree(storeCount, delta int64) int64 {
	return storeCount + delta
}

/*
delta returns the degree change of one direction (0 without changes).
*/
func delta(tr *txstate.TypedRelationships, dir data.Direction) int64 {
	if tr == nil {
		return 0
	}
	return tr.Delta(dir)
}

/*
mergedTypes returns the types of committed degree counters and transaction
changes in ascending order.
*/
func mergedTypes(degrees []*graphstorage.DegreeRecord, changes map[int]*txstate.TypedRelationships) []int {
	seen := make(map[int]bool)
	var res []int

	for _, d := range degrees {
		if !seen[d.Type] {
			seen[d.Type] = true
			res = append(res, d.Type)
		}
	}

	for t := range changes {
		if !seen[t] {
			seen[t] = true
			res = append(res, t)
		}
	}

	sort.Ints(res)

	return res
}
