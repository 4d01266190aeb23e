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
	"bytes"
	"fmt"
	"sort"

	"devt.de/krotik/graphcursor/graph/data"
	"devt.de/krotik/graphcursor/graph/graphstorage"
	"devt.de/krotik/graphcursor/graph/util"
	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

/*
IndexReadSession gives read access to a value index.
*/
type IndexReadSession struct {
	Descriptor data.IndexDescriptor
}

/*
IndexReadSession opens a read session on a value index.
*/
func (tx *Transaction) IndexReadSession(desc data.IndexDescriptor) (*IndexReadSession, error) {

	r, err := tx.snapshot()
	if err != nil {
		return nil, err
	}

	indexes, err := r.Indexes()
	if err != nil {
		return nil, err
	}

	for _, d := range indexes {
		if d.ID == desc.ID && d.Name == desc.Name {
			return &IndexReadSession{d}, nil
		}
	}

	return nil, &util.KernelError{Type: util.ErrIndexNotFound, Detail: desc.Name}
}

/*
valueIndexCursor iterates over value index entries.
*/
type valueIndexCursor struct {
	*cursorBase
	index       data.IndexDescriptor
	entry       *graphstorage.IndexEntry
	needsValues bool
}

func (c *valueIndexCursor) release() {
	c.entry = nil
}

/*
NumberOfProperties returns the number of indexed properties.
*/
func (c *valueIndexCursor) NumberOfProperties() int {
	return len(c.index.PropertyKeys)
}

/*
PropertyKey returns the key of an indexed property.
*/
func (c *valueIndexCursor) PropertyKey(i int) int {
	return c.index.PropertyKeys[i]
}

/*
HasValue returns true if the cursor was asked to return the indexed values.
*/
func (c *valueIndexCursor) HasValue() bool {
	return c.needsValues
}

/*
PropertyValue returns the value of an indexed property of the current entry.
*/
func (c *valueIndexCursor) PropertyValue(i int) data.Value {
	if c.entry == nil || i < 0 || i >= len(c.entry.Values) {
		return data.NoValue
	}
	return c.entry.Values[i]
}

func (c *valueIndexCursor) positionBatch(tx *Transaction, b *scanBatch, set func(*graphstorage.IndexEntry)) error {

	if err := c.checkPosition(tx); err != nil {
		return err
	}

	c.index, c.needsValues = b.index, b.needsValues

	c.position(advanceWith(newOverlay[*graphstorage.IndexEntry](
		&sliceIterator[*graphstorage.IndexEntry]{b.entries}, nil, nil, nil, false), set))

	return nil
}

/*
NodeValueIndexCursor iterates over the nodes of a value index.
*/
type NodeValueIndexCursor struct {
	valueIndexCursor
}

func (c *NodeValueIndexCursor) set(e *graphstorage.IndexEntry) {
	c.entry = e

	if c.tracer != nil {
		c.tracer.OnNode(e.Entity)
	}
}

/*
NodeReference returns the id of the current node.
*/
func (c *NodeValueIndexCursor) NodeReference() uint64 {
	if c.entry == nil {
		return 0
	}
	return c.entry.Entity
}

/*
Node positions a node cursor on the current node.
*/
func (c *NodeValueIndexCursor) Node(nc *NodeCursor) error {
	tx := c.factory.tx

	if c.entry == nil {
		if err := nc.checkPosition(tx); err != nil {
			return err
		}
		nc.empty()
		return nil
	}

	return tx.SingleNode(c.entry.Entity, nc)
}

func (c *NodeValueIndexCursor) positionBatch(tx *Transaction, r graphstorage.Reader, b *scanBatch) error {
	return c.valueIndexCursor.positionBatch(tx, b, c.set)
}

/*
RelationshipValueIndexCursor iterates over the relationships of a value index.
*/
type RelationshipValueIndexCursor struct {
	valueIndexCursor
}

func (c *RelationshipValueIndexCursor) set(e *graphstorage.IndexEntry) {
	c.entry = e

	if c.tracer != nil {
		c.tracer.OnRelationship(e.Entity)
	}
}

/*
RelationshipReference returns the id of the current relationship.
*/
func (c *RelationshipValueIndexCursor) RelationshipReference() uint64 {
	if c.entry == nil {
		return 0
	}
	return c.entry.Entity
}

/*
Relationship positions a relationship scan cursor on the current relationship.
*/
func (c *RelationshipValueIndexCursor) Relationship(rc *RelationshipScanCursor) error {
	tx := c.factory.tx

	if c.entry == nil {
		if err := rc.checkPosition(tx); err != nil {
			return err
		}
		rc.empty()
		return nil
	}

	return tx.SingleRelationship(c.entry.Entity, rc)
}

func (c *RelationshipValueIndexCursor) positionBatch(tx *Transaction, r graphstorage.Reader, b *scanBatch) error {
	return c.valueIndexCursor.positionBatch(tx, b, c.set)
}

// Value index operations
// ======================

/*
NodeIndexSeek positions a value index cursor on all nodes which match a list
of predicates. There must be one predicate for each indexed property in key
order. Ordered results are sorted by values and then by node id.
*/
func (tx *Transaction) NodeIndexSeek(session *IndexReadSession, c *NodeValueIndexCursor,
	constraints data.IndexQueryConstraints, queries ...data.PropertyIndexQuery) error {

	return tx.indexSeek(data.NodeEntity, session, &c.valueIndexCursor, constraints, queries, c.set)
}

/*
NodeIndexScan positions a value index cursor on all nodes of a value index.
*/
func (tx *Transaction) NodeIndexScan(session *IndexReadSession, c *NodeValueIndexCursor,
	constraints data.IndexQueryConstraints) error {

	return tx.NodeIndexSeek(session, c, constraints, scanQueries(session)...)
}

/*
RelationshipIndexSeek positions a value index cursor on all relationships
which match a list of predicates. There must be one predicate for each indexed
property in key order. Ordered results are sorted by values and then by
relationship id.
*/
func (tx *Transaction) RelationshipIndexSeek(session *IndexReadSession, c *RelationshipValueIndexCursor,
	constraints data.IndexQueryConstraints, queries ...data.PropertyIndexQuery) error {

	return tx.indexSeek(data.RelationshipEntity, session, &c.valueIndexCursor, constraints, queries, c.set)
}

/*
RelationshipIndexScan positions a value index cursor on all relationships of
a value index.
*/
func (tx *Transaction) RelationshipIndexScan(session *IndexReadSession, c *RelationshipValueIndexCursor,
	constraints data.IndexQueryConstraints) error {

	return tx.RelationshipIndexSeek(session, c, constraints, scanQueries(session)...)
}

/*
indexSeek merges the committed entries of a value index with the entities
which were changed in this transaction. Changed entities are judged on their
current values.
*/
func (tx *Transaction) indexSeek(entity data.EntityType, session *IndexReadSession, c *valueIndexCursor,
	constraints data.IndexQueryConstraints, queries []data.PropertyIndexQuery,
	set func(*graphstorage.IndexEntry)) error {

	if err := c.checkPosition(tx); err != nil {
		return err
	}

	if session == nil || session.Descriptor.Entity != entity {
		return &util.KernelError{Type: util.ErrInvalidArgument,
			Detail: fmt.Sprintf("Index session is not for %v entities", entity)}
	}

	desc := session.Descriptor

	if err := validateQueries(desc, queries); err != nil {
		return err
	}

	r, err := tx.snapshot()
	descending := constraints.Order == data.Descending

	var it graphstorage.Iterator[*graphstorage.IndexEntry]
	var touched *roaring64.Bitmap
	var added []*graphstorage.IndexEntry

	if err == nil {
		if it, err = r.IndexSeek(desc.ID, data.NewSeekRange(queries), descending); err == nil {
			touched, added, err = tx.indexChanges(r, desc, queries)
		}
	}

	if err != nil {
		c.fail(err)
		return c.err
	}

	if c.tracer != nil {
		c.tracer.OnIndexSeek()
	}

	var compare func(a, b *graphstorage.IndexEntry) int

	if constraints.Order != data.Unordered {
		compare = compareEntries
	}

	sort.Slice(added, func(i, j int) bool {
		return compareEntries(added[i], added[j]) < 0
	})

	if descending {
		added = reversed(added)
	}

	c.index, c.needsValues = desc, constraints.NeedsValues

	c.position(advanceWith(newOverlay(it, added, func(e *graphstorage.IndexEntry) bool {
		return touched.Contains(e.Entity) || !data.AcceptsAll(queries, e.Values)
	}, compare, descending), set))

	return nil
}

/*
indexChanges returns all entities which were changed in this transaction and
the index entries for the changed entities which match the predicates.
*/
func (tx *Transaction) indexChanges(r graphstorage.Reader, desc data.IndexDescriptor,
	queries []data.PropertyIndexQuery) (*roaring64.Bitmap, []*graphstorage.IndexEntry, error) {

	var added []*graphstorage.IndexEntry

	touched := roaring64.New()
	st := tx.state

	if desc.Entity == data.NodeEntity {
		touched.AddMany(st.AddedAndRemovedNodes().Added())
		touched.AddMany(st.AddedAndRemovedNodes().Removed())
		touched.AddMany(st.ModifiedNodes())
	} else {
		touched.AddMany(st.AddedAndRemovedRelationships().Added())
		touched.AddMany(st.AddedAndRemovedRelationships().Removed())
		touched.AddMany(st.ModifiedRelationships())
	}

	for _, id := range touched.ToArray() {
		var props map[int]data.Value
		var match bool

		if desc.Entity == data.NodeEntity {
			rec, visible, err := tx.nodeVisible(r, id)
			if err != nil {
				return nil, nil, err
			} else if !visible {
				continue
			}

			var labels []int
			if rec != nil {
				labels, props = rec.Labels, rec.Props
			}

			if ns := st.GetNodeState(id); ns != nil {
				labels = ns.Labels.Apply(labels)
			}

			props = tx.nodeChanges(id).Apply(props)
			match = containsToken(labels, desc.Token)

		} else {
			item, visible, err := tx.relationshipVisible(r, id)
			if err != nil {
				return nil, nil, err
			} else if !visible {
				continue
			}

			if item.rec != nil {
				props = item.rec.Props
			}

			props = tx.relationshipChanges(id).Apply(props)
			match = item.typ == desc.Token
		}

		if !match {
			continue
		}

		if values := indexedValues(desc, props); values != nil && data.AcceptsAll(queries, values) {
			added = append(added, &graphstorage.IndexEntry{Index: desc.ID,
				Key: data.EncodeValues(values), Entity: id, Values: values})
		}
	}

	return touched, added, nil
}

/*
validateQueries checks that a list of predicates fits a value index.
*/
func validateQueries(desc data.IndexDescriptor, queries []data.PropertyIndexQuery) error {

	if len(queries) != len(desc.PropertyKeys) {
		return &util.KernelError{Type: util.ErrIndexQuery,
			Detail: fmt.Sprintf("%v requires %v predicate(s) but got %v", desc, len(desc.PropertyKeys), len(queries))}
	}

	for i, q := range queries {
		if q.PropertyKey != desc.PropertyKeys[i] {
			return &util.KernelError{Type: util.ErrIndexQuery,
				Detail: fmt.Sprintf("Predicate %v does not match key %v of %v", q, desc.PropertyKeys[i], desc)}
		}

		if err := q.Validate(); err != nil {
			return &util.KernelError{Type: util.ErrIndexQuery, Detail: err.Error()}
		}
	}

	return nil
}

/*
scanQueries returns predicates which match all entries of an index.
*/
func scanQueries(session *IndexReadSession) []data.PropertyIndexQuery {
	var res []data.PropertyIndexQuery

	if session != nil {
		for _, k := range session.Descriptor.PropertyKeys {
			res = append(res, data.Exists(k))
		}
	}

	return res
}

/*
indexedValues returns the values of all indexed properties or nil if one is
missing.
*/
func indexedValues(desc data.IndexDescriptor, props map[int]data.Value) []data.Value {
	values := make([]data.Value, len(desc.PropertyKeys))

	for i, k := range desc.PropertyKeys {
		v, ok := props[k]
		if !ok {
			return nil
		}
		values[i] = v
	}

	return values
}

/*
compareEntries orders index entries by key and entity.
*/
func compareEntries(a, b *graphstorage.IndexEntry) int {
	if c := bytes.Compare(a.Key, b.Key); c != 0 {
		return c
	}
	return compareIDs(a.Entity, b.Entity)
}

/*
containsToken checks if a sorted list contains a token.
*/
func containsToken(tokens []int, token int) bool {
	i := sort.SearchInts(tokens, token)
	return i < len(tokens) && tokens[i] == token
}
