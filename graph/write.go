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
	"fmt"

	"devt.de/krotik/graphcursor/graph/data"
	"devt.de/krotik/graphcursor/graph/graphstorage"
	"devt.de/krotik/graphcursor/graph/util"
)

// Tokens
// ======

/*
LabelGetOrCreateForName returns the id of a label. The label is created if it
does not exist yet.
*/
func (tx *Transaction) LabelGetOrCreateForName(name string) (int, error) {
	return tx.tokenGetOrCreate(util.LabelToken, name)
}

/*
RelationshipTypeGetOrCreateForName returns the id of a relationship type. The
type is created if it does not exist yet.
*/
func (tx *Transaction) RelationshipTypeGetOrCreateForName(name string) (int, error) {
	return tx.tokenGetOrCreate(util.RelationshipTypeToken, name)
}

/*
PropertyKeyGetOrCreateForName returns the id of a property key. The key is
created if it does not exist yet.
*/
func (tx *Transaction) PropertyKeyGetOrCreateForName(name string) (int, error) {
	return tx.tokenGetOrCreate(util.PropertyKeyToken, name)
}

func (tx *Transaction) tokenGetOrCreate(kind util.TokenKind, name string) (int, error) {
	if err := tx.checkOpen(); err != nil {
		return util.NoToken, err
	}
	return tx.kernel.gs.Tokens().Holder(kind).GetOrCreateID(name)
}

/*
checkToken checks that a token id exists.
*/
func (tx *Transaction) checkToken(kind util.TokenKind, id int) error {
	_, err := tx.kernel.gs.Tokens().Holder(kind).Name(id)
	return err
}

// Nodes
// =====

/*
NodeCreate creates a new node and returns its id.
*/
func (tx *Transaction) NodeCreate() (uint64, error) {
	if err := tx.checkOpen(); err != nil {
		return 0, err
	}

	id := tx.kernel.gs.NewNodeID()
	tx.state.NodeDoCreate(id)

	return id, nil
}

/*
NodeCreateWithLabels creates a new node with a list of labels.
*/
func (tx *Transaction) NodeCreateWithLabels(labels ...int) (uint64, error) {
	if err := tx.checkOpen(); err != nil {
		return 0, err
	}

	for _, l := range labels {
		if err := tx.checkToken(util.LabelToken, l); err != nil {
			return 0, err
		}
	}

	id, err := tx.NodeCreate()
	if err != nil {
		return 0, err
	}

	for _, l := range labels {
		if ns := tx.state.GetNodeState(id); ns == nil || !ns.Labels.IsAdded(l) {
			tx.state.NodeDoAddLabel(id, l)
		}
	}

	return id, nil
}

/*
NodeDelete deletes a node. Returns false if the node is not visible. A node
which still has relationships cannot be deleted.
*/
func (tx *Transaction) NodeDelete(id uint64) (bool, error) {
	if err := tx.checkOpen(); err != nil {
		return false, err
	}

	exists, err := tx.NodeExists(id)
	if err != nil || !exists {
		return false, err
	}

	degree, err := tx.Degree(id, data.SelectAll())
	if err != nil {
		return false, err
	} else if degree > 0 {
		return false, &util.KernelError{Type: util.ErrNodeHasRelationships,
			Detail: fmt.Sprintf("Node %v has %v relationship(s)", id, degree)}
	}

	tx.state.NodeDoDelete(id)

	return true, nil
}

/*
NodeDetachDelete deletes a node and all of its relationships. Returns the
number of deleted relationships.
*/
func (tx *Transaction) NodeDetachDelete(id uint64) (int, error) {
	if err := tx.checkOpen(); err != nil {
		return 0, err
	}

	tc := tx.cursors.AllocateRelationshipTraversalCursor(tx.ctx)
	defer tc.Close()

	if err := tx.Relationships(id, data.SelectAll(), tc); err != nil {
		return 0, err
	}

	var rels []uint64
	for tc.Next() {
		rels = append(rels, tc.RelationshipReference())
	}

	if err := tc.Err(); err != nil {
		return 0, err
	}

	for _, r := range rels {
		if _, err := tx.RelationshipDelete(r); err != nil {
			return 0, err
		}
	}

	_, err := tx.NodeDelete(id)

	return len(rels), err
}

/*
NodeAddLabel adds a label to a node. Returns false if the node has the label
already.
*/
func (tx *Transaction) NodeAddLabel(id uint64, label int) (bool, error) {
	labels, err := tx.nodeLabelsForWrite(id, label)
	if err != nil || containsToken(labels, label) {
		return false, err
	}

	tx.state.NodeDoAddLabel(id, label)

	return true, nil
}

/*
NodeRemoveLabel removes a label from a node. Returns false if the node does
not have the label.
*/
func (tx *Transaction) NodeRemoveLabel(id uint64, label int) (bool, error) {
	labels, err := tx.nodeLabelsForWrite(id, label)
	if err != nil || !containsToken(labels, label) {
		return false, err
	}

	tx.state.NodeDoRemoveLabel(id, label)

	return true, nil
}

/*
NodeSetProperty sets a property of a node and returns the previous value
(NoValue if there was none). Setting NoValue removes the property.
*/
func (tx *Transaction) NodeSetProperty(id uint64, key int, v data.Value) (data.Value, error) {
	if v.IsNoValue() {
		return tx.NodeRemoveProperty(id, key)
	}

	old, err := tx.nodePropertyForWrite(id, key)
	if err == nil {
		tx.state.NodeDoSetProperty(id, key, v)
	}

	return old, err
}

/*
NodeRemoveProperty removes a property of a node and returns the previous
value (NoValue if there was none).
*/
func (tx *Transaction) NodeRemoveProperty(id uint64, key int) (data.Value, error) {
	old, err := tx.nodePropertyForWrite(id, key)
	if err == nil && !old.IsNoValue() {
		tx.state.NodeDoRemoveProperty(id, key)
	}

	return old, err
}

/*
nodeForWrite looks up a node which is about to be changed.
*/
func (tx *Transaction) nodeForWrite(id uint64) (*graphstorage.NodeRecord, error) {
	r, err := tx.snapshot()
	if err != nil {
		return nil, err
	}

	rec, visible, err := tx.nodeVisible(r, id)
	if err == nil && !visible {
		err = &util.KernelError{Type: util.ErrEntityNotFound, Detail: fmt.Sprintf("Node %v", id)}
	}

	return rec, err
}

func (tx *Transaction) nodeLabelsForWrite(id uint64, label int) ([]int, error) {
	if err := tx.checkToken(util.LabelToken, label); err != nil {
		return nil, err
	}

	rec, err := tx.nodeForWrite(id)
	if err != nil {
		return nil, err
	}

	var labels []int
	if rec != nil {
		labels = rec.Labels
	}

	if ns := tx.state.GetNodeState(id); ns != nil {
		labels = ns.Labels.Apply(labels)
	}

	return labels, nil
}

func (tx *Transaction) nodePropertyForWrite(id uint64, key int) (data.Value, error) {
	if err := tx.checkToken(util.PropertyKeyToken, key); err != nil {
		return data.NoValue, err
	}

	rec, err := tx.nodeForWrite(id)
	if err != nil {
		return data.NoValue, err
	}

	if v, touched := tx.nodeChanges(id).Get(key); touched {
		return v, nil
	} else if rec != nil {
		if v, ok := rec.Props[key]; ok {
			return v, nil
		}
	}

	return data.NoValue, nil
}

// Relationships
// =============

/*
RelationshipCreate creates a new relationship between two nodes and returns
its id. Both nodes must be visible in this transaction.
*/
func (tx *Transaction) RelationshipCreate(start uint64, typ int, end uint64) (uint64, error) {
	if err := tx.checkOpen(); err != nil {
		return 0, err
	}

	if err := tx.checkToken(util.RelationshipTypeToken, typ); err != nil {
		return 0, err
	}

	for _, n := range []uint64{start, end} {
		if _, err := tx.nodeForWrite(n); err != nil {
			return 0, err
		}
	}

	id := tx.kernel.gs.NewRelationshipID()
	tx.state.RelationshipDoCreate(id, typ, start, end)

	return id, nil
}

/*
RelationshipDelete deletes a relationship. Returns false if the relationship
is not visible.
*/
func (tx *Transaction) RelationshipDelete(id uint64) (bool, error) {
	r, err := tx.snapshot()
	if err != nil {
		return false, err
	}

	item, visible, err := tx.relationshipVisible(r, id)
	if err != nil || !visible {
		return false, err
	}

	tx.state.RelationshipDoDelete(id, item.typ, item.start, item.end)

	return true, nil
}

/*
RelationshipSetProperty sets a property of a relationship and returns the
previous value (NoValue if there was none). Setting NoValue removes the
property.
*/
func (tx *Transaction) RelationshipSetProperty(id uint64, key int, v data.Value) (data.Value, error) {
	if v.IsNoValue() {
		return tx.RelationshipRemoveProperty(id, key)
	}

	item, old, err := tx.relationshipPropertyForWrite(id, key)
	if err == nil {
		tx.state.RelationshipDoSetProperty(id, item.typ, item.start, item.end, key, v)
	}

	return old, err
}

/*
RelationshipRemoveProperty removes a property of a relationship and returns
the previous value (NoValue if there was none).
*/
func (tx *Transaction) RelationshipRemoveProperty(id uint64, key int) (data.Value, error) {
	item, old, err := tx.relationshipPropertyForWrite(id, key)
	if err == nil && !old.IsNoValue() {
		tx.state.RelationshipDoRemoveProperty(id, item.typ, item.start, item.end, key)
	}

	return old, err
}

func (tx *Transaction) relationshipPropertyForWrite(id uint64, key int) (relItem, data.Value, error) {
	if err := tx.checkToken(util.PropertyKeyToken, key); err != nil {
		return relItem{}, data.NoValue, err
	}

	r, err := tx.snapshot()
	if err != nil {
		return relItem{}, data.NoValue, err
	}

	item, visible, err := tx.relationshipVisible(r, id)
	if err != nil {
		return item, data.NoValue, err
	} else if !visible {
		return item, data.NoValue, &util.KernelError{Type: util.ErrEntityNotFound,
			Detail: fmt.Sprintf("Relationship %v", id)}
	}

	if v, touched := tx.relationshipChanges(id).Get(key); touched {
		return item, v, nil
	} else if item.rec != nil {
		if v, ok := item.rec.Props[key]; ok {
			return item, v, nil
		}
	}

	return item, data.NoValue, nil
}
