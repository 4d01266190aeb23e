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
)

/*
NodesGetCount returns the number of nodes visible in this transaction.
*/
func (tx *Transaction) NodesGetCount() (int64, error) {
	count, err := tx.storeCount(data.NodeEntity, graphstorage.AnyToken)
	return count + tx.state.AddedAndRemovedNodes().Delta(), err
}

/*
RelationshipsGetCount returns the number of relationships visible in this
transaction.
*/
func (tx *Transaction) RelationshipsGetCount() (int64, error) {
	count, err := tx.storeCount(data.RelationshipEntity, graphstorage.AnyToken)
	return count + tx.state.AddedAndRemovedRelationships().Delta(), err
}

/*
CountsForNode returns the number of visible nodes with a given label.
*/
func (tx *Transaction) CountsForNode(label int) (int64, error) {
	r, err := tx.snapshot()
	if err != nil {
		return 0, err
	}

	count, err := r.Count(data.NodeEntity, label)
	if err != nil {
		return 0, err
	}

	changes := tx.state.NodesWithLabelChanged(label)
	if changes != nil {
		count += changes.Delta()
	}

	// Deleted committed nodes keep their committed labels

	for _, id := range tx.state.AddedAndRemovedNodes().Removed() {
		if changes != nil && changes.IsRemoved(id) {
			continue
		}

		rec, err := r.Node(id)
		if err != nil {
			return 0, err
		} else if rec != nil && rec.HasLabel(label) {
			count--
		}
	}

	return count, nil
}

/*
CountsForRelationship returns the number of visible relationships of a given
type.
*/
func (tx *Transaction) CountsForRelationship(typ int) (int64, error) {
	count, err := tx.storeCount(data.RelationshipEntity, typ)
	if err != nil {
		return 0, err
	}

	if changes := tx.state.RelationshipsWithTypeChanged(typ); changes != nil {
		count += changes.Delta()
	}

	return count, nil
}

func (tx *Transaction) storeCount(entity data.EntityType, token int) (int64, error) {
	r, err := tx.snapshot()
	if err != nil {
		return 0, err
	}
	return r.Count(entity, token)
}
