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
	"sort"

	"devt.de/krotik/graphcursor/graph/data"
	"devt.de/krotik/graphcursor/graph/util"
)

/*
AnyToken can be used in count lookups to count all entities of a class.
*/
const AnyToken = -1

/*
Storage interface models the committed store of a graph kernel.
*/
type Storage interface {

	/*
	   Name returns the name of the Storage instance.
	*/
	Name() string

	/*
		Tokens returns the token registry of the store.
	*/
	Tokens() *util.TokenRegistry

	/*
		NewNodeID allocates a new node id. Ids are never reused.
	*/
	NewNodeID() uint64

	/*
		NewRelationshipID allocates a new relationship id. Ids are never reused.
	*/
	NewRelationshipID() uint64

	/*
		Snapshot returns a reader on the latest committed state. The reader is
		not affected by later commits.
	*/
	Snapshot() (Reader, error)

	/*
		Update runs a function in a write transaction. The changes become
		visible atomically if the function returns no error.
	*/
	Update(fn func(w Writer) error) error

	/*
		CreateIndex creates and populates a new value index.
	*/
	CreateIndex(name string, entity data.EntityType, token int, keys []int) (data.IndexDescriptor, error)

	/*
		Close closes the storage.
	*/
	Close() error
}

/*
Iterator iterates over store results. Err reports the error which stopped the
iteration (if any).
*/
type Iterator[T any] interface {
	Next() (T, bool)
	Err() error
}

/*
Reader reads committed graph data. Missing entities are reported as nil
records without an error.
*/
type Reader interface {

	/*
		Node looks up a single node.
	*/
	Node(id uint64) (*NodeRecord, error)

	/*
		Relationship looks up a single relationship.
	*/
	Relationship(id uint64) (*RelationshipRecord, error)

	/*
		Nodes iterates over all nodes in id order.
	*/
	Nodes(desc bool) (Iterator[*NodeRecord], error)

	/*
		Relationships iterates over all relationships in id order.
	*/
	Relationships(desc bool) (Iterator[*RelationshipRecord], error)

	/*
		NodesWithLabel iterates over the ids of all nodes with a label in id order.
	*/
	NodesWithLabel(label int, desc bool) (Iterator[uint64], error)

	/*
		RelationshipsWithType iterates over the ids of all relationships of a
		type in id order.
	*/
	RelationshipsWithType(typ int, desc bool) (Iterator[uint64], error)

	/*
		NodeRelationships iterates over the relationships of a node with a
		given type and direction in id order.
	*/
	NodeRelationships(node uint64, typ int, dir data.Direction) (Iterator[*RelationshipRecord], error)

	/*
		Degrees returns the degree counters of a node ordered by type.
	*/
	Degrees(node uint64) ([]*DegreeRecord, error)

	/*
		IndexSeek iterates over the entries of a value index within a key range.
	*/
	IndexSeek(index int, sr data.SeekRange, desc bool) (Iterator[*IndexEntry], error)

	/*
		Indexes returns all value index descriptors ordered by id.
	*/
	Indexes() ([]data.IndexDescriptor, error)

	/*
		Count returns the number of nodes or relationships with a token (or
		AnyToken for all).
	*/
	Count(entity data.EntityType, token int) (int64, error)
}

/*
Writer modifies committed graph data within a write transaction. Label
entries, degree counters, counts and index entries are maintained by the
writer.
*/
type Writer interface {
	Reader

	/*
		PutNode inserts or replaces a node.
	*/
	PutNode(rec *NodeRecord) error

	/*
		DeleteNode removes a node. The node must not have relationships.
	*/
	DeleteNode(id uint64) error

	/*
		PutRelationship inserts a relationship or replaces its properties.
		Type, start and end node of an existing relationship cannot change.
	*/
	PutRelationship(rec *RelationshipRecord) error

	/*
		DeleteRelationship removes a relationship.
	*/
	DeleteRelationship(id uint64) error
}

// Records
// =======

/*
NodeRecord is a committed node. Records are immutable once stored.
*/
type NodeRecord struct {
	ID     uint64
	Labels []int // Sorted label ids
	Props  map[int]data.Value
}

/*
HasLabel checks if the node has a given label.
*/
func (n *NodeRecord) HasLabel(label int) bool {
	i := sort.SearchInts(n.Labels, label)
	return i < len(n.Labels) && n.Labels[i] == label
}

/*
Copy returns a deep copy of this record.
*/
func (n *NodeRecord) Copy() *NodeRecord {
	return &NodeRecord{n.ID, append([]int(nil), n.Labels...), copyProps(n.Props)}
}

/*
RelationshipRecord is a committed relationship. Records are immutable once stored.
*/
type RelationshipRecord struct {
	ID    uint64
	Type  int
	Start uint64
	End   uint64
	Props map[int]data.Value
}

/*
Copy returns a deep copy of this record.
*/
func (r *RelationshipRecord) Copy() *RelationshipRecord {
	return &RelationshipRecord{r.ID, r.Type, r.Start, r.End, copyProps(r.Props)}
}

/*
DegreeRecord holds the relationship counters of a node for one type.
*/
type DegreeRecord struct {
	Node   uint64
	Type   int
	Counts [3]int64 // Counts by direction
}

/*
Total returns the sum of all directions.
*/
func (d *DegreeRecord) Total() int64 {
	return d.Counts[data.Outgoing] + d.Counts[data.Incoming] + d.Counts[data.Loop]
}

/*
IndexEntry is a single value index entry.
*/
type IndexEntry struct {
	Index  int          // Index id
	Key    []byte       // Encoded values
	Entity uint64       // Indexed entity
	Values []data.Value // Indexed values
}

/*
labelEntry links a label to a node.
*/
type labelEntry struct {
	Label int
	Node  uint64
}

/*
countRecord is a counter of entities.
*/
type countRecord struct {
	Entity data.EntityType
	Token  int
	Count  int64
}

func copyProps(props map[int]data.Value) map[int]data.Value {
	res := make(map[int]data.Value, len(props))
	for k, v := range props {
		res[k] = v
	}
	return res
}
