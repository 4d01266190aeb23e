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
	"encoding/binary"
	"fmt"

	"devt.de/krotik/graphcursor/graph/data"
	"github.com/hashicorp/go-memdb"
)

/*
Table names of the memory store
*/
const (
	tableNode   = "node"
	tableRel    = "rel"
	tableLabel  = "label"
	tableDegree = "degree"
	tableEntry  = "entry"
	tableCount  = "count"
	tableIndex  = "index"
)

/*
Index names of the memory store
*/
const (
	indexID    = "id"
	indexType  = "type"
	indexStart = "start"
	indexEnd   = "end"
	indexName  = "name"
)

/*
keyIndexer builds order preserving compound keys. Unsigned ids are encoded as
8 byte big endian numbers, tokens as 4 byte big endian numbers with flipped
sign bit and byte slices are taken as they are. Keys built from fewer
arguments are prefixes of full keys so they can be used for range lookups.
*/
type keyIndexer struct {
	parts func(obj interface{}) []interface{}
}

/*
FromObject extracts the index key from an object.
*/
func (ki *keyIndexer) FromObject(raw interface{}) (bool, []byte, error) {
	key, err := encodeKey(ki.parts(raw)...)
	return err == nil, key, err
}

/*
FromArgs builds an index key from lookup arguments.
*/
func (ki *keyIndexer) FromArgs(args ...interface{}) ([]byte, error) {
	return encodeKey(args...)
}

/*
PrefixFromArgs builds an index key prefix from lookup arguments.
*/
func (ki *keyIndexer) PrefixFromArgs(args ...interface{}) ([]byte, error) {
	return encodeKey(args...)
}

/*
encodeKey encodes a list of key parts.
*/
func encodeKey(parts ...interface{}) ([]byte, error) {
	var buf []byte

	for _, p := range parts {
		switch v := p.(type) {
		case uint64:
			buf = binary.BigEndian.AppendUint64(buf, v)
		case int:
			buf = binary.BigEndian.AppendUint32(buf, uint32(int32(v))^(1<<31))
		case data.EntityType:
			buf = append(buf, byte(v))
		case []byte:
			buf = append(buf, v...)
		default:
			return nil, fmt.Errorf("Unsupported key part %T", p)
		}
	}

	return buf, nil
}

func idIndex(parts func(obj interface{}) []interface{}) *memdb.IndexSchema {
	return compoundIndex(indexID, parts)
}

func compoundIndex(name string, parts func(obj interface{}) []interface{}) *memdb.IndexSchema {
	return &memdb.IndexSchema{
		Name:    name,
		Unique:  true,
		Indexer: &keyIndexer{parts},
	}
}

/*
schema is the database schema of the memory store. All indexes are unique
compound indexes whose last part is the primary id.
*/
var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tableNode: {
			Name: tableNode,
			Indexes: map[string]*memdb.IndexSchema{
				indexID: idIndex(func(o interface{}) []interface{} {
					return []interface{}{o.(*NodeRecord).ID}
				}),
			},
		},
		tableRel: {
			Name: tableRel,
			Indexes: map[string]*memdb.IndexSchema{
				indexID: idIndex(func(o interface{}) []interface{} {
					return []interface{}{o.(*RelationshipRecord).ID}
				}),
				indexType: compoundIndex(indexType, func(o interface{}) []interface{} {
					r := o.(*RelationshipRecord)
					return []interface{}{r.Type, r.ID}
				}),
				indexStart: compoundIndex(indexStart, func(o interface{}) []interface{} {
					r := o.(*RelationshipRecord)
					return []interface{}{r.Start, r.Type, r.ID}
				}),
				indexEnd: compoundIndex(indexEnd, func(o interface{}) []interface{} {
					r := o.(*RelationshipRecord)
					return []interface{}{r.End, r.Type, r.ID}
				}),
			},
		},
		tableLabel: {
			Name: tableLabel,
			Indexes: map[string]*memdb.IndexSchema{
				indexID: idIndex(func(o interface{}) []interface{} {
					l := o.(*labelEntry)
					return []interface{}{l.Label, l.Node}
				}),
			},
		},
		tableDegree: {
			Name: tableDegree,
			Indexes: map[string]*memdb.IndexSchema{
				indexID: idIndex(func(o interface{}) []interface{} {
					d := o.(*DegreeRecord)
					return []interface{}{d.Node, d.Type}
				}),
			},
		},
		tableEntry: {
			Name: tableEntry,
			Indexes: map[string]*memdb.IndexSchema{
				indexID: idIndex(func(o interface{}) []interface{} {
					e := o.(*IndexEntry)
					return []interface{}{e.Index, e.Key, e.Entity}
				}),
			},
		},
		tableCount: {
			Name: tableCount,
			Indexes: map[string]*memdb.IndexSchema{
				indexID: idIndex(func(o interface{}) []interface{} {
					c := o.(*countRecord)
					return []interface{}{c.Entity, c.Token}
				}),
			},
		},
		tableIndex: {
			Name: tableIndex,
			Indexes: map[string]*memdb.IndexSchema{
				indexID: idIndex(func(o interface{}) []interface{} {
					return []interface{}{o.(*data.IndexDescriptor).ID}
				}),
				indexName: {
					Name:    indexName,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Name"},
				},
			},
		},
	},
}
