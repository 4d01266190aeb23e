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
	"math"
	"sync/atomic"

	"devt.de/krotik/graphcursor/graph/data"
	"devt.de/krotik/graphcursor/graph/graphstorage"
	"devt.de/krotik/graphcursor/graph/util"
	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

/*
scanBatch is a batch of a partition.
*/
type scanBatch struct {
	ids         []uint64                   // Entity ids (id domains)
	entries     []*graphstorage.IndexEntry // Index entries (index domains)
	index       data.IndexDescriptor       // Scanned index (index domains)
	needsValues bool                       // Flag if index values are requested
}

/*
batchCursor is a cursor which can be positioned on a partition batch.
*/
type batchCursor interface {
	Cursor
	base() *cursorBase
	positionBatch(tx *Transaction, r graphstorage.Reader, b *scanBatch) error
}

/*
PartitionedScan splits a scan into disjoint partitions which can be consumed
by independent workers. The scan reads the snapshot of its transaction, which
has no changes when the scan is created. Partitions are handed out with a
single atomic counter.
*/
type PartitionedScan[C batchCursor] struct {
	tx          *Transaction
	reader      graphstorage.Reader        // Snapshot of the store
	ids         *roaring64.Bitmap          // Id domain (nil for index domains)
	bounds      []uint64                   // Lowest id of each partition
	entries     []*graphstorage.IndexEntry // Index domain
	index       data.IndexDescriptor       // Scanned index
	needsValues bool                       // Flag if index values are requested
	n           int                        // Number of partitions
	next        *atomic.Int64              // Next partition to hand out
	closed      *atomic.Bool               // Flag if the scan was closed
}

/*
NumberOfPartitions returns the number of partitions of this scan. This may be
less than requested if the scan has fewer entities than partitions.
*/
func (ps *PartitionedScan[C]) NumberOfPartitions() int {
	return ps.n
}

/*
Close closes the scan. Batches which are reserved after closing are empty.
*/
func (ps *PartitionedScan[C]) Close() {
	ps.closed.Store(true)
}

/*
Reserve reserves the next free partition. Returns false if all partitions
were handed out or if the scan or its transaction are closed.
*/
func (ps *PartitionedScan[C]) Reserve() (*Partition[C], bool) {

	if ps.closed.Load() || !ps.tx.IsOpen() {
		return nil, false
	}

	i := int(ps.next.Add(1) - 1)
	if i >= ps.n {
		return nil, false
	}

	p := &Partition[C]{scan: ps, index: i}

	if ps.ids != nil {
		p.it = ps.ids.Iterator()
		p.it.AdvanceIfNeeded(ps.bounds[i])

		if i+1 < ps.n {
			p.hi = ps.bounds[i+1]
		} else {
			p.last = true
		}

	} else {
		p.pos, p.end = i*len(ps.entries)/ps.n, (i+1)*len(ps.entries)/ps.n
	}

	return p, true
}

/*
ReservePartition reserves the next free partition and positions a cursor on
all of its entities. Returns false if there are no more partitions.
*/
func (ps *PartitionedScan[C]) ReservePartition(c C) bool {
	p, ok := ps.Reserve()
	return ok && p.reserve(c, math.MaxInt, true)
}

/*
Partition is a reserved partition of a scan. A partition must only be used by
the worker which reserved it.
*/
type Partition[C batchCursor] struct {
	scan  *PartitionedScan[C]
	index int                     // Partition number
	it    roaring64.IntPeekable64 // Position in the id domain
	hi    uint64                  // First id of the next partition
	last  bool                    // Flag if this is the last partition
	pos   int                     // Position in the index domain
	end   int                     // End of this partition in the index domain
	done  bool                    // Flag if all batches were handed out
}

/*
Index returns the number of this partition.
*/
func (p *Partition[C]) Index() int {
	return p.index
}

/*
ReserveBatch positions a cursor on the next batch of this partition. A batch
holds at most sizeHint entities (DefaultBatchSize if sizeHint is less than
one). Returns false if there are no more batches or if the scan, its
transaction or the cursor are closed.
*/
func (p *Partition[C]) ReserveBatch(c C, sizeHint int) bool {
	if sizeHint < 1 {
		sizeHint = DefaultBatchSize
	}
	return p.reserve(c, sizeHint, false)
}

func (p *Partition[C]) reserve(c C, sizeHint int, allowEmpty bool) bool {
	ps := p.scan

	if p.done || ps.closed.Load() || !ps.tx.IsOpen() || c.IsClosed() {
		return false
	}

	if ps.tx.HasChanges() {
		c.base().fail(&util.KernelError{Type: util.ErrTransactionHasChanges,
			Detail: fmt.Sprintf("Transaction %v", ps.tx.id)})
		return false
	}

	b := &scanBatch{index: ps.index, needsValues: ps.needsValues}

	if p.it != nil {
		for len(b.ids) < sizeHint && p.it.HasNext() {
			if !p.last && p.it.PeekNext() >= p.hi {
				break
			}
			b.ids = append(b.ids, p.it.Next())
		}

	} else {
		end := p.end
		if sizeHint < end-p.pos {
			end = p.pos + sizeHint
		}

		b.entries = ps.entries[p.pos:end]
		p.pos = end
	}

	if len(b.ids) == 0 && len(b.entries) == 0 {
		p.done = true
		if !allowEmpty {
			return false
		}
	}

	return c.positionBatch(ps.tx, ps.reader, b) == nil
}

// Partitioned scan operations
// ===========================

/*
AllNodesScanPartitioned creates a partitioned scan over all nodes.
*/
func (tx *Transaction) AllNodesScanPartitioned(n int) (*PartitionedScan[*NodeCursor], error) {
	r, err := tx.partitionSnapshot()
	if err != nil {
		return nil, err
	}

	it, err := r.Nodes(false)
	if err != nil {
		return nil, err
	}

	ids, err := collectIDs(mapIterator(it, func(rec *graphstorage.NodeRecord) uint64 {
		return rec.ID
	}))
	if err != nil {
		return nil, err
	}

	return newIDScan[*NodeCursor](tx, r, ids, partitionBounds(ids, n), "all nodes scan"), nil
}

/*
AllRelationshipsScanPartitioned creates a partitioned scan over all
relationships.
*/
func (tx *Transaction) AllRelationshipsScanPartitioned(n int) (*PartitionedScan[*RelationshipScanCursor], error) {
	r, err := tx.partitionSnapshot()
	if err != nil {
		return nil, err
	}

	it, err := r.Relationships(false)
	if err != nil {
		return nil, err
	}

	ids, err := collectIDs(mapIterator(it, func(rec *graphstorage.RelationshipRecord) uint64 {
		return rec.ID
	}))
	if err != nil {
		return nil, err
	}

	return newIDScan[*RelationshipScanCursor](tx, r, ids, partitionBounds(ids, n), "all relationships scan"), nil
}

/*
NodeLabelScanPartitioned creates a partitioned scan over all nodes with a label.
*/
func (tx *Transaction) NodeLabelScanPartitioned(n int, label int) (*PartitionedScan[*NodeLabelIndexCursor], error) {
	scans, err := tx.NodeLabelScansPartitioned(n, label)
	if err != nil {
		return nil, err
	}
	return scans[0], nil
}

/*
NodeLabelScansPartitioned creates partitioned scans over the nodes of several
labels. All scans share the partition boundaries of the first scan so
partition i of every scan covers the same id range.
*/
func (tx *Transaction) NodeLabelScansPartitioned(n int, labels ...int) ([]*PartitionedScan[*NodeLabelIndexCursor], error) {

	if len(labels) == 0 {
		return nil, &util.KernelError{Type: util.ErrInvalidArgument, Detail: "No labels given"}
	}

	r, err := tx.partitionSnapshot()
	if err != nil {
		return nil, err
	}

	var res []*PartitionedScan[*NodeLabelIndexCursor]
	var bounds []uint64

	for _, l := range labels {
		it, err := r.NodesWithLabel(l, false)
		if err != nil {
			return nil, err
		}

		ids, err := collectIDs(it)
		if err != nil {
			return nil, err
		}

		if bounds == nil {
			bounds = partitionBounds(ids, n)
		}

		res = append(res, newIDScan[*NodeLabelIndexCursor](tx, r, ids, bounds,
			fmt.Sprintf("label %v scan", l)))
	}

	return res, nil
}

/*
RelationshipTypeScanPartitioned creates a partitioned scan over all
relationships of a type.
*/
func (tx *Transaction) RelationshipTypeScanPartitioned(n int, typ int) (*PartitionedScan[*RelationshipTypeIndexCursor], error) {
	r, err := tx.partitionSnapshot()
	if err != nil {
		return nil, err
	}

	it, err := r.RelationshipsWithType(typ, false)
	if err != nil {
		return nil, err
	}

	ids, err := collectIDs(it)
	if err != nil {
		return nil, err
	}

	return newIDScan[*RelationshipTypeIndexCursor](tx, r, ids, partitionBounds(ids, n),
		fmt.Sprintf("relationship type %v scan", typ)), nil
}

/*
NodeIndexSeekPartitioned creates a partitioned seek over a node value index.
Partitions follow the index order.
*/
func (tx *Transaction) NodeIndexSeekPartitioned(n int, session *IndexReadSession,
	constraints data.IndexQueryConstraints, queries ...data.PropertyIndexQuery) (*PartitionedScan[*NodeValueIndexCursor], error) {

	r, entries, err := tx.collectEntries(data.NodeEntity, session, constraints, queries)
	if err != nil {
		return nil, err
	}

	return newEntryScan[*NodeValueIndexCursor](tx, r, n, session.Descriptor, constraints, entries,
		"node index seek"), nil
}

/*
RelationshipIndexSeekPartitioned creates a partitioned seek over a
relationship value index. Partitions follow the index order.
*/
func (tx *Transaction) RelationshipIndexSeekPartitioned(n int, session *IndexReadSession,
	constraints data.IndexQueryConstraints, queries ...data.PropertyIndexQuery) (*PartitionedScan[*RelationshipValueIndexCursor], error) {

	r, entries, err := tx.collectEntries(data.RelationshipEntity, session, constraints, queries)
	if err != nil {
		return nil, err
	}

	return newEntryScan[*RelationshipValueIndexCursor](tx, r, n, session.Descriptor, constraints, entries,
		"relationship index seek"), nil
}

/*
collectEntries reads all matching entries of an index seek from a new
snapshot. No predicates means all entries of the index.
*/
func (tx *Transaction) collectEntries(entity data.EntityType, session *IndexReadSession,
	constraints data.IndexQueryConstraints, queries []data.PropertyIndexQuery) (graphstorage.Reader, []*graphstorage.IndexEntry, error) {

	if session == nil || session.Descriptor.Entity != entity {
		return nil, nil, &util.KernelError{Type: util.ErrInvalidArgument,
			Detail: fmt.Sprintf("Index session is not for %v entities", entity)}
	}

	if len(queries) == 0 {
		queries = scanQueries(session)
	}

	if err := validateQueries(session.Descriptor, queries); err != nil {
		return nil, nil, err
	}

	r, err := tx.partitionSnapshot()
	if err != nil {
		return nil, nil, err
	}

	it, err := r.IndexSeek(session.Descriptor.ID, data.NewSeekRange(queries),
		constraints.Order == data.Descending)
	if err != nil {
		return nil, nil, err
	}

	var entries []*graphstorage.IndexEntry

	for e, ok := it.Next(); ok; e, ok = it.Next() {
		if data.AcceptsAll(queries, e.Values) {
			entries = append(entries, e)
		}
	}

	return r, entries, it.Err()
}

/*
partitionSnapshot checks that a partitioned scan can be created and returns
the snapshot of the transaction for it.
*/
func (tx *Transaction) partitionSnapshot() (graphstorage.Reader, error) {

	if err := tx.checkOpen(); err != nil {
		return nil, err
	}

	if tx.HasChanges() {
		return nil, &util.KernelError{Type: util.ErrTransactionHasChanges,
			Detail: fmt.Sprintf("Transaction %v", tx.id)}
	}

	return tx.snapshot()
}

/*
init sets up the shared state of a scan.
*/
func (ps *PartitionedScan[C]) init(tx *Transaction, r graphstorage.Reader, name string) {
	ps.tx, ps.reader = tx, r
	ps.next, ps.closed = &atomic.Int64{}, &atomic.Bool{}

	tx.kernel.logger.LogDebug(fmt.Sprintf("Transaction %v created partitioned %v with %v partition(s)",
		tx.id, name, ps.n))
}

/*
newIDScan creates a partitioned scan over an id domain.
*/
func newIDScan[C batchCursor](tx *Transaction, r graphstorage.Reader, ids *roaring64.Bitmap,
	bounds []uint64, name string) *PartitionedScan[C] {

	ps := &PartitionedScan[C]{ids: ids, bounds: bounds, n: len(bounds)}
	ps.init(tx, r, name)

	return ps
}

/*
newEntryScan creates a partitioned scan over the entries of a value index.
*/
func newEntryScan[C batchCursor](tx *Transaction, r graphstorage.Reader, n int, index data.IndexDescriptor,
	constraints data.IndexQueryConstraints, entries []*graphstorage.IndexEntry, name string) *PartitionedScan[C] {

	if n < 1 {
		n = DefaultPartitions
	}
	if n > len(entries) {
		n = len(entries)
	}
	if n < 1 {
		n = 1
	}

	ps := &PartitionedScan[C]{entries: entries, index: index, needsValues: constraints.NeedsValues, n: n}
	ps.init(tx, r, name)

	return ps
}

/*
partitionBounds splits an id domain into n partitions of (nearly) equal size.
The result holds the lowest id of each partition. The first partition always
starts at 0 so shared boundaries also cover ids of other domains.
*/
func partitionBounds(ids *roaring64.Bitmap, n int) []uint64 {
	card := ids.GetCardinality()

	if n < 1 {
		n = DefaultPartitions
	}
	if uint64(n) > card {
		n = int(card)
	}
	if n < 1 {
		n = 1
	}

	bounds := make([]uint64, n)

	for i := 1; i < n; i++ {
		b, err := ids.Select(uint64(i) * card / uint64(n))
		if err != nil {

			// Cannot happen for ranks below the cardinality

			return bounds[:i]
		}
		bounds[i] = b
	}

	return bounds
}

/*
collectIDs reads all ids of an iterator into a bitmap.
*/
func collectIDs(it graphstorage.Iterator[uint64]) (*roaring64.Bitmap, error) {
	ids := roaring64.New()

	for id, ok := it.Next(); ok; id, ok = it.Next() {
		ids.Add(id)
	}

	return ids, it.Err()
}
