/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package graph contains the transactional cursor API of the graph kernel.

Kernel API

The main API is provided by a Kernel object which can be created with the
NewKernel() constructor function. The kernel owns the committed store and
starts transactions.

Transactions

A transaction reads the committed store and records its own writes in an
in-memory change set. Every read of a transaction sees the committed store
with the change set applied ("commit then scan"). Nothing is written to the
store before calling Commit(). Commit validates all changes against the
latest committed state and fails with a conflict error if another
transaction removed an entity which this transaction depends on.

Cursors

Reads are done with cursors which are allocated from a CursorFactory. Each
transaction has a default factory (Cursors()) and can create further
factories for worker goroutines (NewExecutionContext()). A cursor goes
through the states

	UNPOSITIONED -> POSITIONED -> EXHAUSTED -> CLOSED

It is positioned by a read operation of the transaction (e.g. AllNodesScan),
advanced with Next() and released with Close(). Closed cursors go back to
their factory which may hand them out again. All cursors which are still
open when a transaction ends are reported as leaks.

A positioned cursor takes frozen copies of the parts of the change set it
needs, so later writes of the transaction only affect the next positioning.

Relationships

The relationships of a node are grouped by type and direction (OUTGOING,
INCOMING or LOOP). Degrees are answered from the committed degree counters
plus the changes of the transaction.

Indexes

Token index scans (labels and relationship types) and value index seeks
support unordered, ascending and descending results.

Partitioned scans

A partitioned scan splits a full scan into disjoint partitions which can be
consumed by independent workers. Partition hand-out is a single atomic
counter. The union of all partitions equals the unpartitioned scan with no
entity seen twice. Partitioned scans work on a snapshot of the store taken at
creation and can only be created by transactions without changes.
*/
package graph

/*
VERSION of the graph kernel
*/
const VERSION = 1

/*
DefaultPartitions is the number of partitions used if a partitioned scan is
requested with fewer than one partition.
*/
var DefaultPartitions = 8

/*
DefaultBatchSize is the batch size used if a batch is requested with a size
hint of less than one.
*/
var DefaultBatchSize = 100
