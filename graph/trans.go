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
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"devt.de/krotik/common/errorutil"
	"devt.de/krotik/graphcursor/graph/graphstorage"
	"devt.de/krotik/graphcursor/graph/txstate"
	"devt.de/krotik/graphcursor/graph/util"
)

/*
Transaction is a unit of work on the graph. All reads of a transaction see
the committed state at its start merged with its own changes. A transaction
and its default cursor factory must only be used by one goroutine. Worker
goroutines of partitioned scans use their own execution contexts.
*/
type Transaction struct {
	kernel   *Kernel
	id       uint64
	ctx      context.Context
	state    *txstate.State
	reader   graphstorage.Reader // Committed state at transaction start
	readErr  error               // Error of taking the snapshot
	registry *cursorRegistry
	cursors  *CursorFactory
	closed   *atomic.Bool
}

func newTransaction(k *Kernel, id uint64, ctx context.Context) *Transaction {
	tx := &Transaction{kernel: k, id: id, ctx: ctx, state: txstate.NewState(),
		registry: &cursorRegistry{lock: &sync.Mutex{}, open: make(map[uint64]Cursor)},
		closed:   &atomic.Bool{}}

	tx.reader, tx.readErr = k.gs.Snapshot()
	tx.cursors = newCursorFactory(tx)

	return tx
}

/*
ID returns the id of this transaction.
*/
func (tx *Transaction) ID() uint64 {
	return tx.id
}

/*
String returns a string representation of this transaction.
*/
func (tx *Transaction) String() string {
	return fmt.Sprintf("Transaction %v (open: %v changes: %v)", tx.id, tx.IsOpen(), tx.HasChanges())
}

/*
Context returns the context of this transaction.
*/
func (tx *Transaction) Context() context.Context {
	return tx.ctx
}

/*
Cursors returns the default cursor factory of this transaction.
*/
func (tx *Transaction) Cursors() *CursorFactory {
	return tx.cursors
}

/*
NewExecutionContext returns a new cursor factory for a worker goroutine. Its
cursors are checked for leaks when the transaction ends.
*/
func (tx *Transaction) NewExecutionContext() *CursorFactory {
	return newCursorFactory(tx)
}

/*
IsOpen returns true if the transaction was neither committed nor rolled back.
*/
func (tx *Transaction) IsOpen() bool {
	return !tx.closed.Load()
}

/*
HasChanges returns true if this transaction recorded any write.
*/
func (tx *Transaction) HasChanges() bool {
	return tx.state.HasChanges()
}

/*
Commit writes all changes of this transaction to the store and closes the
transaction. Returns a conflict error if the changes cannot be applied to the
latest committed state; in this case nothing is written. If the changes were
written but cursors were left open the leak error is returned.
*/
func (tx *Transaction) Commit() error {

	if err := tx.checkOpen(); err != nil {
		return err
	}

	var err error

	if tx.state.HasChanges() {
		err = tx.kernel.gs.Update(tx.apply)

		if err != nil {
			if errors.Is(err, util.ErrEntityNotFound) || errors.Is(err, util.ErrNodeHasRelationships) {
				err = &util.KernelError{Type: util.ErrConflict, Detail: err.Error()}
			}
			tx.kernel.logger.LogDebug(fmt.Sprintf("Transaction %v failed to commit: %v", tx.id, err))

		} else {
			tx.kernel.logger.LogDebug(fmt.Sprintf("Transaction %v committed (revision %v)",
				tx.id, tx.state.Revision()))
		}
	}

	leakErr := tx.close()

	if err == nil {
		err = leakErr
	}

	return err
}

/*
Rollback discards all changes of this transaction and closes it. Returns an
error if cursors were left open.
*/
func (tx *Transaction) Rollback() error {

	if err := tx.checkOpen(); err != nil {
		return err
	}

	return tx.close()
}

/*
close closes the transaction and checks for cursor leaks.
*/
func (tx *Transaction) close() error {
	tx.closed.Store(true)

	leaked := tx.registry.drain()
	if len(leaked) == 0 {
		return nil
	}

	cerr := errorutil.NewCompositeError()

	for _, c := range leaked {
		cerr.Add(fmt.Errorf("%v", c))
		c.Close()
	}

	tx.kernel.logger.LogError(fmt.Sprintf("Transaction %v leaked %v cursor(s): %v",
		tx.id, len(leaked), cerr.Error()))

	if !tx.kernel.leakCheck {
		return nil
	}

	return &util.KernelError{Type: util.ErrCursorLeak, Detail: cerr.Error()}
}

/*
checkOpen returns an error if the transaction is closed.
*/
func (tx *Transaction) checkOpen() error {
	if tx.closed.Load() {
		return &util.KernelError{Type: util.ErrTransactionClosed, Detail: fmt.Sprint(tx.id)}
	}
	return nil
}

/*
snapshot returns the reader on the committed state at transaction start.
Commits of other transactions are not visible; conflicts with them are
detected when this transaction commits.
*/
func (tx *Transaction) snapshot() (graphstorage.Reader, error) {
	if err := tx.checkOpen(); err != nil {
		return nil, err
	}
	return tx.reader, tx.readErr
}

/*
apply writes the change set to the store.
*/
func (tx *Transaction) apply(w graphstorage.Writer) error {
	st := tx.state
	nodes, rels := st.AddedAndRemovedNodes(), st.AddedAndRemovedRelationships()

	// Created nodes

	for _, id := range nodes.Added() {
		rec := &graphstorage.NodeRecord{ID: id}

		if ns := st.GetNodeState(id); ns != nil {
			rec.Labels = ns.Labels.Added()
			rec.Props = ns.Props.Apply(nil)
		}

		if err := w.PutNode(rec); err != nil {
			return err
		}
	}

	// Changed committed nodes

	for _, id := range st.ModifiedNodes() {
		ns := st.GetNodeState(id)

		if nodes.IsAdded(id) || nodes.IsRemoved(id) || (ns.Labels.IsEmpty() && ns.Props.IsEmpty()) {
			continue
		}

		rec, err := w.Node(id)
		if err == nil && rec == nil {
			err = &util.KernelError{Type: util.ErrEntityNotFound, Detail: fmt.Sprintf("Node %v", id)}
		}

		if err == nil {
			updated := rec.Copy()
			updated.Labels = ns.Labels.Apply(rec.Labels)
			updated.Props = ns.Props.Apply(rec.Props)
			err = w.PutNode(updated)
		}

		if err != nil {
			return err
		}
	}

	// Created and changed relationships

	for _, id := range st.ModifiedRelationships() {
		rs := st.GetRelationshipState(id)
		rec := &graphstorage.RelationshipRecord{ID: id, Type: rs.Type, Start: rs.Start, End: rs.End}

		if !rels.IsAdded(id) {
			if rs.Props.IsEmpty() {
				continue
			}

			existing, err := w.Relationship(id)
			if err != nil {
				return err
			} else if existing == nil {
				return &util.KernelError{Type: util.ErrEntityNotFound, Detail: fmt.Sprintf("Relationship %v", id)}
			}

			rec.Props = existing.Props
		}

		rec.Props = rs.Props.Apply(rec.Props)

		if err := w.PutRelationship(rec); err != nil {
			return err
		}
	}

	// Deleted relationships and nodes

	for _, id := range rels.Removed() {
		if err := w.DeleteRelationship(id); err != nil {
			return err
		}
	}

	for _, id := range nodes.Removed() {
		if err := w.DeleteNode(id); err != nil {
			return err
		}
	}

	return nil
}

/*
cursorRegistry keeps track of all open cursors of a transaction.
*/
type cursorRegistry struct {
	lock    *sync.Mutex
	counter uint64
	open    map[uint64]Cursor
}

/*
register adds a cursor and returns its registration id.
*/
func (cr *cursorRegistry) register(c Cursor) uint64 {
	cr.lock.Lock()
	defer cr.lock.Unlock()

	cr.counter++
	cr.open[cr.counter] = c

	return cr.counter
}

/*
unregister removes a cursor.
*/
func (cr *cursorRegistry) unregister(id uint64) {
	cr.lock.Lock()
	defer cr.lock.Unlock()

	delete(cr.open, id)
}

/*
size returns the number of open cursors.
*/
func (cr *cursorRegistry) size() int {
	cr.lock.Lock()
	defer cr.lock.Unlock()

	return len(cr.open)
}

/*
drain returns all open cursors in registration order and empties the registry.
*/
func (cr *cursorRegistry) drain() []Cursor {
	cr.lock.Lock()
	defer cr.lock.Unlock()

	ids := make([]uint64, 0, len(cr.open))
	for id := range cr.open {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	res := make([]Cursor, 0, len(ids))
	for _, id := range ids {
		res = append(res, cr.open[id])
	}

	cr.open = make(map[uint64]Cursor)

	return res
}
