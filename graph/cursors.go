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
	"fmt"

	"devt.de/krotik/graphcursor/graph/trace"
	"devt.de/krotik/graphcursor/graph/util"
)

/*
Cursor is the common interface of all cursors.
*/
type Cursor interface {

	/*
		Next advances the cursor. Returns false if there are no more results
		or if the cursor failed (see Err).
	*/
	Next() bool

	/*
		Err returns the error which stopped the cursor (if any).
	*/
	Err() error

	/*
		Close closes the cursor and gives it back to its factory. Closing a
		closed cursor has no effect.
	*/
	Close()

	/*
		IsClosed returns true if the cursor is closed.
	*/
	IsClosed() bool

	/*
		SetTracer sets a tracer for this cursor (nil for none).
	*/
	SetTracer(tracer trace.ReadTracer)

	/*
		Context returns the context which was given at allocation.
	*/
	Context() context.Context

	/*
		String returns a string representation of the cursor.
	*/
	String() string
}

/*
CursorState is the lifecycle state of a cursor.
*/
type CursorState int

/*
Cursor states
*/
const (
	Unpositioned CursorState = iota
	Positioned
	Exhausted
	Closed
)

func (s CursorState) String() string {
	switch s {
	case Positioned:
		return "POSITIONED"
	case Exhausted:
		return "EXHAUSTED"
	case Closed:
		return "CLOSED"
	}
	return "UNPOSITIONED"
}

/*
cursorKind identifies the factory slot of a cursor.
*/
type cursorKind int

const (
	kindNode cursorKind = iota
	kindRelationshipScan
	kindRelationshipTraversal
	kindRelationshipGroup
	kindProperty
	kindNodeLabelIndex
	kindRelationshipTypeIndex
	kindNodeValueIndex
	kindRelationshipValueIndex
)

var kindNames = map[cursorKind]string{
	kindNode:                   "NodeCursor",
	kindRelationshipScan:       "RelationshipScanCursor",
	kindRelationshipTraversal:  "RelationshipTraversalCursor",
	kindRelationshipGroup:      "RelationshipGroupCursor",
	kindProperty:               "PropertyCursor",
	kindNodeLabelIndex:         "NodeLabelIndexCursor",
	kindRelationshipTypeIndex:  "RelationshipTypeIndexCursor",
	kindNodeValueIndex:         "NodeValueIndexCursor",
	kindRelationshipValueIndex: "RelationshipValueIndexCursor",
}

/*
pooledCursor is a cursor which can be handed out again by its factory.
*/
type pooledCursor interface {
	Cursor
	base() *cursorBase
	release()
}

/*
cursorBase holds the state machine which is shared by all cursors.
*/
type cursorBase struct {
	kind    cursorKind
	self    pooledCursor     // Concrete cursor
	factory *CursorFactory   // Owning factory
	regID   uint64           // Registration id in the transaction registry
	ctx     context.Context  // Context given at allocation
	tracer  trace.ReadTracer // Tracer (may be nil)
	state   CursorState      // Lifecycle state
	err     error            // Error which stopped the cursor
	advance func() (bool, error)
}

func (cb *cursorBase) base() *cursorBase {
	return cb
}

/*
Next advances the cursor.
*/
func (cb *cursorBase) Next() bool {

	if cb.state == Closed {
		if cb.err == nil {
			cb.err = &util.KernelError{Type: util.ErrCursorClosed, Detail: cb.String()}
		}
		return false

	} else if cb.state != Positioned {
		return false
	}

	ok, err := cb.advance()

	if err != nil {
		cb.fail(err)
		return false
	}

	if !ok {
		cb.state = Exhausted
		cb.advance = nil
	}

	return ok
}

/*
Err returns the error which stopped the cursor.
*/
func (cb *cursorBase) Err() error {
	return cb.err
}

/*
Close closes the cursor and gives it back to its factory.
*/
func (cb *cursorBase) Close() {
	if cb.state == Closed {
		return
	}

	cb.shutdown()

	cb.factory.recycle(cb.self)
}

/*
IsClosed returns true if the cursor is closed.
*/
func (cb *cursorBase) IsClosed() bool {
	return cb.state == Closed
}

/*
State returns the lifecycle state of the cursor.
*/
func (cb *cursorBase) State() CursorState {
	return cb.state
}

/*
SetTracer sets a tracer for this cursor.
*/
func (cb *cursorBase) SetTracer(tracer trace.ReadTracer) {
	cb.tracer = tracer
}

/*
Context returns the context which was given at allocation.
*/
func (cb *cursorBase) Context() context.Context {
	return cb.ctx
}

func (cb *cursorBase) String() string {
	return fmt.Sprintf("%v %v (%v)", kindNames[cb.kind], cb.regID, cb.state)
}

/*
checkPosition checks that the cursor can be positioned by a transaction.
*/
func (cb *cursorBase) checkPosition(tx *Transaction) error {

	if cb.state == Closed {
		return &util.KernelError{Type: util.ErrCursorClosed, Detail: cb.String()}
	}

	if err := tx.checkOpen(); err != nil {
		return err
	}

	if cb.factory.tx != tx {
		return &util.KernelError{Type: util.ErrInvalidArgument,
			Detail: fmt.Sprintf("%v belongs to transaction %v", cb, cb.factory.tx.id)}
	}

	return nil
}

/*
position positions the cursor on a new result sequence. Resources of the
previous positioning are released.
*/
func (cb *cursorBase) position(advance func() (bool, error)) {
	cb.self.release()
	cb.state = Positioned
	cb.err = nil
	cb.advance = advance
}

/*
empty positions the cursor on an empty result sequence.
*/
func (cb *cursorBase) empty() {
	cb.position(func() (bool, error) { return false, nil })
}

/*
fail closes the cursor because of an error. The cursor is not given back to
its factory so the caller can still inspect the error.
*/
func (cb *cursorBase) fail(err error) {
	if _, ok := err.(*util.KernelError); !ok {
		err = &util.KernelError{Type: util.ErrReading, Detail: err.Error()}
	}

	cb.shutdown()
	cb.err = err
}

/*
shutdown releases all resources and unregisters the cursor.
*/
func (cb *cursorBase) shutdown() {
	cb.self.release()
	cb.state = Closed
	cb.advance = nil
	cb.factory.tx.registry.unregister(cb.regID)
}

/*
CursorFactory allocates cursors for a transaction. A factory keeps one closed
cursor of each kind which is handed out again on the next allocation. A
factory and its cursors must only be used by one goroutine.
*/
type CursorFactory struct {
	tx   *Transaction                // Owning transaction
	pool map[cursorKind]pooledCursor // Closed cursors by kind
}

func newCursorFactory(tx *Transaction) *CursorFactory {
	return &CursorFactory{tx, make(map[cursorKind]pooledCursor)}
}

/*
Transaction returns the owning transaction.
*/
func (cf *CursorFactory) Transaction() *Transaction {
	return cf.tx
}

/*
AllocateNodeCursor allocates a node cursor.
*/
func (cf *CursorFactory) AllocateNodeCursor(ctx context.Context) *NodeCursor {
	if c, ok := cf.reuse(kindNode, ctx).(*NodeCursor); ok {
		return c
	}
	c := &NodeCursor{}
	c.cursorBase = cf.newBase(kindNode, ctx, c)
	return c
}

/*
AllocateRelationshipScanCursor allocates a relationship scan cursor.
*/
func (cf *CursorFactory) AllocateRelationshipScanCursor(ctx context.Context) *RelationshipScanCursor {
	if c, ok := cf.reuse(kindRelationshipScan, ctx).(*RelationshipScanCursor); ok {
		return c
	}
	c := &RelationshipScanCursor{relationshipView: relationshipView{tx: cf.tx}}
	c.cursorBase = cf.newBase(kindRelationshipScan, ctx, c)
	return c
}

/*
AllocateRelationshipTraversalCursor allocates a relationship traversal cursor.
*/
func (cf *CursorFactory) AllocateRelationshipTraversalCursor(ctx context.Context) *RelationshipTraversalCursor {
	if c, ok := cf.reuse(kindRelationshipTraversal, ctx).(*RelationshipTraversalCursor); ok {
		return c
	}
	c := &RelationshipTraversalCursor{relationshipView: relationshipView{tx: cf.tx}}
	c.cursorBase = cf.newBase(kindRelationshipTraversal, ctx, c)
	return c
}

/*
AllocateRelationshipGroupCursor allocates a relationship group cursor.
*/
func (cf *CursorFactory) AllocateRelationshipGroupCursor(ctx context.Context) *RelationshipGroupCursor {
	if c, ok := cf.reuse(kindRelationshipGroup, ctx).(*RelationshipGroupCursor); ok {
		return c
	}
	c := &RelationshipGroupCursor{}
	c.cursorBase = cf.newBase(kindRelationshipGroup, ctx, c)
	return c
}

/*
AllocatePropertyCursor allocates a property cursor.
*/
func (cf *CursorFactory) AllocatePropertyCursor(ctx context.Context) *PropertyCursor {
	if c, ok := cf.reuse(kindProperty, ctx).(*PropertyCursor); ok {
		return c
	}
	c := &PropertyCursor{}
	c.cursorBase = cf.newBase(kindProperty, ctx, c)
	return c
}

/*
AllocateNodeLabelIndexCursor allocates a label index cursor.
*/
func (cf *CursorFactory) AllocateNodeLabelIndexCursor(ctx context.Context) *NodeLabelIndexCursor {
	if c, ok := cf.reuse(kindNodeLabelIndex, ctx).(*NodeLabelIndexCursor); ok {
		return c
	}
	c := &NodeLabelIndexCursor{}
	c.cursorBase = cf.newBase(kindNodeLabelIndex, ctx, c)
	return c
}

/*
AllocateRelationshipTypeIndexCursor allocates a relationship type index cursor.
*/
func (cf *CursorFactory) AllocateRelationshipTypeIndexCursor(ctx context.Context) *RelationshipTypeIndexCursor {
	if c, ok := cf.reuse(kindRelationshipTypeIndex, ctx).(*RelationshipTypeIndexCursor); ok {
		return c
	}
	c := &RelationshipTypeIndexCursor{}
	c.cursorBase = cf.newBase(kindRelationshipTypeIndex, ctx, c)
	return c
}

/*
AllocateNodeValueIndexCursor allocates a node value index cursor.
*/
func (cf *CursorFactory) AllocateNodeValueIndexCursor(ctx context.Context) *NodeValueIndexCursor {
	if c, ok := cf.reuse(kindNodeValueIndex, ctx).(*NodeValueIndexCursor); ok {
		return c
	}
	c := &NodeValueIndexCursor{}
	c.cursorBase = cf.newBase(kindNodeValueIndex, ctx, c)
	return c
}

/*
AllocateRelationshipValueIndexCursor allocates a relationship value index cursor.
*/
func (cf *CursorFactory) AllocateRelationshipValueIndexCursor(ctx context.Context) *RelationshipValueIndexCursor {
	if c, ok := cf.reuse(kindRelationshipValueIndex, ctx).(*RelationshipValueIndexCursor); ok {
		return c
	}
	c := &RelationshipValueIndexCursor{}
	c.cursorBase = cf.newBase(kindRelationshipValueIndex, ctx, c)
	return c
}

/*
newBase creates and registers the state of a new cursor.
*/
func (cf *CursorFactory) newBase(kind cursorKind, ctx context.Context, self pooledCursor) *cursorBase {
	cb := &cursorBase{kind: kind, self: self, factory: cf}
	cf.activate(cb, ctx)
	return cb
}

/*
reuse takes a closed cursor of a given kind from the pool. Returns nil if
there is none.
*/
func (cf *CursorFactory) reuse(kind cursorKind, ctx context.Context) pooledCursor {
	c, ok := cf.pool[kind]
	if !ok {
		return nil
	}

	delete(cf.pool, kind)
	cf.activate(c.base(), ctx)

	return c
}

/*
activate resets a cursor to the unpositioned state and registers it.
*/
func (cf *CursorFactory) activate(cb *cursorBase, ctx context.Context) {
	if ctx == nil {
		ctx = cf.tx.ctx
	}

	cb.ctx = ctx
	cb.tracer = cf.tx.kernel.tracer
	cb.state = Unpositioned
	cb.err = nil
	cb.advance = nil
	cb.regID = cf.tx.registry.register(cb.self)
}

/*
recycle keeps a closed cursor for the next allocation.
*/
func (cf *CursorFactory) recycle(c pooledCursor) {
	if _, ok := cf.pool[c.base().kind]; !ok {
		cf.pool[c.base().kind] = c
	}
}
