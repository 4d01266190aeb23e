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
	"sync/atomic"

	ecalutil "devt.de/krotik/ecal/util"
	"devt.de/krotik/graphcursor/graph/data"
	"devt.de/krotik/graphcursor/graph/graphstorage"
	"devt.de/krotik/graphcursor/graph/trace"
	"devt.de/krotik/graphcursor/graph/util"
)

/*
Kernel data structure
*/
type Kernel struct {
	gs        graphstorage.Storage // Committed store
	logger    ecalutil.Logger      // Logger for kernel messages
	tracer    trace.ReadTracer     // Default tracer for new cursors (may be nil)
	leakCheck bool                 // Flag if cursor leaks should fail transactions
	txCounter *atomic.Uint64       // Transaction id counter
}

/*
NewKernel creates a new kernel on a given store.
*/
func NewKernel(gs graphstorage.Storage) *Kernel {
	return &Kernel{gs, ecalutil.NewNullLogger(), nil, true, &atomic.Uint64{}}
}

/*
SetLogger sets the logger of this kernel.
*/
func (k *Kernel) SetLogger(logger ecalutil.Logger) {
	k.logger = logger
}

/*
Logger returns the logger of this kernel.
*/
func (k *Kernel) Logger() ecalutil.Logger {
	return k.logger
}

/*
ReadTracer returns the tracer which is attached to newly allocated cursors.
*/
func (k *Kernel) ReadTracer() trace.ReadTracer {
	return k.tracer
}

/*
SetReadTracer sets a tracer which is attached to all newly allocated cursors.
*/
func (k *Kernel) SetReadTracer(tracer trace.ReadTracer) {
	k.tracer = tracer
}

/*
SetLeakCheck sets if a transaction which ends with open cursors should
return an error. Leaks are always logged.
*/
func (k *Kernel) SetLeakCheck(enabled bool) {
	k.leakCheck = enabled
}

/*
Storage returns the committed store of this kernel.
*/
func (k *Kernel) Storage() graphstorage.Storage {
	return k.gs
}

/*
Tokens returns the token registry of this kernel.
*/
func (k *Kernel) Tokens() *util.TokenRegistry {
	return k.gs.Tokens()
}

/*
BeginTransaction starts a new transaction. The given context is handed to all
cursors of the transaction.
*/
func (k *Kernel) BeginTransaction(ctx context.Context) *Transaction {
	if ctx == nil {
		ctx = context.Background()
	}

	return newTransaction(k, k.txCounter.Add(1), ctx)
}

/*
CreateIndex creates and populates a new value index.
*/
func (k *Kernel) CreateIndex(name string, entity data.EntityType, token int, keys ...int) (data.IndexDescriptor, error) {
	desc, err := k.gs.CreateIndex(name, entity, token, keys)

	if err == nil {
		k.logger.LogInfo(fmt.Sprintf("Created %v", desc))
	}

	return desc, err
}

/*
Indexes returns all value indexes.
*/
func (k *Kernel) Indexes() ([]data.IndexDescriptor, error) {
	r, err := k.gs.Snapshot()
	if err != nil {
		return nil, err
	}
	return r.Indexes()
}

/*
Index looks up a value index by name.
*/
func (k *Kernel) Index(name string) (data.IndexDescriptor, error) {
	indexes, err := k.Indexes()

	for _, desc := range indexes {
		if desc.Name == name {
			return desc, nil
		}
	}

	if err == nil {
		err = &util.KernelError{Type: util.ErrIndexNotFound, Detail: name}
	}

	return data.IndexDescriptor{}, err
}

/*
Close closes the store of this kernel.
*/
func (k *Kernel) Close() error {
	k.logger.LogInfo("Closing graph storage ", k.gs.Name())
	return k.gs.Close()
}
